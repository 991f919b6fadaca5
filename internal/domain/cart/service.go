package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/kart-commerce/internal/domain/coupon"
	"github.com/xenking/kart-commerce/internal/domain/field"
	"github.com/xenking/kart-commerce/internal/domain/product"
)

const instrumentationName = "github.com/xenking/kart-commerce/internal/domain/cart"

// Service implements cart mutations and coupon application. Every
// read-modify-write of a cart holds the owner's lock.
type Service struct {
	carts    Repository
	products product.Repository
	coupons  coupon.Repository
	locks    *Locker
	now      func() time.Time

	couponsApplied metric.Int64Counter
}

// NewService creates a cart Service.
func NewService(
	carts Repository,
	products product.Repository,
	coupons coupon.Repository,
	meterProvider metric.MeterProvider,
) (*Service, error) {
	meter := meterProvider.Meter(instrumentationName)
	applied, err := meter.Int64Counter("kart.cart.coupons_applied",
		metric.WithDescription("Coupons attached to carts"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create coupons_applied counter")
	}
	return &Service{
		carts:          carts,
		products:       products,
		coupons:        coupons,
		locks:          NewLocker(),
		now:            time.Now,
		couponsApplied: applied,
	}, nil
}

// View returns the priced cart of ownerID.
func (s *Service) View(ctx context.Context, ownerID string) (*View, error) {
	c, err := s.carts.Get(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	products, cp, err := s.load(ctx, c)
	if err != nil {
		return nil, err
	}
	v := Price(c, products, cp)
	return &v, nil
}

// AddOrSetItem sets the quantity of productID in the cart, adding the line
// when it is new. Changing the quantity of an existing line detaches the
// applied coupon.
func (s *Service) AddOrSetItem(ctx context.Context, ownerID, productID string, quantity int) (*View, error) {
	if quantity < 1 {
		var fe field.Errors
		fe.Add("quantity", "Quantity must be at least 1")
		return nil, fe
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > p.Stock {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Remaining: p.Stock,
		}
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	c, err := s.carts.Get(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	if i := c.index(productID); i >= 0 {
		if c.Items[i].Quantity != quantity {
			c.Items[i].Quantity = quantity
			c.CouponID = ""
		}
	} else {
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: quantity})
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}

	products, cp, err := s.load(ctx, c)
	if err != nil {
		return nil, err
	}
	v := Price(c, products, cp)
	return &v, nil
}

// RemoveItem drops productID from the cart. The applied coupon is detached
// when the remaining total no longer reaches its minimum cart value.
func (s *Service) RemoveItem(ctx context.Context, ownerID, productID string) (*View, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	c, err := s.carts.Get(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if i := c.index(productID); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}

	products, cp, err := s.load(ctx, c)
	if err != nil {
		return nil, err
	}
	if c.CouponID != "" {
		total := Price(c, products, nil).CartTotal
		if cp == nil || cp.CheckMinimum(total) != nil {
			c.CouponID = ""
		}
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}

	v := Price(c, products, cp)
	return &v, nil
}

// Clear empties the cart and detaches its coupon.
func (s *Service) Clear(ctx context.Context, ownerID string) (*View, error) {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	c, err := s.carts.Get(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	c.Reset()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	v := Price(c, nil, nil)
	return &v, nil
}

// ApplyCoupon attaches the coupon matching code to the cart. The coupon must
// be active and inside its validity window, and the cart total must reach its
// minimum cart value.
func (s *Service) ApplyCoupon(ctx context.Context, ownerID, code string) (*View, error) {
	code = coupon.NormalizeCode(code)
	if code == "" {
		var fe field.Errors
		fe.Add("couponCode", "Coupon code is required")
		return nil, fe
	}

	cp, err := s.coupons.FindByCode(ctx, code)
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		return nil, coupon.ErrInvalidCoupon
	case err != nil:
		return nil, errors.Wrap(err, "find coupon")
	case !cp.ValidAt(s.now()):
		return nil, coupon.ErrInvalidCoupon
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	c, err := s.carts.Get(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	products, err := s.loadProducts(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := cp.CheckMinimum(Price(c, products, nil).CartTotal); err != nil {
		return nil, err
	}

	c.CouponID = cp.ID
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	s.couponsApplied.Add(ctx, 1, metric.WithAttributes(attribute.String("coupon.code", cp.Code)))

	v := Price(c, products, cp)
	return &v, nil
}

// RemoveCoupon detaches any applied coupon. It succeeds when none is applied.
func (s *Service) RemoveCoupon(ctx context.Context, ownerID string) (*View, error) {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	c, err := s.carts.Get(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if c.CouponID != "" {
		c.CouponID = ""
		if err := s.carts.Save(ctx, c); err != nil {
			return nil, errors.Wrap(err, "save cart")
		}
	}

	products, err := s.loadProducts(ctx, c)
	if err != nil {
		return nil, err
	}
	v := Price(c, products, nil)
	return &v, nil
}

// AvailableCoupons lists the coupons ownerID could apply to the current cart.
func (s *Service) AvailableCoupons(ctx context.Context, ownerID string, p coupon.Page) ([]coupon.Coupon, int, error) {
	v, err := s.View(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}
	coupons, total, err := s.coupons.ListValid(ctx, s.now(), v.CartTotal, p)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list valid coupons")
	}
	return coupons, total, nil
}

// Reset empties the cart after checkout. It shares the owner lock with the
// other mutations.
func (s *Service) Reset(ctx context.Context, ownerID string) error {
	_, err := s.Clear(ctx, ownerID)
	return err
}

func (s *Service) load(ctx context.Context, c *Cart) ([]product.Product, *coupon.Coupon, error) {
	products, err := s.loadProducts(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	if c.CouponID == "" {
		return products, nil, nil
	}
	cp, err := s.coupons.GetByID(ctx, c.CouponID)
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		return products, nil, nil
	case err != nil:
		return nil, nil, errors.Wrap(err, "get applied coupon")
	}
	return products, cp, nil
}

func (s *Service) loadProducts(ctx context.Context, c *Cart) ([]product.Product, error) {
	if len(c.Items) == 0 {
		return nil, nil
	}
	products, err := s.products.GetByIDs(ctx, c.ProductIDs())
	if err != nil {
		return nil, errors.Wrap(err, "get cart products")
	}
	return products, nil
}
