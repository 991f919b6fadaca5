package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-commerce/internal/domain/address"
	"github.com/xenking/kart-commerce/internal/domain/auth"
	"github.com/xenking/kart-commerce/internal/domain/cart"
	"github.com/xenking/kart-commerce/internal/domain/field"
	"github.com/xenking/kart-commerce/internal/domain/payment"
)

const (
	instrumentationName = "github.com/xenking/kart-commerce/internal/domain/order"
	notifyTimeout       = 10 * time.Second
)

// Carts is the part of the cart service checkout depends on.
type Carts interface {
	View(ctx context.Context, ownerID string) (*cart.View, error)
	Reset(ctx context.Context, ownerID string) error
}

// Addresses looks up addresses scoped to their owner.
type Addresses interface {
	Get(ctx context.Context, ownerID, id string) (*address.Address, error)
}

// Notifier delivers the "order confirmed" notification.
type Notifier interface {
	OrderConfirmed(ctx context.Context, o *Order, customer auth.Identity) error
}

// CheckoutResult is a pending order and the provider order created for it.
type CheckoutResult struct {
	Order  *Order
	Intent *payment.Intent
}

// Service implements checkout, fulfilment and order administration.
type Service struct {
	orders    Repository
	carts     Carts
	addresses Addresses
	notifier  Notifier
	providers map[payment.Method]payment.Provider
	now       func() time.Time

	tracer    trace.Tracer
	created   metric.Int64Counter
	fulfilled metric.Int64Counter
}

// NewService creates an order Service. Each provider is registered under its
// Method.
func NewService(
	orders Repository,
	carts Carts,
	addresses Addresses,
	notifier Notifier,
	tracerProvider trace.TracerProvider,
	meterProvider metric.MeterProvider,
	providers ...payment.Provider,
) (*Service, error) {
	meter := meterProvider.Meter(instrumentationName)
	created, err := meter.Int64Counter("kart.orders.created",
		metric.WithDescription("Pending orders created at checkout"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders.created counter")
	}
	fulfilled, err := meter.Int64Counter("kart.orders.fulfilled",
		metric.WithDescription("Orders whose payment was verified"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders.fulfilled counter")
	}

	s := &Service{
		orders:    orders,
		carts:     carts,
		addresses: addresses,
		notifier:  notifier,
		providers: make(map[payment.Method]payment.Provider, len(providers)),
		now:       time.Now,
		tracer:    tracerProvider.Tracer(instrumentationName),
		created:   created,
		fulfilled: fulfilled,
	}
	for _, p := range providers {
		s.providers[p.Method()] = p
	}
	return s, nil
}

func (s *Service) provider(method payment.Method) (payment.Provider, error) {
	p, ok := s.providers[method]
	if !ok {
		return nil, ErrProviderUnavailable
	}
	return p, nil
}

// Checkout prices the customer's cart, creates a provider order for the
// discounted total and stores a pending order referencing it.
func (s *Service) Checkout(ctx context.Context, customer auth.Identity, method payment.Method, addressID string) (_ *CheckoutResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout", trace.WithAttributes(
		attribute.String("payment.provider", string(method)),
	))
	defer func() { endSpan(span, rerr) }()

	provider, err := s.provider(method)
	if err != nil {
		return nil, err
	}
	if addressID == "" {
		var fe field.Errors
		fe.Add("addressId", "Address id is required")
		return nil, fe
	}

	var view *cart.View
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.addresses.Get(gctx, customer.UserID, addressID)
		return err
	})
	g.Go(func() error {
		v, err := s.carts.View(gctx, customer.UserID)
		view = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if view.Empty() {
		return nil, ErrEmptyCart
	}
	if !view.DiscountedTotal.IsPositive() {
		var fe field.Errors
		fe.Add("couponCode", "Order total must be greater than zero, remove the coupon to continue")
		return nil, fe
	}

	items := make([]Item, len(view.Items))
	for i, l := range view.Items {
		items[i] = Item{ProductID: l.Product.ID, Quantity: l.Quantity}
	}

	orderID := uuid.New().String()
	intent, err := provider.CreateIntent(ctx, payment.Charge{
		Amount:  view.DiscountedTotal,
		Receipt: orderID,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		ID:                   orderID,
		CustomerID:           customer.UserID,
		AddressID:            addressID,
		Items:                items,
		OrderPrice:           view.CartTotal,
		DiscountedOrderPrice: view.DiscountedTotal,
		PaymentProvider:      method,
		PaymentID:            intent.ID,
		Status:               StatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if view.Coupon != nil {
		o.CouponID = view.Coupon.ID
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("payment.provider", string(method))))
	span.SetAttributes(attribute.String("order.id", o.ID))
	zctx.From(ctx).Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("payment_id", o.PaymentID),
		zap.Stringer("amount", o.DiscountedOrderPrice),
	)

	return &CheckoutResult{Order: o, Intent: intent}, nil
}

// Verify confirms the payment of the customer's pending order with its
// provider and fulfils the order. Verifying an already paid order returns it
// unchanged.
func (s *Service) Verify(ctx context.Context, customer auth.Identity, method payment.Method, c payment.Confirmation) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Verify", trace.WithAttributes(
		attribute.String("payment.provider", string(method)),
		attribute.String("payment.order_id", c.OrderID),
	))
	defer func() { endSpan(span, rerr) }()

	provider, err := s.provider(method)
	if err != nil {
		return nil, err
	}
	if c.OrderID == "" {
		var fe field.Errors
		fe.Add("orderId", "Payment order id is required")
		return nil, fe
	}

	o, err := s.orders.GetByPayment(ctx, method, c.OrderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customer.UserID {
		return nil, ErrNotFound
	}
	if o.IsPaymentDone {
		return o, nil
	}
	if o.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	if err := provider.Confirm(ctx, c); err != nil {
		// A concurrent verification may have captured the payment first.
		var ue *payment.UpstreamError
		if errors.As(err, &ue) {
			if current, gerr := s.orders.GetByID(ctx, o.ID); gerr == nil && current.IsPaymentDone {
				return current, nil
			}
		}
		return nil, err
	}

	paid, first, err := s.orders.Fulfill(ctx, o.ID, s.now())
	if err != nil {
		return nil, errors.Wrapf(err, "fulfil order %s", o.ID)
	}
	if !first {
		return paid, nil
	}

	s.fulfilled.Add(ctx, 1, metric.WithAttributes(attribute.String("payment.provider", string(method))))
	lg := zctx.From(ctx)
	lg.Info("Order paid", zap.String("order_id", paid.ID))

	if err := s.carts.Reset(ctx, customer.UserID); err != nil {
		lg.Error("Reset cart after payment", zap.String("order_id", paid.ID), zap.Error(err))
	}
	s.notify(ctx, paid, customer)

	return paid, nil
}

// notify publishes the confirmation in the background. The request context
// may end before delivery, so only its values are kept.
func (s *Service) notify(ctx context.Context, o *Order, customer auth.Identity) {
	ctx = context.WithoutCancel(ctx)
	snapshot := *o
	go func() {
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := s.notifier.OrderConfirmed(ctx, &snapshot, customer); err != nil {
			zctx.From(ctx).Warn("Order confirmation not delivered",
				zap.String("order_id", snapshot.ID),
				zap.Error(err),
			)
		}
	}()
}

// UpdateStatus moves a pending order to status. Delivered and cancelled
// orders are final.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	if _, ok := ParseStatus(string(status)); !ok {
		var fe field.Errors
		fe.Add("status", "Invalid order status")
		return nil, fe
	}

	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(o.Status); err != nil {
		return nil, err
	}
	if status == StatusPending {
		return o, nil
	}

	now := s.now()
	ok, err := s.orders.UpdateStatus(ctx, id, StatusPending, status, now)
	if err != nil {
		return nil, errors.Wrapf(err, "update order %s status", id)
	}
	if !ok {
		current, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := checkTransition(current.Status); err != nil {
			return nil, err
		}
		return current, nil
	}

	o.Status = status
	o.UpdatedAt = now
	return o, nil
}

func checkTransition(from Status) error {
	switch from {
	case StatusDelivered:
		return ErrAlreadyDelivered
	case StatusCancelled:
		return ErrAlreadyCancelled
	default:
		return nil
	}
}

// Get returns an order visible to the caller: their own, or any for admins.
func (s *Service) Get(ctx context.Context, caller auth.Identity, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && o.CustomerID != caller.UserID {
		return nil, ErrNotFound
	}
	return o, nil
}

// ListMine returns one page of the caller's orders, newest first.
func (s *Service) ListMine(ctx context.Context, caller auth.Identity, offset, limit int) ([]Order, int, error) {
	return s.orders.List(ctx, Filter{CustomerID: caller.UserID, Offset: offset, Limit: limit})
}

// List returns one page of all orders matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, int, error) {
	return s.orders.List(ctx, f)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
