package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-commerce/internal/domain/coupon"
	"github.com/xenking/kart-commerce/internal/domain/product"
)

// Line is a priced cart line joined with its live product.
type Line struct {
	Product  product.Product
	Quantity int
}

// Subtotal is price times quantity for the line.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// View is the computed projection of a cart. It is never stored.
type View struct {
	OwnerID         string
	Items           []Line
	Coupon          *coupon.Coupon
	CartTotal       decimal.Decimal
	DiscountedTotal decimal.Decimal
}

// Empty reports whether the view has no priced lines.
func (v *View) Empty() bool {
	return len(v.Items) == 0
}

// Price joins c with the given catalog snapshot and applied coupon.
//
// Lines whose product is absent from products are omitted. The total uses
// the product prices passed in, never a price captured when the item was
// added. A nil cp, or a cp whose id differs from c.CouponID, counts as no
// coupon. A cart without priced lines yields the zero view with no coupon.
// The discounted total is floored at zero.
func Price(c *Cart, products []product.Product, cp *coupon.Coupon) View {
	v := View{
		OwnerID:         c.OwnerID,
		Items:           []Line{},
		CartTotal:       decimal.Zero,
		DiscountedTotal: decimal.Zero,
	}

	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		if _, seen := byID[p.ID]; !seen {
			byID[p.ID] = p
		}
	}

	for _, it := range c.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			continue
		}
		line := Line{Product: p, Quantity: it.Quantity}
		v.Items = append(v.Items, line)
		v.CartTotal = v.CartTotal.Add(line.Subtotal())
	}

	v.DiscountedTotal = v.CartTotal
	if v.Empty() {
		return v
	}
	if cp != nil && c.CouponID != "" && cp.ID == c.CouponID {
		v.Coupon = cp
		v.DiscountedTotal = v.CartTotal.Sub(cp.DiscountValue)
		if v.DiscountedTotal.IsNegative() {
			v.DiscountedTotal = decimal.Zero
		}
	}
	return v
}
