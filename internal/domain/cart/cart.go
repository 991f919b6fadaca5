package cart

import (
	"context"
	"fmt"
)

// Item is one cart line. Quantity is always at least 1.
type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Cart is the per-owner basket. CouponID is empty when no coupon is applied.
type Cart struct {
	OwnerID  string
	Items    []Item
	CouponID string
}

func (c *Cart) index(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// ProductIDs returns the product ids referenced by the cart lines.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ProductID
	}
	return ids
}

// Reset empties the cart and detaches its coupon.
func (c *Cart) Reset() {
	c.Items = nil
	c.CouponID = ""
}

// InsufficientStockError reports a requested quantity the catalog cannot
// satisfy.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Remaining int
}

func (e *InsufficientStockError) Error() string {
	if e.Remaining <= 0 {
		return "Product is out of stock"
	}
	return fmt.Sprintf("Only %d products are remaining. But you are adding %d", e.Remaining, e.Requested)
}

// Repository persists carts. Implementations provision a cart on first read
// so that every owner always has exactly one.
type Repository interface {
	Get(ctx context.Context, ownerID string) (*Cart, error)
	// Save replaces the stored items and coupon of c.
	Save(ctx context.Context, c *Cart) error
}
