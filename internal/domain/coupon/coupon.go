package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon discount strategies.
type Type string

// TypeFlat subtracts a fixed amount from the cart total.
const TypeFlat Type = "FLAT"

// MinCodeLength is the shortest accepted coupon code.
const MinCodeLength = 4

var (
	// ErrInvalidCoupon is returned when a code does not match a coupon that
	// is active and inside its validity window.
	ErrInvalidCoupon = errors.New("Invalid coupon code")
	// ErrNotFound is returned when a coupon id does not exist.
	ErrNotFound = errors.New("Coupon does not exist")
	// ErrMinimumBelowDiscount is returned when a coupon would allow a
	// discount larger than the minimum cart value.
	ErrMinimumBelowDiscount = errors.New("Minimum cart value must be greater than or equal to the discount value")
	// ErrInUse is returned when deleting a coupon that orders still reference.
	ErrInUse = errors.New("Coupon is referenced by existing orders and cannot be deleted")
)

// DuplicateCodeError reports a coupon code that is already taken.
type DuplicateCodeError struct {
	Code string
}

func (e *DuplicateCodeError) Error() string {
	return fmt.Sprintf("Coupon with code %s already exists", e.Code)
}

// InsufficientCartValueError reports how much more the cart must be worth
// before the coupon can be applied.
type InsufficientCartValueError struct {
	Code      string
	Minimum   decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientCartValueError) Error() string {
	return fmt.Sprintf("Add items worth %s more to apply this coupon", e.Shortfall.StringFixed(2))
}

// Coupon is a flat-amount discount code with a validity window and a
// minimum-spend gate.
type Coupon struct {
	ID               string
	Name             string
	Code             string
	Type             Type
	DiscountValue    decimal.Decimal
	MinimumCartValue decimal.Decimal
	StartDate        time.Time
	ExpiryDate       time.Time
	IsActive         bool
	OwnerID          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NormalizeCode returns the canonical form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidAt reports whether the coupon can be applied at the given instant.
// Both window bounds are exclusive.
func (c *Coupon) ValidAt(now time.Time) bool {
	return c.IsActive && c.StartDate.Before(now) && now.Before(c.ExpiryDate)
}

// CheckMinimum returns an *InsufficientCartValueError when total is below the
// coupon's minimum cart value.
func (c *Coupon) CheckMinimum(total decimal.Decimal) error {
	if total.LessThan(c.MinimumCartValue) {
		return &InsufficientCartValueError{
			Code:      c.Code,
			Minimum:   c.MinimumCartValue,
			Shortfall: c.MinimumCartValue.Sub(total),
		}
	}
	return nil
}

// Page selects a window of a listing.
type Page struct {
	Offset int
	Limit  int
}

// Repository provides persistence for coupon definitions.
type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	// Delete removes the coupon, detaching it from carts. It returns ErrInUse
	// when an order references the coupon.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Coupon, error)
	// FindByCode matches the normalized code regardless of activity.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context, p Page) ([]Coupon, int, error)
	// ListValid returns active coupons valid at now with a minimum cart value
	// not above maxMinimum.
	ListValid(ctx context.Context, now time.Time, maxMinimum decimal.Decimal, p Page) ([]Coupon, int, error)
}
