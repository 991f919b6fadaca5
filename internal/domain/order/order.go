package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-commerce/internal/domain/payment"
)

// Status is the delivery state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCancelled Status = "CANCELLED"
	StatusDelivered Status = "DELIVERED"
)

// ParseStatus validates s as a Status.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusCancelled, StatusDelivered:
		return st, true
	default:
		return "", false
	}
}

var (
	// ErrNotFound is returned for unknown orders and for orders that belong
	// to another customer.
	ErrNotFound = errors.New("Order does not exist")
	// ErrEmptyCart is returned when checking out a cart without items.
	ErrEmptyCart = errors.New("User cart is empty")
	// ErrAlreadyDelivered is returned when changing a delivered order.
	ErrAlreadyDelivered = errors.New("Order is already delivered")
	// ErrAlreadyCancelled is returned when changing or paying a cancelled order.
	ErrAlreadyCancelled = errors.New("Order is already cancelled")
	// ErrProviderUnavailable is returned for a payment method that is not
	// configured.
	ErrProviderUnavailable = errors.New("Payment provider is not available")
)

// Item is one line of the order snapshot.
type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Order is a checkout snapshot. Items, prices and CouponID never change
// after creation.
type Order struct {
	ID                   string
	CustomerID           string
	AddressID            string
	CouponID             string
	Items                []Item
	OrderPrice           decimal.Decimal
	DiscountedOrderPrice decimal.Decimal
	PaymentProvider      payment.Method
	PaymentID            string
	Status               Status
	IsPaymentDone        bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Filter narrows order listings. Empty fields match everything.
type Filter struct {
	CustomerID string
	Status     Status
	Offset     int
	Limit      int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByPayment(ctx context.Context, method payment.Method, paymentID string) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, int, error)
	// UpdateStatus moves the order from one status to another. It reports
	// false when the order is no longer in the from status.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) (bool, error)
	// Fulfill marks the order paid and decrements the stock of every
	// ordered product in a single transaction. It reports false, and leaves
	// stock untouched, when the order was already paid.
	Fulfill(ctx context.Context, id string, at time.Time) (*Order, bool, error)
}
