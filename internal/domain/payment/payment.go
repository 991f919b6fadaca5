// Package payment defines the narrow contract checkout needs from a payment
// provider.
package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method identifies a payment provider.
type Method string

const (
	MethodUnknown  Method = "UNKNOWN"
	MethodRazorpay Method = "RAZORPAY"
	MethodPayPal   Method = "PAYPAL"
)

// ParseMethod maps a route segment such as "razorpay" to a Method.
func ParseMethod(s string) (Method, bool) {
	switch s {
	case "razorpay", string(MethodRazorpay):
		return MethodRazorpay, true
	case "paypal", string(MethodPayPal):
		return MethodPayPal, true
	default:
		return MethodUnknown, false
	}
}

// ErrInvalidSignature is returned when a payment confirmation cannot be
// authenticated or the payment was not captured.
var ErrInvalidSignature = errors.New("Invalid payment signature")

// UpstreamError wraps a failure reported by a payment provider.
type UpstreamError struct {
	Provider Method
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s payment provider failed", e.Provider)
	}
	return e.Message
}

// Charge is the amount to collect for one order. Amount is in rupees.
type Charge struct {
	Amount  decimal.Decimal
	Receipt string
}

// Intent is the provider-side order created for a Charge.
type Intent struct {
	// ID is the provider order id, stored as the order's payment id.
	ID string
	// Amount and Currency are what the provider will collect, after any
	// minor-unit or currency conversion.
	Amount   string
	Currency string
	// Raw is the provider response passed back to the client.
	Raw map[string]any
}

// Confirmation carries what the client received from the provider.
type Confirmation struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Provider creates and confirms payments with one provider.
type Provider interface {
	Method() Method
	CreateIntent(ctx context.Context, c Charge) (*Intent, error)
	// Confirm authenticates or captures the payment for c.OrderID. It
	// returns ErrInvalidSignature when the payment is not genuine or not
	// completed.
	Confirm(ctx context.Context, c Confirmation) error
}
