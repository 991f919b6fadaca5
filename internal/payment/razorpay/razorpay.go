// Package razorpay implements payment.Provider on top of Razorpay orders and
// checkout signatures.
package razorpay

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	rzp "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-commerce/internal/domain/payment"
)

// Currency is the only currency orders are charged in.
const Currency = "INR"

// orderAPI is the subset of the Razorpay orders resource used here.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Provider charges orders through Razorpay.
type Provider struct {
	orders orderAPI
	keyID  string
	secret string
}

var _ payment.Provider = (*Provider)(nil)

// New creates a Provider authenticated with the given key pair.
func New(keyID, keySecret string) *Provider {
	client := rzp.NewClient(keyID, keySecret)
	return &Provider{
		orders: client.Order,
		keyID:  keyID,
		secret: keySecret,
	}
}

func (p *Provider) Method() payment.Method { return payment.MethodRazorpay }

// CreateIntent creates a Razorpay order for the charge in paise.
func (p *Provider) CreateIntent(ctx context.Context, c payment.Charge) (*payment.Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	amount := ToPaise(c.Amount)
	resp, err := p.orders.Create(map[string]interface{}{
		"amount":   amount,
		"currency": Currency,
		"receipt":  c.Receipt,
	}, nil)
	if err != nil {
		return nil, &payment.UpstreamError{Provider: payment.MethodRazorpay, Message: err.Error()}
	}

	id, _ := resp["id"].(string)
	if id == "" {
		return nil, &payment.UpstreamError{
			Provider: payment.MethodRazorpay,
			Message:  "Something went wrong while initialising the razorpay order",
		}
	}
	resp["key"] = p.keyID

	return &payment.Intent{
		ID:       id,
		Amount:   strconv.FormatInt(amount, 10),
		Currency: Currency,
		Raw:      resp,
	}, nil
}

// Confirm checks the checkout signature, an HMAC-SHA256 of
// "order_id|payment_id" keyed with the key secret.
func (p *Provider) Confirm(_ context.Context, c payment.Confirmation) error {
	if c.OrderID == "" || c.PaymentID == "" || c.Signature == "" {
		return payment.ErrInvalidSignature
	}
	attrs := map[string]interface{}{
		"razorpay_order_id":   c.OrderID,
		"razorpay_payment_id": c.PaymentID,
	}
	if !utils.VerifyPaymentSignature(attrs, c.Signature, p.secret) {
		return errors.Wrapf(payment.ErrInvalidSignature, "razorpay order %s", c.OrderID)
	}
	return nil
}

// ToPaise converts rupees to integer paise, rounding half away from zero.
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
