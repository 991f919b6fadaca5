// Package paypal implements payment.Provider with PayPal Checkout orders.
// Cart totals are in rupees and are converted to US dollars at a configured
// rate before charging.
package paypal

import (
	"context"

	"github.com/go-faster/errors"
	pp "github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-commerce/internal/domain/payment"
)

// Currency is the currency PayPal orders are created in.
const Currency = "USD"

const statusCompleted = "COMPLETED"

// api is the subset of the PayPal client used here.
type api interface {
	GetAccessToken(ctx context.Context) (*pp.TokenResponse, error)
	CreateOrder(ctx context.Context, intent string, units []pp.PurchaseUnitRequest, payer *pp.CreateOrderPayer, appCtx *pp.ApplicationContext) (*pp.Order, error)
	CaptureOrder(ctx context.Context, orderID string, req pp.CaptureOrderRequest) (*pp.CaptureOrderResponse, error)
}

// Config configures the PayPal provider.
type Config struct {
	ClientID string
	Secret   string
	BaseURL  string
	// INRPerUSD is how many rupees make one dollar.
	INRPerUSD decimal.Decimal
}

// Provider charges orders through PayPal.
type Provider struct {
	client api
	rate   decimal.Decimal
}

var _ payment.Provider = (*Provider)(nil)

// New creates a Provider. BaseURL defaults to the sandbox API.
func New(cfg Config) (*Provider, error) {
	if !cfg.INRPerUSD.IsPositive() {
		return nil, errors.Errorf("invalid INR per USD rate %s", cfg.INRPerUSD)
	}
	base := cfg.BaseURL
	if base == "" {
		base = pp.APIBaseSandBox
	}
	client, err := pp.NewClient(cfg.ClientID, cfg.Secret, base)
	if err != nil {
		return nil, errors.Wrap(err, "create paypal client")
	}
	return &Provider{client: client, rate: cfg.INRPerUSD}, nil
}

func (p *Provider) Method() payment.Method { return payment.MethodPayPal }

// ToUSD converts a rupee amount to dollars with two decimals.
func (p *Provider) ToUSD(amount decimal.Decimal) decimal.Decimal {
	return amount.DivRound(p.rate, 2)
}

// CreateIntent creates a PayPal order with CAPTURE intent.
func (p *Provider) CreateIntent(ctx context.Context, c payment.Charge) (*payment.Intent, error) {
	if _, err := p.client.GetAccessToken(ctx); err != nil {
		return nil, upstream(err)
	}

	value := p.ToUSD(c.Amount).StringFixed(2)
	o, err := p.client.CreateOrder(ctx, pp.OrderIntentCapture, []pp.PurchaseUnitRequest{{
		ReferenceID: c.Receipt,
		Amount: &pp.PurchaseUnitAmount{
			Currency: Currency,
			Value:    value,
		},
	}}, nil, nil)
	if err != nil {
		return nil, upstream(err)
	}
	if o.ID == "" {
		return nil, &payment.UpstreamError{
			Provider: payment.MethodPayPal,
			Message:  "Something went wrong while initialising the paypal order",
		}
	}

	links := make([]any, 0, len(o.Links))
	for _, l := range o.Links {
		links = append(links, map[string]any{"href": l.Href, "rel": l.Rel, "method": l.Method})
	}
	return &payment.Intent{
		ID:       o.ID,
		Amount:   value,
		Currency: Currency,
		Raw: map[string]any{
			"id":     o.ID,
			"status": o.Status,
			"links":  links,
		},
	}, nil
}

// Confirm captures the order. Anything but a COMPLETED capture is rejected.
func (p *Provider) Confirm(ctx context.Context, c payment.Confirmation) error {
	if c.OrderID == "" {
		return payment.ErrInvalidSignature
	}
	if _, err := p.client.GetAccessToken(ctx); err != nil {
		return upstream(err)
	}
	resp, err := p.client.CaptureOrder(ctx, c.OrderID, pp.CaptureOrderRequest{})
	if err != nil {
		return upstream(err)
	}
	if resp.Status != statusCompleted {
		return errors.Wrapf(payment.ErrInvalidSignature, "paypal order %s is %s", c.OrderID, resp.Status)
	}
	return nil
}

func upstream(err error) error {
	return &payment.UpstreamError{Provider: payment.MethodPayPal, Message: err.Error()}
}
