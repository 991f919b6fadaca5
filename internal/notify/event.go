// Package notify delivers order confirmation events to downstream consumers
// such as the e-mail sender.
package notify

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-commerce/internal/domain/auth"
	"github.com/xenking/kart-commerce/internal/domain/order"
)

// EventOrderConfirmed is the type of the event emitted after payment.
const EventOrderConfirmed = "order.confirmed"

// encodeOrderConfirmed writes the event payload for o.
func encodeOrderConfirmed(e *jx.Encoder, o *order.Order, customer auth.Identity, at time.Time) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(EventOrderConfirmed) })
		e.Field("occurredAt", func(e *jx.Encoder) { e.Str(at.UTC().Format(time.RFC3339)) })
		e.Field("orderId", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("customer", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(customer.UserID) })
				e.Field("email", func(e *jx.Encoder) { e.Str(customer.Email) })
				e.Field("username", func(e *jx.Encoder) { e.Str(customer.Username) })
			})
		})
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
		e.Field("orderPrice", func(e *jx.Encoder) { e.Num(jx.Num(o.OrderPrice.StringFixed(2))) })
		e.Field("discountedOrderPrice", func(e *jx.Encoder) { e.Num(jx.Num(o.DiscountedOrderPrice.StringFixed(2))) })
		e.Field("paymentProvider", func(e *jx.Encoder) { e.Str(string(o.PaymentProvider)) })
		e.Field("paymentId", func(e *jx.Encoder) { e.Str(o.PaymentID) })
	})
}
