package handler

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-commerce/internal/domain/field"
	"github.com/xenking/kart-commerce/internal/domain/order"
	"github.com/xenking/kart-commerce/internal/domain/payment"
)

// checkout serves POST /orders/provider/{provider}.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	method, ok := payment.ParseMethod(chi.URLParam(r, "provider"))
	if !ok {
		writeError(w, r, order.ErrProviderUnavailable)
		return
	}
	var addressID *string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "addressId" {
			var err error
			addressID, err = readString(d, key)
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.orders.Checkout(r.Context(), caller(r), method, deref(addressID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Payment order generated successfully", func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order", func(e *jx.Encoder) { encodeOrder(e, res.Order) })
			e.Field("payment", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("provider", func(e *jx.Encoder) { e.Str(string(method)) })
					e.Field("id", func(e *jx.Encoder) { e.Str(res.Intent.ID) })
					e.Field("amount", func(e *jx.Encoder) { e.Str(res.Intent.Amount) })
					e.Field("currency", func(e *jx.Encoder) { e.Str(res.Intent.Currency) })
					e.Field("response", func(e *jx.Encoder) { encodeAny(e, res.Intent.Raw) })
				})
			})
		})
	})
}

// verifyPayment serves POST /orders/provider/{provider}/verify-payment. The
// body differs per provider: Razorpay posts the checkout handler fields,
// PayPal only the order id.
func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	method, ok := payment.ParseMethod(chi.URLParam(r, "provider"))
	if !ok {
		writeError(w, r, order.ErrProviderUnavailable)
		return
	}
	var c payment.Confirmation
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var (
			s   *string
			err error
		)
		switch key {
		case "razorpay_order_id", "orderId":
			s, err = readString(d, key)
			c.OrderID = deref(s)
		case "razorpay_payment_id":
			s, err = readString(d, key)
			c.PaymentID = deref(s)
		case "razorpay_signature":
			s, err = readString(d, key)
			c.Signature = deref(s)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Verify(r.Context(), caller(r), method, c)
	respondOrder(w, r, o, err, "Order placed successfully")
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), caller(r), chi.URLParam(r, "orderId"))
	respondOrder(w, r, o, err, "Order fetched successfully")
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	p := parsePage(r)
	orders, total, err := h.orders.ListMine(r.Context(), caller(r), p.Offset(), p.Limit)
	respondOrders(w, r, p, orders, total, err)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	p := parsePage(r)
	f := order.Filter{Offset: p.Offset(), Limit: p.Limit}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := order.ParseStatus(strings.ToUpper(raw))
		if !ok {
			writeError(w, r, field.Errors{{Name: "status", Message: "Invalid order status"}})
			return
		}
		f.Status = status
	}
	orders, total, err := h.orders.List(r.Context(), f)
	respondOrders(w, r, p, orders, total, err)
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var raw *string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "status" {
			var err error
			raw, err = readString(d, key)
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := order.Status(strings.ToUpper(strings.TrimSpace(deref(raw))))

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderId"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Order status updated successfully", func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
			e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		})
	})
}

func respondOrder(w http.ResponseWriter, r *http.Request, o *order.Order, err error, message string) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func respondOrders(w http.ResponseWriter, r *http.Request, p page, orders []order.Order, total int, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Orders fetched successfully",
		encodePage(p, total, "orders", "totalOrders", func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		}))
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("customer", func(e *jx.Encoder) { e.Str(o.CustomerID) })
		e.Field("address", func(e *jx.Encoder) { e.Str(o.AddressID) })
		e.Field("coupon", func(e *jx.Encoder) { optString(e, o.CouponID) })
		e.Field("items", func(e *jx.Encoder) {
			e.ArrStart()
			for _, it := range o.Items {
				e.Obj(func(e *jx.Encoder) {
					e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
					e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
				})
			}
			e.ArrEnd()
		})
		e.Field("orderPrice", func(e *jx.Encoder) { money(e, o.OrderPrice) })
		e.Field("discountedOrderPrice", func(e *jx.Encoder) { money(e, o.DiscountedOrderPrice) })
		e.Field("paymentProvider", func(e *jx.Encoder) { e.Str(string(o.PaymentProvider)) })
		e.Field("paymentId", func(e *jx.Encoder) { e.Str(o.PaymentID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("isPaymentDone", func(e *jx.Encoder) { e.Bool(o.IsPaymentDone) })
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, o.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, o.UpdatedAt) })
	})
}

// encodeAny writes a decoded provider response. Map keys are sorted so the
// output is stable.
func encodeAny(e *jx.Encoder, v any) {
	switch v := v.(type) {
	case nil:
		e.Null()
	case string:
		e.Str(v)
	case bool:
		e.Bool(v)
	case int:
		e.Int(v)
	case int64:
		e.Int64(v)
	case float64:
		e.Num(jx.Num(strconv.FormatFloat(v, 'f', -1, 64)))
	case []any:
		e.ArrStart()
		for _, item := range v {
			encodeAny(e, item)
		}
		e.ArrEnd()
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.ObjStart()
		for _, k := range keys {
			e.FieldStart(k)
			encodeAny(e, v[k])
		}
		e.ObjEnd()
	default:
		e.Str(fmt.Sprint(v))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
