package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-commerce/internal/domain/cart"
	"github.com/xenking/kart-commerce/internal/domain/coupon"
	"github.com/xenking/kart-commerce/internal/domain/field"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.carts.View(r.Context(), caller(r).UserID)
	h.respondCart(w, r, v, err, "Cart fetched successfully")
}

func (h *Handler) addOrSetItem(w http.ResponseWriter, r *http.Request) {
	var quantity *int
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "quantity" {
			var err error
			quantity, err = readInt(d, key)
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Quantity defaults to one, as in "add to cart".
	qty := 1
	if quantity != nil {
		qty = *quantity
	}

	v, err := h.carts.AddOrSetItem(r.Context(), caller(r).UserID, chi.URLParam(r, "productId"), qty)
	h.respondCart(w, r, v, err, "Item added successfully")
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	v, err := h.carts.RemoveItem(r.Context(), caller(r).UserID, chi.URLParam(r, "productId"))
	h.respondCart(w, r, v, err, "Cart item removed successfully")
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.carts.Clear(r.Context(), caller(r).UserID)
	h.respondCart(w, r, v, err, "Cart has been cleared")
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var code *string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "couponCode" {
			var err error
			code, err = readString(d, key)
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if code == nil {
		writeError(w, r, field.Errors{{Name: "couponCode", Message: "Coupon code is required"}})
		return
	}

	v, err := h.carts.ApplyCoupon(r.Context(), caller(r).UserID, *code)
	h.respondCart(w, r, v, err, "Coupon applied successfully")
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	v, err := h.carts.RemoveCoupon(r.Context(), caller(r).UserID)
	h.respondCart(w, r, v, err, "Coupon removed successfully")
}

func (h *Handler) availableCoupons(w http.ResponseWriter, r *http.Request) {
	p := parsePage(r)
	coupons, total, err := h.carts.AvailableCoupons(r.Context(), caller(r).UserID, coupon.Page{Offset: p.Offset(), Limit: p.Limit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Customer coupons fetched successfully",
		encodePage(p, total, "coupons", "totalCoupons", func(e *jx.Encoder) {
			for i := range coupons {
				encodeCoupon(e, &coupons[i])
			}
		}))
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, v *cart.View, err error, message string) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message, func(e *jx.Encoder) { h.encodeCartView(e, v) })
}

func (h *Handler) encodeCartView(e *jx.Encoder, v *cart.View) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("owner", func(e *jx.Encoder) { e.Str(v.OwnerID) })
		e.Field("items", func(e *jx.Encoder) {
			e.ArrStart()
			for i := range v.Items {
				line := &v.Items[i]
				e.Obj(func(e *jx.Encoder) {
					e.Field("product", func(e *jx.Encoder) { h.encodeProduct(e, &line.Product) })
					e.Field("quantity", func(e *jx.Encoder) { e.Int(line.Quantity) })
					e.Field("subtotal", func(e *jx.Encoder) { money(e, line.Subtotal()) })
				})
			}
			e.ArrEnd()
		})
		e.Field("coupon", func(e *jx.Encoder) {
			if v.Coupon == nil {
				e.Null()
				return
			}
			encodeCoupon(e, v.Coupon)
		})
		e.Field("cartTotal", func(e *jx.Encoder) { money(e, v.CartTotal) })
		e.Field("discountedTotal", func(e *jx.Encoder) { money(e, v.DiscountedTotal) })
	})
}
