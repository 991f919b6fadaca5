package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-commerce/internal/domain/coupon"
	"github.com/xenking/kart-commerce/internal/domain/field"
)

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	p := parsePage(r)
	coupons, total, err := h.coupons.List(r.Context(), coupon.Page{Offset: p.Offset(), Limit: p.Limit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Coupons fetched successfully",
		encodePage(p, total, "coupons", "totalCoupons", func(e *jx.Encoder) {
			for i := range coupons {
				encodeCoupon(e, &coupons[i])
			}
		}))
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	in, err := decodeCouponInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.coupons.Create(r.Context(), caller(r).UserID, in)
	respondCoupon(w, r, http.StatusCreated, c, err, "Coupon created successfully")
}

func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.Get(r.Context(), chi.URLParam(r, "couponId"))
	respondCoupon(w, r, http.StatusOK, c, err, "Coupon fetched successfully")
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	in, err := decodeCouponInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.coupons.Update(r.Context(), chi.URLParam(r, "couponId"), in)
	respondCoupon(w, r, http.StatusOK, c, err, "Coupon updated successfully")
}

func (h *Handler) setCouponStatus(w http.ResponseWriter, r *http.Request) {
	var active *bool
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "isActive" {
			var err error
			active, err = readBool(d, key)
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if active == nil {
		writeError(w, r, field.Errors{{Name: "isActive", Message: "isActive is required"}})
		return
	}

	c, err := h.coupons.SetActive(r.Context(), chi.URLParam(r, "couponId"), *active)
	msg := "Coupon is inactive now"
	if *active {
		msg = "Coupon is active now"
	}
	respondCoupon(w, r, http.StatusOK, c, err, msg)
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.Delete(r.Context(), chi.URLParam(r, "couponId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Coupon deleted successfully", func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("deletedCoupon", func(e *jx.Encoder) { encodeCoupon(e, c) })
		})
	})
}

func respondCoupon(w http.ResponseWriter, r *http.Request, status int, c *coupon.Coupon, err error, message string) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, message, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

func decodeCouponInput(r *http.Request) (coupon.Input, error) {
	var in coupon.Input
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			in.Name, err = readString(d, key)
		case "couponCode":
			in.Code, err = readString(d, key)
		case "type":
			in.Type, err = readString(d, key)
		case "discountValue":
			in.DiscountValue, err = readDecimal(d, key)
		case "minimumCartValue":
			in.MinimumCartValue, err = readDecimal(d, key)
		case "startDate":
			in.StartDate, err = readTime(d, key)
		case "expiryDate":
			in.ExpiryDate, err = readTime(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	return in, err
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		e.Field("couponCode", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(c.Type)) })
		e.Field("discountValue", func(e *jx.Encoder) { money(e, c.DiscountValue) })
		e.Field("minimumCartValue", func(e *jx.Encoder) { money(e, c.MinimumCartValue) })
		e.Field("startDate", func(e *jx.Encoder) { timestamp(e, c.StartDate) })
		e.Field("expiryDate", func(e *jx.Encoder) { timestamp(e, c.ExpiryDate) })
		e.Field("isActive", func(e *jx.Encoder) { e.Bool(c.IsActive) })
		e.Field("owner", func(e *jx.Encoder) { optString(e, c.OwnerID) })
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, c.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, c.UpdatedAt) })
	})
}
