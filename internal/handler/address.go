package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-commerce/internal/domain/address"
)

func (h *Handler) listAddresses(w http.ResponseWriter, r *http.Request) {
	p := parsePage(r)
	addrs, total, err := h.addresses.List(r.Context(), caller(r).UserID, address.Page{Offset: p.Offset(), Limit: p.Limit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Addresses fetched successfully",
		encodePage(p, total, "addresses", "totalAddresses", func(e *jx.Encoder) {
			for i := range addrs {
				encodeAddress(e, &addrs[i])
			}
		}))
}

func (h *Handler) createAddress(w http.ResponseWriter, r *http.Request) {
	var in address.Input
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "addressLine1":
			dst = &in.AddressLine1
		case "addressLine2":
			dst = &in.AddressLine2
		case "city":
			dst = &in.City
		case "state":
			dst = &in.State
		case "country":
			dst = &in.Country
		case "pincode":
			dst = &in.Pincode
		default:
			return d.Skip()
		}
		s, err := readString(d, key)
		*dst = deref(s)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.addresses.Create(r.Context(), caller(r).UserID, in)
	respondAddress(w, r, http.StatusCreated, a, err, "Address created successfully")
}

func (h *Handler) getAddress(w http.ResponseWriter, r *http.Request) {
	a, err := h.addresses.Get(r.Context(), caller(r).UserID, chi.URLParam(r, "addressId"))
	respondAddress(w, r, http.StatusOK, a, err, "Address fetched successfully")
}

func (h *Handler) deleteAddress(w http.ResponseWriter, r *http.Request) {
	a, err := h.addresses.Delete(r.Context(), caller(r).UserID, chi.URLParam(r, "addressId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Address deleted successfully", func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("deletedAddress", func(e *jx.Encoder) { encodeAddress(e, a) })
		})
	})
}

func respondAddress(w http.ResponseWriter, r *http.Request, status int, a *address.Address, err error, message string) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, message, func(e *jx.Encoder) { encodeAddress(e, a) })
}

func encodeAddress(e *jx.Encoder, a *address.Address) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(a.ID) })
		e.Field("owner", func(e *jx.Encoder) { e.Str(a.OwnerID) })
		e.Field("addressLine1", func(e *jx.Encoder) { e.Str(a.AddressLine1) })
		e.Field("addressLine2", func(e *jx.Encoder) { optString(e, a.AddressLine2) })
		e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
		e.Field("state", func(e *jx.Encoder) { e.Str(a.State) })
		e.Field("country", func(e *jx.Encoder) { e.Str(a.Country) })
		e.Field("pincode", func(e *jx.Encoder) { e.Str(a.Pincode) })
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, a.CreatedAt) })
	})
}
