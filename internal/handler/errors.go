package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-commerce/internal/domain/address"
	"github.com/xenking/kart-commerce/internal/domain/auth"
	"github.com/xenking/kart-commerce/internal/domain/cart"
	"github.com/xenking/kart-commerce/internal/domain/coupon"
	"github.com/xenking/kart-commerce/internal/domain/field"
	"github.com/xenking/kart-commerce/internal/domain/order"
	"github.com/xenking/kart-commerce/internal/domain/payment"
	"github.com/xenking/kart-commerce/internal/domain/product"
)

var (
	badRequest = []error{
		errBadBody,
		coupon.ErrInvalidCoupon,
		coupon.ErrMinimumBelowDiscount,
		order.ErrEmptyCart,
		order.ErrProviderUnavailable,
		payment.ErrInvalidSignature,
	}
	notFound = []error{
		product.ErrNotFound,
		product.ErrCategoryNotFound,
		coupon.ErrNotFound,
		address.ErrNotFound,
		order.ErrNotFound,
	}
	conflict = []error{
		coupon.ErrInUse,
		address.ErrInUse,
		product.ErrDuplicateCategory,
		order.ErrAlreadyDelivered,
		order.ErrAlreadyCancelled,
	}
)

// writeError maps err onto the error envelope. Anything not recognised is
// logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		fieldErrs field.Errors
		bodyErr   fieldErr
		stockErr  *cart.InsufficientStockError
		valueErr  *coupon.InsufficientCartValueError
		dupErr    *coupon.DuplicateCodeError
		upErr     *payment.UpstreamError
	)
	switch {
	case errors.As(err, &fieldErrs):
		details := make([]fieldMessage, len(fieldErrs))
		for i, fe := range fieldErrs {
			details[i] = fieldMessage{Field: fe.Name, Message: fe.Message}
		}
		writeFailure(w, http.StatusBadRequest, fieldErrs.Error(), details)
	case errors.As(err, &bodyErr):
		writeFailure(w, http.StatusBadRequest, bodyErr.Message, []fieldMessage{{Field: bodyErr.Field, Message: bodyErr.Message}})
	case errors.As(err, &stockErr):
		writeFailure(w, http.StatusBadRequest, stockErr.Error(), []fieldMessage{{Field: "quantity", Message: stockErr.Error()}})
	case errors.As(err, &valueErr):
		writeFailure(w, http.StatusBadRequest, valueErr.Error(), []fieldMessage{
			{Field: "minimumCartValue", Message: valueErr.Minimum.StringFixed(2)},
			{Field: "shortfall", Message: valueErr.Shortfall.StringFixed(2)},
		})
	case errors.As(err, &dupErr):
		writeMessage(w, http.StatusConflict, dupErr.Error())
	case errors.As(err, &upErr):
		zctx.From(r.Context()).Warn("Payment provider failed", zap.Error(err))
		writeMessage(w, http.StatusBadGateway, upErr.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, auth.ErrUnauthorized.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeMessage(w, http.StatusForbidden, auth.ErrForbidden.Error())
	default:
		if target, ok := match(err, badRequest); ok {
			writeMessage(w, http.StatusBadRequest, target.Error())
			return
		}
		if target, ok := match(err, notFound); ok {
			writeMessage(w, http.StatusNotFound, target.Error())
			return
		}
		if target, ok := match(err, conflict); ok {
			writeMessage(w, http.StatusConflict, target.Error())
			return
		}
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func match(err error, targets []error) (error, bool) {
	for _, t := range targets {
		if errors.Is(err, t) {
			return t, true
		}
	}
	return nil, false
}
