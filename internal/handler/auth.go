package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-commerce/internal/domain/auth"
)

// authenticate resolves the caller from the session cookie or a Bearer
// Authorization header and stores the identity in the request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := h.sessionToken(r)
		if raw == "" {
			writeError(w, r, auth.ErrUnauthorized)
			return
		}
		id, err := h.tokens.Verify(raw)
		if err != nil {
			zctx.From(r.Context()).Debug("Rejected session token", zap.Error(err))
			writeError(w, r, auth.ErrUnauthorized)
			return
		}
		ctx := auth.WithIdentity(r.Context(), id)
		ctx = zctx.With(ctx, zap.String("user_id", id.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) sessionToken(r *http.Request) string {
	if c, err := r.Cookie(h.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// requireAdmin rejects authenticated callers without the ADMIN role.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, r, auth.ErrUnauthorized)
			return
		}
		if !id.IsAdmin() {
			writeError(w, r, auth.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// caller returns the identity stored by authenticate.
func caller(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
