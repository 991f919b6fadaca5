// Package httpmiddleware contains the net/http middleware stack shared by the
// API server: panic recovery, CORS, rate limiting, request ids, request
// scoped logging and OpenTelemetry instrumentation.
package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware is the outermost one,
// so Wrap(h, a, b) serves requests as a(b(h)).
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// routeContext returns the chi routing context of r, installing an empty one
// when the request has not passed through a chi router yet. A chi.Mux reuses
// a context it finds on the request, which lets middleware mounted in front
// of the router read the matched pattern once the handler returns.
func routeContext(r *http.Request) (*http.Request, *chi.Context) {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return r, rctx
	}
	rctx := chi.NewRouteContext()
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx)), rctx
}

// routePattern is the matched route of a served request, or "unmatched".
func routePattern(rctx *chi.Context) string {
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return "unmatched"
}

// writeError writes the API error envelope. The shape matches the envelope
// produced by the API handlers so that clients see one format.
func writeError(w http.ResponseWriter, status int, msg string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("statusCode", func(e *jx.Encoder) { e.Int(status) })
		e.Field("data", func(e *jx.Encoder) { e.Null() })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
		e.Field("errors", func(e *jx.Encoder) { e.ArrEmpty() })
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// statusRecorder captures the status code and body size written by the
// wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
