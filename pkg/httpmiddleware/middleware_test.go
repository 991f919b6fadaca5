package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// --- Helpers ---

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type envelope struct {
	StatusCode int
	Message    string
	Success    bool
}

func decodeEnvelope(t *testing.T, body string) envelope {
	t.Helper()
	var env envelope
	err := jx.DecodeStr(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "statusCode":
			env.StatusCode, err = d.Int()
		case "message":
			env.Message, err = d.Str()
		case "success":
			env.Success, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	require.NoError(t, err)
	return env
}

// --- Tests ---

func TestWrap_Order(t *testing.T) {
	var calls []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mark("outer"), mark("inner"))
	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, calls)
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), InjectLogger(zap.New(core)), Recovery())

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/carts", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	env := decodeEnvelope(t, w.Body.String())
	assert.Equal(t, 500, env.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "Internal server error", env.Message)
	require.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		reuse  bool
	}{
		{name: "generated", header: "", reuse: false},
		{name: "reused", header: "req-123", reuse: true},
		{name: "too long", header: strings.Repeat("a", 129), reuse: false},
		{name: "control chars", header: "bad\x01id", reuse: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}
			w := serve(h, req)

			assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
			if tt.reuse {
				assert.Equal(t, tt.header, seen)
			} else {
				assert.NotEqual(t, tt.header, seen)
				assert.Len(t, seen, 36)
			}
		})
	}
}

func TestInjectLogger_TagsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Wrap(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("inside")
	}), RequestID(), InjectLogger(zap.New(core)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	serve(h, req)

	entries := logs.FilterMessage("inside").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0].ContextMap()["request_id"])
}

func TestLogRequests_RoutePattern(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := chi.NewRouter()
	r.Get("/orders/{orderId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	h := Wrap(r, InjectLogger(zap.New(core)), LogRequests(), Labeler())

	serve(h, httptest.NewRequest(http.MethodGet, "/orders/42", nil))
	serve(h, httptest.NewRequest(http.MethodGet, "/broken", nil))
	serve(h, httptest.NewRequest(http.MethodGet, "/nope", nil))

	ok := logs.FilterMessage("Request").All()
	require.Len(t, ok, 2)
	assert.Equal(t, "/orders/{orderId}", ok[0].ContextMap()["route"])
	assert.EqualValues(t, http.StatusTeapot, ok[0].ContextMap()["status"])
	assert.Equal(t, "unmatched", ok[1].ContextMap()["route"])
	assert.EqualValues(t, http.StatusNotFound, ok[1].ContextMap()["status"])

	failed := logs.FilterMessage("Request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "/broken", failed[0].ContextMap()["route"])
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		cfg         CORSConfig
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantOrigin  string
		wantCreds   string
		wantMaxAge  string
		wantMethods string
	}{
		{
			name:       "no origin passes through",
			cfg:        CORSConfig{},
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wildcard",
			cfg:        CORSConfig{AllowOrigins: []string{"*"}},
			method:     http.MethodGet,
			origin:     "https://shop.example",
			wantStatus: http.StatusOK,
			wantOrigin: "*",
		},
		{
			name:       "wildcard with credentials echoes origin",
			cfg:        CORSConfig{AllowCredentials: true},
			method:     http.MethodGet,
			origin:     "https://shop.example",
			wantStatus: http.StatusOK,
			wantOrigin: "https://shop.example",
			wantCreds:  "true",
		},
		{
			name:       "listed origin matched case-insensitively",
			cfg:        CORSConfig{AllowOrigins: []string{"https://Shop.example"}},
			method:     http.MethodGet,
			origin:     "https://shop.example",
			wantStatus: http.StatusOK,
			wantOrigin: "https://Shop.example",
		},
		{
			name:       "unlisted origin",
			cfg:        CORSConfig{AllowOrigins: []string{"https://shop.example"}},
			method:     http.MethodGet,
			origin:     "https://evil.example",
			wantStatus: http.StatusOK,
		},
		{
			name:        "preflight",
			cfg:         CORSConfig{AllowOrigins: []string{"https://shop.example"}, MaxAge: 600},
			method:      http.MethodOptions,
			origin:      "https://shop.example",
			preflight:   true,
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "https://shop.example",
			wantMaxAge:  "600",
			wantMethods: "GET, POST, PATCH, DELETE, OPTIONS",
		},
		{
			name:       "preflight from unlisted origin",
			cfg:        CORSConfig{AllowOrigins: []string{"https://shop.example"}},
			method:     http.MethodOptions,
			origin:     "https://evil.example",
			preflight:  true,
			wantStatus: http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/products", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := serve(CORS(tt.cfg)(okHandler()), req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, tt.wantMaxAge, w.Header().Get("Access-Control-Max-Age"))
			assert.Equal(t, tt.wantMethods, w.Header().Get("Access-Control-Allow-Methods"))
		})
	}
}

func TestRateLimit(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	rl.now = func() time.Time { return now }
	h := rl.middleware(okHandler())

	request := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":5555"
		return serve(h, req)
	}

	first := request("10.0.0.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, request("10.0.0.1").Code)

	denied := request("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, denied.Code)
	assert.Equal(t, "30", denied.Header().Get("Retry-After"))
	env := decodeEnvelope(t, denied.Body.String())
	assert.Equal(t, 429, env.StatusCode)
	assert.False(t, env.Success)

	assert.Equal(t, http.StatusOK, request("10.0.0.2").Code, "other clients keep their own bucket")

	now = now.Add(30 * time.Second)
	assert.Equal(t, http.StatusOK, request("10.0.0.1").Code, "one token refills per window/max")

	require.Equal(t, 2, rl.size())
	rl.evict(now.Add(2 * time.Minute))
	assert.Equal(t, 0, rl.size())
}

func TestRateLimitWithCleanup_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := RateLimitWithCleanup(ctx, RateLimitConfig{Max: 1, Window: 10 * time.Millisecond})(okHandler())
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	cancel()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "forwarded chain", header: map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, remote: "9.9.9.9:1", want: "1.1.1.1"},
		{name: "real ip", header: map[string]string{"X-Real-IP": "3.3.3.3"}, remote: "9.9.9.9:1", want: "3.3.3.3"},
		{name: "remote addr", remote: "9.9.9.9:1", want: "9.9.9.9"},
		{name: "remote without port", remote: "9.9.9.9", want: "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
