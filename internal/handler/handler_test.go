package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/kart-commerce/internal/domain/address"
	"github.com/xenking/kart-commerce/internal/domain/auth"
	"github.com/xenking/kart-commerce/internal/domain/cart"
	"github.com/xenking/kart-commerce/internal/domain/coupon"
	"github.com/xenking/kart-commerce/internal/domain/field"
	"github.com/xenking/kart-commerce/internal/domain/order"
	"github.com/xenking/kart-commerce/internal/domain/payment"
	"github.com/xenking/kart-commerce/internal/domain/product"
)

// --- Mock implementations ---

type mockTokens map[string]auth.Identity

func (m mockTokens) Verify(raw string) (auth.Identity, error) {
	id, ok := m[raw]
	if !ok {
		return auth.Identity{}, auth.ErrUnauthorized
	}
	return id, nil
}

type mockCarts struct {
	view *cart.View
	err  error

	ownerID   string
	productID string
	quantity  int
	code      string
	page      coupon.Page
	coupons   []coupon.Coupon
}

func (m *mockCarts) result(ownerID string) (*cart.View, error) {
	m.ownerID = ownerID
	return m.view, m.err
}

func (m *mockCarts) View(_ context.Context, ownerID string) (*cart.View, error) {
	return m.result(ownerID)
}

func (m *mockCarts) AddOrSetItem(_ context.Context, ownerID, productID string, quantity int) (*cart.View, error) {
	m.productID, m.quantity = productID, quantity
	return m.result(ownerID)
}

func (m *mockCarts) RemoveItem(_ context.Context, ownerID, productID string) (*cart.View, error) {
	m.productID = productID
	return m.result(ownerID)
}

func (m *mockCarts) Clear(_ context.Context, ownerID string) (*cart.View, error) {
	return m.result(ownerID)
}

func (m *mockCarts) ApplyCoupon(_ context.Context, ownerID, code string) (*cart.View, error) {
	m.code = code
	return m.result(ownerID)
}

func (m *mockCarts) RemoveCoupon(_ context.Context, ownerID string) (*cart.View, error) {
	return m.result(ownerID)
}

func (m *mockCarts) AvailableCoupons(_ context.Context, ownerID string, p coupon.Page) ([]coupon.Coupon, int, error) {
	m.ownerID, m.page = ownerID, p
	return m.coupons, len(m.coupons), m.err
}

type mockCoupons struct {
	coupon *coupon.Coupon
	err    error

	in     coupon.Input
	active *bool
}

func (m *mockCoupons) Create(_ context.Context, _ string, in coupon.Input) (*coupon.Coupon, error) {
	m.in = in
	return m.coupon, m.err
}

func (m *mockCoupons) Update(_ context.Context, _ string, in coupon.Input) (*coupon.Coupon, error) {
	m.in = in
	return m.coupon, m.err
}

func (m *mockCoupons) SetActive(_ context.Context, _ string, active bool) (*coupon.Coupon, error) {
	m.active = &active
	return m.coupon, m.err
}

func (m *mockCoupons) Delete(context.Context, string) (*coupon.Coupon, error) { return m.coupon, m.err }
func (m *mockCoupons) Get(context.Context, string) (*coupon.Coupon, error)    { return m.coupon, m.err }

func (m *mockCoupons) List(context.Context, coupon.Page) ([]coupon.Coupon, int, error) {
	if m.coupon == nil {
		return nil, 0, m.err
	}
	return []coupon.Coupon{*m.coupon}, 1, m.err
}

type mockOrders struct {
	order  *order.Order
	intent *payment.Intent
	err    error

	method       payment.Method
	addressID    string
	confirmation payment.Confirmation
	status       order.Status
	filter       order.Filter
}

func (m *mockOrders) Checkout(_ context.Context, _ auth.Identity, method payment.Method, addressID string) (*order.CheckoutResult, error) {
	m.method, m.addressID = method, addressID
	if m.err != nil {
		return nil, m.err
	}
	return &order.CheckoutResult{Order: m.order, Intent: m.intent}, nil
}

func (m *mockOrders) Verify(_ context.Context, _ auth.Identity, method payment.Method, c payment.Confirmation) (*order.Order, error) {
	m.method, m.confirmation = method, c
	return m.order, m.err
}

func (m *mockOrders) UpdateStatus(_ context.Context, _ string, status order.Status) (*order.Order, error) {
	m.status = status
	if m.err != nil {
		return nil, m.err
	}
	o := *m.order
	o.Status = status
	return &o, nil
}

func (m *mockOrders) Get(context.Context, auth.Identity, string) (*order.Order, error) {
	return m.order, m.err
}

func (m *mockOrders) ListMine(_ context.Context, c auth.Identity, offset, limit int) ([]order.Order, int, error) {
	return m.List(context.Background(), order.Filter{CustomerID: c.UserID, Offset: offset, Limit: limit})
}

func (m *mockOrders) List(_ context.Context, f order.Filter) ([]order.Order, int, error) {
	m.filter = f
	if m.order == nil {
		return nil, 0, m.err
	}
	return []order.Order{*m.order}, 1, m.err
}

type mockCatalog struct {
	products []product.Product
	total    int
	err      error

	filter product.Filter
	in     product.Input
}

func (m *mockCatalog) List(_ context.Context, f product.Filter) ([]product.Product, int, error) {
	m.filter = f
	return m.products, m.total, m.err
}

func (m *mockCatalog) Get(_ context.Context, id string) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockCatalog) Create(_ context.Context, ownerID string, in product.Input) (*product.Product, error) {
	m.in = in
	if m.err != nil {
		return nil, m.err
	}
	return &product.Product{ID: "new", Name: *in.Name, Price: *in.Price, Stock: *in.Stock, OwnerID: ownerID}, nil
}

func (m *mockCatalog) Update(context.Context, string, product.Input) (*product.Product, error) {
	return nil, m.err
}

func (m *mockCatalog) Categories(context.Context) ([]product.Category, error) {
	return []product.Category{{ID: "c1", Name: "Shoes"}}, m.err
}

func (m *mockCatalog) CreateCategory(context.Context, string, string) (*product.Category, error) {
	return nil, m.err
}

type mockAddresses struct {
	addr *address.Address
	err  error

	in address.Input
}

func (m *mockAddresses) Create(_ context.Context, ownerID string, in address.Input) (*address.Address, error) {
	m.in = in
	if m.err != nil {
		return nil, m.err
	}
	return &address.Address{ID: "a1", OwnerID: ownerID, AddressLine1: in.AddressLine1, City: in.City}, nil
}

func (m *mockAddresses) Get(context.Context, string, string) (*address.Address, error) {
	return m.addr, m.err
}

func (m *mockAddresses) List(context.Context, string, address.Page) ([]address.Address, int, error) {
	return nil, 0, m.err
}

func (m *mockAddresses) Delete(context.Context, string, string) (*address.Address, error) {
	return m.addr, m.err
}

// --- Helpers ---

const (
	userToken  = "user-token"
	adminToken = "admin-token"
)

type fixture struct {
	carts     *mockCarts
	coupons   *mockCoupons
	orders    *mockOrders
	catalog   *mockCatalog
	addresses *mockAddresses
	logs      *observer.ObservedLogs
	handler   http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		carts:     &mockCarts{},
		coupons:   &mockCoupons{},
		orders:    &mockOrders{},
		catalog:   &mockCatalog{},
		addresses: &mockAddresses{},
	}
	h := NewHandler(Config{ImageBaseURL: "https://cdn.example.com/"}, Services{
		Carts:     f.carts,
		Coupons:   f.coupons,
		Orders:    f.orders,
		Catalog:   f.catalog,
		Addresses: f.addresses,
		Tokens: mockTokens{
			userToken:  {UserID: "u1", Role: auth.RoleUser},
			adminToken: {UserID: "admin", Role: auth.RoleAdmin},
		},
	})
	core, logs := observer.New(zapcore.DebugLevel)
	f.logs = logs
	routes := h.Routes()
	f.handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		routes.ServeHTTP(w, r.WithContext(zctx.Base(r.Context(), zap.New(core))))
	})
	return f
}

type response struct {
	Code int
	Body map[string]any
}

func (r response) data() map[string]any {
	d, _ := r.Body["data"].(map[string]any)
	return d
}

func (r response) errs() []any {
	e, _ := r.Body["errors"].([]any)
	return e
}

func (f *fixture) do(t *testing.T, method, path, token, body string) response {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	return response{Code: w.Code, Body: decoded}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleView() *cart.View {
	cp := &coupon.Coupon{ID: "cp1", Code: "SAVE30", Type: coupon.TypeFlat, DiscountValue: dec("30"), MinimumCartValue: dec("100"), IsActive: true}
	return &cart.View{
		OwnerID: "u1",
		Items: []cart.Line{
			{Product: product.Product{ID: "A", Name: "Alpha", Price: dec("100"), Stock: 5, MainImage: "img/a.png"}, Quantity: 2},
			{Product: product.Product{ID: "B", Name: "Beta", Price: dec("50"), Stock: 4}, Quantity: 1},
		},
		Coupon:          cp,
		CartTotal:       dec("250"),
		DiscountedTotal: dec("220"),
	}
}

func sampleOrder() *order.Order {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &order.Order{
		ID:                   "o1",
		CustomerID:           "u1",
		AddressID:            "a1",
		CouponID:             "cp1",
		Items:                []order.Item{{ProductID: "A", Quantity: 2}, {ProductID: "B", Quantity: 1}},
		OrderPrice:           dec("250"),
		DiscountedOrderPrice: dec("220"),
		PaymentProvider:      payment.MethodRazorpay,
		PaymentID:            "order_rzp_1",
		Status:               order.StatusPending,
		CreatedAt:            at,
		UpdatedAt:            at,
	}
}

// --- Tests ---

func TestAuthentication(t *testing.T) {
	f := newFixture()
	f.carts.view = &cart.View{OwnerID: "u1", Items: []cart.Line{}}

	tests := []struct {
		name     string
		path     string
		setup    func(r *http.Request)
		wantCode int
		wantMsg  string
	}{
		{name: "missing token", path: "/carts", wantCode: http.StatusUnauthorized, wantMsg: "Unauthorized request"},
		{
			name:     "unknown token",
			path:     "/carts",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantCode: http.StatusUnauthorized,
			wantMsg:  "Unauthorized request",
		},
		{
			name:     "cookie",
			path:     "/carts",
			setup:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "accessToken", Value: userToken}) },
			wantCode: http.StatusOK,
			wantMsg:  "Cart fetched successfully",
		},
		{
			name:     "bearer header",
			path:     "/carts",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "bearer "+userToken) },
			wantCode: http.StatusOK,
			wantMsg:  "Cart fetched successfully",
		},
		{
			name:     "admin route as user",
			path:     "/orders/list/admin",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+userToken) },
			wantCode: http.StatusForbidden,
			wantMsg:  "You are not allowed to perform this action",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.setup != nil {
				tt.setup(req)
			}
			w := httptest.NewRecorder()
			f.handler.ServeHTTP(w, req)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantMsg, body["message"])
			assert.Equal(t, float64(tt.wantCode), body["statusCode"])
			assert.Equal(t, tt.wantCode == http.StatusOK, body["success"])
		})
	}
}

func TestGetCart(t *testing.T) {
	f := newFixture()
	f.carts.view = sampleView()

	res := f.do(t, http.MethodGet, "/carts", userToken, "")

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "u1", f.carts.ownerID)
	data := res.data()
	assert.Equal(t, 250.0, data["cartTotal"])
	assert.Equal(t, 220.0, data["discountedTotal"])
	items := data["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, 2.0, first["quantity"])
	assert.Equal(t, 200.0, first["subtotal"])
	assert.Equal(t, "https://cdn.example.com/img/a.png", first["product"].(map[string]any)["mainImage"])
	assert.Equal(t, "SAVE30", data["coupon"].(map[string]any)["couponCode"])
}

func TestAddOrSetItem(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		err       error
		wantCode  int
		wantQty   int
		wantMsg   string
		wantField string
	}{
		{name: "explicit quantity", body: `{"quantity":3}`, wantCode: http.StatusOK, wantQty: 3, wantMsg: "Item added successfully"},
		{name: "default quantity", body: ``, wantCode: http.StatusOK, wantQty: 1, wantMsg: "Item added successfully"},
		{name: "non integer quantity", body: `{"quantity":"two"}`, wantCode: http.StatusBadRequest, wantMsg: "quantity must be an integer", wantField: "quantity"},
		{name: "malformed body", body: `{"quantity":1`, wantCode: http.StatusBadRequest, wantMsg: "Invalid request body"},
		{
			name:      "insufficient stock",
			body:      `{"quantity":9}`,
			err:       &cart.InsufficientStockError{ProductID: "A", Requested: 9, Remaining: 5},
			wantCode:  http.StatusBadRequest,
			wantQty:   9,
			wantMsg:   "Only 5 products are remaining. But you are adding 9",
			wantField: "quantity",
		},
		{
			name:     "unknown product",
			body:     `{"quantity":1}`,
			err:      product.ErrNotFound,
			wantCode: http.StatusNotFound,
			wantQty:  1,
			wantMsg:  "Product not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.carts.view = sampleView()
			f.carts.err = tt.err

			res := f.do(t, http.MethodPost, "/carts/item/A", userToken, tt.body)

			assert.Equal(t, tt.wantCode, res.Code)
			assert.Equal(t, tt.wantMsg, res.Body["message"])
			assert.Equal(t, tt.wantQty, f.carts.quantity)
			if tt.wantQty > 0 {
				assert.Equal(t, "A", f.carts.productID)
			}
			if tt.wantField != "" {
				require.Len(t, res.errs(), 1)
				assert.Contains(t, res.errs()[0], tt.wantField)
			}
			if tt.wantCode != http.StatusOK {
				assert.Nil(t, res.Body["data"])
			}
		})
	}
}

func TestRemoveAndClearCart(t *testing.T) {
	f := newFixture()
	f.carts.view = &cart.View{OwnerID: "u1", Items: []cart.Line{}}

	res := f.do(t, http.MethodDelete, "/carts/item/B", userToken, "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "B", f.carts.productID)
	assert.Nil(t, res.data()["coupon"])
	assert.Equal(t, 0.0, res.data()["cartTotal"])

	res = f.do(t, http.MethodDelete, "/carts/clear", userToken, "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Cart has been cleared", res.Body["message"])
}

func TestApplyCoupon(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantCode   int
		wantMsg    string
		wantErrors []any
	}{
		{name: "applied", body: `{"couponCode":" save30 "}`, wantCode: http.StatusOK, wantMsg: "Coupon applied successfully"},
		{
			name:       "missing code",
			body:       `{}`,
			wantCode:   http.StatusBadRequest,
			wantMsg:    "Coupon code is required",
			wantErrors: []any{map[string]any{"couponCode": "Coupon code is required"}},
		},
		{name: "invalid", body: `{"couponCode":"NOPE"}`, err: coupon.ErrInvalidCoupon, wantCode: http.StatusBadRequest, wantMsg: "Invalid coupon code"},
		{
			name:     "below minimum",
			body:     `{"couponCode":"BIG"}`,
			err:      &coupon.InsufficientCartValueError{Code: "BIG", Minimum: dec("200"), Shortfall: dec("50")},
			wantCode: http.StatusBadRequest,
			wantMsg:  "Add items worth 50.00 more to apply this coupon",
			wantErrors: []any{
				map[string]any{"minimumCartValue": "200.00"},
				map[string]any{"shortfall": "50.00"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.carts.view = sampleView()
			f.carts.err = tt.err

			res := f.do(t, http.MethodPost, "/coupons/c/apply", userToken, tt.body)

			assert.Equal(t, tt.wantCode, res.Code)
			assert.Equal(t, tt.wantMsg, res.Body["message"])
			if tt.wantErrors != nil {
				assert.Equal(t, tt.wantErrors, res.errs())
			}
		})
	}

	t.Run("raw code reaches the service", func(t *testing.T) {
		f := newFixture()
		f.carts.view = sampleView()
		f.do(t, http.MethodPost, "/coupons/c/apply", userToken, `{"couponCode":" save30 "}`)
		assert.Equal(t, " save30 ", f.carts.code)
	})
}

func TestRemoveCouponIsIdempotent(t *testing.T) {
	f := newFixture()
	f.carts.view = &cart.View{OwnerID: "u1", Items: []cart.Line{}}

	for range 2 {
		res := f.do(t, http.MethodPost, "/coupons/c/remove", userToken, "")
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Nil(t, res.data()["coupon"])
	}
}

func TestAvailableCoupons_Pagination(t *testing.T) {
	f := newFixture()
	f.carts.coupons = []coupon.Coupon{{ID: "c1", Code: "SAVE10"}, {ID: "c2", Code: "SAVE20"}}

	res := f.do(t, http.MethodGet, "/coupons/customer/available?page=2&limit=1", userToken, "")

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, coupon.Page{Offset: 1, Limit: 1}, f.carts.page)
	data := res.data()
	assert.Len(t, data["coupons"], 2)
	assert.Equal(t, 2.0, data["totalCoupons"])
	assert.Equal(t, 2.0, data["totalPages"])
	assert.Equal(t, 2.0, data["serialNumberStartFrom"])
	assert.Equal(t, true, data["hasPrevPage"])
	assert.Equal(t, false, data["hasNextPage"])
	assert.Equal(t, 1.0, data["prevPage"])
	assert.Nil(t, data["nextPage"])
}

func TestCouponAdmin(t *testing.T) {
	t.Run("create decodes every field", func(t *testing.T) {
		f := newFixture()
		f.coupons.coupon = &coupon.Coupon{ID: "c1", Code: "SAVE10", DiscountValue: dec("10"), MinimumCartValue: dec("50")}

		res := f.do(t, http.MethodPost, "/coupons", adminToken, `{
			"name":"Ten off","couponCode":"save10","type":"FLAT",
			"discountValue":10,"minimumCartValue":"50.5",
			"startDate":"2024-01-01T00:00:00Z","expiryDate":"2024-12-31"
		}`)

		require.Equal(t, http.StatusCreated, res.Code)
		in := f.coupons.in
		assert.Equal(t, "Ten off", *in.Name)
		assert.Equal(t, "save10", *in.Code)
		assert.True(t, dec("10").Equal(*in.DiscountValue))
		assert.True(t, dec("50.5").Equal(*in.MinimumCartValue))
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *in.StartDate)
		assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), *in.ExpiryDate)
		assert.Equal(t, 10.0, res.data()["discountValue"])
	})

	t.Run("bad date", func(t *testing.T) {
		f := newFixture()
		res := f.do(t, http.MethodPost, "/coupons", adminToken, `{"expiryDate":"tomorrow"}`)
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, []any{map[string]any{"expiryDate": "expiryDate must be an RFC 3339 timestamp"}}, res.errs())
	})

	t.Run("duplicate code", func(t *testing.T) {
		f := newFixture()
		f.coupons.err = &coupon.DuplicateCodeError{Code: "SAVE10"}
		res := f.do(t, http.MethodPost, "/coupons", adminToken, `{"couponCode":"SAVE10"}`)
		assert.Equal(t, http.StatusConflict, res.Code)
		assert.Equal(t, "Coupon with code SAVE10 already exists", res.Body["message"])
	})

	t.Run("validation details", func(t *testing.T) {
		f := newFixture()
		f.coupons.err = field.Errors{{Name: "name", Message: "Name is required"}, {Name: "couponCode", Message: "Coupon code is required"}}
		res := f.do(t, http.MethodPost, "/coupons", adminToken, `{}`)
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Len(t, res.errs(), 2)
	})

	t.Run("status toggle", func(t *testing.T) {
		f := newFixture()
		f.coupons.coupon = &coupon.Coupon{ID: "c1", IsActive: false}
		res := f.do(t, http.MethodPatch, "/coupons/status/c1", adminToken, `{"isActive":false}`)
		assert.Equal(t, http.StatusOK, res.Code)
		require.NotNil(t, f.coupons.active)
		assert.False(t, *f.coupons.active)
		assert.Equal(t, "Coupon is inactive now", res.Body["message"])
	})

	t.Run("delete in use", func(t *testing.T) {
		f := newFixture()
		f.coupons.err = coupon.ErrInUse
		res := f.do(t, http.MethodDelete, "/coupons/c1", adminToken, "")
		assert.Equal(t, http.StatusConflict, res.Code)
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture()
		f.coupons.err = coupon.ErrNotFound
		res := f.do(t, http.MethodGet, "/coupons/missing", adminToken, "")
		assert.Equal(t, http.StatusNotFound, res.Code)
		assert.Equal(t, "Coupon does not exist", res.Body["message"])
	})
}

func TestCheckout(t *testing.T) {
	tests := []struct {
		name       string
		provider   string
		err        error
		wantCode   int
		wantMsg    string
		wantMethod payment.Method
	}{
		{name: "razorpay", provider: "razorpay", wantCode: http.StatusCreated, wantMsg: "Payment order generated successfully", wantMethod: payment.MethodRazorpay},
		{name: "paypal", provider: "paypal", wantCode: http.StatusCreated, wantMsg: "Payment order generated successfully", wantMethod: payment.MethodPayPal},
		{name: "unknown provider", provider: "stripe", wantCode: http.StatusBadRequest, wantMsg: "Payment provider is not available"},
		{name: "empty cart", provider: "razorpay", err: order.ErrEmptyCart, wantCode: http.StatusBadRequest, wantMsg: "User cart is empty", wantMethod: payment.MethodRazorpay},
		{name: "foreign address", provider: "razorpay", err: address.ErrNotFound, wantCode: http.StatusNotFound, wantMsg: "Address does not exist", wantMethod: payment.MethodRazorpay},
		{
			name:       "provider failure",
			provider:   "paypal",
			err:        errors.Wrap(&payment.UpstreamError{Provider: payment.MethodPayPal, Message: "auth failed"}, "create intent"),
			wantCode:   http.StatusBadGateway,
			wantMethod: payment.MethodPayPal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.orders.order = sampleOrder()
			f.orders.intent = &payment.Intent{
				ID:       "order_rzp_1",
				Amount:   "22000",
				Currency: "INR",
				Raw:      map[string]any{"id": "order_rzp_1", "amount": 22000.0, "key": "rzp_key", "notes": []any{}},
			}
			f.orders.err = tt.err

			res := f.do(t, http.MethodPost, "/orders/provider/"+tt.provider, userToken, `{"addressId":"a1"}`)

			assert.Equal(t, tt.wantCode, res.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, res.Body["message"])
			}
			assert.Equal(t, tt.wantMethod, f.orders.method)
			if tt.wantCode != http.StatusCreated {
				return
			}
			assert.Equal(t, "a1", f.orders.addressID)
			data := res.data()
			assert.Equal(t, 220.0, data["order"].(map[string]any)["discountedOrderPrice"])
			pay := data["payment"].(map[string]any)
			assert.Equal(t, "order_rzp_1", pay["id"])
			assert.Equal(t, "22000", pay["amount"])
			assert.Equal(t, "rzp_key", pay["response"].(map[string]any)["key"])
		})
	}
}

func TestVerifyPayment(t *testing.T) {
	t.Run("razorpay fields", func(t *testing.T) {
		f := newFixture()
		paid := sampleOrder()
		paid.IsPaymentDone = true
		f.orders.order = paid

		res := f.do(t, http.MethodPost, "/orders/provider/razorpay/verify-payment", userToken,
			`{"razorpay_order_id":"order_rzp_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`)

		require.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, payment.Confirmation{OrderID: "order_rzp_1", PaymentID: "pay_1", Signature: "sig"}, f.orders.confirmation)
		assert.Equal(t, true, res.data()["isPaymentDone"])
		assert.Equal(t, "Order placed successfully", res.Body["message"])
	})

	t.Run("paypal order id", func(t *testing.T) {
		f := newFixture()
		f.orders.order = sampleOrder()
		f.do(t, http.MethodPost, "/orders/provider/paypal/verify-payment", userToken, `{"orderId":"PP-1"}`)
		assert.Equal(t, payment.MethodPayPal, f.orders.method)
		assert.Equal(t, "PP-1", f.orders.confirmation.OrderID)
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newFixture()
		f.orders.err = payment.ErrInvalidSignature
		res := f.do(t, http.MethodPost, "/orders/provider/razorpay/verify-payment", userToken, `{"razorpay_order_id":"x"}`)
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, "Invalid payment signature", res.Body["message"])
	})
}

func TestUpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantCode   int
		wantStatus order.Status
	}{
		{name: "lower case accepted", body: `{"status":"delivered"}`, wantCode: http.StatusOK, wantStatus: order.StatusDelivered},
		{name: "already delivered", body: `{"status":"CANCELLED"}`, err: order.ErrAlreadyDelivered, wantCode: http.StatusConflict, wantStatus: order.StatusCancelled},
		{name: "unknown order", body: `{"status":"CANCELLED"}`, err: order.ErrNotFound, wantCode: http.StatusNotFound, wantStatus: order.StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.orders.order = sampleOrder()
			f.orders.err = tt.err

			res := f.do(t, http.MethodPatch, "/orders/status/o1", adminToken, tt.body)

			assert.Equal(t, tt.wantCode, res.Code)
			assert.Equal(t, tt.wantStatus, f.orders.status)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, string(tt.wantStatus), res.data()["status"])
			}
		})
	}

	t.Run("users are forbidden", func(t *testing.T) {
		f := newFixture()
		res := f.do(t, http.MethodPatch, "/orders/status/o1", userToken, `{"status":"DELIVERED"}`)
		assert.Equal(t, http.StatusForbidden, res.Code)
		assert.Empty(t, f.orders.status)
	})
}

func TestListOrders(t *testing.T) {
	f := newFixture()
	f.orders.order = sampleOrder()

	res := f.do(t, http.MethodGet, "/orders/list/admin?status=pending&limit=500", adminToken, "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, order.Filter{Status: order.StatusPending, Offset: 0, Limit: maxPageLimit}, f.orders.filter)
	assert.Equal(t, 1.0, res.data()["totalOrders"])

	res = f.do(t, http.MethodGet, "/orders/list/admin?status=lost", adminToken, "")
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodGet, "/orders/list/me", userToken, "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "u1", f.orders.filter.CustomerID)
}

func TestProducts(t *testing.T) {
	f := newFixture()
	f.catalog.products = []product.Product{
		{ID: "p1", Name: "Alpha", Price: dec("9.5"), Stock: 3, MainImage: "https://elsewhere/img.png"},
	}
	f.catalog.total = 11

	res := f.do(t, http.MethodGet, "/products?category=c1&page=3&limit=5", "", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, product.Filter{CategoryID: "c1", Offset: 10, Limit: 5}, f.catalog.filter)
	data := res.data()
	assert.Equal(t, 11.0, data["totalProducts"])
	assert.Equal(t, 3.0, data["totalPages"])
	assert.Equal(t, false, data["hasNextPage"])
	p := data["products"].([]any)[0].(map[string]any)
	assert.Equal(t, 9.5, p["price"])
	assert.Equal(t, "https://elsewhere/img.png", p["mainImage"])

	res = f.do(t, http.MethodGet, "/products/missing", "", "")
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = f.do(t, http.MethodGet, "/categories", "", "")
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestCreateProduct(t *testing.T) {
	f := newFixture()

	res := f.do(t, http.MethodPost, "/products", adminToken, `{"name":"Gamma","price":12.25,"stock":4,"category":"c1"}`)
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, "c1", *f.catalog.in.CategoryID)
	assert.Equal(t, 12.25, res.data()["price"])

	res = f.do(t, http.MethodPost, "/products", userToken, `{}`)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = f.do(t, http.MethodPost, "/products", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAddresses(t *testing.T) {
	f := newFixture()

	res := f.do(t, http.MethodPost, "/addresses", userToken, `{"addressLine1":"1 Main St","city":"Pune","state":"MH","country":"IN","pincode":"411001"}`)
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, address.Input{AddressLine1: "1 Main St", City: "Pune", State: "MH", Country: "IN", Pincode: "411001"}, f.addresses.in)
	assert.Nil(t, res.data()["addressLine2"])

	f.addresses.err = address.ErrInUse
	res = f.do(t, http.MethodDelete, "/addresses/a1", userToken, "")
	assert.Equal(t, http.StatusConflict, res.Code)

	f.addresses.err = address.ErrNotFound
	res = f.do(t, http.MethodGet, "/addresses/a1", userToken, "")
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestInternalErrorsAreHidden(t *testing.T) {
	f := newFixture()
	f.carts.err = errors.Wrap(errors.New("pq: connection reset"), "load cart")

	res := f.do(t, http.MethodGet, "/carts", userToken, "")

	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "Internal server error", res.Body["message"])
	assert.Equal(t, []any{}, res.errs())
	entries := f.logs.FilterMessage("Request failed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "connection reset")
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture()
	res := f.do(t, http.MethodGet, "/nothing/here", "", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Route not found", res.Body["message"])
}
