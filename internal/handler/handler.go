// Package handler exposes the commerce services over HTTP under /api/v1.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/kart-commerce/internal/domain/address"
	"github.com/xenking/kart-commerce/internal/domain/auth"
	"github.com/xenking/kart-commerce/internal/domain/cart"
	"github.com/xenking/kart-commerce/internal/domain/coupon"
	"github.com/xenking/kart-commerce/internal/domain/order"
	"github.com/xenking/kart-commerce/internal/domain/payment"
	"github.com/xenking/kart-commerce/internal/domain/product"
)

// Carts is the cart and coupon-application surface.
type Carts interface {
	View(ctx context.Context, ownerID string) (*cart.View, error)
	AddOrSetItem(ctx context.Context, ownerID, productID string, quantity int) (*cart.View, error)
	RemoveItem(ctx context.Context, ownerID, productID string) (*cart.View, error)
	Clear(ctx context.Context, ownerID string) (*cart.View, error)
	ApplyCoupon(ctx context.Context, ownerID, code string) (*cart.View, error)
	RemoveCoupon(ctx context.Context, ownerID string) (*cart.View, error)
	AvailableCoupons(ctx context.Context, ownerID string, p coupon.Page) ([]coupon.Coupon, int, error)
}

// Coupons is coupon administration.
type Coupons interface {
	Create(ctx context.Context, ownerID string, in coupon.Input) (*coupon.Coupon, error)
	Update(ctx context.Context, id string, in coupon.Input) (*coupon.Coupon, error)
	SetActive(ctx context.Context, id string, active bool) (*coupon.Coupon, error)
	Delete(ctx context.Context, id string) (*coupon.Coupon, error)
	Get(ctx context.Context, id string) (*coupon.Coupon, error)
	List(ctx context.Context, p coupon.Page) ([]coupon.Coupon, int, error)
}

// Orders is checkout, payment verification and order queries.
type Orders interface {
	Checkout(ctx context.Context, customer auth.Identity, method payment.Method, addressID string) (*order.CheckoutResult, error)
	Verify(ctx context.Context, customer auth.Identity, method payment.Method, c payment.Confirmation) (*order.Order, error)
	UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error)
	Get(ctx context.Context, caller auth.Identity, id string) (*order.Order, error)
	ListMine(ctx context.Context, caller auth.Identity, offset, limit int) ([]order.Order, int, error)
	List(ctx context.Context, f order.Filter) ([]order.Order, int, error)
}

// Catalog is product and category lookups and administration.
type Catalog interface {
	List(ctx context.Context, f product.Filter) ([]product.Product, int, error)
	Get(ctx context.Context, id string) (*product.Product, error)
	Create(ctx context.Context, ownerID string, in product.Input) (*product.Product, error)
	Update(ctx context.Context, id string, in product.Input) (*product.Product, error)
	Categories(ctx context.Context) ([]product.Category, error)
	CreateCategory(ctx context.Context, ownerID, name string) (*product.Category, error)
}

// Addresses is the owner-scoped address book.
type Addresses interface {
	Create(ctx context.Context, ownerID string, in address.Input) (*address.Address, error)
	Get(ctx context.Context, ownerID, id string) (*address.Address, error)
	List(ctx context.Context, ownerID string, p address.Page) ([]address.Address, int, error)
	Delete(ctx context.Context, ownerID, id string) (*address.Address, error)
}

// TokenVerifier turns a session token into the caller identity.
type TokenVerifier interface {
	Verify(raw string) (auth.Identity, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative product image paths.
	ImageBaseURL string
	// CookieName is the cookie carrying the session token. A Bearer
	// Authorization header is accepted as well.
	CookieName string
}

// Services groups the domain services the Handler delegates to.
type Services struct {
	Carts     Carts
	Coupons   Coupons
	Orders    Orders
	Catalog   Catalog
	Addresses Addresses
	Tokens    TokenVerifier
}

// Handler serves the REST API.
type Handler struct {
	carts     Carts
	coupons   Coupons
	orders    Orders
	catalog   Catalog
	addresses Addresses
	tokens    TokenVerifier

	imageBaseURL string
	cookieName   string
}

// NewHandler constructs a Handler.
func NewHandler(cfg Config, s Services) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "accessToken"
	}
	return &Handler{
		carts:        s.Carts,
		coupons:      s.Coupons,
		orders:       s.Orders,
		catalog:      s.Catalog,
		addresses:    s.Addresses,
		tokens:       s.Tokens,
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		cookieName:   cfg.CookieName,
	}
}

// Routes returns the API router, to be mounted under /api/v1.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Public catalog.
	r.Get("/products", h.listProducts)
	r.Get("/products/{productId}", h.getProduct)
	r.Get("/categories", h.listCategories)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Route("/carts", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Post("/item/{productId}", h.addOrSetItem)
			r.Delete("/item/{productId}", h.removeItem)
			r.Delete("/clear", h.clearCart)
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Post("/c/apply", h.applyCoupon)
			r.Post("/c/remove", h.removeCoupon)
			r.Get("/customer/available", h.availableCoupons)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/", h.listCoupons)
				r.Post("/", h.createCoupon)
				r.Get("/{couponId}", h.getCoupon)
				r.Patch("/{couponId}", h.updateCoupon)
				r.Delete("/{couponId}", h.deleteCoupon)
				r.Patch("/status/{couponId}", h.setCouponStatus)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/provider/{provider}", h.checkout)
			r.Post("/provider/{provider}/verify-payment", h.verifyPayment)
			r.Get("/list/me", h.listMyOrders)
			r.Get("/{orderId}", h.getOrder)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/list/admin", h.listOrders)
				r.Patch("/status/{orderId}", h.updateOrderStatus)
			})
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", h.listAddresses)
			r.Post("/", h.createAddress)
			r.Get("/{addressId}", h.getAddress)
			r.Delete("/{addressId}", h.deleteAddress)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/products", h.createProduct)
			r.Patch("/products/{productId}", h.updateProduct)
			r.Post("/categories", h.createCategory)
		})
	})

	return r
}
