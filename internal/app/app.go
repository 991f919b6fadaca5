package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-commerce/internal/domain/address"
	"github.com/xenking/kart-commerce/internal/domain/auth"
	"github.com/xenking/kart-commerce/internal/domain/cart"
	"github.com/xenking/kart-commerce/internal/domain/coupon"
	"github.com/xenking/kart-commerce/internal/domain/order"
	"github.com/xenking/kart-commerce/internal/domain/payment"
	"github.com/xenking/kart-commerce/internal/domain/product"
	"github.com/xenking/kart-commerce/internal/handler"
	"github.com/xenking/kart-commerce/internal/notify"
	"github.com/xenking/kart-commerce/internal/payment/paypal"
	"github.com/xenking/kart-commerce/internal/payment/razorpay"
	"github.com/xenking/kart-commerce/internal/storage/postgres"
	"github.com/xenking/kart-commerce/pkg/health"
	"github.com/xenking/kart-commerce/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Order notifications go to Kafka when brokers are configured.
	var notifier order.Notifier = notify.NewLog(lg)
	if len(cfg.Kafka.Brokers) > 0 {
		k := notify.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := k.Close(); err != nil {
				lg.Warn("Close kafka writer", zap.Error(err))
			}
		}()
		healthSvc.AddReadinessCheck("kafka", 5*time.Second, health.PingCheck(k))
		notifier = k
		lg.Info("Publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	providers, err := paymentProviders(lg, cfg)
	if err != nil {
		return err
	}

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	addressRepo := postgres.NewAddressRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	// Domain services.
	catalog := product.NewService(productRepo, productRepo)
	coupons := coupon.NewService(couponRepo)
	addresses := address.NewService(addressRepo)
	carts, err := cart.NewService(cartRepo, productRepo, couponRepo, m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create cart service")
	}
	orders, err := order.NewService(orderRepo, carts, addresses, notifier,
		m.TracerProvider(), m.MeterProvider(), providers...)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// HTTP handlers.
	h := handler.NewHandler(
		handler.Config{ImageBaseURL: cfg.ImageBaseURL, CookieName: cfg.Auth.CookieName},
		handler.Services{
			Carts:     carts,
			Coupons:   coupons,
			Orders:    orders,
			Catalog:   catalog,
			Addresses: addresses,
			Tokens:    auth.NewVerifier([]byte(cfg.Auth.Secret)),
		},
	)

	// Router: health endpoints + versioned API on one server.
	mux := chi.NewRouter()
	mux.Get("/livez", healthSvc.LiveEndpoint)
	mux.Get("/readyz", healthSvc.ReadyEndpoint)
	mux.Mount("/api/v1", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.HeaderRequestID},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("kart-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
			httpmiddleware.Labeler(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// paymentProviders builds the providers that have credentials configured.
func paymentProviders(lg *zap.Logger, cfg *Config) ([]payment.Provider, error) {
	var providers []payment.Provider
	if cfg.Razorpay.KeyID != "" {
		providers = append(providers, razorpay.New(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret))
	}
	if cfg.Paypal.ClientID != "" {
		rate, err := cfg.Paypal.Rate()
		if err != nil {
			return nil, err
		}
		p, err := paypal.New(paypal.Config{
			ClientID:  cfg.Paypal.ClientID,
			Secret:    cfg.Paypal.Secret,
			BaseURL:   cfg.Paypal.BaseURL,
			INRPerUSD: rate,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create paypal provider")
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		lg.Warn("No payment provider configured, checkout is disabled")
	}
	return providers, nil
}
