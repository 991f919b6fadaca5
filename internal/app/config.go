package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for relative product image paths" flag:"image-base-url"`
	Auth         AuthConfig
	Razorpay     RazorpayConfig
	Paypal       PaypalConfig
	Kafka        KafkaConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// AuthConfig configures session token verification.
type AuthConfig struct {
	Secret     string `usage:"HMAC secret used to verify session tokens (KART_AUTH_SECRET)"`
	CookieName string `default:"accessToken" usage:"Cookie carrying the session token"`
}

// RazorpayConfig enables the Razorpay provider when KeyID is set.
type RazorpayConfig struct {
	KeyID     string `usage:"Razorpay key id"`
	KeySecret string `usage:"Razorpay key secret, also used to verify payment signatures"`
}

// PaypalConfig enables the PayPal provider when ClientID is set.
type PaypalConfig struct {
	ClientID  string `usage:"PayPal REST client id"`
	Secret    string `usage:"PayPal REST client secret"`
	BaseURL   string `default:"https://api-m.sandbox.paypal.com" usage:"PayPal API base URL"`
	INRPerUSD string `default:"83" usage:"Rupees per US dollar used to convert PayPal charges"`
}

// KafkaConfig enables order event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka bootstrap brokers"`
	Topic   string   `default:"kart.orders" usage:"Topic for order events"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	}
	if c.Auth.Secret == "" {
		return errors.New("session token secret is required: set KART_AUTH_SECRET")
	}
	if c.Razorpay.KeyID != "" && c.Razorpay.KeySecret == "" {
		return errors.New("razorpay key secret is required when a key id is set")
	}
	if c.Paypal.ClientID != "" {
		if c.Paypal.Secret == "" {
			return errors.New("paypal secret is required when a client id is set")
		}
		if _, err := c.Paypal.Rate(); err != nil {
			return err
		}
	}
	return nil
}

// Rate parses INRPerUSD.
func (c PaypalConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.INRPerUSD)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse INR per USD rate %q", c.INRPerUSD)
	}
	if !rate.IsPositive() {
		return decimal.Zero, errors.Errorf("INR per USD rate must be positive, got %s", rate)
	}
	return rate, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
