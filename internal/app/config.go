package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/vendhub/marketplace/internal/domain/pricing"
)

// Config holds the complete application configuration, loadable from
// environment variables (MARKET_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (MARKET_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper  string `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	WebhookSecret string `usage:"Shared secret for payment webhook signatures" flag:"webhook-secret"`
	Pricing       PricingConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// PricingConfig exposes the pricing knobs: tax rate and the shipping fee
// schedule.
type PricingConfig struct {
	TaxRate               string `default:"0.07"  usage:"Tax rate applied after discounts" flag:"tax-rate"`
	FreeShippingThreshold string `default:"50"    usage:"Order subtotal (after discounts) for free standard shipping" flag:"free-shipping-threshold"`
	StandardShippingFee   string `default:"5.99"  usage:"Standard shipping fee" flag:"standard-shipping-fee"`
	ExpressShippingFee    string `default:"15.99" usage:"Express shipping fee" flag:"express-shipping-fee"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "MARKET",
		Files:     []string{"config.yaml", "/etc/marketplace/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set MARKET_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// PricingRules converts the configured knobs into a pricing.Config.
func (c *Config) PricingRules() (pricing.Config, error) {
	out := pricing.DefaultConfig()
	for _, f := range []struct {
		raw  string
		dst  *decimal.Decimal
		name string
	}{
		{c.Pricing.TaxRate, &out.TaxRate, "tax rate"},
		{c.Pricing.FreeShippingThreshold, &out.FreeShippingThreshold, "free shipping threshold"},
		{c.Pricing.StandardShippingFee, &out.StandardShippingFee, "standard shipping fee"},
		{c.Pricing.ExpressShippingFee, &out.ExpressShippingFee, "express shipping fee"},
	} {
		if f.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return out, errors.Wrapf(err, "parsing %s", f.name)
		}
		*f.dst = d
	}
	return out, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's MARKET_-prefixed configuration.
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
