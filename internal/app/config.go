package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete connector configuration, loadable from
// environment variables (LOYALTY_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	Loyalty        LoyaltyConfig
	Commerce       CommerceConfig
	CircuitBreaker BreakerConfig
	Store          StoreConfig
	Events         EventsConfig
	RateLimit      RateLimitConfig
	Graceful       GracefulConfig
}

// LoyaltyConfig holds the loyalty engine endpoint, credentials, and the
// basket mapping rules that vary per deployment.
type LoyaltyConfig struct {
	BaseURL      string `usage:"Loyalty engine base URL" flag:"loyalty-url"`
	ClientID     string `usage:"Loyalty engine client ID" flag:"loyalty-client-id"`
	ClientSecret string `usage:"Loyalty engine client secret" flag:"loyalty-client-secret"`

	UseItemSKU                   bool              `default:"false" usage:"Send variant SKU in the basket sku field instead of upc" flag:"use-item-sku"`
	IncomingIdentifier           string            `usage:"Engine location identifier" flag:"incoming-identifier"`
	ParentIncomingIdentifier     string            `usage:"Engine parent location identifier" flag:"parent-incoming-identifier"`
	ExcludeUnidentifiedCustomers bool              `default:"false" usage:"Skip open offers for carts without a shopper identity" flag:"exclude-unidentified"`
	ShippingMethodMap            map[string]string `usage:"Shipping method key to engine identifier map" flag:"shipping-method-map"`
}

// CommerceConfig holds the commerce platform endpoint and credentials.
type CommerceConfig struct {
	BaseURL    string `usage:"Commerce platform API base URL" flag:"commerce-url"`
	ProjectKey string `usage:"Commerce platform project key" flag:"project-key"`
	AuthToken  string `usage:"Commerce platform bearer token" flag:"commerce-token"`
}

// BreakerConfig controls the circuit breaker guarding engine calls.
type BreakerConfig struct {
	Enabled                  bool          `default:"true"   usage:"Enable the circuit breaker"`
	Timeout                  time.Duration `default:"1800ms" usage:"Per-call timeout, exceeding it counts as a failure"`
	ResetTimeout             time.Duration `default:"30s"    usage:"How long the circuit stays open before a probe"`
	ErrorThresholdPercentage int           `default:"50"     usage:"Rolling failure percentage that trips the circuit" flag:"error-threshold"`
	VolumeThreshold          int           `default:"10"     usage:"Minimum calls in the window before the percentage applies" flag:"volume-threshold"`
}

// StoreConfig selects the backing state store.
type StoreConfig struct {
	Driver      string `default:"postgres" usage:"State store driver: postgres, redis, or memory"`
	DatabaseURL string `usage:"PostgreSQL connection URL (LOYALTY_STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisAddr   string `default:"localhost:6379" usage:"Redis address for the redis driver" flag:"redis-addr"`
}

// EventsConfig controls the notification pipeline.
type EventsConfig struct {
	DisableOrderCreated bool    `default:"false"  usage:"Administratively disable order-created processing" flag:"disable-order-created"`
	DedupeCapacity      uint    `default:"100000" usage:"Expected distinct message IDs for the dedupe pre-filter" flag:"dedupe-capacity"`
	DedupeFPRate        float64 `default:"0.01"   usage:"Target false-positive rate for the dedupe pre-filter" flag:"dedupe-fp-rate"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "LOYALTY",
		Files:     []string{"config.yaml", "/etc/loyalty-bridge/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.Loyalty.BaseURL == "" {
		return nil, errors.New("loyalty engine URL is required: set LOYALTY_LOYALTY_BASE_URL")
	}
	if cfg.Commerce.BaseURL == "" {
		return nil, errors.New("commerce platform URL is required: set LOYALTY_COMMERCE_BASE_URL")
	}
	if cfg.Store.Driver == "postgres" && cfg.Store.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set LOYALTY_STORE_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the application's LOYALTY_-
// prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Store.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Store.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
