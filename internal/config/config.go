package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Storage
	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"sqlite"`
	DatabaseURL    string `envconfig:"DATABASE_URL" default:"shiplite.db"`
	RedisURL       string `envconfig:"REDIS_URL"`
	CredentialKey  string `envconfig:"CREDENTIAL_KEY"`

	// Shopify
	ShopifyAPIVersion string `envconfig:"SHOPIFY_API_VERSION" default:"2024-01"`
	ShopifyUseMock    bool   `envconfig:"SHOPIFY_USE_MOCK" default:"false"`

	// Rate provider
	RateProvider    string `envconfig:"RATE_PROVIDER" default:"easypost"`
	EasyPostAPIKey  string `envconfig:"EASYPOST_API_KEY"`
	EasyPostBaseURL string `envconfig:"EASYPOST_BASE_URL" default:"https://api.easypost.com/v2"`
	EasyPostUseMock bool   `envconfig:"EASYPOST_USE_MOCK" default:"false"`

	// Fulfillment
	RemoteTimeout   time.Duration `envconfig:"REMOTE_TIMEOUT" default:"30s"`
	PurchaseLockTTL time.Duration `envconfig:"PURCHASE_LOCK_TTL" default:"2m"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"shiplite"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LockMargin is the slack kept between the last remote call of a purchase
// and the expiry of its lock.
const LockMargin = 10 * time.Second

// MinPurchaseLockTTL is the shortest purchase lock that outlives a purchase
// whose three remote calls each run up to remoteTimeout.
func MinPurchaseLockTTL(remoteTimeout time.Duration) time.Duration {
	return 3*remoteTimeout + LockMargin
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	switch strings.ToLower(c.DatabaseDriver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT must be positive, got %s", c.RemoteTimeout)
	}
	// The purchase lock covers three remote calls: buy the label, list
	// fulfillment orders and create the fulfillment.
	if minTTL := MinPurchaseLockTTL(c.RemoteTimeout); c.PurchaseLockTTL < minTTL {
		return fmt.Errorf("PURCHASE_LOCK_TTL (%s) must be at least 3 x REMOTE_TIMEOUT + %s (%s)", c.PurchaseLockTTL, LockMargin, minTTL)
	}
	return nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("shiplite.rate_provider", c.RateProvider),
		attribute.String("shiplite.database_driver", c.DatabaseDriver),
		attribute.Bool("shiplite.redis_lock", c.RedisURL != ""),
	}
}
