package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingRackbeatURL   = errors.New("RACKBEAT_BASE_URL is not set")
	ErrMissingRackbeatToken = errors.New("RACKBEAT_API_TOKEN is not set")
	ErrMissingShopifyShop   = errors.New("SHOPIFY_SHOP_DOMAIN or SHOPIFY_BASE_URL must be set")
	ErrMissingShopifyToken  = errors.New("SHOPIFY_ACCESS_TOKEN is not set")
	ErrInvalidSyncMode      = errors.New("SYNC_MODE must be skip-existing or overwrite")
)

type Config struct {
	Rackbeat RackbeatConfig
	Shopify  ShopifyConfig
	Sync     SyncConfig

	// Run history; empty disables it
	DatabaseURL string

	// Kafka; empty brokers disables event publishing and the worker
	KafkaBrokers       string
	KafkaEventsTopic   string
	KafkaRequestsTopic string
	KafkaGroupID       string

	// API Configuration
	APIPort string
	APIHost string

	// Environment
	Env      string
	LogLevel string
}

type RackbeatConfig struct {
	BaseURL      string
	APIToken     string
	ProductsPath string
	Timeout      time.Duration
}

type ShopifyConfig struct {
	ShopDomain  string
	AccessToken string
	APIVersion  string
	// BaseURL overrides https://{shop}.myshopify.com, mostly for tests and proxies.
	BaseURL string
	Timeout time.Duration
}

type SyncConfig struct {
	Mode            string
	PublishOnCreate bool
	RateLimitRPS    float64
	RateLimitBurst  int
}

const (
	ModeSkipExisting = "skip-existing"
	ModeOverwrite    = "overwrite"
)

func Load() (*Config, error) {
	// Load .env file
	godotenv.Load()

	timeout := time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second

	cfg := &Config{
		Rackbeat: RackbeatConfig{
			BaseURL:      getEnv("RACKBEAT_BASE_URL", "https://app.rackbeat.com/api"),
			APIToken:     getEnv("RACKBEAT_API_TOKEN", ""),
			ProductsPath: getEnv("RACKBEAT_PRODUCTS_PATH", "/products"),
			Timeout:      timeout,
		},
		Shopify: ShopifyConfig{
			ShopDomain:  getEnv("SHOPIFY_SHOP_DOMAIN", ""),
			AccessToken: getEnv("SHOPIFY_ACCESS_TOKEN", ""),
			APIVersion:  getEnv("SHOPIFY_API_VERSION", "2023-10"),
			BaseURL:     getEnv("SHOPIFY_BASE_URL", ""),
			Timeout:     timeout,
		},
		Sync: SyncConfig{
			Mode:            getEnv("SYNC_MODE", ModeOverwrite),
			PublishOnCreate: getEnvAsBool("SYNC_PUBLISH_ON_CREATE", false),
			RateLimitRPS:    getEnvAsFloat("SYNC_RATE_LIMIT_RPS", 2),
			RateLimitBurst:  getEnvAsInt("SYNC_RATE_LIMIT_BURST", 1),
		},
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
		KafkaEventsTopic:   getEnv("KAFKA_EVENTS_TOPIC", "catalog-sync-events"),
		KafkaRequestsTopic: getEnv("KAFKA_REQUESTS_TOPIC", "catalog-sync-requests"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "catalogsync-worker"),
		APIPort:            getEnv("API_PORT", "8080"),
		APIHost:            getEnv("API_HOST", "0.0.0.0"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate reports the first missing or malformed required setting.
func (c *Config) Validate() error {
	switch {
	case c.Rackbeat.BaseURL == "":
		return ErrMissingRackbeatURL
	case c.Rackbeat.APIToken == "":
		return ErrMissingRackbeatToken
	case c.Shopify.ShopDomain == "" && c.Shopify.BaseURL == "":
		return ErrMissingShopifyShop
	case c.Shopify.AccessToken == "":
		return ErrMissingShopifyToken
	case c.Sync.Mode != ModeSkipExisting && c.Sync.Mode != ModeOverwrite:
		return ErrInvalidSyncMode
	}
	return nil
}

// Brokers splits the comma separated KAFKA_BROKERS value.
func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
