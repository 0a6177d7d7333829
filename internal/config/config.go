package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tesseract-Nexus/go-shared/secrets"
)

// Config holds all configuration for the catalog migration service
type Config struct {
	// Server
	Port            string
	Environment     string
	LogLevel        string
	ShutdownTimeout time.Duration
	APIKey          string
	AllowedOrigins  []string

	// Database
	DatabaseEnabled bool
	DatabaseURL     string

	// Cache
	RedisURL       string
	SchemaCacheTTL time.Duration

	// GCP
	GCPProjectID       string
	PlatformSecretName string

	// Source platform
	MagentoAPIURL   string
	MagentoAPIToken string
	MagentoPageSize int
	MagentoMaxPages int
	MagentoRPS      float64

	// Destination platform
	ShopifyAdminAPIURL  string
	ShopifyStoreURL     string
	ShopifyAPIVersion   string
	ShopifyAccessToken  string
	ShopifyRPS          float64

	// HTTPTimeout bounds each request to either platform
	HTTPTimeout time.Duration

	// Migration
	MediaBaseURL        string
	SyncConcurrency     int
	MediaBatchSize      int
	DefaultVariantMatch string
	MaxConcurrentJobs   int
	JobQueueTimeout     time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	databaseEnabled := getEnvAsBool("DATABASE_ENABLED", true)

	// Build DATABASE_URL from components using GCP Secret Manager for password
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" && databaseEnabled {
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := secrets.GetDBPassword()
		dbName := getEnv("DB_NAME", "catalog_migration")
		dbSSLMode := getEnv("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbUser, dbPassword, dbHost, dbPort, dbName, dbSSLMode)
	}

	return &Config{
		Port:            getEnv("PORT", "8099"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		APIKey:          getEnv("API_KEY", ""),
		AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}),

		DatabaseEnabled: databaseEnabled,
		DatabaseURL:     databaseURL,

		RedisURL:       getEnv("REDIS_URL", ""),
		SchemaCacheTTL: getEnvAsDuration("SCHEMA_CACHE_TTL", 15*time.Minute),

		GCPProjectID:       getEnv("GCP_PROJECT_ID", ""),
		PlatformSecretName: getEnv("PLATFORM_SECRET_NAME", ""),

		MagentoAPIURL:   strings.TrimRight(getEnv("MAGENTO_API_URL", ""), "/"),
		MagentoAPIToken: getEnv("MAGENTO_API_TOKEN", ""),
		MagentoPageSize: getEnvAsInt("MAGENTO_PAGE_SIZE", 100),
		MagentoMaxPages: getEnvAsInt("MAGENTO_MAX_PAGES", 50),
		MagentoRPS:      getEnvAsFloat("MAGENTO_RATE_LIMIT", 4),

		ShopifyAdminAPIURL:  getEnv("SHOPIFY_ADMIN_API_URL", ""),
		ShopifyStoreURL:     strings.TrimRight(getEnv("SHOPIFY_STORE_URL", ""), "/"),
		ShopifyAPIVersion:   getEnv("SHOPIFY_API_VERSION", "2024-01"),
		ShopifyAccessToken:  getEnv("SHOPIFY_ACCESS_TOKEN", ""),
		ShopifyRPS:          getEnvAsFloat("SHOPIFY_RATE_LIMIT", 2),

		HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		MediaBaseURL:        getEnv("MEDIA_BASE_URL", ""),
		SyncConcurrency:     getEnvAsInt("SYNC_CONCURRENCY", 4),
		MediaBatchSize:      getEnvAsInt("MEDIA_BATCH_SIZE", 50),
		DefaultVariantMatch: getEnv("DEFAULT_VARIANT_MATCH", "literal"),
		MaxConcurrentJobs:   getEnvAsInt("MAX_CONCURRENT_JOBS", 2),
		JobQueueTimeout:     getEnvAsDuration("JOB_QUEUE_TIMEOUT", 30*time.Second),
	}
}

// Validate reports missing or inconsistent settings
func (c *Config) Validate() error {
	var errs []error
	if c.MagentoAPIURL == "" {
		errs = append(errs, errors.New("MAGENTO_API_URL is required"))
	}
	if c.MagentoAPIToken == "" {
		errs = append(errs, errors.New("MAGENTO_API_TOKEN is required"))
	}
	if c.ShopifyAdminAPIURL == "" && c.ShopifyStoreURL == "" {
		errs = append(errs, errors.New("SHOPIFY_ADMIN_API_URL or SHOPIFY_STORE_URL is required"))
	}
	if c.ShopifyAccessToken == "" {
		errs = append(errs, errors.New("SHOPIFY_ACCESS_TOKEN is required"))
	}
	if c.DatabaseEnabled && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	switch c.DefaultVariantMatch {
	case "", "literal", "value":
	default:
		errs = append(errs, fmt.Errorf("DEFAULT_VARIANT_MATCH must be literal or value, got %q", c.DefaultVariantMatch))
	}
	if c.SyncConcurrency < 1 {
		errs = append(errs, errors.New("SYNC_CONCURRENCY must be at least 1"))
	}
	if c.MediaBatchSize < 1 {
		errs = append(errs, errors.New("MEDIA_BATCH_SIZE must be at least 1"))
	}
	return errors.Join(errs...)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

// getEnvAsList splits a comma-separated variable, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
