package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/catalog?sslmode=disable")
	t.Setenv("MAGENTO_API_URL", "https://magento.example.com/")
	t.Setenv("MAGENTO_API_TOKEN", "m-token")
	t.Setenv("SHOPIFY_STORE_URL", "https://shop.myshopify.com")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "s-token")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8099", cfg.Port)
	assert.Equal(t, "https://magento.example.com", cfg.MagentoAPIURL)
	assert.Equal(t, 100, cfg.MagentoPageSize)
	assert.Equal(t, "2024-01", cfg.ShopifyAPIVersion)
	assert.Equal(t, 4, cfg.SyncConcurrency)
	assert.Equal(t, 50, cfg.MediaBatchSize)
	assert.Equal(t, "literal", cfg.DefaultVariantMatch)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.DatabaseEnabled)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3001"}, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SYNC_CONCURRENCY", "8")
	t.Setenv("SHOPIFY_RATE_LIMIT", "1.5")
	t.Setenv("JOB_QUEUE_TIMEOUT", "5s")
	t.Setenv("DATABASE_ENABLED", "false")
	t.Setenv("DEFAULT_VARIANT_MATCH", "value")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("MEDIA_BATCH_SIZE", "not-a-number")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8, cfg.SyncConcurrency)
	assert.Equal(t, 1.5, cfg.ShopifyRPS)
	assert.Equal(t, 5*time.Second, cfg.JobQueueTimeout)
	assert.False(t, cfg.DatabaseEnabled)
	assert.Equal(t, "value", cfg.DefaultVariantMatch)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 50, cfg.MediaBatchSize)
}

func TestValidate(t *testing.T) {
	setRequired(t)
	t.Setenv("MAGENTO_API_TOKEN", "")
	t.Setenv("SHOPIFY_STORE_URL", "")
	t.Setenv("DEFAULT_VARIANT_MATCH", "fuzzy")
	t.Setenv("SYNC_CONCURRENCY", "0")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAGENTO_API_TOKEN is required")
	assert.Contains(t, err.Error(), "SHOPIFY_ADMIN_API_URL or SHOPIFY_STORE_URL is required")
	assert.Contains(t, err.Error(), `DEFAULT_VARIANT_MATCH must be literal or value, got "fuzzy"`)
	assert.Contains(t, err.Error(), "SYNC_CONCURRENCY must be at least 1")
	assert.NotContains(t, err.Error(), "MAGENTO_API_URL is required")
}
