package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, devSigningKey, cfg.JWTSigningKey)
	assert.Equal(t, 90*24*time.Hour, cfg.Cooldown())
	assert.Equal(t, 3, cfg.Limit)
	assert.Equal(t, time.Hour, cfg.Window)
	assert.Equal(t, 5*time.Minute, cfg.SearchCacheTTL)
	assert.Equal(t, 100, cfg.SearchCacheCapacity)
	assert.Equal(t, 50, cfg.SearchMaxPageSize)
	assert.Equal(t, 20, cfg.SearchDefaultPage)
	assert.Equal(t, 1000, cfg.FanOutCap)
	assert.Equal(t, 168*time.Hour, cfg.ActiveWindow)
	assert.Equal(t, "donorlink-push", cfg.Topic)
	assert.Equal(t, 1024, cfg.QueueSize)
	assert.Empty(t, cfg.KafkaBrokerList())
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("REQUEST_LIMIT", "5")
	t.Setenv("REQUEST_WINDOW", "30m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092,k1:9092")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 5, cfg.Limit)
	assert.Equal(t, 30*time.Minute, cfg.Window)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokerList())
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestLoad_Rejections(t *testing.T) {
	t.Run("production requires a signing key", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SIGNING_KEY", "")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SIGNING_KEY")
	})

	t.Run("non-positive limit", func(t *testing.T) {
		t.Setenv("REQUEST_LIMIT", "0")
		_, err := Load()
		assert.ErrorContains(t, err, "REQUEST_LIMIT must be positive")
	})

	t.Run("non-positive window", func(t *testing.T) {
		t.Setenv("REQUEST_WINDOW", "-1h")
		_, err := Load()
		assert.ErrorContains(t, err, "REQUEST_WINDOW must be positive")
	})

	t.Run("default page above max", func(t *testing.T) {
		t.Setenv("SEARCH_DEFAULT_PAGE_SIZE", "60")
		_, err := Load()
		assert.ErrorContains(t, err, "SEARCH_DEFAULT_PAGE_SIZE must not exceed")
	})
}
