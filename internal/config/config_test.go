package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "https://picsum.photos/seed/placeholder/400/300", cfg.PlaceholderImageURL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "dev-jwt-secret", cfg.JWTSecret)
	assert.Equal(t, "admin", cfg.AdminUsername)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("LOGIN_RATE_LIMIT", "3")
	t.Setenv("LOGIN_RATE_WINDOW_SEC", "30")
	t.Setenv("PUBLIC_BASE_URL", "https://shop.example.com/")
	t.Setenv("DB_DRIVER", "Postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3, cfg.LoginRateLimit)
	assert.Equal(t, 30*time.Second, cfg.LoginRateWindow)
	assert.Equal(t, "https://shop.example.com", cfg.PublicBaseURL)
	assert.Equal(t, "postgres", cfg.DBDriver)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("bad driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "oracle")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("non numeric rate limit", func(t *testing.T) {
		t.Setenv("LOGIN_RATE_LIMIT", "ten")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("zero session ttl", func(t *testing.T) {
		t.Setenv("SESSION_TTL_HOUR", "0")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production without secret", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, err := Load()
		assert.Error(t, err)
	})
}
