package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 2*time.Hour, cfg.Store.CartTTL)
	assert.Equal(t, 5, cfg.Store.OrderCodeAttempts)
	assert.Equal(t, 6, cfg.Store.FeaturedLimit)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("AUTO_MIGRATE", "false")
	t.Setenv("CHECKOUT_LOCK_SECONDS", "5")
	t.Setenv("ORDER_CODE_ATTEMPTS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 5*time.Second, cfg.Store.CheckoutLockTTL)
	assert.Equal(t, 5, cfg.Store.OrderCodeAttempts, "unparsable values fall back to the default")
}
