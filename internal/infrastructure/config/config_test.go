package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "payment-events", cfg.Redis.Stream)

	assert.Equal(t, 20, cfg.Executor.PoolSize)
	assert.Equal(t, 200, cfg.Executor.QueueSize)
	assert.Equal(t, 10*time.Second, cfg.Executor.WaitTimeout)

	assert.Equal(t, 100*time.Millisecond, cfg.Queue.BaseDelay)
	assert.Equal(t, 10, cfg.Queue.MaxAttempts)

	assert.Equal(t, 15*time.Second, cfg.Capture.Interval)
	assert.Equal(t, 48, cfg.Capture.MaxRetries)
	assert.Equal(t, 90*time.Minute, cfg.Expiry.Threshold)

	assert.Equal(t, "https://api.stripe.com", cfg.Gateways.StripeURL)
	assert.Equal(t, 50*time.Second, cfg.Gateways.Timeout)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONNECTOR_SERVER_PORT", "9090")
	t.Setenv("CONNECTOR_DATABASE_HOST", "db.internal")
	t.Setenv("CONNECTOR_EXECUTOR_POOL_SIZE", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 50, cfg.Executor.PoolSize)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Server.Port = 0
	assert.ErrorContains(t, cfg.Validate(), "server.port")

	cfg, _ = Load()
	cfg.Database.Host = ""
	assert.ErrorContains(t, cfg.Validate(), "database.host")

	cfg, _ = Load()
	cfg.Executor.WaitTimeout = 0
	assert.ErrorContains(t, cfg.Validate(), "executor.wait_timeout")

	cfg, _ = Load()
	cfg.Expiry.Threshold = 0
	assert.ErrorContains(t, cfg.Validate(), "expiry.threshold")
}

func TestDSNAndAddr(t *testing.T) {
	db := DatabaseConfig{Host: "localhost", Port: 5432, User: "connector", Password: "secret", Database: "connector", SSLMode: "disable"}
	assert.Equal(t, "host=localhost port=5432 user=connector password=secret dbname=connector sslmode=disable", db.DSN())

	r := RedisConfig{Host: "localhost", Port: 6379}
	assert.Equal(t, "localhost:6379", r.Addr())
}
