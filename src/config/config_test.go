package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
name: test-collector
feed:
  endpoint: wss://gateway.example.com/marketdata
database:
  host: localhost
  port: 5432
  name: market_data
redis:
  addr: localhost:6379
`

// -----------------------------------------------------------------------------

func TestNewConfigAppliesDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "CME", cfg.Feed.DefaultExchange)
	assert.Equal(t, 10, cfg.Feed.MaxDepth)
	assert.Equal(t, 200, cfg.Writer.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Writer.FlushInterval)
	assert.Equal(t, 5, cfg.Writer.RetryAttempts)
	assert.Equal(t, "symbol_subscriptions", cfg.Redis.QueueKey)
	assert.Equal(t, "subscription_states", cfg.Redis.StateKey)
	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, 100, cfg.API.TickDefaultLimit)
	assert.Equal(t, 1000, cfg.API.TickMaxLimit)
	assert.Equal(t, 50, cfg.API.Level2DefaultLimit)
	assert.Equal(t, 500, cfg.API.Level2MaxLimit)
}

// -----------------------------------------------------------------------------

func TestNewConfigParsesFullFile(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, `
name: test-collector
log_level: debug
feed:
  endpoint: wss://gateway.example.com/marketdata
  default_exchange: COMEX
  symbols: [GCQ5, NQZ5]
  max_depth: 5
writer:
  batch_size: 50
  flush_interval: 500ms
database:
  host: db.internal
  port: 5433
  name: market_data
redis:
  addr: redis.internal:6379
  db: 2
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "COMEX", cfg.Feed.DefaultExchange)
	assert.Equal(t, []string{"GCQ5", "NQZ5"}, cfg.Feed.Symbols)
	assert.Equal(t, 5, cfg.Feed.MaxDepth)
	assert.Equal(t, 50, cfg.Writer.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Writer.FlushInterval)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, 2, cfg.Redis.DB)
}

// -----------------------------------------------------------------------------

func TestNewConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", `
feed:
  endpoint: wss://x
database: {host: localhost, port: 5432, name: d}
redis: {addr: localhost:6379}
`},
		{"missing feed endpoint", `
name: t
database: {host: localhost, port: 5432, name: d}
redis: {addr: localhost:6379}
`},
		{"missing database host", `
name: t
feed: {endpoint: wss://x}
redis: {addr: localhost:6379}
`},
		{"missing redis addr", `
name: t
feed: {endpoint: wss://x}
database: {host: localhost, port: 5432, name: d}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

// -----------------------------------------------------------------------------

func TestNewConfigEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.prod.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_PASSWORD", "s3cret")
	t.Setenv("REDIS_ADDR", "redis.prod.internal:6379")
	t.Setenv("FEED_API_KEY", "key-from-env")

	cfg, err := NewConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "db.prod.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "redis.prod.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, "key-from-env", cfg.Feed.APIKey)
}

// -----------------------------------------------------------------------------

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
