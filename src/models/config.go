package models

import (
	"time"
)

// -----------------------------------------------------------------------------
// Configuration model structs, unmarshalled from YAML by src/config.
// -----------------------------------------------------------------------------

// MConfig is the root configuration shared by the collector and API binaries.
type MConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`

	Feed     MFeedConfig     `yaml:"feed"`
	Writer   MWriterConfig   `yaml:"writer"`
	Database MDatabaseConfig `yaml:"database"`
	Redis    MRedisConfig    `yaml:"redis"`
	NATS     MNATSConfig     `yaml:"nats"`
	API      MAPIConfig      `yaml:"api"`
}

// -----------------------------------------------------------------------------

// MFeedConfig describes the live market data session.
type MFeedConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	APIKey            string        `yaml:"api_key"`
	DefaultExchange   string        `yaml:"default_exchange"`
	Symbols           []string      `yaml:"symbols"`
	MaxDepth          int           `yaml:"max_depth"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	SubscribeRetries  int           `yaml:"subscribe_retries"`
	SubscribeBackoff  time.Duration `yaml:"subscribe_backoff"`
}

// -----------------------------------------------------------------------------

// MWriterConfig bounds the batch writer's memory and staleness.
type MWriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	SpillDir      string        `yaml:"spill_dir"`
	RetentionDays int           `yaml:"retention_days"`
}

// -----------------------------------------------------------------------------

// MDatabaseConfig holds the PostgreSQL connection settings. The pool split
// reserves write capacity so API reads cannot starve sustained ingestion.
type MDatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Name         string `yaml:"name"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// -----------------------------------------------------------------------------

// MRedisConfig holds the control-plane connection settings.
type MRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// QueueKey is the list the API pushes subscription requests onto and the
	// collector pops from. StateKey is the hash holding the per-symbol
	// subscription states for the API to read.
	QueueKey string `yaml:"queue_key"`
	StateKey string `yaml:"state_key"`
}

// -----------------------------------------------------------------------------

// MNATSConfig configures the optional canonical event fan-out. An empty
// server list disables publishing entirely.
type MNATSConfig struct {
	Servers        []string      `yaml:"servers"`
	ClientID       string        `yaml:"client_id"`
	SubjectPrefix  string        `yaml:"subject_prefix"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`
	MaxReconnects  int           `yaml:"max_reconnects"`
}

// -----------------------------------------------------------------------------

// MAPIConfig configures the REST process.
type MAPIConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	TickDefaultLimit   int `yaml:"tick_default_limit"`
	TickMaxLimit       int `yaml:"tick_max_limit"`
	Level2DefaultLimit int `yaml:"level2_default_limit"`
	Level2MaxLimit     int `yaml:"level2_max_limit"`
}
