package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"market-collector/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides defaulting and validation.
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from a YAML file. Environment
// variables override the credential and host fields afterwards, so secrets
// never have to live in the file.
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyEnvOverrides()
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation across all sub-configs.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config name cannot be empty")
	}

	if c.Feed.Endpoint == "" {
		return fmt.Errorf("feed endpoint cannot be empty")
	}
	if c.Feed.MaxDepth <= 0 {
		return fmt.Errorf("feed max_depth must be positive, got %d", c.Feed.MaxDepth)
	}

	if c.Writer.BatchSize <= 0 {
		return fmt.Errorf("writer batch_size must be positive, got %d", c.Writer.BatchSize)
	}
	if c.Writer.FlushInterval <= 0 {
		return fmt.Errorf("writer flush_interval must be positive, got %s", c.Writer.FlushInterval)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host cannot be empty")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port number: %d", c.Database.Port)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr cannot be empty")
	}

	return nil
}

// -----------------------------------------------------------------------------

// applyDefaults fills the fields a minimal config file may omit.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Feed.DefaultExchange == "" {
		c.Feed.DefaultExchange = "CME"
	}
	if c.Feed.MaxDepth == 0 {
		c.Feed.MaxDepth = 10
	}
	if c.Feed.ReconnectAttempts == 0 {
		c.Feed.ReconnectAttempts = 5
	}
	if c.Feed.SubscribeRetries == 0 {
		c.Feed.SubscribeRetries = 5
	}
	if c.Feed.SubscribeBackoff == 0 {
		c.Feed.SubscribeBackoff = time.Second
	}

	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = 200
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = 2 * time.Second
	}
	if c.Writer.RetryAttempts == 0 {
		c.Writer.RetryAttempts = 5
	}
	if c.Writer.RetryBackoff == 0 {
		c.Writer.RetryBackoff = 500 * time.Millisecond
	}
	if c.Writer.SpillDir == "" {
		c.Writer.SpillDir = "spill"
	}

	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 2
	}

	if c.Redis.QueueKey == "" {
		c.Redis.QueueKey = "symbol_subscriptions"
	}
	if c.Redis.StateKey == "" {
		c.Redis.StateKey = "subscription_states"
	}

	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = 10 * time.Second
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = 15 * time.Second
	}
	if c.API.TickDefaultLimit == 0 {
		c.API.TickDefaultLimit = 100
	}
	if c.API.TickMaxLimit == 0 {
		c.API.TickMaxLimit = 1000
	}
	if c.API.Level2DefaultLimit == 0 {
		c.API.Level2DefaultLimit = 50
	}
	if c.API.Level2MaxLimit == 0 {
		c.API.Level2MaxLimit = 500
	}
}

// -----------------------------------------------------------------------------

// applyEnvOverrides lets deployment environments override hosts and
// credentials without touching the YAML file.
func (c *Config) applyEnvOverrides() {
	overrideString(&c.Database.Host, "DB_HOST")
	overrideInt(&c.Database.Port, "DB_PORT")
	overrideString(&c.Database.Name, "DB_NAME")
	overrideString(&c.Database.User, "DB_USER")
	overrideString(&c.Database.Password, "DB_PASSWORD")

	overrideString(&c.Redis.Addr, "REDIS_ADDR")
	overrideString(&c.Redis.Password, "REDIS_PASSWORD")

	overrideString(&c.Feed.Endpoint, "FEED_ENDPOINT")
	overrideString(&c.Feed.APIKey, "FEED_API_KEY")
}

func overrideString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func overrideInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}
