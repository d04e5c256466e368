package controlplane

import (
	"context"
	"fmt"
	"time"

	"market-collector/src/interfaces"
	"market-collector/src/logger"
	"market-collector/src/models"
	"market-collector/src/serializers"

	"github.com/redis/go-redis/v9"
)

const consumePollTimeout = 2 * time.Second

// -----------------------------------------------------------------------------

// RedisControlPlane implements both control-plane interfaces on one Redis
// connection: a list for the subscription request queue (RPUSH by the API,
// BLPOP by the collector, so requests survive a collector restart) and a hash
// mirroring the per-symbol subscription states for the API to read.
type RedisControlPlane struct {
	name       string
	client     *redis.Client
	logger     *logger.Logger
	serializer interfaces.ISerializer
	queueKey   string
	stateKey   string
}

// -----------------------------------------------------------------------------

// NewRedisControlPlane connects to Redis and verifies the connection.
func NewRedisControlPlane(ctx context.Context, config *models.MRedisConfig, log *logger.Logger) (*RedisControlPlane, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	log.Info("ControlPlane : connected to redis at %s", config.Addr)
	return &RedisControlPlane{
		name:       "ControlPlane",
		client:     client,
		logger:     log,
		serializer: serializers.NewJSONSerializer(),
		queueKey:   config.QueueKey,
		stateKey:   config.StateKey,
	}, nil
}

// -----------------------------------------------------------------------------

// Publish queues one subscription request.
func (c *RedisControlPlane) Publish(ctx context.Context, req models.MSubscriptionRequest) error {
	payload, err := c.serializer.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to serialize subscription request for %s: %w", req.Symbol, err)
	}
	if err := c.client.RPush(ctx, c.queueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to queue subscription request for %s: %w", req.Symbol, err)
	}
	c.logger.Info("%s : queued %s request for %s", c.name, req.Action, req.Symbol)
	return nil
}

// -----------------------------------------------------------------------------

// Consume blocks until a request arrives or the context ends. Malformed
// queue entries are logged and skipped, never redelivered.
func (c *RedisControlPlane) Consume(ctx context.Context) (*models.MSubscriptionRequest, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Bounded BLPOP so context cancellation is observed between polls.
		vals, err := c.client.BLPop(ctx, consumePollTimeout, c.queueKey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to pop subscription request: %w", err)
		}

		var req models.MSubscriptionRequest
		if err := c.serializer.Unmarshal([]byte(vals[1]), &req); err != nil {
			c.logger.Error("%s : dropping malformed queue entry: %v (raw: %s)", c.name, err, vals[1])
			continue
		}
		return &req, nil
	}
}

// -----------------------------------------------------------------------------

// SetState mirrors one symbol's state into the shared hash.
func (c *RedisControlPlane) SetState(ctx context.Context, status models.MSubscriptionStatus) error {
	payload, err := c.serializer.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to serialize state for %s: %w", status.Symbol, err)
	}
	if err := c.client.HSet(ctx, c.stateKey, status.Symbol, payload).Err(); err != nil {
		return fmt.Errorf("failed to store state for %s: %w", status.Symbol, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// States returns the last recorded state of every symbol.
func (c *RedisControlPlane) States(ctx context.Context) ([]models.MSubscriptionStatus, error) {
	entries, err := c.client.HGetAll(ctx, c.stateKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read subscription states: %w", err)
	}

	out := make([]models.MSubscriptionStatus, 0, len(entries))
	for symbol, payload := range entries {
		var status models.MSubscriptionStatus
		if err := c.serializer.Unmarshal([]byte(payload), &status); err != nil {
			c.logger.Error("%s : skipping malformed state entry for %s: %v", c.name, symbol, err)
			continue
		}
		out = append(out, status)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// Ping verifies connectivity for health checks.
func (c *RedisControlPlane) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *RedisControlPlane) Close() error {
	return c.client.Close()
}
