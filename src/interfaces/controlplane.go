package interfaces

import (
	"context"

	"market-collector/src/models"
)

// -----------------------------------------------------------------------------

// IControlQueue carries subscription requests from the API process to the
// collector. Delivery is durable and at-least-once: the consumer must be
// idempotent by symbol identity.
type IControlQueue interface {
	// Publish durably queues one subscription request.
	Publish(ctx context.Context, req models.MSubscriptionRequest) error

	// Consume blocks until a request is available or the context ends.
	Consume(ctx context.Context) (*models.MSubscriptionRequest, error)
}

// -----------------------------------------------------------------------------

// IStateStore mirrors the collector-owned subscription state machine into a
// place the API process can read it from.
type IStateStore interface {
	// SetState records one symbol's current subscription state.
	SetState(ctx context.Context, status models.MSubscriptionStatus) error

	// States returns the last recorded state of every symbol.
	States(ctx context.Context) ([]models.MSubscriptionStatus, error)

	// Ping verifies control-plane connectivity for health checks.
	Ping(ctx context.Context) error
}
