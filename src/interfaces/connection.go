package interfaces

import (
	"context"
)

// -----------------------------------------------------------------------------

// IConnectionClient defines the transport under a feed session. The raw-data
// callback is passed during client construction.
type IConnectionClient interface {
	// Connect opens the connection and starts the receive loops.
	Connect(ctx context.Context) error

	// Disconnect closes the connection.
	Disconnect() error

	// IsRunning returns the connection status.
	IsRunning() bool

	// GetName returns the client name.
	GetName() string

	// GetType returns the transport type.
	GetType() string

	// SendMessage sends a message over the transport.
	SendMessage([]byte) error
}
