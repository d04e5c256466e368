package interfaces

import (
	"market-collector/src/models"
)

// -----------------------------------------------------------------------------

// IPublisher defines the optional fan-out of canonical events to a message
// bus for live downstream consumers. Publishing is fire-and-forget relative
// to ingestion; the durable path is always the store.
type IPublisher interface {
	// OnTrade publishes one canonical trade.
	OnTrade(trade *models.MTrade)

	// OnDepth publishes one canonical depth update.
	OnDepth(depth *models.MDepthUpdate)

	// Connect establishes the connection to the message broker.
	Connect() error

	// Disconnect closes the connection to the message broker.
	Disconnect() error

	// IsConnected returns the current connection status.
	IsConnected() bool
}
