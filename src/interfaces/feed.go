package interfaces

import (
	"context"
)

// -----------------------------------------------------------------------------

// IFeedSession is the capability the collector holds against the live market
// data session: open or close a per-symbol subscription. Decoded raw events
// are delivered through the callback supplied when the session is built, so
// the core never depends on a vendor session implementation. A deterministic
// test double lives in src/testutils.
type IFeedSession interface {
	// Connect establishes the underlying session.
	Connect(ctx context.Context) error

	// Close tears the session down.
	Close() error

	// Subscribe opens the trade and depth streams for one symbol.
	Subscribe(symbol, exchange string) error

	// Unsubscribe closes the streams for one symbol.
	Unsubscribe(symbol, exchange string) error

	// IsRunning reports whether the session is connected.
	IsRunning() bool
}
