package interfaces

import (
	"context"
	"time"

	"market-collector/src/models"
)

// -----------------------------------------------------------------------------

// IBatchStore is the write side of the store: one call persists one batch in
// exactly one transaction, including the symbol_metadata upserts and the
// collection_stats merge. Partial persistence of a batch is forbidden; an
// error means nothing from the batch is visible.
type IBatchStore interface {
	FlushBatch(ctx context.Context, batch *models.MBatch) error
}

// -----------------------------------------------------------------------------

// IRetentionStore prunes raw history. The pre-aggregated statistics are
// never pruned.
type IRetentionStore interface {
	// DeleteOlderThan removes raw rows older than the cutoff and reports how
	// many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// -----------------------------------------------------------------------------

// IReadStore is the read side served by the REST API. Implementations enforce
// nothing about limits; the request boundary caps them before calling in.
type IReadStore interface {
	// RecentTrades returns trades for a symbol, newest first.
	RecentTrades(ctx context.Context, symbol string, limit int) ([]models.MTrade, error)

	// RecentDepth returns depth updates for a symbol, newest first.
	RecentDepth(ctx context.Context, symbol string, limit int) ([]models.MDepthUpdate, error)

	// SymbolSummaries lists known symbols with their lifetime counters.
	SymbolSummaries(ctx context.Context) ([]models.MSymbolSummary, error)

	// Stats returns the pre-aggregated per-(symbol, date) statistics.
	Stats(ctx context.Context) ([]models.MCollectionStats, error)

	// Ping verifies store connectivity for health checks.
	Ping(ctx context.Context) error
}
