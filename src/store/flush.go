package store

import (
	"context"
	"fmt"

	"market-collector/src/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertChunkSize = 500

// -----------------------------------------------------------------------------

// FlushBatch commits one symbol batch atomically: raw inserts, the
// symbol_metadata upsert and the collection_stats merge all happen in a
// single transaction. On error nothing is persisted and the batch can be
// retried as-is.
func (s *Store) FlushBatch(ctx context.Context, batch *models.MBatch) error {
	if batch.Len() == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(batch.Trades) > 0 {
			if err := tx.CreateInBatches(batch.Trades, insertChunkSize).Error; err != nil {
				return fmt.Errorf("failed to insert trades: %w", err)
			}
		}
		if len(batch.Depths) > 0 {
			if err := tx.CreateInBatches(batch.Depths, insertChunkSize).Error; err != nil {
				return fmt.Errorf("failed to insert depth updates: %w", err)
			}
		}

		if err := upsertMetadata(tx, metadataDelta(batch)); err != nil {
			return err
		}
		return mergeStats(tx, statsDeltas(batch))
	})
	if err != nil {
		return err
	}

	s.logger.Debug("%s : flushed %d trades / %d depth updates for %s",
		s.name, len(batch.Trades), len(batch.Depths), batch.Symbol)
	return nil
}

// -----------------------------------------------------------------------------
// Private methods
// -----------------------------------------------------------------------------

// upsertMetadata inserts or advances the per-symbol bookkeeping row.
// first_seen and last_seen use LEAST/GREATEST so the row is correct even when
// batches commit out of timestamp order.
func upsertMetadata(tx *gorm.DB, meta *models.MSymbolMetadata) error {
	if meta == nil {
		return nil
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"active":     true,
			"first_seen": gorm.Expr("LEAST(symbol_metadata.first_seen, EXCLUDED.first_seen)"),
			"last_seen":  gorm.Expr("GREATEST(symbol_metadata.last_seen, EXCLUDED.last_seen)"),
		}),
	}).Create(meta).Error
	if err != nil {
		return fmt.Errorf("failed to upsert metadata for %s: %w", meta.Symbol, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// mergeStats folds the per-date delta rows into collection_stats. All
// right-hand sides of the DO UPDATE read the pre-update row, so the weighted
// average can reference the old tick_count while the count itself advances in
// the same statement. The CASE guards keep a depth-only row (tick_count 0,
// volumes 0) from polluting the trade volume aggregates.
func mergeStats(tx *gorm.DB, deltas []models.MCollectionStats) error {
	for i := range deltas {
		d := &deltas[i]
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "symbol"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"tick_count":   gorm.Expr("collection_stats.tick_count + EXCLUDED.tick_count"),
				"level2_count": gorm.Expr("collection_stats.level2_count + EXCLUDED.level2_count"),
				"avg_volume": gorm.Expr(`CASE
					WHEN collection_stats.tick_count + EXCLUDED.tick_count = 0 THEN 0
					ELSE (collection_stats.avg_volume * collection_stats.tick_count
					      + EXCLUDED.avg_volume * EXCLUDED.tick_count)
					     / (collection_stats.tick_count + EXCLUDED.tick_count)
					END`),
				"min_volume": gorm.Expr(`CASE
					WHEN EXCLUDED.tick_count = 0 THEN collection_stats.min_volume
					WHEN collection_stats.tick_count = 0 THEN EXCLUDED.min_volume
					ELSE LEAST(collection_stats.min_volume, EXCLUDED.min_volume)
					END`),
				"max_volume": gorm.Expr(`CASE
					WHEN EXCLUDED.tick_count = 0 THEN collection_stats.max_volume
					WHEN collection_stats.tick_count = 0 THEN EXCLUDED.max_volume
					ELSE GREATEST(collection_stats.max_volume, EXCLUDED.max_volume)
					END`),
				// LEAST/GREATEST ignore NULL operands, which is exactly the
				// merge we want for optional first/last markers.
				"first_tick":  gorm.Expr("LEAST(collection_stats.first_tick, EXCLUDED.first_tick)"),
				"last_tick":   gorm.Expr("GREATEST(collection_stats.last_tick, EXCLUDED.last_tick)"),
				"first_depth": gorm.Expr("LEAST(collection_stats.first_depth, EXCLUDED.first_depth)"),
				"last_depth":  gorm.Expr("GREATEST(collection_stats.last_depth, EXCLUDED.last_depth)"),
			}),
		}).Create(d).Error
		if err != nil {
			return fmt.Errorf("failed to merge stats for %s/%s: %w", d.Symbol, d.Date, err)
		}
	}
	return nil
}
