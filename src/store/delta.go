package store

import (
	"time"

	"market-collector/src/models"
)

// -----------------------------------------------------------------------------
// Aggregate deltas
//
// A flush never recomputes statistics from raw history. Instead the batch is
// reduced to small delta rows here, in pure Go, and merged into the stored
// rows with upsert arithmetic inside the flush transaction. The merge is
// associative: splitting a stream of events into different batch boundaries
// yields the same stored statistics.
// -----------------------------------------------------------------------------

// metadataDelta reduces a batch to its symbol_metadata contribution.
// Returns nil for an empty batch.
func metadataDelta(batch *models.MBatch) *models.MSymbolMetadata {
	if batch.Len() == 0 {
		return nil
	}

	var first, last time.Time
	var exchange string

	observe := func(ts time.Time, ex string) {
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
		if exchange == "" {
			exchange = ex
		}
	}

	for i := range batch.Trades {
		observe(batch.Trades[i].Timestamp, batch.Trades[i].Exchange)
	}
	for i := range batch.Depths {
		observe(batch.Depths[i].Timestamp, batch.Depths[i].Exchange)
	}

	return &models.MSymbolMetadata{
		Symbol:    batch.Symbol,
		Exchange:  exchange,
		Active:    true,
		FirstSeen: first,
		LastSeen:  last,
	}
}

// -----------------------------------------------------------------------------

// statsDeltas reduces a batch to its collection_stats contributions, one row
// per UTC date touched by the batch. AvgVolume on a delta row is the mean
// trade size within the delta; the merge arithmetic in flush.go recombines it
// with the stored mean using the respective tick counts as weights.
func statsDeltas(batch *models.MBatch) []models.MCollectionStats {
	byDate := make(map[string]*models.MCollectionStats)

	row := func(date string) *models.MCollectionStats {
		if r, ok := byDate[date]; ok {
			return r
		}
		r := &models.MCollectionStats{Symbol: batch.Symbol, Date: date}
		byDate[date] = r
		return r
	}

	for i := range batch.Trades {
		t := &batch.Trades[i]
		r := row(models.StatsDate(t.Timestamp))

		if r.TickCount == 0 {
			r.MinVolume = t.Size
			r.MaxVolume = t.Size
		} else {
			if t.Size < r.MinVolume {
				r.MinVolume = t.Size
			}
			if t.Size > r.MaxVolume {
				r.MaxVolume = t.Size
			}
		}
		// Accumulate the sum in AvgVolume, divide once at the end.
		r.AvgVolume += t.Size
		r.TickCount++

		ts := t.Timestamp
		if r.FirstTick == nil || ts.Before(*r.FirstTick) {
			r.FirstTick = cloneTime(ts)
		}
		if r.LastTick == nil || ts.After(*r.LastTick) {
			r.LastTick = cloneTime(ts)
		}
	}

	for i := range batch.Depths {
		d := &batch.Depths[i]
		r := row(models.StatsDate(d.Timestamp))
		r.Level2Count++

		ts := d.Timestamp
		if r.FirstDepth == nil || ts.Before(*r.FirstDepth) {
			r.FirstDepth = cloneTime(ts)
		}
		if r.LastDepth == nil || ts.After(*r.LastDepth) {
			r.LastDepth = cloneTime(ts)
		}
	}

	out := make([]models.MCollectionStats, 0, len(byDate))
	for _, r := range byDate {
		if r.TickCount > 0 {
			r.AvgVolume /= float64(r.TickCount)
		}
		out = append(out, *r)
	}
	return out
}

// -----------------------------------------------------------------------------

func cloneTime(ts time.Time) *time.Time {
	c := ts
	return &c
}
