package testutils

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"market-collector/src/models"
)

// -----------------------------------------------------------------------------

// MemStore is an in-memory stand-in for the SQL store. FlushBatch applies the
// same merge arithmetic as the production upserts, atomically: a failed or
// injected-error flush leaves the store completely untouched, which is what
// the retry tests lean on.
type MemStore struct {
	mu sync.Mutex

	// FailNextFlushes makes that many upcoming FlushBatch calls fail.
	FailNextFlushes int
	// FlushCalls counts every FlushBatch invocation, including failures.
	FlushCalls int
	// PingErr, when set, is returned by Ping.
	PingErr error

	trades   map[string][]models.MTrade
	depths   map[string][]models.MDepthUpdate
	metadata map[string]models.MSymbolMetadata
	stats    map[string]models.MCollectionStats // symbol + "|" + date
}

// -----------------------------------------------------------------------------

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		trades:   make(map[string][]models.MTrade),
		depths:   make(map[string][]models.MDepthUpdate),
		metadata: make(map[string]models.MSymbolMetadata),
		stats:    make(map[string]models.MCollectionStats),
	}
}

// -----------------------------------------------------------------------------

// FlushBatch applies one batch atomically or fails without side effects.
func (m *MemStore) FlushBatch(_ context.Context, batch *models.MBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FlushCalls++
	if m.FailNextFlushes > 0 {
		m.FailNextFlushes--
		return fmt.Errorf("injected flush failure")
	}
	if batch.Len() == 0 {
		return nil
	}

	m.trades[batch.Symbol] = append(m.trades[batch.Symbol], batch.Trades...)
	m.depths[batch.Symbol] = append(m.depths[batch.Symbol], batch.Depths...)
	m.mergeMetadata(batch)
	m.mergeStats(batch)
	return nil
}

// -----------------------------------------------------------------------------
// Read side
// -----------------------------------------------------------------------------

func (m *MemStore) RecentTrades(_ context.Context, symbol string, limit int) ([]models.MTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]models.MTrade(nil), m.trades[symbol]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) RecentDepth(_ context.Context, symbol string, limit int) ([]models.MDepthUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]models.MDepthUpdate(nil), m.depths[symbol]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) SymbolSummaries(_ context.Context) ([]models.MSymbolSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.MSymbolSummary, 0, len(m.metadata))
	for symbol, meta := range m.metadata {
		summary := models.MSymbolSummary{
			Symbol:    symbol,
			Exchange:  meta.Exchange,
			Active:    meta.Active,
			FirstSeen: meta.FirstSeen,
			LastSeen:  meta.LastSeen,
		}
		for _, s := range m.stats {
			if s.Symbol == symbol {
				summary.TickCount += s.TickCount
				summary.Level2Count += s.Level2Count
			}
		}
		out = append(out, summary)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out, nil
}

func (m *MemStore) Stats(_ context.Context) ([]models.MCollectionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.MCollectionStats, 0, len(m.stats))
	for _, s := range m.stats {
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

func (m *MemStore) Ping(_ context.Context) error {
	return m.PingErr
}

// -----------------------------------------------------------------------------

// DeleteOlderThan prunes raw rows older than the cutoff.
func (m *MemStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for symbol, rows := range m.trades {
		kept := rows[:0]
		for _, t := range rows {
			if t.Timestamp.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, t)
		}
		m.trades[symbol] = kept
	}
	for symbol, rows := range m.depths {
		kept := rows[:0]
		for _, d := range rows {
			if d.Timestamp.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, d)
		}
		m.depths[symbol] = kept
	}
	return deleted, nil
}

// -----------------------------------------------------------------------------

// Metadata returns the bookkeeping row for one symbol.
func (m *MemStore) Metadata(symbol string) (models.MSymbolMetadata, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.metadata[symbol]
	return meta, ok
}

// StatsRow returns the statistics row for one symbol and date.
func (m *MemStore) StatsRow(symbol, date string) (models.MCollectionStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[symbol+"|"+date]
	return s, ok
}

// TradeCount returns the number of stored trades for one symbol.
func (m *MemStore) TradeCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades[symbol])
}

// DepthCount returns the number of stored depth rows for one symbol.
func (m *MemStore) DepthCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.depths[symbol])
}

// -----------------------------------------------------------------------------
// Private methods
// -----------------------------------------------------------------------------

func (m *MemStore) mergeMetadata(batch *models.MBatch) {
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

	meta, ok := m.metadata[batch.Symbol]
	if !ok {
		m.metadata[batch.Symbol] = models.MSymbolMetadata{
			Symbol:    batch.Symbol,
			Exchange:  exchange,
			Active:    true,
			FirstSeen: first,
			LastSeen:  last,
		}
		return
	}
	if first.Before(meta.FirstSeen) {
		meta.FirstSeen = first
	}
	if last.After(meta.LastSeen) {
		meta.LastSeen = last
	}
	meta.Active = true
	m.metadata[batch.Symbol] = meta
}

// -----------------------------------------------------------------------------

func (m *MemStore) mergeStats(batch *models.MBatch) {
	for i := range batch.Trades {
		t := &batch.Trades[i]
		key := batch.Symbol + "|" + models.StatsDate(t.Timestamp)
		s := m.statsRowLocked(key, batch.Symbol, models.StatsDate(t.Timestamp))

		if s.TickCount == 0 {
			s.MinVolume = t.Size
			s.MaxVolume = t.Size
			s.AvgVolume = t.Size
		} else {
			if t.Size < s.MinVolume {
				s.MinVolume = t.Size
			}
			if t.Size > s.MaxVolume {
				s.MaxVolume = t.Size
			}
			s.AvgVolume = (s.AvgVolume*float64(s.TickCount) + t.Size) / float64(s.TickCount+1)
		}
		s.TickCount++

		ts := t.Timestamp
		if s.FirstTick == nil || ts.Before(*s.FirstTick) {
			c := ts
			s.FirstTick = &c
		}
		if s.LastTick == nil || ts.After(*s.LastTick) {
			c := ts
			s.LastTick = &c
		}
		m.stats[key] = s
	}

	for i := range batch.Depths {
		d := &batch.Depths[i]
		key := batch.Symbol + "|" + models.StatsDate(d.Timestamp)
		s := m.statsRowLocked(key, batch.Symbol, models.StatsDate(d.Timestamp))
		s.Level2Count++

		ts := d.Timestamp
		if s.FirstDepth == nil || ts.Before(*s.FirstDepth) {
			c := ts
			s.FirstDepth = &c
		}
		if s.LastDepth == nil || ts.After(*s.LastDepth) {
			c := ts
			s.LastDepth = &c
		}
		m.stats[key] = s
	}
}

// -----------------------------------------------------------------------------

func (m *MemStore) statsRowLocked(key, symbol, date string) models.MCollectionStats {
	if s, ok := m.stats[key]; ok {
		return s
	}
	return models.MCollectionStats{Symbol: symbol, Date: date}
}
