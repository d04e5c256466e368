package models

import (
	"time"
)

// -----------------------------------------------------------------------------

// MSymbolMetadata is the per-symbol bookkeeping row. It exists if and only if
// at least one event for the symbol has been committed, and last_seen never
// regresses regardless of event arrival interleaving.
type MSymbolMetadata struct {
	Symbol      string    `json:"symbol" gorm:"primaryKey;size:50"`
	Exchange    string    `json:"exchange" gorm:"size:50"`
	Description string    `json:"description,omitempty" gorm:"size:200"`
	Active      bool      `json:"active"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

func (MSymbolMetadata) TableName() string { return "symbol_metadata" }

// -----------------------------------------------------------------------------

// MCollectionStats is the incrementally maintained per-(symbol, date) summary.
// A row always reflects exactly the set of events committed for that symbol
// and date; it is merged inside the same transaction as the raw inserts and
// never recomputed from raw history.
type MCollectionStats struct {
	Symbol      string  `json:"symbol" gorm:"primaryKey;size:50;uniqueIndex:uq_stats_symbol_date,priority:1"`
	Date        string  `json:"date" gorm:"primaryKey;size:10;uniqueIndex:uq_stats_symbol_date,priority:2"`
	TickCount   int64   `json:"tick_count"`
	Level2Count int64   `json:"level2_count"`
	AvgVolume   float64 `json:"avg_volume"`
	MinVolume   float64 `json:"min_volume"`
	MaxVolume   float64 `json:"max_volume"`

	FirstTick  *time.Time `json:"first_tick,omitempty"`
	LastTick   *time.Time `json:"last_tick,omitempty"`
	FirstDepth *time.Time `json:"first_depth,omitempty"`
	LastDepth  *time.Time `json:"last_depth,omitempty"`
}

func (MCollectionStats) TableName() string { return "collection_stats" }

// -----------------------------------------------------------------------------

// MSymbolSummary is the read-side row served by GET /api/symbols, joining
// symbol_metadata with the lifetime counters from collection_stats.
type MSymbolSummary struct {
	Symbol      string    `json:"symbol"`
	Exchange    string    `json:"exchange"`
	Active      bool      `json:"active"`
	TickCount   int64     `json:"tick_count"`
	Level2Count int64     `json:"level2_count"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// StatsDate formats a timestamp into the collection_stats date key (UTC).
func StatsDate(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}
