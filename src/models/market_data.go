package models

import (
	"time"
)

// -----------------------------------------------------------------------------
// Canonical enums
// -----------------------------------------------------------------------------

// MAggressorSide identifies which side initiated a trade.
type MAggressorSide string

const (
	AggressorBuy  MAggressorSide = "buy"
	AggressorSell MAggressorSide = "sell"
)

// MBookSide identifies the side of the order book a depth update belongs to.
type MBookSide string

const (
	BookSideBid MBookSide = "bid"
	BookSideAsk MBookSide = "ask"
)

// MDepthUpdateType identifies how a depth update mutates the book.
type MDepthUpdateType string

const (
	DepthSnapshot MDepthUpdateType = "snapshot"
	DepthAdd      MDepthUpdateType = "add"
	DepthDelete   MDepthUpdateType = "delete"
	DepthModify   MDepthUpdateType = "modify"
)

// -----------------------------------------------------------------------------
// Canonical records
// -----------------------------------------------------------------------------

// MTrade is one normalized trade execution. Append-only, immutable once persisted.
type MTrade struct {
	ID        int64          `json:"-" gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time      `json:"timestamp" gorm:"index:idx_trade_symbol_ts,priority:2,sort:desc;not null"`
	Symbol    string         `json:"symbol" gorm:"index:idx_trade_symbol_ts,priority:1;size:50;not null"`
	Exchange  string         `json:"exchange" gorm:"size:50"`
	Price     float64        `json:"price" gorm:"not null"`
	Size      float64        `json:"size" gorm:"not null"`
	Aggressor MAggressorSide `json:"aggressor" gorm:"size:10"`
	TradeID   string         `json:"trade_id" gorm:"size:64"`
}

// TableName keeps the persisted table name singular.
func (MTrade) TableName() string { return "trade" }

// -----------------------------------------------------------------------------

// MDepthUpdate is one normalized order book price-level update. Append-only.
type MDepthUpdate struct {
	ID         int64            `json:"-" gorm:"primaryKey;autoIncrement"`
	Timestamp  time.Time        `json:"timestamp" gorm:"index:idx_depth_symbol_ts,priority:2,sort:desc;not null"`
	Symbol     string           `json:"symbol" gorm:"index:idx_depth_symbol_ts,priority:1;size:50;not null"`
	Exchange   string           `json:"exchange" gorm:"size:50"`
	Side       MBookSide        `json:"side" gorm:"size:10;not null"`
	Level      int              `json:"level" gorm:"not null"`
	Price      float64          `json:"price" gorm:"not null"`
	Size       float64          `json:"size"`
	OrderCount int              `json:"order_count"`
	UpdateType MDepthUpdateType `json:"update_type" gorm:"size:20"`
}

func (MDepthUpdate) TableName() string { return "depth_update" }

// -----------------------------------------------------------------------------
// Raw (vendor-shaped) feed events
// -----------------------------------------------------------------------------

// MRawEventType tags a raw feed event before normalization.
type MRawEventType string

const (
	RawEventTrade MRawEventType = "trade"
	RawEventDepth MRawEventType = "depth"
)

// MRawLevel is a single vendor-shaped price level inside a raw depth event.
type MRawLevel struct {
	Side       string  `json:"side"`
	Level      int     `json:"level"`
	Price      float64 `json:"price"`
	Size       float64 `json:"size"`
	OrderCount int     `json:"num_orders"`
}

// MRawEvent is a feed event exactly as the session layer decoded it off the
// wire. String fields keep vendor semantics (aggressor codes, update type
// codes); the normalizer translates them into the canonical enums above.
type MRawEvent struct {
	Type        MRawEventType `json:"type"`
	Symbol      string        `json:"symbol"`
	Exchange    string        `json:"exchange"`
	TimestampMs int64         `json:"timestamp_ms"`

	// Trade fields
	Price     float64 `json:"price,omitempty"`
	Size      float64 `json:"size,omitempty"`
	Aggressor string  `json:"aggressor,omitempty"`
	TradeID   string  `json:"trade_id,omitempty"`

	// Depth fields
	UpdateType string      `json:"update_type,omitempty"`
	Levels     []MRawLevel `json:"levels,omitempty"`
}

// -----------------------------------------------------------------------------

// MBatch is the unit handed from the batch writer to the store: every record
// buffered for one symbol stream since the previous flush, in arrival order.
type MBatch struct {
	Symbol string
	Trades []MTrade
	Depths []MDepthUpdate
}

// Len returns the total number of records in the batch.
func (b *MBatch) Len() int {
	return len(b.Trades) + len(b.Depths)
}
