package feeds

import (
	"market-collector/src/models"
)

// -----------------------------------------------------------------------------
// Wire protocol
//
// The gateway speaks line-delimited JSON in both directions. Commands carry a
// verb plus the symbol; data messages carry a type tag and vendor-coded
// fields. Vendor codes are passed through untouched; translating them into
// canonical enums is the normalizer's job.
// -----------------------------------------------------------------------------

// wireCommand is an outgoing subscribe/unsubscribe command.
type wireCommand struct {
	Command  string   `json:"command"`
	Symbol   string   `json:"symbol"`
	Exchange string   `json:"exchange"`
	Streams  []string `json:"streams"`
	APIKey   string   `json:"api_key,omitempty"`
}

// wireLevel is one price level inside an incoming depth message.
type wireLevel struct {
	Side      string  `json:"side"`
	Level     int     `json:"level"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	NumOrders int     `json:"num_orders"`
}

// wireMessage is one incoming message of any type.
type wireMessage struct {
	Type        string      `json:"type"`
	Symbol      string      `json:"symbol"`
	Exchange    string      `json:"exchange"`
	TimestampMs int64       `json:"timestamp_ms"`
	Price       float64     `json:"price"`
	Size        float64     `json:"size"`
	Aggressor   string      `json:"aggressor"`
	TradeID     string      `json:"trade_id"`
	UpdateType  string      `json:"update_type"`
	Levels      []wireLevel `json:"levels"`
	Message     string      `json:"message"`
}

// -----------------------------------------------------------------------------

// toRawEvent maps a data message to the vendor-shaped event handed to the
// pipeline. The second return is false for non-data messages (status,
// errors, command acks), which the session handles itself.
func (m *wireMessage) toRawEvent() (models.MRawEvent, bool) {
	switch m.Type {
	case "TICK", "TRADE":
		return models.MRawEvent{
			Type:        models.RawEventTrade,
			Symbol:      m.Symbol,
			Exchange:    m.Exchange,
			TimestampMs: m.TimestampMs,
			Price:       m.Price,
			Size:        m.Size,
			Aggressor:   m.Aggressor,
			TradeID:     m.TradeID,
		}, true

	case "DEPTH", "LEVEL2":
		levels := make([]models.MRawLevel, len(m.Levels))
		for i, lvl := range m.Levels {
			levels[i] = models.MRawLevel{
				Side:       lvl.Side,
				Level:      lvl.Level,
				Price:      lvl.Price,
				Size:       lvl.Size,
				OrderCount: lvl.NumOrders,
			}
		}
		return models.MRawEvent{
			Type:        models.RawEventDepth,
			Symbol:      m.Symbol,
			Exchange:    m.Exchange,
			TimestampMs: m.TimestampMs,
			UpdateType:  m.UpdateType,
			Levels:      levels,
		}, true

	default:
		return models.MRawEvent{}, false
	}
}
