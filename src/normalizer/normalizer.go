package normalizer

import (
	"fmt"
	"math"
	"sync"
	"time"

	"market-collector/src/models"
)

// -----------------------------------------------------------------------------

// ValidationError describes one malformed feed event. Validation failures are
// counted and dropped by the caller; they never propagate as fatal.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// -----------------------------------------------------------------------------

// Normalizer maps vendor-shaped raw events into canonical records. The
// mapping is pure and deterministic: identical raw input always yields
// identical canonical output or an identical rejection. Only the rejection
// counters carry state.
type Normalizer struct {
	maxDepth int

	mu       sync.Mutex
	accepted uint64
	rejected map[string]uint64
}

// -----------------------------------------------------------------------------

// NewNormalizer creates a Normalizer that stores at most maxDepth book levels
// per side; deeper levels are dropped, not stored.
func NewNormalizer(maxDepth int) *Normalizer {
	return &Normalizer{
		maxDepth: maxDepth,
		rejected: make(map[string]uint64),
	}
}

// -----------------------------------------------------------------------------

// Normalize translates one raw event. Exactly one of the returned trade or
// depth slice is set on success. A *ValidationError return means the event
// must be dropped and counted, nothing else.
func (n *Normalizer) Normalize(raw models.MRawEvent) (*models.MTrade, []models.MDepthUpdate, error) {
	switch raw.Type {
	case models.RawEventTrade:
		trade, err := n.normalizeTrade(raw)
		if err != nil {
			n.countReject(err)
			return nil, nil, err
		}
		n.countAccept()
		return trade, nil, nil

	case models.RawEventDepth:
		depths, err := n.normalizeDepth(raw)
		if err != nil {
			n.countReject(err)
			return nil, nil, err
		}
		n.countAccept()
		return nil, depths, nil

	default:
		err := &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown event type %q", raw.Type)}
		n.countReject(err)
		return nil, nil, err
	}
}

// -----------------------------------------------------------------------------

// Counts returns the accepted total and a copy of the per-reason rejection
// counters.
func (n *Normalizer) Counts() (uint64, map[string]uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]uint64, len(n.rejected))
	for k, v := range n.rejected {
		out[k] = v
	}
	return n.accepted, out
}

// -----------------------------------------------------------------------------
// Private methods
// -----------------------------------------------------------------------------

func (n *Normalizer) normalizeTrade(raw models.MRawEvent) (*models.MTrade, error) {
	if raw.Symbol == "" {
		return nil, &ValidationError{Field: "symbol", Reason: "missing"}
	}
	if raw.TimestampMs <= 0 {
		return nil, &ValidationError{Field: "timestamp", Reason: "missing or non-positive"}
	}
	if !validPrice(raw.Price) {
		return nil, &ValidationError{Field: "price", Reason: "missing, non-positive or not finite"}
	}
	if raw.Size < 0 || math.IsNaN(raw.Size) || math.IsInf(raw.Size, 0) {
		return nil, &ValidationError{Field: "size", Reason: "negative or not finite"}
	}

	aggressor, err := translateAggressor(raw.Aggressor)
	if err != nil {
		return nil, err
	}

	return &models.MTrade{
		Timestamp: msToTime(raw.TimestampMs),
		Symbol:    raw.Symbol,
		Exchange:  raw.Exchange,
		Price:     raw.Price,
		Size:      raw.Size,
		Aggressor: aggressor,
		TradeID:   raw.TradeID,
	}, nil
}

// -----------------------------------------------------------------------------

func (n *Normalizer) normalizeDepth(raw models.MRawEvent) ([]models.MDepthUpdate, error) {
	if raw.Symbol == "" {
		return nil, &ValidationError{Field: "symbol", Reason: "missing"}
	}
	if raw.TimestampMs <= 0 {
		return nil, &ValidationError{Field: "timestamp", Reason: "missing or non-positive"}
	}
	if len(raw.Levels) == 0 {
		return nil, &ValidationError{Field: "levels", Reason: "missing"}
	}

	updateType, err := translateUpdateType(raw.UpdateType)
	if err != nil {
		return nil, err
	}

	ts := msToTime(raw.TimestampMs)
	depths := make([]models.MDepthUpdate, 0, len(raw.Levels))
	for _, lvl := range raw.Levels {
		if lvl.Level < 1 {
			return nil, &ValidationError{Field: "level", Reason: fmt.Sprintf("rank %d below 1", lvl.Level)}
		}
		// Levels beyond the configured depth are dropped, not stored.
		if lvl.Level > n.maxDepth {
			continue
		}
		if !validPrice(lvl.Price) {
			return nil, &ValidationError{Field: "level price", Reason: "missing, non-positive or not finite"}
		}
		side, err := translateSide(lvl.Side)
		if err != nil {
			return nil, err
		}

		depths = append(depths, models.MDepthUpdate{
			Timestamp:  ts,
			Symbol:     raw.Symbol,
			Exchange:   raw.Exchange,
			Side:       side,
			Level:      lvl.Level,
			Price:      lvl.Price,
			Size:       lvl.Size,
			OrderCount: lvl.OrderCount,
			UpdateType: updateType,
		})
	}

	return depths, nil
}

// -----------------------------------------------------------------------------
// Vendor enum translation tables
// -----------------------------------------------------------------------------

func translateAggressor(v string) (models.MAggressorSide, error) {
	switch v {
	case "B", "BUY", "buy", "1":
		return models.AggressorBuy, nil
	case "S", "SELL", "sell", "2":
		return models.AggressorSell, nil
	case "":
		// Some feeds omit the aggressor on implied trades.
		return "", nil
	default:
		return "", &ValidationError{Field: "aggressor", Reason: fmt.Sprintf("unknown code %q", v)}
	}
}

func translateSide(v string) (models.MBookSide, error) {
	switch v {
	case "B", "BID", "bid":
		return models.BookSideBid, nil
	case "A", "S", "ASK", "ask", "offer":
		return models.BookSideAsk, nil
	default:
		return "", &ValidationError{Field: "side", Reason: fmt.Sprintf("unknown code %q", v)}
	}
}

func translateUpdateType(v string) (models.MDepthUpdateType, error) {
	switch v {
	case "", "0", "snapshot", "SNAPSHOT":
		return models.DepthSnapshot, nil
	case "1", "add", "ADD", "new", "NEW":
		return models.DepthAdd, nil
	case "2", "delete", "DELETE", "remove", "REMOVE":
		return models.DepthDelete, nil
	case "3", "modify", "MODIFY", "change", "UPDATE", "update":
		return models.DepthModify, nil
	default:
		return "", &ValidationError{Field: "update_type", Reason: fmt.Sprintf("unknown code %q", v)}
	}
}

// -----------------------------------------------------------------------------

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

func msToTime(ms int64) time.Time {
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}

func (n *Normalizer) countAccept() {
	n.mu.Lock()
	n.accepted++
	n.mu.Unlock()
}

func (n *Normalizer) countReject(err error) {
	reason := "unknown"
	if verr, ok := err.(*ValidationError); ok {
		reason = verr.Field
	}
	n.mu.Lock()
	n.rejected[reason]++
	n.mu.Unlock()
}
