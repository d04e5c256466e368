package normalizer

import (
	"testing"
	"time"

	"market-collector/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTradeEvent() models.MRawEvent {
	return models.MRawEvent{
		Type:        models.RawEventTrade,
		Symbol:      "GCQ5",
		Exchange:    "CME",
		TimestampMs: 1755851400123,
		Price:       2451.5,
		Size:        2,
		Aggressor:   "B",
		TradeID:     "t-1001",
	}
}

func validDepthEvent() models.MRawEvent {
	return models.MRawEvent{
		Type:        models.RawEventDepth,
		Symbol:      "GCQ5",
		Exchange:    "CME",
		TimestampMs: 1755851400123,
		UpdateType:  "3",
		Levels: []models.MRawLevel{
			{Side: "B", Level: 1, Price: 2451.4, Size: 10, OrderCount: 4},
			{Side: "A", Level: 1, Price: 2451.6, Size: 7, OrderCount: 2},
		},
	}
}

// -----------------------------------------------------------------------------

func TestNormalizeTrade(t *testing.T) {
	n := NewNormalizer(10)

	trade, depths, err := n.Normalize(validTradeEvent())
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Nil(t, depths)

	assert.Equal(t, "GCQ5", trade.Symbol)
	assert.Equal(t, "CME", trade.Exchange)
	assert.Equal(t, 2451.5, trade.Price)
	assert.Equal(t, 2.0, trade.Size)
	assert.Equal(t, models.AggressorBuy, trade.Aggressor)
	assert.Equal(t, "t-1001", trade.TradeID)
	assert.Equal(t, time.UnixMilli(1755851400123).UTC(), trade.Timestamp)
	assert.Equal(t, time.UTC, trade.Timestamp.Location())
}

// -----------------------------------------------------------------------------

func TestNormalizeTradeIsDeterministic(t *testing.T) {
	n := NewNormalizer(10)

	first, _, err := n.Normalize(validTradeEvent())
	require.NoError(t, err)
	second, _, err := n.Normalize(validTradeEvent())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// -----------------------------------------------------------------------------

func TestNormalizeTradeValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.MRawEvent)
		field  string
	}{
		{"missing symbol", func(e *models.MRawEvent) { e.Symbol = "" }, "symbol"},
		{"missing timestamp", func(e *models.MRawEvent) { e.TimestampMs = 0 }, "timestamp"},
		{"negative timestamp", func(e *models.MRawEvent) { e.TimestampMs = -5 }, "timestamp"},
		{"zero price", func(e *models.MRawEvent) { e.Price = 0 }, "price"},
		{"negative price", func(e *models.MRawEvent) { e.Price = -1 }, "price"},
		{"negative size", func(e *models.MRawEvent) { e.Size = -3 }, "size"},
		{"unknown aggressor", func(e *models.MRawEvent) { e.Aggressor = "X" }, "aggressor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(10)
			ev := validTradeEvent()
			tt.mutate(&ev)

			trade, depths, err := n.Normalize(ev)
			require.Error(t, err)
			assert.Nil(t, trade)
			assert.Nil(t, depths)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)

			accepted, rejected := n.Counts()
			assert.Equal(t, uint64(0), accepted)
			assert.Equal(t, uint64(1), rejected[tt.field])
		})
	}
}

// -----------------------------------------------------------------------------

func TestNormalizeDepth(t *testing.T) {
	n := NewNormalizer(10)

	trade, depths, err := n.Normalize(validDepthEvent())
	require.NoError(t, err)
	assert.Nil(t, trade)
	require.Len(t, depths, 2)

	assert.Equal(t, models.BookSideBid, depths[0].Side)
	assert.Equal(t, models.BookSideAsk, depths[1].Side)
	assert.Equal(t, models.DepthModify, depths[0].UpdateType)
	assert.Equal(t, 1, depths[0].Level)
	assert.Equal(t, 4, depths[0].OrderCount)
	assert.Equal(t, depths[0].Timestamp, depths[1].Timestamp)
}

// -----------------------------------------------------------------------------

func TestNormalizeDepthDropsLevelsBeyondMaxDepth(t *testing.T) {
	n := NewNormalizer(3)

	ev := validDepthEvent()
	ev.Levels = []models.MRawLevel{
		{Side: "B", Level: 1, Price: 100, Size: 1},
		{Side: "B", Level: 3, Price: 98, Size: 1},
		{Side: "B", Level: 4, Price: 97, Size: 1},
		{Side: "B", Level: 9, Price: 92, Size: 1},
	}

	_, depths, err := n.Normalize(ev)
	require.NoError(t, err)
	require.Len(t, depths, 2)
	assert.Equal(t, 1, depths[0].Level)
	assert.Equal(t, 3, depths[1].Level)

	// Dropping deep levels is not a rejection.
	accepted, rejected := n.Counts()
	assert.Equal(t, uint64(1), accepted)
	assert.Empty(t, rejected)
}

// -----------------------------------------------------------------------------

func TestNormalizeDepthValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.MRawEvent)
		field  string
	}{
		{"no levels", func(e *models.MRawEvent) { e.Levels = nil }, "levels"},
		{"level rank zero", func(e *models.MRawEvent) { e.Levels[0].Level = 0 }, "level"},
		{"bad side", func(e *models.MRawEvent) { e.Levels[0].Side = "Q" }, "side"},
		{"bad update type", func(e *models.MRawEvent) { e.UpdateType = "99" }, "update_type"},
		{"bad level price", func(e *models.MRawEvent) { e.Levels[1].Price = 0 }, "level price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(10)
			ev := validDepthEvent()
			tt.mutate(&ev)

			_, depths, err := n.Normalize(ev)
			require.Error(t, err)
			assert.Nil(t, depths)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

// -----------------------------------------------------------------------------

func TestTranslateAggressorCodes(t *testing.T) {
	buy := []string{"B", "BUY", "buy", "1"}
	for _, code := range buy {
		got, err := translateAggressor(code)
		require.NoError(t, err, code)
		assert.Equal(t, models.AggressorBuy, got, code)
	}

	sell := []string{"S", "SELL", "sell", "2"}
	for _, code := range sell {
		got, err := translateAggressor(code)
		require.NoError(t, err, code)
		assert.Equal(t, models.AggressorSell, got, code)
	}

	// Implied trades may omit the aggressor entirely.
	got, err := translateAggressor("")
	require.NoError(t, err)
	assert.Equal(t, models.MAggressorSide(""), got)
}

// -----------------------------------------------------------------------------

func TestTranslateUpdateTypeCodes(t *testing.T) {
	tests := map[string]models.MDepthUpdateType{
		"":         models.DepthSnapshot,
		"0":        models.DepthSnapshot,
		"snapshot": models.DepthSnapshot,
		"1":        models.DepthAdd,
		"new":      models.DepthAdd,
		"2":        models.DepthDelete,
		"remove":   models.DepthDelete,
		"3":        models.DepthModify,
		"update":   models.DepthModify,
	}
	for code, want := range tests {
		got, err := translateUpdateType(code)
		require.NoError(t, err, code)
		assert.Equal(t, want, got, code)
	}
}

// -----------------------------------------------------------------------------

func TestCountsAccumulate(t *testing.T) {
	n := NewNormalizer(10)

	_, _, _ = n.Normalize(validTradeEvent())
	_, _, _ = n.Normalize(validDepthEvent())

	bad := validTradeEvent()
	bad.Price = 0
	_, _, _ = n.Normalize(bad)
	_, _, _ = n.Normalize(bad)

	accepted, rejected := n.Counts()
	assert.Equal(t, uint64(2), accepted)
	assert.Equal(t, uint64(2), rejected["price"])
}
