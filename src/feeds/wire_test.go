package feeds

import (
	"testing"

	"market-collector/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRawEventTrade(t *testing.T) {
	msg := &wireMessage{
		Type: "TICK", Symbol: "GCQ5", Exchange: "CME",
		TimestampMs: 1755851400123, Price: 2451.5, Size: 2,
		Aggressor: "B", TradeID: "t-1",
	}

	raw, ok := msg.toRawEvent()
	require.True(t, ok)
	assert.Equal(t, models.RawEventTrade, raw.Type)
	assert.Equal(t, "GCQ5", raw.Symbol)
	assert.Equal(t, int64(1755851400123), raw.TimestampMs)
	assert.Equal(t, "B", raw.Aggressor, "vendor codes pass through untranslated")

	// Both vendor spellings map to the same event.
	msg.Type = "TRADE"
	raw2, ok := msg.toRawEvent()
	require.True(t, ok)
	assert.Equal(t, raw, raw2)
}

// -----------------------------------------------------------------------------

func TestToRawEventDepth(t *testing.T) {
	msg := &wireMessage{
		Type: "DEPTH", Symbol: "GCQ5", Exchange: "CME",
		TimestampMs: 1755851400123, UpdateType: "3",
		Levels: []wireLevel{
			{Side: "B", Level: 1, Price: 2451.4, Size: 10, NumOrders: 4},
			{Side: "A", Level: 2, Price: 2451.7, Size: 6, NumOrders: 1},
		},
	}

	raw, ok := msg.toRawEvent()
	require.True(t, ok)
	assert.Equal(t, models.RawEventDepth, raw.Type)
	assert.Equal(t, "3", raw.UpdateType)
	require.Len(t, raw.Levels, 2)
	assert.Equal(t, "B", raw.Levels[0].Side)
	assert.Equal(t, 4, raw.Levels[0].OrderCount)
	assert.Equal(t, 2, raw.Levels[1].Level)
}

// -----------------------------------------------------------------------------

func TestToRawEventIgnoresControlMessages(t *testing.T) {
	for _, typ := range []string{"STATUS", "ERROR", "ACK", ""} {
		msg := &wireMessage{Type: typ, Message: "whatever"}
		_, ok := msg.toRawEvent()
		assert.False(t, ok, typ)
	}
}
