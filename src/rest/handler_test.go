package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"market-collector/src/logger"
	"market-collector/src/models"
	"market-collector/src/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	handler *Handler
	store   *testutils.MemStore
	queue   *testutils.MemQueue
	states  *testutils.MemStateStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		store:  testutils.NewMemStore(),
		queue:  testutils.NewMemQueue(16),
		states: testutils.NewMemStateStore(),
	}
	cfg := &models.MAPIConfig{
		TickDefaultLimit:   100,
		TickMaxLimit:       1000,
		Level2DefaultLimit: 50,
		Level2MaxLimit:     500,
	}
	f.handler = NewHandler(cfg, logger.NewNop(), f.store, f.queue, f.states, "CME")
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.Router().ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec, payload
}

func (f *apiFixture) seedTrades(t *testing.T, symbol string, count int) {
	t.Helper()
	batch := &models.MBatch{Symbol: symbol}
	base := time.Date(2025, 8, 22, 10, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		batch.Trades = append(batch.Trades, models.MTrade{
			Symbol: symbol, Exchange: "CME",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Price:     2451.5, Size: float64(i + 1),
		})
	}
	require.NoError(t, f.store.FlushBatch(context.Background(), batch))
}

// -----------------------------------------------------------------------------

func TestHealthReportsDependencies(t *testing.T) {
	f := newAPIFixture(t)

	rec, payload := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", payload["status"])
	assert.Equal(t, "ok", payload["database"])
	assert.Equal(t, "ok", payload["redis"])
}

func TestHealthDegradedWhenRedisDown(t *testing.T) {
	f := newAPIFixture(t)
	f.states.PingErr = fmt.Errorf("connection refused")

	rec, payload := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", payload["status"])
	assert.Equal(t, "ok", payload["database"])
	assert.Contains(t, payload["redis"], "connection refused")
}

// -----------------------------------------------------------------------------

func TestTicksDefaultLimit(t *testing.T) {
	f := newAPIFixture(t)
	f.seedTrades(t, "GCQ5", 150)

	rec, payload := f.do(t, http.MethodGet, "/api/ticks/GCQ5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(100), payload["count"])
	assert.Equal(t, "GCQ5", payload["symbol"])
}

func TestTicksNewestFirst(t *testing.T) {
	f := newAPIFixture(t)
	f.seedTrades(t, "GCQ5", 5)

	_, payload := f.do(t, http.MethodGet, "/api/ticks/GCQ5?limit=2", "")
	ticks := payload["ticks"].([]any)
	require.Len(t, ticks, 2)
	first := ticks[0].(map[string]any)
	second := ticks[1].(map[string]any)
	// Sizes 1..5 seeded in timestamp order, so newest first means 5 then 4.
	assert.Equal(t, float64(5), first["size"])
	assert.Equal(t, float64(4), second["size"])
}

func TestTicksLimitCappedAtMaximum(t *testing.T) {
	f := newAPIFixture(t)
	f.seedTrades(t, "GCQ5", 1200)

	rec, payload := f.do(t, http.MethodGet, "/api/ticks/GCQ5?limit=5000", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1000), payload["count"])
}

func TestTicksRejectsMalformedLimit(t *testing.T) {
	f := newAPIFixture(t)

	for _, limit := range []string{"abc", "-1", "0"} {
		rec, payload := f.do(t, http.MethodGet, "/api/ticks/GCQ5?limit="+limit, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
		assert.Contains(t, payload["error"], "limit")
	}
}

func TestTicksUnknownSymbolReturnsEmpty(t *testing.T) {
	f := newAPIFixture(t)

	rec, payload := f.do(t, http.MethodGet, "/api/ticks/ZZZZ", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), payload["count"])
}

// -----------------------------------------------------------------------------

func TestLevel2UsesOwnLimits(t *testing.T) {
	f := newAPIFixture(t)

	batch := &models.MBatch{Symbol: "GCQ5"}
	base := time.Date(2025, 8, 22, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 80; i++ {
		batch.Depths = append(batch.Depths, models.MDepthUpdate{
			Symbol: "GCQ5", Timestamp: base.Add(time.Duration(i) * time.Second),
			Side: models.BookSideBid, Level: 1, Price: 2451, Size: 5,
		})
	}
	require.NoError(t, f.store.FlushBatch(context.Background(), batch))

	_, payload := f.do(t, http.MethodGet, "/api/level2/GCQ5", "")
	assert.Equal(t, float64(50), payload["count"])

	_, payload = f.do(t, http.MethodGet, "/api/level2/GCQ5?limit=9999", "")
	assert.Equal(t, float64(80), payload["count"], "cap is 500, store only has 80")
}

// -----------------------------------------------------------------------------

func TestSubscribeQueuesRequest(t *testing.T) {
	f := newAPIFixture(t)

	rec, payload := f.do(t, http.MethodPost, "/api/subscribe/GCQ5", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "subscribed", payload["status"])
	assert.Equal(t, "CME", payload["exchange"], "default exchange applies")

	req, err := f.queue.Consume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "GCQ5", req.Symbol)
	assert.Equal(t, models.ActionSubscribe, req.Action)
	assert.Equal(t, "CME", req.Exchange)
	assert.False(t, req.RequestedAt.IsZero())
}

func TestSubscribeHonorsExchangeInBody(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/subscribe/6EU5", `{"exchange":"COMEX"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	req, err := f.queue.Consume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "COMEX", req.Exchange)
}

func TestSubscribeRejectsMalformedBody(t *testing.T) {
	f := newAPIFixture(t)

	rec, payload := f.do(t, http.MethodPost, "/api/subscribe/GCQ5", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, payload["error"], "malformed")
}

func TestUnsubscribeQueuesRequest(t *testing.T) {
	f := newAPIFixture(t)

	rec, payload := f.do(t, http.MethodPost, "/api/unsubscribe/GCQ5", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "unsubscribed", payload["status"])

	req, err := f.queue.Consume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ActionUnsubscribe, req.Action)
}

// -----------------------------------------------------------------------------

func TestSubscriptionsListsMirroredStates(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.states.SetState(context.Background(), models.MSubscriptionStatus{
		Symbol: "GCQ5", Exchange: "CME", State: models.SubStateSubscribed, UpdatedAt: time.Now().UTC(),
	}))
	require.NoError(t, f.states.SetState(context.Background(), models.MSubscriptionStatus{
		Symbol: "NQZ5", Exchange: "CME", State: models.SubStateFailed, UpdatedAt: time.Now().UTC(),
	}))

	rec, payload := f.do(t, http.MethodGet, "/api/subscriptions", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), payload["count"])

	subs := payload["subscriptions"].([]any)
	first := subs[0].(map[string]any)
	assert.Equal(t, "GCQ5", first["symbol"])
	assert.Equal(t, "subscribed", first["state"])
}

// -----------------------------------------------------------------------------

func TestSymbolsAndStatsEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.seedTrades(t, "GCQ5", 3)

	rec, payload := f.do(t, http.MethodGet, "/api/symbols", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), payload["count"])
	symbols := payload["symbols"].([]any)
	row := symbols[0].(map[string]any)
	assert.Equal(t, "GCQ5", row["symbol"])
	assert.Equal(t, float64(3), row["tick_count"])

	rec, payload = f.do(t, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	stats := payload["stats"].([]any)
	require.Len(t, stats, 1)
	statRow := stats[0].(map[string]any)
	assert.Equal(t, "2025-08-22", statRow["date"])
	assert.Equal(t, float64(3), statRow["tick_count"])
	assert.InDelta(t, 2.0, statRow["avg_volume"].(float64), 1e-9)
}
