package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"market-collector/src/interfaces"
	"market-collector/src/logger"
	"market-collector/src/models"

	"github.com/gorilla/mux"
)

const healthCheckTimeout = 3 * time.Second

// -----------------------------------------------------------------------------

// Handler serves the query and control REST API. It never touches the feed
// session directly: reads go to the store, subscription changes go onto the
// durable control queue for the collector process to act on.
type Handler struct {
	name   string
	config *models.MAPIConfig
	logger *logger.Logger

	store      interfaces.IReadStore
	queue      interfaces.IControlQueue
	stateStore interfaces.IStateStore

	defaultExchange string
}

// -----------------------------------------------------------------------------

// NewHandler creates the API handler.
func NewHandler(config *models.MAPIConfig, log *logger.Logger, store interfaces.IReadStore,
	queue interfaces.IControlQueue, stateStore interfaces.IStateStore, defaultExchange string) *Handler {

	return &Handler{
		name:            "RestAPI",
		config:          config,
		logger:          log,
		store:           store,
		queue:           queue,
		stateStore:      stateStore,
		defaultExchange: defaultExchange,
	}
}

// -----------------------------------------------------------------------------

// Router builds the HTTP route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", h.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/api/symbols", h.handleSymbols).Methods(http.MethodGet)
	r.HandleFunc("/api/ticks/{symbol}", h.handleTicks).Methods(http.MethodGet)
	r.HandleFunc("/api/level2/{symbol}", h.handleLevel2).Methods(http.MethodGet)
	r.HandleFunc("/api/subscribe/{symbol}", h.handleSubscribe).Methods(http.MethodPost)
	r.HandleFunc("/api/unsubscribe/{symbol}", h.handleUnsubscribe).Methods(http.MethodPost)
	r.HandleFunc("/api/subscriptions", h.handleSubscriptions).Methods(http.MethodGet)

	return r
}

// -----------------------------------------------------------------------------
// Endpoint handlers
// -----------------------------------------------------------------------------

// handleHealth reports the process plus its dependencies. The API is degraded,
// not down, when a dependency fails: the status code stays 200 with the
// failing component named so an operator can tell which side is broken.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, healthCheckTimeout)
	defer cancel()

	dbStatus := "ok"
	if err := h.store.Ping(ctx); err != nil {
		dbStatus = fmt.Sprintf("error: %v", err)
	}
	redisStatus := "ok"
	if err := h.stateStore.Ping(ctx); err != nil {
		redisStatus = fmt.Sprintf("error: %v", err)
	}

	status := "healthy"
	if dbStatus != "ok" || redisStatus != "ok" {
		status = "degraded"
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"database":  dbStatus,
		"redis":     redisStatus,
		"timestamp": time.Now().UTC(),
	})
}

// -----------------------------------------------------------------------------

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.Stats(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load statistics")
		h.logger.Error("%s : stats query failed: %v", h.name, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"stats": rows, "count": len(rows)})
}

// -----------------------------------------------------------------------------

func (h *Handler) handleSymbols(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.SymbolSummaries(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load symbols")
		h.logger.Error("%s : symbols query failed: %v", h.name, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"symbols": rows, "count": len(rows)})
}

// -----------------------------------------------------------------------------

func (h *Handler) handleTicks(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	limit, err := parseLimit(r, h.config.TickDefaultLimit, h.config.TickMaxLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trades, err := h.store.RecentTrades(r.Context(), symbol, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load trades")
		h.logger.Error("%s : tick query for %s failed: %v", h.name, symbol, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"count":  len(trades),
		"ticks":  trades,
	})
}

// -----------------------------------------------------------------------------

func (h *Handler) handleLevel2(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	limit, err := parseLimit(r, h.config.Level2DefaultLimit, h.config.Level2MaxLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	depths, err := h.store.RecentDepth(r.Context(), symbol, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load depth updates")
		h.logger.Error("%s : level2 query for %s failed: %v", h.name, symbol, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"count":  len(depths),
		"level2": depths,
	})
}

// -----------------------------------------------------------------------------

// subscribeBody is the optional POST body of subscribe/unsubscribe requests.
type subscribeBody struct {
	Exchange string `json:"exchange"`
}

// handleSubscribe queues a subscription request on the control plane.
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	h.queueRequest(w, r, models.ActionSubscribe)
}

// handleUnsubscribe queues a subscription removal.
func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	h.queueRequest(w, r, models.ActionUnsubscribe)
}

// -----------------------------------------------------------------------------

func (h *Handler) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	states, err := h.stateStore.States(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load subscription states")
		h.logger.Error("%s : subscriptions query failed: %v", h.name, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"subscriptions": states, "count": len(states)})
}

// -----------------------------------------------------------------------------
// Private methods
// -----------------------------------------------------------------------------

func (h *Handler) queueRequest(w http.ResponseWriter, r *http.Request, action models.MSubscriptionAction) {
	symbol := mux.Vars(r)["symbol"]
	if symbol == "" {
		h.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	var body subscribeBody
	if r.Body != nil {
		// Empty bodies are fine; only malformed JSON is rejected.
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}
	exchange := body.Exchange
	if exchange == "" {
		exchange = h.defaultExchange
	}

	req := models.MSubscriptionRequest{
		Symbol:      symbol,
		Exchange:    exchange,
		Action:      action,
		RequestedAt: time.Now().UTC(),
	}
	if err := h.queue.Publish(r.Context(), req); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "control plane unavailable")
		h.logger.Error("%s : failed to queue %s for %s: %v", h.name, action, symbol, err)
		return
	}

	// 202: the collector opens or closes the feed subscription asynchronously;
	// poll /api/subscriptions for the outcome.
	status := "subscribed"
	if action == models.ActionUnsubscribe {
		status = "unsubscribed"
	}
	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   status,
		"symbol":   symbol,
		"exchange": exchange,
	})
}

// -----------------------------------------------------------------------------

// parseLimit reads the limit query parameter, applying the default and
// silently capping at the hard maximum.
func parseLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > max {
		limit = max
	}
	return limit, nil
}

// -----------------------------------------------------------------------------

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("%s : failed to encode response: %v", h.name, err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"error": message})
}

func contextWithTimeout(r *http.Request, d time.Duration) (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
