package controlplane

import (
	"time"

	"market-collector/src/models"
)

// -----------------------------------------------------------------------------

// SubscriptionStates is the in-memory per-symbol subscription state machine.
// It is pure bookkeeping with no I/O and is not safe for concurrent use: the
// collector's control goroutine owns it exclusively and mirrors every
// transition into the shared state store for other processes to read.
type SubscriptionStates struct {
	states map[string]models.MSubscriptionStatus
}

// -----------------------------------------------------------------------------

// NewSubscriptionStates creates an empty state machine.
func NewSubscriptionStates() *SubscriptionStates {
	return &SubscriptionStates{
		states: make(map[string]models.MSubscriptionStatus),
	}
}

// -----------------------------------------------------------------------------

// MarkPending moves a symbol to pending. Returns false without any change
// when the symbol is already pending or subscribed: the duplicate request
// must not open a second feed subscription.
func (s *SubscriptionStates) MarkPending(symbol, exchange string) bool {
	cur, ok := s.states[symbol]
	if ok && (cur.State == models.SubStatePending || cur.State == models.SubStateSubscribed) {
		return false
	}
	s.set(symbol, exchange, models.SubStatePending)
	return true
}

// MarkSubscribed records a successful feed subscription.
func (s *SubscriptionStates) MarkSubscribed(symbol, exchange string) {
	s.set(symbol, exchange, models.SubStateSubscribed)
}

// MarkFailed records an exhausted subscribe retry budget. The symbol stays
// queryable in this terminal state until a fresh subscribe request arrives.
func (s *SubscriptionStates) MarkFailed(symbol, exchange string) {
	s.set(symbol, exchange, models.SubStateFailed)
}

// MarkUnsubscribed records a completed unsubscribe.
func (s *SubscriptionStates) MarkUnsubscribed(symbol, exchange string) {
	s.set(symbol, exchange, models.SubStateUnsubscribed)
}

// -----------------------------------------------------------------------------

// Get returns a symbol's current status. Unknown symbols are unsubscribed.
func (s *SubscriptionStates) Get(symbol string) models.MSubscriptionStatus {
	if cur, ok := s.states[symbol]; ok {
		return cur
	}
	return models.MSubscriptionStatus{Symbol: symbol, State: models.SubStateUnsubscribed}
}

// IsSubscribed reports whether a symbol is currently subscribed.
func (s *SubscriptionStates) IsSubscribed(symbol string) bool {
	return s.Get(symbol).State == models.SubStateSubscribed
}

// Snapshot returns a copy of every tracked status.
func (s *SubscriptionStates) Snapshot() []models.MSubscriptionStatus {
	out := make([]models.MSubscriptionStatus, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	return out
}

// -----------------------------------------------------------------------------
// Private methods
// -----------------------------------------------------------------------------

func (s *SubscriptionStates) set(symbol, exchange string, state models.MSubscriptionState) {
	s.states[symbol] = models.MSubscriptionStatus{
		Symbol:    symbol,
		Exchange:  exchange,
		State:     state,
		UpdatedAt: time.Now().UTC(),
	}
}
