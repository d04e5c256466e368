package testutils

import (
	"context"
	"errors"
	"sort"
	"sync"

	"market-collector/src/models"
)

var errInjected = errors.New("injected failure")

// -----------------------------------------------------------------------------

// MemQueue is an in-memory control queue with the same at-least-once contract
// as the Redis list: Publish never blocks, Consume blocks until a request or
// context cancellation.
type MemQueue struct {
	ch chan models.MSubscriptionRequest
}

// NewMemQueue creates a queue with room for the given number of requests.
func NewMemQueue(capacity int) *MemQueue {
	return &MemQueue{ch: make(chan models.MSubscriptionRequest, capacity)}
}

func (q *MemQueue) Publish(_ context.Context, req models.MSubscriptionRequest) error {
	q.ch <- req
	return nil
}

func (q *MemQueue) Consume(ctx context.Context) (*models.MSubscriptionRequest, error) {
	select {
	case req := <-q.ch:
		return &req, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// -----------------------------------------------------------------------------

// MemStateStore is an in-memory subscription state mirror.
type MemStateStore struct {
	mu sync.Mutex

	// PingErr, when set, is returned by Ping.
	PingErr error

	states map[string]models.MSubscriptionStatus
}

// NewMemStateStore creates an empty mirror.
func NewMemStateStore() *MemStateStore {
	return &MemStateStore{states: make(map[string]models.MSubscriptionStatus)}
}

func (s *MemStateStore) SetState(_ context.Context, status models.MSubscriptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[status.Symbol] = status
	return nil
}

func (s *MemStateStore) States(_ context.Context) ([]models.MSubscriptionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MSubscriptionStatus, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *MemStateStore) Ping(_ context.Context) error {
	return s.PingErr
}

// State returns the recorded status for one symbol.
func (s *MemStateStore) State(symbol string) (models.MSubscriptionStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[symbol]
	return st, ok
}
