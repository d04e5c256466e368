package testutils

import (
	"context"
	"sync"
)

// -----------------------------------------------------------------------------

// StubFeedSession is a deterministic feed session double. Subscribe calls are
// recorded, failures are injected per symbol, and the test drives the data
// path by invoking the collector's raw event callback directly.
type StubFeedSession struct {
	mu sync.Mutex

	running bool

	// SubscribeFailures injects that many Subscribe errors per symbol before
	// the call succeeds.
	SubscribeFailures map[string]int

	subscribeCalls   []string
	unsubscribeCalls []string
	subscribed       map[string]string
}

// -----------------------------------------------------------------------------

// NewStubFeedSession creates a disconnected stub.
func NewStubFeedSession() *StubFeedSession {
	return &StubFeedSession{
		SubscribeFailures: make(map[string]int),
		subscribed:        make(map[string]string),
	}
}

// -----------------------------------------------------------------------------

func (s *StubFeedSession) Connect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	return nil
}

func (s *StubFeedSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *StubFeedSession) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// -----------------------------------------------------------------------------

func (s *StubFeedSession) Subscribe(symbol, exchange string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribeCalls = append(s.subscribeCalls, symbol)
	if n := s.SubscribeFailures[symbol]; n > 0 {
		s.SubscribeFailures[symbol] = n - 1
		return errInjected
	}
	s.subscribed[symbol] = exchange
	return nil
}

func (s *StubFeedSession) Unsubscribe(symbol, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unsubscribeCalls = append(s.unsubscribeCalls, symbol)
	delete(s.subscribed, symbol)
	return nil
}

// -----------------------------------------------------------------------------

// SubscribeCalls returns every Subscribe invocation in order, including the
// failed ones.
func (s *StubFeedSession) SubscribeCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subscribeCalls...)
}

// UnsubscribeCalls returns every Unsubscribe invocation in order.
func (s *StubFeedSession) UnsubscribeCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.unsubscribeCalls...)
}

// IsSubscribed reports whether the stub currently holds a subscription.
func (s *StubFeedSession) IsSubscribed(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subscribed[symbol]
	return ok
}

// OpenSubscriptions returns how many subscriptions are currently open.
func (s *StubFeedSession) OpenSubscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribed)
}
