package feeds

import (
	"context"
	"fmt"

	"market-collector/src/interfaces"
	"market-collector/src/logger"
	"market-collector/src/models"
	"market-collector/src/serializers"
	"market-collector/src/transports"
)

// -----------------------------------------------------------------------------

// Session is the live implementation of interfaces.IFeedSession: a WebSocket
// connection to the market data gateway plus the subscribe/unsubscribe
// command protocol. Decoded raw events are handed to the callback supplied at
// construction, in arrival order. The session holds no subscription state of
// its own; the collector's state machine is the single source of truth.
type Session struct {
	name       string
	config     *models.MFeedConfig
	logger     *logger.Logger
	serializer interfaces.ISerializer
	client     interfaces.IConnectionClient
	onRaw      func(models.MRawEvent)
}

// -----------------------------------------------------------------------------

// NewSession creates a live feed session over a WebSocket transport.
func NewSession(config *models.MFeedConfig, log *logger.Logger, onRaw func(models.MRawEvent)) *Session {
	s := &Session{
		name:       "FeedSession",
		config:     config,
		logger:     log,
		serializer: serializers.NewJSONSerializer(),
		onRaw:      onRaw,
	}
	s.client = transports.NewWebSocketClient(config, log, s.name, s.handleMessage)
	return s
}

// -----------------------------------------------------------------------------

// Connect establishes the underlying transport connection.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf("feed session connect failed: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Close tears the session down.
func (s *Session) Close() error {
	return s.client.Disconnect()
}

// -----------------------------------------------------------------------------

// IsRunning reports whether the session transport is connected.
func (s *Session) IsRunning() bool {
	return s.client.IsRunning()
}

// -----------------------------------------------------------------------------

// Subscribe opens the trade and depth streams for one symbol.
func (s *Session) Subscribe(symbol, exchange string) error {
	if !s.client.IsRunning() {
		return fmt.Errorf("feed session not connected")
	}

	cmd := wireCommand{
		Command:  "subscribe",
		Symbol:   symbol,
		Exchange: exchange,
		Streams:  []string{"trade", "depth"},
		APIKey:   s.config.APIKey,
	}
	payload, err := s.serializer.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to serialize subscribe command for %s: %w", symbol, err)
	}
	if err := s.client.SendMessage(payload); err != nil {
		return fmt.Errorf("failed to send subscribe command for %s: %w", symbol, err)
	}

	s.logger.Info("%s : subscribed %s on %s", s.name, symbol, exchange)
	return nil
}

// -----------------------------------------------------------------------------

// Unsubscribe closes the streams for one symbol.
func (s *Session) Unsubscribe(symbol, exchange string) error {
	if !s.client.IsRunning() {
		return fmt.Errorf("feed session not connected")
	}

	cmd := wireCommand{
		Command:  "unsubscribe",
		Symbol:   symbol,
		Exchange: exchange,
		Streams:  []string{"trade", "depth"},
	}
	payload, err := s.serializer.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to serialize unsubscribe command for %s: %w", symbol, err)
	}
	if err := s.client.SendMessage(payload); err != nil {
		return fmt.Errorf("failed to send unsubscribe command for %s: %w", symbol, err)
	}

	s.logger.Info("%s : unsubscribed %s on %s", s.name, symbol, exchange)
	return nil
}

// -----------------------------------------------------------------------------
// Private methods
// -----------------------------------------------------------------------------

// handleMessage decodes one transport frame and routes it.
func (s *Session) handleMessage(data []byte) {
	var msg wireMessage
	if err := s.serializer.Unmarshal(data, &msg); err != nil {
		s.logger.Error("%s : failed to decode message: %v (raw: %s)", s.name, err, string(data))
		return
	}

	if raw, ok := msg.toRawEvent(); ok {
		s.onRaw(raw)
		return
	}

	switch msg.Type {
	case "STATUS":
		s.logger.Info("%s : gateway status: %s", s.name, msg.Message)
	case "ERROR":
		s.logger.Error("%s : gateway error: %s", s.name, msg.Message)
	default:
		// Command acks and heartbeats are not interesting.
		s.logger.Debug("%s : ignoring message type %q", s.name, msg.Type)
	}
}
