package transports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"market-collector/src/logger"
	"market-collector/src/models"
	"market-collector/src/utils"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	recvBufferSize   = 1000
	reconnectPause   = time.Second
)

// -----------------------------------------------------------------------------

// WebSocketClient implements interfaces.IConnectionClient using Gorilla WebSocket.
type WebSocketClient struct {
	conn         *websocket.Conn
	name         string
	config       *models.MFeedConfig
	logger       *logger.Logger
	isRunning    bool
	mu           sync.RWMutex
	recvMsgChann chan []byte
	errChann     chan error
	done         chan struct{}
	onRawData    func([]byte)
}

// -----------------------------------------------------------------------------

// NewWebSocketClient creates a new WebSocket client. Every complete text
// message received on the connection is handed to onRawData in arrival order.
func NewWebSocketClient(config *models.MFeedConfig, logger *logger.Logger, name string, onRawData func([]byte)) *WebSocketClient {
	return &WebSocketClient{
		name:         name,
		config:       config,
		logger:       logger,
		recvMsgChann: make(chan []byte, recvBufferSize),
		errChann:     make(chan error, 10),
		done:         make(chan struct{}),
		onRawData:    onRawData,
	}
}

// -----------------------------------------------------------------------------

// Connect establishes the WebSocket connection and starts processing.
func (w *WebSocketClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.Dial(w.config.Endpoint, nil)
	if err != nil {
		w.logger.Error("%s : failed to connect to %s: %v", w.name, utils.MaskAPIKey(w.config.Endpoint), err)
		return fmt.Errorf("failed to connect to %s: %w", w.config.Endpoint, err)
	}

	// Recreate channels for a new connection
	w.recvMsgChann = make(chan []byte, recvBufferSize)
	w.errChann = make(chan error, 10)
	w.done = make(chan struct{})

	w.conn = conn
	w.isRunning = true

	w.logger.Info("%s : WebSocket connected to %s", w.name, utils.MaskAPIKey(w.config.Endpoint))

	go w.receiveLoop(ctx)
	go w.dispatchLoop(ctx)
	go w.errorLoop(ctx)

	return nil
}

// -----------------------------------------------------------------------------

// Disconnect closes the connection.
func (w *WebSocketClient) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return nil
	}

	w.isRunning = false
	close(w.done)

	if w.conn != nil {
		err := w.conn.Close()
		w.conn = nil
		if err != nil {
			return fmt.Errorf("failed to close connection %s: %w", w.config.Endpoint, err)
		}
	}

	w.logger.Info("%s : WebSocket disconnected from %s", w.name, utils.MaskAPIKey(w.config.Endpoint))
	return nil
}

// -----------------------------------------------------------------------------

// GetName returns the client name.
func (w *WebSocketClient) GetName() string {
	return w.name
}

// GetType returns the transport type.
func (w *WebSocketClient) GetType() string {
	return "websocket"
}

// IsRunning returns the connection status.
func (w *WebSocketClient) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isRunning
}

// -----------------------------------------------------------------------------

// SendMessage sends a text message over the WebSocket.
func (w *WebSocketClient) SendMessage(data []byte) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.conn == nil {
		return fmt.Errorf("connection is nil")
	}

	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Private methods
// -----------------------------------------------------------------------------

// receiveLoop reads frames off the connection and pushes them onto the
// internal channel, reconnecting up to the configured attempt bound.
func (w *WebSocketClient) receiveLoop(ctx context.Context) {
	reconnectAttempts := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		default:
			if !w.IsRunning() {
				return
			}

			messageType, message, err := w.conn.ReadMessage()
			if err != nil {
				select {
				case <-w.done:
					return
				default:
				}

				w.errChann <- fmt.Errorf("read message error: %w", err)

				if reconnectAttempts < w.config.ReconnectAttempts {
					reconnectAttempts++
					w.logger.Info("%s : attempting to reconnect (attempt %d/%d)", w.name, reconnectAttempts, w.config.ReconnectAttempts)
					w.attemptReconnect(ctx)
					continue
				}
				return
			}

			if messageType == websocket.TextMessage {
				select {
				case w.recvMsgChann <- message:
				case <-ctx.Done():
					return
				case <-w.done:
					return
				}
			}

			// Reset reconnect attempts on successful read
			reconnectAttempts = 0
		}
	}
}

// -----------------------------------------------------------------------------

// dispatchLoop hands received messages to the onRawData callback, preserving
// arrival order.
func (w *WebSocketClient) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case byteMessage, ok := <-w.recvMsgChann:
			if !ok {
				return
			}
			w.onRawData(byteMessage)
		}
	}
}

// -----------------------------------------------------------------------------

// errorLoop logs transport errors off the error channel.
func (w *WebSocketClient) errorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case err := <-w.errChann:
			w.logger.Error("%s : websocket error: %v", w.name, err)
		}
	}
}

// -----------------------------------------------------------------------------

// attemptReconnect attempts to re-dial the endpoint after a read failure.
func (w *WebSocketClient) attemptReconnect(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-ctx.Done():
		return
	case <-w.done:
		return
	default:
		if !w.isRunning {
			return
		}
	}

	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}

	time.Sleep(reconnectPause)

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.Dial(w.config.Endpoint, nil)
	if err != nil {
		w.logger.Error("%s : reconnection failed: %v", w.name, err)
		return
	}

	w.conn = conn
	w.logger.Info("%s : successfully reconnected to %s", w.name, utils.MaskAPIKey(w.config.Endpoint))
}
