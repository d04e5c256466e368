package publishers

import (
	"fmt"
	"sync"

	"market-collector/src/interfaces"
	"market-collector/src/logger"
	"market-collector/src/models"

	"github.com/nats-io/nats.go"
)

// -----------------------------------------------------------------------------
// NATSPublisher fans canonical records out on NATS Core subjects
// -----------------------------------------------------------------------------

// NATSPublisher implements interfaces.IPublisher over a NATS core connection.
// Delivery is fire-and-forget: the database is the system of record and a
// dropped fan-out message is never retried.
type NATSPublisher struct {
	name   string
	config *models.MNATSConfig
	logger *logger.Logger

	mu sync.RWMutex

	nc         *nats.Conn
	serializer interfaces.ISerializer

	connected bool
}

// -----------------------------------------------------------------------------

// NewNATSPublisher creates a new publisher instance.
func NewNATSPublisher(config *models.MNATSConfig, logger *logger.Logger, serializer interfaces.ISerializer) interfaces.IPublisher {
	return &NATSPublisher{
		name:   config.ClientID,
		config: config,
		logger: logger,

		serializer: serializer,
	}
}

// -----------------------------------------------------------------------------

// OnTrade publishes one committed trade on trade.<symbol>.
func (np *NATSPublisher) OnTrade(trade *models.MTrade) {
	subject := fmt.Sprintf("trade.%s", trade.Symbol)
	np.publishRecord(subject, trade)
}

// -----------------------------------------------------------------------------

// OnDepth publishes one committed depth update on depth.<symbol>.
func (np *NATSPublisher) OnDepth(depth *models.MDepthUpdate) {
	subject := fmt.Sprintf("depth.%s", depth.Symbol)
	np.publishRecord(subject, depth)
}

// -----------------------------------------------------------------------------

// Connect establishes the connection to the NATS server.
func (np *NATSPublisher) Connect() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc != nil && np.nc.IsConnected() {
		return nil
	}

	opts := []nats.Option{
		nats.Name(np.config.ClientID),
		nats.Timeout(np.config.ConnectTimeout),
		nats.ReconnectWait(np.config.ReconnectWait),
		nats.MaxReconnects(np.config.MaxReconnects),

		// Connection Event Handlers
		nats.RetryOnFailedConnect(true),
		nats.ClosedHandler(func(nc *nats.Conn) {
			np.logger.Error("%s : NATS connection closed unexpectedly", np.name)
			np.setConnected(false)
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			np.logger.Warning("%s : NATS disconnected, attempting reconnect: %v", np.name, err)
			np.setConnected(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			np.logger.Info("%s : NATS successfully reconnected to %s", np.name, nc.ConnectedUrl())
			np.setConnected(true)
		}),
	}

	var err error
	np.nc, err = nats.Connect(np.config.Servers[0], opts...)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}

	np.connected = true
	np.logger.Info("%s : successfully connected to NATS at %s", np.name, np.nc.ConnectedUrl())
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect flushes pending publishes and closes the NATS connection.
func (np *NATSPublisher) Disconnect() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc == nil || np.nc.IsClosed() {
		return nil
	}

	if np.nc.IsConnected() {
		if err := np.nc.Flush(); err != nil {
			np.logger.Warning("%s : flush before disconnect failed: %v", np.name, err)
		}
	}

	np.nc.Close()
	np.connected = false
	np.logger.Info("%s : NATS connection closed successfully", np.name)
	return nil
}

// -----------------------------------------------------------------------------

// IsConnected returns connection status.
func (np *NATSPublisher) IsConnected() bool {
	np.mu.RLock()
	defer np.mu.RUnlock()
	return np.connected
}

// -----------------------------------------------------------------------------
// Private methods
// -----------------------------------------------------------------------------

// publishRecord serializes one record and publishes it fire-and-forget.
func (np *NATSPublisher) publishRecord(subject string, record any) {
	if !np.IsConnected() {
		return
	}
	fullSubject := np.getSubject(subject)

	payload, err := np.serializer.Marshal(record)
	if err != nil {
		np.logger.Error("%s : failed to serialize record for subject %s: %v", np.name, fullSubject, err)
		return
	}

	if err := np.nc.Publish(fullSubject, payload); err != nil {
		np.logger.Error("%s : failed to publish to subject %s: %v", np.name, fullSubject, err)
	}
}

// -----------------------------------------------------------------------------

// setConnected updates the connection status from NATS event handlers.
func (np *NATSPublisher) setConnected(status bool) {
	np.mu.Lock()
	np.connected = status
	np.mu.Unlock()
}

// -----------------------------------------------------------------------------

// getSubject prepends the configured subject prefix if it exists.
func (np *NATSPublisher) getSubject(subject string) string {
	if np.config.SubjectPrefix != "" {
		return fmt.Sprintf("%s.%s", np.config.SubjectPrefix, subject)
	}
	return subject
}
