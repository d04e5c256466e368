package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"market-collector/src/controlplane"
	"market-collector/src/interfaces"
	"market-collector/src/logger"
	"market-collector/src/models"
	"market-collector/src/normalizer"
	"market-collector/src/store"
)

const (
	requestBufferSize  = 64
	stateMirrorTimeout = 3 * time.Second
	retentionInterval  = time.Hour
)

// -----------------------------------------------------------------------------

// Collector wires the feed session, normalizer, batch writer and control
// plane together. A single control goroutine owns the subscription state
// machine; everything that mutates it (queued requests, retry outcomes)
// arrives there over channels, so duplicate subscribe requests collapse
// without locking.
type Collector struct {
	name       string
	config     *models.MConfig
	logger     *logger.Logger
	session    interfaces.IFeedSession
	writer     *store.BatchWriter
	normalizer *normalizer.Normalizer
	queue      interfaces.IControlQueue
	stateStore interfaces.IStateStore
	publisher  interfaces.IPublisher
	retention  interfaces.IRetentionStore

	states *controlplane.SubscriptionStates

	// epochs invalidates in-flight subscribe attempts: owned by the control
	// goroutine, bumped on every subscribe start and unsubscribe, and carried
	// through subscribeResult so a stale outcome cannot overwrite a later
	// transition.
	epochs map[string]uint64

	requests chan models.MSubscriptionRequest
	results  chan subscribeResult

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// subscribeResult is the outcome of one async subscribe attempt sequence.
type subscribeResult struct {
	symbol   string
	exchange string
	epoch    uint64
	err      error
}

// -----------------------------------------------------------------------------

// Options carries the optional collaborators.
type Options struct {
	// Publisher fans committed events out on a message bus. Nil disables.
	Publisher interfaces.IPublisher

	// Retention prunes raw history when writer.retention_days is set. Nil
	// disables pruning.
	Retention interfaces.IRetentionStore
}

// -----------------------------------------------------------------------------

// New creates a collector. The session must have been built with OnRawEvent
// as its raw event callback.
func New(config *models.MConfig, log *logger.Logger, session interfaces.IFeedSession,
	writer *store.BatchWriter, norm *normalizer.Normalizer,
	queue interfaces.IControlQueue, stateStore interfaces.IStateStore, opts Options) *Collector {

	return &Collector{
		name:       "Collector",
		config:     config,
		logger:     log,
		session:    session,
		writer:     writer,
		normalizer: norm,
		queue:      queue,
		stateStore: stateStore,
		publisher:  opts.Publisher,
		retention:  opts.Retention,
		states:     controlplane.NewSubscriptionStates(),
		epochs:     make(map[string]uint64),
		requests:   make(chan models.MSubscriptionRequest, requestBufferSize),
		results:    make(chan subscribeResult, requestBufferSize),
	}
}

// -----------------------------------------------------------------------------

// SetSession attaches the feed session. The session is built after the
// collector because it delivers raw events through OnRawEvent; call this
// before Run.
func (c *Collector) SetSession(session interfaces.IFeedSession) {
	c.session = session
}

// -----------------------------------------------------------------------------

// Run connects the session and starts the control loop. It returns once
// startup is complete; Stop shuts everything down.
func (c *Collector) Run(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	if err := c.session.Connect(ctx); err != nil {
		return fmt.Errorf("collector startup failed: %w", err)
	}

	if c.publisher != nil {
		if err := c.publisher.Connect(); err != nil {
			// The durable path is the store; fan-out comes up when the broker does.
			c.logger.Warning("%s : publisher connect failed, continuing without fan-out: %v", c.name, err)
		}
	}

	c.wg.Add(2)
	go c.consumeLoop(ctx)
	go c.controlLoop(ctx)

	if c.retention != nil && c.config.Writer.RetentionDays > 0 {
		c.wg.Add(1)
		go c.retentionLoop(ctx)
	}

	// Symbols configured at startup go through the same path as API requests.
	for _, symbol := range c.config.Feed.Symbols {
		c.requests <- models.MSubscriptionRequest{
			Symbol:      symbol,
			Exchange:    c.config.Feed.DefaultExchange,
			Action:      models.ActionSubscribe,
			RequestedAt: time.Now().UTC(),
		}
	}

	c.logger.Info("%s : running with %d initial symbols", c.name, len(c.config.Feed.Symbols))
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the collector down: control loop first, then the feed session,
// then the writer so every buffered record is flushed.
func (c *Collector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if err := c.session.Close(); err != nil {
		c.logger.Error("%s : session close failed: %v", c.name, err)
	}
	c.writer.Close()

	if c.publisher != nil {
		if err := c.publisher.Disconnect(); err != nil {
			c.logger.Error("%s : publisher disconnect failed: %v", c.name, err)
		}
	}
	c.logger.Info("%s : stopped", c.name)
}

// -----------------------------------------------------------------------------

// OnRawEvent is the data path: normalize one raw event and buffer the result.
// Called from the session's dispatch goroutine in arrival order; rejected
// events are counted by the normalizer and dropped here.
func (c *Collector) OnRawEvent(raw models.MRawEvent) {
	trade, depths, err := c.normalizer.Normalize(raw)
	if err != nil {
		c.logger.Debug("%s : dropped event for %s: %v", c.name, raw.Symbol, err)
		return
	}

	if trade != nil {
		if err := c.writer.AppendTrade(trade); err != nil {
			c.logger.Error("%s : append trade for %s failed: %v", c.name, trade.Symbol, err)
			return
		}
		if c.publisher != nil {
			c.publisher.OnTrade(trade)
		}
		return
	}

	if err := c.writer.AppendDepths(depths); err != nil {
		c.logger.Error("%s : append depth for %s failed: %v", c.name, raw.Symbol, err)
		return
	}
	if c.publisher != nil {
		for i := range depths {
			c.publisher.OnDepth(&depths[i])
		}
	}
}

// -----------------------------------------------------------------------------
// Private methods
// -----------------------------------------------------------------------------

// consumeLoop pulls requests off the durable queue and feeds the control loop.
func (c *Collector) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		req, err := c.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("%s : control queue consume failed: %v", c.name, err)
			time.Sleep(time.Second)
			continue
		}

		select {
		case c.requests <- *req:
		case <-ctx.Done():
			return
		}
	}
}

// -----------------------------------------------------------------------------

// controlLoop is the single owner of the subscription state machine.
func (c *Collector) controlLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-c.requests:
			switch req.Action {
			case models.ActionSubscribe:
				c.handleSubscribe(ctx, req)
			case models.ActionUnsubscribe:
				c.handleUnsubscribe(ctx, req)
			default:
				c.logger.Error("%s : unknown control action %q for %s", c.name, req.Action, req.Symbol)
			}

		case res := <-c.results:
			if res.epoch != c.epochs[res.symbol] {
				// An unsubscribe (or a newer subscribe) superseded this
				// attempt while it was in flight. A late success would have
				// opened the feed stream anyway, so close it back down.
				if res.err == nil {
					if err := c.session.Unsubscribe(res.symbol, res.exchange); err != nil {
						c.logger.Error("%s : closing superseded subscription for %s failed: %v", c.name, res.symbol, err)
					}
				}
				c.logger.Info("%s : discarding stale subscribe outcome for %s", c.name, res.symbol)
				continue
			}
			if res.err != nil {
				c.logger.Error("%s : subscription failed for %s: %v", c.name, res.symbol, res.err)
				c.states.MarkFailed(res.symbol, res.exchange)
			} else {
				c.logger.Info("%s : subscription active for %s on %s", c.name, res.symbol, res.exchange)
				c.states.MarkSubscribed(res.symbol, res.exchange)
			}
			c.mirrorState(res.symbol)
		}
	}
}

// -----------------------------------------------------------------------------

// handleSubscribe starts the async subscribe attempt sequence for one symbol.
// Requests for an already pending or subscribed symbol are no-ops, which is
// what makes the at-least-once queue safe.
func (c *Collector) handleSubscribe(ctx context.Context, req models.MSubscriptionRequest) {
	exchange := req.Exchange
	if exchange == "" {
		exchange = c.config.Feed.DefaultExchange
	}

	if !c.states.MarkPending(req.Symbol, exchange) {
		c.logger.Info("%s : duplicate subscribe for %s ignored (state %s)",
			c.name, req.Symbol, c.states.Get(req.Symbol).State)
		return
	}
	c.mirrorState(req.Symbol)

	c.epochs[req.Symbol]++
	go c.attemptSubscribe(ctx, req.Symbol, exchange, c.epochs[req.Symbol])
}

// -----------------------------------------------------------------------------

// attemptSubscribe retries the feed subscription with exponential backoff and
// reports the terminal outcome to the control loop.
func (c *Collector) attemptSubscribe(ctx context.Context, symbol, exchange string, epoch uint64) {
	retries := c.config.Feed.SubscribeRetries
	backoff := c.config.Feed.SubscribeBackoff

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		lastErr = c.session.Subscribe(symbol, exchange)
		if lastErr == nil {
			c.reportResult(ctx, subscribeResult{symbol: symbol, exchange: exchange, epoch: epoch})
			return
		}

		c.logger.Warning("%s : subscribe attempt %d/%d for %s failed: %v",
			c.name, attempt, retries, symbol, lastErr)

		if attempt < retries {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
		}
	}

	c.reportResult(ctx, subscribeResult{
		symbol:   symbol,
		exchange: exchange,
		epoch:    epoch,
		err:      fmt.Errorf("exhausted %d subscribe attempts: %w", retries, lastErr),
	})
}

// -----------------------------------------------------------------------------

// handleUnsubscribe closes the feed streams for a symbol, then drains its
// buffered records so nothing committed-in-memory is lost on a graceful
// removal.
func (c *Collector) handleUnsubscribe(ctx context.Context, req models.MSubscriptionRequest) {
	status := c.states.Get(req.Symbol)
	if status.State != models.SubStateSubscribed && status.State != models.SubStatePending {
		c.logger.Info("%s : unsubscribe for %s ignored (state %s)", c.name, req.Symbol, status.State)
		return
	}

	exchange := status.Exchange
	if exchange == "" {
		exchange = c.config.Feed.DefaultExchange
	}

	// Invalidate any subscribe attempt still in flight for this symbol.
	c.epochs[req.Symbol]++

	if err := c.session.Unsubscribe(req.Symbol, exchange); err != nil {
		c.logger.Error("%s : feed unsubscribe for %s failed: %v", c.name, req.Symbol, err)
	}

	// Event flow for the symbol has stopped; flush what is buffered.
	c.writer.CloseSymbol(req.Symbol)

	c.states.MarkUnsubscribed(req.Symbol, exchange)
	c.mirrorState(req.Symbol)
}

// -----------------------------------------------------------------------------

func (c *Collector) reportResult(ctx context.Context, res subscribeResult) {
	select {
	case c.results <- res:
	case <-ctx.Done():
	}
}

// -----------------------------------------------------------------------------

// mirrorState copies one symbol's state into the shared store so the API
// process can serve it.
func (c *Collector) mirrorState(symbol string) {
	ctx, cancel := context.WithTimeout(context.Background(), stateMirrorTimeout)
	defer cancel()

	if err := c.stateStore.SetState(ctx, c.states.Get(symbol)); err != nil {
		c.logger.Error("%s : failed to mirror state for %s: %v", c.name, symbol, err)
	}
}

// -----------------------------------------------------------------------------

// retentionLoop prunes raw history past the configured horizon.
func (c *Collector) retentionLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -c.config.Writer.RetentionDays)
			deleted, err := c.retention.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				c.logger.Error("%s : retention pass failed: %v", c.name, err)
				continue
			}
			if deleted > 0 {
				c.logger.Info("%s : retention removed %d raw rows older than %s", c.name, deleted, cutoff.Format("2006-01-02"))
			}
		}
	}
}
