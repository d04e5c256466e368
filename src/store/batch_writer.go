package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"market-collector/src/interfaces"
	"market-collector/src/logger"
	"market-collector/src/models"
)

const (
	inBufferSize    = 1024
	flushTimeout    = 15 * time.Second
	maxRetryBackoff = 30 * time.Second
)

// -----------------------------------------------------------------------------

// BatchWriter buffers normalized records per symbol and flushes them in
// batches, on size or on interval, whichever comes first. Each symbol owns
// two goroutines: an accumulator filling the current buffer and a flusher
// committing the previous one, joined by a capacity-1 channel. Ingestion for
// a symbol therefore keeps filling a fresh buffer while the prior batch is in
// flight, and blocks only once two batches are already queued behind a slow
// database.
type BatchWriter struct {
	name   string
	config *models.MWriterConfig
	logger *logger.Logger
	store  interfaces.IBatchStore
	spill  *SpillLog

	mu      sync.Mutex
	streams map[string]*symbolStream
	closed  bool
}

// -----------------------------------------------------------------------------

type streamItem struct {
	trade  *models.MTrade
	depths []models.MDepthUpdate
}

type symbolStream struct {
	symbol   string
	in       chan streamItem
	flushCh  chan *models.MBatch
	finished chan struct{}

	// mu and closed gate every send on in: shutdown acquires the write lock
	// before closing the channel, so it cannot close under a sender that is
	// blocked mid-send by a full buffer.
	mu     sync.RWMutex
	closed bool
}

// send delivers one item to the accumulator, or reports that the stream has
// been shut down. The channel send happens under the read lock on purpose;
// see shutdown.
func (s *symbolStream) send(item streamItem) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("stream for %s is closed", s.symbol)
	}
	s.in <- item
	return nil
}

// shutdown stops intake and closes the channel. The write lock is held only
// for the flag flip, but acquiring it waits out any sender inside send, and
// every later sender observes closed instead of the channel.
func (s *symbolStream) shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.in)
}

// -----------------------------------------------------------------------------

// NewBatchWriter creates a writer flushing through the given store. The spill
// log may be nil, in which case exhausted batches are dropped after the alert.
func NewBatchWriter(config *models.MWriterConfig, log *logger.Logger, store interfaces.IBatchStore, spill *SpillLog) *BatchWriter {
	return &BatchWriter{
		name:    "BatchWriter",
		config:  config,
		logger:  log,
		store:   store,
		spill:   spill,
		streams: make(map[string]*symbolStream),
	}
}

// -----------------------------------------------------------------------------

// AppendTrade buffers one trade on its symbol stream.
func (w *BatchWriter) AppendTrade(trade *models.MTrade) error {
	s, err := w.stream(trade.Symbol)
	if err != nil {
		return err
	}
	return s.send(streamItem{trade: trade})
}

// -----------------------------------------------------------------------------

// AppendDepths buffers the depth rows of one normalized event. All rows share
// the event's symbol and flush together.
func (w *BatchWriter) AppendDepths(depths []models.MDepthUpdate) error {
	if len(depths) == 0 {
		return nil
	}
	s, err := w.stream(depths[0].Symbol)
	if err != nil {
		return err
	}
	return s.send(streamItem{depths: depths})
}

// -----------------------------------------------------------------------------

// CloseSymbol drains and stops one symbol stream: buffered records are
// flushed before this returns. Closing an unknown symbol is a no-op.
func (w *BatchWriter) CloseSymbol(symbol string) {
	w.mu.Lock()
	s, ok := w.streams[symbol]
	if ok {
		delete(w.streams, symbol)
	}
	w.mu.Unlock()

	if !ok {
		return
	}
	s.shutdown()
	<-s.finished
	w.logger.Info("%s : drained stream for %s", w.name, symbol)
}

// -----------------------------------------------------------------------------

// Close drains every stream and stops the writer. No records buffered before
// the call are lost short of the database staying down past the retry budget.
func (w *BatchWriter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	streams := make([]*symbolStream, 0, len(w.streams))
	for _, s := range w.streams {
		streams = append(streams, s)
	}
	w.streams = make(map[string]*symbolStream)
	w.mu.Unlock()

	for _, s := range streams {
		s.shutdown()
	}
	for _, s := range streams {
		<-s.finished
	}
	w.logger.Info("%s : closed, %d streams drained", w.name, len(streams))
}

// -----------------------------------------------------------------------------
// Private methods
// -----------------------------------------------------------------------------

// stream returns the stream for a symbol, starting its goroutine pair on
// first use.
func (w *BatchWriter) stream(symbol string) (*symbolStream, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("batch writer is closed")
	}
	if s, ok := w.streams[symbol]; ok {
		return s, nil
	}

	s := &symbolStream{
		symbol:   symbol,
		in:       make(chan streamItem, inBufferSize),
		flushCh:  make(chan *models.MBatch, 1),
		finished: make(chan struct{}),
	}
	w.streams[symbol] = s

	go w.accumulate(s)
	go w.flushLoop(s)

	w.logger.Debug("%s : opened stream for %s", w.name, symbol)
	return s, nil
}

// -----------------------------------------------------------------------------

// accumulate fills the current buffer for one symbol and hands it to the
// flusher on size or interval.
func (w *BatchWriter) accumulate(s *symbolStream) {
	defer close(s.flushCh)

	batch := &models.MBatch{Symbol: s.symbol}
	timer := time.NewTimer(w.config.FlushInterval)
	defer timer.Stop()

	hand := func() {
		if batch.Len() == 0 {
			return
		}
		s.flushCh <- batch
		batch = &models.MBatch{Symbol: s.symbol}
	}

	for {
		select {
		case item, ok := <-s.in:
			if !ok {
				hand()
				return
			}
			if item.trade != nil {
				batch.Trades = append(batch.Trades, *item.trade)
			}
			if len(item.depths) > 0 {
				batch.Depths = append(batch.Depths, item.depths...)
			}
			if batch.Len() >= w.config.BatchSize {
				hand()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.config.FlushInterval)
			}

		case <-timer.C:
			hand()
			timer.Reset(w.config.FlushInterval)
		}
	}
}

// -----------------------------------------------------------------------------

// flushLoop commits handed batches in order for one symbol.
func (w *BatchWriter) flushLoop(s *symbolStream) {
	defer close(s.finished)
	for batch := range s.flushCh {
		w.flushWithRetry(batch)
	}
}

// -----------------------------------------------------------------------------

// flushWithRetry retries a failed flush with exponential backoff. When the
// retry budget is exhausted the batch goes to the spill log and an alert is
// raised; the stream keeps running so one bad batch cannot wedge a symbol.
func (w *BatchWriter) flushWithRetry(batch *models.MBatch) {
	backoff := w.config.RetryBackoff

	for attempt := 1; attempt <= w.config.RetryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		err := w.store.FlushBatch(ctx, batch)
		cancel()

		if err == nil {
			return
		}

		w.logger.Warning("%s : flush failed for %s (attempt %d/%d): %v",
			w.name, batch.Symbol, attempt, w.config.RetryAttempts, err)

		if attempt < w.config.RetryAttempts {
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxRetryBackoff {
				backoff = maxRetryBackoff
			}
		}
	}

	w.logger.Error("%s : ALERT: giving up on batch of %d records for %s after %d attempts",
		w.name, batch.Len(), batch.Symbol, w.config.RetryAttempts)

	if w.spill == nil {
		return
	}
	if err := w.spill.Append(batch, "flush retries exhausted"); err != nil {
		w.logger.Error("%s : ALERT: spill failed for %s, batch lost: %v", w.name, batch.Symbol, err)
	}
}
