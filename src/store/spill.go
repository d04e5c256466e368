package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"market-collector/src/interfaces"
	"market-collector/src/logger"
	"market-collector/src/models"
	"market-collector/src/serializers"
)

// -----------------------------------------------------------------------------

// spillRecord is one line in the spill log: a batch that exhausted its flush
// retries, kept for operator-driven recovery.
type spillRecord struct {
	SpilledAt time.Time             `json:"spilled_at"`
	Reason    string                `json:"reason"`
	Symbol    string                `json:"symbol"`
	Trades    []models.MTrade       `json:"trades,omitempty"`
	Depths    []models.MDepthUpdate `json:"depths,omitempty"`
}

// -----------------------------------------------------------------------------

// SpillLog persists unflushable batches as JSON lines, one file per UTC day.
type SpillLog struct {
	name       string
	dir        string
	logger     *logger.Logger
	serializer interfaces.ISerializer

	mu sync.Mutex
}

// -----------------------------------------------------------------------------

// NewSpillLog creates the spill directory if needed.
func NewSpillLog(dir string, log *logger.Logger) (*SpillLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spill directory %s: %w", dir, err)
	}
	return &SpillLog{
		name:       "SpillLog",
		dir:        dir,
		logger:     log,
		serializer: serializers.NewJSONSerializer(),
	}, nil
}

// -----------------------------------------------------------------------------

// Append writes one batch to the current day's spill file.
func (s *SpillLog) Append(batch *models.MBatch, reason string) error {
	rec := spillRecord{
		SpilledAt: time.Now().UTC(),
		Reason:    reason,
		Symbol:    batch.Symbol,
		Trades:    batch.Trades,
		Depths:    batch.Depths,
	}

	line, err := s.serializer.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize spill record for %s: %w", batch.Symbol, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, time.Now().UTC().Format("20060102")+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open spill file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write spill record to %s: %w", path, err)
	}

	s.logger.Warning("%s : spilled %d records for %s to %s", s.name, batch.Len(), batch.Symbol, path)
	return nil
}
