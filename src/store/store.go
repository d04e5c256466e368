package store

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"market-collector/src/logger"
	"market-collector/src/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// -----------------------------------------------------------------------------

// Store wraps the PostgreSQL connection pool and implements both the batch
// write path (FlushBatch) and the read queries behind the REST API.
type Store struct {
	name   string
	db     *gorm.DB
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

// New opens the database, sizes the connection pool and migrates the schema.
// MaxOpenConns is the per-process ceiling; the collector and the API run
// separate processes with separate pools, so read traffic cannot exhaust the
// writer's connections.
func New(cfg *models.MDatabaseConfig, log *logger.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn(cfg)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &Store{name: "Store", db: db, logger: log}
	if err := s.migrate(); err != nil {
		return nil, err
	}

	log.Info("%s : connected to postgres %s:%d/%s", s.name, cfg.Host, cfg.Port, cfg.Name)
	return s, nil
}

// -----------------------------------------------------------------------------

// Ping verifies connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// -----------------------------------------------------------------------------
// Read queries
// -----------------------------------------------------------------------------

// RecentTrades returns trades for a symbol, newest first.
func (s *Store) RecentTrades(ctx context.Context, symbol string, limit int) ([]models.MTrade, error) {
	var trades []models.MTrade
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp DESC").
		Limit(limit).
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for %s: %w", symbol, err)
	}
	return trades, nil
}

// -----------------------------------------------------------------------------

// RecentDepth returns depth updates for a symbol, newest first.
func (s *Store) RecentDepth(ctx context.Context, symbol string, limit int) ([]models.MDepthUpdate, error) {
	var depths []models.MDepthUpdate
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp DESC").
		Limit(limit).
		Find(&depths).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query depth updates for %s: %w", symbol, err)
	}
	return depths, nil
}

// -----------------------------------------------------------------------------

// SymbolSummaries lists known symbols with lifetime counters summed from the
// pre-aggregated statistics, never from the raw tables.
func (s *Store) SymbolSummaries(ctx context.Context) ([]models.MSymbolSummary, error) {
	var rows []models.MSymbolSummary
	err := s.db.WithContext(ctx).Raw(`
		SELECT m.symbol, m.exchange, m.active, m.first_seen, m.last_seen,
		       COALESCE(SUM(c.tick_count), 0)   AS tick_count,
		       COALESCE(SUM(c.level2_count), 0) AS level2_count
		FROM symbol_metadata m
		LEFT JOIN collection_stats c ON c.symbol = m.symbol
		GROUP BY m.symbol, m.exchange, m.active, m.first_seen, m.last_seen
		ORDER BY m.last_seen DESC`).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol summaries: %w", err)
	}
	return rows, nil
}

// -----------------------------------------------------------------------------

// Stats returns the per-(symbol, date) statistics rows, newest date first.
func (s *Store) Stats(ctx context.Context) ([]models.MCollectionStats, error) {
	var rows []models.MCollectionStats
	err := s.db.WithContext(ctx).
		Order("date DESC, symbol ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query collection stats: %w", err)
	}
	return rows, nil
}

// -----------------------------------------------------------------------------

// DeleteOlderThan removes raw trade and depth rows older than the cutoff.
// The pre-aggregated statistics are retained.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64

	res := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.MTrade{})
	if res.Error != nil {
		return total, fmt.Errorf("failed to delete old trades: %w", res.Error)
	}
	total += res.RowsAffected

	res = s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.MDepthUpdate{})
	if res.Error != nil {
		return total, fmt.Errorf("failed to delete old depth updates: %w", res.Error)
	}
	total += res.RowsAffected

	return total, nil
}

// -----------------------------------------------------------------------------
// Private methods
// -----------------------------------------------------------------------------

func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&models.MTrade{},
		&models.MDepthUpdate{},
		&models.MSymbolMetadata{},
		&models.MCollectionStats{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func dsn(cfg *models.MDatabaseConfig) string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Name,
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
