// Package ledger records completed settlements to Postgres for auditing.
//
// The recorder batches rows and flushes on size or interval. Market
// correctness never depends on it: recording is fire-and-forget, and a
// marketd instance with no database configured runs without a recorder.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oskarlind/tradingpost/internal/market"
)

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

// Config holds recorder settings.
type Config struct {
	DB            DBConfig
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultBatchSize and DefaultFlushInterval apply when the config leaves
// them zero.
const (
	DefaultBatchSize     = 64
	DefaultFlushInterval = time.Second
)

// BuildConnString builds a Postgres connection string from config.
func BuildConnString(cfg DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}

// Connect creates the connection pool.
func Connect(ctx context.Context, cfg DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// settlementRow is the shape written to the settlements table.
type settlementRow struct {
	ID         string
	ItemName   string
	PriceCents int64
	Buyer      string
	Seller     string
	ExecutedAt time.Time
}

// Recorder batches settlement rows into Postgres.
type Recorder struct {
	cfg    Config
	db     *pgxpool.Pool
	logger *slog.Logger

	batchMu sync.Mutex
	batch   []settlementRow

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	flushTicker *time.Ticker

	recorded int64
	dropped  int64
}

// NewRecorder creates a recorder writing through the given pool.
func NewRecorder(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &Recorder{
		cfg:    cfg,
		db:     db,
		logger: logger,
		batch:  make([]settlementRow, 0, cfg.BatchSize),
	}
}

// Record accepts a settlement for asynchronous persistence. Safe to use
// as a market.SettlementHook.
func (r *Recorder) Record(s market.Settlement) {
	row := transform(s)

	r.batchMu.Lock()
	r.batch = append(r.batch, row)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flush()
	}
}

// transform converts a settlement to its table row.
func transform(s market.Settlement) settlementRow {
	return settlementRow{
		ID:         s.ID.String(),
		ItemName:   s.Item.Name,
		PriceCents: s.Item.Price,
		Buyer:      s.Buyer,
		Seller:     s.Seller,
		ExecutedAt: s.ExecutedAt,
	}
}

// Start launches the periodic flush loop.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("settlement recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop flushes remaining rows and shuts down.
func (r *Recorder) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("settlement recorder stop timed out")
	}

	r.flush()
	r.logger.Info("settlement recorder stopped")
	return nil
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush()
		}
	}
}

func (r *Recorder) flush() {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}
	rows := r.batch
	r.batch = make([]settlementRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(
			`INSERT INTO settlements (id, item_name, price_cents, buyer, seller, executed_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING`,
			row.ID, row.ItemName, row.PriceCents, row.Buyer, row.Seller, row.ExecutedAt,
		)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		r.batchMu.Lock()
		r.dropped += int64(len(rows))
		r.batchMu.Unlock()
		r.logger.Error("settlement batch write failed", "rows", len(rows), "error", err)
		return
	}

	r.batchMu.Lock()
	r.recorded += int64(len(rows))
	r.batchMu.Unlock()
	r.logger.Debug("settlement batch written", "rows", len(rows))
}

// Migrate creates the settlements table if it does not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS settlements (
			id          UUID PRIMARY KEY,
			item_name   TEXT NOT NULL,
			price_cents BIGINT NOT NULL,
			buyer       TEXT NOT NULL,
			seller      TEXT NOT NULL,
			executed_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create settlements table: %w", err)
	}
	return nil
}
