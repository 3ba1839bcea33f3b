package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"FXPulse/internal/domain/models"
	drepo "FXPulse/internal/domain/repository"
	pkgch "FXPulse/pkg/clickhouse"
	applogger "FXPulse/pkg/logger"
)

// ClickHouseCandleArchive is a write-behind sink for closed candles. The
// aggregator hands candles off through a buffered channel and a worker
// batches them into ClickHouse on size or interval.
// poolCloser releases the connection pool backing the archive.
type poolCloser interface {
	Close() error
}

type ClickHouseCandleArchive struct {
	db      *sql.DB
	pool    poolCloser
	table   string
	metrics drepo.Metrics
	l       *applogger.Logger

	flushSize  int
	flushEvery time.Duration

	queue chan models.Candle
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// ArchiveOption configures a ClickHouseCandleArchive.
type ArchiveOption func(*ClickHouseCandleArchive)

// WithFlush sets the batch size and flush interval.
func WithFlush(size int, every time.Duration) ArchiveOption {
	return func(a *ClickHouseCandleArchive) {
		if size > 0 {
			a.flushSize = size
		}
		if every > 0 {
			a.flushEvery = every
		}
	}
}

// NewClickHouseCandleArchive creates the archive, ensures its table exists
// and starts the batching worker.
func NewClickHouseCandleArchive(
	ch *pkgch.Client,
	table string,
	metrics drepo.Metrics,
	l *applogger.Logger,
	opts ...ArchiveOption,
) (*ClickHouseCandleArchive, error) {
	if table == "" {
		table = "fx_candles"
	}
	a := &ClickHouseCandleArchive{
		db:         ch.DB(),
		pool:       ch,
		table:      table,
		metrics:    metrics,
		l:          l,
		flushSize:  500,
		flushEvery: 5 * time.Second,
		queue:      make(chan models.Candle, 4096),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ch.InitSchema(ctx, []string{a.schema()}); err != nil {
		return nil, err
	}

	a.wg.Add(1)
	go a.run()
	return a, nil
}

func (a *ClickHouseCandleArchive) schema() string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol    LowCardinality(String),
			timeframe LowCardinality(String),
			bucket    DateTime64(3, 'UTC'),
			open      Float64,
			high      Float64,
			low       Float64,
			close     Float64
		) ENGINE = ReplacingMergeTree
		ORDER BY (symbol, timeframe, bucket)
	`, a.table)
}

// Archive enqueues one closed candle. Never blocks the caller.
func (a *ClickHouseCandleArchive) Archive(c models.Candle) {
	select {
	case a.queue <- c:
	default:
		a.metrics.RecordDroppedMessage("archive_queue_full")
	}
}

func (a *ClickHouseCandleArchive) run() {
	defer a.wg.Done()

	batch := make([]models.Candle, 0, a.flushSize)
	ticker := time.NewTicker(a.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case c := <-a.queue:
			batch = append(batch, c)
			if len(batch) >= a.flushSize {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.done:
			for {
				select {
				case c := <-a.queue:
					batch = append(batch, c)
				default:
					if len(batch) > 0 {
						a.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (a *ClickHouseCandleArchive) flush(batch []models.Candle) {
	values := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*7)
	for _, c := range batch {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, c.Symbol, c.Timeframe, c.Start, c.Open, c.High, c.Low, c.Close)
	}

	q := fmt.Sprintf("INSERT INTO %s (symbol, timeframe, bucket, open, high, low, close) VALUES %s",
		a.table, strings.Join(values, ","))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
		a.l.Error("candle archive flush failed",
			applogger.Int("rows", len(batch)),
			applogger.Error(err))
		return
	}
	a.metrics.RecordLatency("candle_archive_flush", time.Since(start).Seconds())
}

// Close flushes pending candles, stops the worker and releases the
// connection pool the archive owns.
func (a *ClickHouseCandleArchive) Close() error {
	a.once.Do(func() {
		close(a.done)
	})
	a.wg.Wait()
	if a.pool != nil {
		return a.pool.Close()
	}
	return nil
}
