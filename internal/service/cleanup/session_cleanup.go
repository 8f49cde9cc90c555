// Package cleanup удаляет снимки корзин брошенных сессий из постоянного хранилища.
package cleanup

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	defaultCleanupInterval  = 30 * time.Minute
	defaultCleanupBatchSize = 500
	defaultMaxIdle          = 30 * 24 * time.Hour
)

var (
	sessionCleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_session_cleanup_runs_total",
		Help: "Total number of stale session cleanup runs grouped by result.",
	}, []string{"result"})
	sessionCleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_session_cleanup_deleted_total",
		Help: "Total number of deleted stale session keys.",
	})
	sessionCleanupLastDeleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_session_cleanup_last_deleted",
		Help: "Number of deleted session keys during the last cleanup run.",
	})
)

// StaleDeleter удаляет порцию ключей, не менявшихся с before (postgres.KVStoreFactory).
type StaleDeleter interface {
	DeleteStale(ctx context.Context, before time.Time, limit int) (int, error)
}

// Options задает параметры воркера очистки.
type Options struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	MaxIdle   time.Duration
}

// Option настраивает Worker.
type Option func(*Options)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задает интервал между cleanup-циклами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithBatchSize задает размер batch для одного удаления.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) {
		opts.BatchSize = batchSize
	}
}

// WithMaxIdle задает, сколько сессия может простаивать до удаления.
func WithMaxIdle(maxIdle time.Duration) Option {
	return func(opts *Options) {
		opts.MaxIdle = maxIdle
	}
}

// Worker периодически удаляет снимки брошенных сессий.
type Worker struct {
	repo      StaleDeleter
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	maxIdle   time.Duration
}

// NewWorker создает воркер очистки сессий.
func NewWorker(repo StaleDeleter, options ...Option) *Worker {
	opts := Options{
		Interval:  defaultCleanupInterval,
		BatchSize: defaultCleanupBatchSize,
		MaxIdle:   defaultMaxIdle,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "session-cleanup-worker")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultCleanupInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultCleanupBatchSize
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = defaultMaxIdle
	}

	return &Worker{
		repo:      repo,
		logger:    logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		maxIdle:   opts.MaxIdle,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("session cleanup worker is disabled: repo is nil")
		return
	}

	w.cleanup(ctx, time.Now().UTC())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx, time.Now().UTC())
		}
	}
}

func (w *Worker) cleanup(ctx context.Context, now time.Time) {
	deleted, err := w.DeleteStale(ctx, now.Add(-w.maxIdle))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		sessionCleanupRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("session cleanup run failed")
		return
	}

	sessionCleanupRunsTotal.WithLabelValues("ok").Inc()
	sessionCleanupLastDeleted.Set(float64(deleted))
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("session cleanup completed")
	}
}

// DeleteStale удаляет все ключи, не менявшиеся с before, порциями batchSize.
func (w *Worker) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC().Add(-w.maxIdle)
	}

	totalDeleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		deleted, err := w.repo.DeleteStale(ctx, before, w.batchSize)
		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted > 0 {
			sessionCleanupDeletedTotal.Add(float64(deleted))
		}

		if deleted < w.batchSize {
			break
		}
	}

	return totalDeleted, nil
}
