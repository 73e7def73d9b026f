package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeanElossy/api-paynoval-sub000/internal/observability"
	"github.com/jeanElossy/api-paynoval-sub000/internal/repository"
)

// RetentionWorker purges delivered outbox events and expired idempotency
// replay records past their retention windows. Unprocessed events are never
// touched.
type RetentionWorker struct {
	ledger           *repository.LedgerStore
	logger           *zap.Logger
	interval         time.Duration
	outboxRetention  time.Duration
	idempotencyTTL   time.Duration
	stopCh           chan struct{}
	stopOnce         sync.Once
}

func NewRetentionWorker(ledger *repository.LedgerStore, logger *zap.Logger) *RetentionWorker {
	return &RetentionWorker{
		ledger:          ledger,
		logger:          logger,
		interval:        time.Hour,
		outboxRetention: 7 * 24 * time.Hour,
		idempotencyTTL:  24 * time.Hour,
		stopCh:          make(chan struct{}),
	}
}

// WithInterval updates the purge interval.
func (w *RetentionWorker) WithInterval(interval time.Duration) *RetentionWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithOutboxRetention updates how long delivered events are kept.
func (w *RetentionWorker) WithOutboxRetention(d time.Duration) *RetentionWorker {
	if d > 0 {
		w.outboxRetention = d
	}
	return w
}

// WithIdempotencyTTL updates how long replay records are kept.
func (w *RetentionWorker) WithIdempotencyTTL(d time.Duration) *RetentionWorker {
	if d > 0 {
		w.idempotencyTTL = d
	}
	return w
}

// Start blocks and purges at the configured interval. Runs once at startup.
func (w *RetentionWorker) Start(ctx context.Context) {
	w.logger.Info("retention worker starting",
		zap.Duration("interval", w.interval),
		zap.Duration("outbox_retention", w.outboxRetention),
		zap.Duration("idempotency_ttl", w.idempotencyTTL),
	)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("retention worker context canceled")
			return
		case <-w.stopCh:
			w.logger.Info("retention worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *RetentionWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *RetentionWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *RetentionWorker) runOnce(ctx context.Context) {
	observability.IncrementWorkerRun("retention")
	queries := w.ledger.Queries()

	purged, err := queries.DeleteProcessedOutboxBefore(ctx, time.Now().Add(-w.outboxRetention))
	if err != nil {
		w.logger.Error("outbox purge failed", zap.Error(err))
	} else if purged > 0 {
		w.logger.Info("purged delivered outbox events", zap.Int64("count", purged))
	}

	expired, err := queries.DeleteIdempotencyKeysBefore(ctx, time.Now().Add(-w.idempotencyTTL))
	if err != nil {
		w.logger.Error("idempotency purge failed", zap.Error(err))
	} else if expired > 0 {
		w.logger.Info("expired idempotency records", zap.Int64("count", expired))
	}
}
