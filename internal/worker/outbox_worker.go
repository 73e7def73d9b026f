package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeanElossy/api-paynoval-sub000/internal/notifier"
	"github.com/jeanElossy/api-paynoval-sub000/internal/observability"
	"github.com/jeanElossy/api-paynoval-sub000/internal/repository"
)

// OutboxWorker polls the outbox for unprocessed events and delivers them
// through the notification sender. Claiming uses a lease plus SKIP LOCKED so
// concurrent instances never deliver the same event twice; a crashed
// instance's lease expires and the event is re-claimed.
type OutboxWorker struct {
	ledger       *repository.LedgerStore
	sender       notifier.Sender
	logger       *zap.Logger
	pollInterval time.Duration
	leaseTimeout time.Duration
	batchSize    int32
	maxRetries   int32
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func NewOutboxWorker(ledger *repository.LedgerStore, sender notifier.Sender, logger *zap.Logger) *OutboxWorker {
	return &OutboxWorker{
		ledger:       ledger,
		sender:       sender,
		logger:       logger,
		pollInterval: 5 * time.Second,
		leaseTimeout: time.Minute,
		batchSize:    20,
		maxRetries:   10,
		stopCh:       make(chan struct{}),
	}
}

// WithPollInterval updates the poll interval.
func (w *OutboxWorker) WithPollInterval(interval time.Duration) *OutboxWorker {
	if interval > 0 {
		w.pollInterval = interval
	}
	return w
}

// WithBatchSize updates the claim batch size.
func (w *OutboxWorker) WithBatchSize(size int32) *OutboxWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks and polls until the context is canceled or Stop is called.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info("outbox worker starting",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int32("batch_size", w.batchSize),
	)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("outbox worker context canceled")
			return
		case <-w.stopCh:
			w.logger.Info("outbox worker stop signal received")
			return
		case <-ticker.C:
			if err := w.ProcessOnce(ctx); err != nil {
				w.logger.Error("outbox batch failed", zap.Error(err))
			}
		}
	}
}

// Stop stops the running worker loop.
func (w *OutboxWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *OutboxWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// ProcessOnce claims and delivers a single batch. Exposed for tests and
// manual draining.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) error {
	observability.IncrementWorkerRun("outbox")

	queries := w.ledger.Queries()
	events, err := queries.ClaimOutboxEvents(ctx, w.batchSize, time.Now().Add(-w.leaseTimeout))
	if err != nil {
		return err
	}

	for _, event := range events {
		if event.RetryCount >= w.maxRetries {
			// Poison event: mark processed so it stops blocking the queue,
			// loudly enough for reconciliation to pick up.
			w.logger.Error("outbox event exceeded retry budget, dropping",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", event.EventType),
				zap.Int32("retry_count", event.RetryCount),
			)
			if _, err := queries.MarkOutboxProcessed(ctx, event.ID); err != nil {
				w.logger.Error("failed to drop poison outbox event", zap.Error(err))
			}
			observability.IncrementOutboxDelivery("dropped")
			continue
		}

		ref, err := w.sender.Send(ctx, event.RecipientID, event.EventType, event.Payload)
		if err != nil {
			w.logger.Warn("outbox delivery failed",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
			if markErr := queries.MarkOutboxFailed(ctx, event.ID); markErr != nil {
				w.logger.Error("failed to release outbox lease", zap.Error(markErr))
			}
			observability.IncrementOutboxDelivery("failed")
			continue
		}

		if _, err := queries.MarkOutboxProcessed(ctx, event.ID); err != nil {
			// Delivery happened but the mark failed; the lease will expire
			// and the event redelivers. Acceptable: delivery is at-least-once.
			w.logger.Error("failed to mark outbox event processed",
				zap.String("event_id", event.ID.String()), zap.Error(err))
			continue
		}
		observability.IncrementOutboxDelivery("delivered")
		w.logger.Debug("outbox event delivered",
			zap.String("event_id", event.ID.String()),
			zap.String("provider_ref", ref),
		)
	}

	if backlog, err := queries.CountUnprocessedOutbox(ctx); err == nil {
		observability.SetOutboxBacklog(backlog)
	}
	return nil
}
