package coordinator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeanElossy/api-paynoval-sub000/internal/observability"
	"github.com/jeanElossy/api-paynoval-sub000/internal/repository"
)

// Scope exposes both stores' query sets to a step. In atomic mode both are
// bound to the same open transaction; in saga mode each runs against its own
// pool and commits independently.
type Scope struct {
	Balances *repository.BalanceQueries
	Ledger   *repository.LedgerQueries
}

// Step is one ordered unit of a cross-store sequence. Compensate reverses the
// step's effect and may be nil for steps with nothing to undo.
type Step struct {
	Name       string
	Run        func(ctx context.Context, sc *Scope) error
	Compensate func(ctx context.Context, sc *Scope) error
}

// Coordinator groups a balance-store mutation and a transaction-record-store
// mutation into one all-or-nothing scope when both stores share a physical
// database, and degrades to an ordered compensation sequence when they do not.
// The mode is detected once, by comparing pool handles, not re-derived per call.
type Coordinator struct {
	balances *repository.BalanceStore
	ledger   *repository.LedgerStore
	atomic   bool
	logger   *zap.Logger
}

func New(balances *repository.BalanceStore, ledger *repository.LedgerStore, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		balances: balances,
		ledger:   ledger,
		atomic:   balances.Pool() == ledger.Pool(),
		logger:   logger,
	}
}

// Atomic reports whether both stores share one atomic execution context.
func (c *Coordinator) Atomic() bool { return c.atomic }

// Execute runs the steps in order. In atomic mode everything happens inside
// one transaction and compensation is never needed. In saga mode a failing
// step triggers compensation of all completed steps, in reverse, before the
// original error is surfaced.
func (c *Coordinator) Execute(ctx context.Context, correlationID string, steps ...Step) error {
	if c.atomic {
		return c.ledger.RunInTx(ctx, func(lq *repository.LedgerQueries) error {
			// Both query sets ride the same transaction.
			sc := &Scope{Balances: repository.NewBalanceQueries(lq.DB()), Ledger: lq}
			for _, step := range steps {
				if err := step.Run(ctx, sc); err != nil {
					return fmt.Errorf("%s: %w", step.Name, err)
				}
			}
			return nil
		})
	}

	sc := &Scope{Balances: c.balances.Queries(), Ledger: c.ledger.Queries()}
	completed := make([]Step, 0, len(steps))
	for _, step := range steps {
		if err := step.Run(ctx, sc); err != nil {
			c.compensate(ctx, sc, completed, correlationID, step.Name, err)
			return fmt.Errorf("%s: %w", step.Name, err)
		}
		completed = append(completed, step)
	}
	return nil
}

// compensate reverses completed steps in reverse order. It runs on a
// cancel-detached context so a timed-out request still unwinds its writes.
// A failed compensation is the one path without full safety; it is logged
// with the correlation id for manual reconciliation.
func (c *Coordinator) compensate(ctx context.Context, sc *Scope, completed []Step, correlationID, failedStep string, cause error) {
	ctx = context.WithoutCancel(ctx)
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		observability.IncrementCompensation(step.Name, "attempted")
		if err := step.Compensate(ctx, sc); err != nil {
			observability.IncrementCompensation(step.Name, "failed")
			c.logger.Error("compensation failed; manual reconciliation required",
				zap.String("correlation_id", correlationID),
				zap.String("failed_step", failedStep),
				zap.String("compensating_step", step.Name),
				zap.NamedError("cause", cause),
				zap.Error(err),
			)
			continue
		}
		c.logger.Warn("compensated step after sequence failure",
			zap.String("correlation_id", correlationID),
			zap.String("failed_step", failedStep),
			zap.String("compensating_step", step.Name),
			zap.NamedError("cause", cause),
		)
	}
}
