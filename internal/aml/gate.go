package aml

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Verdict is the structured result of a compliance screening.
type Verdict struct {
	Approved bool
	Reason   string
	Score    float64
}

// CheckRequest describes the transfer submitted for screening.
type CheckRequest struct {
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Amount     decimal.Decimal
	Currency   string
	Country    string
	Kind       string
}

// Gate is the external fraud/AML rule-evaluation pipeline, consulted before
// admission. It must never be called while a store transaction is open.
type Gate interface {
	Check(ctx context.Context, req CheckRequest) (Verdict, error)
}

// MockGate simulates the screening service for development and tests.
// It introduces a small random delay and rejects amounts at or above the
// configured ceiling.
type MockGate struct {
	// MaxAmount is the screening ceiling in major units. Zero disables it.
	MaxAmount decimal.Decimal
	// Latency is the upper bound of the simulated call delay.
	Latency time.Duration
}

// NewMockGate creates a gate that approves everything below 10,000 major units.
func NewMockGate() *MockGate {
	return &MockGate{
		MaxAmount: decimal.NewFromInt(10_000),
		Latency:   50 * time.Millisecond,
	}
}

func (g *MockGate) Check(ctx context.Context, req CheckRequest) (Verdict, error) {
	if g.Latency > 0 {
		delay := time.Duration(rand.Int63n(int64(g.Latency)))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Verdict{}, fmt.Errorf("aml check canceled: %w", ctx.Err())
		}
	}

	if !g.MaxAmount.IsZero() && req.Amount.GreaterThanOrEqual(g.MaxAmount) {
		return Verdict{
			Approved: false,
			Reason:   "amount exceeds screening ceiling",
			Score:    0.95,
		}, nil
	}

	return Verdict{Approved: true, Score: 0.01}, nil
}
