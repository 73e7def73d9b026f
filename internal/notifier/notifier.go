package notifier

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Sender delivers a notification payload to one recipient through an
// external channel (push, email, SMS). Implementations are called outside
// any store transaction.
type Sender interface {
	// Send delivers the payload. Returns a provider reference ID, or an
	// error on delivery failure; failures are retryable.
	Send(ctx context.Context, recipientID uuid.UUID, eventType string, payload []byte) (string, error)
}

// MockSender simulates an external notification provider for development and
// testing. It sleeps to mimic network latency and fails a configurable
// fraction of deliveries.
type MockSender struct {
	// FailureRate is the probability of failure (0.0 to 1.0).
	FailureRate float64
	// Latency is the simulated delivery delay.
	Latency time.Duration
}

// NewMockSender creates a MockSender with a 5% failure rate and 100ms latency.
func NewMockSender() *MockSender {
	return &MockSender{
		FailureRate: 0.05,
		Latency:     100 * time.Millisecond,
	}
}

func (m *MockSender) Send(ctx context.Context, recipientID uuid.UUID, eventType string, payload []byte) (string, error) {
	select {
	case <-time.After(m.Latency):
	case <-ctx.Done():
		return "", fmt.Errorf("notification delivery canceled: %w", ctx.Err())
	}

	if rand.Float64() < m.FailureRate {
		return "", fmt.Errorf("notification provider temporarily unavailable")
	}

	ref := fmt.Sprintf("NTF-%s-%05d", time.Now().Format("20060102-150405"), rand.Intn(100000))
	return ref, nil
}
