package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCentsFromDecimal(t *testing.T) {
	tests := []struct {
		in      string
		cents   int64
		wantErr bool
	}{
		{"100.00", 10000, false},
		{"0.01", 1, false},
		{"105", 10500, false},
		{"103.95", 10395, false},
		{"0.001", 0, true},
		{"99.999", 0, true},
	}
	for _, tc := range tests {
		cents, err := CentsFromDecimal(decimal.RequireFromString(tc.in))
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.cents, cents, tc.in)
	}
}

func TestMoneyRoundTrip(t *testing.T) {
	m := NewMoney(10395, "XAF")
	assert.Equal(t, "103.95", m.ToDecimal().StringFixed(2))
	assert.Equal(t, "103.95 XAF", m.String())
}

func TestFractionTruncatesTowardHouse(t *testing.T) {
	// 99% of 105.00 is exactly 103.95.
	refund := NewMoney(10500, "USD").Fraction(decimal.RequireFromString("0.99"))
	assert.Equal(t, int64(10395), refund.Cents)

	// 99% of 0.01 truncates to zero; the house keeps the remainder.
	dust := NewMoney(1, "USD").Fraction(decimal.RequireFromString("0.99"))
	assert.Equal(t, int64(0), dust.Cents)

	// Sub-cent remainders are never rounded up.
	odd := NewMoney(333, "USD").Fraction(decimal.RequireFromString("0.99"))
	assert.Equal(t, int64(329), odd.Cents) // 329.67 truncated
}

func TestConvertTruncatesToCents(t *testing.T) {
	// 100.00 USD at 0.92 EUR/USD = 92.00 EUR.
	eur := NewMoney(10000, "USD").Convert("EUR", decimal.RequireFromString("0.92"))
	assert.Equal(t, int64(9200), eur.Cents)
	assert.Equal(t, "EUR", eur.Currency)

	// 1.00 USD at 603.50 XAF/USD = 603.50 XAF.
	xaf := NewMoney(100, "USD").Convert("XAF", decimal.RequireFromString("603.50"))
	assert.Equal(t, int64(60350), xaf.Cents)

	// 0.10 USD at 0.925 truncates 9.25 cents down to 9.
	tiny := NewMoney(10, "USD").Convert("EUR", decimal.RequireFromString("0.925"))
	assert.Equal(t, int64(9), tiny.Cents)
}

func TestIdentityConversionPreservesAmount(t *testing.T) {
	m := NewMoney(12345, "XAF")
	same := m.Convert("XAF", decimal.NewFromInt(1))
	assert.Equal(t, m.Cents, same.Cents)
}
