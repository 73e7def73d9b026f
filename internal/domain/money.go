package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in a specific currency.
// Amount is stored as BIGINT cents (10^-2) so every value carries exactly
// two fractional digits and no binary floating point touches money.
type Money struct {
	Cents    int64
	Currency string // ISO 4217
}

// NewMoney creates a Money instance from cents.
func NewMoney(cents int64, currency string) Money {
	return Money{
		Cents:    cents,
		Currency: currency,
	}
}

// ToDecimal converts the int64 cents to a shopspring/decimal.Decimal.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Cents).Div(decimal.NewFromInt(100))
}

// CentsFromDecimal converts a decimal amount to int64 cents.
// It fails when the value carries more than two fractional digits, so
// callers cannot silently lose sub-cent precision.
func CentsFromDecimal(d decimal.Decimal) (int64, error) {
	scaled := d.Mul(decimal.NewFromInt(100))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than 2 decimal places", d.String())
	}
	return scaled.IntPart(), nil
}

// Convert converts the money to a target currency using a given FX rate.
// The rate should be (Target / Source). The result is truncated to cents.
func (m Money) Convert(targetCurrency string, rate decimal.Decimal) Money {
	converted := m.ToDecimal().Mul(rate).Mul(decimal.NewFromInt(100)).Truncate(0)
	return Money{
		Cents:    converted.IntPart(),
		Currency: targetCurrency,
	}
}

// Fraction returns the given fraction of the amount, truncated to cents.
// Truncation keeps the retained remainder with the house on partial refunds.
func (m Money) Fraction(rate decimal.Decimal) Money {
	part := decimal.NewFromInt(m.Cents).Mul(rate).Truncate(0)
	return Money{
		Cents:    part.IntPart(),
		Currency: m.Currency,
	}
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.ToDecimal().StringFixed(2), m.Currency)
}
