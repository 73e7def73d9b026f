package rates

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnknownCurrency signals a currency the rate source cannot resolve.
// Callers decide the fallback policy; the lookup never guesses.
var ErrUnknownCurrency = fmt.Errorf("unknown currency")

// RateService defines the interface for fetching FX rates.
type RateService interface {
	// GetExchangeRate returns the rate to convert from source to target currency.
	GetExchangeRate(ctx context.Context, sourceCurrency, targetCurrency string) (decimal.Decimal, error)
}

// MockRateService is a static implementation for development and tests.
type MockRateService struct{}

func NewMockRateService() *MockRateService {
	return &MockRateService{}
}

// GetExchangeRate returns static rates relative to USD.
// Rate = Target / Source, e.g. EUR -> USD = 1.0 / 0.92.
func (s *MockRateService) GetExchangeRate(ctx context.Context, source, target string) (decimal.Decimal, error) {
	if source == target {
		return decimal.NewFromInt(1), nil
	}

	rates := map[string]string{
		"USD": "1.0",
		"EUR": "0.92",
		"GBP": "0.79",
		"CAD": "1.36",
		"XAF": "603.50",
	}

	sourceRate, ok := rates[source]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, source)
	}
	targetRate, ok := rates[target]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, target)
	}

	sRate, err := decimal.NewFromString(sourceRate)
	if err != nil {
		return decimal.Zero, err
	}
	tRate, err := decimal.NewFromString(targetRate)
	if err != nil {
		return decimal.Zero, err
	}

	return tRate.Div(sRate), nil
}
