package tip

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrRateUnavailable marks a parse that failed because no usable exchange rate
// could be obtained. The message itself may still be a valid tip.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// RateSource supplies how many quote units one base unit is worth right now.
type RateSource interface {
	CurrentRate(ctx context.Context, base string, quote string) (decimal.Decimal, error)
}

// RateFunc adapts a plain function into a RateSource.
type RateFunc func(ctx context.Context, base string, quote string) (decimal.Decimal, error)

func (f RateFunc) CurrentRate(ctx context.Context, base string, quote string) (decimal.Decimal, error) {
	return f(ctx, base, quote)
}

// FixedRate returns a RateSource that always answers with rate.
func FixedRate(rate decimal.Decimal) RateSource {
	return RateFunc(func(context.Context, string, string) (decimal.Decimal, error) {
		return rate, nil
	})
}

// lookupRate performs the single rate call of a parse and rejects unusable values.
func lookupRate(ctx context.Context, source RateSource, quote string) (decimal.Decimal, error) {
	if source == nil {
		return decimal.Zero, fmt.Errorf("%w: no rate source configured", ErrRateUnavailable)
	}

	rate, err := source.CurrentRate(ctx, BaseCurrency, quote)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s/%s: %w", ErrRateUnavailable, BaseCurrency, quote, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s/%s rate %s is not positive", ErrRateUnavailable, BaseCurrency, quote, rate)
	}

	return rate, nil
}
