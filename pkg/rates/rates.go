// Package rates provides the exchange-rate feeds the tip parser prices fiat
// amounts against.
package rates

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tipbot/pkg/config"
	"tipbot/pkg/tip"
)

// Static always answers with one configured rate, whatever the pair.
type Static struct {
	rate decimal.Decimal
}

// NewStatic parses a fixed rate; it must be positive.
func NewStatic(raw string) (*Static, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse static rate: %w", err)
	}
	if !rate.IsPositive() {
		return nil, NewError(ErrorInvalidRate, rate.String())
	}

	return &Static{rate: rate}, nil
}

func (s *Static) CurrentRate(context.Context, string, string) (decimal.Decimal, error) {
	return s.rate, nil
}

// New builds the rate source selected by cfg.Source.
func New(cfg config.RatesConfig, log *slog.Logger) (tip.RateSource, error) {
	if log == nil {
		log = slog.Default()
	}

	var source tip.RateSource
	switch cfg.Source {
	case config.RateSourceStatic, "":
		static, err := NewStatic(cfg.StaticRate)
		if err != nil {
			return nil, err
		}
		source = static
	case config.RateSourceHTTP:
		httpSource, err := NewHTTPSource(HTTPOptions{
			URL:        cfg.URL,
			JSONPath:   cfg.JSONPath,
			Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
			MaxRetries: cfg.MaxRetries,
		}, log)
		if err != nil {
			return nil, err
		}
		source = httpSource
	default:
		return nil, fmt.Errorf("unsupported rate source: %s", cfg.Source)
	}

	if cfg.CacheSeconds > 0 {
		source = NewCached(source, time.Duration(cfg.CacheSeconds)*time.Second)
	}

	log.With("component", "rates.factory").Debug("Resolved rate source", "source", cfg.Source, "cache_seconds", cfg.CacheSeconds)
	return source, nil
}

// Health performs one lookup and returns the rate it saw.
func Health(ctx context.Context, source tip.RateSource, quote string) (decimal.Decimal, error) {
	if source == nil {
		return decimal.Zero, NewError(ErrorUnsupported, "no rate source")
	}

	rate, err := source.CurrentRate(ctx, tip.BaseCurrency, quote)
	if err != nil {
		return decimal.Zero, err
	}
	if !rate.IsPositive() {
		return decimal.Zero, NewError(ErrorInvalidRate, rate.String())
	}

	return rate, nil
}
