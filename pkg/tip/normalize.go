package tip

import (
	"context"
	"math"
	"slices"

	"github.com/shopspring/decimal"
)

var (
	satoshisPerBTC = decimal.NewFromInt(SatoshisPerBTC)
	maxBaseUnits   = decimal.NewFromInt(math.MaxInt64)
)

// NormalizedAmount is an AmountToken converted into base units.
type NormalizedAmount struct {
	Token     AmountToken `json:"token"`
	BaseUnits int64       `json:"base_units"`
}

// normalize converts tokens into base units. The rate source is consulted once,
// and only if some token is fiat-denominated, so a whole message is priced
// against one snapshot. The result is in precedence order: fixed units first,
// then fiat, each group in textual order.
func (p *Parser) normalize(ctx context.Context, tokens []AmountToken) ([]NormalizedAmount, error) {
	normalized := make([]NormalizedAmount, 0, len(tokens))

	var rate decimal.Decimal
	haveRate := false

	for _, token := range tokens {
		var units decimal.Decimal
		switch token.Unit.Kind {
		case KindFixed:
			units = token.Value.Mul(decimal.NewFromInt(token.Unit.BaseUnits))
		case KindFiat:
			if !haveRate {
				var err error
				rate, err = lookupRate(ctx, p.rates, p.fiat)
				if err != nil {
					return nil, err
				}
				haveRate = true
			}
			units = fiatToBaseUnits(token.Value, token.Unit.FiatPrice, rate)
		default:
			continue
		}

		baseUnits, ok := truncateBaseUnits(units)
		if !ok {
			p.log.Debug("Dropping amount outside base unit range", "literal", token.Literal, "unit", token.Unit.Key)
			continue
		}

		normalized = append(normalized, NormalizedAmount{Token: token, BaseUnits: baseUnits})
	}

	slices.SortStableFunc(normalized, func(a, b NormalizedAmount) int {
		return int(a.Token.Unit.Kind) - int(b.Token.Unit.Kind)
	})

	return normalized, nil
}

// fiatToBaseUnits computes value × price × satoshis / rate, truncated toward zero.
func fiatToBaseUnits(value decimal.Decimal, price decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	numerator := value.Mul(price).Mul(satoshisPerBTC)
	quotient, _ := numerator.QuoRem(rate, 0)
	return quotient
}

func truncateBaseUnits(units decimal.Decimal) (int64, bool) {
	units = units.Truncate(0)
	if units.IsNegative() || units.GreaterThan(maxBaseUnits) {
		return 0, false
	}

	return units.IntPart(), true
}
