package tip

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// SatoshisPerBTC is the number of indivisible base units in one BTC.
	SatoshisPerBTC = 100_000_000

	// BaseCurrency is the currency every amount is normalized into.
	BaseCurrency = "BTC"
	// DefaultFiat is the quote currency used for fiat-denominated units.
	DefaultFiat = "USD"

	symbolBTC = "฿"
	symbolUSD = "$"
)

var (
	defaultBeerPrice     = decimal.NewFromInt(4)
	defaultInternetPrice = decimal.RequireFromString("1.337")
)

// Kind selects how a unit converts into base units.
type Kind int

const (
	// KindFixed units convert with a constant multiple of base units.
	KindFixed Kind = iota
	// KindFiat units are priced in fiat and need an exchange rate.
	KindFiat
)

func (k Kind) String() string {
	switch k {
	case KindFixed:
		return "fixed"
	case KindFiat:
		return "fiat"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "fixed":
		*k = KindFixed
	case "fiat":
		*k = KindFiat
	default:
		return fmt.Errorf("unknown unit kind %q", text)
	}
	return nil
}

// Unit is one conversion rule. Several spellings may share a Unit.
type Unit struct {
	Key       string          `json:"key"`
	Kind      Kind            `json:"kind"`
	BaseUnits int64           `json:"base_units,omitempty"`
	FiatPrice decimal.Decimal `json:"fiat_price"`
	Symbol    bool            `json:"symbol,omitempty"`
}

// Prices overrides the fiat price of the novelty units.
type Prices struct {
	Beer     decimal.Decimal
	Internet decimal.Decimal
}

// UnitTable maps lowercase spellings to their conversion rule.
// It is built once and only read afterwards.
type UnitTable struct {
	words   map[string]Unit
	symbols map[rune]Unit
}

// DefaultUnits returns the table with the stock beer and internet prices.
func DefaultUnits() *UnitTable {
	return NewUnitTable(Prices{})
}

// NewUnitTable builds the unit registry. Zero prices fall back to the defaults.
func NewUnitTable(prices Prices) *UnitTable {
	beer := prices.Beer
	if !beer.IsPositive() {
		beer = defaultBeerPrice
	}
	internet := prices.Internet
	if !internet.IsPositive() {
		internet = defaultInternetPrice
	}

	btc := Unit{Key: "btc", Kind: KindFixed, BaseUnits: SatoshisPerBTC}
	mbtc := Unit{Key: "mbtc", Kind: KindFixed, BaseUnits: SatoshisPerBTC / 1000}
	satoshi := Unit{Key: "satoshi", Kind: KindFixed, BaseUnits: 1}
	usd := Unit{Key: "usd", Kind: KindFiat, FiatPrice: decimal.NewFromInt(1)}
	beerUnit := Unit{Key: "beer", Kind: KindFiat, FiatPrice: beer}
	internetUnit := Unit{Key: "internet", Kind: KindFiat, FiatPrice: internet}

	t := &UnitTable{
		words: make(map[string]Unit),
		symbols: map[rune]Unit{
			[]rune(symbolBTC)[0]: {Key: symbolBTC, Kind: KindFixed, BaseUnits: SatoshisPerBTC, Symbol: true},
			[]rune(symbolUSD)[0]: {Key: symbolUSD, Kind: KindFiat, FiatPrice: decimal.NewFromInt(1), Symbol: true},
		},
	}

	t.add(btc, "btc", "bitcoin", "bitcoins")
	t.add(mbtc, "mbtc", "millibitcoin", "millibitcoins")
	t.add(satoshi, "satoshi", "satoshis", "sat", "sats")
	t.add(usd, "usd", "dollar", "dollars")
	t.add(beerUnit, "beer", "beers")
	t.add(internetUnit, "internet", "internets")

	return t
}

func (t *UnitTable) add(unit Unit, spellings ...string) {
	for _, spelling := range spellings {
		t.words[spelling] = unit
	}
}

// Lookup resolves a unit word, ignoring case.
func (t *UnitTable) Lookup(word string) (Unit, bool) {
	unit, ok := t.words[strings.ToLower(word)]
	return unit, ok
}

// LookupSymbol resolves a bare currency symbol such as "฿" or "$".
func (t *UnitTable) LookupSymbol(r rune) (Unit, bool) {
	unit, ok := t.symbols[r]
	return unit, ok
}

func (t *UnitTable) isSymbol(r rune) bool {
	_, ok := t.symbols[r]
	return ok
}
