// Package tip turns short social messages into validated tip intents: who pays,
// who receives, and how many base units.
package tip

import (
	"context"
	"log/slog"
	"strings"
)

// DefaultBotHandle is the reserved handle of the tip bot itself.
const DefaultBotHandle = "tippercoin"

// Message is the raw input of one parse.
type Message struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

// Parser extracts intents. It holds no mutable state and is safe for
// concurrent use as long as its RateSource is.
type Parser struct {
	bot   string
	units *UnitTable
	rates RateSource
	fiat  string
	log   *slog.Logger
}

// Option customizes a Parser.
type Option func(*Parser)

// WithBotHandle overrides the reserved bot handle.
func WithBotHandle(handle string) Option {
	return func(p *Parser) {
		if handle = normalizeHandle(handle); handle != "" {
			p.bot = handle
		}
	}
}

// WithUnits replaces the default unit table.
func WithUnits(units *UnitTable) Option {
	return func(p *Parser) {
		if units != nil {
			p.units = units
		}
	}
}

// WithFiat sets the quote currency used for fiat-denominated units.
func WithFiat(quote string) Option {
	return func(p *Parser) {
		if quote = strings.ToUpper(strings.TrimSpace(quote)); quote != "" {
			p.fiat = quote
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(log *slog.Logger) Option {
	return func(p *Parser) {
		if log != nil {
			p.log = log
		}
	}
}

// NewParser builds a Parser that prices fiat units through rates.
func NewParser(rates RateSource, opts ...Option) *Parser {
	p := &Parser{
		bot:   DefaultBotHandle,
		units: DefaultUnits(),
		rates: rates,
		fiat:  DefaultFiat,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("component", "tip.parser")

	return p
}

// BotHandle returns the reserved handle this parser excludes from recipients.
func (p *Parser) BotHandle() string {
	return p.bot
}

// Fiat returns the quote currency fiat units are priced in.
func (p *Parser) Fiat() string {
	return p.fiat
}

// Parse scans msg and resolves it into an Intent. Malformed or amount-less
// messages still produce an Intent, just an invalid one. An error is returned
// only when the exchange rate needed for a fiat amount is unavailable; it
// wraps ErrRateUnavailable.
func (p *Parser) Parse(ctx context.Context, msg Message) (Intent, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	lexemes := lex(msg.Text, p.units)
	mentions := scanMentions(lexemes)
	tokens := scanAmounts(lexemes, p.units)

	normalized, err := p.normalize(ctx, tokens)
	if err != nil {
		return Intent{}, err
	}

	intent := resolve(msg, p.bot, mentions, tokens, normalized)
	p.log.Debug("Parsed message",
		"sender", intent.Sender,
		"recipient", intent.Recipient,
		"amount", intent.Amount,
		"mentions", len(intent.Mentions),
		"amounts", len(intent.Amounts),
		"valid", intent.Valid(),
	)

	return intent, nil
}

// ScanMentions returns the handles mentioned in text, in order, duplicates kept.
func (p *Parser) ScanMentions(text string) []string {
	return scanMentions(lex(text, p.units))
}

// ScanAmounts returns the currency occurrences in text, in textual order.
func (p *Parser) ScanAmounts(text string) []AmountToken {
	return scanAmounts(lex(text, p.units), p.units)
}

// normalizeHandle strips a leading "@" and surrounding space.
func normalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}

func sameHandle(a string, b string) bool {
	return strings.EqualFold(normalizeHandle(a), normalizeHandle(b))
}
