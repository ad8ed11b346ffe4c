package tip

import (
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Position records on which side of the number the unit appeared.
type Position string

const (
	PositionPrefix Position = "prefix"
	PositionSuffix Position = "suffix"
)

// AmountToken is one recognized currency occurrence in a message.
type AmountToken struct {
	Value    decimal.Decimal `json:"value"`
	Literal  string          `json:"literal"`
	Unit     Unit            `json:"unit"`
	Spelling string          `json:"spelling"`
	Position Position        `json:"position"`
	Index    int             `json:"index"`
	Offset   int             `json:"offset"`
}

type lexKind int

const (
	lexSpace lexKind = iota
	lexWord
	lexNumber
	lexSymbol
	lexMention
	lexHashtag
	lexOther
)

// lexeme is a slice of the input text; start is a byte offset.
type lexeme struct {
	kind  lexKind
	text  string
	start int
}

// lex splits text into the lexemes both scanners work from. Letters group into
// maximal words, so a unit spelling only ever matches a whole word.
func lex(text string, units *UnitTable) []lexeme {
	lexemes := make([]lexeme, 0, len(text)/3+1)
	prev := utf8.RuneError

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		start := i
		kind := lexOther

		switch {
		case unicode.IsSpace(r):
			kind = lexSpace
			i = scanWhile(text, i, unicode.IsSpace)
		case r == '@' && !isHandleRune(prev) && startsWith(text, i+size, isHandleRune):
			kind = lexMention
			i = scanWhile(text, i+size, isHandleRune)
		case r == '#' && !isHandleRune(prev) && startsWith(text, i+size, isTagRune):
			kind = lexHashtag
			i = scanWhile(text, i+size, isTagRune)
		case isDigit(r):
			kind = lexNumber
			i = scanNumber(text, i)
		case unicode.IsLetter(r):
			kind = lexWord
			i = scanWhile(text, i, unicode.IsLetter)
		case units.isSymbol(r):
			kind = lexSymbol
			i += size
		default:
			i += size
		}

		lexemes = append(lexemes, lexeme{kind: kind, text: text[start:i], start: start})
		prev, _ = utf8.DecodeLastRuneInString(text[:i])
	}

	return lexemes
}

// scanMentions returns every handle in order of appearance, without the "@".
func scanMentions(lexemes []lexeme) []string {
	mentions := make([]string, 0, 2)
	for _, lx := range lexemes {
		if lx.kind == lexMention {
			mentions = append(mentions, lx.text[1:])
		}
	}

	return mentions
}

// scanAmounts pairs number literals with the unit in front of or behind them.
// A literal and a unit word are each consumed at most once, left to right.
func scanAmounts(lexemes []lexeme, units *UnitTable) []AmountToken {
	consumed := make([]bool, len(lexemes))
	tokens := make([]AmountToken, 0, 1)

	for i, lx := range lexemes {
		if lx.kind != lexNumber || consumed[i] {
			continue
		}
		// Digits glued to an unknown word are part of an identifier, not an amount.
		if gluedToWord(lexemes, i-1, units) || gluedToWord(lexemes, i+1, units) {
			continue
		}
		if malformedNumber(lexemes, i) {
			continue
		}

		value, err := decimal.NewFromString(lx.text)
		if err != nil {
			continue
		}

		prefixAt := significant(lexemes, i, -1)
		suffixAt := significant(lexemes, i, +1)
		prefix, hasPrefix := unitAt(lexemes, prefixAt, consumed, units, true)
		suffix, hasSuffix := unitAt(lexemes, suffixAt, consumed, units, false)

		var unit Unit
		var unitAtIdx int
		var position Position
		switch {
		case hasPrefix && hasSuffix:
			consumed[prefixAt] = true
			consumed[suffixAt] = true
			if suffix.Kind == KindFixed && prefix.Kind != KindFixed {
				unit, unitAtIdx, position = suffix, suffixAt, PositionSuffix
			} else {
				unit, unitAtIdx, position = prefix, prefixAt, PositionPrefix
			}
		case hasPrefix:
			consumed[prefixAt] = true
			unit, unitAtIdx, position = prefix, prefixAt, PositionPrefix
		case hasSuffix:
			consumed[suffixAt] = true
			unit, unitAtIdx, position = suffix, suffixAt, PositionSuffix
		default:
			continue
		}

		consumed[i] = true
		tokens = append(tokens, AmountToken{
			Value:    value,
			Literal:  lx.text,
			Unit:     unit,
			Spelling: lexemes[unitAtIdx].text,
			Position: position,
			Index:    len(tokens),
			Offset:   lx.start,
		})
	}

	return tokens
}

// significant returns the index of the nearest non-space lexeme from i in
// direction step, or -1.
func significant(lexemes []lexeme, i int, step int) int {
	for j := i + step; j >= 0 && j < len(lexemes); j += step {
		if lexemes[j].kind != lexSpace {
			return j
		}
	}

	return -1
}

func unitAt(lexemes []lexeme, j int, consumed []bool, units *UnitTable, allowSymbol bool) (Unit, bool) {
	if j < 0 || consumed[j] {
		return Unit{}, false
	}

	lx := lexemes[j]
	switch lx.kind {
	case lexWord:
		return units.Lookup(lx.text)
	case lexSymbol:
		if !allowSymbol {
			return Unit{}, false
		}
		r, _ := utf8.DecodeRuneInString(lx.text)
		return units.LookupSymbol(r)
	default:
		return Unit{}, false
	}
}

func gluedToWord(lexemes []lexeme, j int, units *UnitTable) bool {
	if j < 0 || j >= len(lexemes) || lexemes[j].kind != lexWord {
		return false
	}

	_, ok := units.Lookup(lexemes[j].text)
	return !ok
}

// malformedNumber reports whether the literal at i is only the valid-looking
// part of a longer run such as ".5", "-5", "5.5.5" or "1,000".
func malformedNumber(lexemes []lexeme, i int) bool {
	if i > 0 && lexemes[i-1].kind == lexOther {
		switch lexemes[i-1].text {
		case ".", ",", "-", "+":
			return true
		}
	}

	if i+2 < len(lexemes) && lexemes[i+1].kind == lexOther && lexemes[i+2].kind == lexNumber {
		switch lexemes[i+1].text {
		case ".", ",":
			return true
		}
	}

	return false
}

func scanWhile(text string, i int, accept func(rune) bool) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !accept(r) {
			break
		}
		i += size
	}

	return i
}

// scanNumber consumes digits with an optional fractional part. A trailing dot
// without digits is left for the next lexeme.
func scanNumber(text string, i int) int {
	i = scanWhile(text, i, isDigit)
	if i+1 < len(text) && text[i] == '.' && isDigit(rune(text[i+1])) {
		i = scanWhile(text, i+1, isDigit)
	}

	return i
}

func startsWith(text string, i int, accept func(rune) bool) bool {
	if i >= len(text) {
		return false
	}

	r, _ := utf8.DecodeRuneInString(text[i:])
	return accept(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHandleRune(r rune) bool {
	return r == '_' || isDigit(r) || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isTagRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
