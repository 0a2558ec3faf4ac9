package engine

import (
	"fmt"
	"strings"
)

// TradingPair identifies one order book, e.g. BTC (base) priced in USD (quote).
// It is a comparable value and is used directly as a map key.
type TradingPair struct {
	Base  string
	Quote string
}

// NewTradingPair upper-cases both symbols. Symbols must be non-empty and must
// not contain the '_' separator used by the canonical form.
func NewTradingPair(base, quote string) (TradingPair, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if base == "" || quote == "" || strings.Contains(base, "_") || strings.Contains(quote, "_") {
		return TradingPair{}, fmt.Errorf("%w: %q/%q", ErrInvalidPair, base, quote)
	}
	return TradingPair{Base: base, Quote: quote}, nil
}

// ParseTradingPair parses the canonical "BASE_QUOTE" form.
func ParseTradingPair(s string) (TradingPair, error) {
	base, quote, ok := strings.Cut(s, "_")
	if !ok {
		return TradingPair{}, fmt.Errorf("%w: %q", ErrInvalidPair, s)
	}
	return NewTradingPair(base, quote)
}

// MustPair is ParseTradingPair for literals; it panics on malformed input.
func MustPair(s string) TradingPair {
	p, err := ParseTradingPair(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p TradingPair) String() string {
	return p.Base + "_" + p.Quote
}
