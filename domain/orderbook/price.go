package orderbook

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional decimal digits a Price carries.
const PriceScale = 5

var (
	maxPrice = decimal.NewFromInt(math.MaxInt64)
	minPrice = decimal.NewFromInt(math.MinInt64)
)

// Price is a fixed-point limit price: the decimal value multiplied by
// 10^PriceScale. Equal decimal inputs always produce the same Price, so it is
// safe as a map key and comparison subject.
type Price int64

// NewPrice converts d exactly. It fails with ErrPriceOutOfScale when d has more
// fractional digits than PriceScale or does not fit the int64 representation.
func NewPrice(d decimal.Decimal) (Price, error) {
	scaled := d.Shift(PriceScale)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d fractional digits", ErrPriceOutOfScale, d, PriceScale)
	}
	if scaled.GreaterThan(maxPrice) || scaled.LessThan(minPrice) {
		return 0, fmt.Errorf("%w: %s overflows", ErrPriceOutOfScale, d)
	}
	return Price(scaled.IntPart()), nil
}

// NewPriceRounded is the saturating form of NewPrice: extra precision is
// rounded half-even and magnitudes beyond the representation are clamped.
func NewPriceRounded(d decimal.Decimal) Price {
	scaled := d.RoundBank(PriceScale).Shift(PriceScale)
	switch {
	case scaled.GreaterThan(maxPrice):
		return Price(math.MaxInt64)
	case scaled.LessThan(minPrice):
		return Price(math.MinInt64)
	}
	return Price(scaled.IntPart())
}

// ParsePrice parses a decimal string such as "101.25".
func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	return NewPrice(d)
}

// MaxPriceUnits is the largest whole-unit magnitude a Price can hold.
const MaxPriceUnits = math.MaxInt64 / 100000

// PriceFromUnits returns the Price of a whole number of quote units. Like
// NewPriceRounded it saturates: |units| above MaxPriceUnits clamps to the
// largest representable magnitude instead of wrapping.
func PriceFromUnits(units int64) Price {
	switch {
	case units > MaxPriceUnits:
		return Price(math.MaxInt64)
	case units < -MaxPriceUnits:
		return Price(math.MinInt64)
	}
	return Price(units * pow10(PriceScale))
}

// Raw returns the scaled integer representation.
func (p Price) Raw() int64 { return int64(p) }

func (p Price) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -PriceScale)
}

func (p Price) String() string {
	return p.Decimal().String()
}

// Cmp returns -1, 0 or +1.
func (p Price) Cmp(q Price) int {
	switch {
	case p < q:
		return -1
	case p > q:
		return 1
	}
	return 0
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}
