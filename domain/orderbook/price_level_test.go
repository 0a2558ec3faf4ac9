package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLimit(t testing.TB, id uint64, side Side, units, size int64) *Order {
	t.Helper()
	o, err := NewLimitOrder(id, side, PriceFromUnits(units), size)
	require.NoError(t, err)
	return o
}

func mustMarket(t testing.TB, id uint64, side Side, size int64) *Order {
	t.Helper()
	o, err := NewMarketOrder(id, side, size)
	require.NoError(t, err)
	return o
}

func TestLevelTotalVolume(t *testing.T) {
	lvl := newPriceLevel(PriceFromUnits(10000))
	assert.Zero(t, lvl.TotalVolume(), "empty level has zero volume")

	lvl.Add(mustLimit(t, 1, Bid, 10000, 100))
	lvl.Add(mustLimit(t, 2, Bid, 10000, 100))

	assert.Equal(t, int64(200), lvl.TotalVolume())
	assert.Equal(t, 2, lvl.Len())
}

func TestLevelMultiFill(t *testing.T) {
	lvl := newPriceLevel(PriceFromUnits(10000))
	a := mustLimit(t, 1, Bid, 10000, 100)
	b := mustLimit(t, 2, Bid, 10000, 100)
	lvl.Add(a)
	lvl.Add(b)

	sell := mustMarket(t, 3, Ask, 199)
	fills := lvl.MatchAgainst(sell)

	assert.True(t, sell.IsFilled())
	assert.True(t, a.IsFilled())
	assert.Equal(t, int64(1), b.Remaining())
	assert.Equal(t, FillReport{
		{MakerID: 1, Price: PriceFromUnits(10000), Quantity: 100},
		{MakerID: 2, Price: PriceFromUnits(10000), Quantity: 99},
	}, fills)

	// a was pruned, b stays at the head
	assert.Equal(t, 1, lvl.Len())
	assert.Same(t, b, lvl.Head())
	assert.Equal(t, int64(1), lvl.TotalVolume())
	assert.False(t, a.Resting())
}

func TestLevelSingleFill(t *testing.T) {
	lvl := newPriceLevel(PriceFromUnits(10000))
	buy := mustLimit(t, 1, Bid, 10000, 100)
	lvl.Add(buy)

	sell := mustMarket(t, 2, Ask, 99)
	lvl.MatchAgainst(sell)

	assert.True(t, sell.IsFilled())
	assert.Equal(t, int64(1), buy.Remaining())
	assert.Equal(t, int64(99), buy.Filled())
}

func TestLevelFIFO(t *testing.T) {
	lvl := newPriceLevel(PriceFromUnits(5))
	a := mustLimit(t, 1, Ask, 5, 10)
	b := mustLimit(t, 2, Ask, 5, 10)
	lvl.Add(a)
	lvl.Add(b)

	fills := lvl.MatchAgainst(mustMarket(t, 3, Bid, 6))

	require.Len(t, fills, 1)
	assert.Equal(t, uint64(1), fills[0].MakerID)
	assert.Equal(t, int64(4), a.Remaining())
	assert.Equal(t, int64(10), b.Remaining(), "B is untouched until A is consumed")
}

func TestLevelEmptiesWhenAggressorIsLarger(t *testing.T) {
	lvl := newPriceLevel(PriceFromUnits(5))
	lvl.Add(mustLimit(t, 1, Ask, 5, 3))
	lvl.Add(mustLimit(t, 2, Ask, 5, 4))

	agg := mustMarket(t, 3, Bid, 10)
	fills := lvl.MatchAgainst(agg)

	assert.Equal(t, int64(7), fills.Quantity())
	assert.Equal(t, int64(3), agg.Remaining())
	assert.True(t, lvl.Empty())
	assert.Zero(t, lvl.TotalVolume())
	assert.Nil(t, lvl.Head())
}

func TestLevelRemoveMiddle(t *testing.T) {
	lvl := newPriceLevel(PriceFromUnits(5))
	a := mustLimit(t, 1, Ask, 5, 1)
	b := mustLimit(t, 2, Ask, 5, 2)
	c := mustLimit(t, 3, Ask, 5, 3)
	lvl.Add(a)
	lvl.Add(b)
	lvl.Add(c)

	lvl.remove(b)

	assert.Equal(t, []*Order{a, c}, lvl.Orders())
	assert.Equal(t, int64(4), lvl.TotalVolume())
}
