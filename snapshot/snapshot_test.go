package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limitbook/domain/engine"
	"limitbook/domain/orderbook"
)

func seedEngine(t *testing.T) *engine.MatchingEngine {
	t.Helper()
	eng := engine.New()
	btc := engine.MustPair("BTC_USD")
	_, err := eng.NewMarket(btc)
	require.NoError(t, err)
	_, err = eng.NewMarket(engine.MustPair("ETH_USD"))
	require.NoError(t, err)

	place := func(id uint64, side orderbook.Side, units, size int64) {
		o, err := orderbook.NewLimitOrder(id, side, orderbook.PriceFromUnits(units), size)
		require.NoError(t, err)
		_, err = eng.PlaceLimitOrder(btc, o)
		require.NoError(t, err)
	}
	place(1, orderbook.Bid, 99, 10)
	place(2, orderbook.Bid, 99, 4)
	place(3, orderbook.Bid, 98, 7)
	place(4, orderbook.Ask, 101, 5)

	// partially fills order 1
	taker, err := orderbook.NewMarketOrder(5, orderbook.Ask, 3)
	require.NoError(t, err)
	_, err = eng.PlaceMarketOrder(btc, taker)
	require.NoError(t, err)
	return eng
}

func TestWriteLoadRestore(t *testing.T) {
	eng := seedEngine(t)
	dir := t.TempDir()

	w := &Writer{Dir: dir}
	require.NoError(t, w.Write(Capture(42, 5, eng)))

	s, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, uint64(42), s.Seq)
	assert.Equal(t, uint64(5), s.LastOrderID)
	require.Len(t, s.Markets, 2)

	restored := engine.New()
	require.NoError(t, s.Restore(restored))
	assert.Equal(t, eng.Markets(), restored.Markets())

	book, err := restored.Book(engine.MustPair("BTC_USD"))
	require.NoError(t, err)
	assert.Equal(t, 4, book.Len())

	head := book.Bids.MaxLevel().Head()
	assert.Equal(t, uint64(1), head.ID, "FIFO order within a level survives")
	assert.Equal(t, int64(7), head.Remaining())
	assert.Equal(t, int64(3), head.Filled())
	assert.Equal(t, uint64(2), head.Next().ID)

	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, orderbook.PriceFromUnits(101), ask)
}

func TestLoadMissing(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestWriteReplacesPrevious(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir}
	require.NoError(t, w.Write(&Snapshot{Seq: 1}))
	require.NoError(t, w.Write(&Snapshot{Seq: 2}))

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), s.Seq)
}

func TestRestoreRejectsExistingMarket(t *testing.T) {
	eng := seedEngine(t)
	s := Capture(1, 5, eng)
	assert.ErrorIs(t, s.Restore(eng), engine.ErrMarketAlreadyExists)
}
