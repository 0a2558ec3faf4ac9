// Package engine routes orders to the order book of their trading pair.
package engine

import (
	"fmt"
	"sort"

	"limitbook/domain/orderbook"
)

// MatchingEngine owns one OrderBook per registered TradingPair. It does no
// locking: registration and every mutation of a given book must be serialized
// by the caller. Distinct books share no state.
type MatchingEngine struct {
	books map[TradingPair]*orderbook.OrderBook
}

func New() *MatchingEngine {
	return &MatchingEngine{books: make(map[TradingPair]*orderbook.OrderBook)}
}

// NewMarket registers an empty book for pair. Registering twice fails with
// ErrMarketAlreadyExists and leaves the existing book untouched.
func (e *MatchingEngine) NewMarket(pair TradingPair) (*orderbook.OrderBook, error) {
	if _, ok := e.books[pair]; ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketAlreadyExists, pair)
	}
	b := orderbook.NewOrderBook()
	e.books[pair] = b
	return b, nil
}

// PlaceLimitOrder forwards to the pair's book. It never creates a market.
func (e *MatchingEngine) PlaceLimitOrder(pair TradingPair, o *orderbook.Order) (orderbook.FillReport, error) {
	b, err := e.Book(pair)
	if err != nil {
		return nil, err
	}
	return b.AddLimitOrder(o)
}

// PlaceMarketOrder sweeps the pair's book. A partially filled market order is
// a normal outcome, visible through o.Remaining().
func (e *MatchingEngine) PlaceMarketOrder(pair TradingPair, o *orderbook.Order) (orderbook.FillReport, error) {
	b, err := e.Book(pair)
	if err != nil {
		return nil, err
	}
	return b.FillMarketOrder(o)
}

// CancelOrder removes a resting order from the pair's book.
func (e *MatchingEngine) CancelOrder(pair TradingPair, id uint64) (*orderbook.Order, error) {
	b, err := e.Book(pair)
	if err != nil {
		return nil, err
	}
	return b.Cancel(id)
}

func (e *MatchingEngine) Book(pair TradingPair) (*orderbook.OrderBook, error) {
	b, ok := e.books[pair]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, pair)
	}
	return b, nil
}

func (e *MatchingEngine) HasMarket(pair TradingPair) bool {
	_, ok := e.books[pair]
	return ok
}

// Markets lists registered pairs ordered by canonical name.
func (e *MatchingEngine) Markets() []TradingPair {
	out := make([]TradingPair, 0, len(e.books))
	for p := range e.books {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
