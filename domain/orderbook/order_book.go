package orderbook

import "fmt"

// OrderBook is the two-sided book of one instrument. It is single-writer:
// callers serialize every mutating call.
type OrderBook struct {
	Bids *RBTree
	Asks *RBTree

	orders map[uint64]*Order
	counts [2]int // resting orders per side
}

// LevelView is an aggregated, read-only view of one price level.
type LevelView struct {
	Price  Price
	Volume int64
	Orders int
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		Bids:   NewRBTree(),
		Asks:   NewRBTree(),
		orders: make(map[uint64]*Order),
	}
}

// AddLimitOrder matches o against the opposite side while it crosses, then
// rests whatever is left at o.Price. A crossing order never rests unmatched.
func (b *OrderBook) AddLimitOrder(o *Order) (FillReport, error) {
	if o.Side != Bid && o.Side != Ask {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSide, o.Side)
	}
	if o.Type != Limit || o.Price <= 0 {
		return nil, fmt.Errorf("%w: limit order %d needs a positive price", ErrInvalidPrice, o.ID)
	}
	if o.remaining <= 0 {
		return nil, fmt.Errorf("%w: order %d has nothing remaining", ErrInvalidSize, o.ID)
	}
	if _, dup := b.orders[o.ID]; dup {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateOrder, o.ID)
	}

	fills := b.sweep(o, true)
	if o.remaining > 0 {
		b.rest(o)
	}
	return fills, nil
}

// AddOrderAt rests o at price without matching. It is the administrative
// insert used once crossing has been resolved, e.g. when restoring a snapshot.
func (b *OrderBook) AddOrderAt(price Price, o *Order) error {
	if price <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	if o.remaining <= 0 {
		return fmt.Errorf("%w: order %d has nothing remaining", ErrInvalidSize, o.ID)
	}
	if _, dup := b.orders[o.ID]; dup {
		return fmt.Errorf("%w: %d", ErrDuplicateOrder, o.ID)
	}
	if b.crosses(o.Side, price) {
		return fmt.Errorf("%w: %s %s", ErrCrossedInsert, o.Side, price)
	}
	o.Price = price
	b.rest(o)
	return nil
}

// FillMarketOrder sweeps the opposite side in best-price order with no price
// bound. An order left with Remaining() > 0 found the side exhausted; that is
// not an error and the remainder never rests.
func (b *OrderBook) FillMarketOrder(o *Order) (FillReport, error) {
	if o.Side != Bid && o.Side != Ask {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSide, o.Side)
	}
	if o.Type != Market {
		return nil, fmt.Errorf("%w: order %d is %s, not MARKET", ErrInvalidOrderType, o.ID, o.Type)
	}
	if o.Resting() {
		return nil, fmt.Errorf("%w: %d is resting", ErrDuplicateOrder, o.ID)
	}
	if o.remaining <= 0 {
		return nil, fmt.Errorf("%w: order %d has nothing remaining", ErrInvalidSize, o.ID)
	}
	return b.sweep(o, false), nil
}

// BestBid returns the highest bid price; ok is false when no bids rest.
func (b *OrderBook) BestBid() (Price, bool) {
	lvl := b.Bids.MaxLevel()
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

// BestAsk returns the lowest ask price; ok is false when no asks rest.
func (b *OrderBook) BestAsk() (Price, bool) {
	lvl := b.Asks.MinLevel()
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

// Spread is best ask minus best bid; ok is false unless both sides rest.
func (b *OrderBook) Spread() (Price, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask - bid, true
}

// Cancel removes a resting order by id, pruning its level if it empties.
func (b *OrderBook) Cancel(id uint64) (*Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	lvl := o.level
	lvl.remove(o)
	delete(b.orders, id)
	b.counts[o.Side]--
	b.pruneIfEmpty(o.Side, lvl)

	o.remaining = 0
	o.canceled = true
	return o, nil
}

// Order returns a resting order by id.
func (b *OrderBook) Order(id uint64) (*Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// Len is the number of resting orders on both sides.
func (b *OrderBook) Len() int { return len(b.orders) }

// OrdersOn is the number of resting orders on one side.
func (b *OrderBook) OrdersOn(side Side) int {
	if side != Bid && side != Ask {
		return 0
	}
	return b.counts[side]
}

func (b *OrderBook) LevelCount(side Side) int {
	return b.side(side).Size()
}

// Depth returns up to n levels of side, best price first. n <= 0 means all.
func (b *OrderBook) Depth(side Side, n int) []LevelView {
	var out []LevelView
	b.walk(side, func(lvl *PriceLevel) bool {
		out = append(out, LevelView{Price: lvl.Price, Volume: lvl.TotalVolume(), Orders: lvl.Len()})
		return n <= 0 || len(out) < n
	})
	return out
}

// WalkBids visits bid levels from the highest price down.
func (b *OrderBook) WalkBids(fn func(*PriceLevel) bool) { b.walk(Bid, fn) }

// WalkAsks visits ask levels from the lowest price up.
func (b *OrderBook) WalkAsks(fn func(*PriceLevel) bool) { b.walk(Ask, fn) }

// ---- internals ----

func (b *OrderBook) side(s Side) *RBTree {
	switch s {
	case Bid:
		return b.Bids
	case Ask:
		return b.Asks
	default:
		panic(fmt.Sprintf("orderbook: unknown side %d", int(s)))
	}
}

// walk visits levels of s in matching priority order.
func (b *OrderBook) walk(s Side, fn func(*PriceLevel) bool) {
	switch s {
	case Bid:
		b.Bids.ForEachDescending(fn)
	case Ask:
		b.Asks.ForEachAscending(fn)
	}
}

// best returns the level an aggressor on the opposite side would hit first.
func (b *OrderBook) best(s Side) *PriceLevel {
	switch s {
	case Bid:
		return b.Bids.MaxLevel()
	case Ask:
		return b.Asks.MinLevel()
	default:
		return nil
	}
}

// crosses reports whether an order of side s at price would execute against
// the opposite side's best price.
func (b *OrderBook) crosses(s Side, price Price) bool {
	switch s {
	case Bid:
		ask, ok := b.BestAsk()
		return ok && price >= ask
	case Ask:
		bid, ok := b.BestBid()
		return ok && price <= bid
	default:
		return false
	}
}

// sweep consumes opposite levels best-first. With bounded set, it stops at
// the first level the aggressor's price does not reach.
func (b *OrderBook) sweep(o *Order, bounded bool) FillReport {
	opp := o.Side.Opposite()
	var fills FillReport
	for o.remaining > 0 {
		lvl := b.best(opp)
		if lvl == nil {
			break
		}
		if bounded && !b.crosses(o.Side, o.Price) {
			break
		}

		step := lvl.MatchAgainst(o)
		for _, f := range step {
			if maker := b.orders[f.MakerID]; maker != nil && maker.remaining == 0 {
				delete(b.orders, f.MakerID)
				b.counts[opp]--
			}
		}
		fills = append(fills, step...)
		b.pruneIfEmpty(opp, lvl)
	}
	return fills
}

func (b *OrderBook) rest(o *Order) {
	b.side(o.Side).UpsertLevel(o.Price).Add(o)
	b.orders[o.ID] = o
	b.counts[o.Side]++
}

func (b *OrderBook) pruneIfEmpty(s Side, lvl *PriceLevel) {
	if lvl.Empty() {
		b.side(s).DeleteLevel(lvl.Price)
	}
}
