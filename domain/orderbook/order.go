package orderbook

import (
	"fmt"
	"strings"
)

type Side int
type OrderType int

const (
	Bid Side = iota
	Ask
)

const (
	Limit OrderType = iota
	Market
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "BID"
	case Ask:
		return "ASK"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// ParseSide accepts BID/BUY and ASK/SELL in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BID", "BUY":
		return Bid, nil
	case "ASK", "SELL":
		return Ask, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// Opposite returns the side an order of s matches against. It is only
// meaningful for Bid and Ask; order constructors and the book reject others.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	default:
		return fmt.Sprintf("OrderType(%d)", int(t))
	}
}

// Order is a unit of trading intent. Its remaining size only ever decreases,
// and only through matching or cancellation.
type Order struct {
	ID    uint64
	Side  Side
	Type  OrderType
	Price Price // zero for market orders
	Size  int64
	Seq   uint64

	remaining int64
	filled    int64
	canceled  bool

	// FIFO links, owned by the PriceLevel the order rests in.
	level *PriceLevel
	next  *Order
	prev  *Order
}

// NewLimitOrder builds a limit order with its full size remaining.
func NewLimitOrder(id uint64, side Side, price Price, size int64) (*Order, error) {
	if side != Bid && side != Ask {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSide, side)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &Order{ID: id, Side: side, Type: Limit, Price: price, Size: size, remaining: size}, nil
}

// NewMarketOrder builds an order with no price bound.
func NewMarketOrder(id uint64, side Side, size int64) (*Order, error) {
	if side != Bid && side != Ask {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSide, side)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &Order{ID: id, Side: side, Type: Market, Size: size, remaining: size}, nil
}

func (o *Order) Remaining() int64 { return o.remaining }

// Filled is the quantity executed so far; cancellation does not count.
func (o *Order) Filled() int64 { return o.filled }

func (o *Order) Canceled() bool { return o.canceled }

func (o *Order) IsFilled() bool { return o.remaining == 0 }

// Resting reports whether the order currently sits in a book.
func (o *Order) Resting() bool { return o.level != nil }

// Next returns the order behind o in its level, for read-only traversal.
func (o *Order) Next() *Order { return o.next }

// consume takes up to qty from the remaining size and returns what was taken.
func (o *Order) consume(qty int64) int64 {
	if qty > o.remaining {
		qty = o.remaining
	}
	o.remaining -= qty
	o.filled += qty
	return qty
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{id=%d side=%s type=%s price=%s size=%d remaining=%d}",
		o.ID, o.Side, o.Type, o.Price, o.Size, o.remaining)
}

// RestoreLimitOrder rebuilds a partially filled resting order, e.g. from a
// snapshot. remaining must be in (0, size].
func RestoreLimitOrder(id uint64, side Side, price Price, size, remaining int64) (*Order, error) {
	o, err := NewLimitOrder(id, side, price, size)
	if err != nil {
		return nil, err
	}
	if remaining <= 0 || remaining > size {
		return nil, fmt.Errorf("%w: remaining %d of %d", ErrInvalidSize, remaining, size)
	}
	o.remaining = remaining
	o.filled = size - remaining
	return o, nil
}
