package orderbook

// PriceLevel is a FIFO queue of the orders resting at one price.
// Every order in it has Remaining() > 0.
type PriceLevel struct {
	Price Price

	head *Order
	tail *Order

	totalQty   int64
	orderCount int
}

func newPriceLevel(price Price) *PriceLevel {
	return &PriceLevel{Price: price}
}

// Add appends o to the tail of the queue.
func (p *PriceLevel) Add(o *Order) {
	o.level = p
	o.next = nil
	if p.head == nil {
		o.prev = nil
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	p.totalQty += o.remaining
	p.orderCount++
}

// MatchAgainst consumes resting orders from the head while the aggressor has
// size left. Orders that reach zero are unlinked before the next step.
func (p *PriceLevel) MatchAgainst(aggressor *Order) FillReport {
	var fills FillReport
	for aggressor.remaining > 0 && p.head != nil {
		resting := p.head
		qty := min(aggressor.remaining, resting.remaining)

		aggressor.consume(qty)
		resting.consume(qty)
		p.totalQty -= qty

		fills = append(fills, Fill{MakerID: resting.ID, Price: p.Price, Quantity: qty})

		if resting.remaining == 0 {
			p.unlink(resting)
		}
	}
	return fills
}

// TotalVolume is the sum of remaining sizes; zero for an empty level.
func (p *PriceLevel) TotalVolume() int64 { return p.totalQty }

func (p *PriceLevel) Len() int { return p.orderCount }

func (p *PriceLevel) Empty() bool { return p.head == nil }

// Head returns the oldest order, or nil.
func (p *PriceLevel) Head() *Order { return p.head }

// Orders returns the queue in FIFO order.
func (p *PriceLevel) Orders() []*Order {
	out := make([]*Order, 0, p.orderCount)
	for o := p.head; o != nil; o = o.next {
		out = append(out, o)
	}
	return out
}

// remove unlinks o from anywhere in the queue, dropping its remaining size.
func (p *PriceLevel) remove(o *Order) {
	p.totalQty -= o.remaining
	p.unlink(o)
}

func (p *PriceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.next = nil
	o.prev = nil
	o.level = nil
	p.orderCount--
}
