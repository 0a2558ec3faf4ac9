package orderbook

// Fill is one match step: MakerID is the resting order that was consumed.
type Fill struct {
	MakerID  uint64
	Price    Price
	Quantity int64
}

// FillReport lists fills in execution order.
type FillReport []Fill

// Quantity returns the total filled quantity.
func (r FillReport) Quantity() int64 {
	var q int64
	for _, f := range r {
		q += f.Quantity
	}
	return q
}
