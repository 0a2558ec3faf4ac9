package snapshot

import "time"

const fileName = "snapshot.bin"

type Snapshot struct {
	// Seq is the last journal record reflected in Markets.
	Seq uint64
	// LastOrderID is the highest order id issued, including ids of orders
	// that no longer rest.
	LastOrderID uint64
	Created     time.Time
	Markets     []MarketEntry
}

type MarketEntry struct {
	Pair   string
	Orders []OrderEntry // best price first, FIFO within a level
}

type OrderEntry struct {
	ID        uint64
	Side      int
	Price     int64
	Size      int64
	Remaining int64
}
