package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"limitbook/domain/engine"
	"limitbook/domain/orderbook"
)

// FillEvent is the outbox record of one execution, published to the trades
// topic by the broadcaster.
type FillEvent struct {
	EventID    string    `json:"event_id"`
	Pair       string    `json:"pair"`
	TakerID    uint64    `json:"taker_id"`
	TakerSide  string    `json:"taker_side"`
	MakerID    uint64    `json:"maker_id"`
	Price      string    `json:"price"`
	Quantity   int64     `json:"quantity"`
	JournalSeq uint64    `json:"journal_seq"`
	Time       time.Time `json:"time"`
}

// TopOfBook is the best price and size on each side of a market. Sizes are
// zero on an empty side.
type TopOfBook struct {
	Pair    engine.TradingPair
	Bid     orderbook.Price
	BidSize int64
	Ask     orderbook.Price
	AskSize int64
	HasBid  bool
	HasAsk  bool
}

func topOf(pair engine.TradingPair, book *orderbook.OrderBook) TopOfBook {
	t := TopOfBook{Pair: pair}
	if lv := book.Depth(orderbook.Bid, 1); len(lv) == 1 {
		t.Bid, t.BidSize, t.HasBid = lv[0].Price, lv[0].Volume, true
	}
	if lv := book.Depth(orderbook.Ask, 1); len(lv) == 1 {
		t.Ask, t.AskSize, t.HasAsk = lv[0].Price, lv[0].Volume, true
	}
	return t
}

type topOfBookMessage struct {
	Pair    string    `json:"pair"`
	Bid     string    `json:"bid,omitempty"`
	BidSize int64     `json:"bid_size"`
	Ask     string    `json:"ask,omitempty"`
	AskSize int64     `json:"ask_size"`
	Time    time.Time `json:"time"`
}

func (t TopOfBook) MarshalJSON() ([]byte, error) {
	m := topOfBookMessage{
		Pair:    t.Pair.String(),
		BidSize: t.BidSize,
		AskSize: t.AskSize,
		Time:    time.Now().UTC(),
	}
	if t.HasBid {
		m.Bid = t.Bid.String()
	}
	if t.HasAsk {
		m.Ask = t.Ask.String()
	}
	return json.Marshal(m)
}

func fillEvents(pair engine.TradingPair, taker *orderbook.Order, fills orderbook.FillReport, seq uint64) []FillEvent {
	now := time.Now().UTC()
	out := make([]FillEvent, 0, len(fills))
	for _, f := range fills {
		out = append(out, FillEvent{
			EventID:    uuid.NewString(),
			Pair:       pair.String(),
			TakerID:    taker.ID,
			TakerSide:  taker.Side.String(),
			MakerID:    f.MakerID,
			Price:      f.Price.String(),
			Quantity:   f.Quantity,
			JournalSeq: seq,
			Time:       now,
		})
	}
	return out
}
