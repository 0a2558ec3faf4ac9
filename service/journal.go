package service

import (
	"fmt"
	"strconv"

	"limitbook/domain/engine"
	"limitbook/domain/orderbook"
	"limitbook/infra/wal"
	"limitbook/infra/wal/entry"
)

// command is one journaled state change. Ids, sizes and prices travel as
// strings because the payload codec widens numbers to float64.
type command struct {
	kind  entry.RecordType
	pair  engine.TradingPair
	id    uint64
	side  orderbook.Side
	price orderbook.Price
	size  int64
}

func (c command) payload() wal.Payload {
	p := wal.Payload{"pair": c.pair.String()}
	switch c.kind {
	case entry.RecordPlaceLimit:
		p["price"] = c.price.String()
		fallthrough
	case entry.RecordPlaceMarket:
		p["side"] = c.side.String()
		p["size"] = strconv.FormatInt(c.size, 10)
		fallthrough
	case entry.RecordCancel:
		p["id"] = strconv.FormatUint(c.id, 10)
	}
	return p
}

func decodeCommand(kind entry.RecordType, p wal.Payload) (command, error) {
	c := command{kind: kind}

	pair, err := engine.ParseTradingPair(str(p, "pair"))
	if err != nil {
		return c, err
	}
	c.pair = pair

	switch kind {
	case entry.RecordNewMarket:
		return c, nil
	case entry.RecordPlaceLimit:
		if c.price, err = orderbook.ParsePrice(str(p, "price")); err != nil {
			return c, err
		}
		fallthrough
	case entry.RecordPlaceMarket:
		if c.side, err = orderbook.ParseSide(str(p, "side")); err != nil {
			return c, err
		}
		if c.size, err = strconv.ParseInt(str(p, "size"), 10, 64); err != nil {
			return c, fmt.Errorf("size: %w", err)
		}
		fallthrough
	case entry.RecordCancel:
		if c.id, err = strconv.ParseUint(str(p, "id"), 10, 64); err != nil {
			return c, fmt.Errorf("id: %w", err)
		}
		return c, nil
	default:
		return c, fmt.Errorf("unknown record type %s", kind)
	}
}

func str(p wal.Payload, key string) string {
	s, _ := p[key].(string)
	return s
}
