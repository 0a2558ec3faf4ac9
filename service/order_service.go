package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"limitbook/domain/engine"
	"limitbook/domain/orderbook"
	"limitbook/infra/metrics"
	"limitbook/infra/sequence"
	"limitbook/infra/wal"
	"limitbook/infra/wal/entry"
	exitwal "limitbook/infra/wal/exit"
)

// MarketDataSink receives a top-of-book update, keyed by pair, after every
// change to a book.
type MarketDataSink interface {
	Send(ctx context.Context, key, value []byte) error
}

// Options wires the collaborators of an OrderService. Every field is
// optional: a nil Journal disables journaling, a nil Outbox drops fill events
// and a nil MarketData skips publication.
type Options struct {
	Journal    *entry.WAL
	Serializer wal.Serializer
	Outbox     *exitwal.ExitWAL
	MarketData MarketDataSink
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

type OrderService struct {
	// mu guards the market registry. Every command holds it shared for its
	// whole duration; holding it exclusively freezes all markets.
	mu     sync.RWMutex
	engine *engine.MatchingEngine
	locks  map[engine.TradingPair]*sync.Mutex

	ids        *sequence.Sequencer
	journal    *entry.WAL
	codec      wal.Serializer
	outbox     *exitwal.ExitWAL
	marketData MarketDataSink
	metrics    *metrics.Metrics
	log        *slog.Logger
}

func NewOrderService(opts Options) *OrderService {
	if opts.Serializer == nil {
		opts.Serializer = wal.ProtoSerializer{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OrderService{
		engine:     engine.New(),
		locks:      make(map[engine.TradingPair]*sync.Mutex),
		ids:        sequence.New(0),
		journal:    opts.Journal,
		codec:      opts.Serializer,
		outbox:     opts.Outbox,
		marketData: opts.MarketData,
		metrics:    opts.Metrics,
		log:        opts.Logger.With("component", "order_service"),
	}
}

type PlaceRequest struct {
	Pair  engine.TradingPair
	Side  orderbook.Side
	Price orderbook.Price // ignored for market orders
	Size  int64
}

type PlaceResult struct {
	OrderID   uint64
	Fills     orderbook.FillReport
	Filled    int64
	Remaining int64
	// Resting is true when the remainder of a limit order now rests in the
	// book. A market order's remainder is discarded.
	Resting bool
}

type CancelResult struct {
	OrderID  uint64
	Side     orderbook.Side
	Price    orderbook.Price
	Canceled int64
}

// BookDepth holds aggregated levels, best price first.
type BookDepth struct {
	Pair engine.TradingPair
	Bids []orderbook.LevelView
	Asks []orderbook.LevelView
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// NewMarket opens an empty book for pair.
func (s *OrderService) NewMarket(ctx context.Context, pair engine.TradingPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine.HasMarket(pair) {
		return fmt.Errorf("%w: %s", engine.ErrMarketAlreadyExists, pair)
	}

	c := command{kind: entry.RecordNewMarket, pair: pair}
	seq, err := s.journalCommand(c)
	if err != nil {
		return err
	}
	if err := s.openMarket(pair); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "market opened", "pair", pair.String(), "seq", seq)
	return nil
}

// PlaceLimitOrder matches the order against the opposite side and rests the
// remainder at its limit price.
func (s *OrderService) PlaceLimitOrder(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
	return s.place(ctx, command{
		kind:  entry.RecordPlaceLimit,
		pair:  req.Pair,
		side:  req.Side,
		price: req.Price,
		size:  req.Size,
	})
}

// PlaceMarketOrder sweeps the opposite side. Whatever the book cannot fill
// is reported in Remaining and dropped.
func (s *OrderService) PlaceMarketOrder(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
	return s.place(ctx, command{
		kind: entry.RecordPlaceMarket,
		pair: req.Pair,
		side: req.Side,
		size: req.Size,
	})
}

func (s *OrderService) place(ctx context.Context, c command) (PlaceResult, error) {
	kind := kindLabel(c.kind)

	o, err := newOrder(c)
	if err != nil {
		s.reject(ctx, c.pair, kind, err)
		return PlaceResult{}, err
	}

	var (
		res PlaceResult
		top TopOfBook
	)
	err = s.withMarket(c.pair, func(book *orderbook.OrderBook) error {
		c.id = s.ids.Next()
		o.ID = c.id

		seq, err := s.journalCommand(c)
		if err != nil {
			return err
		}
		o.Seq = seq

		fills, err := s.apply(c, o)
		if err != nil {
			return err
		}

		s.recordFills(ctx, c.pair, o, fills, seq)
		s.metrics.ObserveOrder(c.pair.String(), kind)
		s.updateResting(c.pair, book)

		res = PlaceResult{
			OrderID:   o.ID,
			Fills:     fills,
			Filled:    o.Filled(),
			Remaining: o.Remaining(),
			Resting:   o.Resting(),
		}
		top = topOf(c.pair, book)
		return nil
	})
	if err != nil {
		s.reject(ctx, c.pair, kind, err)
		return PlaceResult{}, err
	}

	s.log.DebugContext(ctx, "order placed",
		"pair", c.pair.String(), "kind", kind, "id", res.OrderID,
		"fills", len(res.Fills), "filled", res.Filled, "remaining", res.Remaining)

	s.publish(ctx, top)
	return res, nil
}

// CancelOrder removes a resting order.
func (s *OrderService) CancelOrder(ctx context.Context, pair engine.TradingPair, id uint64) (CancelResult, error) {
	var (
		res CancelResult
		top TopOfBook
	)
	err := s.withMarket(pair, func(book *orderbook.OrderBook) error {
		resting, ok := book.Order(id)
		if !ok {
			return fmt.Errorf("%w: %d", orderbook.ErrOrderNotFound, id)
		}
		res = CancelResult{OrderID: id, Side: resting.Side, Price: resting.Price, Canceled: resting.Remaining()}

		c := command{kind: entry.RecordCancel, pair: pair, id: id}
		if _, err := s.journalCommand(c); err != nil {
			return err
		}
		if _, err := s.apply(c, nil); err != nil {
			return err
		}

		s.metrics.ObserveCancel(pair.String())
		s.updateResting(pair, book)
		top = topOf(pair, book)
		return nil
	})
	if err != nil {
		s.reject(ctx, pair, "cancel", err)
		return CancelResult{}, err
	}

	s.log.DebugContext(ctx, "order canceled", "pair", pair.String(), "id", id, "canceled", res.Canceled)
	s.publish(ctx, top)
	return res, nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

func (s *OrderService) TopOfBook(pair engine.TradingPair) (TopOfBook, error) {
	var top TopOfBook
	err := s.withMarket(pair, func(book *orderbook.OrderBook) error {
		top = topOf(pair, book)
		return nil
	})
	return top, err
}

// Depth returns up to n levels per side; n <= 0 returns every level.
func (s *OrderService) Depth(pair engine.TradingPair, n int) (BookDepth, error) {
	d := BookDepth{Pair: pair}
	err := s.withMarket(pair, func(book *orderbook.OrderBook) error {
		d.Bids = book.Depth(orderbook.Bid, n)
		d.Asks = book.Depth(orderbook.Ask, n)
		return nil
	})
	return d, err
}

func (s *OrderService) Markets() []engine.TradingPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Markets()
}

//
// ──────────────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────────────
//

// withMarket runs fn with pair's book locked against other commands.
func (s *OrderService) withMarket(pair engine.TradingPair, fn func(*orderbook.OrderBook) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, err := s.engine.Book(pair)
	if err != nil {
		return err
	}
	lock := s.locks[pair]
	lock.Lock()
	defer lock.Unlock()

	return fn(book)
}

// openMarket registers pair; s.mu must be held exclusively.
func (s *OrderService) openMarket(pair engine.TradingPair) error {
	if _, err := s.engine.NewMarket(pair); err != nil {
		return err
	}
	s.locks[pair] = &sync.Mutex{}
	s.updateResting(pair, nil)
	return nil
}

func newOrder(c command) (*orderbook.Order, error) {
	switch c.kind {
	case entry.RecordPlaceLimit:
		return orderbook.NewLimitOrder(c.id, c.side, c.price, c.size)
	case entry.RecordPlaceMarket:
		return orderbook.NewMarketOrder(c.id, c.side, c.size)
	default:
		return nil, fmt.Errorf("record type %s carries no order", c.kind)
	}
}

// apply runs a placement or cancel against the engine. The caller holds the
// market.
func (s *OrderService) apply(c command, o *orderbook.Order) (orderbook.FillReport, error) {
	switch c.kind {
	case entry.RecordPlaceLimit:
		return s.engine.PlaceLimitOrder(c.pair, o)
	case entry.RecordPlaceMarket:
		return s.engine.PlaceMarketOrder(c.pair, o)
	case entry.RecordCancel:
		_, err := s.engine.CancelOrder(c.pair, c.id)
		return nil, err
	default:
		return nil, fmt.Errorf("cannot apply record type %s", c.kind)
	}
}

// journalCommand makes c durable before it is applied; it returns the
// journal sequence, or 0 without a journal.
func (s *OrderService) journalCommand(c command) (uint64, error) {
	if s.journal == nil {
		return 0, nil
	}
	data, err := s.codec.Encode(c.payload())
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", c.kind, err)
	}
	seq, err := s.journal.Append(entry.NewRecord(c.kind, data))
	if err != nil {
		return 0, fmt.Errorf("journal %s: %w", c.kind, err)
	}
	return seq, nil
}

// recordFills stores one outbox event per fill. The book has already
// changed, so a failed outbox write is logged rather than returned.
func (s *OrderService) recordFills(ctx context.Context, pair engine.TradingPair, taker *orderbook.Order, fills orderbook.FillReport, seq uint64) {
	if len(fills) == 0 {
		return
	}
	s.metrics.ObserveFills(pair.String(), len(fills), fills.Quantity())

	if s.outbox == nil {
		return
	}
	for _, ev := range fillEvents(pair, taker, fills, seq) {
		payload, err := json.Marshal(ev)
		if err == nil {
			_, err = s.outbox.PutNew(payload)
		}
		if err != nil {
			s.log.ErrorContext(ctx, "outbox write failed",
				"pair", ev.Pair, "taker", ev.TakerID, "maker", ev.MakerID, "err", err)
		}
	}
}

func (s *OrderService) publish(ctx context.Context, top TopOfBook) {
	if s.marketData == nil {
		return
	}
	value, err := json.Marshal(top)
	if err == nil {
		err = s.marketData.Send(ctx, []byte(top.Pair.String()), value)
	}
	if err != nil {
		s.log.WarnContext(ctx, "market data publish failed", "pair", top.Pair.String(), "err", err)
	}
}

func (s *OrderService) updateResting(pair engine.TradingPair, book *orderbook.OrderBook) {
	var bids, asks int
	if book != nil {
		bids, asks = book.OrdersOn(orderbook.Bid), book.OrdersOn(orderbook.Ask)
	}
	s.metrics.SetResting(pair.String(), "bid", bids)
	s.metrics.SetResting(pair.String(), "ask", asks)
}

func (s *OrderService) reject(ctx context.Context, pair engine.TradingPair, kind string, err error) {
	reason := rejectReason(err)
	s.metrics.ObserveReject(pair.String(), reason)
	s.log.InfoContext(ctx, "command rejected", "pair", pair.String(), "kind", kind, "reason", reason, "err", err)
}

func kindLabel(t entry.RecordType) string {
	switch t {
	case entry.RecordPlaceLimit:
		return "limit"
	case entry.RecordPlaceMarket:
		return "market"
	case entry.RecordCancel:
		return "cancel"
	default:
		return "market_admin"
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrMarketNotFound):
		return "market_not_found"
	case errors.Is(err, orderbook.ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, orderbook.ErrInvalidPrice), errors.Is(err, orderbook.ErrPriceOutOfScale):
		return "invalid_price"
	case errors.Is(err, orderbook.ErrInvalidSize):
		return "invalid_size"
	case errors.Is(err, orderbook.ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, orderbook.ErrInvalidOrderType):
		return "invalid_type"
	case errors.Is(err, orderbook.ErrDuplicateOrder):
		return "duplicate_order"
	default:
		return "internal"
	}
}
