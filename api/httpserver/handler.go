// Package httpserver exposes OrderService over HTTP/JSON with gin.
package httpserver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"limitbook/domain/engine"
	"limitbook/domain/orderbook"
	"limitbook/service"
)

type Handler struct {
	svc *service.OrderService
	log *slog.Logger
}

func NewHandler(svc *service.OrderService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{svc: svc, log: logger.With("component", "http")}
}

// NewRouter builds an engine with recovery, request logging and the API
// routes. Extra routes such as /metrics are added by the caller.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	markets := router.Group("/markets")
	{
		markets.POST("", h.NewMarket)
		markets.GET("", h.ListMarkets)
		markets.POST("/:pair/orders", h.PlaceOrder)
		markets.DELETE("/:pair/orders/:id", h.CancelOrder)
		markets.GET("/:pair/book", h.Book)
	}
}

type newMarketBody struct {
	Pair string `json:"pair" binding:"required"`
}

type placeOrderBody struct {
	Type  string `json:"type"` // limit (default) or market
	Side  string `json:"side" binding:"required"`
	Price string `json:"price"`
	Size  int64  `json:"size" binding:"required"`
}

type fillJSON struct {
	MakerID  uint64 `json:"maker_id"`
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

type placeResultJSON struct {
	OrderID   uint64     `json:"order_id"`
	Filled    int64      `json:"filled"`
	Remaining int64      `json:"remaining"`
	Resting   bool       `json:"resting"`
	Fills     []fillJSON `json:"fills"`
}

type levelJSON struct {
	Price  string `json:"price"`
	Volume int64  `json:"volume"`
	Orders int    `json:"orders"`
}

type bookJSON struct {
	Pair string      `json:"pair"`
	Bids []levelJSON `json:"bids"`
	Asks []levelJSON `json:"asks"`
}

var errBadRequest = errors.New("bad request")

// NewMarket handles POST /markets.
func (h *Handler) NewMarket(c *gin.Context) {
	var body newMarketBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	pair, err := engine.ParseTradingPair(body.Pair)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.NewMarket(c.Request.Context(), pair); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pair": pair.String()})
}

// ListMarkets handles GET /markets.
func (h *Handler) ListMarkets(c *gin.Context) {
	pairs := h.svc.Markets()
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.String())
	}
	c.JSON(http.StatusOK, gin.H{"markets": out})
}

// PlaceOrder handles POST /markets/:pair/orders.
func (h *Handler) PlaceOrder(c *gin.Context) {
	pair, err := engine.ParseTradingPair(c.Param("pair"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var body placeOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	side, err := orderbook.ParseSide(body.Side)
	if err != nil {
		h.fail(c, err)
		return
	}

	req := service.PlaceRequest{Pair: pair, Side: side, Size: body.Size}
	var res service.PlaceResult
	switch strings.ToLower(body.Type) {
	case "", "limit":
		if req.Price, err = orderbook.ParsePrice(body.Price); err != nil {
			h.fail(c, err)
			return
		}
		res, err = h.svc.PlaceLimitOrder(c.Request.Context(), req)
	case "market":
		res, err = h.svc.PlaceMarketOrder(c.Request.Context(), req)
	default:
		err = fmt.Errorf("%w: unknown order type %q", errBadRequest, body.Type)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	out := placeResultJSON{
		OrderID:   res.OrderID,
		Filled:    res.Filled,
		Remaining: res.Remaining,
		Resting:   res.Resting,
		Fills:     make([]fillJSON, 0, len(res.Fills)),
	}
	for _, f := range res.Fills {
		out.Fills = append(out.Fills, fillJSON{MakerID: f.MakerID, Price: f.Price.String(), Quantity: f.Quantity})
	}
	c.JSON(http.StatusCreated, out)
}

// CancelOrder handles DELETE /markets/:pair/orders/:id.
func (h *Handler) CancelOrder(c *gin.Context) {
	pair, err := engine.ParseTradingPair(c.Param("pair"))
	if err != nil {
		h.fail(c, err)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		h.fail(c, fmt.Errorf("%w: order id %q", errBadRequest, c.Param("id")))
		return
	}
	res, err := h.svc.CancelOrder(c.Request.Context(), pair, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": res.OrderID,
		"side":     res.Side.String(),
		"price":    res.Price.String(),
		"canceled": res.Canceled,
	})
}

// Book handles GET /markets/:pair/book?depth=n.
func (h *Handler) Book(c *gin.Context) {
	pair, err := engine.ParseTradingPair(c.Param("pair"))
	if err != nil {
		h.fail(c, err)
		return
	}
	depth, err := strconv.Atoi(c.DefaultQuery("depth", "10"))
	if err != nil {
		h.fail(c, fmt.Errorf("%w: depth %q", errBadRequest, c.Query("depth")))
		return
	}

	d, err := h.svc.Depth(pair, depth)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bookJSON{Pair: pair.String(), Bids: levels(d.Bids), Asks: levels(d.Asks)})
}

func levels(in []orderbook.LevelView) []levelJSON {
	out := make([]levelJSON, 0, len(in))
	for _, l := range in {
		out = append(out, levelJSON{Price: l.Price.String(), Volume: l.Volume, Orders: l.Orders})
	}
	return out
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		h.log.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, engine.ErrMarketNotFound), errors.Is(err, orderbook.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrMarketAlreadyExists), errors.Is(err, orderbook.ErrDuplicateOrder):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, engine.ErrInvalidPair),
		errors.Is(err, orderbook.ErrInvalidPrice),
		errors.Is(err, orderbook.ErrPriceOutOfScale),
		errors.Is(err, orderbook.ErrInvalidSize),
		errors.Is(err, orderbook.ErrInvalidSide),
		errors.Is(err, orderbook.ErrInvalidOrderType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.DebugContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
