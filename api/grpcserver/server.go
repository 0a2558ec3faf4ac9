package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"limitbook/domain/engine"
	"limitbook/domain/orderbook"
	"limitbook/service"
)

var _ MatchingServer = (*Server)(nil)

// Server adapts OrderService to gRPC.
type Server struct {
	svc *service.OrderService
}

func NewServer(svc *service.OrderService) *Server {
	return &Server{svc: svc}
}

// -------------------- Commands --------------------

func (s *Server) NewMarket(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pair, err := pairField(req)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.svc.NewMarket(ctx, pair); err != nil {
		return nil, toStatus(err)
	}
	return respond(map[string]any{"pair": pair.String()})
}

func (s *Server) PlaceLimitOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pr, err := placeRequest(req, true)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.svc.PlaceLimitOrder(ctx, pr)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(placeResponse(res))
}

func (s *Server) PlaceMarketOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pr, err := placeRequest(req, false)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.svc.PlaceMarketOrder(ctx, pr)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(placeResponse(res))
}

func (s *Server) CancelOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pair, err := pairField(req)
	if err != nil {
		return nil, toStatus(err)
	}
	id, err := intField(req, "order_id")
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.svc.CancelOrder(ctx, pair, uint64(id))
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(map[string]any{
		"order_id": strconv.FormatUint(res.OrderID, 10),
		"side":     res.Side.String(),
		"price":    res.Price.String(),
		"canceled": strconv.FormatInt(res.Canceled, 10),
	})
}

// -------------------- Queries --------------------

func (s *Server) TopOfBook(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pair, err := pairField(req)
	if err != nil {
		return nil, toStatus(err)
	}
	top, err := s.svc.TopOfBook(pair)
	if err != nil {
		return nil, toStatus(err)
	}

	out := map[string]any{
		"pair":     pair.String(),
		"bid_size": strconv.FormatInt(top.BidSize, 10),
		"ask_size": strconv.FormatInt(top.AskSize, 10),
	}
	if top.HasBid {
		out["bid"] = top.Bid.String()
	}
	if top.HasAsk {
		out["ask"] = top.Ask.String()
	}
	return respond(out)
}

// -------------------- Interceptors --------------------

// UnaryLogger logs every call with its duration and status code.
func UnaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	log := logger.With("component", "grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		level := slog.LevelDebug
		if code == codes.Internal || code == codes.Unknown {
			level = slog.LevelError
		}
		log.Log(ctx, level, "call", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
		return resp, err
	}
}

// -------------------- Converters --------------------

func placeRequest(req *structpb.Struct, withPrice bool) (service.PlaceRequest, error) {
	pair, err := pairField(req)
	if err != nil {
		return service.PlaceRequest{}, err
	}
	side, err := orderbook.ParseSide(stringField(req, "side"))
	if err != nil {
		return service.PlaceRequest{}, err
	}
	size, err := intField(req, "size")
	if err != nil {
		return service.PlaceRequest{}, err
	}

	pr := service.PlaceRequest{Pair: pair, Side: side, Size: size}
	if withPrice {
		if pr.Price, err = orderbook.ParsePrice(stringField(req, "price")); err != nil {
			return service.PlaceRequest{}, err
		}
	}
	return pr, nil
}

func placeResponse(res service.PlaceResult) map[string]any {
	fills := make([]any, 0, len(res.Fills))
	for _, f := range res.Fills {
		fills = append(fills, map[string]any{
			"maker_id": strconv.FormatUint(f.MakerID, 10),
			"price":    f.Price.String(),
			"quantity": strconv.FormatInt(f.Quantity, 10),
		})
	}
	return map[string]any{
		"order_id":  strconv.FormatUint(res.OrderID, 10),
		"filled":    strconv.FormatInt(res.Filled, 10),
		"remaining": strconv.FormatInt(res.Remaining, 10),
		"resting":   res.Resting,
		"fills":     fills,
	}
}

func respond(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

var errBadField = errors.New("invalid field")

func pairField(req *structpb.Struct) (engine.TradingPair, error) {
	return engine.ParseTradingPair(stringField(req, "pair"))
}

func stringField(req *structpb.Struct, key string) string {
	v, ok := req.GetFields()[key]
	if !ok {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	default:
		return ""
	}
}

// intField accepts a decimal string or a whole JSON number. Strings are the
// only exact form above 2^53.
func intField(req *structpb.Struct, key string) (int64, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", errBadField, key)
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(k.StringValue, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", errBadField, key, err)
		}
		return n, nil
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return 0, fmt.Errorf("%w: %s must be a whole number", errBadField, key)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", errBadField, key)
	}
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, engine.ErrMarketNotFound), errors.Is(err, orderbook.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, engine.ErrMarketAlreadyExists), errors.Is(err, orderbook.ErrDuplicateOrder):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, engine.ErrInvalidPair),
		errors.Is(err, orderbook.ErrInvalidPrice),
		errors.Is(err, orderbook.ErrPriceOutOfScale),
		errors.Is(err, orderbook.ErrInvalidSize),
		errors.Is(err, orderbook.ErrInvalidSide),
		errors.Is(err, orderbook.ErrInvalidOrderType),
		errors.Is(err, errBadField):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
