package grpcserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"limitbook/service"
)

func dial(t *testing.T) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))))
	Register(srv, NewServer(service.NewOrderService(service.Options{})))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func req(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestMatchingOverGRPC(t *testing.T) {
	c := dial(t)
	ctx := context.Background()

	_, err := c.NewMarket(ctx, req(t, map[string]any{"pair": "btc_usd"}))
	require.NoError(t, err)

	ask, err := c.PlaceLimitOrder(ctx, req(t, map[string]any{
		"pair": "BTC_USD", "side": "sell", "price": "101.25", "size": "10",
	}))
	require.NoError(t, err)
	assert.True(t, ask.GetFields()["resting"].GetBoolValue())
	makerID := ask.GetFields()["order_id"].GetStringValue()

	bid, err := c.PlaceMarketOrder(ctx, req(t, map[string]any{
		"pair": "BTC_USD", "side": "BUY", "size": 4,
	}))
	require.NoError(t, err)
	assert.Equal(t, "4", bid.GetFields()["filled"].GetStringValue())
	fills := bid.GetFields()["fills"].GetListValue().GetValues()
	require.Len(t, fills, 1)
	fill := fills[0].GetStructValue().GetFields()
	assert.Equal(t, makerID, fill["maker_id"].GetStringValue())
	assert.Equal(t, "101.25", fill["price"].GetStringValue())

	top, err := c.TopOfBook(ctx, req(t, map[string]any{"pair": "BTC_USD"}))
	require.NoError(t, err)
	assert.Equal(t, "101.25", top.GetFields()["ask"].GetStringValue())
	assert.Equal(t, "6", top.GetFields()["ask_size"].GetStringValue())
	_, hasBid := top.GetFields()["bid"]
	assert.False(t, hasBid)

	canceled, err := c.CancelOrder(ctx, req(t, map[string]any{"pair": "BTC_USD", "order_id": makerID}))
	require.NoError(t, err)
	assert.Equal(t, "6", canceled.GetFields()["canceled"].GetStringValue())
}

func TestStatusCodes(t *testing.T) {
	c := dial(t)
	ctx := context.Background()

	_, err := c.TopOfBook(ctx, req(t, map[string]any{"pair": "ETH_USD"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.NewMarket(ctx, req(t, map[string]any{"pair": "ETH_USD"}))
	require.NoError(t, err)
	_, err = c.NewMarket(ctx, req(t, map[string]any{"pair": "ETH_USD"}))
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = c.PlaceLimitOrder(ctx, req(t, map[string]any{
		"pair": "ETH_USD", "side": "BID", "price": "1.000001", "size": "1",
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.PlaceLimitOrder(ctx, req(t, map[string]any{
		"pair": "ETH_USD", "side": "BID", "price": "1", "size": 1.5,
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.CancelOrder(ctx, req(t, map[string]any{"pair": "ETH_USD", "order_id": "42"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.NewMarket(ctx, req(t, map[string]any{"pair": "ETHUSD"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
