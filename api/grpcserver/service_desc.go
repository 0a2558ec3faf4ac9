package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "limitbook.v1.Matching"

// MatchingServer is the server side of limitbook.v1.Matching. Every method
// takes and returns a google.protobuf.Struct.
type MatchingServer interface {
	NewMarket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlaceLimitOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlaceMarketOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TopOfBook(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(MatchingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("NewMarket", MatchingServer.NewMarket),
		unary("PlaceLimitOrder", MatchingServer.PlaceLimitOrder),
		unary("PlaceMarketOrder", MatchingServer.PlaceMarketOrder),
		unary("CancelOrder", MatchingServer.CancelOrder),
		unary("TopOfBook", MatchingServer.TopOfBook),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "limitbook/v1/matching.proto",
}

func Register(s grpc.ServiceRegistrar, srv MatchingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary(method string, call unaryCall) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MatchingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(MatchingServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// Client calls limitbook.v1.Matching over cc.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) NewMarket(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "NewMarket", in, opts)
}

func (c *Client) PlaceLimitOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "PlaceLimitOrder", in, opts)
}

func (c *Client) PlaceMarketOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "PlaceMarketOrder", in, opts)
}

func (c *Client) CancelOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CancelOrder", in, opts)
}

func (c *Client) TopOfBook(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "TopOfBook", in, opts)
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
