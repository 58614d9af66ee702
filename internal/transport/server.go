package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// PushHandler receives pushed entities on the remote side.
type PushHandler interface {
	Push(ctx context.Context, req *structpb.Struct) error
}

type pushServer interface {
	Push(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

type pushServerAdapter struct {
	h PushHandler
}

func (a pushServerAdapter) Push(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if err := a.h.Push(ctx, req); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func pushHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(pushServer).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pushMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(pushServer).Push(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*pushServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Push", Handler: pushHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterPushServer exposes h as the SyncService on s.
func RegisterPushServer(s grpc.ServiceRegistrar, h PushHandler) {
	s.RegisterService(&serviceDesc, pushServerAdapter{h: h})
}
