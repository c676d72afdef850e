package grpc_handler

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "kvs.v1.KvService"

	getMethod    = "/" + ServiceName + "/Get"
	setMethod    = "/" + ServiceName + "/Set"
	removeMethod = "/" + ServiceName + "/Remove"
)

// KvServiceServer is the server API for kvs.v1.KvService.
type KvServiceServer interface {
	Get(context.Context, *GetRequest) (*GetResponse, error)
	Set(context.Context, *SetRequest) (*SetResponse, error)
	Remove(context.Context, *RemoveRequest) (*RemoveResponse, error)
}

// RegisterKvServiceServer registers srv on s.
func RegisterKvServiceServer(s grpc.ServiceRegistrar, srv KvServiceServer) {
	s.RegisterService(&kvServiceDesc, srv)
}

var kvServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*KvServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: getHandler},
		{MethodName: "Set", Handler: setHandler},
		{MethodName: "Remove", Handler: removeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kvs/v1/kv.proto",
}

func getHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvServiceServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KvServiceServer).Get(ctx, req.(*GetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func setHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvServiceServer).Set(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: setMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KvServiceServer).Set(ctx, req.(*SetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func removeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RemoveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvServiceServer).Remove(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: removeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KvServiceServer).Remove(ctx, req.(*RemoveRequest))
	}
	return interceptor(ctx, in, info, handler)
}
