package pb

import (
	"context"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
)

// Codec plugs the hand-maintained stubs into gRPC. Install it on the
// server with grpc.ForceServerCodec and on clients with CallContentSubtype.
type Codec struct{}

func (Codec) Name() string { return "freya" }

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, errors.Newf("pb: cannot marshal %T", v)
	}
	return m.MarshalWire()
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return errors.Newf("pb: cannot unmarshal into %T", v)
	}
	return m.UnmarshalWire(data)
}

// EngineServer is the server contract for the freya.Engine service.
type EngineServer interface {
	Submit(context.Context, *SubmitRequest) (*SubmitResponse, error)
	SubmitBatch(context.Context, *SubmitBatchRequest) (*SubmitBatchResponse, error)
	Cancel(context.Context, *CancelRequest) (*CancelResponse, error)
	CancelBatch(context.Context, *CancelBatchRequest) (*CancelBatchResponse, error)
	Claim(context.Context, *ClaimRequest) (*ClaimResponse, error)
	Depth(context.Context, *DepthRequest) (*DepthResponse, error)
}

func RegisterEngineServer(s grpc.ServiceRegistrar, srv EngineServer) {
	s.RegisterService(&engineServiceDesc, srv)
}

var engineServiceDesc = grpc.ServiceDesc{
	ServiceName: "freya.Engine",
	HandlerType: (*EngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: handleSubmit},
		{MethodName: "SubmitBatch", Handler: handleSubmitBatch},
		{MethodName: "Cancel", Handler: handleCancel},
		{MethodName: "CancelBatch", Handler: handleCancelBatch},
		{MethodName: "Claim", Handler: handleClaim},
		{MethodName: "Depth", Handler: handleDepth},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/pb/freya.proto",
}

func handleSubmit(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SubmitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/freya.Engine/Submit"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(EngineServer).Submit(ctx, req.(*SubmitRequest))
	})
}

func handleSubmitBatch(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SubmitBatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).SubmitBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/freya.Engine/SubmitBatch"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(EngineServer).SubmitBatch(ctx, req.(*SubmitBatchRequest))
	})
}

func handleCancel(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CancelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).Cancel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/freya.Engine/Cancel"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(EngineServer).Cancel(ctx, req.(*CancelRequest))
	})
}

func handleCancelBatch(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CancelBatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).CancelBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/freya.Engine/CancelBatch"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(EngineServer).CancelBatch(ctx, req.(*CancelBatchRequest))
	})
}

func handleClaim(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ClaimRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).Claim(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/freya.Engine/Claim"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(EngineServer).Claim(ctx, req.(*ClaimRequest))
	})
}

func handleDepth(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DepthRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).Depth(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/freya.Engine/Depth"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(EngineServer).Depth(ctx, req.(*DepthRequest))
	})
}
