package ipc

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rbright/audpipe/internal/pipe"
)

const (
	MacroServiceName = "audpipe.v1.Macro"
	MacroDoMethod    = "/audpipe.v1.Macro/Do"

	endpointResourceType = "audacity.pipe"
)

// Doer performs one macro exchange. *pipe.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, command string) (string, error)
}

// MacroServer is the server side of audpipe.v1.Macro.
type MacroServer interface {
	Do(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

func registerMacroServer(s grpc.ServiceRegistrar, srv MacroServer) {
	s.RegisterService(&macroServiceDesc, srv)
}

func macroDoHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MacroServer).Do(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: MacroDoMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MacroServer).Do(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

var macroServiceDesc = grpc.ServiceDesc{
	ServiceName: MacroServiceName,
	HandlerType: (*MacroServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Do",
			Handler:    macroDoHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "audpipe/v1/macro.proto",
}

// statusFromError maps an exchange failure onto a gRPC status error.
func statusFromError(err error) error {
	if err == nil {
		return nil
	}

	var pipeErr *pipe.Error
	if errors.As(err, &pipeErr) {
		switch pipeErr.Kind {
		case pipe.KindEnvironmentUnavailable:
			st := status.New(codes.Unavailable, pipeErr.Error())
			detailed, detailErr := st.WithDetails(&errdetails.ResourceInfo{
				ResourceType: endpointResourceType,
				ResourceName: pipeErr.Endpoint,
				Description:  "missing",
			})
			if detailErr != nil {
				return st.Err()
			}
			return detailed.Err()
		case pipe.KindPeerExecutionFailure:
			return status.Error(codes.Aborted, pipeErr.Response)
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// errorFromStatus rebuilds a *pipe.Error from a bridge status error so that
// remote callers branch on the same kinds as local ones.
func errorFromStatus(err error, socket string) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return &pipe.Error{Kind: pipe.KindTransport, Op: "bridge", Endpoint: socket, Err: err}
	}

	switch st.Code() {
	case codes.Unavailable:
		for _, detail := range st.Details() {
			if info, ok := detail.(*errdetails.ResourceInfo); ok && info.GetResourceType() == endpointResourceType {
				return &pipe.Error{Kind: pipe.KindEnvironmentUnavailable, Op: "stat", Endpoint: info.GetResourceName()}
			}
		}
		// No detail: the bridge itself is unreachable.
		return &pipe.Error{Kind: pipe.KindTransport, Op: "bridge", Endpoint: socket, Err: errors.New(st.Message())}
	case codes.Aborted:
		return &pipe.Error{Kind: pipe.KindPeerExecutionFailure, Op: "bridge", Endpoint: socket, Response: st.Message()}
	case codes.DeadlineExceeded:
		return &pipe.Error{Kind: pipe.KindTransport, Op: "bridge", Endpoint: socket, Err: context.DeadlineExceeded}
	case codes.Canceled:
		return &pipe.Error{Kind: pipe.KindTransport, Op: "bridge", Endpoint: socket, Err: context.Canceled}
	default:
		return &pipe.Error{Kind: pipe.KindTransport, Op: "bridge", Endpoint: socket, Err: errors.New(st.Message())}
	}
}
