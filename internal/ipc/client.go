package ipc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Dial opens a lazy client connection to the bridge socket at path.
func Dial(path string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	base := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	return grpc.NewClient("unix://"+path, append(base, opts...)...)
}

// Remote runs macro exchanges through a bridge. It satisfies Doer, so a
// remote bridge can stand in for a local pipe client.
type Remote struct {
	conn   grpc.ClientConnInterface
	socket string

	// Timeout bounds each Do; zero leaves the caller's context unchanged.
	Timeout time.Duration
}

func NewRemote(conn grpc.ClientConnInterface, socket string) *Remote {
	return &Remote{conn: conn, socket: socket}
}

// Do sends command over the bridge. Failures are *pipe.Error.
func (r *Remote) Do(ctx context.Context, command string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	out := new(wrapperspb.StringValue)
	if err := r.conn.Invoke(ctx, MacroDoMethod, wrapperspb.String(command), out); err != nil {
		return "", errorFromStatus(err, r.socket)
	}
	return out.GetValue(), nil
}

// Probe checks whether a responsive bridge is currently listening on path.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	conn, err := Dial(path)
	if err != nil {
		return false, fmt.Errorf("probe socket: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: MacroServiceName})
	if err == nil {
		return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
	}
	if status.Code(err) == codes.Unavailable {
		// Nothing accepting on the socket: missing or refused.
		return false, nil
	}
	return false, fmt.Errorf("probe socket: %w", err)
}
