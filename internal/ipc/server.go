package ipc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rbright/audpipe/internal/metrics"
	"github.com/rbright/audpipe/internal/pipe"
)

// bridge forwards Macro/Do calls to a Doer one exchange at a time; the
// Audacity pipe pair carries a single conversation.
type bridge struct {
	doer   Doer
	logger *slog.Logger
	slot   chan struct{}
}

func newBridge(doer Doer, logger *slog.Logger) *bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &bridge{doer: doer, logger: logger, slot: make(chan struct{}, 1)}
}

func (b *bridge) Do(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	command := in.GetValue()

	metrics.TrackWaiting(1)
	select {
	case b.slot <- struct{}{}:
		metrics.TrackWaiting(-1)
	case <-ctx.Done():
		metrics.TrackWaiting(-1)
		return nil, statusFromError(ctx.Err())
	}
	defer func() { <-b.slot }()

	started := time.Now()
	response, err := b.doer.Do(ctx, command)
	elapsed := time.Since(started)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if kind, ok := pipe.KindOf(err); ok {
			outcome = string(kind)
		}
	}
	metrics.RecordExchange(outcome, elapsed)
	b.logger.Info("bridge exchange", "command", command, "outcome", outcome, "duration_ms", elapsed.Milliseconds())

	if err != nil {
		return nil, statusFromError(err)
	}
	return wrapperspb.String(response), nil
}

// NewServer builds a gRPC server exposing audpipe.v1.Macro and grpc.health.v1.
func NewServer(doer Doer, logger *slog.Logger) *grpc.Server {
	srv := grpc.NewServer()
	registerMacroServer(srv, newBridge(doer, logger))

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(MacroServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)

	return srv
}

// Serve runs the bridge on listener until context cancellation or listener close.
func Serve(ctx context.Context, listener net.Listener, doer Doer, logger *slog.Logger) error {
	srv := NewServer(doer, logger)

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	if err := srv.Serve(listener); err != nil {
		if errors.Is(err, grpc.ErrServerStopped) || ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
