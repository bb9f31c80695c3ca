// Package metrics exposes Prometheus instrumentation for bridged exchanges.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	exchangeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audpipe",
			Name:      "exchange_total",
			Help:      "Macro exchanges with Audacity by outcome.",
		},
		[]string{"outcome"},
	)
	exchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "audpipe",
			Name:      "exchange_duration_seconds",
			Help:      "Macro exchange duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	bridgeWaiting = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "audpipe",
			Subsystem: "bridge",
			Name:      "waiting_requests",
			Help:      "Bridge requests queued behind the active exchange.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(exchangeTotal, exchangeDuration, bridgeWaiting)
	})
}

// RecordExchange counts one finished exchange. outcome is "ok" or a pipe
// error kind.
func RecordExchange(outcome string, duration time.Duration) {
	RegisterMetrics()
	exchangeTotal.WithLabelValues(outcome).Inc()
	exchangeDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// TrackWaiting adjusts the queued-request gauge by delta.
func TrackWaiting(delta float64) {
	RegisterMetrics()
	bridgeWaiting.Add(delta)
}

func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

// Serve exposes /metrics on listener until ctx is done.
func Serve(ctx context.Context, listener net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info("metrics listening", "addr", listener.Addr().String())
	}
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
