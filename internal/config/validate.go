package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rbright/audpipe/internal/pipe"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if _, err := pipe.ParsePlatform(cfg.Pipe.Platform); err != nil {
		return nil, fmt.Errorf("pipe.platform: %w", err)
	}
	if (cfg.Pipe.ToPeer == "") != (cfg.Pipe.FromPeer == "") {
		warnings = append(warnings, Warning{Message: "only one of pipe.to_peer/pipe.from_peer is set; the other endpoint is derived from the platform"})
	}

	if cfg.Exchange.SettleDelayUS < 0 {
		return nil, fmt.Errorf("exchange.settle_delay_us must be >= 0")
	}
	if cfg.Exchange.TimeoutMS < 0 {
		return nil, fmt.Errorf("exchange.timeout_ms must be >= 0")
	}
	if cfg.Exchange.TimeoutMS == 0 {
		warnings = append(warnings, Warning{Message: "exchange.timeout_ms=0 disables the exchange timeout; a stalled Audacity blocks forever"})
	}
	if cfg.Exchange.ProbeAttempts < 1 {
		return nil, fmt.Errorf("exchange.probe_attempts must be >= 1")
	}
	if cfg.Exchange.ProbeBackoffMS < 0 {
		return nil, fmt.Errorf("exchange.probe_backoff_ms must be >= 0")
	}
	if cfg.Exchange.FailureMarker == "" {
		return nil, fmt.Errorf("exchange.failure_marker must not be empty")
	}

	if cfg.Bridge.Socket != "" && !strings.HasPrefix(cfg.Bridge.Socket, "/") {
		return nil, fmt.Errorf("bridge.socket must be an absolute path")
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	return warnings, nil
}

// ParseLevel maps log.level onto a slog level.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
}
