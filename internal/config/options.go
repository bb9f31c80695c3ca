package config

import (
	"log/slog"
	"time"

	"github.com/rbright/audpipe/internal/pipe"
)

// PipeOptions converts the pipe and exchange sections into client options.
func (cfg Config) PipeOptions(logger *slog.Logger) (pipe.Options, error) {
	platform, err := pipe.ParsePlatform(cfg.Pipe.Platform)
	if err != nil {
		return pipe.Options{}, err
	}

	opts := pipe.DefaultOptions()
	opts.Platform = platform
	opts.ToPeer = cfg.Pipe.ToPeer
	opts.FromPeer = cfg.Pipe.FromPeer
	if uid := cfg.Pipe.UID; uid >= 0 {
		opts.Getuid = func() int { return uid }
	}

	opts.SettleDelay = time.Duration(cfg.Exchange.SettleDelayUS) * time.Microsecond
	opts.Timeout = time.Duration(cfg.Exchange.TimeoutMS) * time.Millisecond
	opts.ProbeAttempts = cfg.Exchange.ProbeAttempts
	opts.ProbeBackoff = time.Duration(cfg.Exchange.ProbeBackoffMS) * time.Millisecond
	opts.FailureMarker = cfg.Exchange.FailureMarker
	opts.Logger = logger

	return opts, nil
}
