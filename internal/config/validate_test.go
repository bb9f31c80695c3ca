package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsHaveNoWarnings(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "unknown platform", mutate: func(c *Config) { c.Pipe.Platform = "plan9" }, wantErr: "pipe.platform"},
		{name: "negative settle", mutate: func(c *Config) { c.Exchange.SettleDelayUS = -1 }, wantErr: "settle_delay_us"},
		{name: "negative timeout", mutate: func(c *Config) { c.Exchange.TimeoutMS = -5 }, wantErr: "timeout_ms"},
		{name: "zero probe attempts", mutate: func(c *Config) { c.Exchange.ProbeAttempts = 0 }, wantErr: "probe_attempts"},
		{name: "negative probe backoff", mutate: func(c *Config) { c.Exchange.ProbeBackoffMS = -1 }, wantErr: "probe_backoff_ms"},
		{name: "empty marker", mutate: func(c *Config) { c.Exchange.FailureMarker = "" }, wantErr: "failure_marker"},
		{name: "relative socket", mutate: func(c *Config) { c.Bridge.Socket = "audpipe.sock" }, wantErr: "bridge.socket"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnsOnDisabledTimeoutAndHalfOverride(t *testing.T) {
	cfg := Default()
	cfg.Exchange.TimeoutMS = 0
	cfg.Pipe.ToPeer = "/tmp/to"

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0].Message, "pipe.from_peer")
	require.Contains(t, warnings[1].Message, "timeout_ms=0")
}

func TestParseLevel(t *testing.T) {
	for raw, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
}
