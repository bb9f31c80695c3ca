// Package config resolves, parses, validates, and defaults audpipe configuration.
package config

// Config is the fully materialized runtime configuration used by audpipe.
type Config struct {
	Pipe     PipeConfig
	Exchange ExchangeConfig
	Bridge   BridgeConfig
	Log      LogConfig
}

// PipeConfig selects the endpoint convention and optional path overrides.
type PipeConfig struct {
	Platform string
	ToPeer   string
	FromPeer string
	// UID replaces the process uid in POSIX endpoint paths when >= 0.
	UID int
}

// ExchangeConfig tunes one request/response exchange.
type ExchangeConfig struct {
	SettleDelayUS  int
	TimeoutMS      int
	ProbeAttempts  int
	ProbeBackoffMS int
	FailureMarker  string
}

// BridgeConfig controls the optional local gRPC bridge.
type BridgeConfig struct {
	Socket      string
	MetricsAddr string
}

type LogConfig struct {
	Level string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
