package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Pipe: PipeConfig{
			Platform: "auto",
			UID:      -1,
		},
		Exchange: ExchangeConfig{
			SettleDelayUS:  100,
			TimeoutMS:      30000,
			ProbeAttempts:  1,
			ProbeBackoffMS: 5,
			FailureMarker:  "BatchCommand finished: Failed!",
		},
		Log: LogConfig{Level: "info"},
	}
}
