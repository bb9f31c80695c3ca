package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type fileConfig struct {
	Pipe     *filePipe     `json:"pipe"`
	Exchange *fileExchange `json:"exchange"`
	Bridge   *fileBridge   `json:"bridge"`
	Log      *fileLog      `json:"log"`
}

type filePipe struct {
	Platform *string `json:"platform"`
	ToPeer   *string `json:"to_peer"`
	FromPeer *string `json:"from_peer"`
	UID      *int    `json:"uid"`
}

type fileExchange struct {
	SettleDelayUS  *int    `json:"settle_delay_us"`
	TimeoutMS      *int    `json:"timeout_ms"`
	ProbeAttempts  *int    `json:"probe_attempts"`
	ProbeBackoffMS *int    `json:"probe_backoff_ms"`
	FailureMarker  *string `json:"failure_marker"`
}

type fileBridge struct {
	Socket      *string `json:"socket"`
	MetricsAddr *string `json:"metrics_addr"`
}

type fileLog struct {
	Level *string `json:"level"`
}

// Parse decodes JSONC content over base and validates the result. Empty
// content yields base.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload fileConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, locateDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, locateDecodeError(normalized, err)
	}

	cfg := base
	payload.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload fileConfig) applyTo(cfg *Config) {
	if p := payload.Pipe; p != nil {
		setString(&cfg.Pipe.Platform, p.Platform)
		setString(&cfg.Pipe.ToPeer, p.ToPeer)
		setString(&cfg.Pipe.FromPeer, p.FromPeer)
		setInt(&cfg.Pipe.UID, p.UID)
	}

	if e := payload.Exchange; e != nil {
		setInt(&cfg.Exchange.SettleDelayUS, e.SettleDelayUS)
		setInt(&cfg.Exchange.TimeoutMS, e.TimeoutMS)
		setInt(&cfg.Exchange.ProbeAttempts, e.ProbeAttempts)
		setInt(&cfg.Exchange.ProbeBackoffMS, e.ProbeBackoffMS)
		// The marker is matched verbatim, so it is not trimmed.
		if e.FailureMarker != nil {
			cfg.Exchange.FailureMarker = *e.FailureMarker
		}
	}

	if b := payload.Bridge; b != nil {
		setString(&cfg.Bridge.Socket, b.Socket)
		setString(&cfg.Bridge.MetricsAddr, b.MetricsAddr)
	}

	if l := payload.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

// locateDecodeError prefixes syntax and type errors with a line/column.
func locateDecodeError(content string, err error) error {
	var offset int64 = -1

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	if offset < 0 {
		return err
	}

	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := min(int(offset), len(content))
	prefix := content[:max(limit-1, 0)]
	line := strings.Count(prefix, "\n") + 1
	col := len(prefix) - strings.LastIndex(prefix, "\n")
	return line, col
}
