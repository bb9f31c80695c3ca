package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix scopes environment overrides. AUDPIPE_EXCHANGE__TIMEOUT_MS
// overrides exchange.timeout_ms.
const EnvPrefix = "AUDPIPE_"

func isYAMLPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

// parseYAMLFile decodes a YAML config file over base. Keys match the JSONC form.
func parseYAMLFile(path string, base Config) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Config{}, err
	}

	cfg := base
	if err := decodeLayer(k, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers AUDPIPE_* variables over cfg and reports the keys it used.
func applyEnv(cfg *Config) ([]string, error) {
	k := koanf.New(".")
	provider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("read environment overrides: %w", err)
	}

	keys := k.Keys()
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	if err := decodeLayer(k, cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	return keys, nil
}

// envKey maps AUDPIPE_SECTION__FIELD to section.field. Variables without a
// section separator are not config keys.
func envKey(name string) string {
	trimmed := strings.TrimPrefix(name, EnvPrefix)
	section, field, ok := strings.Cut(trimmed, "__")
	if !ok || section == "" || field == "" {
		return ""
	}
	return strings.ToLower(section) + "." + strings.ToLower(field)
}

func decodeLayer(k *koanf.Koanf, cfg *Config) error {
	var payload fileConfig
	err := k.UnmarshalWithConf("", &payload, koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		},
	})
	if err != nil {
		return err
	}
	payload.applyTo(cfg)
	return nil
}

func envOverridesPresent() bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, EnvPrefix) {
			return true
		}
	}
	return false
}
