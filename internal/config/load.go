package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
	// EnvKeys lists config keys overridden from AUDPIPE_* variables.
	EnvKeys []string
}

// Load resolves, reads, parses, and validates the runtime configuration.
// JSONC is the default format; a .yaml or .yml path is read as YAML.
// Environment overrides apply last.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded, err := loadFile(resolvedPath)
	if err != nil {
		return Loaded{}, err
	}

	if !envOverridesPresent() {
		return loaded, nil
	}

	keys, err := applyEnv(&loaded.Config)
	if err != nil {
		return Loaded{}, err
	}
	if len(keys) == 0 {
		return loaded, nil
	}

	warnings, err := Validate(loaded.Config)
	if err != nil {
		return Loaded{}, fmt.Errorf("environment overrides: %w", err)
	}
	loaded.EnvKeys = keys
	loaded.Warnings = append(loaded.Warnings, Warning{
		Message: fmt.Sprintf("environment overrides applied: %s", strings.Join(keys, ", ")),
	})
	loaded.Warnings = appendMissing(loaded.Warnings, warnings)
	return loaded, nil
}

func loadFile(resolvedPath string) (Loaded, error) {
	base := Default()

	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Loaded{
				Path:   resolvedPath,
				Config: base,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}},
				Exists: false,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	var (
		cfg      Config
		warnings []Warning
	)
	if isYAMLPath(resolvedPath) {
		cfg, err = parseYAMLFile(resolvedPath, base)
		if err == nil {
			warnings, err = Validate(cfg)
		}
	} else {
		cfg, warnings, err = Parse(string(content), base)
	}
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

func appendMissing(existing []Warning, extra []Warning) []Warning {
	for _, w := range extra {
		seen := false
		for _, e := range existing {
			if e.Message == w.Message {
				seen = true
				break
			}
		}
		if !seen {
			existing = append(existing, w)
		}
	}
	return existing
}
