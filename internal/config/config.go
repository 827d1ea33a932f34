// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides onload command configuration loading and
// validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the onload command configuration.
type Config struct {
	LogLevel  *slog.Level `toml:"log_level"`
	AddSource *bool       `toml:"log_add_source"`
	// ModuleDir is the directory holding module artifacts
	// followed in watch mode.
	ModuleDir string `toml:"module_dir"`
	// Debounce is how long to wait after an artifact write
	// event before loading the artifact.
	Debounce Duration `toml:"debounce"`
}

// Duration is a time.Duration unmarshalable from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// schema is the CUE schema for a valid configuration.
const schema = `
{
	log_level?:      _#log_level
	log_add_source?: bool
	module_dir?:     string
	debounce?:       _#duration
}

_#log_level: =~"(?i)^(?:debug|info|warn|error)$"
_#duration:  =~"^-?(?:[0-9]+(?:\\.[0-9]*)?(?:ns|us|µs|ms|s|m|h))+$"
`

// Load reads, vets and decodes the configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// Vet the raw decoding so the schema sees the concrete TOML
	// values rather than their Go representations.
	var raw map[string]any
	err = toml.Unmarshal(b, &raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	paths, err := Validate(schema, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s at %v: %w", path, paths, err)
	}
	var cfg Config
	err = toml.Unmarshal(b, &cfg)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &cfg, nil
}
