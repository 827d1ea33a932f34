// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var loadTests = []struct {
	name    string
	text    string
	want    Config
	wantErr bool
}{
	{
		name: "empty",
		text: "",
		want: Config{},
	},
	{
		name: "complete",
		text: `
log_level = "debug"
log_add_source = true
module_dir = "/opt/onload/modules"
debounce = "25ms"
`,
		want: Config{
			LogLevel:  func() *slog.Level { l := slog.LevelDebug; return &l }(),
			AddSource: func() *bool { t := true; return &t }(),
			ModuleDir: "/opt/onload/modules",
			Debounce:  Duration{25 * time.Millisecond},
		},
	},
	{
		name:    "invalid_level",
		text:    `log_level = "loud"`,
		wantErr: true,
	},
	{
		name:    "invalid_debounce",
		text:    `debounce = "sometime"`,
		wantErr: true,
	},
	{
		name:    "invalid_type",
		text:    `module_dir = 42`,
		wantErr: true,
	},
	{
		name:    "invalid_syntax",
		text:    `module_dir = `,
		wantErr: true,
	},
}

func TestLoad(t *testing.T) {
	for _, test := range loadTests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			err := os.WriteFile(path, []byte(test.text), 0o600)
			if err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			got, err := Load(path)
			if (err != nil) != test.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if test.wantErr {
				return
			}
			if got.ModuleDir != test.want.ModuleDir {
				t.Errorf("unexpected module_dir: got %q want %q", got.ModuleDir, test.want.ModuleDir)
			}
			if got.Debounce != test.want.Debounce {
				t.Errorf("unexpected debounce: got %v want %v", got.Debounce, test.want.Debounce)
			}
			if (got.LogLevel == nil) != (test.want.LogLevel == nil) {
				t.Fatalf("unexpected log_level presence: %v", got.LogLevel)
			}
			if got.LogLevel != nil && *got.LogLevel != *test.want.LogLevel {
				t.Errorf("unexpected log_level: got %v want %v", *got.LogLevel, *test.want.LogLevel)
			}
			if (got.AddSource == nil) != (test.want.AddSource == nil) {
				t.Fatalf("unexpected log_add_source presence: %v", got.AddSource)
			}
			if got.AddSource != nil && *got.AddSource != *test.want.AddSource {
				t.Errorf("unexpected log_add_source: got %v want %v", *got.AddSource, *test.want.AddSource)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does_not_exist.toml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}
