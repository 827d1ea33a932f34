// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xdg provides functions for handling cross-platform
// configuration and runtime directories.
package xdg

import (
	"os"
	"path/filepath"
	"syscall"
)

// Config returns the path to the named file in the config directory
// obtained from ConfigHome. If no file is found Config returns ENOENT.
func Config(name string) (string, error) {
	return find(name, key_XDG_CONFIG_HOME, def_XDG_CONFIG_HOME, _HOME)
}

// ConfigHome returns the path corresponding to XDG_CONFIG_HOME.
func ConfigHome() (string, bool) {
	return envOrDefault(key_XDG_CONFIG_HOME, def_XDG_CONFIG_HOME, _HOME)
}

// Runtime returns the path to the named file in the runtime directory
// obtained from RuntimeDir. If no file is found Runtime returns ENOENT.
func Runtime(name string) (string, error) {
	return find(name, key_XDG_RUNTIME_DIR, def_XDG_RUNTIME_DIR, _HOME)
}

// RuntimeDir returns the path corresponding to XDG_RUNTIME_DIR.
func RuntimeDir() (string, bool) {
	return envOrDefault(key_XDG_RUNTIME_DIR, def_XDG_RUNTIME_DIR, _HOME)
}

// find returns the path to the named file under the directory in the
// keyed environment variable or its default, prepending home where the
// default is relative.
func find(name, key, def, home string) (string, error) {
	base, ok := envOrDefault(key, def, home)
	if !ok {
		return "", syscall.ENOENT
	}
	path := filepath.Join(base, name)
	_, err := os.Stat(path)
	if err != nil {
		return "", syscall.ENOENT
	}
	return path, nil
}

// envOrDefault returns the path corresponding to the provided key and
// default. If home is not empty, a relative default is returned relative
// to the home environment variable's value.
func envOrDefault(key, def, home string) (string, bool) {
	if key != "" {
		val, ok := os.LookupEnv(key)
		if ok {
			return val, true
		}
	}
	if def == "" {
		return "", false
	}
	if home == "" || filepath.IsAbs(def) {
		return def, true
	}
	base, ok := os.LookupEnv(home)
	if !ok {
		return "", false
	}
	return filepath.Join(base, def), true
}
