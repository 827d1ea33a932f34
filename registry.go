// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package onload

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
)

// LoadFunc is a module loading strategy taking a path to an artifact.
type LoadFunc func(path string) (Module, error)

// BinaryLoadFunc is a module loading strategy taking a payload stream from
// an import blob. The function must consume exactly its own payload.
type BinaryLoadFunc func(r io.Reader) (Module, error)

var registry struct {
	mu      sync.RWMutex
	loaders map[string]LoadFunc
	binary  map[string]BinaryLoadFunc
	funcs   map[string]Func
}

// RegisterLoader registers fn as the loader invoked by LoadFromFile for
// artifacts with the named extension. Registration happens once, at start
// up; registering a duplicate name panics.
func RegisterLoader(ext string, fn LoadFunc) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.loaders == nil {
		registry.loaders = make(map[string]LoadFunc)
	}
	name := "loadfile_" + ext
	if _, exists := registry.loaders[name]; exists {
		panic(fmt.Sprintf("onload: duplicate loader registration for %q", name))
	}
	registry.loaders[name] = fn
}

// RegisterBinaryLoader registers fn as the loader invoked during import
// blob decoding for sub-modules with the given type key. Registering a
// duplicate type key panics.
func RegisterBinaryLoader(typeKey string, fn BinaryLoadFunc) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.binary == nil {
		registry.binary = make(map[string]BinaryLoadFunc)
	}
	name := "loadbinary_" + typeKey
	if _, exists := registry.binary[name]; exists {
		panic(fmt.Sprintf("onload: duplicate loader registration for %q", name))
	}
	registry.binary[name] = fn
}

// BinaryLoader returns the registered loader for the given type key.
func BinaryLoader(typeKey string) (BinaryLoadFunc, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	fn, ok := registry.binary["loadbinary_"+typeKey]
	return fn, ok
}

// LoadFromFile loads the module artifact at path using the loader
// registered for the path's extension. Each call performs an independent
// load; loading one path twice yields two independent modules.
func LoadFromFile(path string) (Module, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	registry.mu.RLock()
	fn, ok := registry.loaders["loadfile_"+ext]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no loader for module file %s with extension %q", path, ext)
	}
	return fn(path)
}

// RegisterFunc publishes fn under name in the global function registry,
// making it resolvable by loaded code through the get-function-from-
// environment context function. Registering a duplicate name panics.
func RegisterFunc(name string, fn Func) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.funcs == nil {
		registry.funcs = make(map[string]Func)
	}
	if _, exists := registry.funcs[name]; exists {
		panic(fmt.Sprintf("onload: duplicate function registration for %q", name))
	}
	registry.funcs[name] = fn
}

// FuncByName returns the global function registered under name.
func FuncByName(name string) (Func, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	fn, ok := registry.funcs[name]
	return fn, ok
}
