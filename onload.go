// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package onload provides the host-side model for modules loaded from
// separately compiled native artifacts.
//
// A Module is an opaque handle to loaded code. Modules are produced by
// loaders registered with RegisterLoader and RegisterBinaryLoader; the
// shared-library loader in the dso package registers itself for the
// platform artifact extensions. Functions resolved from a module are
// returned as Func values, the uniform packed-function callable.
package onload

import (
	"sync"
)

// Module is a handle to loaded module code.
type Module interface {
	// TypeKey identifies the kind of module, for example "so" for
	// a module loaded from a shared library.
	TypeKey() string

	// GetFunction resolves the named function in the module. The
	// reserved name ModuleMain resolves the module's entry point.
	// Absence of the name is an ordinary result, not an error.
	GetFunction(name string) (Func, bool)

	// Imports returns the module's sub-modules in load order.
	Imports() []Module

	// Close releases the module's resources. Functions resolved from
	// the module must not be called after Close.
	Close() error
}

// ModuleMain is the reserved function name resolving a module's entry
// point. Lookup of ModuleMain is indirected through the SymbolModuleMain
// symbol of the module's artifact.
const ModuleMain = "__onload_main__"

// Well-known symbol names shared with the artifact code generator. These
// must match the generated artifacts bit for bit.
const (
	// SymbolModuleMain names a NUL-terminated string holding the name
	// of the artifact's true entry symbol.
	SymbolModuleMain = "__onload_main__"

	// SymbolModuleCtx names pointer-sized storage that the loader fills
	// with the identity of the owning module, allowing loaded code to
	// call back into the host.
	SymbolModuleCtx = "__onload_module_ctx"

	// SymbolDevBlob names an optional embedded blob describing
	// sub-modules packed into the artifact.
	SymbolDevBlob = "__onload_dev_mblob"
)

// GetFunction resolves name in m. If the name is absent from m and
// queryImports is true, m's imports are searched depth-first in import
// order. Absence from the whole tree is an ordinary result.
func GetFunction(m Module, name string, queryImports bool) (Func, bool) {
	fn, ok := m.GetFunction(name)
	if ok {
		return fn, true
	}
	if !queryImports {
		return Func{}, false
	}
	for _, imp := range m.Imports() {
		fn, ok = GetFunction(imp, name, true)
		if ok {
			return fn, true
		}
	}
	return Func{}, false
}

var lastError struct {
	mu  sync.Mutex
	msg string
}

// SetLastError records msg as the process packed-call error. It is called
// by loaded code through the set-last-error context function and by host
// code reporting a packed-call failure.
func SetLastError(msg string) {
	lastError.mu.Lock()
	lastError.msg = msg
	lastError.mu.Unlock()
}

// TakeLastError returns the last recorded packed-call error, clearing it.
func TakeLastError() string {
	lastError.mu.Lock()
	defer lastError.mu.Unlock()
	msg := lastError.msg
	lastError.msg = ""
	return msg
}
