// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dso loads modules from dynamic shared libraries.
//
// This is the default module kind for host-side ahead-of-time compiled
// artifacts. Loading resolves the artifact through the platform dynamic
// loader, injects the host context pointer, publishes the context
// functions the artifact imports, and materialises any sub-modules
// embedded in the artifact's import blob.
package dso

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/cgo"
	"unsafe"

	"github.com/kortschak/onload"
	"github.com/kortschak/onload/blob"
	"github.com/kortschak/onload/env"
	"github.com/kortschak/onload/internal/dl"
)

func init() {
	load := func(path string) (onload.Module, error) {
		return New(path, slog.Default())
	}
	// Artifact extensions differ across platforms; the loading
	// strategy does not.
	onload.RegisterLoader("so", load)
	onload.RegisterLoader("dylib", load)
	onload.RegisterLoader("dll", load)
}

// library is the platform loader surface used by Module. It is satisfied
// by *dl.Lib.
type library interface {
	Symbol(name string) uintptr
	Close() error
}

// Module is a module loaded from a dynamic shared library. It exclusively
// owns its library handle.
type Module struct {
	path    string
	lib     library
	ctx     cgo.Handle
	imports []onload.Module
	log     *slog.Logger
}

var _ onload.Module = (*Module)(nil)

// New loads the shared library artifact at path and initialises it as a
// module. A load failure aborts construction; the returned error carries
// the path and the loader diagnostic and no resource remains held.
func New(path string, log *slog.Logger) (*Module, error) {
	lib, err := dl.Open(path)
	if err != nil {
		return nil, err
	}
	return newModule(path, lib, log)
}

// newModule initialises a module over an already opened library. On error
// the library is unloaded before returning; a failed initialisation never
// leaves a usable partial module.
func newModule(path string, lib library, log *slog.Logger) (*Module, error) {
	m := &Module{path: path, lib: lib,
		log: log.With(slog.String("component", "dso"), slog.String("path", path)),
	}
	if slot := lib.Symbol(onload.SymbolModuleCtx); slot != 0 {
		m.ctx = cgo.NewHandle(m)
		*(*uintptr)(unsafe.Pointer(slot)) = uintptr(m.ctx)
		m.log.LogAttrs(context.Background(), slog.LevelDebug, "injected module context")
	}
	env.InitContextFunctions(m.symbol)
	if p := lib.Symbol(onload.SymbolDevBlob); p != 0 {
		imports, err := blob.Decode(p)
		if err != nil {
			m.unload()
			return nil, fmt.Errorf("decoding import blob of %s: %w", path, err)
		}
		m.imports = imports
		m.log.LogAttrs(context.Background(), slog.LevelDebug, "decoded import blob", slog.Int("imports", len(imports)))
	}
	return m, nil
}

// symbol resolves name against the library. A zero address means the
// symbol is absent.
func (m *Module) symbol(name string) uintptr {
	return m.lib.Symbol(name)
}

// TypeKey returns "dso".
func (m *Module) TypeKey() string { return "dso" }

// GetFunction resolves the named function in the library. Resolution is
// performed against the library on every call; addresses are not cached.
// An absent name is reported with a false return, never an error; the
// caller owns any fall-back policy such as searching the import list.
func (m *Module) GetFunction(name string) (onload.Func, bool) {
	var addr uintptr
	if name == onload.ModuleMain {
		addr = m.mainEntry()
	} else {
		addr = m.symbol(name)
	}
	if addr == 0 {
		return onload.Func{}, false
	}
	return onload.NewFunc(addr, m), true
}

// mainEntry resolves the module entry point in two stages: the value of
// the main indirection symbol is read as a NUL-terminated symbol name,
// and that name is then resolved against the library. Absence at either
// stage yields zero.
func (m *Module) mainEntry() uintptr {
	p := m.symbol(onload.SymbolModuleMain)
	if p == 0 {
		return 0
	}
	return m.symbol(goString(p))
}

// Imports returns the sub-modules materialised from the artifact's
// import blob, in blob order.
func (m *Module) Imports() []onload.Module { return m.imports }

// Close releases the module's imports and unloads the library. Close is
// idempotent, and a no-op for a module whose initialisation failed before
// the library was loaded.
func (m *Module) Close() error {
	if m.lib == nil {
		return nil
	}
	var errs []error
	for _, imp := range m.imports {
		err := imp.Close()
		if err != nil {
			errs = append(errs, err)
		}
	}
	m.imports = nil
	err := m.unload()
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// unload releases the context handle and the library handle. The caller
// must ensure the library is currently loaded.
func (m *Module) unload() error {
	if m.ctx != 0 {
		m.ctx.Delete()
		m.ctx = 0
	}
	err := m.lib.Close()
	m.lib = nil
	return err
}

// goString returns the NUL-terminated string at p.
func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	var n int
	for *(*byte)(unsafe.Pointer(p + uintptr(n))) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}
