// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build darwin || freebsd || linux

package dl

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// Open opens the dynamic library at path. Binding is lazy and process-local
// so that symbols from independently compiled artifacts loaded into the same
// process do not collide. See man 3 dlopen for details.
func Open(path string) (*Lib, error) {
	h, err := purego.Dlopen(path, purego.RTLD_LAZY|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	return &Lib{handle: h, name: path}, nil
}

// Symbol returns the address of the named symbol, or zero if the symbol is
// not exported by the library. A missing symbol is not an error.
func (l *Lib) Symbol(name string) uintptr {
	s, err := purego.Dlsym(l.handle, name)
	if err != nil {
		return 0
	}
	return s
}

// Close unloads the library. Symbol addresses must not be used after Close
// has been called.
func (l *Lib) Close() error {
	err := purego.Dlclose(l.handle)
	l.handle = 0
	if err != nil {
		return fmt.Errorf("error closing %s: %w", l.name, err)
	}
	return nil
}
