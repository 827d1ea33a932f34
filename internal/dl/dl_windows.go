// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package dl

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// Open opens the dynamic library at path. The UTF-16 conversion required by
// the system loader is performed by the x/sys/windows wrapper.
func Open(path string) (*Lib, error) {
	h, err := windows.LoadLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	return &Lib{handle: uintptr(h), name: path}, nil
}

// Symbol returns the address of the named symbol, or zero if the symbol is
// not exported by the library. A missing symbol is not an error.
func (l *Lib) Symbol(name string) uintptr {
	p, err := windows.GetProcAddress(windows.Handle(l.handle), name)
	if err != nil {
		return 0
	}
	return p
}

// Close unloads the library. Symbol addresses must not be used after Close
// has been called.
func (l *Lib) Close() error {
	err := windows.FreeLibrary(windows.Handle(l.handle))
	l.handle = 0
	if err != nil {
		return fmt.Errorf("error closing %s: %w", l.name, err)
	}
	return nil
}
