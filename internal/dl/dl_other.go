// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !(darwin || freebsd || linux || windows)

package dl

import "errors"

var errNotImplemented = errors.New("not implemented")

// Open is not implemented on this platform.
func Open(_ string) (*Lib, error) {
	return nil, errNotImplemented
}

// Symbol is not implemented on this platform.
func (l *Lib) Symbol(_ string) uintptr {
	return 0
}

// Close is not implemented on this platform.
func (l *Lib) Close() error {
	return errNotImplemented
}
