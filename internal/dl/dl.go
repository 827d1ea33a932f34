// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dl provides uniform access to the platform dynamic loader.
package dl

// Lib is an open handle to a dynamically loaded library. The zero Lib is
// not valid; a Lib is obtained from Open and owned by a single caller,
// which must call Close exactly once.
type Lib struct {
	handle uintptr
	name   string
}

// Name returns the path the library was opened from.
func (l *Lib) Name() string { return l.name }
