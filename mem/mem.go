// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mem provides modules holding named data blocks embedded in an
// artifact's import blob, such as generated metadata. A mem module
// exports no functions; host function lookups fall through it to later
// imports.
package mem

import (
	"bytes"
	"fmt"
	"io"

	"github.com/kortschak/onload"
	"github.com/kortschak/onload/blob"
)

func init() {
	onload.RegisterBinaryLoader("mem", Load)
}

// Module is an embedded data module.
type Module struct {
	names []string
	data  map[string][]byte
}

var _ onload.Module = (*Module)(nil)

// Load reads a mem module payload: a count of entries, each a
// length-prefixed name followed by a length-prefixed data block.
func Load(r io.Reader) (onload.Module, error) {
	n, err := blob.ReadUint64(r)
	if err != nil {
		return nil, fmt.Errorf("reading entry count: %w", err)
	}
	m := &Module{data: make(map[string][]byte, n)}
	for i := uint64(0); i < n; i++ {
		name, err := blob.ReadString(r)
		if err != nil {
			return nil, fmt.Errorf("reading name of entry %d: %w", i, err)
		}
		data, err := blob.ReadString(r)
		if err != nil {
			return nil, fmt.Errorf("reading data of entry %q: %w", name, err)
		}
		m.names = append(m.names, name)
		m.data[name] = []byte(data)
	}
	return m, nil
}

// Encode returns the payload for a mem module holding the given entries,
// in iteration order of names.
func Encode(names []string, data map[string][]byte) []byte {
	var buf bytes.Buffer
	blob.WriteUint64(&buf, uint64(len(names)))
	for _, name := range names {
		blob.WriteString(&buf, name)
		blob.WriteString(&buf, string(data[name]))
	}
	return buf.Bytes()
}

// TypeKey returns "mem".
func (m *Module) TypeKey() string { return "mem" }

// GetFunction always reports absence; mem modules carry data, not code.
func (m *Module) GetFunction(_ string) (onload.Func, bool) {
	return onload.Func{}, false
}

// Imports returns nil; mem modules have no sub-modules.
func (m *Module) Imports() []onload.Module { return nil }

// Close is a no-op; mem modules hold no OS resources.
func (m *Module) Close() error { return nil }

// Data returns the named data block.
func (m *Module) Data(name string) ([]byte, bool) {
	b, ok := m.data[name]
	return b, ok
}

// Names returns the entry names in blob order.
func (m *Module) Names() []string { return m.names }
