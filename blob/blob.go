// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package blob implements the import blob format embedded in module
// artifacts by the code generator.
//
// A blob is a 64-bit little-endian byte count followed by that many bytes
// of stream. The stream is a 64-bit module count, then for each module a
// length-prefixed type key string followed by a payload owned by the
// loader registered for that type key. The framing here is a shared
// contract across all module kinds; payload contents are not interpreted
// by this package.
package blob

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unsafe"

	"github.com/kortschak/onload"
)

var errNilBlob = errors.New("nil import blob")

// Decode materialises the modules described by the import blob stored at
// address p in a loaded artifact. Modules are returned in the order the
// blob describes. If any module fails to load, previously materialised
// modules are closed and the error is returned.
func Decode(p uintptr) ([]onload.Module, error) {
	if p == 0 {
		return nil, errNilBlob
	}
	n := binary.LittleEndian.Uint64(unsafe.Slice((*byte)(unsafe.Pointer(p)), 8))
	data := unsafe.Slice((*byte)(unsafe.Pointer(p+8)), n)
	return DecodeBytes(data)
}

// DecodeBytes is Decode operating on an already framed byte stream.
func DecodeBytes(data []byte) ([]onload.Module, error) {
	r := bytes.NewReader(data)
	n, err := ReadUint64(r)
	if err != nil {
		return nil, fmt.Errorf("reading module count: %w", err)
	}
	var mods []onload.Module
	for i := uint64(0); i < n; i++ {
		typeKey, err := ReadString(r)
		if err != nil {
			closeAll(mods)
			return nil, fmt.Errorf("reading type key of module %d: %w", i, err)
		}
		fn, ok := onload.BinaryLoader(typeKey)
		if !ok {
			closeAll(mods)
			return nil, fmt.Errorf("no binary loader for module type %q", typeKey)
		}
		m, err := fn(r)
		if err != nil {
			closeAll(mods)
			return nil, fmt.Errorf("loading module %d of type %q: %w", i, typeKey, err)
		}
		mods = append(mods, m)
	}
	return mods, nil
}

func closeAll(mods []onload.Module) {
	for _, m := range mods {
		m.Close()
	}
}

// ReadUint64 reads a little-endian 64-bit count from r.
func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	_, err := io.ReadFull(r, buf[:])
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadString reads a length-prefixed string from r.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadUint64(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	_, err = io.ReadFull(r, buf)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// A Builder assembles an import blob. The zero value is ready to use.
// Builder produces the same framing Decode consumes; it is shared with
// the code generator and used to construct test artifacts.
type Builder struct {
	n   uint64
	buf bytes.Buffer
}

// Append adds a module of the given type key with the given payload to
// the blob.
func (b *Builder) Append(typeKey string, payload []byte) {
	b.n++
	writeString(&b.buf, typeKey)
	b.buf.Write(payload)
}

// Bytes returns the framed blob, including the leading byte count, as it
// is laid out at the blob symbol of an artifact.
func (b *Builder) Bytes() []byte {
	var stream bytes.Buffer
	writeUint64(&stream, b.n)
	stream.Write(b.buf.Bytes())
	var blob bytes.Buffer
	writeUint64(&blob, uint64(stream.Len()))
	blob.Write(stream.Bytes())
	return blob.Bytes()
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint64(buf, uint64(len(s)))
	buf.WriteString(s)
}

// WriteString appends a length-prefixed string to buf. It is provided for
// binary loaders' payload encoders.
func WriteString(buf *bytes.Buffer, s string) {
	writeString(buf, s)
}

// WriteUint64 appends a little-endian 64-bit count to buf. It is provided
// for binary loaders' payload encoders.
func WriteUint64(buf *bytes.Buffer, v uint64) {
	writeUint64(buf, v)
}
