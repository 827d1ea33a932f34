// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package onload

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Code is a packed-call argument type code.
type Code int32

const (
	KInt    Code = 0 // signed integer in a Value
	KUint   Code = 1 // unsigned integer in a Value
	KFloat  Code = 2 // float64 bits in a Value
	KHandle Code = 3 // opaque host handle in a Value
	KNull   Code = 4 // no value
)

// Value is one 8-byte packed-call argument slot. The interpretation of the
// slot is given by the Code at the same index in the call's code table.
type Value uint64

// Int64Value returns a Value holding v, paired with KInt.
func Int64Value(v int64) Value { return Value(uint64(v)) }

// Uint64Value returns a Value holding v, paired with KUint.
func Uint64Value(v uint64) Value { return Value(v) }

// Float64Value returns a Value holding the bits of v, paired with KFloat.
func Float64Value(v float64) Value { return Value(math.Float64bits(v)) }

// HandleValue returns a Value holding h, paired with KHandle.
func HandleValue(h uintptr) Value { return Value(h) }

// Func is the uniform callable wrapping a function resolved from a module.
// The zero Func is absent. Func values are comparable; two Funcs are equal
// if they resolve the same entry of the same module.
type Func struct {
	addr  uintptr
	owner Module
}

// NewFunc wraps the raw resolved symbol address addr as a callable owned by
// owner. This is the only point at which a raw address enters the callable
// abstraction; the address is not recoverable from the returned Func.
// The owner is kept reachable for as long as calls through the Func are in
// flight.
func NewFunc(addr uintptr, owner Module) Func {
	return Func{addr: addr, owner: owner}
}

// IsZero reports whether f is the absent Func.
func (f Func) IsZero() bool { return f.addr == 0 }

var errAbsentFunc = errors.New("call of absent function")

// Call invokes f with the packed calling convention. The values and codes
// slices must have equal length. A nonzero status from the callee is
// reported as an error carrying the module's last error string.
func (f Func) Call(values []Value, codes []Code) error {
	if f.addr == 0 {
		return errAbsentFunc
	}
	if len(values) != len(codes) {
		return fmt.Errorf("mismatched argument lengths: %d != %d", len(values), len(codes))
	}
	var pv, pc uintptr
	if len(values) != 0 {
		pv = uintptr(unsafe.Pointer(&values[0]))
		pc = uintptr(unsafe.Pointer(&codes[0]))
	}
	r, _, _ := purego.SyscallN(f.addr, pv, pc, uintptr(len(values)))
	runtime.KeepAlive(values)
	runtime.KeepAlive(codes)
	runtime.KeepAlive(f.owner)
	if int32(r) != 0 {
		msg := TakeLastError()
		if msg == "" {
			msg = "unspecified failure"
		}
		return fmt.Errorf("packed call failed: %s", msg)
	}
	return nil
}
