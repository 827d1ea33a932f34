// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package env implements the context functions giving loaded module code
// access to host services.
//
// A generated artifact may export pointer-sized slots with the Slot*
// names below. During module initialisation the loader passes a symbol
// lookup callback to InitContextFunctions, which writes a C-callable host
// function address into each slot that is present. Absent slots are
// skipped; an artifact only carries the slots for services it uses.
package env

import (
	"fmt"
	"runtime"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/kortschak/onload"
)

// Context function slots exported by generated artifacts. The slot names
// are part of the artifact ABI and must match the code generator bit for
// bit.
const (
	SlotAPISetLastError = "__OnloadAPISetLastError"
	SlotFuncCall        = "__OnloadFuncCall"
	SlotGetFuncFromEnv  = "__OnloadBackendGetFuncFromEnv"
	SlotAllocWorkspace  = "__OnloadBackendAllocWorkspace"
	SlotFreeWorkspace   = "__OnloadBackendFreeWorkspace"
)

// contextFuncs is the fixed table of context function slots and the host
// callbacks stored into them. Callbacks are C-callable addresses created
// once at package initialisation.
var contextFuncs = []struct {
	slot string
	addr uintptr
}{
	{SlotAPISetLastError, purego.NewCallback(apiSetLastError)},
	{SlotFuncCall, purego.NewCallback(funcCall)},
	{SlotGetFuncFromEnv, purego.NewCallback(backendGetFuncFromEnv)},
	{SlotAllocWorkspace, purego.NewCallback(backendAllocWorkspace)},
	{SlotFreeWorkspace, purego.NewCallback(backendFreeWorkspace)},
}

// InitContextFunctions writes the host context function addresses into
// the slots resolvable through lookup. lookup reports a missing slot by
// returning zero; missing slots are not an error.
func InitContextFunctions(lookup func(name string) uintptr) {
	for _, cf := range contextFuncs {
		slot := lookup(cf.slot)
		if slot == 0 {
			continue
		}
		*(*uintptr)(unsafe.Pointer(slot)) = cf.addr
	}
}

const fail = ^uintptr(0) // -1 as the C int status return.

// apiSetLastError records the NUL-terminated message at msg as the
// host's last packed-call error.
func apiSetLastError(msg uintptr) uintptr {
	onload.SetLastError(goString(msg))
	return 0
}

// backendGetFuncFromEnv resolves the NUL-terminated name at pname for
// the module identified by ctx, falling back through the module's
// imports and then the global function registry, and stores a function
// handle at out.
func backendGetFuncFromEnv(ctx, pname, out uintptr) uintptr {
	name := goString(pname)
	var (
		fn onload.Func
		ok bool
	)
	if ctx != 0 {
		m, valid := cgo.Handle(ctx).Value().(onload.Module)
		if !valid {
			onload.SetLastError("invalid module context")
			return fail
		}
		fn, ok = onload.GetFunction(m, name, true)
	}
	if !ok {
		fn, ok = onload.FuncByName(name)
	}
	if !ok {
		onload.SetLastError(fmt.Sprintf("cannot find function %s in environment", name))
		return fail
	}
	*(*uintptr)(unsafe.Pointer(out)) = exportFunc(fn)
	return 0
}

// funcCall invokes the function handle h with num packed arguments.
func funcCall(h, values, codes, num uintptr) uintptr {
	fn, ok := funcForHandle(h)
	if !ok {
		onload.SetLastError("invalid function handle")
		return fail
	}
	var (
		vs []onload.Value
		cs []onload.Code
	)
	if num != 0 {
		vs = unsafe.Slice((*onload.Value)(unsafe.Pointer(values)), num)
		cs = unsafe.Slice((*onload.Code)(unsafe.Pointer(codes)), num)
	}
	err := fn.Call(vs, cs)
	if err != nil {
		onload.SetLastError(err.Error())
		return fail
	}
	return 0
}

var funcs struct {
	mu   sync.Mutex
	next uintptr
	m    map[uintptr]onload.Func
}

// exportFunc stores fn in the function handle table, returning its
// handle. Handles remain valid for the life of the process; the table is
// written only through context function calls, which are rare.
func exportFunc(fn onload.Func) uintptr {
	funcs.mu.Lock()
	defer funcs.mu.Unlock()
	if funcs.m == nil {
		funcs.m = make(map[uintptr]onload.Func)
	}
	funcs.next++
	funcs.m[funcs.next] = fn
	return funcs.next
}

func funcForHandle(h uintptr) (onload.Func, bool) {
	funcs.mu.Lock()
	defer funcs.mu.Unlock()
	fn, ok := funcs.m[h]
	return fn, ok
}

// workspace is a pinned allocation handed to loaded code.
type workspace struct {
	buf []byte
	pin runtime.Pinner
}

var workspaces struct {
	mu sync.Mutex
	m  map[uintptr]*workspace
}

// backendAllocWorkspace returns a pointer to nbytes of scratch memory
// usable by loaded code until freed with backendFreeWorkspace.
func backendAllocWorkspace(nbytes uintptr) uintptr {
	if nbytes == 0 {
		nbytes = 1
	}
	ws := &workspace{buf: make([]byte, nbytes)}
	ws.pin.Pin(&ws.buf[0])
	p := uintptr(unsafe.Pointer(&ws.buf[0]))
	workspaces.mu.Lock()
	if workspaces.m == nil {
		workspaces.m = make(map[uintptr]*workspace)
	}
	workspaces.m[p] = ws
	workspaces.mu.Unlock()
	return p
}

// backendFreeWorkspace releases the workspace at p.
func backendFreeWorkspace(p uintptr) uintptr {
	workspaces.mu.Lock()
	ws, ok := workspaces.m[p]
	delete(workspaces.m, p)
	workspaces.mu.Unlock()
	if !ok {
		onload.SetLastError("free of unknown workspace")
		return fail
	}
	ws.pin.Unpin()
	return 0
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
