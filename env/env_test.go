// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package env

import (
	"runtime"
	"runtime/cgo"
	"strings"
	"testing"
	"unsafe"

	"github.com/kortschak/onload"
)

// cstr returns a pointer to a NUL-terminated copy of s kept alive for
// the duration of the test.
func cstr(t *testing.T, s string) uintptr {
	t.Helper()
	b := append([]byte(s), 0)
	t.Cleanup(func() { runtime.KeepAlive(b) })
	return uintptr(unsafe.Pointer(&b[0]))
}

// cout returns a heap-resident out-parameter slot kept alive for the
// duration of the test. The slot must not be stack allocated: callees
// reached through a uintptr argument write to its pre-call address, so
// a stack move during the call would orphan the write.
func cout(t *testing.T) *uintptr {
	t.Helper()
	p := new(uintptr)
	t.Cleanup(func() { runtime.KeepAlive(p) })
	return p
}

func TestInitContextFunctions(t *testing.T) {
	slots := map[string]*uintptr{
		SlotAPISetLastError: new(uintptr),
		SlotAllocWorkspace:  new(uintptr),
	}
	InitContextFunctions(func(name string) uintptr {
		p, ok := slots[name]
		if !ok {
			return 0
		}
		return uintptr(unsafe.Pointer(p))
	})
	for _, cf := range contextFuncs {
		slot, ok := slots[cf.slot]
		if !ok {
			continue
		}
		if *slot != cf.addr {
			t.Errorf("slot %s not filled: got %#x want %#x", cf.slot, *slot, cf.addr)
		}
	}
}

func TestSetLastError(t *testing.T) {
	const msg = "artifact failure detail"
	ret := apiSetLastError(cstr(t, msg))
	if ret != 0 {
		t.Errorf("unexpected status: %d", ret)
	}
	if got := onload.TakeLastError(); got != msg {
		t.Errorf("unexpected last error: %q", got)
	}
}

// envModule is an in-memory module for environment resolution tests.
type envModule struct {
	funcs map[string]uintptr
}

func (m *envModule) TypeKey() string { return "env_test" }

func (m *envModule) GetFunction(name string) (onload.Func, bool) {
	addr, ok := m.funcs[name]
	if !ok {
		return onload.Func{}, false
	}
	return onload.NewFunc(addr, m), true
}

func (m *envModule) Imports() []onload.Module { return nil }

func (m *envModule) Close() error { return nil }

func TestGetFuncFromEnvModule(t *testing.T) {
	mod := &envModule{funcs: map[string]uintptr{"kernel_0": 0xfeed0}}
	h := cgo.NewHandle(mod)
	defer h.Delete()

	out := cout(t)
	ret := backendGetFuncFromEnv(uintptr(h), cstr(t, "kernel_0"), uintptr(unsafe.Pointer(out)))
	if ret != 0 {
		t.Fatalf("unexpected status: %#x (%s)", ret, onload.TakeLastError())
	}
	fn, ok := funcForHandle(*out)
	if !ok {
		t.Fatal("missing exported function handle")
	}
	want, _ := mod.GetFunction("kernel_0")
	if fn != want {
		t.Errorf("unexpected function: %#v != %#v", fn, want)
	}
}

func TestGetFuncFromEnvGlobal(t *testing.T) {
	want := onload.NewFunc(0xfade0, nil)
	onload.RegisterFunc("test.env.global", want)

	out := cout(t)
	ret := backendGetFuncFromEnv(0, cstr(t, "test.env.global"), uintptr(unsafe.Pointer(out)))
	if ret != 0 {
		t.Fatalf("unexpected status: %#x (%s)", ret, onload.TakeLastError())
	}
	fn, ok := funcForHandle(*out)
	if !ok {
		t.Fatal("missing exported function handle")
	}
	if fn != want {
		t.Errorf("unexpected function: %#v != %#v", fn, want)
	}
}

func TestGetFuncFromEnvMissing(t *testing.T) {
	out := cout(t)
	ret := backendGetFuncFromEnv(0, cstr(t, "test.env.missing"), uintptr(unsafe.Pointer(out)))
	if ret != fail {
		t.Fatalf("unexpected status: %#x", ret)
	}
	msg := onload.TakeLastError()
	if !strings.Contains(msg, "test.env.missing") {
		t.Errorf("unexpected error text: %q", msg)
	}
}

func TestFuncCallInvalidHandle(t *testing.T) {
	ret := funcCall(0, 0, 0, 0)
	if ret != fail {
		t.Errorf("unexpected status: %#x", ret)
	}
	onload.TakeLastError()
}

func TestWorkspace(t *testing.T) {
	p := backendAllocWorkspace(32)
	if p == 0 {
		t.Fatal("failed to allocate workspace")
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(p)), 32)
	for i := range buf {
		buf[i] = byte(i)
	}
	ret := backendFreeWorkspace(p)
	if ret != 0 {
		t.Errorf("unexpected status freeing workspace: %#x", ret)
	}
	ret = backendFreeWorkspace(p)
	if ret != fail {
		t.Errorf("unexpected status freeing freed workspace: %#x", ret)
	}
	onload.TakeLastError()
}

func TestWorkspaceZeroSize(t *testing.T) {
	p := backendAllocWorkspace(0)
	if p == 0 {
		t.Fatal("failed to allocate zero-size workspace")
	}
	ret := backendFreeWorkspace(p)
	if ret != 0 {
		t.Errorf("unexpected status freeing workspace: %#x", ret)
	}
}
