// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package onload_test

import (
	"io"
	"strings"
	"testing"

	"github.com/kortschak/onload"
)

// fakeModule is an in-memory module with a fixed function table.
type fakeModule struct {
	key     string
	funcs   map[string]uintptr
	imports []onload.Module
}

func (m *fakeModule) TypeKey() string { return m.key }

func (m *fakeModule) GetFunction(name string) (onload.Func, bool) {
	addr, ok := m.funcs[name]
	if !ok {
		return onload.Func{}, false
	}
	return onload.NewFunc(addr, m), true
}

func (m *fakeModule) Imports() []onload.Module { return m.imports }

func (m *fakeModule) Close() error { return nil }

func TestGetFunctionImportFallback(t *testing.T) {
	inner := &fakeModule{key: "inner", funcs: map[string]uintptr{"deep": 0xd00d0}}
	mid := &fakeModule{key: "mid", imports: []onload.Module{inner}}
	root := &fakeModule{
		key:     "root",
		funcs:   map[string]uintptr{"shallow": 0xcafe0},
		imports: []onload.Module{&fakeModule{key: "empty"}, mid},
	}

	fn, ok := onload.GetFunction(root, "shallow", false)
	if !ok || fn.IsZero() {
		t.Error("unexpected absence of directly exported function")
	}
	_, ok = onload.GetFunction(root, "deep", false)
	if ok {
		t.Error("unexpected presence of import function without import query")
	}
	fn, ok = onload.GetFunction(root, "deep", true)
	if !ok || fn.IsZero() {
		t.Error("unexpected absence of import function with import query")
	}
	_, ok = onload.GetFunction(root, "missing", true)
	if ok {
		t.Error("unexpected presence of unknown function")
	}
}

func TestLoadFromFile(t *testing.T) {
	onload.RegisterLoader("fakeext", func(path string) (onload.Module, error) {
		return &fakeModule{key: "fake:" + path}, nil
	})

	m, err := onload.LoadFromFile("artifact.fakeext")
	if err != nil {
		t.Fatalf("unexpected error loading module: %v", err)
	}
	if m.TypeKey() != "fake:artifact.fakeext" {
		t.Errorf("unexpected module from loader dispatch: %q", m.TypeKey())
	}

	_, err = onload.LoadFromFile("artifact.unregistered")
	if err == nil {
		t.Fatal("expected error for unregistered extension")
	}
	if !strings.Contains(err.Error(), `"unregistered"`) {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestRegisterLoaderDuplicate(t *testing.T) {
	onload.RegisterLoader("dupext", func(string) (onload.Module, error) { return nil, nil })
	defer func() {
		if recover() == nil {
			t.Error("expected panic for duplicate loader registration")
		}
	}()
	onload.RegisterLoader("dupext", func(string) (onload.Module, error) { return nil, nil })
}

func TestRegisterBinaryLoaderDuplicate(t *testing.T) {
	load := func(io.Reader) (onload.Module, error) { return nil, nil }
	onload.RegisterBinaryLoader("dupkey", load)
	if _, ok := onload.BinaryLoader("dupkey"); !ok {
		t.Error("missing registered binary loader")
	}
	if _, ok := onload.BinaryLoader("nokey"); ok {
		t.Error("unexpected unregistered binary loader")
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic for duplicate binary loader registration")
		}
	}()
	onload.RegisterBinaryLoader("dupkey", load)
}

func TestFuncRegistry(t *testing.T) {
	owner := &fakeModule{key: "owner"}
	fn := onload.NewFunc(0xfee10, owner)
	onload.RegisterFunc("test.registered", fn)

	got, ok := onload.FuncByName("test.registered")
	if !ok {
		t.Fatal("missing registered function")
	}
	if got != fn {
		t.Errorf("unexpected function from registry: %#v != %#v", got, fn)
	}
	_, ok = onload.FuncByName("test.unregistered")
	if ok {
		t.Error("unexpected unregistered function")
	}
}

func TestLastError(t *testing.T) {
	onload.SetLastError("first failure")
	onload.SetLastError("second failure")
	if got := onload.TakeLastError(); got != "second failure" {
		t.Errorf("unexpected last error: %q", got)
	}
	if got := onload.TakeLastError(); got != "" {
		t.Errorf("last error not cleared: %q", got)
	}
}

func TestCallAbsent(t *testing.T) {
	var fn onload.Func
	if !fn.IsZero() {
		t.Error("zero Func is not absent")
	}
	err := fn.Call(nil, nil)
	if err == nil {
		t.Error("expected error calling absent function")
	}
}

func TestCallMismatchedArgs(t *testing.T) {
	fn := onload.NewFunc(0xbad0, &fakeModule{key: "owner"})
	err := fn.Call(make([]onload.Value, 2), make([]onload.Code, 1))
	if err == nil {
		t.Error("expected error for mismatched argument lengths")
	}
}
