// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package modules

import "testing"

func alwaysZero(addr uint64, n int) ([]byte, error) {
	return make([]byte, n), nil
}

func TestGetFunctionAtIsPredecessor(t *testing.T) {
	r := NewRegistry(alwaysZero)
	r.addFunctions([]namedAddr{
		{name: "a", addr: 0x1000},
		{name: "b", addr: 0x2000},
		{name: "c", addr: 0x3000},
	})

	cases := []struct {
		addr uint64
		want string
	}{
		{0x1000, "a"},
		{0x1800, "a"},
		{0x2000, "b"},
		{0x2fff, "b"},
		{0x3500, "c"},
	}
	for _, c := range cases {
		f := r.GetFunctionAt(c.addr)
		if f == nil || f.Name != c.want {
			t.Errorf("GetFunctionAt(%#x) = %v, want %s", c.addr, f, c.want)
		}
	}
}

func TestGetFunctionAtBelowFirstIsNil(t *testing.T) {
	r := NewRegistry(alwaysZero)
	r.addFunctions([]namedAddr{{name: "a", addr: 0x1000}})
	if f := r.GetFunctionAt(0x500); f != nil {
		t.Errorf("GetFunctionAt(0x500) = %v, want nil", f)
	}
}

func TestGetModuleAtRespectsExtent(t *testing.T) {
	r := NewRegistry(alwaysZero)
	r.modules = []ModuleInfo{{Name: "a.dll", Addr: 0x10000000, Size: 0x1000}}
	if m := r.GetModuleAt(0x10000500); m == nil || m.Name != "a.dll" {
		t.Errorf("GetModuleAt(in range) = %v, want a.dll", m)
	}
	if m := r.GetModuleAt(0x10002000); m != nil {
		t.Errorf("GetModuleAt(out of range) = %v, want nil", m)
	}
}

func TestAddFunctionsBuildsAdjacentExtents(t *testing.T) {
	var gotAddrs []uint64
	var gotSizes []int
	reader := func(addr uint64, n int) ([]byte, error) {
		gotAddrs = append(gotAddrs, addr)
		gotSizes = append(gotSizes, n)
		return make([]byte, n), nil
	}
	r := NewRegistry(reader)
	r.addFunctions([]namedAddr{
		{name: "f0", addr: 0x1000},
		{name: "f1", addr: 0x1010},
	})
	if len(gotSizes) != 2 {
		t.Fatalf("len(gotSizes) = %d, want 2", len(gotSizes))
	}
	if gotSizes[0] != 0x10 {
		t.Errorf("first extent size = %d, want 16", gotSizes[0])
	}
	if gotSizes[1] != finalExtentSize {
		t.Errorf("final extent size = %d, want %d", gotSizes[1], finalExtentSize)
	}
}

func TestAddFunctionsClampsOversizedExtent(t *testing.T) {
	var gotSizes []int
	reader := func(addr uint64, n int) ([]byte, error) {
		gotSizes = append(gotSizes, n)
		return make([]byte, n), nil
	}
	r := NewRegistry(reader)
	r.addFunctions([]namedAddr{
		{name: "f0", addr: 0x1000},
		{name: "f1", addr: 0x1000 + maxExtentSize + 1},
	})
	if gotSizes[0] != clampedExtentSize {
		t.Errorf("oversized extent size = %d, want %d", gotSizes[0], clampedExtentSize)
	}
}

func TestGetFunctionAddrByName(t *testing.T) {
	r := NewRegistry(alwaysZero)
	r.addFunctions([]namedAddr{{name: "MessageBoxA", addr: 0x77001234}})
	addr, ok := r.GetFunctionAddr("MessageBoxA")
	if !ok || addr != 0x77001234 {
		t.Errorf("GetFunctionAddr(MessageBoxA) = %#x, %v, want 0x77001234, true", addr, ok)
	}
	if _, ok := r.GetFunctionAddr("NoSuchFunc"); ok {
		t.Errorf("GetFunctionAddr(NoSuchFunc) found, want not found")
	}
}
