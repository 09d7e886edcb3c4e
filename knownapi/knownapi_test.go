// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package knownapi

import (
	"encoding/binary"
	"testing"
)

func TestLoadFindsCreateFileA(t *testing.T) {
	db, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	api, ok := db.Lookup("CreateFileA")
	if !ok {
		t.Fatal("CreateFileA not found")
	}
	if len(api.Args) != 7 {
		t.Fatalf("len(Args) = %d, want 7", len(api.Args))
	}
	if api.Args[0].Name != "lpFileName" || api.Args[0].Type != ArgUTF8String {
		t.Errorf("Args[0] = %+v, want lpFileName/UTF8String", api.Args[0])
	}
	if api.Args[0].Location.Offset != -4 || api.Args[1].Location.Offset != -8 {
		t.Errorf("arg offsets = %d, %d, want -4, -8", api.Args[0].Location.Offset, api.Args[1].Location.Offset)
	}
}

// TestCaptureCreateFileA builds a synthetic stack frame for
// CreateFileA("C:\x", 0x80000000, 1, 0, 3, 0x80, 0) and checks that
// Capture decodes all seven arguments (spec.md §8 end-to-end scenario 4).
func TestCaptureCreateFileA(t *testing.T) {
	db, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	api, _ := db.Lookup("CreateFileA")

	const esp = 0x0012FF00
	const stringAddr = 0x00500000

	mem := make(map[uint64]byte)
	setU32 := func(addr uint64, v uint32) {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, v)
		for i, b := range buf {
			mem[addr+uint64(i)] = b
		}
	}

	args := []uint32{0, 0x80000000, 1, 0, 3, 0x80, 0} // [0] placeholder for the string pointer slot
	for i, v := range args {
		setU32(esp+uint64(4*(i+1)), v)
	}
	setU32(esp+4, stringAddr) // lpFileName (first arg, ESP+4) points at stringAddr

	str := "C:\\x"
	for i, c := range []byte(str) {
		mem[stringAddr+uint64(i)] = c
	}
	mem[stringAddr+uint64(len(str))] = 0

	read := func(addr uint64, n int) ([]byte, error) {
		out := make([]byte, n)
		for i := 0; i < n; i++ {
			out[i] = mem[addr+uint64(i)]
		}
		return out, nil
	}

	call, err := api.Capture(esp, read)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if call.Name != "CreateFileA" {
		t.Errorf("Name = %q, want CreateFileA", call.Name)
	}
	if got := call.Args["lpFileName"]; got != str {
		t.Errorf("lpFileName = %v, want %q", got, str)
	}
	if got := call.Args["dwDesiredAccess"]; got != uint32(0x80000000) {
		t.Errorf("dwDesiredAccess = %v, want 2147483648", got)
	}
	if len(call.Args) != 7 {
		t.Errorf("len(Args) = %d, want 7", len(call.Args))
	}
}
