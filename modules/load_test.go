// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package modules

import (
	"encoding/binary"
	"testing"
)

// buildMinimalModule assembles a flat in-memory PE32 image with one real
// export ("RealFunc") and one forwarder entry, exactly the shape
// LoadModule needs to exercise the forwarder-exclusion rule end to end.
func buildMinimalModule(t *testing.T) []byte {
	t.Helper()

	const (
		dosMagic = 0x5A4D
		peSig    = 0x00004550
		optMagic = 0x10b
	)

	total := 0x3000
	data := make([]byte, total)

	binary.LittleEndian.PutUint16(data[0:], dosMagic)
	binary.LittleEndian.PutUint32(data[60:], 64) // e_lfanew

	binary.LittleEndian.PutUint32(data[64:], peSig)
	// COFF header at 68: Machine=I386, rest zero.
	binary.LittleEndian.PutUint16(data[68:], 0x014c)

	optOff := 68 + 20
	binary.LittleEndian.PutUint16(data[optOff:], optMagic)
	binary.LittleEndian.PutUint32(data[optOff+28:], 0x1000) // AddressOfEntryPoint
	// NumberOfRvaAndSizes is the final field of OptionalHeader32 (96 bytes total).
	const optSize = 96
	binary.LittleEndian.PutUint32(data[optOff+optSize-4:], 1) // 1 data directory: export only

	dirOff := optOff + optSize
	binary.LittleEndian.PutUint32(data[dirOff:], 0x2000)  // export dir VA
	binary.LittleEndian.PutUint32(data[dirOff+4:], 0x100) // export dir size (covers forwarder string)

	// ExportDirectory at RVA 0x2000 (40 bytes).
	secOff := 0x2000
	binary.LittleEndian.PutUint32(data[secOff+20:], 2)      // NumberOfFunctions
	binary.LittleEndian.PutUint32(data[secOff+24:], 2)      // NumberOfNames
	binary.LittleEndian.PutUint32(data[secOff+28:], 0x2100) // AddressOfFunctions
	binary.LittleEndian.PutUint32(data[secOff+32:], 0x2200) // AddressOfNames
	binary.LittleEndian.PutUint32(data[secOff+36:], 0x2300) // AddressOfNameOrdinals

	// Functions table: [0]=real code RVA, [1]=forwarder (inside export dir extent).
	binary.LittleEndian.PutUint32(data[0x2100:], 0x2900)
	binary.LittleEndian.PutUint32(data[0x2104:], 0x2050) // inside [0x2000, 0x2100)

	// Names table + ordinals.
	binary.LittleEndian.PutUint32(data[0x2200:], 0x2500)
	binary.LittleEndian.PutUint32(data[0x2204:], 0x2600)
	binary.LittleEndian.PutUint16(data[0x2300:], 0)
	binary.LittleEndian.PutUint16(data[0x2302:], 1)

	copy(data[0x2500:], []byte("RealFunc\x00"))
	copy(data[0x2600:], []byte("Forwarded\x00"))
	copy(data[0x2050:], []byte("OTHER.RealFunc\x00"))

	// A prologue marker at 0x2900 so the real export has something to decode.
	copy(data[0x2900:], []byte{0x55, 0x89, 0xe5, 0xc3})

	return data
}

func TestLoadModuleExcludesForwarders(t *testing.T) {
	mem := buildMinimalModule(t)
	const base = 0x10000000

	r := NewRegistry(func(addr uint64, n int) ([]byte, error) {
		off := int(addr - base)
		if off < 0 || off+n > len(mem) {
			return make([]byte, n), nil
		}
		return mem[off : off+n], nil
	})

	if err := r.LoadModule(base, uint64(len(mem)), "test.dll"); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}

	if _, ok := r.GetFunctionAddr("Forwarded"); ok {
		t.Error("Forwarded export was registered as a function, want excluded")
	}
	addr, ok := r.GetFunctionAddr("RealFunc")
	if !ok {
		t.Fatal("RealFunc was not registered")
	}
	if addr != base+0x2900 {
		t.Errorf("RealFunc addr = %#x, want %#x", addr, base+0x2900)
	}

	mods := r.Modules()
	if len(mods) != 1 || mods[0].Name != "test.dll" {
		t.Errorf("Modules() = %v, want [test.dll]", mods)
	}
}
