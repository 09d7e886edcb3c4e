// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package modules

import (
	"log"

	"github.com/scriptdbg/scriptdbg/pe"
)

// LoadModule registers a module mapped at [base, base+size) in the
// target process. It reads the module's own PE headers out of target
// memory (not off disk — this is the image as the loader actually laid
// it out), walks its export table, and records every exported function
// that isn't a forwarder (spec.md §8 invariant 7). A module with no
// export table smaller than maxHeuristicScanSize instead gets a
// heuristic prologue scan.
func (r *Registry) LoadModule(base, size uint64, name string) error {
	mem, err := r.read(base, int(size))
	if err != nil {
		return err
	}
	img, imgErr := pe.FromBytes(mem)

	var exports []pe.ExportedFunction
	if imgErr == nil {
		exports, err = img.GetExports()
		if err != nil {
			return err
		}
	}

	var newFns []namedAddr

	switch {
	case len(exports) > 0:
		dir := img.DataDirectory(pe.DirectoryEntryExport)
		for _, e := range exports {
			if uint32(e.RVA) >= uint32(dir.VirtualAddress) && uint32(e.RVA) < uint32(dir.VirtualAddress)+dir.Size {
				continue // forwarder rule: not a real function in this module
			}
			newFns = append(newFns, namedAddr{name: e.Name, addr: base + uint64(e.RVA)})
		}

	case size < maxHeuristicScanSize:
		for addr := 0; addr < len(mem); addr++ {
			isPrologue := addr+1 < len(mem) && mem[addr] == 0x55 && mem[addr+1] == 0x89
			isPadding := addr >= 2 && mem[addr-2] == 0xCC && mem[addr-1] == 0xCC
			if isPrologue || isPadding {
				a := base + uint64(addr)
				newFns = append(newFns, namedAddr{name: syntheticName(a), addr: a})
			}
		}

	default:
		log.Printf("modules: %s too large (%d bytes) for heuristic scan, skipping", name, size)
	}

	r.addFunctions(newFns)

	r.modules = append(r.modules, ModuleInfo{Name: name, Addr: base, Size: size})
	r.sortAll()
	return nil
}
