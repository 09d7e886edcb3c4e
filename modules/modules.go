// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package modules tracks the debuggee's loaded modules and the
// functions discovered within them, either from a module's export table
// or, lacking one, from a heuristic scan for function prologues. Lookups
// are address-predecessor queries ("what module/function contains this
// address") answered with sorted slices and binary search rather than an
// interval tree — spec.md's Design Note 9 observes that almost every
// query here is predecessor-by-base, so the extra structure an interval
// tree provides doesn't pay for itself.
package modules

import (
	"fmt"
	"sort"

	"golang.org/x/arch/x86/x86asm"
)

// maxHeuristicScanSize bounds the heuristic prologue scan to modules
// under 10,000,000 bytes; beyond that the scan is skipped entirely rather than
// spending seconds walking a module's whole code section byte by byte.
const maxHeuristicScanSize = 10 * 1000 * 1000

// maxExtentSize clamps any function extent larger than this down to a
// small placeholder, rather than decoding a megabyte of what's almost
// certainly just an un-prologued tail the scanner failed to segment.
const (
	maxExtentSize     = 1000000
	clampedExtentSize = 10
	finalExtentSize   = 100
)

// ModuleInfo describes one loaded module.
type ModuleInfo struct {
	Name string
	Addr uint64
	Size uint64
}

// FunctionInfo describes one known function, named either from an export
// table entry or synthesized ("f_<addr>") from a heuristic scan.
type FunctionInfo struct {
	Name string
	Addr uint64
}

// InstructionBatch is a contiguous run of decoded instructions starting
// at Addr, covering one function's extent.
type InstructionBatch struct {
	Addr  uint64
	Insts []x86asm.Inst
}

// MemReader reads n bytes of the debuggee's address space starting at
// addr. The debugger package supplies this; Registry never talks to a
// process handle directly.
type MemReader func(addr uint64, n int) ([]byte, error)

// Registry indexes every module and function the debugger has seen.
// Nothing here is safe for concurrent use: like the rest of the
// debugger's mutable state, it is only ever touched from the single
// worker goroutine that owns the target process.
type Registry struct {
	read MemReader

	modules   []ModuleInfo
	functions []FunctionInfo
	opcodes   []InstructionBatch
}

// NewRegistry creates an empty Registry that reads target memory
// through read.
func NewRegistry(read MemReader) *Registry {
	return &Registry{read: read}
}

func (r *Registry) sortAll() {
	sort.Slice(r.modules, func(i, j int) bool { return r.modules[i].Addr < r.modules[j].Addr })
	sort.Slice(r.functions, func(i, j int) bool { return r.functions[i].Addr < r.functions[j].Addr })
	sort.Slice(r.opcodes, func(i, j int) bool { return r.opcodes[i].Addr < r.opcodes[j].Addr })
}

type namedAddr struct {
	name string
	addr uint64
}

// addFunctions records a freshly-discovered batch of functions, building
// adjacent extents between them (the final function gets a fixed
// finalExtentSize extent), clamping any outsized extent, and decoding
// each extent's instructions with the x86 32-bit decoder.
func (r *Registry) addFunctions(fns []namedAddr) {
	if len(fns) == 0 {
		return
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].addr < fns[j].addr })

	for i, f := range fns {
		size := uint64(finalExtentSize)
		if i+1 < len(fns) {
			size = fns[i+1].addr - f.addr
		}
		if size > maxExtentSize {
			size = clampedExtentSize
		}

		if bytes, err := r.read(f.addr, int(size)); err == nil {
			var insts []x86asm.Inst
			off := 0
			for off < len(bytes) {
				inst, err := x86asm.Decode(bytes[off:], 32)
				if err != nil || inst.Len == 0 {
					break
				}
				insts = append(insts, inst)
				off += inst.Len
			}
			r.opcodes = append(r.opcodes, InstructionBatch{Addr: f.addr, Insts: insts})
		}

		r.functions = append(r.functions, FunctionInfo{Name: f.name, Addr: f.addr})
	}

	r.sortAll()
}

// Modules returns a snapshot of every registered module.
func (r *Registry) Modules() []ModuleInfo {
	out := make([]ModuleInfo, len(r.modules))
	copy(out, r.modules)
	return out
}

// predecessorIndex returns the index of the greatest element whose key is <=
// target, or -1 if every element's key is greater than target (or the
// slice is empty). Index 0 never matches when target is less than the
// first element's key, matching the source's convention that address 0
// is never itself a function.
func predecessorIndex(n int, keyAt func(int) uint64, target uint64) int {
	i := sort.Search(n, func(i int) bool { return keyAt(i) > target })
	return i - 1
}

// GetModuleAt returns the module whose [Addr, Addr+Size) range contains
// addr, or nil if none does.
func (r *Registry) GetModuleAt(addr uint64) *ModuleInfo {
	i := predecessorIndex(len(r.modules), func(i int) uint64 { return r.modules[i].Addr }, addr)
	if i < 0 {
		return nil
	}
	m := r.modules[i]
	if addr >= m.Addr+m.Size {
		return nil
	}
	return &m
}

// GetFunctionAt returns the function with the greatest address <= addr,
// or nil if there is none (spec.md §8 invariant 5).
func (r *Registry) GetFunctionAt(addr uint64) *FunctionInfo {
	i := predecessorIndex(len(r.functions), func(i int) uint64 { return r.functions[i].Addr }, addr)
	if i < 0 {
		return nil
	}
	f := r.functions[i]
	return &f
}

// GetInstructionsAt returns the decoded instruction batch with the
// greatest start address <= addr, or nil if there is none. It does not
// check that addr lies within that batch's extent.
func (r *Registry) GetInstructionsAt(addr uint64) *InstructionBatch {
	i := predecessorIndex(len(r.opcodes), func(i int) uint64 { return r.opcodes[i].Addr }, addr)
	if i < 0 {
		return nil
	}
	b := r.opcodes[i]
	return &b
}

// GetInstructionAt returns the first instruction, and its own address,
// in the batch from GetInstructionsAt that starts at or after addr. When
// addr falls inside an instruction, the following instruction is
// returned.
func (r *Registry) GetInstructionAt(addr uint64) (uint64, *x86asm.Inst) {
	batch := r.GetInstructionsAt(addr)
	if batch == nil {
		return 0, nil
	}
	pc := batch.Addr
	for i := range batch.Insts {
		if pc >= addr {
			return pc, &batch.Insts[i]
		}
		pc += uint64(batch.Insts[i].Len)
	}
	return 0, nil
}

// GetNextInstructionAfter returns the first instruction whose address is
// strictly greater than addr.
func (r *Registry) GetNextInstructionAfter(addr uint64) (uint64, *x86asm.Inst) {
	batch := r.GetInstructionsAt(addr)
	if batch == nil {
		return 0, nil
	}
	pc := batch.Addr
	for i := range batch.Insts {
		if pc > addr {
			return pc, &batch.Insts[i]
		}
		pc += uint64(batch.Insts[i].Len)
	}
	return 0, nil
}

// GetFunctionAddr resolves a bare function name to an address by
// scanning the function registry, across all modules, for an exact name
// match; a "module!function" form is not parsed. It
// is O(n); call sites are symbolic breakpoint resolution, which runs
// once per DLL load, not per instruction.
func (r *Registry) GetFunctionAddr(name string) (uint64, bool) {
	for _, f := range r.functions {
		if f.Name == name {
			return f.Addr, true
		}
	}
	return 0, false
}

// Snapshot is a supplemental read-only view of the registry's contents,
// useful for a status command or a test assertion without exposing the
// mutable slices themselves.
type Snapshot struct {
	Modules   []ModuleInfo
	Functions []FunctionInfo
}

// Snapshot returns a point-in-time copy of the registry's modules and
// functions.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{Modules: r.Modules(), Functions: append([]FunctionInfo(nil), r.functions...)}
}

func syntheticName(addr uint64) string { return fmt.Sprintf("f_%X", addr) }
