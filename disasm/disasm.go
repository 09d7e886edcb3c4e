// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm decodes and formats x86 instructions read out of the
// debuggee, annotating select operands with their live values at the
// moment of decode.
package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/scriptdbg/scriptdbg/arch"
)

// MemReader reads n bytes of the debuggee's address space starting at
// addr.
type MemReader func(addr uint64, n int) ([]byte, error)

// Decode decodes one instruction from src in 32-bit mode (this debugger
// only targets 32-bit and WoW64 processes).
func Decode(src []byte) (x86asm.Inst, error) {
	return x86asm.Decode(src, 32)
}

// DecodeAll decodes every instruction in src, stopping at the first
// decode error or when src is exhausted.
func DecodeAll(src []byte) []x86asm.Inst {
	var insts []x86asm.Inst
	off := 0
	for off < len(src) {
		inst, err := x86asm.Decode(src[off:], 32)
		if err != nil || inst.Len == 0 {
			break
		}
		insts = append(insts, inst)
		off += inst.Len
	}
	return insts
}

// annotatedOps is the set of mnemonics whose operands are worth
// live-annotating: arithmetic/data-movement/compare instructions where
// knowing the current register or memory value at a breakpoint hit
// explains what the instruction is about to do.
var annotatedOps = map[x86asm.Op]bool{
	x86asm.MOV:  true,
	x86asm.MOVZX: true,
	x86asm.ADD:  true,
	x86asm.SUB:  true,
	x86asm.XOR:  true,
	x86asm.MUL:  true,
	x86asm.IMUL: true,
	x86asm.AND:  true,
	x86asm.OR:   true,
	x86asm.SHL:  true,
	x86asm.SHR:  true,
	x86asm.TEST: true,
	x86asm.CMP:  true,
	x86asm.LEA:  true,
}

var singleOperandOps = map[x86asm.Op]bool{
	x86asm.PUSH: true,
	x86asm.POP:  true,
}

// Format renders inst as Intel-syntax assembly, appending live operand
// annotations (register values, or the dereferenced value at a memory
// operand) for the mnemonics where that's informative — the same subset
// format_instruction in the source annotates.
func Format(inst x86asm.Inst, ctx arch.ThreadContext, read MemReader) string {
	out := x86asm.IntelSyntax(inst, 0, nil)

	switch {
	case annotatedOps[inst.Op]:
		out += formatOperand(inst, 0, ctx, read)
		out += formatOperand(inst, 1, ctx, read)
	case singleOperandOps[inst.Op]:
		out += formatOperand(inst, 0, ctx, read)
	}
	return out
}

func formatOperand(inst x86asm.Inst, index int, ctx arch.ThreadContext, read MemReader) string {
	if index >= len(inst.Args) || inst.Args[index] == nil {
		return ""
	}
	switch arg := inst.Args[index].(type) {
	case x86asm.Mem:
		base := ctx.Get(arg.Base)
		addr := base + uint64(arg.Disp)
		v, err := read(addr, 4)
		if err != nil || len(v) < 4 {
			return fmt.Sprintf(" - mem[%d]=<error>", addr)
		}
		val := uint32(v[0]) | uint32(v[1])<<8 | uint32(v[2])<<16 | uint32(v[3])<<24
		return fmt.Sprintf(" - mem[%d]=%d", addr, val)
	case x86asm.Reg:
		return fmt.Sprintf(" - %s=%d", arg, ctx.Get(arg))
	default:
		return ""
	}
}
