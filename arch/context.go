// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arch

import "golang.org/x/arch/x86/x86asm"

// ThreadContext is a normalized view of a stopped thread's integer
// registers, independent of whether they were read through the native
// 64-bit GetThreadContext or the WoW64 32-on-64 variant. Every field is
// widened to 64 bits.
type ThreadContext struct {
	IP, SP, BP     uint64
	AX, BX, CX, DX uint64
	SI, DI         uint64
	DR6            uint64
}

// Get returns the value of an x86asm register as seen through this
// context, masking down to the partial 8- and 16-bit views where
// required. Unsupported registers return 0 so that formatting an
// instruction the debugger doesn't fully decode degrades gracefully
// instead of panicking mid-trace.
func (c ThreadContext) Get(r x86asm.Reg) uint64 {
	switch r {
	case x86asm.EAX, x86asm.RAX:
		return c.AX
	case x86asm.EBX, x86asm.RBX:
		return c.BX
	case x86asm.ECX, x86asm.RCX:
		return c.CX
	case x86asm.EDX, x86asm.RDX:
		return c.DX
	case x86asm.ESP, x86asm.RSP:
		return c.SP
	case x86asm.EBP, x86asm.RBP:
		return c.BP
	case x86asm.ESI, x86asm.RSI:
		return c.SI
	case x86asm.EDI, x86asm.RDI:
		return c.DI
	case x86asm.EIP, x86asm.RIP:
		return c.IP

	case x86asm.AH:
		return highU8(c.AX)
	case x86asm.BH:
		return highU8(c.BX)
	case x86asm.CH:
		return highU8(c.CX)
	case x86asm.DH:
		return highU8(c.DX)

	case x86asm.AL:
		return lowU8(c.AX)
	case x86asm.BL:
		return lowU8(c.BX)
	case x86asm.CL:
		return lowU8(c.CX)
	case x86asm.DL:
		return lowU8(c.DX)

	case x86asm.AX:
		return lowU16(c.AX)
	case x86asm.BX:
		return lowU16(c.BX)
	case x86asm.CX:
		return lowU16(c.CX)
	case x86asm.DX:
		return lowU16(c.DX)
	case x86asm.SI:
		return lowU16(c.SI)
	case x86asm.DI:
		return lowU16(c.DI)
	case x86asm.BP:
		return lowU16(c.BP)
	}
	return 0
}

func highU8(v uint64) uint64 { return (v & 0xFF00) >> 8 }
func lowU8(v uint64) uint64  { return v & 0xFF }
func lowU16(v uint64) uint64 { return v & 0xFFFF }
