// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arch contains architecture-specific definitions.
package arch

import (
	"encoding/binary"
)

const MaxBreakpointSize = 4

// Architecture defines the architecture-specific details for a given machine.
// Only the breakpoint-instruction fields are used: this debugger's scope is
// 32-bit and WoW64 targets (see DESIGN.md's native-64-bit open question), so
// there is exactly one Architecture value in use, X86.
type Architecture struct {
	// BreakpointSize is the size of a breakpoint instruction, in bytes.
	BreakpointSize int
	// ByteOrder is the byte order for ints and pointers.
	ByteOrder       binary.ByteOrder
	BreakpointInstr [MaxBreakpointSize]byte
}

// X86 describes a 32-bit target thread, whether running natively or under
// WoW64 on a 64-bit host.
var X86 = Architecture{
	BreakpointSize:  1,
	ByteOrder:       binary.LittleEndian,
	BreakpointInstr: [MaxBreakpointSize]byte{0xCC}, // INT 3
}
