// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package disasm

import (
	"strings"
	"testing"

	"github.com/scriptdbg/scriptdbg/arch"
)

func TestDecodeAllStopsAtEndOfInput(t *testing.T) {
	// push ebp (0x55); mov ebp, esp (0x89 0xE5); ret (0xC3)
	src := []byte{0x55, 0x89, 0xE5, 0xC3}
	insts := DecodeAll(src)
	if len(insts) != 3 {
		t.Fatalf("len(insts) = %d, want 3", len(insts))
	}
}

func TestFormatAnnotatesRegisterOperand(t *testing.T) {
	// mov eax, ebx -> 89 D8
	src := []byte{0x89, 0xD8}
	inst, err := Decode(src)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ctx := arch.ThreadContext{AX: 1, BX: 42}
	read := func(addr uint64, n int) ([]byte, error) { return make([]byte, n), nil }

	out := Format(inst, ctx, read)
	if !strings.Contains(out, "=1") && !strings.Contains(out, "=42") {
		t.Errorf("Format output %q does not contain either operand's annotated value", out)
	}
}

func TestFormatPushAnnotatesSingleOperand(t *testing.T) {
	// push eax -> 50
	src := []byte{0x50}
	inst, err := Decode(src)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ctx := arch.ThreadContext{AX: 7}
	read := func(addr uint64, n int) ([]byte, error) { return make([]byte, n), nil }

	out := Format(inst, ctx, read)
	if !strings.Contains(out, "=7") {
		t.Errorf("Format output %q does not annotate push operand", out)
	}
}
