// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugger

import "errors"

// ErrUnsupported64BitTarget is returned by Start when the launched
// process is not running under WoW64 (a genuine native 64-bit target).
// Only 32-bit and 32-on-64 processes are supported; see DESIGN.md's
// native-64-bit open question.
var ErrUnsupported64BitTarget = errors.New("debugger: native 64-bit targets are not supported")

// ErrUnknownBreakpoint is returned by DeleteBreakpoint for a handle that
// was never issued by an AddBreakpoint* call.
var ErrUnknownBreakpoint = errors.New("debugger: unknown breakpoint handle")

// ErrNoFunction is returned when a query address falls outside every
// known module's registered functions.
var ErrNoFunction = errors.New("debugger: no function at address")

// ErrNoInstruction is returned when the current instruction pointer
// isn't covered by any cached instruction batch.
var ErrNoInstruction = errors.New("debugger: no decoded instruction at current IP")

// ErrUnknownReadType is returned by ReadMemory/ReadArrayMemory for a
// type name outside {u8, u16, u32, f32}.
var ErrUnknownReadType = errors.New("debugger: unknown memory read type")
