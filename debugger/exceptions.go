// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugger

// Exception codes the event loop's dispatch table recognizes (spec.md
// §4.3.3). Mirrored here rather than imported from winapi so this
// package's core logic carries no windows build tag; WinTarget's
// WaitForDebugEvent normalizes the raw Windows codes into these same
// values.
const (
	ExceptionBreakpoint      = 0x80000003
	ExceptionBreakpointWow64 = 0x4000001F
	ExceptionSingleStep      = 0x80000004
	ExceptionSingleStepWow64 = 0x4000001E
	ExceptionAccessViolation = 0xC0000005
)
