// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows
// +build windows

package winapi

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// WoW64ContextAll requests every register group WOW64_CONTEXT supports;
// the debugger always wants the full set (integer registers plus the
// debug registers Dr0..Dr7).
const WoW64ContextAll = 0x1003F

// floatingSaveArea mirrors WOW64_FLOATING_SAVE_AREA. The debugger never
// inspects FPU state, but the field has to be present and correctly
// sized for the registers after it to land at the right offset.
type floatingSaveArea struct {
	ControlWord   uint32
	StatusWord    uint32
	TagWord       uint32
	ErrorOffset   uint32
	ErrorSelector uint32
	DataOffset    uint32
	DataSelector  uint32
	RegisterArea  [80]byte
	Cr0NpxState   uint32
}

// WOW64Context mirrors WOW64_CONTEXT, the 32-bit register set of a
// thread running under WoW64 on a 64-bit host.
type WOW64Context struct {
	ContextFlags uint32
	Dr0, Dr1     uint32
	Dr2, Dr3     uint32
	Dr6, Dr7     uint32
	Float        floatingSaveArea
	SegGs        uint32
	SegFs        uint32
	SegEs        uint32
	SegDs        uint32
	Edi          uint32
	Esi          uint32
	Ebx          uint32
	Edx          uint32
	Ecx          uint32
	Eax          uint32
	Ebp          uint32
	Eip          uint32
	SegCs        uint32
	EFlags       uint32
	Esp          uint32
	SegSs        uint32
	ExtendedRegisters [512]byte
}

// GetThreadContextWow64 reads the 32-bit register set of a thread
// running under WoW64.
func GetThreadContextWow64(thread windows.Handle) (*WOW64Context, error) {
	ctx := &WOW64Context{ContextFlags: WoW64ContextAll}
	r, _, _ := procWow64GetThreadContext.Call(uintptr(thread), uintptr(unsafe.Pointer(ctx)))
	if r == 0 {
		return nil, lastErr("Wow64GetThreadContext")
	}
	return ctx, nil
}

// SetThreadContextWow64 writes back a 32-bit register set previously
// obtained from GetThreadContextWow64.
func SetThreadContextWow64(thread windows.Handle, ctx *WOW64Context) error {
	r, _, _ := procWow64SetThreadContext.Call(uintptr(thread), uintptr(unsafe.Pointer(ctx)))
	if r == 0 {
		return lastErr("Wow64SetThreadContext")
	}
	return nil
}

// ErrNative64BitUnsupported is returned by GetThreadContext/SetThreadContext
// for a thread in a native 64-bit process. Only 32-bit and WoW64 (32-on-64)
// targets are supported; see DESIGN.md's native-64-bit open question.
var ErrNative64BitUnsupported = &Error{Op: "GetThreadContext", Code: uint32(windows.ERROR_NOT_SUPPORTED)}

// GetThreadContext would read a native 64-bit thread's register set; the
// debugger never reaches this path because Start rejects native 64-bit
// targets up front (see debugger.Start), but the function exists so the
// event loop's dispatch table stays total over both WoW64 and native
// threads instead of special-casing the native arm away entirely.
func GetThreadContext(thread windows.Handle) (*Context, error) {
	return nil, ErrNative64BitUnsupported
}

// SetThreadContext is the write-back counterpart of GetThreadContext; see
// its doc comment.
func SetThreadContext(thread windows.Handle, ctx *Context) error {
	return ErrNative64BitUnsupported
}

// Context is an alias of WOW64Context: this debugger never attaches to a
// native 64-bit target, so only the 32-bit register layout is needed.
type Context = WOW64Context

// ProcessMachine values returned by IsWow64Process2.
const (
	ImageFileMachineUnknown = 0
	ImageFileMachineI386    = 0x014c
	ImageFileMachineAMD64   = 0x8664
)

// IsWow64Process2 reports the target's actual machine type and the
// native machine type of the host, distinguishing a 32-bit process
// running under WoW64 from a native 64-bit process.
func IsWow64Process2(process windows.Handle) (processMachine, nativeMachine uint16, err error) {
	r, _, _ := procIsWow64Process2.Call(
		uintptr(process),
		uintptr(unsafe.Pointer(&processMachine)),
		uintptr(unsafe.Pointer(&nativeMachine)),
	)
	if r == 0 {
		return 0, 0, lastErr("IsWow64Process2")
	}
	return processMachine, nativeMachine, nil
}
