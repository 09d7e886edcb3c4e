// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows
// +build windows

package winapi

import "golang.org/x/sys/windows"

// The handful of debug-API entry points golang.org/x/sys/windows does not
// wrap (DebugActiveProcess, WaitForDebugEvent, ContinueDebugEvent, and the
// WoW64 thread-context pair) are resolved the same way that package itself
// resolves kernel32 procedures: a lazily-loaded system DLL plus
// LazyProc.Call. This keeps winapi's own surface free of cgo.
var (
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procDebugActiveProcess     = modkernel32.NewProc("DebugActiveProcess")
	procDebugActiveProcessStop = modkernel32.NewProc("DebugActiveProcessStop")
	procWaitForDebugEvent      = modkernel32.NewProc("WaitForDebugEvent")
	procContinueDebugEvent     = modkernel32.NewProc("ContinueDebugEvent")
	procWow64GetThreadContext  = modkernel32.NewProc("Wow64GetThreadContext")
	procWow64SetThreadContext  = modkernel32.NewProc("Wow64SetThreadContext")
	procIsWow64Process2        = modkernel32.NewProc("IsWow64Process2")
)

// DebugActiveProcessStop detaches the calling thread from pid as its
// debugger, leaving pid running.
func DebugActiveProcessStop(pid uint32) error {
	r, _, _ := procDebugActiveProcessStop.Call(uintptr(pid))
	if r == 0 {
		return lastErr("DebugActiveProcessStop")
	}
	return nil
}
