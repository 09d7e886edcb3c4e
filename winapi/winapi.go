// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows
// +build windows

// Package winapi wraps the slice of the Windows user-mode debug API the
// debugger needs: process creation under the debug flags, the
// WaitForDebugEvent/ContinueDebugEvent loop, remote memory access, and
// thread-context read/write (native and WoW64). Every call returns a Go
// error instead of the (BOOL, GetLastError()) convention the Windows API
// itself uses.
package winapi

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Error wraps a failed Windows API call with the operation name and the
// raw GetLastError() code, so a caller logging a failure gets both "what
// we were doing" and "what Windows said" without string-parsing a %v.
type Error struct {
	Op   string
	Code uint32
}

func (e *Error) Error() string {
	return fmt.Sprintf("winapi: %s: %s", e.Op, windows.Errno(e.Code).Error())
}

func lastErr(op string) error {
	return &Error{Op: op, Code: uint32(windows.GetLastError().(windows.Errno))}
}

// Process creation flags relevant to launching a debuggee.
const (
	DebugProcess  = 0x00000001
	CreateSuspended = 0x00000004
)

// CreateDebugProcess starts path suspended, under DEBUG_PROCESS, so the
// debugger becomes the target's debugger before a single instruction of
// it runs.
func CreateDebugProcess(path string, cmdline string) (windows.Handle, windows.Handle, uint32, uint32, error) {
	var si windows.StartupInfo
	var pi windows.ProcessInformation

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	var cmdPtr *uint16
	if cmdline != "" {
		cmdPtr, err = windows.UTF16PtrFromString(cmdline)
		if err != nil {
			return 0, 0, 0, 0, err
		}
	}

	err = windows.CreateProcess(
		pathPtr,
		cmdPtr,
		nil,
		nil,
		false,
		DebugProcess|CreateSuspended,
		nil,
		nil,
		&si,
		&pi,
	)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return pi.Process, pi.Thread, pi.ProcessId, pi.ThreadId, nil
}

// ResumeThread resumes a thread suspended at process creation.
func ResumeThread(thread windows.Handle) error {
	_, err := windows.ResumeThread(thread)
	return err
}

// DebugActiveProcess attaches the calling thread as pid's debugger.
func DebugActiveProcess(pid uint32) error {
	r, _, _ := procDebugActiveProcess.Call(uintptr(pid))
	if r == 0 {
		return lastErr("DebugActiveProcess")
	}
	return nil
}

// ContinueStatus values for ContinueDebugEvent.
const (
	ContinueUnhandled = 0x80010001 // DBG_EXCEPTION_NOT_HANDLED
	ContinueHandled   = 0x00010002 // DBG_CONTINUE
)

// WaitForDebugEvent blocks until the next debug event arrives from any
// process this thread debugs, or timeoutMillis elapses
// (windows.INFINITE to block forever).
func WaitForDebugEvent(ev *DebugEvent, timeoutMillis uint32) error {
	r, _, _ := procWaitForDebugEvent.Call(uintptr(unsafe.Pointer(ev)), uintptr(timeoutMillis))
	if r == 0 {
		return lastErr("WaitForDebugEvent")
	}
	return nil
}

// ContinueDebugEvent resumes the thread that raised the event most
// recently returned by WaitForDebugEvent.
func ContinueDebugEvent(pid, tid uint32, status uint32) error {
	r, _, _ := procContinueDebugEvent.Call(uintptr(pid), uintptr(tid), uintptr(status))
	if r == 0 {
		return lastErr("ContinueDebugEvent")
	}
	return nil
}

// ReadProcessMemory reads size bytes from process at addr.
func ReadProcessMemory(process windows.Handle, addr uint64, size int) ([]byte, error) {
	buf := make([]byte, size)
	var n uintptr
	err := windows.ReadProcessMemory(process, uintptr(addr), &buf[0], uintptr(size), &n)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// WriteProcessMemory writes data into process at addr.
func WriteProcessMemory(process windows.Handle, addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var n uintptr
	return windows.WriteProcessMemory(process, uintptr(addr), &data[0], uintptr(len(data)), &n)
}

// Thread access rights needed to read and write a stopped thread's
// register context.
const (
	ThreadGetContext = 0x0008
	ThreadSetContext = 0x0010
)

// OpenThread opens tid with the given access mask.
func OpenThread(access uint32, tid uint32) (windows.Handle, error) {
	h, err := windows.OpenThread(access, false, tid)
	if err != nil {
		return 0, err
	}
	return h, nil
}

// GetProcessID returns the process ID owning an open process handle.
func GetProcessID(process windows.Handle) uint32 {
	return windows.GetProcessId(process)
}

// CloseHandle closes an open object handle.
func CloseHandle(h windows.Handle) error {
	return windows.CloseHandle(h)
}

// GetFinalPathNameByHandle resolves the path an open file handle refers
// to, used to name a module when a LOAD_DLL event supplies only a handle.
func GetFinalPathNameByHandle(h windows.Handle) (string, error) {
	buf := make([]uint16, 1024)
	n, err := windows.GetFinalPathNameByHandle(h, &buf[0], uint32(len(buf)), 0)
	if err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf[:n]), nil
}

// GetFileSize returns the size, in bytes, of an open file handle.
func GetFileSize(h windows.Handle) (uint64, error) {
	var size int64
	if err := windows.GetFileSizeEx(h, &size); err != nil {
		return 0, err
	}
	return uint64(size), nil
}
