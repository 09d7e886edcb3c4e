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

// Debug event codes, as delivered by WaitForDebugEvent.
const (
	ExceptionDebugEvent      = 1
	CreateThreadDebugEvent   = 2
	CreateProcessDebugEvent  = 3
	ExitThreadDebugEvent     = 4
	ExitProcessDebugEvent    = 5
	LoadDllDebugEvent        = 6
	UnloadDllDebugEvent      = 7
	OutputDebugStringEvent   = 8
	RipEvent                 = 9
)

// Exception codes relevant to the breakpoint/single-step engine.
const (
	ExceptionBreakpoint       = 0x80000003
	ExceptionBreakpointWow64  = 0x4000001F
	ExceptionSingleStep       = 0x80000004
	ExceptionSingleStepWow64  = 0x4000001E
	ExceptionAccessViolation  = 0xC0000005
)

// unionSize holds the largest of DEBUG_EVENT's union arms on a 64-bit
// build of this debugger: EXCEPTION_DEBUG_INFO, a 152-byte
// EXCEPTION_RECORD followed by the 4-byte dwFirstChance, padded to 160.
const unionSize = 160

// DebugEvent mirrors DEBUG_EVENT: a discriminated union of per-event
// payloads. The union itself is kept as a raw byte array and decoded on
// demand by the typed accessors below, the same way a C union would be
// reinterpreted by the event code that names which arm is active.
type DebugEvent struct {
	Code      uint32
	ProcessID uint32
	ThreadID  uint32
	_         uint32 // alignment padding to match the union's 8-byte alignment
	union     [unionSize]byte
}

// ExceptionRecord is the fixed-layout prefix of EXCEPTION_DEBUG_INFO.
type ExceptionRecord struct {
	Code             uint32
	Flags            uint32
	Record           uint64
	Address          uint64
	NumParameters    uint32
	_                uint32
	Information      [15]uint64
}

// ExceptionInfo decodes the union as EXCEPTION_DEBUG_INFO.
func (e *DebugEvent) ExceptionInfo() *ExceptionRecord {
	return (*ExceptionRecord)(unsafe.Pointer(&e.union[0]))
}

// FirstChance reports whether this is the first (true) or second (false)
// chance the debugger has to handle the exception.
func (e *DebugEvent) FirstChance() bool {
	// dwFirstChance follows the EXCEPTION_RECORD in EXCEPTION_DEBUG_INFO.
	return *(*uint32)(unsafe.Pointer(&e.union[unsafe.Sizeof(ExceptionRecord{})])) != 0
}

// CreateProcessInfo mirrors CREATE_PROCESS_DEBUG_INFO.
type CreateProcessInfo struct {
	File              windows.Handle
	Process           windows.Handle
	Thread            windows.Handle
	BaseOfImage       uint64
	DebugInfoOffset   uint32
	DebugInfoSize     uint32
	ThreadLocalBase   uint64
	StartAddress      uint64
	ImageName         uint64
	Unicode           uint16
}

// CreateProcessInfo decodes the union as CREATE_PROCESS_DEBUG_INFO.
func (e *DebugEvent) CreateProcessInfo() *CreateProcessInfo {
	return (*CreateProcessInfo)(unsafe.Pointer(&e.union[0]))
}

// LoadDllInfo mirrors LOAD_DLL_DEBUG_INFO.
type LoadDllInfo struct {
	File            windows.Handle
	BaseOfDll       uint64
	DebugInfoOffset uint32
	DebugInfoSize   uint32
	ImageName       uint64
	Unicode         uint16
}

// LoadDllInfo decodes the union as LOAD_DLL_DEBUG_INFO.
func (e *DebugEvent) LoadDllInfo() *LoadDllInfo {
	return (*LoadDllInfo)(unsafe.Pointer(&e.union[0]))
}

// UnloadDllInfo mirrors UNLOAD_DLL_DEBUG_INFO.
type UnloadDllInfo struct {
	BaseOfDll uint64
}

// UnloadDllInfo decodes the union as UNLOAD_DLL_DEBUG_INFO.
func (e *DebugEvent) UnloadDllInfo() *UnloadDllInfo {
	return (*UnloadDllInfo)(unsafe.Pointer(&e.union[0]))
}

// ExitProcessInfo mirrors EXIT_PROCESS_DEBUG_INFO.
type ExitProcessInfo struct {
	ExitCode uint32
}

// ExitProcessInfo decodes the union as EXIT_PROCESS_DEBUG_INFO.
func (e *DebugEvent) ExitProcessInfo() *ExitProcessInfo {
	return (*ExitProcessInfo)(unsafe.Pointer(&e.union[0]))
}

// ExitThreadInfo mirrors EXIT_THREAD_DEBUG_INFO.
type ExitThreadInfo struct {
	ExitCode uint32
}

// ExitThreadInfo decodes the union as EXIT_THREAD_DEBUG_INFO.
func (e *DebugEvent) ExitThreadInfo() *ExitThreadInfo {
	return (*ExitThreadInfo)(unsafe.Pointer(&e.union[0]))
}

// OutputDebugStringInfo mirrors OUTPUT_DEBUG_STRING_INFO.
type OutputDebugStringInfo struct {
	Data    uint64
	Unicode uint16
	Length  uint16
}

// OutputDebugStringInfo decodes the union as OUTPUT_DEBUG_STRING_INFO.
func (e *DebugEvent) OutputDebugStringInfo() *OutputDebugStringInfo {
	return (*OutputDebugStringInfo)(unsafe.Pointer(&e.union[0]))
}

// RipInfo mirrors RIP_INFO, delivered for driver-level fatal errors
// (rare in user-mode debugging, logged and otherwise ignored).
type RipInfo struct {
	Error uint32
	Type  uint32
}

// RipInfo decodes the union as RIP_INFO.
func (e *DebugEvent) RipInfo() *RipInfo {
	return (*RipInfo)(unsafe.Pointer(&e.union[0]))
}
