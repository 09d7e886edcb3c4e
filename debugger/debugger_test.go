// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugger

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/scriptdbg/scriptdbg/arch"
)

// fakeTarget is an in-memory Target used to drive the event loop and
// breakpoint engine without a real Windows process, per this package's
// Target abstraction (see types.go).
type fakeTarget struct {
	mem map[uint64]byte

	events    []DebugEvent
	continued []struct{ pid, tid uint32 }

	ctx arch.ThreadContext
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{mem: make(map[uint64]byte)}
}

func (f *fakeTarget) writeBytes(addr uint64, b []byte) {
	for i, c := range b {
		f.mem[addr+uint64(i)] = c
	}
}

func (f *fakeTarget) writeU32(addr uint64, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	f.writeBytes(addr, b[:])
}

func (f *fakeTarget) CreateDebugProcess(path string) (uint32, uint32, error) { return 1, 1, nil }
func (f *fakeTarget) ResumeMainThread() error                                { return nil }
func (f *fakeTarget) DebugActiveProcess(pid uint32) error                    { return nil }
func (f *fakeTarget) IsWow64() (bool, error)                                 { return true, nil }

func (f *fakeTarget) WaitForDebugEvent() (DebugEvent, error) {
	if len(f.events) == 0 {
		return DebugEvent{Kind: EventExitProcess}, nil
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, nil
}

func (f *fakeTarget) ContinueDebugEvent(pid, tid uint32, handled bool) error {
	f.continued = append(f.continued, struct{ pid, tid uint32 }{pid, tid})
	return nil
}

func (f *fakeTarget) ReadMemory(addr uint64, n int) ([]byte, error) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = f.mem[addr+uint64(i)]
	}
	return out, nil
}

func (f *fakeTarget) WriteMemory(addr uint64, data []byte) error {
	f.writeBytes(addr, data)
	return nil
}

func (f *fakeTarget) GetThreadContext(tid uint32) (arch.ThreadContext, error) {
	return f.ctx, nil
}

func (f *fakeTarget) SetTrapFlag(tid uint32, on bool, newIP *uint64) error {
	if newIP != nil {
		f.ctx.IP = *newIP
	}
	return nil
}

func (f *fakeTarget) SetHardwareBreakpoint(tid uint32, addr uint64) error { return nil }

func newTestDebugger(t *testing.T, target *fakeTarget) *Debugger {
	t.Helper()
	d, err := New(target)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.process = 1
	d.currentTID = 1
	return d
}

func TestBreakpointHitStopsAndRestoresByte(t *testing.T) {
	target := newFakeTarget()
	d := newTestDebugger(t, target)

	const addr = 0x401000
	target.mem[addr] = 0x90 // original NOP, prior to CC install

	handle, err := d.AddBreakpointSimple(addr, false)
	if err != nil {
		t.Fatalf("AddBreakpointSimple: %v", err)
	}
	if got := target.mem[addr]; got != 0xCC {
		t.Fatalf("mem[addr] after install = %#x, want 0xCC", got)
	}

	target.events = []DebugEvent{
		{Kind: EventException, ProcessID: 1, ThreadID: 1, ExceptionCode: ExceptionBreakpointWow64, ExceptionAddr: addr},
	}
	if err := d.Go(); err != nil {
		t.Fatalf("Go: %v", err)
	}

	if got := target.mem[addr]; got != 0x90 {
		t.Fatalf("mem[addr] after hit = %#x, want original 0x90", got)
	}
	if d.stepping.Kind != StepOverBreakpoint || d.stepping.Handle != handle {
		t.Fatalf("stepping = %+v, want StepOverBreakpoint at handle %d", d.stepping, handle)
	}
}

func TestOnceBreakpointNotReinstalled(t *testing.T) {
	target := newFakeTarget()
	d := newTestDebugger(t, target)

	const addr = 0x402000
	target.mem[addr] = 0x57 // push edi

	if _, err := d.AddBreakpointSimple(addr, true); err != nil {
		t.Fatalf("AddBreakpointSimple: %v", err)
	}

	target.events = []DebugEvent{
		{Kind: EventException, ProcessID: 1, ThreadID: 1, ExceptionCode: ExceptionBreakpointWow64, ExceptionAddr: addr},
	}
	if err := d.Go(); err != nil {
		t.Fatalf("Go (hit): %v", err)
	}

	// Completing the step-over must not reinstall a once-only breakpoint.
	target.events = []DebugEvent{
		{Kind: EventException, ProcessID: 1, ThreadID: 1, ExceptionCode: ExceptionSingleStep},
	}
	if err := d.Go(); err != nil {
		t.Fatalf("Go (step-over complete): %v", err)
	}

	if got := target.mem[addr]; got != 0x57 {
		t.Fatalf("mem[addr] after step-over = %#x, want original 0x57 (not reinstalled)", got)
	}
	if d.stepping.Kind != StepIdle {
		t.Fatalf("stepping.Kind = %v, want StepIdle", d.stepping.Kind)
	}
}

func TestSymbolicBreakpointResolvesOnModuleLoad(t *testing.T) {
	target := newFakeTarget()
	d := newTestDebugger(t, target)

	const base = 0x10000000
	const size = 0x1000
	const prologueOffset = 0x10
	funcAddr := uint64(base + prologueOffset)
	name := fmt.Sprintf("f_%X", funcAddr)

	target.writeBytes(funcAddr, []byte{0x55, 0x89}) // push ebp; mov ebp, esp (partial)

	if _, err := d.AddBreakpointSymbol(name); err != nil {
		t.Fatalf("AddBreakpointSymbol: %v", err)
	}

	target.events = []DebugEvent{
		{Kind: EventLoadDLL, ProcessID: 1, ThreadID: 1, ModuleBase: base, ModuleSize: size, ModuleName: "test.dll"},
		{Kind: EventExitProcess, ProcessID: 1, ThreadID: 1},
	}
	if err := d.Go(); err != nil {
		t.Fatalf("Go: %v", err)
	}

	idx, ok := d.breakpointsByLocation[funcAddr]
	if !ok {
		t.Fatalf("symbol %q never resolved", name)
	}
	b := d.breakpoints[idx]
	if b.Kind != BreakpointSimple || b.OriginalByte != 0x55 {
		t.Fatalf("resolved breakpoint = %+v, want Simple with OriginalByte 0x55", b)
	}
	if len(d.unresolved) != 0 {
		t.Fatalf("unresolved = %v, want empty", d.unresolved)
	}
}

func TestKnownAPICapturesArguments(t *testing.T) {
	target := newFakeTarget()
	d := newTestDebugger(t, target)

	api, ok := d.knownAPIs.Lookup("CreateFileA")
	if !ok {
		t.Fatal("CreateFileA not found in known-API catalog")
	}

	const addr = 0x403000
	const esp = 0x20000
	const filenameAddr = 0x30000
	target.mem[addr] = 0x55

	target.writeU32(esp+4, filenameAddr) // lpFileName
	target.writeBytes(filenameAddr, []byte("test.txt\x00"))
	target.writeU32(esp+8, 0x80000000)  // dwDesiredAccess
	target.writeU32(esp+12, 1)          // dwShareMode
	target.writeU32(esp+16, 0)          // lpSecurityAttributes
	target.writeU32(esp+20, 3)          // dwCreationDisposition
	target.writeU32(esp+24, 0x80)       // dwFlagsAndAttributes
	target.writeU32(esp+28, 0)          // hTemplateFile
	target.ctx.SP = esp

	if _, err := d.AddBreakpointKnownAPI(addr, api); err != nil {
		t.Fatalf("AddBreakpointKnownAPI: %v", err)
	}

	target.events = []DebugEvent{
		{Kind: EventException, ProcessID: 1, ThreadID: 1, ExceptionCode: ExceptionBreakpointWow64, ExceptionAddr: addr},
	}
	if err := d.Go(); err != nil {
		t.Fatalf("Go: %v", err)
	}

	call, err := d.CurrentStackFrame()
	if err != nil {
		t.Fatalf("CurrentStackFrame: %v", err)
	}
	if call == nil || call.Name != "CreateFileA" {
		t.Fatalf("call = %+v, want CreateFileA", call)
	}
	if got := call.Args["lpFileName"]; got != "test.txt" {
		t.Fatalf("lpFileName = %v, want test.txt", got)
	}
}

func TestGoUntilUsesMemStopsOnHardwareHit(t *testing.T) {
	target := newFakeTarget()
	d := newTestDebugger(t, target)

	target.ctx.DR6 = 1 // simulate the watched access having already tripped
	target.events = []DebugEvent{
		{Kind: EventException, ProcessID: 1, ThreadID: 1, ExceptionCode: ExceptionSingleStep},
	}

	if err := d.GoUntilUsesMem(0x404000); err != nil {
		t.Fatalf("GoUntilUsesMem: %v", err)
	}
}

func TestTraceFunctionAtInstallsTraceBreakpoints(t *testing.T) {
	target := newFakeTarget()
	d := newTestDebugger(t, target)

	const base = 0x20000000
	const size = 0x1000
	const prologueOffset = 0x40
	funcAddr := uint64(base + prologueOffset)

	target.writeBytes(funcAddr, []byte{0x55, 0x89, 0xE5, 0xC3}) // push ebp; mov ebp,esp; ret

	target.events = []DebugEvent{
		{Kind: EventCreateProcess, ProcessID: 1, ThreadID: 1, ModuleBase: base, ModuleSize: size, ModuleName: "test.exe"},
		{Kind: EventExitProcess, ProcessID: 1, ThreadID: 1},
	}
	if err := d.Go(); err != nil {
		t.Fatalf("Go: %v", err)
	}

	if err := d.TraceFunctionAt(funcAddr); err != nil {
		t.Fatalf("TraceFunctionAt: %v", err)
	}

	if target.mem[funcAddr] != 0xCC {
		t.Fatalf("mem[funcAddr] = %#x, want 0xCC", target.mem[funcAddr])
	}

	var traced int
	for _, b := range d.breakpoints {
		if b.Kind == BreakpointSimple && b.Trace && b.Go {
			traced++
			if b.OriginalByte == 0 && b.Location == funcAddr {
				t.Fatalf("breakpoint at entry lost its original byte: %+v", b)
			}
		}
	}
	if traced == 0 {
		t.Fatal("TraceFunctionAt installed no trace breakpoints")
	}
}

func TestDeleteBreakpointRestoresByte(t *testing.T) {
	target := newFakeTarget()
	d := newTestDebugger(t, target)

	const addr = 0x405000
	target.mem[addr] = 0xAB

	handle, err := d.AddBreakpointSimple(addr, false)
	if err != nil {
		t.Fatalf("AddBreakpointSimple: %v", err)
	}
	if err := d.DeleteBreakpoint(handle); err != nil {
		t.Fatalf("DeleteBreakpoint: %v", err)
	}
	if got := target.mem[addr]; got != 0xAB {
		t.Fatalf("mem[addr] after delete = %#x, want restored 0xAB", got)
	}
	if _, ok := d.breakpointsByLocation[addr]; ok {
		t.Fatal("breakpointsByLocation still has deleted handle's location")
	}
	if err := d.DeleteBreakpoint(handle + 100); err == nil {
		t.Fatal("DeleteBreakpoint with bogus handle: want error, got nil")
	}
}
