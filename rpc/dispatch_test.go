// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpc

import (
	"testing"

	"github.com/scriptdbg/scriptdbg/arch"
	"github.com/scriptdbg/scriptdbg/debugger"
)

// stubTarget implements debugger.Target with no debuggee at all, enough
// to exercise Dispatch's read/write-only commands without a process.
type stubTarget struct {
	mem map[uint64]byte
	ctx arch.ThreadContext
}

func newStubTarget() *stubTarget { return &stubTarget{mem: make(map[uint64]byte)} }

func (s *stubTarget) CreateDebugProcess(path string) (uint32, uint32, error) { return 1, 1, nil }
func (s *stubTarget) ResumeMainThread() error                                { return nil }
func (s *stubTarget) DebugActiveProcess(pid uint32) error                    { return nil }
func (s *stubTarget) IsWow64() (bool, error)                                 { return true, nil }
func (s *stubTarget) WaitForDebugEvent() (debugger.DebugEvent, error) {
	return debugger.DebugEvent{Kind: debugger.EventExitProcess}, nil
}
func (s *stubTarget) ContinueDebugEvent(pid, tid uint32, handled bool) error { return nil }
func (s *stubTarget) ReadMemory(addr uint64, n int) ([]byte, error) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = s.mem[addr+uint64(i)]
	}
	return out, nil
}
func (s *stubTarget) WriteMemory(addr uint64, data []byte) error {
	for i, b := range data {
		s.mem[addr+uint64(i)] = b
	}
	return nil
}
func (s *stubTarget) GetThreadContext(tid uint32) (arch.ThreadContext, error) { return s.ctx, nil }
func (s *stubTarget) SetTrapFlag(tid uint32, on bool, newIP *uint64) error    { return nil }
func (s *stubTarget) SetHardwareBreakpoint(tid uint32, addr uint64) error     { return nil }

func newTestWorker(t *testing.T) (*Worker, *stubTarget) {
	t.Helper()
	target := newStubTarget()
	d, err := debugger.New(target)
	if err != nil {
		t.Fatalf("debugger.New: %v", err)
	}
	return NewWorker(d), target
}

func TestDispatchUnknownCommand(t *testing.T) {
	w, _ := newTestWorker(t)
	if _, err := w.Submit(struct{}{}); err == nil {
		t.Fatal("Submit(unknown): want error, got nil")
	}
}

func TestDispatchReadMemoryU8(t *testing.T) {
	w, target := newTestWorker(t)
	target.mem[0x1000] = 0x2A

	resp, err := w.Submit(ReadMemoryRequest{Type: "u8", Addr: 0x1000})
	if err != nil {
		t.Fatalf("Submit(ReadMemoryRequest): %v", err)
	}
	r, ok := resp.(ReadMemoryResponse)
	if !ok {
		t.Fatalf("resp type = %T, want ReadMemoryResponse", resp)
	}
	if r.Value != byte(0x2A) {
		t.Fatalf("Value = %v, want 0x2A", r.Value)
	}
}

func TestDispatchAddBreakpointHexSymbol(t *testing.T) {
	w, target := newTestWorker(t)
	target.mem[0x401000] = 0x90

	resp, err := w.Submit(AddBreakpointRequest{Symbol: "0x401000", Once: false})
	if err != nil {
		t.Fatalf("Submit(AddBreakpointRequest): %v", err)
	}
	r, ok := resp.(AddBreakpointResponse)
	if !ok {
		t.Fatalf("resp type = %T, want AddBreakpointResponse", resp)
	}
	if r.Handle != 0 {
		t.Fatalf("Handle = %d, want 0", r.Handle)
	}
	if target.mem[0x401000] != 0xCC {
		t.Fatalf("mem[0x401000] = %#x, want 0xCC", target.mem[0x401000])
	}
}

func TestDispatchAddBreakpointSymbolName(t *testing.T) {
	w, _ := newTestWorker(t)

	// "main" never resolves against an empty module registry, so this
	// exercises the pending/unresolved path rather than a hex address.
	resp, err := w.Submit(AddBreakpointRequest{Symbol: "main", Once: false})
	if err != nil {
		t.Fatalf("Submit(AddBreakpointRequest): %v", err)
	}
	if _, ok := resp.(AddBreakpointResponse); !ok {
		t.Fatalf("resp type = %T, want AddBreakpointResponse", resp)
	}
}

func TestDispatchStatus(t *testing.T) {
	w, _ := newTestWorker(t)
	resp, err := w.Submit(StatusRequest{})
	if err != nil {
		t.Fatalf("Submit(StatusRequest): %v", err)
	}
	s, ok := resp.(StatusResponse)
	if !ok {
		t.Fatalf("resp type = %T, want StatusResponse", resp)
	}
	if !s.Live {
		t.Fatal("Live = false, want true")
	}
}
