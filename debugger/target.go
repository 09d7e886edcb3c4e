// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows
// +build windows

package debugger

import (
	"path/filepath"

	"golang.org/x/sys/windows"
	"golang.org/x/text/encoding/unicode"

	"github.com/scriptdbg/scriptdbg/arch"
	"github.com/scriptdbg/scriptdbg/winapi"
)

// maxRemoteNameBytes bounds the ASCII/UTF-16 module-name read from the
// debuggee: a corrupt or adversarial image name must not hang the loop.
const maxRemoteNameBytes = 1024

// WinTarget implements Target against a real Windows debuggee through
// the winapi package. It is the only place this module talks
// golang.org/x/sys/windows outside winapi itself.
type WinTarget struct {
	process    windows.Handle
	mainThread windows.Handle
	pid        uint32

	threads map[uint32]windows.Handle
}

// NewWinTarget creates an unattached WinTarget. Call CreateDebugProcess
// (via Debugger.Start) before anything else.
func NewWinTarget() *WinTarget {
	return &WinTarget{threads: make(map[uint32]windows.Handle)}
}

func (w *WinTarget) CreateDebugProcess(path string) (pid, tid uint32, err error) {
	proc, thread, p, t, err := winapi.CreateDebugProcess(path, "")
	if err != nil {
		return 0, 0, err
	}
	w.process = proc
	w.mainThread = thread
	w.pid = p
	return p, t, nil
}

func (w *WinTarget) ResumeMainThread() error {
	return winapi.ResumeThread(w.mainThread)
}

func (w *WinTarget) DebugActiveProcess(pid uint32) error {
	return winapi.DebugActiveProcess(pid)
}

func (w *WinTarget) IsWow64() (bool, error) {
	processMachine, _, err := winapi.IsWow64Process2(w.process)
	if err != nil {
		return false, err
	}
	// IsWow64Process2 reports IMAGE_FILE_MACHINE_UNKNOWN for a process
	// that is NOT running under WoW64 (i.e. a native process, 32- or
	// 64-bit); any other value means a 32-bit image under WoW64.
	return processMachine != winapi.ImageFileMachineUnknown, nil
}

func (w *WinTarget) WaitForDebugEvent() (DebugEvent, error) {
	var raw winapi.DebugEvent
	if err := winapi.WaitForDebugEvent(&raw, windows.INFINITE); err != nil {
		return DebugEvent{}, err
	}

	ev := DebugEvent{ProcessID: raw.ProcessID, ThreadID: raw.ThreadID}

	switch raw.Code {
	case winapi.CreateProcessDebugEvent:
		info := raw.CreateProcessInfo()
		w.process = info.Process
		name, size := w.resolveModule(info.File, info.Process, info.ImageName, info.Unicode)
		ev.Kind = EventCreateProcess
		ev.ModuleBase = info.BaseOfImage
		ev.ModuleSize = size
		ev.ModuleName = name

	case winapi.CreateThreadDebugEvent:
		ev.Kind = EventCreateThread

	case winapi.LoadDllDebugEvent:
		info := raw.LoadDllInfo()
		name, size := w.resolveModule(info.File, w.process, info.ImageName, info.Unicode)
		ev.Kind = EventLoadDLL
		ev.ModuleBase = info.BaseOfDll
		ev.ModuleSize = size
		ev.ModuleName = name

	case winapi.UnloadDllDebugEvent:
		ev.Kind = EventUnloadDLL

	case winapi.ExitThreadDebugEvent:
		ev.Kind = EventExitThread

	case winapi.ExitProcessDebugEvent:
		ev.Kind = EventExitProcess

	case winapi.RipEvent:
		ev.Kind = EventRip

	case winapi.OutputDebugStringEvent:
		info := raw.OutputDebugStringInfo()
		data, err := winapi.ReadProcessMemory(w.process, info.Data, int(info.Length))
		ev.Kind = EventOutputDebugString
		if err == nil {
			ev.DebugString = trimNulString(data)
		}

	case winapi.ExceptionDebugEvent:
		rec := raw.ExceptionInfo()
		ev.Kind = EventException
		ev.ExceptionCode = rec.Code
		ev.ExceptionAddr = rec.Address

	default:
		ev.Kind = DebugEventKind(-1)
	}

	return ev, nil
}

func (w *WinTarget) ContinueDebugEvent(pid, tid uint32, handled bool) error {
	status := uint32(winapi.ContinueUnhandled)
	if handled {
		status = winapi.ContinueHandled
	}
	return winapi.ContinueDebugEvent(pid, tid, status)
}

func (w *WinTarget) ReadMemory(addr uint64, n int) ([]byte, error) {
	return winapi.ReadProcessMemory(w.process, addr, n)
}

func (w *WinTarget) WriteMemory(addr uint64, data []byte) error {
	return winapi.WriteProcessMemory(w.process, addr, data)
}

func (w *WinTarget) threadHandle(tid uint32) (windows.Handle, error) {
	if h, ok := w.threads[tid]; ok {
		return h, nil
	}
	h, err := winapi.OpenThread(winapi.ThreadGetContext|winapi.ThreadSetContext, tid)
	if err != nil {
		return 0, err
	}
	w.threads[tid] = h
	return h, nil
}

func (w *WinTarget) GetThreadContext(tid uint32) (arch.ThreadContext, error) {
	h, err := w.threadHandle(tid)
	if err != nil {
		return arch.ThreadContext{}, err
	}
	ctx, err := winapi.GetThreadContextWow64(h)
	if err != nil {
		return arch.ThreadContext{}, err
	}
	return arch.ThreadContext{
		IP: uint64(ctx.Eip), SP: uint64(ctx.Esp), BP: uint64(ctx.Ebp),
		AX: uint64(ctx.Eax), BX: uint64(ctx.Ebx), CX: uint64(ctx.Ecx), DX: uint64(ctx.Edx),
		SI: uint64(ctx.Esi), DI: uint64(ctx.Edi),
		DR6: uint64(ctx.Dr6),
	}, nil
}

func (w *WinTarget) SetTrapFlag(tid uint32, on bool, newIP *uint64) error {
	h, err := w.threadHandle(tid)
	if err != nil {
		return err
	}
	ctx, err := winapi.GetThreadContextWow64(h)
	if err != nil {
		return err
	}
	if newIP != nil {
		ctx.Eip = uint32(*newIP)
	}
	if on {
		ctx.EFlags |= 0x100
	} else {
		ctx.EFlags &^= 0x100
	}
	return winapi.SetThreadContextWow64(h, ctx)
}

func (w *WinTarget) SetHardwareBreakpoint(tid uint32, addr uint64) error {
	h, err := w.threadHandle(tid)
	if err != nil {
		return err
	}
	ctx, err := winapi.GetThreadContextWow64(h)
	if err != nil {
		return err
	}
	ctx.Dr0 = uint32(addr)
	ctx.Dr7 |= 1
	ctx.Dr7 &= 0xFFF0FFFF
	ctx.Dr6 = 0
	return winapi.SetThreadContextWow64(h, ctx)
}

// resolveModule names a module from the pointer the OS supplies in
// CREATE_PROCESS/LOAD_DLL_DEBUG_INFO, falling back to the path resolved
// from the file handle when that pointer is absent or unreadable — many
// debuggers don't trust lpImageName since the loader is not required to
// populate it.
func (w *WinTarget) resolveModule(file, process windows.Handle, imageNamePtr uint64, unicode uint16) (name string, size uint64) {
	name = w.readRemoteString(process, imageNamePtr, unicode != 0)
	if name == "" {
		if p, err := winapi.GetFinalPathNameByHandle(file); err == nil {
			name = filepath.Base(p)
		}
	}
	if sz, err := winapi.GetFileSize(file); err == nil {
		size = sz
	}
	return name, size
}

// readRemoteString reads a pointer-to-string (as supplied by
// CREATE_PROCESS/LOAD_DLL_DEBUG_INFO's lpImageName) out of the
// debuggee's memory. ptrAddr is the address of a 4-byte pointer (the
// debuggee is always 32-bit or WoW64 in this debugger's scope) to the
// actual string.
func (w *WinTarget) readRemoteString(process windows.Handle, ptrAddr uint64, wide bool) string {
	if ptrAddr == 0 {
		return ""
	}
	raw, err := winapi.ReadProcessMemory(process, ptrAddr, 4)
	if err != nil || len(raw) < 4 {
		return ""
	}
	strAddr := uint64(raw[0]) | uint64(raw[1])<<8 | uint64(raw[2])<<16 | uint64(raw[3])<<24
	if strAddr == 0 {
		return ""
	}
	if wide {
		return readRemoteWideString(process, strAddr)
	}
	return readRemoteASCIIString(process, strAddr)
}

func readRemoteASCIIString(process windows.Handle, addr uint64) string {
	var out []byte
	for i := 0; i < maxRemoteNameBytes; i++ {
		b, err := winapi.ReadProcessMemory(process, addr+uint64(i), 1)
		if err != nil || len(b) == 0 || b[0] == 0 {
			break
		}
		out = append(out, b[0])
	}
	return string(out)
}

func readRemoteWideString(process windows.Handle, addr uint64) string {
	var raw []byte
	for i := 0; i < maxRemoteNameBytes; i++ {
		b, err := winapi.ReadProcessMemory(process, addr+uint64(2*i), 2)
		if err != nil || len(b) < 2 || (b[0] == 0 && b[1] == 0) {
			break
		}
		raw = append(raw, b[0], b[1])
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return string(decoded)
}

func trimNulString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
