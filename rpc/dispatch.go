// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scriptdbg/scriptdbg/debugger"
)

// Dispatch executes cmd against d, returning the matching *Response
// value. It is the switch golang-debug's program/server/server.go
// methods perform inline, centralized here because this module has one
// worker type instead of one RPC method per server receiver.
func Dispatch(d *debugger.Debugger, cmd Command) (interface{}, error) {
	switch c := cmd.(type) {
	case InitRequest:
		if err := d.Start(c.Path); err != nil {
			return nil, err
		}
		if err := d.Go(); err != nil {
			return nil, err
		}
		return InitResponse{}, nil

	case GoRequest:
		if err := d.Go(); err != nil {
			return nil, err
		}
		return GoResponse{}, nil

	case StepRequest:
		if err := d.Step(); err != nil {
			return nil, err
		}
		return StepResponse{}, nil

	case GoUntilUsesMemRequest:
		if err := d.GoUntilUsesMem(c.Addr); err != nil {
			return nil, err
		}
		return GoUntilUsesMemResponse{}, nil

	case AddBreakpointRequest:
		addr, isAddr := parseSymbolAddr(c.Symbol)
		var handle int
		var err error
		if isAddr {
			handle, err = d.AddBreakpointSimple(addr, c.Once)
		} else {
			handle, err = d.AddBreakpointSymbol(c.Symbol)
		}
		if err != nil {
			return nil, err
		}
		return AddBreakpointResponse{Handle: handle}, nil

	case AddMemoryBreakpointRequest:
		handle, err := d.AddBreakpointMemory(c.Addr)
		if err != nil {
			return nil, err
		}
		return AddMemoryBreakpointResponse{Handle: handle}, nil

	case DeleteBreakpointRequest:
		if err := d.DeleteBreakpoint(c.Handle); err != nil {
			return nil, err
		}
		return DeleteBreakpointResponse{}, nil

	case GetThreadContextRequest:
		ctx, err := d.GetCurrentThreadContext()
		if err != nil {
			return nil, err
		}
		return GetThreadContextResponse{
			IP: ctx.IP, SP: ctx.SP, BP: ctx.BP,
			AX: ctx.AX, BX: ctx.BX, CX: ctx.CX, DX: ctx.DX,
			SI: ctx.SI, DI: ctx.DI,
		}, nil

	case ReadMemoryRequest:
		v, err := d.ReadMemory(c.Type, c.Addr)
		if err != nil {
			return nil, err
		}
		return ReadMemoryResponse{Value: v}, nil

	case ReadArrayMemoryRequest:
		v, err := d.ReadArrayMemory(c.Type, c.Count, c.Addr)
		if err != nil {
			return nil, err
		}
		return ReadArrayMemoryResponse{Values: v}, nil

	case CurrentStackFrameRequest:
		call, err := d.CurrentStackFrame()
		if err != nil {
			return nil, err
		}
		return CurrentStackFrameResponse{Call: call}, nil

	case GetCurrentInstructionStringRequest:
		s, err := d.GetCurrentInstructionString()
		if err != nil {
			return nil, err
		}
		return GetCurrentInstructionStringResponse{Text: s}, nil

	case WriteFileRequest:
		if err := d.WriteFile(c.Path, c.Data); err != nil {
			return nil, err
		}
		return WriteFileResponse{}, nil

	case GetFunctionAtRequest:
		call, err := d.GetFunctionAt(c.Addr)
		if err != nil {
			return nil, err
		}
		return GetFunctionAtResponse{Call: call}, nil

	case TraceFunctionAtRequest:
		if err := d.TraceFunctionAt(c.Addr); err != nil {
			return nil, err
		}
		return TraceFunctionAtResponse{}, nil

	case StatusRequest:
		ctx, err := d.GetCurrentThreadContext()
		if err != nil {
			return StatusResponse{Live: false, Pid: d.ProcessID()}, nil
		}
		return StatusResponse{Live: true, Pid: d.ProcessID(), IP: ctx.IP}, nil

	default:
		return nil, fmt.Errorf("rpc: unknown command %T", cmd)
	}
}

// parseSymbolAddr reports whether symbol is a hex-encoded absolute
// address (spec.md §6: "a string that parses as hex is treated as an
// absolute address; otherwise it is a function name"), and if so its
// value.
func parseSymbolAddr(symbol string) (addr uint64, ok bool) {
	s := strings.TrimPrefix(strings.TrimPrefix(symbol, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
