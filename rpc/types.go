// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpc defines the request/response shapes of every command the
// external script host issues against a running Debugger, and the
// Dispatch function that executes one. For regularity, each command has
// its own Request and Response type even when one would barely need
// it, following golang-debug's program/proxyrpc package.
package rpc

import "github.com/scriptdbg/scriptdbg/knownapi"

// Command is any of the *Request types in this package.
type Command interface{}

type InitRequest struct {
	Path string
}

type InitResponse struct{}

type GoRequest struct{}

type GoResponse struct{}

type StepRequest struct{}

type StepResponse struct{}

type GoUntilUsesMemRequest struct {
	Addr uint64
}

type GoUntilUsesMemResponse struct{}

// AddBreakpointRequest's Symbol is either a string that parses as hex
// (an absolute address) or a function name to resolve against loaded
// modules, per spec.md §6.
type AddBreakpointRequest struct {
	Symbol string
	Once   bool
}

type AddBreakpointResponse struct {
	Handle int
}

type AddMemoryBreakpointRequest struct {
	Addr uint64
}

type AddMemoryBreakpointResponse struct {
	Handle int
}

// DeleteBreakpointRequest is supplemental: named in milkdbg/src/main.rs's
// command set but dropped from spec.md's distilled table.
type DeleteBreakpointRequest struct {
	Handle int
}

type DeleteBreakpointResponse struct{}

type GetThreadContextRequest struct{}

type GetThreadContextResponse struct {
	IP, SP, BP     uint64
	AX, BX, CX, DX uint64
	SI, DI         uint64
}

// ReadMemoryRequest's Type is one of "u8", "u16", "u32", "f32".
type ReadMemoryRequest struct {
	Type string
	Addr uint64
}

type ReadMemoryResponse struct {
	Value interface{}
}

type ReadArrayMemoryRequest struct {
	Type  string
	Count int
	Addr  uint64
}

type ReadArrayMemoryResponse struct {
	Values []interface{}
}

type CurrentStackFrameRequest struct{}

type CurrentStackFrameResponse struct {
	Call *knownapi.Call
}

type GetCurrentInstructionStringRequest struct{}

type GetCurrentInstructionStringResponse struct {
	Text string
}

type WriteFileRequest struct {
	Path string
	Data []byte
}

type WriteFileResponse struct{}

type GetFunctionAtRequest struct {
	Addr uint64
}

type GetFunctionAtResponse struct {
	Call knownapi.Call
}

type TraceFunctionAtRequest struct {
	Addr uint64
}

type TraceFunctionAtResponse struct{}

// StatusRequest/StatusResponse is supplemental: spec.md's table only
// implies a liveness check ("Init... after first go returns"). Grounded
// on golang-debug's program.Status{PC, SP}, reused by nearly every
// program.Program method as a minimal snapshot a script host can poll
// before issuing Go/Step.
type StatusRequest struct{}

type StatusResponse struct {
	Live bool
	Pid  uint32
	IP   uint64
}
