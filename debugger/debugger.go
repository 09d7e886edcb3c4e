// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugger

import (
	"log"
	"math"
	"os"
	"runtime"

	"github.com/scriptdbg/scriptdbg/arch"
	"github.com/scriptdbg/scriptdbg/disasm"
	"github.com/scriptdbg/scriptdbg/knownapi"
	"github.com/scriptdbg/scriptdbg/modules"
	"github.com/scriptdbg/scriptdbg/pe"
)

// defaultImageBase is the load address assumed for the entry-point RVA
// when a module's own OptionalHeader.ImageBase isn't consulted, matching
// milkdbg/src/debugger/debugger.rs's literal to_va(0x400000).
const defaultImageBase = 0x400000

// Debugger drives a single debuggee through its full lifecycle: launch,
// event loop, breakpoint install/hit/step-over, and known-API capture.
// Every exported method except WriteFile, EntryPoint and ProcessID
// submits its work to a single dedicated worker goroutine, adapted from
// the teacher's program/server/ptrace.go ptraceRun: an unbuffered
// fc/ec channel pair and runtime.LockOSThread, generalized from ptrace
// calls to the Target interface.
type Debugger struct {
	target Target

	process    uint32
	currentTID uint32
	entryPoint uint64

	modules   *modules.Registry
	knownAPIs *knownapi.Database

	breakpoints           []Breakpoint
	breakpointsByLocation map[uint64]int
	unresolved            []unresolvedBreakpoint

	stepping Stepping

	lastEvent     DebugEvent
	haveLastEvent bool

	currentKnownCall *knownapi.Call

	fc chan func() error
	ec chan error
}

// New creates a Debugger that talks to its debuggee through target. The
// known-API catalog is loaded immediately; a malformed embedded
// descriptor is a programmer error, not a runtime condition to recover
// from.
func New(target Target) (*Debugger, error) {
	db, err := knownapi.Load()
	if err != nil {
		return nil, err
	}

	d := &Debugger{
		target:                target,
		knownAPIs:             db,
		breakpointsByLocation: make(map[uint64]int),
		fc:                    make(chan func() error),
		ec:                    make(chan error),
	}
	d.modules = modules.NewRegistry(d.readMemory)

	go d.run()
	return d, nil
}

func (d *Debugger) run() {
	runtime.LockOSThread()
	for f := range d.fc {
		d.ec <- f()
	}
}

// submit hands f to the worker goroutine and blocks for its result. Every
// exported operation below except WriteFile, EntryPoint and ProcessID
// goes through submit, so breakpoint state, the
// module registry, and the event loop are only ever touched from the one
// goroutine that owns the target — no locks, per spec.md §5.
func (d *Debugger) submit(f func() error) error {
	d.fc <- f
	return <-d.ec
}

func (d *Debugger) readMemory(addr uint64, n int) ([]byte, error) {
	return d.target.ReadMemory(addr, n)
}

// Start parses path's PE image from disk for its entry-point RVA,
// launches it suspended under the debug flag, attaches, and resumes the
// initial thread. It does not drive the event loop itself — call Go
// afterward, matching the teacher's separation of start() from go().
func (d *Debugger) Start(path string) error {
	return d.submit(func() error { return d.start(path) })
}

func (d *Debugger) start(path string) error {
	img, err := pe.Open(path)
	if err != nil {
		return err
	}
	defer img.Close()
	d.entryPoint = img.Opt.AddressOfEntryPoint.VA(defaultImageBase)

	pid, tid, err := d.target.CreateDebugProcess(path)
	if err != nil {
		return err
	}
	d.process = pid
	d.currentTID = tid

	wow64, err := d.target.IsWow64()
	if err != nil {
		return err
	}
	if !wow64 {
		return ErrUnsupported64BitTarget
	}

	// DEBUG_PROCESS already attaches the caller as debugger; this call
	// mirrors the source's unconditional attach() anyway and its error,
	// if any, is not fatal.
	_ = d.target.DebugActiveProcess(pid)

	return d.target.ResumeMainThread()
}

// Go drives the debug-event loop, continuing the previously pending
// event (if any) and dispatching events until a user-visible stop
// condition is reached or the target exits.
func (d *Debugger) Go() error {
	return d.submit(d.goLoop)
}

// Step arms the trap flag on the current thread for exactly one
// instruction and drives the loop until that single step completes.
func (d *Debugger) Step() error {
	return d.submit(func() error {
		if err := d.target.SetTrapFlag(d.currentTID, true, nil); err != nil {
			return err
		}
		d.stepping.UserRequested = true
		return d.goLoop()
	})
}

// GoUntilUsesMem arms a hardware data breakpoint at addr and repeatedly
// drives the loop until the watched thread's Dr6 reports a hit.
func (d *Debugger) GoUntilUsesMem(addr uint64) error {
	return d.submit(func() error {
		if err := d.target.SetHardwareBreakpoint(d.currentTID, addr); err != nil {
			return err
		}
		for {
			if err := d.goLoop(); err != nil {
				return err
			}
			ctx, err := d.target.GetThreadContext(d.currentTID)
			if err != nil {
				return err
			}
			if ctx.DR6 != 0 {
				return nil
			}
		}
	})
}

// goLoop is the core event loop (spec.md §4.3.2): continue the previous
// event, wait for the next one, dispatch, repeat until dispatch reports a
// stop.
func (d *Debugger) goLoop() error {
	d.currentKnownCall = nil

	for {
		if d.haveLastEvent && d.lastEvent.ProcessID != 0 {
			if err := d.target.ContinueDebugEvent(d.lastEvent.ProcessID, d.lastEvent.ThreadID, true); err != nil {
				return err
			}
		}

		ev, err := d.target.WaitForDebugEvent()
		if err != nil {
			return err
		}
		d.lastEvent = ev
		d.haveLastEvent = true
		d.currentTID = ev.ThreadID

		stop, err := d.dispatch(ev)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

func (d *Debugger) dispatch(ev DebugEvent) (bool, error) {
	switch ev.Kind {
	case EventCreateProcess:
		d.process = ev.ProcessID
		if err := d.modules.LoadModule(ev.ModuleBase, ev.ModuleSize, ev.ModuleName); err != nil {
			log.Printf("debugger: loading %s: %v", ev.ModuleName, err)
		}
		d.tryResolveBreakpoints()
		return false, nil

	case EventCreateThread:
		return false, nil

	case EventLoadDLL:
		if err := d.modules.LoadModule(ev.ModuleBase, ev.ModuleSize, ev.ModuleName); err != nil {
			log.Printf("debugger: loading %s: %v", ev.ModuleName, err)
		}
		d.tryResolveBreakpoints()
		return false, nil

	case EventUnloadDLL:
		return false, nil

	case EventOutputDebugString:
		log.Printf("debugger: output: %s", ev.DebugString)
		return false, nil

	case EventExitThread, EventRip:
		return false, nil

	case EventExitProcess:
		return true, nil

	case EventException:
		return d.dispatchException(ev)

	default:
		log.Printf("debugger: unknown debug event %d", ev.Kind)
		return false, nil
	}
}

func (d *Debugger) dispatchException(ev DebugEvent) (bool, error) {
	switch ev.ExceptionCode {
	case ExceptionBreakpoint, ExceptionBreakpointWow64:
		return d.handleBreakpointHit(ev.ExceptionAddr)

	case ExceptionSingleStep, ExceptionSingleStepWow64:
		return d.handleSingleStep()

	case ExceptionAccessViolation:
		return true, nil

	default:
		log.Printf("debugger: exception code 0x%X at 0x%X", ev.ExceptionCode, ev.ExceptionAddr)
		return false, nil
	}
}

func (d *Debugger) handleBreakpointHit(addr uint64) (bool, error) {
	idx, ok := d.breakpointsByLocation[addr]
	if !ok {
		// Third-party INT3 (e.g. the loader's init breakpoint); not
		// ours to handle.
		return false, nil
	}
	b := &d.breakpoints[idx]

	if err := d.restoreOriginal(b); err != nil {
		return false, err
	}
	if err := d.target.SetTrapFlag(d.currentTID, true, &addr); err != nil {
		return false, err
	}
	d.stepping.Kind = StepOverBreakpoint
	d.stepping.Handle = idx

	switch b.Kind {
	case BreakpointKnownAPI:
		ctx, err := d.target.GetThreadContext(d.currentTID)
		if err == nil {
			call, err := b.API.Capture(ctx.SP, d.readMemory)
			if err != nil {
				log.Printf("debugger: capturing %s: %v", b.API.Name, err)
			} else {
				log.Printf("debugger: known call: %s", call.Name)
				d.currentKnownCall = &call
			}
		}
	case BreakpointSimple:
		if b.Trace {
			if pc, inst := d.modules.GetInstructionAt(addr); inst != nil {
				ctx, err := d.target.GetThreadContext(d.currentTID)
				if err == nil {
					log.Printf("0x%X %s", pc, disasm.Format(*inst, ctx, d.readMemory))
				}
			}
		}
	}

	if b.Kind == BreakpointSimple && b.Go {
		return false, nil
	}
	return true, nil
}

func (d *Debugger) handleSingleStep() (bool, error) {
	_ = d.target.SetTrapFlag(d.currentTID, false, nil)

	reinstallWasGo := false
	if d.stepping.Kind == StepOverBreakpoint {
		idx := d.stepping.Handle
		if idx >= 0 && idx < len(d.breakpoints) {
			b := &d.breakpoints[idx]
			if err := d.reactivateBreakpoint(b); err != nil {
				return false, err
			}
			if b.Kind == BreakpointSimple && b.Go {
				reinstallWasGo = true
			}
		}
		d.stepping.Kind = StepIdle
		d.stepping.Handle = 0
	}

	if reinstallWasGo {
		d.stepping.UserRequested = false
		return false, nil
	}

	if d.stepping.UserRequested {
		d.stepping.UserRequested = false
		return true, nil
	}

	// Neither a go-through breakpoint reinstall nor an explicit user
	// step: the remaining reason a single-step exception fires is a
	// hardware data breakpoint, reported through Dr6 (spec.md §8
	// scenario 5 / GoUntilUsesMem).
	if ctx, err := d.target.GetThreadContext(d.currentTID); err == nil && ctx.DR6 != 0 {
		return true, nil
	}
	return false, nil
}

func (d *Debugger) setCC(location uint64) (byte, error) {
	orig, err := d.target.ReadMemory(location, 1)
	if err != nil {
		return 0, err
	}
	instr := arch.X86.BreakpointInstr[:arch.X86.BreakpointSize]
	if err := d.target.WriteMemory(location, instr); err != nil {
		return 0, err
	}
	return orig[0], nil
}

func (d *Debugger) restoreOriginal(b *Breakpoint) error {
	switch b.Kind {
	case BreakpointSimple, BreakpointKnownAPI:
		return d.target.WriteMemory(b.Location, []byte{b.OriginalByte})
	default:
		return nil
	}
}

func (d *Debugger) reactivateBreakpoint(b *Breakpoint) error {
	switch b.Kind {
	case BreakpointSimple:
		if b.Once {
			return nil
		}
		_, err := d.setCC(b.Location)
		return err
	case BreakpointKnownAPI:
		_, err := d.setCC(b.Location)
		return err
	default:
		return nil
	}
}

// AddBreakpointSimple installs a software breakpoint at location.
func (d *Debugger) AddBreakpointSimple(location uint64, once bool) (int, error) {
	var handle int
	err := d.submit(func() error {
		orig, err := d.setCC(location)
		if err != nil {
			return err
		}
		handle = d.appendBreakpoint(Breakpoint{Kind: BreakpointSimple, Location: location, OriginalByte: orig, Once: once})
		return nil
	})
	return handle, err
}

// AddBreakpointTrace installs a breakpoint that prints the current
// instruction at each hit and resumes automatically without surfacing.
func (d *Debugger) AddBreakpointTrace(location uint64, once bool) (int, error) {
	var handle int
	err := d.submit(func() error {
		orig, err := d.setCC(location)
		if err != nil {
			return err
		}
		handle = d.appendBreakpoint(Breakpoint{Kind: BreakpointSimple, Location: location, OriginalByte: orig, Once: once, Trace: true, Go: true})
		return nil
	})
	return handle, err
}

// AddBreakpointKnownAPI installs a breakpoint that captures a structured
// call record at hit, decoded per api's argument descriptors.
func (d *Debugger) AddBreakpointKnownAPI(location uint64, api knownapi.API) (int, error) {
	var handle int
	err := d.submit(func() error {
		orig, err := d.setCC(location)
		if err != nil {
			return err
		}
		handle = d.appendBreakpoint(Breakpoint{Kind: BreakpointKnownAPI, Location: location, OriginalByte: orig, API: api})
		return nil
	})
	return handle, err
}

// AddBreakpointMemory arms a hardware data breakpoint at location on the
// current thread. It does not allocate a breakpoint handle — Dr0/Dr7
// hold at most one active watchpoint per thread, mirroring the source's
// add_breakpoint_memory, which always returns handle 0.
func (d *Debugger) AddBreakpointMemory(location uint64) (int, error) {
	err := d.submit(func() error {
		return d.target.SetHardwareBreakpoint(d.currentTID, location)
	})
	return 0, err
}

// AddBreakpointSymbol queues a symbolic breakpoint, attempting immediate
// resolution against already-loaded modules and retrying on every
// subsequent module load.
func (d *Debugger) AddBreakpointSymbol(symbol string) (int, error) {
	var handle int
	err := d.submit(func() error {
		handle = d.appendBreakpoint(Breakpoint{Kind: BreakpointUnresolved, Symbol: symbol})
		d.unresolved = append(d.unresolved, unresolvedBreakpoint{symbol: symbol, slot: handle})
		d.tryResolveBreakpoints()
		return nil
	})
	return handle, err
}

func (d *Debugger) appendBreakpoint(b Breakpoint) int {
	handle := len(d.breakpoints)
	d.breakpoints = append(d.breakpoints, b)
	if b.Kind != BreakpointUnresolved {
		d.breakpointsByLocation[b.Location] = handle
	}
	return handle
}

// DeleteBreakpoint restores the original byte (if installed) and removes
// handle's location from the dispatch index, leaving the slot a
// tombstone. Supplemental operation, from milkdbg/src/main.rs — not in
// spec.md's command table because the distillation dropped it.
func (d *Debugger) DeleteBreakpoint(handle int) error {
	return d.submit(func() error {
		if handle < 0 || handle >= len(d.breakpoints) {
			return ErrUnknownBreakpoint
		}
		b := &d.breakpoints[handle]
		if b.Kind != BreakpointUnresolved {
			if err := d.restoreOriginal(b); err != nil {
				return err
			}
			delete(d.breakpointsByLocation, b.Location)
		}
		d.breakpoints[handle] = Breakpoint{Kind: BreakpointUnresolved}
		return nil
	})
}

// tryResolveBreakpoints retries every pending symbolic breakpoint against
// the module registry, replacing its placeholder slot in place with an
// installed Simple or KnownAPI breakpoint on success (spec.md §4.3.4).
func (d *Debugger) tryResolveBreakpoints() {
	var still []unresolvedBreakpoint
	for _, u := range d.unresolved {
		addr, ok := d.modules.GetFunctionAddr(u.symbol)
		if !ok {
			still = append(still, u)
			continue
		}

		orig, err := d.setCC(addr)
		if err != nil {
			log.Printf("debugger: resolving %s: %v", u.symbol, err)
			still = append(still, u)
			continue
		}

		bp := Breakpoint{Kind: BreakpointSimple, Location: addr, OriginalByte: orig}
		if fn := d.modules.GetFunctionAt(addr); fn != nil {
			if api, ok := d.knownAPIs.Lookup(fn.Name); ok {
				bp = Breakpoint{Kind: BreakpointKnownAPI, Location: addr, OriginalByte: orig, API: api}
			}
		}
		d.breakpoints[u.slot] = bp
		d.breakpointsByLocation[addr] = u.slot
		log.Printf("debugger: resolved breakpoint %q at 0x%X", u.symbol, addr)
	}
	d.unresolved = still
}

// TraceFunctionAt installs a trace breakpoint at the start of every
// instruction in the function covering addr.
func (d *Debugger) TraceFunctionAt(addr uint64) error {
	return d.submit(func() error {
		batch := d.modules.GetInstructionsAt(addr)
		if batch == nil {
			return ErrNoFunction
		}
		cur := batch.Addr
		for _, inst := range batch.Insts {
			orig, err := d.setCC(cur)
			if err != nil {
				return err
			}
			d.appendBreakpoint(Breakpoint{Kind: BreakpointSimple, Location: cur, OriginalByte: orig, Trace: true, Go: true})
			cur += uint64(inst.Len)
		}
		return nil
	})
}

// GetCurrentThreadContext returns the current thread's normalized
// register view.
func (d *Debugger) GetCurrentThreadContext() (arch.ThreadContext, error) {
	var ctx arch.ThreadContext
	err := d.submit(func() error {
		var err error
		ctx, err = d.target.GetThreadContext(d.currentTID)
		return err
	})
	return ctx, err
}

// GetCurrentInstructionString formats the instruction at the current IP
// with live operand annotations.
func (d *Debugger) GetCurrentInstructionString() (string, error) {
	var out string
	err := d.submit(func() error {
		ctx, err := d.target.GetThreadContext(d.currentTID)
		if err != nil {
			return err
		}
		_, inst := d.modules.GetInstructionAt(ctx.IP)
		if inst == nil {
			return ErrNoInstruction
		}
		out = disasm.Format(*inst, ctx, d.readMemory)
		return nil
	})
	return out, err
}

// ReadMemory reads one scalar of typ ("u8", "u16", "u32", "f32") from
// addr in the debuggee.
func (d *Debugger) ReadMemory(typ string, addr uint64) (interface{}, error) {
	var out interface{}
	err := d.submit(func() error {
		v, err := readScalar(typ, addr, d.readMemory)
		out = v
		return err
	})
	return out, err
}

// ReadArrayMemory reads count consecutive scalars of typ starting at
// addr.
func (d *Debugger) ReadArrayMemory(typ string, count int, addr uint64) ([]interface{}, error) {
	var out []interface{}
	err := d.submit(func() error {
		size, ok := scalarSize(typ)
		if !ok {
			return ErrUnknownReadType
		}
		out = make([]interface{}, 0, count)
		for i := 0; i < count; i++ {
			v, err := readScalar(typ, addr+uint64(i*size), d.readMemory)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

func scalarSize(typ string) (int, bool) {
	switch typ {
	case "u8":
		return 1, true
	case "u16":
		return 2, true
	case "u32", "f32":
		return 4, true
	default:
		return 0, false
	}
}

func readScalar(typ string, addr uint64, read modules.MemReader) (interface{}, error) {
	switch typ {
	case "u8":
		b, err := read(addr, 1)
		if err != nil {
			return nil, err
		}
		return b[0], nil
	case "u16":
		b, err := read(addr, 2)
		if err != nil {
			return nil, err
		}
		return uint16(b[0]) | uint16(b[1])<<8, nil
	case "u32":
		b, err := read(addr, 4)
		if err != nil {
			return nil, err
		}
		return le32(b), nil
	case "f32":
		b, err := read(addr, 4)
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(le32(b)), nil
	default:
		return nil, ErrUnknownReadType
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// CurrentStackFrame returns the most recently captured known-API call,
// or nil if none is pending (e.g. the last stop wasn't a KnownAPI hit).
func (d *Debugger) CurrentStackFrame() (*knownapi.Call, error) {
	var out *knownapi.Call
	err := d.submit(func() error {
		out = d.currentKnownCall
		return nil
	})
	return out, err
}

// GetFunctionAt resolves addr to its covering function, returning a
// known-call shape: the function's name, and its captured arguments (via
// the current thread's stack pointer) if a known-API descriptor matches
// its name, otherwise just the name.
func (d *Debugger) GetFunctionAt(addr uint64) (knownapi.Call, error) {
	var out knownapi.Call
	err := d.submit(func() error {
		fn := d.modules.GetFunctionAt(addr)
		if fn == nil {
			return ErrNoFunction
		}
		api, ok := d.knownAPIs.Lookup(fn.Name)
		if !ok {
			out = knownapi.Call{Name: fn.Name, Args: map[string]interface{}{}}
			return nil
		}
		ctx, err := d.target.GetThreadContext(d.currentTID)
		if err != nil {
			return err
		}
		call, err := api.Capture(ctx.SP, d.readMemory)
		out = call
		return err
	})
	return out, err
}

// WriteFile writes data to a new or truncated file at path in the
// debugger's own (not the debuggee's) filesystem — used by a script host
// to persist a memory dump or trace log. Supplemental operation named in
// spec.md §6's command table without further OS-primitive detail; backed
// directly by os.WriteFile.
func (d *Debugger) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// EntryPoint returns the absolute address of the launched image's entry
// point, as recorded by Start.
func (d *Debugger) EntryPoint() uint64 { return d.entryPoint }

// ProcessID returns the debuggee's process identifier.
func (d *Debugger) ProcessID() uint32 { return d.process }
