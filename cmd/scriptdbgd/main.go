// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows
// +build windows

// Command scriptdbgd launches a target under the debugger and drives it
// to its first stop. It is not an interactive front end — the script
// host that issues further rpc.Command values over whatever transport
// it chooses is out of this module's scope.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/scriptdbg/scriptdbg/debugger"
	"github.com/scriptdbg/scriptdbg/rpc"
)

var pathFlag = flag.String("path", "", "path to the executable to launch and debug")

func main() {
	log.SetFlags(0)
	log.SetPrefix("scriptdbgd: ")
	flag.Parse()
	if *pathFlag == "" {
		fmt.Fprintln(os.Stderr, "scriptdbgd: -path is required")
		flag.Usage()
		os.Exit(2)
	}

	d, err := debugger.New(debugger.NewWinTarget())
	if err != nil {
		log.Fatalf("debugger.New: %v", err)
	}
	worker := rpc.NewWorker(d)

	if _, err := worker.Submit(rpc.InitRequest{Path: *pathFlag}); err != nil {
		log.Fatalf("Init: %v", err)
	}

	resp, err := worker.Submit(rpc.StatusRequest{})
	if err != nil {
		log.Fatalf("Status: %v", err)
	}
	status := resp.(rpc.StatusResponse)
	log.Printf("stopped: pid=%d ip=%#x live=%v", status.Pid, status.IP, status.Live)
}
