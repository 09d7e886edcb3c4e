// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package knownapi catalogs calling-convention descriptors for well-known
// Windows API functions, so a breakpoint hit on one of them can be
// decoded into named, typed arguments instead of a bare stack dump. The
// catalog is loaded once from JSON descriptors embedded in the binary.
package knownapi

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed apis/*.json
var apisFS embed.FS

// descriptorFile mirrors one JSON descriptor file's top-level shape.
type descriptorFile struct {
	Functions []struct {
		Name   string `json:"Name"`
		Params []struct {
			Name string `json:"Name"`
			Type struct {
				Name string `json:"Name"`
			} `json:"Type"`
		} `json:"Params"`
	} `json:"Functions"`
}

// ArgType is the decoded shape of one known argument.
type ArgType int

const (
	ArgU32 ArgType = iota
	ArgUTF8String
	ArgUTF16String
)

// ArgLocation is where an argument lives relative to a register at a
// breakpoint hit. Only ESP-relative stack locations are modeled: every
// descriptor in this catalog targets a cdecl/stdcall 32-bit calling
// convention, where arguments sit above the return address on the
// stack.
type ArgLocation struct {
	Offset int32 // e.g. -4 for the first stack argument
}

// Arg is one named, typed, located argument of a known API.
type Arg struct {
	Name     string
	Type     ArgType
	Location ArgLocation
}

// API is a known function's full calling-convention descriptor.
type API struct {
	Name string
	Args []Arg
}

// Database is the loaded catalog of known APIs, indexed by name.
type Database struct {
	byName map[string]API
}

// Load parses every embedded *.json descriptor file and returns the
// resulting catalog. A malformed descriptor file fails the whole load —
// the catalog is meant to be a small, hand-curated, and trustworthy set
// shipped with the binary, not user-supplied input that needs partial
// recovery.
func Load() (*Database, error) {
	entries, err := apisFS.ReadDir("apis")
	if err != nil {
		return nil, err
	}

	db := &Database{byName: make(map[string]API)}
	for _, e := range entries {
		b, err := apisFS.ReadFile("apis/" + e.Name())
		if err != nil {
			return nil, err
		}
		var f descriptorFile
		if err := json.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("knownapi: %s: %w", e.Name(), err)
		}
		for _, fn := range f.Functions {
			api := API{Name: fn.Name}
			offset := int32(-4)
			for _, p := range fn.Params {
				api.Args = append(api.Args, Arg{
					Name:     p.Name,
					Type:     typeFromName(p.Type.Name),
					Location: ArgLocation{Offset: offset},
				})
				offset -= 4
			}
			db.byName[fn.Name] = api
		}
	}
	return db, nil
}

func typeFromName(name string) ArgType {
	switch name {
	case "PSTR":
		return ArgUTF8String
	case "PWSTR":
		return ArgUTF16String
	default:
		return ArgU32
	}
}

// Lookup returns the descriptor registered under name, if any.
func (db *Database) Lookup(name string) (API, bool) {
	api, ok := db.byName[name]
	return api, ok
}
