// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package knownapi

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

// maxUTF16Units bounds a UTF-16 string read to 1024 code units, matching
// the source's read_utf16_string_char_by_char_unchecked: a runaway
// pointer into unmapped or non-string memory must not hang the reader.
const maxUTF16Units = 1024

// MemReader reads n bytes of the debuggee's address space starting at
// addr.
type MemReader func(addr uint64, n int) ([]byte, error)

// Call is a captured known-API invocation: the function name and its
// arguments, decoded and keyed by parameter name.
type Call struct {
	Name string
	Args map[string]interface{}
}

// Capture reads a known API's arguments off the stack at a breakpoint
// hit. esp is the stack pointer at function entry (pointing at the
// return address, so the first argument is at esp+4, per cdecl/stdcall
// convention); read accesses
// the target's memory.
func (api API) Capture(esp uint64, read MemReader) (Call, error) {
	call := Call{Name: api.Name, Args: make(map[string]interface{}, len(api.Args))}
	for _, a := range api.Args {
		addr := uint64(int64(esp) - int64(a.Location.Offset))
		v, err := a.readValue(addr, read)
		if err != nil {
			return Call{}, err
		}
		call.Args[a.Name] = v
	}
	return call, nil
}

func (a Arg) readValue(addr uint64, read MemReader) (interface{}, error) {
	raw, err := read(addr, 4)
	if err != nil {
		return nil, err
	}
	word := binary.LittleEndian.Uint32(raw)

	switch a.Type {
	case ArgU32:
		return word, nil
	case ArgUTF8String:
		return readUTF8String(uint64(word), read), nil
	case ArgUTF16String:
		return readUTF16String(uint64(word), read), nil
	default:
		return word, nil
	}
}

// readUTF8String stops at the first byte outside the printable ASCII
// range, matching the source's "unchecked" reader: a string argument
// pointing at non-string memory degrades to a short, harmless prefix
// rather than erroring the whole capture.
func readUTF8String(addr uint64, read MemReader) string {
	if addr == 0 {
		return ""
	}
	var out []byte
	for {
		b, err := read(addr, 1)
		if err != nil || len(b) == 0 || b[0] < 0x20 || b[0] >= 0x7F {
			break
		}
		out = append(out, b[0])
		addr++
	}
	return string(out)
}

// readUTF16String reads little-endian UTF-16 code units until a 0x0000
// terminator, the 1024-unit cap, or a read failure, then decodes the
// accumulated bytes with golang.org/x/text's UTF-16 decoder.
func readUTF16String(addr uint64, read MemReader) string {
	if addr == 0 {
		return ""
	}
	var raw []byte
	for i := 0; i < maxUTF16Units; i++ {
		b, err := read(addr, 2)
		if err != nil || len(b) < 2 {
			break
		}
		if b[0] == 0 && b[1] == 0 {
			break
		}
		raw = append(raw, b[0], b[1])
		addr += 2
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return string(decoded)
}
