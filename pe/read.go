// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import "bytes"

// ReadNullTerminatedStringAt reads an ASCII/Latin-1 C string starting at
// rva and ending at (not including) the first 0x00 byte.
func (img *Image) ReadNullTerminatedStringAt(rva RVA) (string, error) {
	offset := uint32(rva)
	if offset >= uint32(len(img.data)) {
		return "", ErrOutOfBounds
	}
	rest := img.data[offset:]
	n := bytes.IndexByte(rest, 0)
	if n < 0 {
		return "", ErrOutOfBounds
	}
	return string(rest[:n]), nil
}

// ReadHeuristicStringAt reads a printable string at rva, ending at the
// first NUL. It reports false, discarding whatever it read so far, the
// moment it hits a non-printable byte or runs off the image boundary
// before finding the terminator — every byte up to the NUL must be
// printable ASCII or the whole read is rejected. This suits callers
// sniffing unstructured memory (export forwarder strings, resource
// names) where a non-printable byte means "not a string after all",
// not a partial one.
func (img *Image) ReadHeuristicStringAt(rva RVA) (string, bool) {
	offset := uint32(rva)
	var out []byte
	for {
		if offset >= uint32(len(img.data)) {
			return "", false
		}
		c := img.data[offset]
		if c == 0 {
			return string(out), true
		}
		if c < 0x20 || c >= 0x7F {
			return "", false
		}
		out = append(out, c)
		offset++
	}
}
