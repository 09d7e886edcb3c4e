// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import "errors"

// Sentinel parse errors, checked with errors.Is. The set mirrors the
// taxonomy spec.md §7 requires, plus ErrUnsupportedMachine for PE32+
// images.
var (
	// ErrOutOfBounds is returned when a read would fall outside the
	// backing image buffer.
	ErrOutOfBounds = errors.New("pe: read out of bounds")

	// ErrWrongSignature is returned when the PE signature at e_lfanew is
	// not "PE\x00\x00".
	ErrWrongSignature = errors.New("pe: wrong PE signature")

	// ErrBadEncoding names a field that fails to decode as valid
	// little-endian data of its expected shape, kept distinct from
	// ErrOutOfBounds. No parse path in this package returns it.
	ErrBadEncoding = errors.New("pe: bad encoding")

	// ErrUnsupportedMachine is returned by FromBytes for a PE32+ image
	// (optional-header magic 0x20b); the COFF Machine field itself is not
	// checked.
	ErrUnsupportedMachine = errors.New("pe: unsupported machine type")
)
