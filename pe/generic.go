// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import "encoding/binary"

// ReadAt decodes a fixed-size little-endian struct of type T at rva. It
// replaces the single-purpose structUnpack calls GetExportSection and
// GetImports/GetIAT used to make one at a time, since all three do the
// same thing: unpack one fixed-layout record out of the image at a
// given RVA.
func ReadAt[T any](img *Image, rva RVA) (T, error) {
	var v T
	err := img.structUnpack(&v, uint32(rva), uint32(binary.Size(v)))
	return v, err
}
