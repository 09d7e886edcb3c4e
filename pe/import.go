// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import "encoding/binary"

// ImportDescriptor is one image_import_descriptor: a single imported DLL
// and the two parallel thunk arrays (original/"import name table" and
// the rewritable "import address table") describing what it pulls in.
type ImportDescriptor struct {
	OriginalFirstThunk RVA // import name table
	TimeDateStamp      uint32
	ForwarderChain     uint32
	Name               RVA
	FirstThunk         RVA // import address table
}

// ThunkKind distinguishes an import-by-ordinal thunk from an
// import-by-name thunk.
type ThunkKind int

const (
	ThunkOrdinal ThunkKind = iota
	ThunkName
)

// ThunkData is a resolved import thunk: either a bare ordinal or a
// hint/name pair read from the image's hint/name table.
type ThunkData struct {
	Kind    ThunkKind
	Ordinal uint32
	Hint    uint16
	Name    string
}

const thunkOrdinalFlag = 0x80000000

// GetImports walks the import directory (DataDirectory[DirectoryEntryImport])
// and returns one ImportDescriptor per imported DLL, stopping at the
// zero-filled descriptor that terminates the array.
func (img *Image) GetImports() ([]ImportDescriptor, error) {
	d := img.DataDirectory(DirectoryEntryImport)
	if d.VirtualAddress == 0 {
		return nil, nil
	}

	var out []ImportDescriptor
	rva := RVA(d.VirtualAddress)
	size := uint32(binary.Size(ImportDescriptor{}))
	for {
		desc, err := ReadAt[ImportDescriptor](img, rva)
		if err != nil {
			return nil, err
		}
		if desc.OriginalFirstThunk == 0 && desc.FirstThunk == 0 {
			break
		}
		out = append(out, desc)
		rva += RVA(size)
	}
	return out, nil
}

// GetIAT returns the import descriptors reachable from the dedicated IAT
// data directory (DirectoryEntryIAT), supplementing GetImports with the
// post-load, rewritten address table some images keep separate from
// their import name table.
func (img *Image) GetIAT() ([]ImportDescriptor, error) {
	d := img.DataDirectory(DirectoryEntryIAT)
	if d.VirtualAddress == 0 {
		return nil, nil
	}

	var out []ImportDescriptor
	rva := RVA(d.VirtualAddress)
	size := uint32(binary.Size(ImportDescriptor{}))
	for {
		desc, err := ReadAt[ImportDescriptor](img, rva)
		if err != nil {
			return nil, err
		}
		if desc.OriginalFirstThunk == 0 && desc.FirstThunk == 0 {
			break
		}
		out = append(out, desc)
		rva += RVA(size)
	}
	return out, nil
}

// RawThunksOf returns the raw thunk words for an import descriptor's name
// table (original=true) or address table (original=false), up to but
// not including the zero word that terminates the array.
func (img *Image) RawThunksOf(desc ImportDescriptor, original bool) ([]uint32, error) {
	rva := desc.FirstThunk
	if original {
		rva = desc.OriginalFirstThunk
	}
	var out []uint32
	offset := uint32(rva)
	for {
		v, err := img.ReadUint32(offset)
		if err != nil {
			return nil, err
		}
		if v == 0 {
			break
		}
		out = append(out, v)
		offset += 4
	}
	return out, nil
}

// ResolveThunk interprets a raw 32-bit thunk word. Bit 31 set means the
// low 31 bits are an ordinal; otherwise the word is an RVA to a
// {u16 hint, ASCII name} pair in the image's hint/name table.
func (img *Image) ResolveThunk(raw uint32) (ThunkData, error) {
	if raw&thunkOrdinalFlag != 0 {
		return ThunkData{Kind: ThunkOrdinal, Ordinal: raw &^ thunkOrdinalFlag}, nil
	}

	hint, err := img.ReadUint16(raw)
	if err != nil {
		return ThunkData{}, err
	}
	name, err := img.ReadNullTerminatedStringAt(RVA(raw + 2))
	if err != nil {
		return ThunkData{}, err
	}
	return ThunkData{Kind: ThunkName, Hint: hint, Name: name}, nil
}
