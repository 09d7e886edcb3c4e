// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

// ExportDirectory is the image_export_directory pointed to by
// DirectoryEntryExport.
type ExportDirectory struct {
	Characteristics      uint32
	TimeDateStamp        uint32
	MajorVersion         uint16
	MinorVersion         uint16
	Name                 RVA
	Base                 uint32
	NumberOfFunctions    uint32
	NumberOfNames        uint32
	AddressOfFunctions   RVA
	AddressOfNames       RVA
	AddressOfNameOrdinals RVA
}

// ExportedFunction is one resolved entry of a module's export table: the
// ordinal, its name if the module exports one, the RVA of the code (or
// the forwarder string if the export is forwarded to another module).
type ExportedFunction struct {
	Ordinal   uint32
	Name      string
	RVA       RVA
	Forwarder string // non-empty if this export forwards to another DLL
}

// GetExportSection returns the module's export directory. A module with
// no export table (DataDirectory[DirectoryEntryExport].VirtualAddress ==
// 0) returns (nil, nil) — this is a normal, common case, not an error.
func (img *Image) GetExportSection() (*ExportDirectory, error) {
	d := img.DataDirectory(DirectoryEntryExport)
	if d.VirtualAddress == 0 {
		return nil, nil
	}
	sec, err := ReadAt[ExportDirectory](img, RVA(d.VirtualAddress))
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

// GetExports walks AddressOfFunctions/AddressOfNames/AddressOfNameOrdinals
// and returns every resolved export. Forwarder detection follows the PE
// spec's rule: an export whose RVA falls inside the export directory's
// own [VirtualAddress, VirtualAddress+Size) range isn't code, it's an
// ASCII "DLLNAME.FuncName" forwarder string at that RVA.
func (img *Image) GetExports() ([]ExportedFunction, error) {
	sec, err := img.GetExportSection()
	if err != nil || sec == nil {
		return nil, err
	}
	dir := img.DataDirectory(DirectoryEntryExport)

	funcs := make([]RVA, sec.NumberOfFunctions)
	for i := uint32(0); i < sec.NumberOfFunctions; i++ {
		v, err := img.ReadUint32(uint32(sec.AddressOfFunctions) + i*4)
		if err != nil {
			return nil, err
		}
		funcs[i] = RVA(v)
	}

	names := make([]string, sec.NumberOfNames)
	ordinals := make([]uint16, sec.NumberOfNames)
	for i := uint32(0); i < sec.NumberOfNames; i++ {
		nameRVA, err := img.ReadUint32(uint32(sec.AddressOfNames) + i*4)
		if err != nil {
			return nil, err
		}
		name, err := img.ReadNullTerminatedStringAt(RVA(nameRVA))
		if err != nil {
			return nil, err
		}
		names[i] = name

		ord, err := img.ReadUint16(uint32(sec.AddressOfNameOrdinals) + i*2)
		if err != nil {
			return nil, err
		}
		ordinals[i] = ord
	}

	byOrdinal := make(map[uint16]string, len(names))
	for i, ord := range ordinals {
		byOrdinal[ord] = names[i]
	}

	out := make([]ExportedFunction, 0, len(funcs))
	for i, rva := range funcs {
		if rva == 0 {
			continue
		}
		ef := ExportedFunction{
			Ordinal: sec.Base + uint32(i),
			Name:    byOrdinal[uint16(i)],
			RVA:     rva,
		}
		if uint32(rva) >= uint32(dir.VirtualAddress) && uint32(rva) < uint32(dir.VirtualAddress)+dir.Size {
			// Forwarder strings aren't a fixed-layout field like a name
			// table entry; they're free-floating ASCII sitting wherever
			// the linker put them, so a non-printable byte here means
			// this RVA wasn't a forwarder string after all rather than
			// a parse error.
			if fwd, ok := img.ReadHeuristicStringAt(rva); ok {
				ef.Forwarder = fwd
			}
		}
		out = append(out, ef)
	}
	return out, nil
}
