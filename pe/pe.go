// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package pe parses enough of the PE/COFF executable image format to
// locate a module's entry point, walk its export table, and resolve the
// thunks in its import tables. It reads either an on-disk file (memory
// mapped) or an arbitrary byte slice already read out of a live process,
// since the debugger needs both: the module it launches is parsed from
// disk before the child even exists, and every DLL the child later loads
// is parsed from a snapshot read out of the child's address space.
package pe

import (
	"bytes"
	"encoding/binary"
	"fmt"

	mmap "github.com/edsrzf/mmap-go"
)

// RVA is an offset relative to a module's preferred load base, as opposed
// to a plain byte offset into the file or a fully resolved process
// address. Keeping it a distinct type stops an RVA from being used where
// a VA (virtual address) or a file offset was meant, which is the single
// easiest mistake to make when porting this kind of code.
type RVA uint32

// VA resolves an RVA against a module's load base.
func (r RVA) VA(base uint64) uint64 { return base + uint64(r) }

const (
	dosMagic  = 0x5A4D   // "MZ"
	peSigSize = 4
	peSig     = 0x00004550 // "PE\x00\x00"

	optHdr32Magic = 0x10b
	optHdr64Magic = 0x20b
)

// Machine identifies the COFF file header's target CPU.
type Machine uint16

const (
	MachineUnknown Machine = 0x0
	MachineI386    Machine = 0x014c
	MachineAMD64   Machine = 0x8664
)

func (m Machine) String() string {
	switch m {
	case MachineI386:
		return "I386"
	case MachineAMD64:
		return "AMD64"
	default:
		return fmt.Sprintf("Machine(0x%x)", uint16(m))
	}
}

// DirectoryEntry indexes the OptionalHeader's DataDirectory array.
type DirectoryEntry int

const (
	DirectoryEntryExport DirectoryEntry = iota
	DirectoryEntryImport
	DirectoryEntryResource
	DirectoryEntryException
	DirectoryEntryCertificate
	DirectoryEntryBaseReloc
	DirectoryEntryDebug
	DirectoryEntryArchitecture
	DirectoryEntryGlobalPtr
	DirectoryEntryTLS
	DirectoryEntryLoadConfig
	DirectoryEntryBoundImport
	DirectoryEntryIAT
	DirectoryEntryDelayImport
	DirectoryEntryCLR
	DirectoryEntryReserved
	NumberOfDirectoryEntries
)

// DOSHeader is the image_dos_header: only e_lfanew matters to us, but the
// magic is worth checking since a file that doesn't start with "MZ" isn't
// a PE image at all.
type DOSHeader struct {
	Magic   uint16
	_       [58]byte
	Elfanew uint32
}

// COFFHeader is the image_file_header immediately following the PE
// signature.
type COFFHeader struct {
	Machine              Machine
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

// DataDirectory is one entry of the OptionalHeader's DataDirectory array.
type DataDirectory struct {
	VirtualAddress RVA
	Size           uint32
}

// OptionalHeader32 is the PE32 (32-bit) optional header. OptionalHeader64
// (PE32+) is structurally identical except ImageBase, stack/heap
// reserve/commit are 8 bytes wide and BaseOfData does not exist; since
// this debugger only targets 32-bit and WoW64 processes (see DESIGN.md),
// only PE32 images are parsed to a typed struct. PE32+ images are
// detected (Magic == 0x20b) and rejected with ErrUnsupportedMachine
// rather than silently misparsed.
type OptionalHeader32 struct {
	Magic                   uint16
	MajorLinkerVersion      uint8
	MinorLinkerVersion      uint8
	SizeOfCode              uint32
	SizeOfInitializedData   uint32
	SizeOfUninitializedData uint32
	AddressOfEntryPoint     RVA
	BaseOfCode              RVA
	BaseOfData              RVA
	ImageBase               uint32
	SectionAlignment        uint32
	FileAlignment           uint32
	MajorOSVersion          uint16
	MinorOSVersion          uint16
	MajorImageVersion       uint16
	MinorImageVersion       uint16
	MajorSubsystemVersion   uint16
	MinorSubsystemVersion   uint16
	Win32VersionValue       uint32
	SizeOfImage             uint32
	SizeOfHeaders           uint32
	CheckSum                uint32
	Subsystem               uint16
	DllCharacteristics      uint16
	SizeOfStackReserve      uint32
	SizeOfStackCommit       uint32
	SizeOfHeapReserve       uint32
	SizeOfHeapCommit        uint32
	LoaderFlags             uint32
	NumberOfRvaAndSizes     uint32
}

// Image is a parsed PE/COFF image: enough of it to resolve an entry
// point, walk exports, and resolve import thunks. It keeps a reference to
// the bytes it was parsed from (the mapping for Open, the caller's slice
// for FromBytes); Close is only meaningful when the image was produced by
// Open.
type Image struct {
	data   []byte
	mmap   mmap.MMap
	base   uint64 // preferred load base, from OptionalHeader32.ImageBase
	DOS    DOSHeader
	COFF   COFFHeader
	Opt    OptionalHeader32
	DataDirs []DataDirectory
}

// Open memory-maps path read-only and parses it as a PE image.
func Open(path string) (*Image, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}

	img, err := FromBytes(m)
	if err != nil {
		m.Unmap()
		return nil, err
	}
	img.mmap = m
	return img, nil
}

// Close releases the memory mapping backing an Image opened with Open.
// It is a no-op for images built with FromBytes.
func (img *Image) Close() error {
	if img.mmap != nil {
		return img.mmap.Unmap()
	}
	return nil
}

// FromBytes parses an Image out of an already-resident byte slice, such
// as a snapshot read out of a live process's address space. The slice is
// retained, not copied; callers must not mutate it afterwards.
func FromBytes(b []byte) (*Image, error) {
	img := &Image{data: b}

	if err := img.structUnpack(&img.DOS, 0, uint32(binary.Size(img.DOS))); err != nil {
		return nil, err
	}
	if img.DOS.Magic != dosMagic {
		return nil, ErrWrongSignature
	}

	sigOff := img.DOS.Elfanew
	sig, err := img.ReadUint32(sigOff)
	if err != nil {
		return nil, err
	}
	if sig != peSig {
		return nil, ErrWrongSignature
	}

	coffOff := sigOff + peSigSize
	if err := img.structUnpack(&img.COFF, coffOff, uint32(binary.Size(img.COFF))); err != nil {
		return nil, err
	}

	optOff := coffOff + uint32(binary.Size(img.COFF))
	magic, err := img.ReadUint16(optOff)
	if err != nil {
		return nil, err
	}
	if magic == optHdr64Magic {
		return nil, ErrUnsupportedMachine
	}
	if magic != optHdr32Magic {
		return nil, ErrWrongSignature
	}
	if err := img.structUnpack(&img.Opt, optOff, uint32(binary.Size(img.Opt))); err != nil {
		return nil, err
	}
	img.base = uint64(img.Opt.ImageBase)

	dirOff := optOff + uint32(binary.Size(img.Opt))
	n := img.Opt.NumberOfRvaAndSizes
	img.DataDirs = make([]DataDirectory, n)
	for i := uint32(0); i < n; i++ {
		var d DataDirectory
		if err := img.structUnpack(&d, dirOff+i*8, 8); err != nil {
			return nil, err
		}
		img.DataDirs[i] = d
	}

	return img, nil
}

// ImageBase returns the module's preferred load base.
func (img *Image) ImageBase() uint64 { return img.base }

// EntryPoint returns the RVA of the image's entry point.
func (img *Image) EntryPoint() RVA { return img.Opt.AddressOfEntryPoint }

// DataDirectory returns the data directory at the given index. A
// directory that doesn't exist in this image (index >=
// NumberOfRvaAndSizes) returns a zero DataDirectory and no error — an
// image legitimately may not carry every directory.
func (img *Image) DataDirectory(e DirectoryEntry) DataDirectory {
	if int(e) >= len(img.DataDirs) {
		return DataDirectory{}
	}
	return img.DataDirs[e]
}

// structUnpack decodes iface from data[offset:offset+size] using
// encoding/binary field-by-field, the same pattern Saferwall's PE parser
// uses rather than reinterpreting raw pointers.
func (img *Image) structUnpack(iface interface{}, offset, size uint32) error {
	total := offset + size
	if (total > offset) != (size > 0) {
		return ErrOutOfBounds
	}
	if offset >= uint32(len(img.data)) || total > uint32(len(img.data)) {
		return ErrOutOfBounds
	}
	r := bytes.NewReader(img.data[offset:total])
	return binary.Read(r, binary.LittleEndian, iface)
}

// ReadUint32 reads a little-endian uint32 at the given file offset.
func (img *Image) ReadUint32(offset uint32) (uint32, error) {
	if offset > uint32(len(img.data))-4 {
		return 0, ErrOutOfBounds
	}
	return binary.LittleEndian.Uint32(img.data[offset:]), nil
}

// ReadUint16 reads a little-endian uint16 at the given file offset.
func (img *Image) ReadUint16(offset uint32) (uint16, error) {
	if offset > uint32(len(img.data))-2 {
		return 0, ErrOutOfBounds
	}
	return binary.LittleEndian.Uint16(img.data[offset:]), nil
}

// ReadBytesAt returns size bytes starting at offset.
func (img *Image) ReadBytesAt(offset, size uint32) ([]byte, error) {
	total := offset + size
	if (total > offset) != (size > 0) {
		return nil, ErrOutOfBounds
	}
	if offset >= uint32(len(img.data)) || total > uint32(len(img.data)) {
		return nil, ErrOutOfBounds
	}
	return img.data[offset:total], nil
}
