// Package loader provides ELF binary loading for statically linked RV32IMA
// executables, including the Linux ELF ABI stack image (argv/envp/auxv) a
// freshly exec'd process expects at its initial stack pointer.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/rv32ooo/emu"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	SegmentFlagExecute SegmentFlags = 1 << iota
	SegmentFlagWrite
	SegmentFlagRead
)

// Segment represents a loadable PT_LOAD segment from an ELF binary.
type Segment struct {
	VirtAddr uint32
	Data     []byte
	MemSize  uint32
	Flags    SegmentFlags
}

// Program represents a parsed ELF program ready for loading into memory.
type Program struct {
	EntryPoint  uint32
	Segments    []Segment
	ProgHeaders []byte // raw program header table, copied onto the stack for AT_PHDR
	PHEntSize   uint16
	PHNum       uint16
}

// Load parses a statically linked 32-bit RISC-V ELF executable.
func Load(path string) (*Program, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = file.Close() }()

	f, err := elf.NewFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{EntryPoint: uint32(f.Entry)}

	phdrs, err := readProgramHeaders(file)
	if err != nil {
		return nil, err
	}
	prog.ProgHeaders = phdrs.raw
	prog.PHEntSize = phdrs.entSize
	prog.PHNum = phdrs.count

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: uint32(phdr.Vaddr),
			Data:     data,
			MemSize:  uint32(phdr.Memsz),
			Flags:    flags,
		})
	}

	return prog, nil
}

type progHeaderTable struct {
	raw     []byte
	entSize uint16
	count   uint16
}

// readProgramHeaders re-reads the raw program header table bytes so a copy
// can be placed on the guest stack for AT_PHDR, exactly as the kernel's ELF
// loader does for a normal exec (original_source/src/memory/mod.rs's
// push_program_headers).
func readProgramHeaders(ra io.ReaderAt) (progHeaderTable, error) {
	var hdr elf.Header32
	r := io.NewSectionReader(ra, 0, 1<<20)
	if err := readHeader32(r, &hdr); err != nil {
		return progHeaderTable{}, fmt.Errorf("failed to re-read ELF header: %w", err)
	}

	size := uint32(hdr.Phentsize) * uint32(hdr.Phnum)
	raw := make([]byte, size)
	if size > 0 {
		phr := io.NewSectionReader(ra, int64(hdr.Phoff), int64(size))
		if _, err := io.ReadFull(phr, raw); err != nil {
			return progHeaderTable{}, fmt.Errorf("failed to read program header table: %w", err)
		}
	}

	return progHeaderTable{raw: raw, entSize: hdr.Phentsize, count: hdr.Phnum}, nil
}

func readHeader32(r io.Reader, hdr *elf.Header32) error {
	buf := make([]byte, 52)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	le := leReader(buf)
	copy(hdr.Ident[:], buf[:16])
	hdr.Type = le.u16(16)
	hdr.Machine = le.u16(18)
	hdr.Version = le.u32(20)
	hdr.Entry = le.u32(24)
	hdr.Phoff = le.u32(28)
	hdr.Shoff = le.u32(32)
	hdr.Flags = le.u32(36)
	hdr.Ehsize = le.u16(40)
	hdr.Phentsize = le.u16(42)
	hdr.Phnum = le.u16(44)
	hdr.Shentsize = le.u16(46)
	hdr.Shnum = le.u16(48)
	hdr.Shstrndx = le.u16(50)
	return nil
}

type leReader []byte

func (b leReader) u16(off int) uint16 {
	return uint16(b[off]) | uint16(b[off+1])<<8
}

func (b leReader) u32(off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

// Linux auxv entry types this loader populates (spec.md §6.1).
const (
	atNull   = 0
	atPhdr   = 3
	atPhent  = 4
	atPhnum  = 5
	atPagesz = 6
	atEntry  = 9
	atSecure = 23
	atRandom = 25
)

// BuildImage loads every PT_LOAD segment into a fresh emu.Memory, allocates
// the 8MiB stack, and writes the Linux ELF ABI stack image (argc=1,
// argv=[programName], empty envp, and an auxv) onto it, returning the
// memory and the initial, 16-byte aligned stack pointer
// (original_source/src/memory/mod.rs's ProcessMemory::new +
// initialize_stack).
func BuildImage(prog *Program, programName string) (*emu.Memory, uint32) {
	mem := emu.NewMemory()
	for _, seg := range prog.Segments {
		mem.LoadSegment(seg.VirtAddr, seg.Data, seg.MemSize, seg.Flags&SegmentFlagWrite != 0)
	}
	mem.InitStack()

	sp := uint32(0)
	push := func(data []byte) uint32 {
		sp -= uint32(len(data))
		_ = mem.WriteBytes(sp, data)
		return sp
	}

	nameAddr := push(append([]byte(programName), 0))
	randAddr := push(make([]byte, 16))

	var phdrAddr uint32
	if len(prog.ProgHeaders) > 0 {
		phdrAddr = push(prog.ProgHeaders)
	}

	type auxEntry struct{ typ, val uint32 }
	aux := []auxEntry{
		{atPhdr, phdrAddr},
		{atPhent, uint32(prog.PHEntSize)},
		{atPhnum, uint32(prog.PHNum)},
		{atPagesz, 0},
		{atEntry, prog.EntryPoint},
		{atSecure, 0},
		{atRandom, randAddr},
		{atNull, 0},
	}

	blockSize := uint32(4 /*argc*/ + 4 /*argv[0]*/ + 4 /*argv NULL*/ + 4 /*envp NULL*/ + len(aux)*8)
	sp -= blockSize
	sp &^= 0xf // 16-byte stack alignment at entry, per the RV32 psABI

	addr := sp
	writeWord := func(v uint32) {
		_ = mem.Write32(addr, v)
		addr += 4
	}
	writeWord(1)        // argc
	writeWord(nameAddr) // argv[0]
	writeWord(0)        // argv terminator
	writeWord(0)        // envp terminator (no environment forwarded)
	for _, a := range aux {
		writeWord(a.typ)
		writeWord(a.val)
	}

	return mem, sp
}
