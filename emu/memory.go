package emu

import (
	"encoding/binary"
	"fmt"
)

// MemFault is the captured-not-raised error taxonomy for memory accesses.
// A speculative load or store that faults does not abort the simulator;
// the fault is stored on the offending ROB entry and only surfaced if that
// entry actually retires.
type MemFault struct {
	Addr uint32
	Op   string // "invalid" or "read-only"
}

func (e *MemFault) Error() string {
	switch e.Op {
	case "read-only":
		return fmt.Sprintf("writing to read-only memory at 0x%x", e.Addr)
	default:
		return fmt.Sprintf("accessing invalid memory at 0x%x", e.Addr)
	}
}

// Memory is the process address space: a Harvard-style view over one flat
// 32-bit address space, split into a data region (text+data+bss, built
// from the ELF's PT_LOAD segments) and a stack region at the top of the
// address space (wrapping down from 0). Writes only ever happen from ROB
// retire (§4.9); reads happen from load execution and instruction fetch.
type Memory struct {
	vAddrLo, vAddrHi     uint32
	roLo, roHi           uint32
	stackLo              uint32 // stackHi is implicitly 0 (wraps)
	brk                  uint32
	data                 []byte
	stack                []byte
}

// NewMemory creates an empty Memory with no loaded segments and no stack.
// Used directly by tests that want to poke at a flat image; loader.BuildImage
// populates a Memory via LoadSegment/InitStack for real programs.
func NewMemory() *Memory {
	return &Memory{}
}

// LoadSegment installs a PT_LOAD segment's bytes at vaddr, growing the
// data region and zero-filling memsize-filesize bytes of BSS.
// Segments must be loaded in increasing vaddr order.
func (m *Memory) LoadSegment(vaddr uint32, bytes []byte, memsize uint32, writable bool) {
	if len(m.data) == 0 {
		m.vAddrLo = vaddr
	}
	if gap := int(vaddr) - (int(m.vAddrLo) + len(m.data)); gap > 0 {
		m.data = append(m.data, make([]byte, gap)...)
	}
	m.data = append(m.data, make([]byte, memsize)...)
	copy(m.data[uint32(len(m.data))-memsize:], bytes)
	m.vAddrHi = vaddr + memsize

	if !writable {
		if m.roLo == m.roHi {
			m.roLo = vaddr
		}
		m.roHi = vaddr + memsize
	}
	if m.brk < m.vAddrHi {
		m.brk = m.vAddrHi
	}
}

// StackSize is the size of the stack region InitStack allocates.
const StackSize = 8 * 1024 * 1024

// InitStack allocates an 8MiB stack at the top of the 32-bit address
// space (wrapping from 0 downward). It does not compute a stack pointer;
// the caller writes the Linux ELF ABI stack image (argv/auxv) via
// WriteBytes and tracks the stack pointer itself.
func (m *Memory) InitStack() {
	m.stack = make([]byte, StackSize)
	m.stackLo = ^uint32(StackSize) + 1 // wraps: 0 - StackSize in 32-bit arithmetic
}

// Brk returns the current program break (top of the data segment so far).
func (m *Memory) Brk() uint32 {
	return m.brk
}

// SetBrk extends the program break to newBrk, zero-filling the newly
// exposed region, and returns the (possibly clamped) new break.
func (m *Memory) SetBrk(newBrk uint32) uint32 {
	if newBrk <= m.brk {
		return m.brk
	}
	grow := newBrk - m.brk
	m.data = append(m.data, make([]byte, grow)...)
	m.vAddrHi += grow
	m.brk = newBrk
	return m.brk
}

func (m *Memory) checkAddr(addr uint32) error {
	inStack := m.stack != nil && addr >= m.stackLo
	if !inStack && (addr < m.vAddrLo || addr >= m.vAddrHi) {
		return &MemFault{Addr: addr, Op: "invalid"}
	}
	return nil
}

func (m *Memory) checkWrite(addr uint32) error {
	if m.roLo <= addr && addr < m.roHi {
		return &MemFault{Addr: addr, Op: "read-only"}
	}
	return nil
}

// region returns the backing slice and offset for addr, after the caller
// has already validated the address is in range.
func (m *Memory) region(addr uint32) (buf []byte, offset uint32) {
	if m.stack == nil || addr < m.stackLo {
		return m.data, addr - m.vAddrLo
	}
	return m.stack, addr - m.stackLo
}

// ReadInst reads a little-endian 32-bit instruction word at pc.
func (m *Memory) ReadInst(pc uint32) (uint32, error) {
	b, err := m.ReadBytes(pc, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadBytes reads n bytes starting at addr from the data or stack region.
func (m *Memory) ReadBytes(addr uint32, n uint32) ([]byte, error) {
	if err := m.checkAddr(addr); err != nil {
		return nil, err
	}
	buf, off := m.region(addr)
	return buf[off : off+n], nil
}

// Read8/Read16/Read32 read fixed-width little-endian values.
func (m *Memory) Read8(addr uint32) (uint8, error) {
	b, err := m.ReadBytes(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *Memory) Read16(addr uint32) (uint16, error) {
	b, err := m.ReadBytes(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *Memory) Read32(addr uint32) (uint32, error) {
	b, err := m.ReadBytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// WriteBytes writes a little-endian byte slice at addr, failing with a
// MemFault for out-of-range or read-only destinations.
func (m *Memory) WriteBytes(addr uint32, data []byte) error {
	if err := m.checkAddr(addr); err != nil {
		return err
	}
	if n := uint32(len(data)); n > 0 {
		if err := m.checkAddr(addr + n - 1); err != nil {
			return err
		}
	}
	if err := m.checkWrite(addr); err != nil {
		return err
	}
	buf, off := m.region(addr)
	copy(buf[off:off+uint32(len(data))], data)
	return nil
}

func (m *Memory) Write8(addr uint32, v uint8) error {
	return m.WriteBytes(addr, []byte{v})
}

func (m *Memory) Write16(addr uint32, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return m.WriteBytes(addr, b[:])
}

func (m *Memory) Write32(addr uint32, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return m.WriteBytes(addr, b[:])
}
