// Package emu provides the architectural state (registers, memory) and
// syscall emulation for the RV32IMA simulator.
package emu

import (
	"io"

	"golang.org/x/sys/unix"
)

// RISC-V Linux syscall numbers implemented by this emulator (spec.md §6.3).
const (
	SyscallWrite      uint32 = 64
	SyscallReadlinkat uint32 = 78
	SyscallFstat      uint32 = 80
	SyscallUname      uint32 = 160
	SyscallGetuid     uint32 = 174
	SyscallGeteuid    uint32 = 175
	SyscallGetgid     uint32 = 176
	SyscallGetegid    uint32 = 177
	SyscallBrk        uint32 = 214
	SyscallExit       uint32 = 93
	SyscallExitGroup  uint32 = 94
)

// RV32 syscall ABI register indices: a7 carries the syscall number, a0 the
// return value (and first argument), a1-a5 the remaining arguments.
const (
	regA0 uint8 = 10
	regA1 uint8 = 11
	regA2 uint8 = 12
	regA3 uint8 = 13
	regA7 uint8 = 17
)

// Linux error codes a syscall may report back to the guest in a0.
const (
	EBADF  = 9
	ENOSYS = 38
	EFAULT = 14
)

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Exited is true if the syscall caused program termination. Per
	// spec.md §9, both exit (93) and exit_group (94) set this — this
	// single-hart model has no distinction between the two.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int32
}

// SyscallHandler is the interface the out-of-order core's retire phase
// calls into when an Ecall entry reaches the head of the ROB.
type SyscallHandler interface {
	Handle() SyscallResult
}

// DefaultSyscallHandler executes syscalls against the host OS, grounded in
// original_source/src/memory/mod.rs's memory-backed implementation and
// spec.md §6.3's syscall table.
type DefaultSyscallHandler struct {
	regFile *RegFile
	memory  *Memory
	stdout  io.Writer
	stderr  io.Writer
}

// NewDefaultSyscallHandler creates a syscall handler writing fd 1/2 to the
// given writers.
func NewDefaultSyscallHandler(regFile *RegFile, memory *Memory, stdout, stderr io.Writer) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		regFile: regFile,
		memory:  memory,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// Handle executes the syscall indicated by the register file state.
func (h *DefaultSyscallHandler) Handle() SyscallResult {
	switch h.regFile.ReadReg(regA7) {
	case SyscallWrite:
		return h.handleWrite()
	case SyscallReadlinkat:
		return h.handleReadlinkat()
	case SyscallFstat:
		return h.handleFstat()
	case SyscallUname:
		return h.handleUname()
	case SyscallGetuid:
		h.regFile.WriteReg(regA0, uint32(unix.Getuid()))
		return SyscallResult{}
	case SyscallGeteuid:
		h.regFile.WriteReg(regA0, uint32(unix.Geteuid()))
		return SyscallResult{}
	case SyscallGetgid:
		h.regFile.WriteReg(regA0, uint32(unix.Getgid()))
		return SyscallResult{}
	case SyscallGetegid:
		h.regFile.WriteReg(regA0, uint32(unix.Getegid()))
		return SyscallResult{}
	case SyscallBrk:
		return h.handleBrk()
	case SyscallExit, SyscallExitGroup:
		return SyscallResult{Exited: true, ExitCode: int32(h.regFile.ReadReg(regA0))}
	default:
		h.setError(ENOSYS)
		return SyscallResult{}
	}
}

func (h *DefaultSyscallHandler) setError(errno uint32) {
	h.regFile.WriteReg(regA0, uint32(-int32(errno)))
}

// handleWrite handles write(fd, buf, count).
func (h *DefaultSyscallHandler) handleWrite() SyscallResult {
	fd := h.regFile.ReadReg(regA0)
	bufPtr := h.regFile.ReadReg(regA1)
	count := h.regFile.ReadReg(regA2)

	var w io.Writer
	switch fd {
	case 1:
		w = h.stdout
	case 2:
		w = h.stderr
	default:
		h.setError(EBADF)
		return SyscallResult{}
	}

	buf, err := h.memory.ReadBytes(bufPtr, count)
	if err != nil {
		h.setError(EFAULT)
		return SyscallResult{}
	}
	n, _ := w.Write(buf)
	h.regFile.WriteReg(regA0, uint32(n))
	return SyscallResult{}
}

// handleReadlinkat handles readlinkat(dirfd, pathname, buf, bufsiz) — only
// the /proc/self/exe self-query a static binary's libc startup code issues
// is meaningfully emulated, by asking the host for this process's own
// executable path; anything else reports ENOSYS.
func (h *DefaultSyscallHandler) handleReadlinkat() SyscallResult {
	dirfd := int32(h.regFile.ReadReg(regA0))
	pathPtr := h.regFile.ReadReg(regA1)
	bufPtr := h.regFile.ReadReg(regA2)
	bufsiz := h.regFile.ReadReg(regA3)

	path, err := h.readCString(pathPtr)
	if err != nil || path != "/proc/self/exe" {
		h.setError(ENOSYS)
		return SyscallResult{}
	}

	target := make([]byte, bufsiz)
	n, err := unix.Readlinkat(int(dirfd), path, target)
	if err != nil {
		h.setError(EFAULT)
		return SyscallResult{}
	}
	if err := h.memory.WriteBytes(bufPtr, target[:n]); err != nil {
		h.setError(EFAULT)
		return SyscallResult{}
	}
	h.regFile.WriteReg(regA0, uint32(n))
	return SyscallResult{}
}

// readCString reads a NUL-terminated string out of guest memory, bounded
// so a corrupt pointer can't force an unbounded scan.
func (h *DefaultSyscallHandler) readCString(addr uint32) (string, error) {
	const maxLen = 4096
	buf := make([]byte, 0, 64)
	for i := uint32(0); i < maxLen; i++ {
		b, err := h.memory.Read8(addr + i)
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
	return "", &MemFault{Addr: addr, Op: "invalid"}
}

// handleFstat handles fstat(fd, statbuf) by asking the host for the real
// struct stat of the given fd (0/1/2 inherited from this process) and
// copying its RV32-layout fields into guest memory.
func (h *DefaultSyscallHandler) handleFstat() SyscallResult {
	fd := h.regFile.ReadReg(regA0)
	statPtr := h.regFile.ReadReg(regA1)

	var st unix.Stat_t
	if err := unix.Fstat(int(fd), &st); err != nil {
		h.setError(EBADF)
		return SyscallResult{}
	}

	buf := make([]byte, 128)
	putLE32(buf, 0x18, uint32(st.Mode))
	putLE32(buf, 0x1c, uint32(st.Nlink))
	putLE64(buf, 0x30, uint64(st.Size))
	if err := h.memory.WriteBytes(statPtr, buf); err != nil {
		h.setError(EFAULT)
		return SyscallResult{}
	}
	h.regFile.WriteReg(regA0, 0)
	return SyscallResult{}
}

// handleUname handles uname(buf), copying the host's uname (the six
// 65-byte utsname fields) into guest memory.
func (h *DefaultSyscallHandler) handleUname() SyscallResult {
	bufPtr := h.regFile.ReadReg(regA0)
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		h.setError(EFAULT)
		return SyscallResult{}
	}
	buf := make([]byte, 0, len(uts.Sysname)*6)
	for _, field := range [][65]byte{uts.Sysname, uts.Nodename, uts.Release,
		uts.Version, uts.Machine, uts.Domainname} {
		buf = append(buf, field[:]...)
	}

	if err := h.memory.WriteBytes(bufPtr, buf); err != nil {
		h.setError(EFAULT)
		return SyscallResult{}
	}
	h.regFile.WriteReg(regA0, 0)
	return SyscallResult{}
}

// handleBrk handles brk(new_brk): 0 queries the current break, a non-zero
// value requests a new one (spec.md §6.3).
func (h *DefaultSyscallHandler) handleBrk() SyscallResult {
	req := h.regFile.ReadReg(regA0)
	if req == 0 {
		h.regFile.WriteReg(regA0, h.memory.Brk())
		return SyscallResult{}
	}
	h.regFile.WriteReg(regA0, h.memory.SetBrk(req))
	return SyscallResult{}
}

func putLE32(buf []byte, off int, v uint32) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
}

func putLE64(buf []byte, off int, v uint64) {
	putLE32(buf, off, uint32(v))
	putLE32(buf, off+4, uint32(v>>32))
}
