package pipeline

import (
	"github.com/sarchlab/rv32ooo/emu"
	"github.com/sarchlab/rv32ooo/insts"
)

// ROBEntry is one in-flight instruction (spec.md §3 "ROB entry").
type ROBEntry struct {
	PC       uint32
	Inst     *insts.Instruction
	Rd       uint8
	Addr     emu.Operand
	MemValue emu.Operand
	RegValue *uint32 // nil until resolved

	BranchPred  bool
	MemRemCycle int
	MemFault    error
}

func newEntry(pc uint32, inst *insts.Instruction, memLatency int) *ROBEntry {
	return &ROBEntry{
		PC:          pc,
		Inst:        inst,
		Addr:        emu.ValueOperand(0),
		MemValue:    emu.ValueOperand(0),
		MemRemCycle: memLatency,
	}
}

// IsCompleted implements spec.md §4.9's per-opcode completion rule.
func (e *ROBEntry) IsCompleted() bool {
	addrDone := !e.Addr.IsRob()
	memDone := !e.MemValue.IsRob()
	regDone := e.RegValue != nil

	switch e.Inst.Opcode {
	case insts.OpStore:
		return addrDone && memDone && e.MemRemCycle == 0
	case insts.OpAmo:
		return addrDone && memDone && regDone && e.MemRemCycle == 0
	case insts.OpJalr:
		return addrDone && regDone
	default:
		return regDone
	}
}

// ReorderBuffer is a fixed-capacity ring buffer of ROBEntry keyed by
// stable slot index (spec.md §4.3): the index assigned at issue never
// changes for the lifetime of the entry, so RS/load-buffer/address-unit
// operands can reference it as a forward pointer (emu.Operand) without
// ever holding a direct Go pointer into the ROB.
type ReorderBuffer struct {
	entries    []*ROBEntry
	head       int
	tail       int
	count      int
	capacity   int
	memLatency int
}

// NewReorderBuffer creates a ROB with the given capacity (spec.md §9
// recommends 64-256; the source grows unboundedly, which we deliberately
// do not replicate) and memory-access latency (the MemRemCycle every
// store/load/AMO entry counts down from).
func NewReorderBuffer(capacity int, memLatency int) *ReorderBuffer {
	return &ReorderBuffer{
		entries:    make([]*ROBEntry, capacity),
		capacity:   capacity,
		memLatency: memLatency,
	}
}

// Len returns the number of in-flight entries.
func (r *ReorderBuffer) Len() int { return r.count }

// Full reports whether the ROB has no free slot for a new issue.
func (r *ReorderBuffer) Full() bool { return r.count == r.capacity }

// MemLatency returns the configured memory-access latency, used to restart
// an AMO's MemRemCycle for its deferred write once the RMW result is
// computed (spec.md §4.6).
func (r *ReorderBuffer) MemLatency() int { return r.memLatency }

// Empty reports whether the ROB holds no in-flight entries.
func (r *ReorderBuffer) Empty() bool { return r.count == 0 }

// Issue allocates the next ROB slot for an about-to-be-decoded
// instruction, populating the operand-independent fields of spec.md §4.3.
// Returns the allocated index. Callers must check Full() first.
func (r *ReorderBuffer) Issue(pc uint32, inst *insts.Instruction, reg *emu.RegFile) int {
	idx := r.tail
	e := newEntry(pc, inst, r.memLatency)
	e.Rd = inst.Fields.Rd

	switch inst.Opcode {
	case insts.OpStore, insts.OpAmo:
		// Amo's address is rs1 alone (no immediate); routing it through the
		// address unit like Load/Store/Jalr, with its R4-format Imm field
		// always zero, computes the same addr = rs1 + 0.
		e.MemValue = reg.ReadOperand(inst.Fields.Rs2, r.resolvedValue)
	}

	switch inst.Opcode {
	case insts.OpLoad, insts.OpStore, insts.OpAmo, insts.OpJalr:
		// Addr stays pending on this entry's own index until the address
		// unit's result is written into it.
		e.Addr = emu.RobOperand(idx)
	}

	switch inst.Opcode {
	case insts.OpJal, insts.OpJalr:
		v := pc + 4
		e.RegValue = &v
	case insts.OpLui:
		v := inst.Fields.Imm
		e.RegValue = &v
	case insts.OpAuiPc:
		v := pc + inst.Fields.Imm
		e.RegValue = &v
	case insts.OpAmo:
		// Scw never enters the load buffer (spec.md §4.4): its rd value is
		// the fixed "always succeeds" result, resolved here like Lui/AuiPc.
		if inst.Function == insts.FnScw {
			v := uint32(0)
			e.RegValue = &v
		}
	case insts.OpMiscMem, insts.OpSystem, insts.OpFP:
		// Fence/Fencei/Ebreak/Ecall and FP-demoted-to-NOP write no register;
		// resolving reg_value immediately lets IsCompleted's default case
		// (regDone) see them as done without a functional unit.
		v := uint32(0)
		e.RegValue = &v
	}

	r.entries[idx] = e
	r.tail = (r.tail + 1) % r.capacity
	r.count++
	return idx
}

// resolvedValue is the lookup callback RegFile.ReadOperand uses to check
// whether a rename target has already produced its result.
func (r *ReorderBuffer) resolvedValue(idx int) (uint32, bool) {
	e := r.entries[idx]
	if e == nil || e.RegValue == nil {
		return 0, false
	}
	return *e.RegValue, true
}

// Get returns the entry at idx, or nil if it is not currently in flight.
func (r *ReorderBuffer) Get(idx int) *ROBEntry {
	return r.entries[idx]
}

// HeadIndex returns the ROB head's slot index, if any entry is in flight.
func (r *ReorderBuffer) HeadIndex() (int, bool) {
	if r.count == 0 {
		return 0, false
	}
	return r.head, true
}

// TailPrevIndex returns the index of the youngest issued entry (the slot
// just before tail), used by the Issue phase's back-pressure check
// (spec.md §4.8: no issue if the youngest entry is Ecall or an unresolved
// JALR).
func (r *ReorderBuffer) TailPrevIndex() (int, bool) {
	if r.count == 0 {
		return 0, false
	}
	return (r.tail - 1 + r.capacity) % r.capacity, true
}

// Retire removes the head entry. Callers must only call this after
// confirming idx == head via HeadIndex and applying the entry's
// architectural effects.
func (r *ReorderBuffer) Retire() {
	r.entries[r.head] = nil
	r.head = (r.head + 1) % r.capacity
	r.count--
}

// Propagate broadcasts a finished (idx, value) pair to every in-flight
// entry's Addr/MemValue operands, and, if the entry itself is idx, resolves
// its RegValue (spec.md §4.3 propagate).
func (r *ReorderBuffer) Propagate(idx int, value uint32) {
	pos := r.head
	for i := 0; i < r.count; i++ {
		e := r.entries[pos]
		e.Addr = e.Addr.Resolve(idx, value)
		e.MemValue = e.MemValue.Resolve(idx, value)
		if pos == idx && e.RegValue == nil {
			v := value
			e.RegValue = &v
		}
		pos = (pos + 1) % r.capacity
	}
}

// OlderStoresBlock reports whether any older, not-yet-retired store or
// non-Lrw AMO could alias addr (or has not yet resolved its address at
// all) — the memory-disambiguation rule of spec.md §4.6.
func (r *ReorderBuffer) OlderStoresBlock(loadIdx int, addr uint32) bool {
	pos := r.head
	for pos != loadIdx {
		e := r.entries[pos]
		if e != nil && (e.Inst.Opcode == insts.OpStore ||
			(e.Inst.Opcode == insts.OpAmo && e.Inst.Function != insts.FnLrw)) {
			if e.Addr.IsRob() {
				return true
			}
			if e.Addr.Value() == addr {
				return true
			}
		}
		pos = (pos + 1) % r.capacity
	}
	return false
}

// SquashedEntry is one ROB slot discarded by SquashAfter, returned so the
// pipeline can undo its register renames and drop it from whichever
// functional unit was holding it.
type SquashedEntry struct {
	Index int
	Entry *ROBEntry
}

// SquashAfter discards every entry younger than idx (idx itself survives —
// it is the branch/jalr whose resolution triggered the squash, and will
// retire normally) and rewinds tail to reopen those slots for reissue.
func (r *ReorderBuffer) SquashAfter(idx int) []SquashedEntry {
	pos := (idx + 1) % r.capacity
	var out []SquashedEntry
	for pos != r.tail {
		out = append(out, SquashedEntry{Index: pos, Entry: r.entries[pos]})
		r.entries[pos] = nil
		pos = (pos + 1) % r.capacity
	}
	r.tail = (idx + 1) % r.capacity
	r.count -= len(out)
	return out
}

// Clear drops all in-flight entries. Pipeline.Reset uses it; a branch
// squash uses SquashAfter instead.
func (r *ReorderBuffer) Clear() {
	for i := range r.entries {
		r.entries[i] = nil
	}
	r.head, r.tail, r.count = 0, 0, 0
}
