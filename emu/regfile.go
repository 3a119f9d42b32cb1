package emu

// RegFile represents the RV32I architectural register file: 32
// general-purpose registers, the program counter, and a per-register
// rename pointer into the reorder buffer.
//
// relatedROB[r] holds the index of the youngest in-flight ROB entry that
// will produce register r's next value, or -1 if gpr[r] already holds the
// architectural value. This is the renaming mechanism the out-of-order
// core relies on: reads of a register go through ReadOperand rather than
// GPR directly so a consumer can forward from the producing ROB entry
// instead of stalling for it to retire.
type RegFile struct {
	GPR [32]uint32
	PC  uint32

	relatedROB [32]int
}

// NewRegFile creates a register file with no outstanding renames.
func NewRegFile() *RegFile {
	r := &RegFile{}
	for i := range r.relatedROB {
		r.relatedROB[i] = -1
	}
	return r
}

// ReadReg reads the architectural value of register r. x0 always reads 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 0 {
		return 0
	}
	return r.GPR[reg]
}

// WriteReg writes the architectural value of register r. Writes to x0 are
// discarded.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 {
		return
	}
	r.GPR[reg] = value
}

// ReadOperand resolves register r for an instruction issuing now: if a
// ROB entry is renamed to r, return either its already-computed value or
// a forward reference to it; otherwise return the architectural value.
// x0 always resolves to Value(0), bypassing any rename.
func (r *RegFile) ReadOperand(reg uint8, robValue func(idx int) (uint32, bool)) Operand {
	if reg == 0 {
		return ValueOperand(0)
	}
	idx := r.relatedROB[reg]
	if idx < 0 {
		return ValueOperand(r.GPR[reg])
	}
	if v, done := robValue(idx); done {
		return ValueOperand(v)
	}
	return RobOperand(idx)
}

// SetRename records that ROB entry idx will produce register reg's next
// value. x0 is never renamed.
func (r *RegFile) SetRename(reg uint8, idx int) {
	if reg == 0 {
		return
	}
	r.relatedROB[reg] = idx
}

// ClearRename drops the rename for reg if it still points at idx. A
// younger instruction may already have claimed reg's name; in that case
// the rename must survive this retire.
func (r *RegFile) ClearRename(reg uint8, idx int) {
	if reg == 0 {
		return
	}
	if r.relatedROB[reg] == idx {
		r.relatedROB[reg] = -1
	}
}

// RenamedBy reports the ROB index currently renamed to reg, or -1.
func (r *RegFile) RenamedBy(reg uint8) int {
	if reg == 0 {
		return -1
	}
	return r.relatedROB[reg]
}

// ClearAllRenames drops every outstanding rename. Used on squash.
func (r *RegFile) ClearAllRenames() {
	for i := range r.relatedROB {
		r.relatedROB[i] = -1
	}
}
