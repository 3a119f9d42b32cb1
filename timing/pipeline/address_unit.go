package pipeline

import (
	"github.com/sarchlab/rv32ooo/emu"
	"github.com/sarchlab/rv32ooo/insts"
)

// addressEntry is one in-flight Load/Store/Jalr awaiting its base-register
// operand.
type addressEntry struct {
	robIdx int
	inst   *insts.Instruction
	base   emu.Operand
}

// AddressUnit computes addr = rs1 + imm for Load, Store and Jalr, keyed by
// ROB index (original_source/src/pipeline/functional_units/address.rs).
// Unlike the reservation station this unit has no multi-cycle latency: once
// its operand resolves the address is available the same cycle.
type AddressUnit struct {
	entries map[int]*addressEntry
}

// NewAddressUnit creates an empty address unit.
func NewAddressUnit() *AddressUnit {
	return &AddressUnit{entries: make(map[int]*addressEntry)}
}

// Issue inserts a Load/Store/Jalr awaiting its base-register operand.
func (au *AddressUnit) Issue(robIdx int, inst *insts.Instruction, base emu.Operand) {
	au.entries[robIdx] = &addressEntry{robIdx: robIdx, inst: inst, base: base}
}

// Propagate rewrites any entry's base operand referencing a just-finished
// ROB index.
func (au *AddressUnit) Propagate(job FinishedJob) {
	for _, e := range au.entries {
		e.base = e.base.Resolve(job.RobIndex, job.Value)
	}
}

// AddressResult is one address computed this cycle. Redirect is set (and
// Target populated) only for Jalr, whose target must be broadcast to the
// front end as a branch redirect in addition to resolving the ROB's addr
// operand.
type AddressResult struct {
	RobIndex int
	Addr     uint32
	Redirect bool
	Target   uint32
}

// Tick computes the address for every entry whose base operand has
// resolved, removing it from the unit.
func (au *AddressUnit) Tick() []AddressResult {
	var results []AddressResult
	for idx, e := range au.entries {
		if e.base.IsRob() {
			continue
		}
		addr := e.base.Value() + e.inst.Fields.Imm
		res := AddressResult{RobIndex: idx, Addr: addr}
		if e.inst.Opcode == insts.OpJalr {
			res.Redirect = true
			res.Target = addr &^ 1
		}
		results = append(results, res)
		delete(au.entries, idx)
	}
	return results
}

// Discard removes a single entry regardless of state — used to drop a
// squashed instruction out of the unit.
func (au *AddressUnit) Discard(idx int) {
	delete(au.entries, idx)
}

// Clear drops every entry. Pipeline.Reset uses it; a branch squash uses
// Discard instead.
func (au *AddressUnit) Clear() {
	au.entries = make(map[int]*addressEntry)
}

// Len reports the number of in-flight entries.
func (au *AddressUnit) Len() int {
	return len(au.entries)
}
