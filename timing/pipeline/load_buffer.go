package pipeline

import (
	"github.com/sarchlab/rv32ooo/emu"
	"github.com/sarchlab/rv32ooo/insts"
)

// loadBufferEntry is a Load or (non-Scw) AMO whose address has resolved and
// is now waiting out the memory-disambiguation check and the multi-cycle
// memory latency before it can execute (spec.md §4.6 /
// original_source/src/pipeline/load_buffer.rs).
type loadBufferEntry struct {
	robIdx int
	inst   *insts.Instruction
	addr   uint32
}

// LoadBuffer holds in-flight loads and AMOs keyed by ROB index, enforcing
// that a load may not execute while an older store of unknown or aliasing
// address is still in flight.
type LoadBuffer struct {
	entries map[int]*loadBufferEntry
}

// NewLoadBuffer creates an empty load buffer.
func NewLoadBuffer() *LoadBuffer {
	return &LoadBuffer{entries: make(map[int]*loadBufferEntry)}
}

// Issue inserts a Load or AMO whose address the address unit has already
// computed.
func (lb *LoadBuffer) Issue(robIdx int, inst *insts.Instruction, addr uint32) {
	lb.entries[robIdx] = &loadBufferEntry{robIdx: robIdx, inst: inst, addr: addr}
}

// Len reports the number of in-flight entries.
func (lb *LoadBuffer) Len() int {
	return len(lb.entries)
}

// Discard removes a single entry regardless of state — used to drop a
// squashed instruction out of the buffer.
func (lb *LoadBuffer) Discard(idx int) {
	delete(lb.entries, idx)
}

// Clear drops every entry. Pipeline.Reset uses it; a branch squash uses
// Discard instead.
func (lb *LoadBuffer) Clear() {
	lb.entries = make(map[int]*loadBufferEntry)
}

// Tick advances every ready entry's memory-latency countdown (stored on the
// ROB entry itself as MemRemCycle, per original_source's rob-owned
// mem_rem_cycle) and executes the memory access once it reaches zero,
// returning the (rob_index, value) results to broadcast. An entry blocked
// by an older, unresolved-or-aliasing store does not advance its countdown
// this cycle (spec.md §4.6).
func (lb *LoadBuffer) Tick(rob *ReorderBuffer, mem *emu.Memory) []FinishedJob {
	var finished []FinishedJob
	for idx, e := range lb.entries {
		entry := rob.Get(idx)
		if entry == nil {
			delete(lb.entries, idx)
			continue
		}
		isAmo := e.inst.Opcode == insts.OpAmo
		if isAmo && entry.MemValue.IsRob() {
			// Condition 2 of spec.md §4.6: an AMO's rs2 (entry.MemValue) must
			// also be resolved before the RMW can fire — e.g. a multi-cycle
			// mul/div feeding rs2 may not have finished yet.
			continue
		}
		if rob.OlderStoresBlock(idx, e.addr) {
			continue
		}
		if entry.MemRemCycle > 0 {
			entry.MemRemCycle--
			continue
		}

		var value uint32
		var err error
		if isAmo {
			var rmw uint32
			value, rmw, err = amoExecute(e.inst.Function, e.addr, entry.MemValue.Value(), mem)
			if err == nil && e.inst.Function != insts.FnLrw {
				// Stash the RMW result and restart the latency so the write
				// itself happens at retire (doCommit), not here.
				entry.MemValue = emu.ValueOperand(rmw)
				entry.MemRemCycle = rob.MemLatency()
				delete(lb.entries, idx)
				finished = append(finished, FinishedJob{RobIndex: idx, Value: value})
				continue
			}
		} else {
			value, err = loadValue(e.inst.Function, e.addr, mem)
		}
		if err != nil {
			entry.MemFault = err
		}
		finished = append(finished, FinishedJob{RobIndex: idx, Value: value})
		delete(lb.entries, idx)
	}
	return finished
}
