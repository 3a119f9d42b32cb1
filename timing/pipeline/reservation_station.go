package pipeline

import (
	"github.com/sarchlab/rv32ooo/emu"
	"github.com/sarchlab/rv32ooo/insts"
	"github.com/sarchlab/rv32ooo/timing/latency"
)

// FinishedJob is a (rob_index, value) pair broadcast by a functional unit
// once its computation completes — the "propagate" message of spec.md
// §4.3/§4.4/§4.5/§4.6.
type FinishedJob struct {
	RobIndex int
	Value    uint32
}

// RSStatus is a reservation-station entry's execution state.
type RSStatus uint8

const (
	RSWait RSStatus = iota
	RSExecute
	RSFinished
)

// RSEntry holds one arithmetic op awaiting (or computing) its operands.
type RSEntry struct {
	RobIndex       int
	Status         RSStatus
	Inst           *insts.Instruction
	Op1, Op2       emu.Operand
	Value          uint32
	remainingClock int
}

// ReservationStation holds arithmetic ops (Op/OpImm/Branch) awaiting
// operands, keyed by ROB index (spec.md §4.4).
type ReservationStation struct {
	entries map[int]*RSEntry
	table   *latency.Table
}

// NewReservationStation creates an empty reservation station using the
// given latency table for per-mnemonic cycle counts (spec.md §4.4).
func NewReservationStation(table *latency.Table) *ReservationStation {
	return &ReservationStation{entries: make(map[int]*RSEntry), table: table}
}

// Issue inserts a new entry for a pure-arithmetic or branch instruction,
// with both operands already resolved through the register map (per §4.1).
func (rs *ReservationStation) Issue(robIdx int, inst *insts.Instruction, op1, op2 emu.Operand) {
	rs.entries[robIdx] = &RSEntry{
		RobIndex:       robIdx,
		Status:         RSWait,
		Inst:           inst,
		Op1:            op1,
		Op2:            op2,
		remainingClock: int(rs.table.GetLatency(inst.Function)),
	}
}

// Propagate rewrites any operand referencing a just-finished ROB index
// with its resolved value.
func (rs *ReservationStation) Propagate(job FinishedJob) {
	for _, e := range rs.entries {
		e.Op1 = e.Op1.Resolve(job.RobIndex, job.Value)
		e.Op2 = e.Op2.Resolve(job.RobIndex, job.Value)
	}
}

// Tick advances every entry one cycle: Wait becomes Execute once both
// operands resolve, Execute counts down to Finished. It returns every
// entry that finished this cycle and removes them from the station.
func (rs *ReservationStation) Tick() []FinishedJob {
	var finished []FinishedJob
	for idx, e := range rs.entries {
		switch e.Status {
		case RSWait:
			if !e.Op1.IsRob() && !e.Op2.IsRob() {
				e.Status = RSExecute
			}
		case RSFinished:
			continue
		}
		if e.Status == RSExecute {
			e.remainingClock--
			if e.remainingClock <= 0 {
				e.Value = alu(e.Inst.Function, e.Op1.Value(), e.Op2.Value())
				e.Status = RSFinished
				finished = append(finished, FinishedJob{RobIndex: idx, Value: e.Value})
				delete(rs.entries, idx)
			}
		}
	}
	return finished
}

// Discard removes a single entry regardless of status — used to drop a
// squashed instruction out of the station.
func (rs *ReservationStation) Discard(idx int) {
	delete(rs.entries, idx)
}

// Clear drops every entry. Pipeline.Reset uses it; a branch squash uses
// Discard instead.
func (rs *ReservationStation) Clear() {
	rs.entries = make(map[int]*RSEntry)
}

// Len reports the number of in-flight entries (for stats/inspection).
func (rs *ReservationStation) Len() int {
	return len(rs.entries)
}
