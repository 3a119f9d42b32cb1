// Package pipeline provides an out-of-order, Tomasulo-style timing model
// for cycle-accurate RV32IMA simulation.
//
// The core is built from five cooperating structures:
//   - ReorderBuffer: the in-order commit record, and the sole owner of
//     each instruction's stable slot index.
//   - ReservationStation: arithmetic and branch-comparison ops awaiting
//     operands.
//   - AddressUnit: base+offset address computation for Load/Store/Amo/Jalr.
//   - LoadBuffer: memory-disambiguated loads and AMO read-modify-writes.
//   - BranchPredictor: a one-bit-history per-PC predictor.
//
// Every cycle runs four phases in a fixed order — Commit, WriteResult,
// Execute, Issue — so a value a functional unit finishes computing this
// cycle is not visible to waiting consumers until next cycle's
// WriteResult, matching the one-cycle common-data-bus latency of a real
// Tomasulo implementation.
package pipeline

import (
	"github.com/sarchlab/rv32ooo/emu"
	"github.com/sarchlab/rv32ooo/insts"
	"github.com/sarchlab/rv32ooo/timing/latency"
	"github.com/sirupsen/logrus"
)

// Pipeline is the out-of-order core.
type Pipeline struct {
	rob *ReorderBuffer
	rs  *ReservationStation
	lb  *LoadBuffer
	au  *AddressUnit
	bp  *BranchPredictor

	regFile *emu.RegFile
	memory  *emu.Memory
	decoder *insts.Decoder

	pc uint32

	pendingJobs  []FinishedJob
	pendingAddrs []AddressResult

	halted   bool
	exitCode int32
	fault    error

	cycleCount       uint64
	instructionCount uint64
	squashCount      uint64
	robFullStalls    uint64

	syscallHandler emu.SyscallHandler
	logger         *logrus.Logger
	trace          bool
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler emu.SyscallHandler) PipelineOption {
	return func(p *Pipeline) { p.syscallHandler = handler }
}

// WithROBCapacity sets the reorder buffer's fixed capacity (default 64).
func WithROBCapacity(capacity int) PipelineOption {
	return func(p *Pipeline) {
		p.rob = NewReorderBuffer(capacity, int(latency.DefaultTimingConfig().MemLatency))
	}
}

// WithLatencyTable installs a custom latency.Table, replacing both the
// reservation station's per-mnemonic latencies and the ROB's memory-access
// latency.
func WithLatencyTable(table *latency.Table) PipelineOption {
	return func(p *Pipeline) {
		p.rs = NewReservationStation(table)
		capacity := p.rob.capacity
		p.rob = NewReorderBuffer(capacity, int(table.MemLatency()))
	}
}

// WithLogger installs a logrus.Logger used for the per-cycle retirement
// trace (see WithTrace).
func WithLogger(logger *logrus.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithTrace enables a logrus trace line for every retired instruction.
func WithTrace(enabled bool) PipelineOption {
	return func(p *Pipeline) { p.trace = enabled }
}

// DefaultROBCapacity is the reorder buffer size used when no
// WithROBCapacity option is given (spec.md §9 recommends 64-256).
const DefaultROBCapacity = 64

// NewPipeline creates a new out-of-order pipeline over regFile and memory.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...PipelineOption) *Pipeline {
	table := latency.NewTable()
	p := &Pipeline{
		rob:     NewReorderBuffer(DefaultROBCapacity, int(table.MemLatency())),
		rs:      NewReservationStation(table),
		lb:      NewLoadBuffer(),
		au:      NewAddressUnit(),
		bp:      NewBranchPredictor(),
		regFile: regFile,
		memory:  memory,
		decoder: insts.NewDecoder(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.syscallHandler == nil {
		p.syscallHandler = emu.NewDefaultSyscallHandler(regFile, memory, nil, nil)
	}
	if p.logger == nil {
		p.logger = logrus.New()
	}

	return p
}

// SetPC sets the program counter instructions are fetched from.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc
	p.regFile.PC = pc
}

// Halted reports whether the core has stopped issuing (exit syscall or a
// retired fault).
func (p *Pipeline) Halted() bool {
	return p.halted
}

// ExitCode returns the guest's exit status once Halted is true.
func (p *Pipeline) ExitCode() int32 {
	return p.exitCode
}

// Fault returns the error that halted the core, if it halted on a memory
// fault rather than a syscall exit.
func (p *Pipeline) Fault() error {
	return p.fault
}

// Tick executes one cycle's four phases in order: Commit, WriteResult,
// Execute, Issue.
func (p *Pipeline) Tick() {
	p.doCommit()
	p.doWriteResult()
	jobs, addrs := p.doExecute()
	p.doIssue()
	p.pendingJobs = jobs
	p.pendingAddrs = addrs
	p.cycleCount++
}

// doCommit retires the ROB head if it has completed, applying its
// architectural effect exactly once and in program order (spec.md §4.9).
func (p *Pipeline) doCommit() {
	idx, ok := p.rob.HeadIndex()
	if !ok {
		return
	}
	entry := p.rob.Get(idx)
	if !entry.IsCompleted() {
		return
	}

	if entry.MemFault != nil {
		p.halted = true
		p.fault = entry.MemFault
		return
	}

	switch entry.Inst.Opcode {
	case insts.OpStore:
		if err := storeValue(entry.Inst.Function, entry.Addr.Value(), entry.MemValue.Value(), p.memory); err != nil {
			p.halted = true
			p.fault = err
			return
		}
	case insts.OpAmo:
		// Lr.w never writes; every other AMO (including Scw, whose
		// MemValue already holds its rs2 value untouched since issue)
		// performs its deferred write here, at retire, not in the load
		// buffer (spec.md §4.6/§4.7).
		if entry.Inst.Function != insts.FnLrw {
			if err := storeValue(entry.Inst.Function, entry.Addr.Value(), entry.MemValue.Value(), p.memory); err != nil {
				p.halted = true
				p.fault = err
				return
			}
		}
		if entry.Rd != 0 && entry.RegValue != nil {
			p.regFile.WriteReg(entry.Rd, *entry.RegValue)
		}
	case insts.OpBranch:
		// Outcome and squash (if any) were already handled the cycle the
		// comparison finished (doWriteResult); nothing left to do here.
	case insts.OpSystem:
		if entry.Inst.Function == insts.FnEcall {
			res := p.syscallHandler.Handle()
			if res.Exited {
				p.halted = true
				p.exitCode = res.ExitCode
			}
		}
	default:
		if entry.Rd != 0 && entry.RegValue != nil {
			p.regFile.WriteReg(entry.Rd, *entry.RegValue)
		}
	}

	if entry.Rd != 0 {
		p.regFile.ClearRename(entry.Rd, idx)
	}

	if p.trace {
		p.logger.WithFields(logrus.Fields{
			"cycle": p.cycleCount,
			"pc":    entry.PC,
			"rob":   idx,
		}).Info("retire")
	}

	p.instructionCount++
	p.rob.Retire()
}

// doWriteResult broadcasts last cycle's functional-unit results onto the
// common data bus: it resolves every waiting operand in the ROB,
// reservation station and address unit, resolves a just-computed address
// into the load buffer, applies any Jalr redirect, and squashes on branch
// misprediction.
func (p *Pipeline) doWriteResult() {
	for _, job := range p.pendingJobs {
		entry := p.rob.Get(job.RobIndex)
		if entry == nil {
			continue // squashed before this broadcast landed
		}
		p.rob.Propagate(job.RobIndex, job.Value)
		p.rs.Propagate(job)
		p.au.Propagate(job)

		if entry.Inst.Opcode == insts.OpBranch {
			taken := job.Value != 0
			p.bp.Update(entry.PC, taken)
			if taken != entry.BranchPred {
				target := entry.PC + 4
				if taken {
					target = entry.PC + entry.Inst.Fields.Imm
				}
				p.squash(job.RobIndex, target)
			}
		}
	}

	for _, ar := range p.pendingAddrs {
		entry := p.rob.Get(ar.RobIndex)
		if entry == nil {
			continue
		}
		entry.Addr = emu.ValueOperand(ar.Addr)

		if entry.Inst.Opcode == insts.OpLoad ||
			(entry.Inst.Opcode == insts.OpAmo && entry.Inst.Function != insts.FnScw) {
			p.lb.Issue(ar.RobIndex, entry.Inst, ar.Addr)
		}
		if ar.Redirect {
			p.pc = ar.Target
		}
	}
}

// doExecute advances every functional unit one cycle, returning the
// results that will be broadcast at the START of next cycle's
// doWriteResult (spec.md's one-cycle CDB latency).
func (p *Pipeline) doExecute() ([]FinishedJob, []AddressResult) {
	jobs := p.rs.Tick()
	jobs = append(jobs, p.lb.Tick(p.rob, p.memory)...)
	addrs := p.au.Tick()
	p.tickStoreLatency()
	return jobs, addrs
}

// tickStoreLatency advances the ROB head's deferred-write countdown once
// its address and write-back value (and, for an AMO, its destination
// register) have resolved. Stores never pass through the load buffer at
// all, and a non-Lrw AMO's second latency phase — restarted by the load
// buffer once its RMW result is computed — only resumes counting down once
// the entry reaches the ROB head (spec.md §4.8 step 3: "if the ROB head is
// a Store or a non-Lrw AMO whose addr, mem_value ... are resolved, perform
// its memory write at retire, not here"). Lrw and Load never reach this:
// their entire memory access happens inside the load buffer.
func (p *Pipeline) tickStoreLatency() {
	idx, ok := p.rob.HeadIndex()
	if !ok {
		return
	}
	entry := p.rob.Get(idx)
	isAmoWrite := entry.Inst.Opcode == insts.OpAmo && entry.Inst.Function != insts.FnLrw
	if entry.Inst.Opcode != insts.OpStore && !isAmoWrite {
		return
	}
	if entry.Addr.IsRob() || entry.MemValue.IsRob() {
		return
	}
	if isAmoWrite && entry.RegValue == nil {
		return
	}
	if entry.MemRemCycle > 0 {
		entry.MemRemCycle--
	}
}

// doIssue fetches, decodes and dispatches up to two instructions per cycle
// (spec.md §4.8 step 4's dual-issue front end), stopping early whenever
// issueOne reports the window should close.
func (p *Pipeline) doIssue() {
	for i := 0; i < 2; i++ {
		if p.issueOne() {
			return
		}
	}
}

// issueOne fetches and decodes the next instruction and dispatches it to
// the ROB and the appropriate functional unit. It returns true when no
// further instruction should be issued this cycle: the core is halted, the
// ROB is full, the youngest in-flight instruction is an Ecall or an
// unresolved Jalr (spec.md §4.8's back-pressure rule), or the instruction
// just issued was itself a Jal, Jalr, or Ecall — the predictor speculates
// through conditional branches but fetch does not guess past an
// unconditional jump or a syscall.
func (p *Pipeline) issueOne() bool {
	if p.halted {
		return true
	}
	if p.rob.Full() {
		p.robFullStalls++
		return true
	}
	if tailIdx, ok := p.rob.TailPrevIndex(); ok {
		if prev := p.rob.Get(tailIdx); prev != nil {
			if prev.Inst.Function == insts.FnEcall {
				return true
			}
			if prev.Inst.Opcode == insts.OpJalr && prev.Addr.IsRob() {
				return true
			}
		}
	}

	word, err := p.memory.ReadInst(p.pc)
	if err != nil {
		p.halted = true
		p.fault = err
		return true
	}
	inst := p.decoder.Decode(word)
	pc := p.pc
	idx := p.rob.Issue(pc, inst, p.regFile)
	entry := p.rob.Get(idx)

	nextPC := pc + 4
	stop := false

	switch inst.Opcode {
	case insts.OpBranch:
		predicted := p.bp.Predict(pc)
		entry.BranchPred = predicted
		op1 := p.regFile.ReadOperand(inst.Fields.Rs1, p.rob.resolvedValue)
		op2 := p.regFile.ReadOperand(inst.Fields.Rs2, p.rob.resolvedValue)
		p.rs.Issue(idx, inst, op1, op2)
		if predicted {
			nextPC = pc + inst.Fields.Imm
		}

	case insts.OpJal:
		nextPC = pc + inst.Fields.Imm
		p.regFile.SetRename(inst.Fields.Rd, idx)
		stop = true

	case insts.OpJalr:
		base := p.regFile.ReadOperand(inst.Fields.Rs1, p.rob.resolvedValue)
		p.au.Issue(idx, inst, base)
		p.regFile.SetRename(inst.Fields.Rd, idx)
		stop = true

	case insts.OpLui, insts.OpAuiPc:
		p.regFile.SetRename(inst.Fields.Rd, idx)

	case insts.OpLoad:
		base := p.regFile.ReadOperand(inst.Fields.Rs1, p.rob.resolvedValue)
		p.au.Issue(idx, inst, base)
		p.regFile.SetRename(inst.Fields.Rd, idx)

	case insts.OpStore:
		base := p.regFile.ReadOperand(inst.Fields.Rs1, p.rob.resolvedValue)
		p.au.Issue(idx, inst, base)

	case insts.OpAmo:
		base := p.regFile.ReadOperand(inst.Fields.Rs1, p.rob.resolvedValue)
		p.au.Issue(idx, inst, base)
		p.regFile.SetRename(inst.Fields.Rd, idx)

	case insts.OpOp, insts.OpOpImm:
		op1 := p.regFile.ReadOperand(inst.Fields.Rs1, p.rob.resolvedValue)
		var op2 emu.Operand
		if inst.Opcode == insts.OpOpImm {
			op2 = emu.ValueOperand(inst.Fields.Imm)
		} else {
			op2 = p.regFile.ReadOperand(inst.Fields.Rs2, p.rob.resolvedValue)
		}
		p.rs.Issue(idx, inst, op1, op2)
		p.regFile.SetRename(inst.Fields.Rd, idx)

	case insts.OpMiscMem, insts.OpSystem, insts.OpFP:
		// No functional unit: reg_value was already resolved in rob.Issue.
		if inst.Opcode == insts.OpSystem && inst.Function == insts.FnEcall {
			stop = true
		}
	}

	p.pc = nextPC
	return stop
}

// squash discards everything issued after branchIdx, drops them from
// whichever functional unit held them, and rebuilds the register renames
// from the surviving in-flight entries, so a register whose youngest
// producer was discarded points back at an older in-flight producer.
func (p *Pipeline) squash(branchIdx int, targetPC uint32) {
	discarded := p.rob.SquashAfter(branchIdx)
	for _, d := range discarded {
		p.rs.Discard(d.Index)
		p.lb.Discard(d.Index)
		p.au.Discard(d.Index)
	}
	p.regFile.ClearAllRenames()
	pos, _ := p.rob.HeadIndex()
	for i := 0; i < p.rob.Len(); i++ {
		switch e := p.rob.Get(pos); e.Inst.Opcode {
		case insts.OpStore, insts.OpBranch, insts.OpMiscMem, insts.OpSystem, insts.OpFP:
		default:
			p.regFile.SetRename(e.Rd, pos)
		}
		pos = (pos + 1) % p.rob.capacity
	}

	discardedSet := make(map[int]bool, len(discarded))
	for _, d := range discarded {
		discardedSet[d.Index] = true
	}
	filteredJobs := p.pendingJobs[:0]
	for _, j := range p.pendingJobs {
		if !discardedSet[j.RobIndex] {
			filteredJobs = append(filteredJobs, j)
		}
	}
	p.pendingJobs = filteredJobs
	filteredAddrs := p.pendingAddrs[:0]
	for _, a := range p.pendingAddrs {
		if !discardedSet[a.RobIndex] {
			filteredAddrs = append(filteredAddrs, a)
		}
	}
	p.pendingAddrs = filteredAddrs

	p.pc = targetPC
	p.squashCount++
}

// Stats holds performance counters for the core, in the teacher's
// plain-struct-with-accessor style.
type Stats struct {
	Cycles          uint64
	Instructions    uint64
	Squashes        uint64
	ROBFullStalls   uint64
	BranchPredicted uint64
	BranchCorrect   uint64
}

// CPI returns cycles-per-instruction, or 0 if nothing has retired yet.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Stats returns the pipeline's current performance counters.
func (p *Pipeline) Stats() Stats {
	bpStats := p.bp.Stats()
	return Stats{
		Cycles:          p.cycleCount,
		Instructions:    p.instructionCount,
		Squashes:        p.squashCount,
		ROBFullStalls:   p.robFullStalls,
		BranchPredicted: bpStats.Predictions,
		BranchCorrect:   bpStats.Correct,
	}
}

// Run executes the core until it halts, returning the guest exit code.
func (p *Pipeline) Run() int32 {
	for !p.halted {
		p.Tick()
	}
	return p.exitCode
}

// RunCycles executes up to the given number of cycles, stopping early if
// the core halts. Returns true if still running.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		p.Tick()
	}
	return !p.halted
}

// Reset clears all in-flight state and counters, leaving the pipeline ready
// to run again from a freshly set PC over the same register file and
// memory.
func (p *Pipeline) Reset() {
	p.rob.Clear()
	p.rs.Clear()
	p.lb.Clear()
	p.au.Clear()
	p.bp.Reset()
	p.pendingJobs = nil
	p.pendingAddrs = nil
	p.halted = false
	p.exitCode = 0
	p.fault = nil
	p.cycleCount = 0
	p.instructionCount = 0
	p.squashCount = 0
	p.robFullStalls = 0
}

// GetROB exposes the reorder buffer for inspection.
func (p *Pipeline) GetROB() *ReorderBuffer { return p.rob }

// GetReservationStation exposes the reservation station for inspection.
func (p *Pipeline) GetReservationStation() *ReservationStation { return p.rs }

// GetLoadBuffer exposes the load buffer for inspection.
func (p *Pipeline) GetLoadBuffer() *LoadBuffer { return p.lb }

// GetAddressUnit exposes the address unit for inspection.
func (p *Pipeline) GetAddressUnit() *AddressUnit { return p.au }

// GetBranchPredictor exposes the branch predictor for inspection.
func (p *Pipeline) GetBranchPredictor() *BranchPredictor { return p.bp }

// PC returns the current fetch program counter.
func (p *Pipeline) PC() uint32 { return p.pc }
