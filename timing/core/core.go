// Package core provides the cycle-accurate CPU core model.
// It wraps the pipeline implementation to provide a high-level interface.
package core

import (
	"github.com/sarchlab/rv32ooo/emu"
	"github.com/sarchlab/rv32ooo/timing/pipeline"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Squashes is the number of branch-misprediction squashes.
	Squashes uint64
	// ROBFullStalls is the number of cycles issue stalled on a full ROB.
	ROBFullStalls uint64
	// BranchPredicted is the number of branch predictions made.
	BranchPredicted uint64
	// BranchCorrect is the number of branch predictions that matched the
	// actual outcome.
	BranchCorrect uint64
}

// CPI returns cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core represents a cycle-accurate CPU core model.
// It wraps the out-of-order pipeline and provides a simple interface for
// simulation.
type Core struct {
	// Pipeline is the underlying Tomasulo-style timing model.
	Pipeline *pipeline.Pipeline

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory
}

// NewCore creates a new Core with the given register file and memory.
func NewCore(regFile *emu.RegFile, memory *emu.Memory, opts ...pipeline.PipelineOption) *Core {
	return &Core{
		Pipeline: pipeline.NewPipeline(regFile, memory, opts...),
		regFile:  regFile,
		memory:   memory,
	}
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint32) {
	c.Pipeline.SetPC(pc)
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() {
	c.Pipeline.Tick()
}

// Halted returns true if the core has halted (e.g., due to exit syscall).
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// ExitCode returns the exit code if the core has halted.
func (c *Core) ExitCode() int32 {
	return c.Pipeline.ExitCode()
}

// Fault returns the memory fault that halted the core, if any.
func (c *Core) Fault() error {
	return c.Pipeline.Fault()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:          pipeStats.Cycles,
		Instructions:    pipeStats.Instructions,
		Squashes:        pipeStats.Squashes,
		ROBFullStalls:   pipeStats.ROBFullStalls,
		BranchPredicted: pipeStats.BranchPredicted,
		BranchCorrect:   pipeStats.BranchCorrect,
	}
}

// Run executes the core until it halts.
// Returns the exit code.
func (c *Core) Run() int32 {
	return c.Pipeline.Run()
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	return c.Pipeline.RunCycles(cycles)
}

// Reset clears all core state.
func (c *Core) Reset() {
	c.Pipeline.Reset()
}
