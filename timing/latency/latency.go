// Package latency provides instruction timing models for the out-of-order
// core's reservation station and memory accesses.
package latency

import (
	"github.com/sarchlab/rv32ooo/insts"
)

// Table provides per-mnemonic latency lookups, configurable via
// TimingConfig.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with the default RV32IMA timing
// values.
func NewTable() *Table {
	return &Table{config: DefaultTimingConfig()}
}

// NewTableWithConfig creates a new latency table with a custom timing
// configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{config: config}
}

// GetLatency returns the functional-unit latency in cycles for the given
// mnemonic.
func (t *Table) GetLatency(fn insts.Function) uint64 {
	switch fn {
	case insts.FnMul, insts.FnMulh, insts.FnMulhsu, insts.FnMulhu:
		return t.config.MultiplyLatency
	case insts.FnDiv, insts.FnDivu, insts.FnRem, insts.FnRemu:
		return t.config.DivideLatency
	case insts.FnEcall, insts.FnEbreak:
		return t.config.SyscallLatency
	default:
		return t.config.ALULatency
	}
}

// IsMultiply reports whether fn is one of the Mul family.
func (t *Table) IsMultiply(fn insts.Function) bool {
	switch fn {
	case insts.FnMul, insts.FnMulh, insts.FnMulhsu, insts.FnMulhu:
		return true
	default:
		return false
	}
}

// IsDivide reports whether fn is one of the Div/Rem family.
func (t *Table) IsDivide(fn insts.Function) bool {
	switch fn {
	case insts.FnDiv, insts.FnDivu, insts.FnRem, insts.FnRemu:
		return true
	default:
		return false
	}
}

// MemLatency returns the configured memory-access latency (load, store or
// AMO countdown).
func (t *Table) MemLatency() uint64 {
	return t.config.MemLatency
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
