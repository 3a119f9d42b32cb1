package pipeline

import (
	"github.com/sarchlab/rv32ooo/emu"
	"github.com/sarchlab/rv32ooo/insts"
)

// loadValue performs a Load's memory read, sign/zero-extending per width
// and signedness (original_source/src/pipeline/functional_units/memory.rs
// MemoryUnit::execute).
func loadValue(fn insts.Function, addr uint32, mem *emu.Memory) (uint32, error) {
	switch fn {
	case insts.FnLb:
		v, err := mem.Read8(addr)
		return uint32(int32(int8(v))), err
	case insts.FnLbu:
		v, err := mem.Read8(addr)
		return uint32(v), err
	case insts.FnLh:
		v, err := mem.Read16(addr)
		return uint32(int32(int16(v))), err
	case insts.FnLhu:
		v, err := mem.Read16(addr)
		return uint32(v), err
	case insts.FnLw:
		return mem.Read32(addr)
	default:
		return mem.Read32(addr)
	}
}

// storeValue performs a Store's memory write at the given width
// (original_source's MemoryUnit::execute_store, minus the AMO early-return
// — AMOs are handled by amoExecute below, not this function).
func storeValue(fn insts.Function, addr uint32, value uint32, mem *emu.Memory) error {
	switch fn {
	case insts.FnSb:
		return mem.Write8(addr, uint8(value))
	case insts.FnSh:
		return mem.Write16(addr, uint16(value))
	default:
		return mem.Write32(addr, value)
	}
}

// amoExecute reads the old word at addr and computes the RMW result that
// combining it with memValue (the instruction's rs2 operand) would produce,
// per the RMW operator — but does NOT write it back. The actual write is
// deferred to retire (doCommit), so a squash between this read and commit
// can still undo the instruction with no memory side effect (spec.md §4.6:
// "store the RMW result into entry.mem_value, restart mem_rem_cycle so the
// RMW write occurs at retire"). Returns (old, rmwResult, err); old becomes
// rd's value, per the RISC-V A extension's "AMO returns the pre-image."
// Lr.w is a pure load: its RMW result is never used (no later write), and
// Scw does not reach this function at all — it has no RMW combination, and
// its store-conditional write is handled directly by doCommit from its
// rs2 value.
func amoExecute(fn insts.Function, addr uint32, memValue uint32, mem *emu.Memory) (uint32, uint32, error) {
	old, err := mem.Read32(addr)
	if err != nil {
		return 0, 0, err
	}
	if fn == insts.FnLrw {
		return old, old, nil
	}

	var next uint32
	switch fn {
	case insts.FnAmoswapw:
		next = memValue
	case insts.FnAmoaddw:
		next = old + memValue
	case insts.FnAmoxorw:
		next = old ^ memValue
	case insts.FnAmoandw:
		next = old & memValue
	case insts.FnAmoorw:
		next = old | memValue
	case insts.FnAmominw:
		if int32(old) < int32(memValue) {
			next = old
		} else {
			next = memValue
		}
	case insts.FnAmomaxw:
		if int32(old) > int32(memValue) {
			next = old
		} else {
			next = memValue
		}
	case insts.FnAmominuw:
		if old < memValue {
			next = old
		} else {
			next = memValue
		}
	case insts.FnAmomaxuw:
		if old > memValue {
			next = old
		} else {
			next = memValue
		}
	default:
		next = memValue
	}

	return old, next, nil
}
