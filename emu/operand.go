// Package emu provides functional RV32IMA emulation: the architectural
// register file, the process memory image, and host syscalls.
package emu

import "fmt"

// Operand is a tagged value used throughout the out-of-order core in place
// of a nullable pointer: it is either a resolved 32-bit value or a forward
// reference to the ROB entry that will eventually produce one.
type Operand struct {
	robIndex int
	value    uint32
	isRob    bool
}

// ValueOperand returns a resolved operand holding v.
func ValueOperand(v uint32) Operand {
	return Operand{value: v}
}

// RobOperand returns a pending operand referencing ROB index idx.
func RobOperand(idx int) Operand {
	return Operand{robIndex: idx, isRob: true}
}

// IsRob reports whether the operand is still a forward reference.
func (o Operand) IsRob() bool {
	return o.isRob
}

// RobIndex returns the referenced ROB index. Only meaningful if IsRob.
func (o Operand) RobIndex() int {
	return o.robIndex
}

// Value returns the resolved value. Only meaningful if !IsRob.
func (o Operand) Value() uint32 {
	return o.value
}

// Resolve replaces a Rob(idx) operand with Value(v) if it references idx;
// otherwise it returns the receiver unchanged.
func (o Operand) Resolve(idx int, v uint32) Operand {
	if o.isRob && o.robIndex == idx {
		return ValueOperand(v)
	}
	return o
}

func (o Operand) String() string {
	if o.isRob {
		return fmt.Sprintf("Rob(%d)", o.robIndex)
	}
	return fmt.Sprintf("Value(0x%x)", o.value)
}
