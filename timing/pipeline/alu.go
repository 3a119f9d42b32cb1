package pipeline

import "github.com/sarchlab/rv32ooo/insts"

// alu computes the RV32IM arithmetic/logical result of fn applied to two
// 32-bit operands. It is a pure function of its three inputs, grounded in
// original_source/src/alu.rs's match table, with two corrections noted in
// spec.md §9: Mul computes op1*op2 (the source's `a*a` is a bug), and
// register-register shifts mask the shift amount to the low 5 bits per the
// RISC-V spec rather than shifting by the full 32-bit value.
//
// For branch mnemonics the result is 1 if the branch is taken, else 0 —
// this becomes the ROB entry's reg_value, compared against branch_pred at
// retire (spec.md §4.9).
func alu(fn insts.Function, op1, op2 uint32) uint32 {
	s1, s2 := int32(op1), int32(op2)

	switch fn {
	case insts.FnAdd, insts.FnAddi:
		return op1 + op2
	case insts.FnSub:
		return op1 - op2
	case insts.FnSlt, insts.FnSlti:
		return boolToWord(s1 < s2)
	case insts.FnSltu, insts.FnSltiu:
		return boolToWord(op1 < op2)
	case insts.FnAnd, insts.FnAndi:
		return op1 & op2
	case insts.FnOr, insts.FnOri:
		return op1 | op2
	case insts.FnXor, insts.FnXori:
		return op1 ^ op2
	case insts.FnSll, insts.FnSlli:
		return op1 << (op2 & 0x1f)
	case insts.FnSrl, insts.FnSrli:
		return op1 >> (op2 & 0x1f)
	case insts.FnSra, insts.FnSrai:
		return uint32(s1 >> (op2 & 0x1f))

	case insts.FnBeq:
		return boolToWord(op1 == op2)
	case insts.FnBne:
		return boolToWord(op1 != op2)
	case insts.FnBlt:
		return boolToWord(s1 < s2)
	case insts.FnBge:
		return boolToWord(s1 >= s2)
	case insts.FnBltu:
		return boolToWord(op1 < op2)
	case insts.FnBgeu:
		return boolToWord(op1 >= op2)

	case insts.FnLb, insts.FnLbu, insts.FnLh, insts.FnLhu, insts.FnLw,
		insts.FnSb, insts.FnSh, insts.FnSw:
		return op1 + op2

	case insts.FnMul:
		return op1 * op2
	case insts.FnMulh:
		return uint32((int64(s1) * int64(s2)) >> 32)
	case insts.FnMulhu:
		return uint32((uint64(op1) * uint64(op2)) >> 32)
	case insts.FnMulhsu:
		return uint32((int64(s1) * int64(op2)) >> 32)

	case insts.FnDiv:
		return divSigned(s1, s2)
	case insts.FnDivu:
		return divUnsigned(op1, op2)
	case insts.FnRem:
		return remSigned(s1, s2)
	case insts.FnRemu:
		return remUnsigned(op1, op2)

	default:
		return 0
	}
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// RISC-V integer division never traps: division by zero and the
// INT_MIN/-1 overflow case both have defined results (RV32I spec ch. 7).
func divSigned(a, b int32) uint32 {
	if b == 0 {
		return 0xffffffff
	}
	if a == -(1<<31) && b == -1 {
		return uint32(a)
	}
	return uint32(a / b)
}

func divUnsigned(a, b uint32) uint32 {
	if b == 0 {
		return 0xffffffff
	}
	return a / b
}

func remSigned(a, b int32) uint32 {
	if b == 0 {
		return uint32(a)
	}
	if a == -(1<<31) && b == -1 {
		return 0
	}
	return uint32(a % b)
}

func remUnsigned(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return a % b
}
