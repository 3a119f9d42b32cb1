package insts

// Function is the fine-grained mnemonic, disambiguating instructions that
// share an opcode (e.g. OpOp covers Add, Sub, Mul, ...).
type Function uint8

const (
	FnLui Function = iota
	FnAuiPc
	FnJal
	FnJalr
	FnBeq
	FnBne
	FnBlt
	FnBge
	FnBltu
	FnBgeu
	FnLb
	FnLh
	FnLw
	FnLbu
	FnLhu
	FnSb
	FnSh
	FnSw
	FnAddi
	FnSlti
	FnSltiu
	FnXori
	FnOri
	FnAndi
	FnSlli
	FnSrli
	FnSrai
	FnAdd
	FnSub
	FnSll
	FnSlt
	FnSltu
	FnXor
	FnSrl
	FnSra
	FnOr
	FnAnd
	FnFence
	FnFencei
	FnEcall
	FnEbreak
	FnMul
	FnMulh
	FnMulhsu
	FnMulhu
	FnDiv
	FnDivu
	FnRem
	FnRemu
	FnLrw
	FnScw
	FnAmoswapw
	FnAmoaddw
	FnAmoxorw
	FnAmoandw
	FnAmoorw
	FnAmominw
	FnAmomaxw
	FnAmominuw
	FnAmomaxuw
	// FnNop is substituted for any decoded FP function: FP opcodes are
	// recognized (DecodeOpcode returns OpFP) but demoted to a NOP rather
	// than executed (spec.md §1 Non-goals).
	FnNop
)

// Fields holds the decoded sub-fields of an instruction: register
// operands and the sign-extended immediate.
type Fields struct {
	Rs1    uint8
	Rs2    uint8
	Rs3    uint8 // funct5 field in the R4/Amo encoding
	Rd     uint8
	Funct3 uint8
	Funct7 uint8
	Imm    uint32
}

const (
	rs1Mask, rs1Shift     = 0xf8000, 15
	rs2Mask, rs2Shift     = 0x1f00000, 20
	rs3Mask, rs3Shift     = 0xf8000000, 27
	rdMask, rdShift       = 0xf80, 7
	funct3Mask, f3Shift   = 0x7000, 12
	funct7Mask, f7Shift   = 0xfe000000, 25
)

// decodeFields extracts Fields per RV32I encoding rules for the given
// format, sign-extending the immediate through a shift-left/arithmetic
// shift-right pair (original_source/src/instruction.rs's Fields::new).
func decodeFields(word uint32, format Format, op Opcode) Fields {
	f := Fields{
		Rs1:    uint8((word & rs1Mask) >> rs1Shift),
		Rs2:    uint8((word & rs2Mask) >> rs2Shift),
		Rs3:    uint8((word & rs3Mask) >> rs3Shift),
		Rd:     uint8((word & rdMask) >> rdShift),
		Funct3: uint8((word & funct3Mask) >> f3Shift),
		Funct7: uint8((word & funct7Mask) >> f7Shift),
	}

	var imm uint32
	switch {
	case format == FormatR:
		imm = 0
	case format == FormatI && op == OpOpImm && (f.Funct3 == 0x1 || f.Funct3 == 0x5):
		// Slli/Srli/Srai: the "immediate" is a 5-bit shift amount living
		// where rs2 would be.
		imm = (word & rs2Mask) >> rs2Shift
	case format == FormatI:
		imm = (word & 0xfff00000) >> 20
	case format == FormatS:
		imm = ((word & 0xfe000000) >> 20) | ((word & 0xf80) >> 7)
	case format == FormatB:
		imm = ((word & 0x80000000) >> 19) | ((word & 0x80) << 4) |
			((word & 0x7e000000) >> 20) | ((word & 0xf00) >> 7)
	case format == FormatU:
		imm = word & 0xfffff000
	case format == FormatJ:
		imm = ((word & 0x80000000) >> 11) | (word & 0xff000) |
			((word & 0x100000) >> 9) | ((word & 0x7fe00000) >> 20)
	}

	var shamt uint
	switch op {
	case OpLui, OpAuiPc:
		shamt = 0
	case OpJal:
		shamt = 11
	case OpBranch:
		shamt = 19
	default:
		shamt = 20
	}
	f.Imm = uint32((int32(imm) << shamt) >> shamt)
	return f
}

// decodeFunction resolves the fine-grained mnemonic. Unknown
// opcode/funct3/funct7/funct5 combinations are a decoder programming
// error and panic (spec.md §7).
func decodeFunction(word uint32, f Fields, op Opcode) Function {
	switch op {
	case OpLui:
		return FnLui
	case OpAuiPc:
		return FnAuiPc
	case OpJal:
		return FnJal
	case OpJalr:
		return FnJalr
	case OpFP:
		return FnNop
	}

	switch {
	case op == OpBranch && f.Funct3 == 0b000:
		return FnBeq
	case op == OpBranch && f.Funct3 == 0b001:
		return FnBne
	case op == OpBranch && f.Funct3 == 0b100:
		return FnBlt
	case op == OpBranch && f.Funct3 == 0b101:
		return FnBge
	case op == OpBranch && f.Funct3 == 0b110:
		return FnBltu
	case op == OpBranch && f.Funct3 == 0b111:
		return FnBgeu

	case op == OpLoad && f.Funct3 == 0b000:
		return FnLb
	case op == OpLoad && f.Funct3 == 0b001:
		return FnLh
	case op == OpLoad && f.Funct3 == 0b010:
		return FnLw
	case op == OpLoad && f.Funct3 == 0b100:
		return FnLbu
	case op == OpLoad && f.Funct3 == 0b101:
		return FnLhu

	case op == OpStore && f.Funct3 == 0b000:
		return FnSb
	case op == OpStore && f.Funct3 == 0b001:
		return FnSh
	case op == OpStore && f.Funct3 == 0b010:
		return FnSw

	case op == OpOpImm && f.Funct3 == 0b000:
		return FnAddi
	case op == OpOpImm && f.Funct3 == 0b010:
		return FnSlti
	case op == OpOpImm && f.Funct3 == 0b011:
		return FnSltiu
	case op == OpOpImm && f.Funct3 == 0b100:
		return FnXori
	case op == OpOpImm && f.Funct3 == 0b110:
		return FnOri
	case op == OpOpImm && f.Funct3 == 0b111:
		return FnAndi
	case op == OpOpImm && f.Funct3 == 0b001:
		return FnSlli
	case op == OpOpImm && f.Funct3 == 0b101 && f.Funct7 == 0b0000000:
		return FnSrli
	case op == OpOpImm && f.Funct3 == 0b101 && f.Funct7 == 0b0100000:
		return FnSrai

	case op == OpOp && f.Funct3 == 0b000 && f.Funct7 == 0b0000000:
		return FnAdd
	case op == OpOp && f.Funct3 == 0b000 && f.Funct7 == 0b0100000:
		return FnSub
	case op == OpOp && f.Funct3 == 0b001 && f.Funct7 == 0b0000000:
		return FnSll
	case op == OpOp && f.Funct3 == 0b010 && f.Funct7 == 0b0000000:
		return FnSlt
	case op == OpOp && f.Funct3 == 0b011 && f.Funct7 == 0b0000000:
		return FnSltu
	case op == OpOp && f.Funct3 == 0b100 && f.Funct7 == 0b0000000:
		return FnXor
	case op == OpOp && f.Funct3 == 0b101 && f.Funct7 == 0b0000000:
		return FnSrl
	case op == OpOp && f.Funct3 == 0b101 && f.Funct7 == 0b0100000:
		return FnSra
	case op == OpOp && f.Funct3 == 0b110 && f.Funct7 == 0b0000000:
		return FnOr
	case op == OpOp && f.Funct3 == 0b111 && f.Funct7 == 0b0000000:
		return FnAnd

	case op == OpMiscMem && f.Funct3 == 0b000:
		return FnFence
	case op == OpMiscMem && f.Funct3 == 0b001:
		return FnFencei

	case op == OpSystem && f.Funct3 == 0b000 && f.Imm == 1:
		return FnEbreak
	case op == OpSystem && f.Funct3 == 0b000:
		return FnEcall

	case op == OpOp && f.Funct3 == 0b000 && f.Funct7 == 0b0000001:
		return FnMul
	case op == OpOp && f.Funct3 == 0b001 && f.Funct7 == 0b0000001:
		return FnMulh
	case op == OpOp && f.Funct3 == 0b010 && f.Funct7 == 0b0000001:
		return FnMulhsu
	case op == OpOp && f.Funct3 == 0b011 && f.Funct7 == 0b0000001:
		return FnMulhu
	case op == OpOp && f.Funct3 == 0b100 && f.Funct7 == 0b0000001:
		return FnDiv
	case op == OpOp && f.Funct3 == 0b101 && f.Funct7 == 0b0000001:
		return FnDivu
	case op == OpOp && f.Funct3 == 0b110 && f.Funct7 == 0b0000001:
		return FnRem
	case op == OpOp && f.Funct3 == 0b111 && f.Funct7 == 0b0000001:
		return FnRemu

	case op == OpAmo && f.Funct3 == 0b010 && f.Rs3 == 0b00010:
		return FnLrw
	case op == OpAmo && f.Funct3 == 0b010 && f.Rs3 == 0b00011:
		return FnScw
	case op == OpAmo && f.Funct3 == 0b010 && f.Rs3 == 0b00001:
		return FnAmoswapw
	case op == OpAmo && f.Funct3 == 0b010 && f.Rs3 == 0b00000:
		return FnAmoaddw
	case op == OpAmo && f.Funct3 == 0b010 && f.Rs3 == 0b00100:
		return FnAmoxorw
	case op == OpAmo && f.Funct3 == 0b010 && f.Rs3 == 0b01100:
		return FnAmoandw
	case op == OpAmo && f.Funct3 == 0b010 && f.Rs3 == 0b01000:
		return FnAmoorw
	case op == OpAmo && f.Funct3 == 0b010 && f.Rs3 == 0b10000:
		return FnAmominw
	case op == OpAmo && f.Funct3 == 0b010 && f.Rs3 == 0b10100:
		return FnAmomaxw
	case op == OpAmo && f.Funct3 == 0b010 && f.Rs3 == 0b11000:
		return FnAmominuw
	case op == OpAmo && f.Funct3 == 0b010 && f.Rs3 == 0b11100:
		return FnAmomaxuw

	default:
		panic("insts: failed to decode instruction " + hex32(word))
	}
}

// Instruction is the decoder's output: opaque to the out-of-order core
// except for the opcode/function/fields triple (spec.md §3).
type Instruction struct {
	Value    uint32
	Opcode   Opcode
	Format   Format
	Function Function
	Fields   Fields
}

// Nop is the canonical RV32I NOP, ADDI x0, x0, 0.
const NopWord uint32 = 0x13

// Decoder decodes 32-bit RISC-V instruction words.
type Decoder struct{}

// NewDecoder creates a RV32IMA instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode classifies and decodes a 32-bit instruction word.
func (d *Decoder) Decode(word uint32) *Instruction {
	op := DecodeOpcode(word)
	format := FormatOf(op)
	fields := decodeFields(word, format, op)
	fn := decodeFunction(word, fields, op)
	return &Instruction{
		Value:    word,
		Opcode:   op,
		Format:   format,
		Function: fn,
		Fields:   fields,
	}
}
