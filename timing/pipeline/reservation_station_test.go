package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32ooo/emu"
	"github.com/sarchlab/rv32ooo/insts"
	"github.com/sarchlab/rv32ooo/timing/latency"
	"github.com/sarchlab/rv32ooo/timing/pipeline"
)

func addInst(rd, rs1, rs2 uint8) *insts.Instruction {
	return &insts.Instruction{
		Opcode:   insts.OpOp,
		Function: insts.FnAdd,
		Fields:   insts.Fields{Rd: rd, Rs1: rs1, Rs2: rs2},
	}
}

var _ = Describe("ReservationStation", func() {
	var (
		table *latency.Table
		rs    *pipeline.ReservationStation
	)

	BeforeEach(func() {
		table = latency.NewTable()
		rs = pipeline.NewReservationStation(table)
	})

	It("starts empty", func() {
		Expect(rs.Len()).To(Equal(0))
	})

	It("finishes a fully-resolved add after its ALU latency elapses", func() {
		inst := addInst(1, 2, 3)
		rs.Issue(0, inst, emu.ValueOperand(10), emu.ValueOperand(32))
		Expect(rs.Len()).To(Equal(1))

		jobs := rs.Tick()
		Expect(jobs).To(HaveLen(1))
		Expect(jobs[0]).To(Equal(pipeline.FinishedJob{RobIndex: 0, Value: 42}))
		Expect(rs.Len()).To(Equal(0))
	})

	It("waits for a pending operand to resolve before executing", func() {
		inst := addInst(1, 2, 3)
		rs.Issue(0, inst, emu.RobOperand(5), emu.ValueOperand(32))

		jobs := rs.Tick()
		Expect(jobs).To(BeEmpty())
		Expect(rs.Len()).To(Equal(1))

		rs.Propagate(pipeline.FinishedJob{RobIndex: 5, Value: 10})
		jobs = rs.Tick()
		Expect(jobs).To(HaveLen(1))
		Expect(jobs[0].Value).To(Equal(uint32(42)))
	})

	It("discards a squashed entry without finishing it", func() {
		inst := addInst(1, 2, 3)
		rs.Issue(0, inst, emu.ValueOperand(1), emu.ValueOperand(1))
		rs.Discard(0)
		Expect(rs.Len()).To(Equal(0))
		Expect(rs.Tick()).To(BeEmpty())
	})

	It("clears every entry", func() {
		rs.Issue(0, addInst(1, 2, 3), emu.ValueOperand(1), emu.ValueOperand(1))
		rs.Issue(1, addInst(4, 5, 6), emu.ValueOperand(1), emu.ValueOperand(1))
		rs.Clear()
		Expect(rs.Len()).To(Equal(0))
	})
})
