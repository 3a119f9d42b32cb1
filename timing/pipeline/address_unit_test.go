package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32ooo/emu"
	"github.com/sarchlab/rv32ooo/insts"
	"github.com/sarchlab/rv32ooo/timing/pipeline"
)

func loadInst(rd, rs1 uint8, imm uint32) *insts.Instruction {
	return &insts.Instruction{
		Opcode:   insts.OpLoad,
		Function: insts.FnLw,
		Fields:   insts.Fields{Rd: rd, Rs1: rs1, Imm: imm},
	}
}

func jalrInst(rd, rs1 uint8, imm uint32) *insts.Instruction {
	return &insts.Instruction{
		Opcode:   insts.OpJalr,
		Function: insts.FnJalr,
		Fields:   insts.Fields{Rd: rd, Rs1: rs1, Imm: imm},
	}
}

var _ = Describe("AddressUnit", func() {
	var au *pipeline.AddressUnit

	BeforeEach(func() {
		au = pipeline.NewAddressUnit()
	})

	It("computes a resolved Load address in the same cycle", func() {
		au.Issue(0, loadInst(1, 2, 8), emu.ValueOperand(100))
		results := au.Tick()
		Expect(results).To(HaveLen(1))
		Expect(results[0]).To(Equal(pipeline.AddressResult{RobIndex: 0, Addr: 108}))
		Expect(au.Len()).To(Equal(0))
	})

	It("waits for the base register before computing", func() {
		au.Issue(0, loadInst(1, 2, 8), emu.RobOperand(3))
		Expect(au.Tick()).To(BeEmpty())

		au.Propagate(pipeline.FinishedJob{RobIndex: 3, Value: 100})
		results := au.Tick()
		Expect(results).To(HaveLen(1))
		Expect(results[0].Addr).To(Equal(uint32(108)))
	})

	It("flags a Jalr result as a redirect with an even target", func() {
		au.Issue(0, jalrInst(1, 2, 5), emu.ValueOperand(100))
		results := au.Tick()
		Expect(results).To(HaveLen(1))
		Expect(results[0].Redirect).To(BeTrue())
		Expect(results[0].Target).To(Equal(uint32(104))) // 105 &^ 1
	})

	It("discards an entry on squash", func() {
		au.Issue(0, loadInst(1, 2, 8), emu.RobOperand(3))
		au.Discard(0)
		Expect(au.Len()).To(Equal(0))
	})
})
