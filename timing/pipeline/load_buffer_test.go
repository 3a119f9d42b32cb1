package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32ooo/emu"
	"github.com/sarchlab/rv32ooo/insts"
	"github.com/sarchlab/rv32ooo/timing/pipeline"
)

func storeInst(rs1, rs2 uint8, imm uint32) *insts.Instruction {
	return &insts.Instruction{
		Opcode:   insts.OpStore,
		Function: insts.FnSw,
		Fields:   insts.Fields{Rs1: rs1, Rs2: rs2, Imm: imm},
	}
}

var _ = Describe("LoadBuffer", func() {
	var (
		rob    *pipeline.ReorderBuffer
		mem    *emu.Memory
		lb     *pipeline.LoadBuffer
		regs   *emu.RegFile
	)

	BeforeEach(func() {
		rob = pipeline.NewReorderBuffer(16, 2)
		mem = emu.NewMemory()
		mem.LoadSegment(0x1000, make([]byte, 0x100), 0x100, true)
		lb = pipeline.NewLoadBuffer()
		regs = emu.NewRegFile()
	})

	It("executes a load once its memory latency elapses", func() {
		_ = mem.Write32(0x1000, 0xdeadbeef)

		idx := rob.Issue(0, loadInst(1, 2, 0), regs)
		lb.Issue(idx, loadInst(1, 2, 0), 0x1000)

		jobs := lb.Tick(rob, mem)
		Expect(jobs).To(BeEmpty()) // MemRemCycle starts at 2

		jobs = lb.Tick(rob, mem)
		Expect(jobs).To(BeEmpty()) // 1 -> 0, still counting down

		jobs = lb.Tick(rob, mem)
		Expect(jobs).To(HaveLen(1))
		Expect(jobs[0].Value).To(Equal(uint32(0xdeadbeef)))
	})

	It("blocks a load behind an older store of unresolved address", func() {
		storeIdx := rob.Issue(0, storeInst(3, 4, 0), regs)
		rob.Get(storeIdx).Addr = emu.RobOperand(99) // unresolved

		loadIdx := rob.Issue(4, loadInst(1, 2, 0), regs)
		lb.Issue(loadIdx, loadInst(1, 2, 0), 0x1000)

		jobs := lb.Tick(rob, mem)
		Expect(jobs).To(BeEmpty())
		Expect(lb.Len()).To(Equal(1))
	})

	It("allows a load once the blocking store's address is known not to alias", func() {
		storeIdx := rob.Issue(0, storeInst(3, 4, 0), regs)
		rob.Get(storeIdx).Addr = emu.ValueOperand(0x2000)

		loadIdx := rob.Issue(4, loadInst(1, 2, 0), regs)
		lb.Issue(loadIdx, loadInst(1, 2, 0), 0x1000)

		lb.Tick(rob, mem)
		lb.Tick(rob, mem)
		jobs := lb.Tick(rob, mem)
		Expect(jobs).To(HaveLen(1))
	})

	It("discards an entry on squash", func() {
		idx := rob.Issue(0, loadInst(1, 2, 0), regs)
		lb.Issue(idx, loadInst(1, 2, 0), 0x1000)
		lb.Discard(idx)
		Expect(lb.Len()).To(Equal(0))
	})
})
