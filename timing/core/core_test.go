package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32ooo/emu"
	"github.com/sarchlab/rv32ooo/timing/core"
)

// RV32I encodings used by this suite:
//
//	addi x1, x0, 42   -> 0x02a00093
//	addi x1, x1, 1    -> 0x00108093
//	addi x10, x0, 10  -> 0x00a00513
//	addi x17, x0, 93  -> 0x05d00893 (a7 = syscall exit)
//	nop (addi x0,x0,0) -> 0x00000013
//	ecall             -> 0x00000073
const (
	addiX1X0_42 uint32 = 0x02a00093
	addiX1X1_1  uint32 = 0x00108093
	addiX10_10  uint32 = 0x00a00513
	addiX17_93  uint32 = 0x05d00893
	nopWord     uint32 = 0x00000013
	ecallWord   uint32 = 0x00000073
)

func writeNops(memory *emu.Memory, base uint32, n int) {
	for i := 0; i < n; i++ {
		_ = memory.Write32(base+uint32(i*4), nopWord)
	}
}

var _ = Describe("Core", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		c       *core.Core
	)

	BeforeEach(func() {
		regFile = emu.NewRegFile()
		memory = emu.NewMemory()
		memory.LoadSegment(0x1000, make([]byte, 0x100), 0x100, true)
		c = core.NewCore(regFile, memory)
	})

	It("should create a core with pipeline", func() {
		Expect(c).NotTo(BeNil())
		Expect(c.Pipeline).NotTo(BeNil())
	})

	It("should set and get PC", func() {
		c.SetPC(0x1000)
		Expect(c.Pipeline.PC()).To(Equal(uint32(0x1000)))
	})

	It("should not be halted initially", func() {
		Expect(c.Halted()).To(BeFalse())
	})

	It("should execute instructions through tick", func() {
		_ = memory.Write32(0x1000, addiX1X0_42)
		writeNops(memory, 0x1004, 19)

		c.SetPC(0x1000)
		for i := 0; i < 10; i++ {
			c.Tick()
		}

		Expect(regFile.ReadReg(1)).To(Equal(uint32(42)))
	})

	It("should return stats", func() {
		_ = memory.Write32(0x1000, addiX1X0_42)
		writeNops(memory, 0x1004, 3)

		c.SetPC(0x1000)
		c.Tick()
		c.Tick()

		stats := c.Stats()
		Expect(stats.Cycles).To(Equal(uint64(2)))
	})

	It("should run until halt and return exit code", func() {
		_ = memory.Write32(0x1000, addiX10_10)
		_ = memory.Write32(0x1004, addiX17_93)
		_ = memory.Write32(0x1008, ecallWord)

		c.SetPC(0x1000)
		exitCode := c.Run()

		Expect(c.Halted()).To(BeTrue())
		Expect(exitCode).To(Equal(int32(10)))
	})

	It("should return exit code correctly", func() {
		_ = memory.Write32(0x1000, addiX17_93)
		_ = memory.Write32(0x1004, ecallWord)

		c.SetPC(0x1000)
		c.Run()

		Expect(c.ExitCode()).To(Equal(int32(0)))
	})

	It("should run for specified cycles and return running status", func() {
		_ = memory.Write32(0x1000, addiX1X1_1)
		writeNops(memory, 0x1004, 9)

		c.SetPC(0x1000)
		running := c.RunCycles(5)

		Expect(running).To(BeTrue())
		Expect(c.Halted()).To(BeFalse())

		stats := c.Stats()
		Expect(stats.Cycles).To(Equal(uint64(5)))
	})

	It("should stop running cycles when halted", func() {
		_ = memory.Write32(0x1000, addiX17_93)
		_ = memory.Write32(0x1004, ecallWord)

		c.SetPC(0x1000)
		running := c.RunCycles(100)

		Expect(running).To(BeFalse())
		Expect(c.Halted()).To(BeTrue())
	})

	It("should reset core state", func() {
		_ = memory.Write32(0x1000, addiX1X0_42)
		writeNops(memory, 0x1004, 19)

		c.SetPC(0x1000)
		for i := 0; i < 10; i++ {
			c.Tick()
		}

		stats := c.Stats()
		Expect(stats.Cycles).To(BeNumerically(">", 0))

		c.Reset()

		statsAfterReset := c.Stats()
		Expect(statsAfterReset.Cycles).To(Equal(uint64(0)))
		Expect(statsAfterReset.Instructions).To(Equal(uint64(0)))
		Expect(c.Halted()).To(BeFalse())
	})
})
