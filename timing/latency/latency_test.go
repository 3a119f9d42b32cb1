package latency_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32ooo/insts"
	"github.com/sarchlab/rv32ooo/timing/latency"
)

var _ = Describe("Table", func() {
	var table *latency.Table

	BeforeEach(func() {
		table = latency.NewTable()
	})

	Describe("Default latencies", func() {
		It("charges the default ALU latency to ordinary ops", func() {
			Expect(table.GetLatency(insts.FnAdd)).To(Equal(uint64(1)))
			Expect(table.GetLatency(insts.FnXori)).To(Equal(uint64(1)))
			Expect(table.GetLatency(insts.FnBeq)).To(Equal(uint64(1)))
		})

		It("charges the multiply latency to the Mul family", func() {
			Expect(table.GetLatency(insts.FnMul)).To(Equal(uint64(4)))
			Expect(table.GetLatency(insts.FnMulh)).To(Equal(uint64(4)))
			Expect(table.GetLatency(insts.FnMulhsu)).To(Equal(uint64(4)))
			Expect(table.GetLatency(insts.FnMulhu)).To(Equal(uint64(4)))
		})

		It("charges the divide latency to the Div/Rem family", func() {
			Expect(table.GetLatency(insts.FnDiv)).To(Equal(uint64(8)))
			Expect(table.GetLatency(insts.FnDivu)).To(Equal(uint64(8)))
			Expect(table.GetLatency(insts.FnRem)).To(Equal(uint64(8)))
			Expect(table.GetLatency(insts.FnRemu)).To(Equal(uint64(8)))
		})

		It("charges the syscall latency to Ecall/Ebreak", func() {
			Expect(table.GetLatency(insts.FnEcall)).To(Equal(uint64(1)))
			Expect(table.GetLatency(insts.FnEbreak)).To(Equal(uint64(1)))
		})

		It("exposes the memory latency separately from GetLatency", func() {
			Expect(table.MemLatency()).To(Equal(uint64(10)))
		})
	})

	Describe("Classification helpers", func() {
		It("identifies the Mul family", func() {
			Expect(table.IsMultiply(insts.FnMul)).To(BeTrue())
			Expect(table.IsMultiply(insts.FnMulhu)).To(BeTrue())
			Expect(table.IsMultiply(insts.FnAdd)).To(BeFalse())
		})

		It("identifies the Div/Rem family", func() {
			Expect(table.IsDivide(insts.FnDivu)).To(BeTrue())
			Expect(table.IsDivide(insts.FnRemu)).To(BeTrue())
			Expect(table.IsDivide(insts.FnAdd)).To(BeFalse())
		})
	})

	Describe("Custom configuration", func() {
		It("uses the supplied per-class latencies", func() {
			config := &latency.TimingConfig{
				ALULatency:      2,
				MultiplyLatency: 6,
				DivideLatency:   12,
				MemLatency:      20,
				SyscallLatency:  3,
			}
			custom := latency.NewTableWithConfig(config)

			Expect(custom.GetLatency(insts.FnAdd)).To(Equal(uint64(2)))
			Expect(custom.GetLatency(insts.FnMul)).To(Equal(uint64(6)))
			Expect(custom.GetLatency(insts.FnDiv)).To(Equal(uint64(12)))
			Expect(custom.MemLatency()).To(Equal(uint64(20)))
			Expect(custom.GetLatency(insts.FnEcall)).To(Equal(uint64(3)))
		})

		It("returns the config it was built with via Config", func() {
			config := latency.DefaultTimingConfig()
			custom := latency.NewTableWithConfig(config)
			Expect(custom.Config()).To(Equal(config))
		})
	})
})

var _ = Describe("TimingConfig", func() {
	Describe("Default config", func() {
		It("is valid", func() {
			Expect(latency.DefaultTimingConfig().Validate()).To(Succeed())
		})
	})

	Describe("Validation", func() {
		It("rejects a zero ALU latency", func() {
			config := latency.DefaultTimingConfig()
			config.ALULatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("rejects a zero multiply latency", func() {
			config := latency.DefaultTimingConfig()
			config.MultiplyLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("rejects a zero divide latency", func() {
			config := latency.DefaultTimingConfig()
			config.DivideLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("rejects a zero memory latency", func() {
			config := latency.DefaultTimingConfig()
			config.MemLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("rejects a zero syscall latency", func() {
			config := latency.DefaultTimingConfig()
			config.SyscallLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})
	})

	Describe("Clone", func() {
		It("creates an independent copy", func() {
			original := latency.DefaultTimingConfig()
			clone := original.Clone()
			clone.ALULatency = 100

			Expect(original.ALULatency).To(Equal(uint64(1)))
			Expect(clone.ALULatency).To(Equal(uint64(100)))
		})
	})

	Describe("File operations", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "latency-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("saves and loads a config", func() {
			original := latency.DefaultTimingConfig()
			original.ALULatency = 5
			original.MemLatency = 15

			path := filepath.Join(tempDir, "timing.json")
			Expect(original.SaveConfig(path)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.ALULatency).To(Equal(uint64(5)))
			Expect(loaded.MemLatency).To(Equal(uint64(15)))
		})

		It("starts from the defaults so a partial file only overrides named fields", func() {
			path := filepath.Join(tempDir, "partial.json")
			Expect(os.WriteFile(path, []byte(`{"alu_latency": 9}`), 0644)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.ALULatency).To(Equal(uint64(9)))
			Expect(loaded.MemLatency).To(Equal(latency.DefaultTimingConfig().MemLatency))
		})

		It("returns an error for a non-existent file", func() {
			_, err := latency.LoadConfig(filepath.Join(tempDir, "missing.json"))
			Expect(err).To(HaveOccurred())
		})

		It("returns an error for invalid JSON", func() {
			path := filepath.Join(tempDir, "invalid.json")
			Expect(os.WriteFile(path, []byte("not valid json"), 0644)).To(Succeed())

			_, err := latency.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
