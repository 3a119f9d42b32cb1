// Package main provides the entry point for rv32ooo, a cycle-accurate
// out-of-order RV32IMA simulator.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rv32ooo/emu"
	"github.com/sarchlab/rv32ooo/loader"
	"github.com/sarchlab/rv32ooo/timing/core"
	"github.com/sarchlab/rv32ooo/timing/latency"
	"github.com/sarchlab/rv32ooo/timing/pipeline"
)

func main() {
	var (
		printSteps     bool
		printDebugInfo bool
		robSize        int
		maxCycles      uint64
		configPath     string
	)

	rootCmd := &cobra.Command{
		Use:   "rv32ooo",
		Short: "rv32ooo — a cycle-accurate out-of-order RV32IMA simulator",
	}

	runCmd := &cobra.Command{
		Use:   "run <elf-path>",
		Short: "Run a statically linked RV32IMA ELF binary to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode, err := run(args[0], printSteps, printDebugInfo, robSize, maxCycles, configPath)
			if err != nil {
				return err
			}
			os.Exit(int(exitCode))
			return nil
		},
	}
	runCmd.Flags().BoolVar(&printSteps, "print-steps", false, "Log a trace line for every retiring instruction")
	runCmd.Flags().BoolVar(&printDebugInfo, "print-debug-info", false, "Dump all GPRs and the PC on exit")
	runCmd.Flags().IntVar(&robSize, "rob-size", pipeline.DefaultROBCapacity, "Reorder buffer capacity")
	runCmd.Flags().Uint64Var(&maxCycles, "max-cycles", 0, "Stop after this many cycles (0 = unbounded)")
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a timing config JSON file")

	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(elfPath string, printSteps, printDebugInfo bool, robSize int, maxCycles uint64, configPath string) (code int32, runErr error) {
	defer func() {
		if r := recover(); r != nil {
			code, runErr = 1, fmt.Errorf("simulation panicked: %v", r)
		}
	}()

	prog, err := loader.Load(elfPath)
	if err != nil {
		return 1, fmt.Errorf("error loading program: %w", err)
	}

	var timingConfig *latency.TimingConfig
	if configPath != "" {
		timingConfig, err = latency.LoadConfig(configPath)
		if err != nil {
			return 1, fmt.Errorf("error loading timing config: %w", err)
		}
	} else {
		timingConfig = latency.DefaultTimingConfig()
	}
	if err := timingConfig.Validate(); err != nil {
		return 1, fmt.Errorf("invalid timing config: %w", err)
	}
	latencyTable := latency.NewTableWithConfig(timingConfig)

	memory, sp := loader.BuildImage(prog, elfPath)
	regFile := emu.NewRegFile()
	regFile.WriteReg(2, sp) // x2 = sp

	logger := logrus.New()
	if !printSteps {
		logger.SetLevel(logrus.WarnLevel)
	}

	syscallHandler := emu.NewDefaultSyscallHandler(regFile, memory, os.Stdout, os.Stderr)
	c := core.NewCore(regFile, memory,
		pipeline.WithROBCapacity(robSize),
		pipeline.WithSyscallHandler(syscallHandler),
		pipeline.WithLatencyTable(latencyTable),
		pipeline.WithLogger(logger),
		pipeline.WithTrace(printSteps),
	)
	c.SetPC(prog.EntryPoint)

	var exitCode int32
	if maxCycles > 0 {
		c.RunCycles(maxCycles)
		exitCode = c.ExitCode()
	} else {
		exitCode = c.Run()
	}

	if fault := c.Fault(); fault != nil {
		return 1, fmt.Errorf("simulation halted on fault: %w", fault)
	}

	stats := c.Stats()
	fmt.Printf("\nProgram: %s\n", elfPath)
	fmt.Printf("Exit code: %d\n", exitCode)
	fmt.Printf("Total Instructions: %d\n", stats.Instructions)
	fmt.Printf("Total Clock: %d\n", stats.Cycles)
	fmt.Printf("CPI: %.2f\n", stats.CPI())
	fmt.Printf("Squashes: %d\n", stats.Squashes)
	fmt.Printf("ROB-full stalls: %d\n", stats.ROBFullStalls)
	if stats.BranchPredicted > 0 {
		fmt.Printf("Branch accuracy: %.1f%% (%d/%d)\n",
			100*float64(stats.BranchCorrect)/float64(stats.BranchPredicted),
			stats.BranchCorrect, stats.BranchPredicted)
	}

	if printDebugInfo {
		fmt.Printf("\nRegisters:\n")
		for r := 0; r < 32; r++ {
			fmt.Printf("  x%-2d = 0x%08x", r, regFile.ReadReg(uint8(r)))
			if r%4 == 3 {
				fmt.Println()
			}
		}
		fmt.Printf("  pc  = 0x%08x\n", c.Pipeline.PC())
	}

	return exitCode, nil
}
