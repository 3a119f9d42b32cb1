package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds the per-mnemonic-class latency values used by the
// reservation station and by the memory-access countdown of loads,
// stores and AMOs (spec.md §4.4/§4.6).
type TimingConfig struct {
	// ALULatency is the execution latency for ALU and branch-comparison
	// operations issued to the reservation station. Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency"`

	// MultiplyLatency is the latency for Mul/Mulh/Mulhsu/Mulhu.
	// Default: 4 cycles (original_source/src/consts.rs's MUL_CYCLE).
	MultiplyLatency uint64 `json:"multiply_latency"`

	// DivideLatency is the latency for Div/Divu/Rem/Remu.
	// Default: 8 cycles (original_source/src/consts.rs's DIV_CYCLE).
	DivideLatency uint64 `json:"divide_latency"`

	// MemLatency is the multi-cycle latency a load, store or AMO counts
	// down in the load buffer / at retire before its memory effect takes
	// place. Default: 10 cycles (original_source/src/consts.rs's MEM_CYCLE).
	MemLatency uint64 `json:"mem_latency"`

	// SyscallLatency is the latency Table.GetLatency reports for Ecall and
	// Ebreak. Default: 1 cycle. The pipeline resolves these instructions at
	// issue without a functional unit, so this value does not delay them.
	SyscallLatency uint64 `json:"syscall_latency"`
}

// DefaultTimingConfig returns the TimingConfig matching
// original_source/src/consts.rs's hardcoded cycle counts.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:      1,
		MultiplyLatency: 4,
		DivideLatency:   8,
		MemLatency:      10,
		SyscallLatency:  1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file, starting from the
// defaults so a partial file only overrides the fields it names.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	if c.ALULatency == 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.MultiplyLatency == 0 {
		return fmt.Errorf("multiply_latency must be > 0")
	}
	if c.DivideLatency == 0 {
		return fmt.Errorf("divide_latency must be > 0")
	}
	if c.MemLatency == 0 {
		return fmt.Errorf("mem_latency must be > 0")
	}
	if c.SyscallLatency == 0 {
		return fmt.Errorf("syscall_latency must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
