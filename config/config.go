// Package config holds the machine and run configuration, read from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/rv32sim/bus"
)

// Range is an inclusive address range.
type Range struct {
	Start uint32 `yaml:"start"`
	End   uint32 `yaml:"end"`
}

// Size returns the number of bytes in the range.
func (r Range) Size() uint64 {
	return uint64(r.End) - uint64(r.Start) + 1
}

// RAM configures the main memory region.
type RAM struct {
	Range `yaml:",inline"`
	Type  bus.RAMType `yaml:"type"`
}

// Boot names the files placed in memory before the run.
type Boot struct {
	// Kernel is a raw image loaded at the start of RAM.
	Kernel string `yaml:"kernel"`
	// ReverseWords reverses the bytes of each 4-byte group of Kernel.
	ReverseWords bool `yaml:"reverse_words"`
	// DTB is a device tree blob placed just below the top of RAM.
	DTB string `yaml:"dtb"`
	// ELF is an RV32 executable loaded by its program headers. It is an
	// alternative to Kernel.
	ELF string `yaml:"elf"`
	// Map is a linker map used for symbol names in traces.
	Map string `yaml:"map"`
	// Entry overrides the start address. 0 means the start of RAM for a
	// raw kernel and the ELF entry point otherwise.
	Entry uint32 `yaml:"entry"`
}

// Trace configures the instruction tracer. Instruction numbers count from
// zero; a zero threshold disables the corresponding feature.
type Trace struct {
	AtInstruction       uint64 `yaml:"at_instruction"`
	AtPC                uint32 `yaml:"at_pc"`
	KillAtInstruction   uint64 `yaml:"kill_at_instruction"`
	ReportEvery         uint64 `yaml:"report_every"`
	PrintRegisters      bool   `yaml:"print_registers"`
	PrintChangedSymbols bool   `yaml:"print_changed_symbols"`
}

// Config is the complete configuration of one run.
type Config struct {
	RAM   RAM   `yaml:"ram"`
	UART  Range `yaml:"uart"`
	Boot  Boot  `yaml:"boot"`
	Trace Trace `yaml:"trace"`

	// Script is a Lua file with loader and on_instruction hooks.
	Script string `yaml:"script"`
	// CrashDump is the zip file written when the run faults.
	CrashDump string `yaml:"crash_dump"`
	// MaxInstructions caps the run; 0 means no limit.
	MaxInstructions uint64 `yaml:"max_instructions"`
	// LogLevel is the logr verbosity.
	LogLevel int `yaml:"log_level"`
}

// Default returns the configuration of the Linux machine: 64 MiB of RAM at
// 0x80000000 and a UART at 0x10000000.
func Default() *Config {
	return &Config{
		RAM: RAM{
			Range: Range{Start: 0x80000000, End: 0x83FFFFFF},
			Type:  bus.RAMContiguous,
		},
		UART: Range{Start: 0x10000000, End: 0x10000008},
		Boot: Boot{
			Kernel: "linux/kernel.img",
			DTB:    "linux/device_tree_binary.dtb",
			Map:    "linux/kernel.map",
		},
		Trace: Trace{
			ReportEvery: 2500,
		},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r on top of Default. Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.RAM.Start > c.RAM.End {
		return fmt.Errorf("ram: start 0x%08x after end 0x%08x", c.RAM.Start, c.RAM.End)
	}
	if c.UART.Start > c.UART.End {
		return fmt.Errorf("uart: start 0x%08x after end 0x%08x", c.UART.Start, c.UART.End)
	}
	if c.RAM.Start <= c.UART.End && c.UART.Start <= c.RAM.End {
		return fmt.Errorf("ram and uart ranges overlap")
	}

	switch c.RAM.Type {
	case bus.RAMContiguous, bus.RAMSparse:
	default:
		return fmt.Errorf("ram: unknown type %q", c.RAM.Type)
	}

	if c.Boot.Kernel != "" && c.Boot.ELF != "" {
		return fmt.Errorf("boot: kernel and elf are mutually exclusive")
	}
	if c.Boot.DTB != "" && c.Boot.Kernel == "" {
		return fmt.Errorf("boot: dtb requires a raw kernel")
	}

	return nil
}

// RAMTop returns one past the last RAM address.
func (c *Config) RAMTop() uint64 {
	return uint64(c.RAM.End) + 1
}
