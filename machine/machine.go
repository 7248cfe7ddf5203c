// Package machine assembles an emulated RV32 system from a configuration:
// the address bus with its RAM and UART, the emulator, the boot images, the
// tracer and the boot script.
package machine

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"

	"github.com/sarchlab/rv32sim/bus"
	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/crash"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/loader"
	"github.com/sarchlab/rv32sim/script"
	"github.com/sarchlab/rv32sim/trace"
)

// Machine owns every component of one run.
type Machine struct {
	cfg     *config.Config
	logger  logr.Logger
	console io.Writer
	emuOpts []emu.EmulatorOption

	bus     *bus.AddressBus
	ram     bus.Region
	uart    *bus.UART
	emu     *emu.Emulator
	symbols *loader.SymbolTable
	tracer  *trace.Tracer
	script  *script.Script
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger shared by all components.
func WithLogger(l logr.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// WithConsole sets where UART and hvc0 output goes.
func WithConsole(w io.Writer) Option {
	return func(m *Machine) {
		m.console = w
	}
}

// WithEmulatorOptions passes extra options to the emulator.
func WithEmulatorOptions(opts ...emu.EmulatorOption) Option {
	return func(m *Machine) {
		m.emuOpts = append(m.emuOpts, opts...)
	}
}

// New builds the bus, devices and emulator described by cfg. Nothing is
// loaded until Boot.
func New(cfg *config.Config, opts ...Option) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m := &Machine{
		cfg:     cfg,
		logger:  logr.Discard(),
		console: os.Stdout,
	}

	for _, opt := range opts {
		opt(m)
	}

	ram, err := bus.NewRAM(cfg.RAM.Type, cfg.RAM.Size())
	if err != nil {
		return nil, err
	}

	m.bus = bus.NewAddressBus()
	m.uart = bus.NewUART(m.console)

	if err := m.bus.Map(cfg.RAM.Start, cfg.RAM.End, ram); err != nil {
		return nil, fmt.Errorf("map ram: %w", err)
	}
	if err := m.bus.Map(cfg.UART.Start, cfg.UART.End, m.uart); err != nil {
		return nil, fmt.Errorf("map uart: %w", err)
	}
	m.ram = m.bus.Regions()[0]

	emuOpts := []emu.EmulatorOption{
		emu.WithBus(m.bus),
		emu.WithConsole(m.console),
		emu.WithLogger(m.logger.WithName("cpu")),
		emu.WithEntry(cfg.RAM.Start),
	}
	if cfg.MaxInstructions > 0 {
		emuOpts = append(emuOpts, emu.WithMaxInstructions(cfg.MaxInstructions))
	}
	m.emu = emu.NewEmulator(append(emuOpts, m.emuOpts...)...)

	return m, nil
}

// Emulator returns the CPU.
func (m *Machine) Emulator() *emu.Emulator { return m.emu }

// Bus returns the address bus.
func (m *Machine) Bus() *bus.AddressBus { return m.bus }

// UART returns the serial device, for feeding host input.
func (m *Machine) UART() *bus.UART { return m.uart }

// RAM returns the RAM region.
func (m *Machine) RAM() bus.Region { return m.ram }

// Symbols returns the symbol table loaded by Boot, which may be empty.
func (m *Machine) Symbols() *loader.SymbolTable { return m.symbols }

// Tracer returns the tracer installed by Boot, or nil.
func (m *Machine) Tracer() *trace.Tracer { return m.tracer }

// Boot loads symbols and boot images, runs the boot script's loader and
// installs the instruction hooks.
func (m *Machine) Boot() error {
	if err := m.loadSymbols(); err != nil {
		return err
	}

	if err := m.loadImages(); err != nil {
		return err
	}

	if m.cfg.Boot.Entry != 0 {
		m.emu.SetPC(m.cfg.Boot.Entry)
	}

	var hooks []emu.Hook
	if m.cfg.Trace != (config.Trace{}) {
		m.tracer = trace.New(m.cfg.Trace,
			trace.WithLogger(m.logger.WithName("trace")),
			trace.WithSymbols(m.symbols))
		hooks = append(hooks, m.tracer.Hook)
	}

	if m.cfg.Script != "" {
		s, err := script.Load(m.cfg.Script, m.emu,
			script.WithLogger(m.logger.WithName("script")))
		if err != nil {
			return err
		}
		m.script = s

		m.logger.V(1).Info("running boot script", "path", m.cfg.Script)
		if err := s.RunLoader(); err != nil {
			return err
		}
		hooks = append(hooks, s.Hook())
	}

	m.emu.SetHook(emu.ChainHooks(hooks...))

	m.logger.Info("booted", "pc", fmt.Sprintf("0x%08x", m.emu.PC()), "symbols", m.symbols.Len())
	return nil
}

func (m *Machine) loadSymbols() error {
	var err error
	switch {
	case m.cfg.Boot.Map != "":
		m.logger.V(1).Info("loading map file", "path", m.cfg.Boot.Map)
		m.symbols, err = loader.LoadLinkerMap(m.cfg.Boot.Map)
	case m.cfg.Boot.ELF != "":
		m.symbols, err = loader.LoadELFSymbols(m.cfg.Boot.ELF)
	}
	return err
}

func (m *Machine) loadImages() error {
	boot := m.cfg.Boot

	if boot.ELF != "" {
		m.logger.V(1).Info("loading elf", "path", boot.ELF)
		prog, err := loader.Load(boot.ELF)
		if err != nil {
			return err
		}
		return prog.Boot(m.emu, m.bus)
	}

	if boot.Kernel == "" {
		return nil
	}

	m.logger.V(1).Info("loading kernel image", "path", boot.Kernel)
	kernel, err := loader.ReadImage(boot.Kernel, boot.ReverseWords)
	if err != nil {
		return err
	}

	img := &loader.Image{
		Kernel:   kernel,
		LoadAddr: m.cfg.RAM.Start,
		Entry:    m.cfg.RAM.Start,
		RAMTop:   m.cfg.RAMTop(),
	}

	if boot.DTB != "" {
		m.logger.V(1).Info("loading device tree", "path", boot.DTB)
		img.DTB, err = os.ReadFile(boot.DTB)
		if err != nil {
			return fmt.Errorf("failed to read device tree: %w", err)
		}
	}

	return img.Boot(m.emu, m.bus)
}

// Run executes until the program halts, faults or ctx is done.
func (m *Machine) Run(ctx context.Context) (int64, error) {
	m.logger.Info("starting", "pc", fmt.Sprintf("0x%08x", m.emu.PC()))

	code, err := m.emu.Run(ctx)

	m.logger.Info("stopped",
		"pc", fmt.Sprintf("0x%08x", m.emu.PC()),
		"instructions", m.emu.InstructionCount(),
		"symbol", m.symbols.Describe(m.emu.PC()))
	return code, err
}

// CrashReport captures the current state and RAM for a dump.
func (m *Machine) CrashReport(err error) *crash.Report {
	return crash.NewReport(m.emu, m.bus, []bus.Region{m.ram}, err)
}

// Close releases the boot script.
func (m *Machine) Close() {
	if m.script != nil {
		m.script.Close()
		m.script = nil
	}
}
