package emu

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/rv32sim/bus"
	"github.com/sarchlab/rv32sim/insts"
)

// ExitHalted is the value Run returns when it stops, whether the
// instruction stream ended or a fault occurred.
const ExitHalted int64 = -1

// contextCheckInterval is how many instructions Run executes between
// checks of its context.
const contextCheckInterval = 4096

// Bus is the address space the emulator fetches from and loads/stores to.
type Bus interface {
	Read(addr uint32, p []byte) error
	Write(addr uint32, p []byte) error
}

// Hook is called before each instruction executes with the number of
// instructions retired so far. A non-nil error stops the run.
type Hook func(e *Emulator, n uint64) error

// ChainHooks combines hooks into one that calls them in order and stops at
// the first error. Nil hooks are skipped.
func ChainHooks(hooks ...Hook) Hook {
	var live []Hook
	for _, h := range hooks {
		if h != nil {
			live = append(live, h)
		}
	}

	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}

	return func(e *Emulator, n uint64) error {
		for _, h := range live {
			if err := h(e, n); err != nil {
				return err
			}
		}
		return nil
	}
}

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true if the fetch stage found the end of the instruction
	// stream (an all-zero parcel).
	Halted bool

	// Err is set if the instruction faulted.
	Err error
}

// Emulator executes RV32IMA instructions functionally.
type Emulator struct {
	regFile *RegFile
	bus     Bus
	console io.Writer
	logger  logr.Logger
	hook    Hook

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	csrs        csrBank
	reservation Reservation

	// Execution state
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit

	profiling bool
	profile   [128]opStats

	fetchBuf   [4]byte
	consoleBuf [1]byte
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithBus sets the address space. Without it the emulator gets an empty
// bus on which every access faults.
func WithBus(b Bus) EmulatorOption {
	return func(e *Emulator) {
		e.bus = b
	}
}

// WithConsole sets the writer that receives bytes written to the hvc0 CSR.
func WithConsole(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.console = w
	}
}

// WithLogger sets the logger. V(2) logs unknown CSR accesses, V(3) every
// executed instruction.
func WithLogger(l logr.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.logger = l
	}
}

// WithInstructionHook sets the per-instruction hook.
func WithInstructionHook(h Hook) EmulatorOption {
	return func(e *Emulator) {
		e.hook = h
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithProfiling enables per-opcode-family time accounting.
func WithProfiling() EmulatorOption {
	return func(e *Emulator) {
		e.profiling = true
	}
}

// WithEntry sets the initial program counter.
func WithEntry(pc uint32) EmulatorOption {
	return func(e *Emulator) {
		e.regFile.PC = pc
	}
}

// NewEmulator creates a new RV32 emulator in machine mode.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	regFile := &RegFile{}

	e := &Emulator{
		regFile: regFile,
		console: os.Stdout,
		logger:  logr.Discard(),
		csrs:    newCSRBank(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.bus == nil {
		e.bus = bus.NewAddressBus()
	}

	e.alu = NewALU(regFile)
	e.lsu = NewLoadStoreUnit(regFile)
	e.branchUnit = NewBranchUnit(regFile)

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Bus returns the emulator's address space.
func (e *Emulator) Bus() Bus {
	return e.bus
}

// PC returns the program counter.
func (e *Emulator) PC() uint32 {
	return e.regFile.PC
}

// SetPC sets the program counter.
func (e *Emulator) SetPC(pc uint32) {
	e.regFile.PC = pc
}

// SetHook replaces the per-instruction hook.
func (e *Emulator) SetHook(h Hook) {
	e.hook = h
}

// InstructionCount returns the number of instructions retired.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{
			Err: fmt.Errorf("%w (%d)", ErrInstructionLimit, e.maxInstructions),
		}
	}

	pc := e.regFile.PC

	// 1. Fetch the first parcel and classify the encoding width
	parcel := e.fetchBuf[:2]
	if err := e.bus.Read(pc, parcel); err != nil {
		return StepResult{Err: fmt.Errorf("fetch at 0x%08x: %w", pc, err)}
	}
	first := binary.LittleEndian.Uint16(parcel)
	if first == 0 {
		return StepResult{Halted: true}
	}
	if bits := insts.SizeOf(first); bits != 32 {
		return StepResult{Err: &UnsupportedSizeError{PC: pc, Parcel: first, Bits: bits}}
	}

	// 2. Fetch the whole word
	if err := e.bus.Read(pc, e.fetchBuf[:]); err != nil {
		return StepResult{Err: fmt.Errorf("fetch at 0x%08x: %w", pc, err)}
	}
	word := binary.LittleEndian.Uint32(e.fetchBuf[:])

	// 3. Dispatch
	entry := &opcodeTable[insts.OpcodeOf(word)]
	if entry.exec == nil {
		return StepResult{Err: e.unsupported(word, "opcode")}
	}

	if e.hook != nil {
		if err := e.hook(e, e.instructionCount); err != nil {
			return StepResult{Err: err}
		}
	}

	if e.logger.V(3).Enabled() {
		e.logger.V(3).Info("exec",
			"pc", fmt.Sprintf("0x%08x", pc),
			"word", fmt.Sprintf("0x%08x", word),
			"inst", insts.Disassemble(word))
	}

	// 4. Execute
	var start time.Time
	if e.profiling {
		start = time.Now()
	}

	jumped, err := entry.exec(e, e.bus, word)

	if e.profiling {
		stats := &e.profile[insts.OpcodeOf(word)]
		stats.count++
		stats.total += time.Since(start)
	}

	// 5. Retire
	e.regFile.X[0] = 0
	if err != nil {
		return StepResult{Err: err}
	}
	if !jumped {
		e.regFile.PC += 4
	}
	e.instructionCount++

	return StepResult{}
}

// Run executes instructions until the instruction stream ends, an
// instruction faults, the hook returns an error or ctx is done. It returns
// ExitHalted together with the error that stopped it, which is nil for an
// orderly halt.
func (e *Emulator) Run(ctx context.Context) (int64, error) {
	for i := uint64(0); ; i++ {
		if i%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return ExitHalted, err
			}
		}

		result := e.Step()
		if result.Err != nil {
			return ExitHalted, result.Err
		}
		if result.Halted {
			e.logger.Info("halted",
				"pc", fmt.Sprintf("0x%08x", e.regFile.PC),
				"instructions", e.instructionCount)
			return ExitHalted, nil
		}
	}
}
