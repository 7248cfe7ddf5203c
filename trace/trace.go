// Package trace implements the instruction tracer used by the CLI.
package trace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/loader"
)

// ErrKilled is returned once the run passes the configured kill point. It
// marks a requested stop, not a fault.
var ErrKilled = errors.New("kill point reached")

// RegisterColumns is the number of registers per row in register tables.
const RegisterColumns = 4

// Tracer logs execution progress from an emulator hook.
//
// An instruction is traced when it lies in the trace window (at or after
// AtInstruction, or after the PC first reached AtPC) or when its number is
// a multiple of ReportEvery.
type Tracer struct {
	cfg     config.Trace
	symbols *loader.SymbolTable
	logger  logr.Logger

	triggered  bool
	lastSymbol string
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithSymbols sets the table used to name the code being executed.
func WithSymbols(t *loader.SymbolTable) Option {
	return func(tr *Tracer) {
		tr.symbols = t
	}
}

// WithLogger sets the logger trace lines go to.
func WithLogger(l logr.Logger) Option {
	return func(tr *Tracer) {
		tr.logger = l
	}
}

// New creates a tracer.
func New(cfg config.Trace, opts ...Option) *Tracer {
	t := &Tracer{
		cfg:    cfg,
		logger: logr.Discard(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Hook is an emu.Hook.
func (t *Tracer) Hook(e *emu.Emulator, n uint64) error {
	if t.cfg.KillAtInstruction > 0 && n > t.cfg.KillAtInstruction {
		return fmt.Errorf("%w at instruction %d", ErrKilled, n)
	}

	pc := e.PC()
	if t.cfg.AtPC != 0 && pc == t.cfg.AtPC {
		t.triggered = true
	}

	if t.cfg.PrintChangedSymbols {
		if sym := t.symbols.Describe(pc); sym != t.lastSymbol {
			t.lastSymbol = sym
			t.logger.Info("entered", "pc", hex(pc), "n", n, "symbol", sym)
		}
	}

	if !t.traced(n) {
		return nil
	}

	t.logger.Info("executing", "pc", hex(pc), "n", n, "symbol", t.symbols.Describe(pc))
	if t.cfg.PrintRegisters {
		t.LogRegisters(e)
	}

	return nil
}

func (t *Tracer) traced(n uint64) bool {
	switch {
	case t.triggered:
		return true
	case t.cfg.AtInstruction > 0 && n >= t.cfg.AtInstruction:
		return true
	case t.cfg.ReportEvery > 0 && n%t.cfg.ReportEvery == 0:
		return true
	}
	return false
}

// LogRegisters logs the register table of e at V(1).
func (t *Tracer) LogRegisters(e *emu.Emulator) {
	log := t.logger.V(1)
	if !log.Enabled() {
		return
	}
	for _, row := range RegisterTable(e.Snapshot(), RegisterColumns) {
		log.Info(row)
	}
}

// RegisterTable lays out snapshot lines in rows of cols entries. The last
// row may be shorter.
func RegisterTable(lines []string, cols int) []string {
	if cols <= 0 {
		cols = RegisterColumns
	}

	rows := make([]string, 0, (len(lines)+cols-1)/cols)
	for i := 0; i < len(lines); i += cols {
		end := min(i+cols, len(lines))
		rows = append(rows, strings.Join(lines[i:end], " "))
	}
	return rows
}

func hex(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}
