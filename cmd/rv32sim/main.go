// Package main provides the rv32sim command: it boots a configured RV32
// machine, connects the UART to the terminal and runs until the guest halts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/machine"
	"github.com/sarchlab/rv32sim/script"
	"github.com/sarchlab/rv32sim/trace"
)

var (
	configPath = flag.String("config", "", "Path to machine configuration YAML file")
	kernel     = flag.String("kernel", "", "Raw kernel image loaded at the start of RAM")
	elfPath    = flag.String("elf", "", "RV32 ELF executable to load instead of a raw kernel")
	dtb        = flag.String("dtb", "", "Device tree blob placed below the top of RAM")
	mapPath    = flag.String("map", "", "Linker map used to name symbols in traces")
	reverse    = flag.Bool("reverse", false, "Reverse the bytes of each 4-byte group of the kernel image")
	scriptPath = flag.String("script", "", "Lua boot script")
	maxInstr   = flag.Uint64("max-instr", 0, "Max instructions to execute (0 = unlimited)")
	traceAt    = flag.Uint64("trace-at", 0, "Trace every instruction from this instruction number on")
	killAt     = flag.Uint64("kill-at", 0, "Stop after this instruction number")
	crashDump  = flag.String("crash-dump", "", "Write a zip crash dump here when the run faults")
	verbosity  = flag.Int("v", -1, "Log verbosity (overrides the config)")
	noTTY      = flag.Bool("no-tty", false, "Do not connect the terminal to the UART")
	statsAddr  = flag.String("statsview", "", "Serve live runtime statistics on this address, e.g. localhost:18066")
)

// rawOutput is set while the terminal is in raw mode, where log lines need
// an explicit carriage return.
var rawOutput atomic.Bool

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	var stats *statsview.ViewManager
	if *statsAddr != "" {
		viewer.SetConfiguration(viewer.WithAddr(*statsAddr))
		stats = statsview.New()
		go stats.Start()
		logger.Info("stats server started", "url", "http://"+*statsAddr+"/debug/statsview")
	}

	code := run(cfg, logger)
	if stats != nil {
		stats.Stop()
	}
	os.Exit(code)
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case *elfPath != "":
		cfg.Boot = config.Boot{ELF: *elfPath, Map: cfg.Boot.Map}
	case *kernel != "":
		cfg.Boot.Kernel = *kernel
	}
	if *dtb != "" {
		cfg.Boot.DTB = *dtb
	}
	if *mapPath != "" {
		cfg.Boot.Map = *mapPath
	}
	if *reverse {
		cfg.Boot.ReverseWords = true
	}
	if *scriptPath != "" {
		cfg.Script = *scriptPath
	}
	if *maxInstr > 0 {
		cfg.MaxInstructions = *maxInstr
	}
	if *traceAt > 0 {
		cfg.Trace.AtInstruction = *traceAt
	}
	if *killAt > 0 {
		cfg.Trace.KillAtInstruction = *killAt
	}
	if *crashDump != "" {
		cfg.CrashDump = *crashDump
	}
	if *verbosity >= 0 {
		cfg.LogLevel = *verbosity
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		eol := "\n"
		if rawOutput.Load() {
			eol = "\r\n"
		}
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s%s", prefix, args, eol)
			return
		}
		fmt.Fprintf(os.Stderr, "%s%s", args, eol)
	}, funcr.Options{Verbosity: level})
}

func run(cfg *config.Config, logger logr.Logger) int {
	m, err := machine.New(cfg, machine.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating machine: %v\n", err)
		return 1
	}
	defer m.Close()

	if err := m.Boot(); err != nil {
		fmt.Fprintf(os.Stderr, "Error booting: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	var runErr error
	g.Go(func() error {
		defer cancelRun()
		_, runErr = m.Run(runCtx)
		return nil
	})

	if !*noTTY {
		host := newTerminalHost(m.UART())
		if host.Start() {
			rawOutput.Store(true)
			g.Go(func() error {
				defer func() {
					host.Stop()
					rawOutput.Store(false)
				}()
				return host.Pump(runCtx)
			})
		}
	}

	if err := g.Wait(); errors.Is(err, errQuit) {
		logger.Info("quit from terminal")
		return 0
	}

	return report(m, cfg.CrashDump, runErr)
}

// report prints why the run ended and returns the process exit code.
func report(m *machine.Machine, dumpPath string, err error) int {
	switch {
	case err == nil:
		return 0
	case requestedStop(err):
		fmt.Fprintf(os.Stderr, "Stopped: %v\n", err)
		return 0
	}

	e := m.Emulator()
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	fmt.Fprintf(os.Stderr, "At %s after %d instructions\n",
		m.Symbols().Describe(e.PC()), e.InstructionCount())
	for _, row := range trace.RegisterTable(e.Snapshot(), trace.RegisterColumns) {
		fmt.Fprintln(os.Stderr, row)
	}

	if dumpPath != "" {
		if werr := m.CrashReport(err).WriteFile(dumpPath); werr != nil {
			fmt.Fprintf(os.Stderr, "Error writing crash dump: %v\n", werr)
		} else {
			fmt.Fprintf(os.Stderr, "Crash dump written to %s\n", dumpPath)
		}
	}

	return 1
}

// requestedStop reports whether err ends the run at the user's request
// rather than on a guest fault.
func requestedStop(err error) bool {
	return errors.Is(err, trace.ErrKilled) ||
		errors.Is(err, script.ErrStopped) ||
		errors.Is(err, emu.ErrInstructionLimit) ||
		errors.Is(err, context.Canceled)
}
