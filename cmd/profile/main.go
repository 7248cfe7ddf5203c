// Package main provides a profiling wrapper for rv32sim to identify
// interpreter bottlenecks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/machine"
)

var (
	configPath  = flag.String("config", "", "Path to machine configuration YAML file")
	elf         = flag.Bool("elf", false, "Treat the program as an RV32 ELF instead of a raw image")
	cpuProfile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile  = flag.String("memprofile", "", "write memory profile to file")
	duration    = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	instruction = flag.Uint64("max-instr", 1000000, "max instructions to execute (0 = unlimited)")
	buckets     = flag.Bool("buckets", true, "Time each opcode family")
	showConsole = flag.Bool("console", false, "Show guest console output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := loadConfig(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	var console io.Writer = io.Discard
	if *showConsole {
		console = os.Stdout
	}

	var emuOpts []emu.EmulatorOption
	if *buckets {
		emuOpts = append(emuOpts, emu.WithProfiling())
	}

	m, err := machine.New(cfg,
		machine.WithConsole(console),
		machine.WithEmulatorOptions(emuOpts...))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating machine: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	if err := m.Boot(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s\n", flag.Arg(0))
	fmt.Printf("Entry point: 0x%08X\n", m.Emulator().PC())

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	_, runErr := m.Run(ctx)
	elapsed := time.Since(start)

	if errors.Is(runErr, context.DeadlineExceeded) {
		fmt.Printf("\nTimeout reached after %v - stopped execution\n", *duration)
	}

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	instrCount := m.Emulator().InstructionCount()

	fmt.Printf("\nProfiling Results:\n")
	if runErr != nil {
		fmt.Printf("Stopped by: %v\n", runErr)
	}
	fmt.Printf("Instructions executed: %d\n", instrCount)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if instrCount > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}

	printBuckets(m.Emulator().Profile())
}

func loadConfig(program string) (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}

	if *elf {
		cfg.Boot = config.Boot{ELF: program}
	} else {
		cfg.Boot = config.Boot{Kernel: program, ReverseWords: cfg.Boot.ReverseWords}
	}
	cfg.Trace = config.Trace{}
	cfg.Script = ""
	cfg.MaxInstructions = *instruction

	return cfg, cfg.Validate()
}

func printBuckets(profile []emu.OpProfile) {
	if len(profile) == 0 {
		return
	}

	var total time.Duration
	for _, p := range profile {
		total += p.Total
	}
	if total == 0 {
		total = 1
	}

	fmt.Printf("\nOpcode families:\n")
	fmt.Printf("  %-8s %12s %14s %10s %7s\n", "family", "count", "total", "avg", "share")
	for _, p := range profile {
		fmt.Printf("  %-8s %12d %14v %10v %6.1f%%\n",
			p.Name, p.Count, p.Total, p.Average(),
			100.0*float64(p.Total)/float64(total))
	}
}
