// Package main provides the entry point for rv32sim.
// rv32sim is a functional RV32IMA interpreter for booting small kernels.
//
// For the full CLI, use: go run ./cmd/rv32sim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rv32sim - RV32IMA Functional Interpreter")
	fmt.Println("")
	fmt.Println("Usage: rv32sim [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to machine configuration YAML file")
	fmt.Println("  -kernel    Raw kernel image loaded at the start of RAM")
	fmt.Println("  -elf       RV32 ELF executable to load instead")
	fmt.Println("  -script    Lua boot script")
	fmt.Println("  -v         Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rv32sim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rv32sim' instead.")
	}
}
