package loader

import (
	"bufio"
	"debug/elf"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// OutsideKernel is what Describe returns for addresses at or past the
// "_end" linker symbol.
const OutsideKernel = "Address outside of the kernel"

// Symbol is a named address.
type Symbol struct {
	Addr uint32
	Name string
}

// SymbolTable resolves addresses to the closest symbol at or below them.
type SymbolTable struct {
	syms []Symbol
}

// NewSymbolTable builds a table from syms in any order.
func NewSymbolTable(syms []Symbol) *SymbolTable {
	sorted := make([]Symbol, len(syms))
	copy(sorted, syms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Addr < sorted[j].Addr
	})
	return &SymbolTable{syms: sorted}
}

// Len returns the number of symbols.
func (t *SymbolTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.syms)
}

// Lookup returns the last symbol whose address is at or below addr.
func (t *SymbolTable) Lookup(addr uint32) (Symbol, bool) {
	if t.Len() == 0 {
		return Symbol{}, false
	}

	i := sort.Search(len(t.syms), func(i int) bool {
		return t.syms[i].Addr > addr
	})
	if i == 0 {
		return Symbol{}, false
	}
	return t.syms[i-1], true
}

// Describe renders the symbol for addr as "name()" for trace output.
func (t *SymbolTable) Describe(addr uint32) string {
	sym, ok := t.Lookup(addr)
	switch {
	case !ok:
		return "unknown"
	case sym.Name == "_end":
		return OutsideKernel
	default:
		return sym.Name + "()"
	}
}

// ParseLinkerMap reads a System.map style listing. Lines of the form
// "<hex address> <type> <name>" become symbols; others are skipped.
func ParseLinkerMap(r io.Reader) (*SymbolTable, error) {
	var syms []Symbol

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 3 {
			continue
		}

		addr, err := strconv.ParseUint(fields[0], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("linker map line %d: %w", line, err)
		}
		syms = append(syms, Symbol{Addr: uint32(addr), Name: fields[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read linker map: %w", err)
	}

	return NewSymbolTable(syms), nil
}

// LoadLinkerMap parses the linker map at path.
func LoadLinkerMap(path string) (*SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open linker map: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseLinkerMap(f)
}

// LoadELFSymbols reads the named symbols of an ELF symbol table.
func LoadELFSymbols(path string) (*SymbolTable, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	elfSyms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read ELF symbols: %w", err)
	}

	syms := make([]Symbol, 0, len(elfSyms))
	for _, s := range elfSyms {
		if s.Name == "" || elf.ST_TYPE(s.Info) == elf.STT_SECTION || elf.ST_TYPE(s.Info) == elf.STT_FILE {
			continue
		}
		syms = append(syms, Symbol{Addr: uint32(s.Value), Name: s.Name})
	}

	return NewSymbolTable(syms), nil
}
