// Package crash writes post-mortem dumps of a faulted run.
//
// A dump is a zip archive holding registers.txt, with the fault and the
// register table, and one memory-<start>.bin per dumped region.
package crash

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sarchlab/rv32sim/bus"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/trace"
)

// RegistersFile is the archive entry holding the register table.
const RegistersFile = "registers.txt"

// Report is the content of a crash dump.
type Report struct {
	Err          error
	PC           uint32
	Instructions uint64
	Registers    []string

	// Bus and Regions select the memory to snapshot.
	Bus     *bus.AddressBus
	Regions []bus.Region
}

// NewReport captures the state of e after err stopped it.
func NewReport(e *emu.Emulator, b *bus.AddressBus, regions []bus.Region, err error) *Report {
	return &Report{
		Err:          err,
		PC:           e.PC(),
		Instructions: e.InstructionCount(),
		Registers:    e.Snapshot(),
		Bus:          b,
		Regions:      regions,
	}
}

// MemoryFile names the archive entry of the region starting at start.
func MemoryFile(start uint32) string {
	return fmt.Sprintf("memory-%08x.bin", start)
}

// Write streams the archive to w.
func (r *Report) Write(w io.Writer) error {
	zw := zip.NewWriter(w)

	if err := r.writeRegisters(zw); err != nil {
		return err
	}

	for _, region := range r.Regions {
		if err := r.writeRegion(zw, region); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish crash dump: %w", err)
	}
	return nil
}

// WriteFile writes the archive to path.
func (r *Report) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create crash dump: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close crash dump: %w", cerr)
		}
	}()

	return r.Write(f)
}

func (r *Report) create(zw *zip.Writer, name string) (io.Writer, error) {
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add %s: %w", name, err)
	}
	return fw, nil
}

func (r *Report) writeRegisters(zw *zip.Writer) error {
	fw, err := r.create(zw, RegistersFile)
	if err != nil {
		return err
	}

	var sb strings.Builder
	if r.Err != nil {
		fmt.Fprintf(&sb, "error: %v\n", r.Err)
	}
	fmt.Fprintf(&sb, "pc: 0x%08x\n", r.PC)
	fmt.Fprintf(&sb, "instructions: %d\n\n", r.Instructions)
	for _, row := range trace.RegisterTable(r.Registers, trace.RegisterColumns) {
		sb.WriteString(row)
		sb.WriteByte('\n')
	}

	if _, err := io.WriteString(fw, sb.String()); err != nil {
		return fmt.Errorf("failed to write %s: %w", RegistersFile, err)
	}
	return nil
}

func (r *Report) writeRegion(zw *zip.Writer, region bus.Region) error {
	name := MemoryFile(region.Start)
	fw, err := r.create(zw, name)
	if err != nil {
		return err
	}

	if _, err := io.Copy(fw, bus.NewReader(r.Bus, region.Start, region.End)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
