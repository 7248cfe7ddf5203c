package emu

import "fmt"

// Snapshot returns the register state as display strings: x00..x31, pc,
// every stored CSR that has been written, then mstatus. Consumers lay them
// out in columns and must not rely on the count.
func (e *Emulator) Snapshot() []string {
	out := make([]string, 0, len(e.regFile.X)+len(storedCSRs)+2)
	for i, v := range e.regFile.X {
		out = append(out, fmt.Sprintf("x%02d: %08x", i, v))
	}
	out = append(out, fmt.Sprintf("pc: %08x", e.regFile.PC))

	for slot, csr := range storedCSRs {
		if e.csrs.written[slot] {
			out = append(out, fmt.Sprintf("%s: %08x", csr, e.csrs.values[slot]))
		}
	}

	return append(out, fmt.Sprintf("mstatus: %08x", e.csrs.mstatus()))
}
