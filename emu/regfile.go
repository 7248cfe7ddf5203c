// Package emu provides functional RV32IMA emulation of a single hart.
package emu

// RegFile represents the RV32 integer register file and program counter.
type RegFile struct {
	// X holds the integer registers x0-x31. x0 can be written while an
	// instruction executes; the emulator clears it again at retire.
	X [32]uint32

	// PC is the program counter.
	PC uint32
}

// ReadReg reads a register value. Only the low five bits of reg are used.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	return r.X[reg&0x1F]
}

// WriteReg writes a register value. Only the low five bits of reg are used.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	r.X[reg&0x1F] = value
}

// ReadRegSigned reads a register as a two's-complement value.
func (r *RegFile) ReadRegSigned(reg uint8) int32 {
	return int32(r.X[reg&0x1F])
}
