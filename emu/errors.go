package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/rv32sim/insts"
)

var (
	// ErrUnsupportedInstructionSize is returned when the fetch stage finds
	// an encoding width other than 32 bits.
	ErrUnsupportedInstructionSize = errors.New("unsupported instruction size")

	// ErrUnsupportedInstruction is returned for an opcode or sub-field
	// combination that has no semantics.
	ErrUnsupportedInstruction = errors.New("unsupported instruction")

	// ErrInstructionLimit is returned once the configured instruction cap
	// has been reached.
	ErrInstructionLimit = errors.New("max instructions reached")
)

// UnsupportedSizeError reports the first parcel of an instruction whose
// width has no implemented semantics. Bits is 0 for the reserved >=192-bit
// class.
type UnsupportedSizeError struct {
	PC     uint32
	Parcel uint16
	Bits   int
}

func (e *UnsupportedSizeError) Error() string {
	if e.Bits == insts.SizeReserved {
		return fmt.Sprintf("%v: parcel 0x%04x at pc 0x%08x (>=192-bit)",
			ErrUnsupportedInstructionSize, e.Parcel, e.PC)
	}
	return fmt.Sprintf("%v: parcel 0x%04x at pc 0x%08x (%d-bit)",
		ErrUnsupportedInstructionSize, e.Parcel, e.PC, e.Bits)
}

// Unwrap lets errors.Is match ErrUnsupportedInstructionSize.
func (e *UnsupportedSizeError) Unwrap() error {
	return ErrUnsupportedInstructionSize
}

// UnsupportedInstructionError carries the raw word and the sub-fields that
// could not be dispatched. Field names the field that failed: "opcode",
// "funct3", "funct7", "funct5" or "imm".
type UnsupportedInstructionError struct {
	PC     uint32
	Word   uint32
	Opcode insts.Opcode
	Funct3 uint8
	Funct7 uint8
	Funct5 uint8
	Field  string
}

func (e *UnsupportedInstructionError) Error() string {
	return fmt.Sprintf(
		"%v: 0x%08x at pc 0x%08x (opcode 0x%02x funct3 %d funct7 0x%02x funct5 0x%02x, bad %s)",
		ErrUnsupportedInstruction, e.Word, e.PC, uint8(e.Opcode),
		e.Funct3, e.Funct7, e.Funct5, e.Field)
}

// Unwrap lets errors.Is match ErrUnsupportedInstruction.
func (e *UnsupportedInstructionError) Unwrap() error {
	return ErrUnsupportedInstruction
}

func (e *Emulator) unsupported(word uint32, field string) error {
	return &UnsupportedInstructionError{
		PC:     e.regFile.PC,
		Word:   word,
		Opcode: insts.OpcodeOf(word),
		Funct3: uint8(word>>12) & 0x7,
		Funct7: uint8(word >> 25),
		Funct5: uint8(word >> 27),
		Field:  field,
	}
}
