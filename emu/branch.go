package emu

import "github.com/sarchlab/rv32sim/insts"

// BranchUnit implements jumps and conditional branches.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// JAL saves the return address to rd and jumps PC-relative.
func (b *BranchUnit) JAL(f insts.JType) {
	link := b.regFile.PC + 4
	b.regFile.PC += uint32(insts.SignExtend21(f.Imm))
	b.regFile.WriteReg(f.Rd, link)
}

// JALR jumps to rs1 + imm and saves the return address to rd. The target
// is computed before rd is written, so rd may equal rs1.
func (b *BranchUnit) JALR(f insts.IType) {
	link := b.regFile.PC + 4
	b.regFile.PC = b.regFile.ReadReg(f.Rs1) + uint32(insts.SignExtend12(f.Imm))
	b.regFile.WriteReg(f.Rd, link)
}

// Branch evaluates a conditional branch and updates PC when taken. ok is
// false for a funct3 without a comparison.
func (b *BranchUnit) Branch(f insts.BType) (taken, ok bool) {
	x := b.regFile.ReadReg(f.Rs1)
	y := b.regFile.ReadReg(f.Rs2)
	sx := b.regFile.ReadRegSigned(f.Rs1)
	sy := b.regFile.ReadRegSigned(f.Rs2)

	switch f.Funct3 {
	case 0: // beq
		taken = x == y
	case 1: // bne
		taken = x != y
	case 4: // blt
		taken = sx < sy
	case 5: // bge
		taken = sx >= sy
	case 6: // bltu
		taken = x < y
	case 7: // bgeu
		taken = x >= y
	default:
		return false, false
	}

	if taken {
		b.regFile.PC += uint32(insts.SignExtend13(f.Imm))
	}
	return taken, true
}
