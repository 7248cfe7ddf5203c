package emu

import "github.com/sarchlab/rv32sim/insts"

// executeCSR runs the Zicsr instructions. Each reads the old value into rd
// after writing the new one back, so rd == rs1 behaves as on hardware.
// CSRRSI and the funct3 0 group (ECALL, EBREAK, WFI, MRET) are not
// implemented.
func (e *Emulator) executeCSR(word uint32) error {
	f := insts.DecodeI(word)
	addr := f.Imm
	src := e.regFile.ReadReg(f.Rs1)
	uimm := uint32(f.Rs1)

	var next func(cur uint32) uint32
	switch f.Funct3 {
	case 1: // csrrw
		next = func(uint32) uint32 { return src }
	case 2: // csrrs
		next = func(cur uint32) uint32 { return cur | src }
	case 3: // csrrc
		next = func(cur uint32) uint32 { return cur &^ src }
	case 5: // csrrwi
		next = func(uint32) uint32 { return uimm }
	case 7: // csrrci
		next = func(cur uint32) uint32 { return cur &^ uimm }
	case 0:
		return e.unsupported(word, "imm")
	default:
		return e.unsupported(word, "funct3")
	}

	cur := e.CSRRead(addr)
	if err := e.CSRWrite(addr, next(cur)); err != nil {
		return err
	}
	e.regFile.WriteReg(f.Rd, cur)
	return nil
}
