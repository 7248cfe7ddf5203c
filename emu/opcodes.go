package emu

import "github.com/sarchlab/rv32sim/insts"

// execFunc executes one instruction word. jumped reports an explicit
// control transfer, which suppresses the PC advance at retire.
type execFunc func(e *Emulator, b Bus, word uint32) (jumped bool, err error)

type opcodeEntry struct {
	name string // profiling bucket
	exec execFunc
}

var opcodeTable = [128]opcodeEntry{
	insts.OpcodeJAL:     {"JAL", execJAL},
	insts.OpcodeJALR:    {"JALR", execJALR},
	insts.OpcodeBranch:  {"BRANCH", execBranch},
	insts.OpcodeSystem:  {"SYSTEM", execSystem},
	insts.OpcodeMiscMem: {"FENCE", execFence},
	insts.OpcodeOpImm:   {"OP-IMM", execOpImm},
	insts.OpcodeOp:      {"OP", execOp},
	insts.OpcodeAUIPC:   {"AUIPC", execAUIPC},
	insts.OpcodeLUI:     {"LUI", execLUI},
	insts.OpcodeStore:   {"STORE", execStore},
	insts.OpcodeLoad:    {"LOAD", execLoad},
	insts.OpcodeAMO:     {"AMO", execAMO},
}

// OpcodeName returns the profiling name of an opcode family, or "" if the
// opcode is not implemented.
func OpcodeName(op insts.Opcode) string {
	return opcodeTable[op&0x7F].name
}

func execJAL(e *Emulator, _ Bus, word uint32) (bool, error) {
	e.branchUnit.JAL(insts.DecodeJ(word))
	return true, nil
}

func execJALR(e *Emulator, _ Bus, word uint32) (bool, error) {
	e.branchUnit.JALR(insts.DecodeI(word))
	return true, nil
}

func execBranch(e *Emulator, _ Bus, word uint32) (bool, error) {
	taken, ok := e.branchUnit.Branch(insts.DecodeB(word))
	if !ok {
		return false, e.unsupported(word, "funct3")
	}
	return taken, nil
}

func execSystem(e *Emulator, _ Bus, word uint32) (bool, error) {
	return false, e.executeCSR(word)
}

func execFence(*Emulator, Bus, uint32) (bool, error) {
	return false, nil
}

func execOpImm(e *Emulator, _ Bus, word uint32) (bool, error) {
	if bad := e.alu.OpImm(insts.DecodeI(word)); bad != "" {
		return false, e.unsupported(word, bad)
	}
	return false, nil
}

func execOp(e *Emulator, _ Bus, word uint32) (bool, error) {
	if bad := e.alu.Op(insts.DecodeR(word)); bad != "" {
		return false, e.unsupported(word, bad)
	}
	return false, nil
}

func execAUIPC(e *Emulator, _ Bus, word uint32) (bool, error) {
	f := insts.DecodeU(word)
	e.regFile.WriteReg(f.Rd, e.regFile.PC+f.Imm<<12)
	return false, nil
}

func execLUI(e *Emulator, _ Bus, word uint32) (bool, error) {
	f := insts.DecodeU(word)
	e.regFile.WriteReg(f.Rd, f.Imm<<12)
	return false, nil
}

func execStore(e *Emulator, b Bus, word uint32) (bool, error) {
	ok, err := e.lsu.Store(b, insts.DecodeS(word))
	if !ok {
		return false, e.unsupported(word, "funct3")
	}
	return false, err
}

func execLoad(e *Emulator, b Bus, word uint32) (bool, error) {
	ok, err := e.lsu.Load(b, insts.DecodeI(word))
	if !ok {
		return false, e.unsupported(word, "funct3")
	}
	return false, err
}

func execAMO(e *Emulator, b Bus, word uint32) (bool, error) {
	return false, e.executeAMO(b, word)
}
