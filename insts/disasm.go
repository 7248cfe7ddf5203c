package insts

import "fmt"

var branchMnemonics = [8]string{0: "beq", 1: "bne", 4: "blt", 5: "bge", 6: "bltu", 7: "bgeu"}
var loadMnemonics = [8]string{0: "lb", 1: "lh", 2: "lw", 4: "lbu", 5: "lhu"}
var storeMnemonics = [8]string{0: "sb", 1: "sh", 2: "sw"}
var opImmMnemonics = [8]string{"addi", "slli", "slti", "sltiu", "xori", "", "ori", "andi"}
var opMnemonics = [8]string{"add", "sll", "slt", "sltu", "xor", "srl", "or", "and"}
var mulMnemonics = [8]string{"mul", "mulh", "mulhsu", "mulhu", "div", "divu", "rem", "remu"}
var csrMnemonics = [8]string{1: "csrrw", 2: "csrrs", 3: "csrrc", 5: "csrrwi", 6: "csrrsi", 7: "csrrci"}

var amoMnemonics = map[uint8]string{
	0x00: "amoadd.w",
	0x01: "amoswap.w",
	0x02: "lr.w",
	0x03: "sc.w",
	0x04: "amoxor.w",
	0x08: "amoor.w",
	0x0C: "amoand.w",
	0x10: "amomin.w",
	0x14: "amomax.w",
	0x18: "amominu.w",
	0x1C: "amomaxu.w",
}

// Mnemonic returns the assembler mnemonic of a 32-bit instruction word, or
// "unknown" when the encoding is not recognized.
func Mnemonic(word uint32) string {
	m := mnemonic(word)
	if m == "" {
		return "unknown"
	}
	return m
}

func mnemonic(word uint32) string {
	f3 := funct3(word)

	switch OpcodeOf(word) {
	case OpcodeLUI:
		return "lui"
	case OpcodeAUIPC:
		return "auipc"
	case OpcodeJAL:
		return "jal"
	case OpcodeJALR:
		return "jalr"
	case OpcodeBranch:
		return branchMnemonics[f3]
	case OpcodeLoad:
		return loadMnemonics[f3]
	case OpcodeStore:
		return storeMnemonics[f3]
	case OpcodeMiscMem:
		return "fence"
	case OpcodeOpImm:
		if f3 == 5 {
			switch word >> 25 {
			case 0x00:
				return "srli"
			case 0x20:
				return "srai"
			}
			return ""
		}
		return opImmMnemonics[f3]
	case OpcodeOp:
		switch word >> 25 {
		case 0x00:
			return opMnemonics[f3]
		case 0x01:
			return mulMnemonics[f3]
		case 0x20:
			switch f3 {
			case 0:
				return "sub"
			case 5:
				return "sra"
			}
		}
		return ""
	case OpcodeAMO:
		if f3 != 2 {
			return ""
		}
		return amoMnemonics[uint8(word>>27)]
	case OpcodeSystem:
		if f3 == 0 {
			switch word >> 20 {
			case 0x000:
				return "ecall"
			case 0x001:
				return "ebreak"
			case 0x105:
				return "wfi"
			case 0x302:
				return "mret"
			}
			return ""
		}
		return csrMnemonics[f3]
	}

	return ""
}

// Disassemble renders a 32-bit instruction word in assembler-like syntax
// for trace output.
func Disassemble(word uint32) string {
	m := mnemonic(word)
	if m == "" {
		return fmt.Sprintf(".word 0x%08x", word)
	}

	switch FormatOf(OpcodeOf(word)) {
	case FormatR:
		f := DecodeR(word)
		return fmt.Sprintf("%s x%d, x%d, x%d", m, f.Rd, f.Rs1, f.Rs2)
	case FormatRAtomic:
		f := DecodeRAtomic(word)
		if f.Funct5 == 0x02 {
			return fmt.Sprintf("%s x%d, (x%d)", m, f.Rd, f.Rs1)
		}
		return fmt.Sprintf("%s x%d, x%d, (x%d)", m, f.Rd, f.Rs2, f.Rs1)
	case FormatS:
		f := DecodeS(word)
		return fmt.Sprintf("%s x%d, %d(x%d)", m, f.Rs2, SignExtend12(f.Imm), f.Rs1)
	case FormatB:
		f := DecodeB(word)
		return fmt.Sprintf("%s x%d, x%d, %d", m, f.Rs1, f.Rs2, SignExtend13(f.Imm))
	case FormatU:
		f := DecodeU(word)
		return fmt.Sprintf("%s x%d, 0x%05x", m, f.Rd, f.Imm)
	case FormatJ:
		f := DecodeJ(word)
		return fmt.Sprintf("%s x%d, %d", m, f.Rd, SignExtend21(f.Imm))
	}

	f := DecodeI(word)
	switch OpcodeOf(word) {
	case OpcodeLoad, OpcodeJALR:
		return fmt.Sprintf("%s x%d, %d(x%d)", m, f.Rd, SignExtend12(f.Imm), f.Rs1)
	case OpcodeMiscMem:
		return m
	case OpcodeSystem:
		switch {
		case f.Funct3 == 0:
			return m
		case f.Funct3 >= 5:
			return fmt.Sprintf("%s x%d, 0x%03x, %d", m, f.Rd, f.Imm, f.Rs1)
		default:
			return fmt.Sprintf("%s x%d, 0x%03x, x%d", m, f.Rd, f.Imm, f.Rs1)
		}
	}

	switch f.Funct3 {
	case 1, 5:
		return fmt.Sprintf("%s x%d, x%d, %d", m, f.Rd, f.Rs1, f.Imm&0x1F)
	case 3:
		return fmt.Sprintf("%s x%d, x%d, %d", m, f.Rd, f.Rs1, f.Imm)
	}
	return fmt.Sprintf("%s x%d, x%d, %d", m, f.Rd, f.Rs1, SignExtend12(f.Imm))
}
