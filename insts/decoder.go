package insts

// Opcode is the 7-bit major opcode of a 32-bit instruction.
type Opcode uint8

// RV32 major opcodes handled by the interpreter.
const (
	OpcodeLoad    Opcode = 0b0000011
	OpcodeMiscMem Opcode = 0b0001111 // FENCE
	OpcodeOpImm   Opcode = 0b0010011
	OpcodeAUIPC   Opcode = 0b0010111
	OpcodeStore   Opcode = 0b0100011
	OpcodeAMO     Opcode = 0b0101111
	OpcodeOp      Opcode = 0b0110011
	OpcodeLUI     Opcode = 0b0110111
	OpcodeBranch  Opcode = 0b1100011
	OpcodeJALR    Opcode = 0b1100111
	OpcodeJAL     Opcode = 0b1101111
	OpcodeSystem  Opcode = 0b1110011
)

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR
	FormatRAtomic
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
)

// String returns the conventional single-letter name of the format.
func (f Format) String() string {
	switch f {
	case FormatR:
		return "R"
	case FormatRAtomic:
		return "R-atomic"
	case FormatI:
		return "I"
	case FormatS:
		return "S"
	case FormatB:
		return "B"
	case FormatU:
		return "U"
	case FormatJ:
		return "J"
	default:
		return "unknown"
	}
}

// FormatOf returns the encoding format used by an opcode.
func FormatOf(op Opcode) Format {
	switch op {
	case OpcodeOp:
		return FormatR
	case OpcodeAMO:
		return FormatRAtomic
	case OpcodeLoad, OpcodeMiscMem, OpcodeOpImm, OpcodeJALR, OpcodeSystem:
		return FormatI
	case OpcodeStore:
		return FormatS
	case OpcodeBranch:
		return FormatB
	case OpcodeLUI, OpcodeAUIPC:
		return FormatU
	case OpcodeJAL:
		return FormatJ
	default:
		return FormatUnknown
	}
}

// RType holds the fields of an R-format instruction.
type RType struct {
	Funct3 uint8
	Funct7 uint8
	Rs1    uint8
	Rs2    uint8
	Rd     uint8
}

// RAtomicType holds the fields of an AMO instruction. Funct5 is bits 31:27;
// the aq/rl ordering bits are ignored by a single-hart interpreter.
type RAtomicType struct {
	Funct3 uint8
	Funct5 uint8
	Rs1    uint8
	Rs2    uint8
	Rd     uint8
}

// IType holds the fields of an I-format instruction. Imm is the raw 12-bit
// field.
type IType struct {
	Funct3 uint8
	Rd     uint8
	Rs1    uint8
	Imm    uint32
}

// SType holds the fields of an S-format instruction. Imm is the raw 12-bit
// field.
type SType struct {
	Funct3 uint8
	Rs1    uint8
	Rs2    uint8
	Imm    uint32
}

// BType holds the fields of a B-format instruction. Imm is the raw 13-bit
// field with bit 0 always clear.
type BType struct {
	Funct3 uint8
	Rs1    uint8
	Rs2    uint8
	Imm    uint32
}

// UType holds the fields of a U-format instruction. Imm is bits 31:12,
// not yet shifted into place.
type UType struct {
	Rd  uint8
	Imm uint32
}

// JType holds the fields of a J-format instruction. Imm is the raw 21-bit
// field with bit 0 always clear.
type JType struct {
	Rd  uint8
	Imm uint32
}

// OpcodeOf returns the low 7 bits of an instruction word.
func OpcodeOf(word uint32) Opcode {
	return Opcode(word & 0x7F)
}

func funct3(word uint32) uint8 { return uint8((word >> 12) & 0x7) }
func rd(word uint32) uint8     { return uint8((word >> 7) & 0x1F) }
func rs1(word uint32) uint8    { return uint8((word >> 15) & 0x1F) }
func rs2(word uint32) uint8    { return uint8((word >> 20) & 0x1F) }

// DecodeR extracts R-format fields.
func DecodeR(word uint32) RType {
	return RType{
		Funct3: funct3(word),
		Funct7: uint8(word >> 25),
		Rs1:    rs1(word),
		Rs2:    rs2(word),
		Rd:     rd(word),
	}
}

// DecodeRAtomic extracts AMO fields.
func DecodeRAtomic(word uint32) RAtomicType {
	return RAtomicType{
		Funct3: funct3(word),
		Funct5: uint8(word >> 27),
		Rs1:    rs1(word),
		Rs2:    rs2(word),
		Rd:     rd(word),
	}
}

// DecodeI extracts I-format fields.
func DecodeI(word uint32) IType {
	return IType{
		Funct3: funct3(word),
		Rd:     rd(word),
		Rs1:    rs1(word),
		Imm:    word >> 20,
	}
}

// DecodeS extracts S-format fields.
// imm[11:5] = word[31:25], imm[4:0] = word[11:7]
func DecodeS(word uint32) SType {
	return SType{
		Funct3: funct3(word),
		Rs1:    rs1(word),
		Rs2:    rs2(word),
		Imm:    (word>>20)&0xFE0 | (word>>7)&0x1F,
	}
}

// DecodeB extracts B-format fields.
// imm[12] = word[31], imm[11] = word[7], imm[10:5] = word[30:25],
// imm[4:1] = word[11:8]
func DecodeB(word uint32) BType {
	return BType{
		Funct3: funct3(word),
		Rs1:    rs1(word),
		Rs2:    rs2(word),
		Imm: (word>>19)&0x1000 |
			(word<<4)&0x800 |
			(word>>20)&0x7E0 |
			(word>>7)&0x1E,
	}
}

// DecodeU extracts U-format fields.
func DecodeU(word uint32) UType {
	return UType{
		Rd:  rd(word),
		Imm: word >> 12,
	}
}

// DecodeJ extracts J-format fields.
// imm[20] = word[31], imm[19:12] = word[19:12], imm[11] = word[20],
// imm[10:1] = word[30:21]
func DecodeJ(word uint32) JType {
	return JType{
		Rd: rd(word),
		Imm: (word>>11)&0x100000 |
			word&0xFF000 |
			(word>>9)&0x800 |
			(word>>20)&0x7FE,
	}
}

// Instruction represents a decoded RV32 instruction with the field view of
// its format filled in.
type Instruction struct {
	Word   uint32 // Raw instruction word
	Opcode Opcode // Major opcode (bits 6:0)
	Format Format // Encoding format
	Size   int    // Width in bytes

	Rd     uint8
	Rs1    uint8
	Rs2    uint8
	Funct3 uint8
	Funct7 uint8 // R format only
	Funct5 uint8 // R-atomic format only

	// Imm is the raw immediate field of the format, before sign extension.
	Imm uint32
}

// Decoder decodes RV32 machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV32 instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word. Words with an opcode outside
// the supported set come back with FormatUnknown and only Word, Opcode and
// Size filled.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Word:   word,
		Opcode: OpcodeOf(word),
		Size:   4,
	}
	inst.Format = FormatOf(inst.Opcode)

	switch inst.Format {
	case FormatR:
		f := DecodeR(word)
		inst.Rd, inst.Rs1, inst.Rs2 = f.Rd, f.Rs1, f.Rs2
		inst.Funct3, inst.Funct7 = f.Funct3, f.Funct7
	case FormatRAtomic:
		f := DecodeRAtomic(word)
		inst.Rd, inst.Rs1, inst.Rs2 = f.Rd, f.Rs1, f.Rs2
		inst.Funct3, inst.Funct5 = f.Funct3, f.Funct5
	case FormatI:
		f := DecodeI(word)
		inst.Rd, inst.Rs1, inst.Funct3, inst.Imm = f.Rd, f.Rs1, f.Funct3, f.Imm
	case FormatS:
		f := DecodeS(word)
		inst.Rs1, inst.Rs2, inst.Funct3, inst.Imm = f.Rs1, f.Rs2, f.Funct3, f.Imm
	case FormatB:
		f := DecodeB(word)
		inst.Rs1, inst.Rs2, inst.Funct3, inst.Imm = f.Rs1, f.Rs2, f.Funct3, f.Imm
	case FormatU:
		f := DecodeU(word)
		inst.Rd, inst.Imm = f.Rd, f.Imm
	case FormatJ:
		f := DecodeJ(word)
		inst.Rd, inst.Imm = f.Rd, f.Imm
	}

	return inst
}
