package insts

// Encoders are the inverse of the Decode functions. Immediates are given
// as signed displacements and truncated to the width of their field.

// EncodeR builds an R-format word.
func EncodeR(op Opcode, rd, f3, rs1, rs2, f7 uint8) uint32 {
	return uint32(f7)<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(f3&0x7)<<12 | uint32(rd&0x1F)<<7 | uint32(op&0x7F)
}

// EncodeRAtomic builds an AMO word with aq = rl = 0.
func EncodeRAtomic(rd, f3, rs1, rs2, f5 uint8) uint32 {
	return EncodeR(OpcodeAMO, rd, f3, rs1, rs2, (f5&0x1F)<<2)
}

// EncodeI builds an I-format word.
func EncodeI(op Opcode, rd, f3, rs1 uint8, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(f3&0x7)<<12 | uint32(rd&0x1F)<<7 | uint32(op&0x7F)
}

// EncodeS builds an S-format word.
func EncodeS(op Opcode, f3, rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7F)<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(f3&0x7)<<12 | (u&0x1F)<<7 | uint32(op&0x7F)
}

// EncodeB builds a B-format word. imm is a byte offset; bit 0 is dropped.
func EncodeB(op Opcode, f3, rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm)
	return (u>>12&0x1)<<31 | (u>>5&0x3F)<<25 | uint32(rs2&0x1F)<<20 |
		uint32(rs1&0x1F)<<15 | uint32(f3&0x7)<<12 | (u>>1&0xF)<<8 |
		(u>>11&0x1)<<7 | uint32(op&0x7F)
}

// EncodeU builds a U-format word from the 20-bit upper immediate.
func EncodeU(op Opcode, rd uint8, imm20 uint32) uint32 {
	return (imm20&0xFFFFF)<<12 | uint32(rd&0x1F)<<7 | uint32(op&0x7F)
}

// EncodeJ builds a J-format word. imm is a byte offset; bit 0 is dropped.
func EncodeJ(op Opcode, rd uint8, imm int32) uint32 {
	u := uint32(imm)
	return (u>>20&0x1)<<31 | (u>>1&0x3FF)<<21 | (u>>11&0x1)<<20 |
		(u>>12&0xFF)<<12 | uint32(rd&0x1F)<<7 | uint32(op&0x7F)
}
