// Package insts provides RV32 instruction definitions and decoding.
//
// This package implements decoding of 32-bit RISC-V machine code into
// structured field views. It supports the canonical formats:
//   - R: register/register operations (OP, including the M extension)
//   - R-atomic: AMO and LR/SC, where funct7 is read as funct5 plus aq/rl
//   - I: immediates, loads, JALR and SYSTEM
//   - S: stores
//   - B: conditional branches
//   - U: LUI and AUIPC
//   - J: JAL
//
// Extractors never fail; sign extension is a separate step done by the
// caller with the SignExtend helpers.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0xFFF00293) // ADDI x5, x0, -1
//	fmt.Printf("Op: %v, Rd: %d, Imm: %d\n", inst.Opcode, inst.Rd, insts.SignExtend12(inst.Imm))
package insts
