package emu

import (
	"encoding/binary"

	"github.com/sarchlab/rv32sim/insts"
)

// LoadStoreUnit implements loads and stores against the bus.
type LoadStoreUnit struct {
	regFile *RegFile
	buf     [4]byte
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file.
func NewLoadStoreUnit(regFile *RegFile) *LoadStoreUnit {
	return &LoadStoreUnit{regFile: regFile}
}

// loadWidth returns the access width of a LOAD funct3, 0 if invalid.
func loadWidth(funct3 uint8) int {
	switch funct3 {
	case 0, 4:
		return 1
	case 1, 5:
		return 2
	case 2:
		return 4
	}
	return 0
}

// Load executes LB/LH/LW/LBU/LHU. LB and LH sign-extend.
func (lsu *LoadStoreUnit) Load(b Bus, f insts.IType) (ok bool, err error) {
	n := loadWidth(f.Funct3)
	if n == 0 {
		return false, nil
	}

	addr := lsu.regFile.ReadReg(f.Rs1) + uint32(insts.SignExtend12(f.Imm))
	p := lsu.buf[:n]
	if err := b.Read(addr, p); err != nil {
		return true, err
	}

	var value uint32
	switch f.Funct3 {
	case 0: // lb
		value = uint32(int32(int8(p[0])))
	case 1: // lh
		value = uint32(int32(int16(binary.LittleEndian.Uint16(p))))
	case 2: // lw
		value = binary.LittleEndian.Uint32(p)
	case 4: // lbu
		value = uint32(p[0])
	case 5: // lhu
		value = uint32(binary.LittleEndian.Uint16(p))
	}

	lsu.regFile.WriteReg(f.Rd, value)
	return true, nil
}

// Store executes SB/SH/SW in little-endian byte order.
func (lsu *LoadStoreUnit) Store(b Bus, f insts.SType) (ok bool, err error) {
	var n int
	switch f.Funct3 {
	case 0:
		n = 1
	case 1:
		n = 2
	case 2:
		n = 4
	default:
		return false, nil
	}

	addr := lsu.regFile.ReadReg(f.Rs1) + uint32(insts.SignExtend12(f.Imm))
	binary.LittleEndian.PutUint32(lsu.buf[:], lsu.regFile.ReadReg(f.Rs2))
	return true, b.Write(addr, lsu.buf[:n])
}

// LoadWord reads a little-endian word at addr.
func (lsu *LoadStoreUnit) LoadWord(b Bus, addr uint32) (uint32, error) {
	if err := b.Read(addr, lsu.buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(lsu.buf[:]), nil
}

// StoreWord writes a little-endian word at addr.
func (lsu *LoadStoreUnit) StoreWord(b Bus, addr, value uint32) error {
	binary.LittleEndian.PutUint32(lsu.buf[:], value)
	return b.Write(addr, lsu.buf[:])
}
