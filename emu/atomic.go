package emu

import "github.com/sarchlab/rv32sim/insts"

// AMO funct5 values.
const (
	amoAdd  uint8 = 0x00
	amoSwap uint8 = 0x01
	amoLR   uint8 = 0x02
	amoSC   uint8 = 0x03
	amoXor  uint8 = 0x04
	amoOr   uint8 = 0x08
	amoAnd  uint8 = 0x0C
)

// Reservation is the single LR/SC reservation slot of the hart.
type Reservation struct {
	Addr  uint32
	Valid bool
}

// Reservation returns the current LR/SC reservation.
func (e *Emulator) Reservation() Reservation {
	return e.reservation
}

// executeAMO runs one atomic memory operation. The address in rs1 and the
// operand in rs2 are sampled before rd is written.
func (e *Emulator) executeAMO(b Bus, word uint32) error {
	f := insts.DecodeRAtomic(word)
	if f.Funct3 != 2 {
		return e.unsupported(word, "funct3")
	}

	addr := e.regFile.ReadReg(f.Rs1)
	operand := e.regFile.ReadReg(f.Rs2)

	switch f.Funct5 {
	case amoLR:
		v, err := e.lsu.LoadWord(b, addr)
		if err != nil {
			return err
		}
		e.regFile.WriteReg(f.Rd, v)
		e.reservation = Reservation{Addr: addr, Valid: true}
		return nil

	case amoSC:
		held := e.reservation.Valid && e.reservation.Addr == addr
		e.reservation = Reservation{}
		if !held {
			e.regFile.WriteReg(f.Rd, 1)
			return nil
		}
		if err := e.lsu.StoreWord(b, addr, operand); err != nil {
			return err
		}
		e.regFile.WriteReg(f.Rd, 0)
		return nil
	}

	var combine func(old, v uint32) uint32
	switch f.Funct5 {
	case amoAdd:
		combine = func(old, v uint32) uint32 { return old + v }
	case amoSwap:
		combine = func(_, v uint32) uint32 { return v }
	case amoXor:
		combine = func(old, v uint32) uint32 { return old ^ v }
	case amoOr:
		combine = func(old, v uint32) uint32 { return old | v }
	case amoAnd:
		combine = func(old, v uint32) uint32 { return old & v }
	default:
		return e.unsupported(word, "funct5")
	}

	old, err := e.lsu.LoadWord(b, addr)
	if err != nil {
		return err
	}
	e.regFile.WriteReg(f.Rd, old)
	return e.lsu.StoreWord(b, addr, combine(old, operand))
}
