package emu

import "fmt"

// CSR identifies a control and status register by its 12-bit address.
type CSR uint16

// CSRs known to the emulator. Any other address reads as zero and ignores
// writes.
const (
	CSRHvc0      CSR = 0x139 // console output
	CSRSscratch  CSR = 0x140
	CSRMstatus   CSR = 0x300
	CSRMie       CSR = 0x304
	CSRMtvec     CSR = 0x305
	CSRMscratch  CSR = 0x340
	CSRMepc      CSR = 0x341
	CSRMcause    CSR = 0x342
	CSRMtval     CSR = 0x343
	CSRMip       CSR = 0x344
	CSRPmpcfg0   CSR = 0x3A0
	CSRPmpaddr0  CSR = 0x3B0
	CSRMvendorid CSR = 0xF11
	CSRMarchid   CSR = 0xF12
	CSRMimpid    CSR = 0xF13
	CSRMhartid   CSR = 0xF14
)

// mstatus bit groups.
const (
	MstatusMIE  uint32 = 0x0008
	MstatusMPIE uint32 = 0x0080
	MstatusMPP  uint32 = 0x1800
)

const mstatusMPPShift = 11

type csrKind uint8

const (
	csrUnknown csrKind = iota
	csrHardwired
	csrStored
	csrStatus
)

// storedCSRs lists the CSRs backed by plain storage, in address order.
var storedCSRs = [...]CSR{
	CSRMie, CSRMtvec, CSRMscratch, CSRMepc, CSRMcause, CSRMtval, CSRMip,
}

// classify resolves an address to its kind. For hardwired CSRs it also
// returns the fixed value; for stored CSRs the slot index.
func classify(addr CSR) (kind csrKind, value uint32, slot int) {
	switch addr {
	case CSRSscratch:
		return csrHardwired, 0xFFFFFFFF, 0
	case CSRHvc0, CSRPmpcfg0, CSRPmpaddr0,
		CSRMvendorid, CSRMarchid, CSRMimpid, CSRMhartid:
		return csrHardwired, 0, 0
	case CSRMstatus:
		return csrStatus, 0, 0
	case CSRMie:
		return csrStored, 0, 0
	case CSRMtvec:
		return csrStored, 0, 1
	case CSRMscratch:
		return csrStored, 0, 2
	case CSRMepc:
		return csrStored, 0, 3
	case CSRMcause:
		return csrStored, 0, 4
	case CSRMtval:
		return csrStored, 0, 5
	case CSRMip:
		return csrStored, 0, 6
	}
	return csrUnknown, 0, 0
}

// Known reports whether the address names a CSR of this machine.
func (c CSR) Known() bool {
	kind, _, _ := classify(c)
	return kind != csrUnknown
}

// String returns the assembler name of the CSR.
func (c CSR) String() string {
	switch c {
	case CSRHvc0:
		return "hvc0"
	case CSRSscratch:
		return "sscratch"
	case CSRMstatus:
		return "mstatus"
	case CSRMie:
		return "mie"
	case CSRMtvec:
		return "mtvec"
	case CSRMscratch:
		return "mscratch"
	case CSRMepc:
		return "mepc"
	case CSRMcause:
		return "mcause"
	case CSRMtval:
		return "mtval"
	case CSRMip:
		return "mip"
	case CSRPmpcfg0:
		return "pmpcfg0"
	case CSRPmpaddr0:
		return "pmpaddr0"
	case CSRMvendorid:
		return "mvendorid"
	case CSRMarchid:
		return "marchid"
	case CSRMimpid:
		return "mimpid"
	case CSRMhartid:
		return "mhartid"
	default:
		return fmt.Sprintf("csr0x%03x", uint16(c))
	}
}

// Privilege is a RISC-V privilege mode.
type Privilege uint8

// Privilege modes.
const (
	PrivilegeUser       Privilege = 0b00
	PrivilegeSupervisor Privilege = 0b01
	PrivilegeMachine    Privilege = 0b11
)

func (p Privilege) String() string {
	switch p {
	case PrivilegeUser:
		return "user"
	case PrivilegeSupervisor:
		return "supervisor"
	case PrivilegeMachine:
		return "machine"
	default:
		return fmt.Sprintf("reserved(%d)", uint8(p))
	}
}

// csrBank holds the stored CSRs and the fields mstatus is synthesized from.
type csrBank struct {
	values  [len(storedCSRs)]uint32
	written [len(storedCSRs)]bool

	interruptsEnabled     bool
	prevInterruptsEnabled bool
	privilege             Privilege
	prevPrivilege         Privilege
}

func newCSRBank() csrBank {
	return csrBank{
		privilege:     PrivilegeMachine,
		prevPrivilege: PrivilegeUser,
	}
}

func (b *csrBank) mstatus() uint32 {
	var v uint32
	if b.interruptsEnabled {
		v |= MstatusMIE
	}
	if b.prevInterruptsEnabled {
		v |= MstatusMPIE
	}
	return v | uint32(b.prevPrivilege)<<mstatusMPPShift
}

// writeMstatus applies the changed bit groups in order. A group that turns
// on ends the update, so later groups in the same write are not applied.
func (b *csrBank) writeMstatus(value uint32) {
	changed := b.mstatus() ^ value

	if changed&MstatusMIE != 0 {
		if value&MstatusMIE != 0 {
			b.interruptsEnabled = true
			return
		}
		b.interruptsEnabled = false
	}

	if changed&MstatusMPIE != 0 {
		if value&MstatusMPIE != 0 {
			b.prevInterruptsEnabled = true
			return
		}
		b.prevInterruptsEnabled = false
	}

	// MPP only moves when both of its bits flip.
	if changed&MstatusMPP == MstatusMPP {
		b.prevPrivilege = Privilege((value & MstatusMPP) >> mstatusMPPShift)
	}
}

// CSRRead returns the value of the CSR at addr. Unknown addresses read as
// zero.
func (e *Emulator) CSRRead(addr uint32) uint32 {
	kind, value, slot := classify(CSR(addr & 0xFFF))
	switch kind {
	case csrHardwired:
		return value
	case csrStatus:
		return e.csrs.mstatus()
	case csrStored:
		return e.csrs.values[slot]
	}

	e.logger.V(2).Info("read of unknown CSR", "csr", fmt.Sprintf("0x%03x", addr&0xFFF))
	return 0
}

// CSRWrite stores value into the CSR at addr. Writes to unknown or
// hardwired CSRs are ignored, except that a write to hvc0 emits the low byte
// of value on the console.
func (e *Emulator) CSRWrite(addr uint32, value uint32) error {
	csr := CSR(addr & 0xFFF)
	kind, _, slot := classify(csr)
	switch kind {
	case csrHardwired:
		if csr == CSRHvc0 {
			e.consoleBuf[0] = byte(value)
			if _, err := e.console.Write(e.consoleBuf[:]); err != nil {
				return fmt.Errorf("console write: %w", err)
			}
		}
	case csrStatus:
		e.csrs.writeMstatus(value)
	case csrStored:
		e.csrs.values[slot] = value
		e.csrs.written[slot] = true
	default:
		e.logger.V(2).Info("write to unknown CSR ignored",
			"csr", fmt.Sprintf("0x%03x", uint16(csr)), "value", fmt.Sprintf("0x%08x", value))
	}
	return nil
}

// Privilege returns the current privilege mode.
func (e *Emulator) Privilege() Privilege {
	return e.csrs.privilege
}

// PrevPrivilege returns the previous privilege mode held in mstatus.MPP.
func (e *Emulator) PrevPrivilege() Privilege {
	return e.csrs.prevPrivilege
}

// InterruptsEnabled reports mstatus.MIE.
func (e *Emulator) InterruptsEnabled() bool {
	return e.csrs.interruptsEnabled
}

// PrevInterruptsEnabled reports mstatus.MPIE.
func (e *Emulator) PrevInterruptsEnabled() bool {
	return e.csrs.prevInterruptsEnabled
}
