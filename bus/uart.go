package bus

import (
	"fmt"
	"io"
)

// UART register offsets (16550 layout, byte-wide registers).
const (
	UARTData       = 0 // THR on write, RBR on read
	UARTLineStatus = 5 // LSR
)

// Line status bits.
const (
	LSRDataReady = 0x01
	LSRTxIdle    = 0x60 // THRE | TEMT: the transmitter is always ready
)

// UARTInputBuffer is the number of host bytes that can wait for the guest.
const UARTInputBuffer = 256

// UART is a minimal 16550-style serial port. Writes to the data register go
// to an io.Writer; host input fed through Feed is returned by reads of the
// data register.
type UART struct {
	out     io.Writer
	in      chan byte
	pending int // next input byte, or -1
	single  [1]byte
}

// NewUART creates a UART writing transmitted bytes to out.
func NewUART(out io.Writer) *UART {
	return &UART{
		out:     out,
		in:      make(chan byte, UARTInputBuffer),
		pending: -1,
	}
}

// Feed queues a byte of host input. It returns false if the input buffer is
// full and the byte was dropped. Feed is safe to call from another
// goroutine.
func (u *UART) Feed(b byte) bool {
	select {
	case u.in <- b:
		return true
	default:
		return false
	}
}

func (u *UART) poll() bool {
	if u.pending >= 0 {
		return true
	}
	select {
	case b := <-u.in:
		u.pending = int(b)
		return true
	default:
		return false
	}
}

func (u *UART) readRegister(offset uint64) byte {
	switch offset {
	case UARTData:
		if !u.poll() {
			return 0
		}
		b := byte(u.pending)
		u.pending = -1
		return b
	case UARTLineStatus:
		lsr := byte(LSRTxIdle)
		if u.poll() {
			lsr |= LSRDataReady
		}
		return lsr
	default:
		return 0
	}
}

// Read implements Device.
func (u *UART) Read(offset uint64, p []byte) error {
	for i := range p {
		p[i] = u.readRegister(offset + uint64(i))
	}
	return nil
}

// Write implements Device. Only the data register has an effect.
func (u *UART) Write(offset uint64, p []byte) error {
	for i, b := range p {
		if offset+uint64(i) != UARTData {
			continue
		}
		u.single[0] = b
		if _, err := u.out.Write(u.single[:]); err != nil {
			return fmt.Errorf("uart transmit: %w", err)
		}
	}
	return nil
}
