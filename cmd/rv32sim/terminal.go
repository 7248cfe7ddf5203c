//go:build unix

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/sarchlab/rv32sim/bus"
)

// quitKey (Ctrl-]) ends the run from the terminal.
const quitKey = 0x1D

var errQuit = errors.New("quit requested")

// terminalHost puts stdin in raw mode and feeds keystrokes to the UART.
type terminalHost struct {
	uart        *bus.UART
	fd          int
	oldState    *term.State
	nonblockSet bool
}

func newTerminalHost(uart *bus.UART) *terminalHost {
	return &terminalHost{uart: uart, fd: int(os.Stdin.Fd())}
}

// Start switches stdin to raw, non-blocking mode. It reports false when
// stdin is not a terminal or cannot be switched.
func (h *terminalHost) Start() bool {
	if !term.IsTerminal(h.fd) {
		return false
	}

	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "terminal: failed to set raw mode: %v\n", err)
		return false
	}
	h.oldState = oldState

	if err := unix.SetNonblock(h.fd, true); err != nil {
		fmt.Fprintf(os.Stderr, "terminal: failed to set nonblocking stdin: %v\n", err)
		h.Stop()
		return false
	}
	h.nonblockSet = true

	fmt.Fprint(os.Stderr, "Press Ctrl-] to quit.\r\n")
	return true
}

// Pump copies keystrokes into the UART until ctx is done or the quit key
// is pressed.
func (h *terminalHost) Pump(ctx context.Context) error {
	buf := make([]byte, 1)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.Read(h.fd, buf)
		if n > 0 {
			if buf[0] == quitKey {
				return errQuit
			}
			feed(ctx, h.uart, buf[0])
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || n == 0 {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if err != nil {
			return nil
		}
	}
}

// Stop restores stdin.
func (h *terminalHost) Stop() {
	if h.nonblockSet {
		_ = unix.SetNonblock(h.fd, false)
		h.nonblockSet = false
	}
	if h.oldState != nil {
		_ = term.Restore(h.fd, h.oldState)
		h.oldState = nil
	}
}

// feed waits for room in the UART input buffer.
func feed(ctx context.Context, uart *bus.UART, b byte) {
	for !uart.Feed(b) {
		if ctx.Err() != nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
}
