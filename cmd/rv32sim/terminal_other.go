//go:build !unix

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/sarchlab/rv32sim/bus"
)

const quitKey = 0x1D

var errQuit = errors.New("quit requested")

// terminalHost puts the console in raw mode and feeds keystrokes to the
// UART. Console reads block, so they run in their own goroutine.
type terminalHost struct {
	uart     *bus.UART
	fd       int
	oldState *term.State
	keys     chan byte
}

func newTerminalHost(uart *bus.UART) *terminalHost {
	return &terminalHost{uart: uart, fd: int(os.Stdin.Fd())}
}

// Start switches the console to raw mode and starts the reader.
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

	h.keys = make(chan byte, bus.UARTInputBuffer)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				h.keys <- buf[0]
			}
			if err != nil {
				close(h.keys)
				return
			}
		}
	}()

	fmt.Fprint(os.Stderr, "Press Ctrl-] to quit.\r\n")
	return true
}

// Pump copies keystrokes into the UART until ctx is done or the quit key
// is pressed.
func (h *terminalHost) Pump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-h.keys:
			if !ok {
				return nil
			}
			if b == quitKey {
				return errQuit
			}
			for !h.uart.Feed(b) {
				if ctx.Err() != nil {
					return nil
				}
				time.Sleep(time.Millisecond)
			}
		}
	}
}

// Stop restores the console.
func (h *terminalHost) Stop() {
	if h.oldState != nil {
		_ = term.Restore(h.fd, h.oldState)
		h.oldState = nil
	}
}
