package bus

import (
	"errors"
	"fmt"
)

// ErrAddressOutOfRange is returned when an access touches an address that no
// region maps, or a bulk transfer crosses a region boundary.
var ErrAddressOutOfRange = errors.New("address out of range")

// AddressError describes a failed bus or device access.
type AddressError struct {
	Op   string // "read" or "write"
	Addr uint64 // first faulting address
	Len  int    // length of the transfer that faulted
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("%s of %d byte(s) at 0x%08x: %v", e.Op, e.Len, e.Addr, ErrAddressOutOfRange)
}

// Unwrap lets errors.Is match ErrAddressOutOfRange.
func (e *AddressError) Unwrap() error {
	return ErrAddressOutOfRange
}
