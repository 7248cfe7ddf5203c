// Package bus provides the memory-mapped address space of the emulated
// machine: an address bus that routes transfers to devices, RAM backends and
// a UART.
package bus

import (
	"encoding/binary"
	"fmt"
)

// SmallTransfer is the length below which transfers are routed one byte at a
// time. Transfers of this length or longer must fall inside a single region.
const SmallTransfer = 64

// Device is a memory-mapped peripheral. Offsets are relative to the start of
// the region the device is mapped at.
type Device interface {
	// Read fills p with the bytes starting at offset.
	Read(offset uint64, p []byte) error
	// Write stores p starting at offset.
	Write(offset uint64, p []byte) error
}

// Region is one mapping of the address space. End is inclusive.
type Region struct {
	Start  uint32
	End    uint32
	Device Device
}

// Contains reports whether addr falls inside the region.
func (r *Region) Contains(addr uint64) bool {
	return addr >= uint64(r.Start) && addr <= uint64(r.End)
}

// Size returns the number of bytes the region spans.
func (r *Region) Size() uint64 {
	return uint64(r.End) - uint64(r.Start) + 1
}

// AddressBus routes reads and writes to the device whose region contains the
// address. Regions are searched in registration order.
type AddressBus struct {
	regions []Region

	// scratch backs the fixed-width helpers so the fetch path does not
	// allocate.
	scratch [8]byte
}

// NewAddressBus creates an empty address bus.
func NewAddressBus() *AddressBus {
	return &AddressBus{}
}

// Map registers a device for the inclusive address range [start, end].
// Ranges must not overlap an existing region.
func (b *AddressBus) Map(start, end uint32, dev Device) error {
	if start > end {
		return fmt.Errorf("invalid region 0x%08x-0x%08x: start after end", start, end)
	}
	if dev == nil {
		return fmt.Errorf("invalid region 0x%08x-0x%08x: nil device", start, end)
	}
	for _, r := range b.regions {
		if start <= r.End && end >= r.Start {
			return fmt.Errorf("region 0x%08x-0x%08x overlaps 0x%08x-0x%08x",
				start, end, r.Start, r.End)
		}
	}

	b.regions = append(b.regions, Region{Start: start, End: end, Device: dev})
	return nil
}

// Regions returns the registered regions in registration order.
func (b *AddressBus) Regions() []Region {
	out := make([]Region, len(b.regions))
	copy(out, b.regions)
	return out
}

func (b *AddressBus) find(addr uint64) *Region {
	for i := range b.regions {
		if b.regions[i].Contains(addr) {
			return &b.regions[i]
		}
	}
	return nil
}

// Read fills p with the bytes starting at addr.
func (b *AddressBus) Read(addr uint32, p []byte) error {
	if len(p) < SmallTransfer {
		return b.each(addr, p, "read", Device.Read)
	}

	r, offset, err := b.bulk(addr, len(p), "read")
	if err != nil {
		return err
	}
	return r.Device.Read(offset, p)
}

// Write stores p starting at addr.
func (b *AddressBus) Write(addr uint32, p []byte) error {
	if len(p) < SmallTransfer {
		return b.each(addr, p, "write", Device.Write)
	}

	r, offset, err := b.bulk(addr, len(p), "write")
	if err != nil {
		return err
	}
	return r.Device.Write(offset, p)
}

// each dispatches one single-byte operation per address. Because regions
// are disjoint, the region found for the previous byte is reused while it
// still contains the address.
func (b *AddressBus) each(
	addr uint32,
	p []byte,
	op string,
	fn func(Device, uint64, []byte) error,
) error {
	var r *Region
	for i := range p {
		a := uint64(addr) + uint64(i)
		if r == nil || !r.Contains(a) {
			r = b.find(a)
			if r == nil {
				return &AddressError{Op: op, Addr: a, Len: len(p)}
			}
		}
		if err := fn(r.Device, a-uint64(r.Start), p[i:i+1]); err != nil {
			return err
		}
	}
	return nil
}

func (b *AddressBus) bulk(addr uint32, n int, op string) (*Region, uint64, error) {
	start := uint64(addr)
	end := start + uint64(n) - 1

	r := b.find(start)
	if r == nil || end > uint64(r.End) {
		return nil, 0, &AddressError{Op: op, Addr: start, Len: n}
	}
	return r, start - uint64(r.Start), nil
}

// ReadBytes reads n bytes starting at addr into a new slice.
func (b *AddressBus) ReadBytes(addr uint32, n int) ([]byte, error) {
	p := make([]byte, n)
	if err := b.Read(addr, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Read8 reads one byte.
func (b *AddressBus) Read8(addr uint32) (uint8, error) {
	p := b.scratch[:1]
	if err := b.Read(addr, p); err != nil {
		return 0, err
	}
	return p[0], nil
}

// Read16 reads a little-endian halfword.
func (b *AddressBus) Read16(addr uint32) (uint16, error) {
	p := b.scratch[:2]
	if err := b.Read(addr, p); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

// Read32 reads a little-endian word.
func (b *AddressBus) Read32(addr uint32) (uint32, error) {
	p := b.scratch[:4]
	if err := b.Read(addr, p); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// Write8 writes one byte.
func (b *AddressBus) Write8(addr uint32, v uint8) error {
	p := b.scratch[:1]
	p[0] = v
	return b.Write(addr, p)
}

// Write16 writes a little-endian halfword.
func (b *AddressBus) Write16(addr uint32, v uint16) error {
	p := b.scratch[:2]
	binary.LittleEndian.PutUint16(p, v)
	return b.Write(addr, p)
}

// Write32 writes a little-endian word.
func (b *AddressBus) Write32(addr uint32, v uint32) error {
	p := b.scratch[:4]
	binary.LittleEndian.PutUint32(p, v)
	return b.Write(addr, p)
}
