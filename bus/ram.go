package bus

import (
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// RAMType selects the storage strategy of a RAM region.
type RAMType string

// Supported RAM backends.
const (
	// RAMContiguous preallocates the whole region as one byte slice.
	RAMContiguous RAMType = "contiguous"
	// RAMSparse allocates storage units on first touch, which suits large
	// address ranges that are mostly unused.
	RAMSparse RAMType = "sparse"
)

// NewRAM creates a RAM device of the given type and size in bytes.
func NewRAM(kind RAMType, size uint64) (Device, error) {
	switch kind {
	case RAMContiguous, "":
		return NewContiguousRAM(size), nil
	case RAMSparse:
		return NewSparseRAM(size), nil
	default:
		return nil, fmt.Errorf("unknown RAM type %q", kind)
	}
}

// ContiguousRAM is RAM backed by a preallocated byte slice.
type ContiguousRAM struct {
	data []byte
}

// NewContiguousRAM allocates size bytes of zeroed RAM.
func NewContiguousRAM(size uint64) *ContiguousRAM {
	return &ContiguousRAM{data: make([]byte, size)}
}

// Size returns the capacity in bytes.
func (r *ContiguousRAM) Size() uint64 {
	return uint64(len(r.data))
}

func (r *ContiguousRAM) check(op string, offset uint64, n int) error {
	if offset+uint64(n) > uint64(len(r.data)) {
		return &AddressError{Op: op, Addr: offset, Len: n}
	}
	return nil
}

// Read implements Device.
func (r *ContiguousRAM) Read(offset uint64, p []byte) error {
	if err := r.check("read", offset, len(p)); err != nil {
		return err
	}
	copy(p, r.data[offset:])
	return nil
}

// Write implements Device.
func (r *ContiguousRAM) Write(offset uint64, p []byte) error {
	if err := r.check("write", offset, len(p)); err != nil {
		return err
	}
	copy(r.data[offset:], p)
	return nil
}

// SparseRAM is RAM backed by an akita storage, which only materializes the
// units that have been touched. Untouched bytes read as zero.
type SparseRAM struct {
	size    uint64
	storage *mem.Storage
}

// NewSparseRAM creates size bytes of lazily allocated RAM.
func NewSparseRAM(size uint64) *SparseRAM {
	return &SparseRAM{
		size:    size,
		storage: mem.NewStorage(size),
	}
}

// Size returns the capacity in bytes.
func (r *SparseRAM) Size() uint64 {
	return r.size
}

func (r *SparseRAM) check(op string, offset uint64, n int) error {
	if offset+uint64(n) > r.size {
		return &AddressError{Op: op, Addr: offset, Len: n}
	}
	return nil
}

// Read implements Device.
func (r *SparseRAM) Read(offset uint64, p []byte) error {
	if err := r.check("read", offset, len(p)); err != nil {
		return err
	}
	data, err := r.storage.Read(offset, uint64(len(p)))
	if err != nil {
		return fmt.Errorf("sparse ram read at 0x%x: %w", offset, err)
	}
	copy(p, data)
	return nil
}

// Write implements Device.
func (r *SparseRAM) Write(offset uint64, p []byte) error {
	if err := r.check("write", offset, len(p)); err != nil {
		return err
	}
	if err := r.storage.Write(offset, p); err != nil {
		return fmt.Errorf("sparse ram write at 0x%x: %w", offset, err)
	}
	return nil
}
