package bus

import "io"

// Reader streams an inclusive address range off the bus in bulk chunks.
type Reader struct {
	bus  *AddressBus
	next uint64
	end  uint64
}

// NewReader returns a reader over [start, end].
func NewReader(b *AddressBus, start, end uint32) *Reader {
	return &Reader{bus: b, next: uint64(start), end: uint64(end)}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.next > r.end {
		return 0, io.EOF
	}

	n := uint64(len(p))
	if remaining := r.end - r.next + 1; n > remaining {
		n = remaining
	}
	if err := r.bus.Read(uint32(r.next), p[:n]); err != nil {
		return 0, err
	}

	r.next += n
	return int(n), nil
}
