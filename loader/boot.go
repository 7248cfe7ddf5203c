package loader

import (
	"fmt"
	"os"

	"github.com/sarchlab/rv32sim/emu"
)

// DTBGap is the number of bytes left free between the device tree blob and
// the top of RAM.
const DTBGap = 192

// RegDTB is the register that receives the device tree address (a1).
const RegDTB = 11

// Target is the part of a machine the loader initializes.
type Target interface {
	SetPC(pc uint32)
	RegFile() *emu.RegFile
}

// Writer is the bus write contract used to place images.
type Writer interface {
	Write(addr uint32, p []byte) error
}

// Image describes a raw boot: a kernel image written at LoadAddr and
// entered at Entry, optionally with a device tree placed just below RAMTop.
type Image struct {
	Kernel   []byte
	LoadAddr uint32
	Entry    uint32

	DTB []byte
	// RAMTop is one past the last RAM address. The DTB ends DTBGap bytes
	// below it.
	RAMTop uint64
}

// DTBAddr returns where the device tree is placed.
func (img *Image) DTBAddr() uint32 {
	return uint32(img.RAMTop - uint64(len(img.DTB)) - DTBGap)
}

// Boot writes the kernel and device tree through w, points a1 at the
// device tree and sets the PC to the entry address.
func (img *Image) Boot(t Target, w Writer) error {
	if len(img.DTB) > 0 {
		if uint64(len(img.DTB))+DTBGap > img.RAMTop {
			return fmt.Errorf("device tree of %d bytes does not fit below 0x%x", len(img.DTB), img.RAMTop)
		}
		t.RegFile().WriteReg(RegDTB, img.DTBAddr())
	}

	t.SetPC(img.Entry)

	if err := w.Write(img.LoadAddr, img.Kernel); err != nil {
		return fmt.Errorf("write kernel image at 0x%08x: %w", img.LoadAddr, err)
	}

	if len(img.DTB) > 0 {
		addr := img.DTBAddr()
		if err := w.Write(addr, img.DTB); err != nil {
			return fmt.Errorf("write device tree at 0x%08x: %w", addr, err)
		}
	}

	return nil
}

// ReadImage reads a raw image file. With reverse set, the byte order of
// every 4-byte group is reversed (see ReverseWords).
func ReadImage(path string, reverse bool) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if reverse {
		data = ReverseWords(data)
	}
	return data, nil
}

// ReverseWords reverses the bytes of each 4-byte group in place and returns
// data. A trailing partial group is reversed as well.
func ReverseWords(data []byte) []byte {
	for start := 0; start < len(data); start += 4 {
		end := start + 4
		if end > len(data) {
			end = len(data)
		}
		for i, j := start, end-1; i < j; i, j = i+1, j-1 {
			data[i], data[j] = data[j], data[i]
		}
	}
	return data
}
