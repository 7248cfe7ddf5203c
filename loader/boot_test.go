package loader_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/bus"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/loader"
)

var _ = Describe("Image", func() {
	var (
		b *bus.AddressBus
		e *emu.Emulator
	)

	BeforeEach(func() {
		b = bus.NewAddressBus()
		Expect(b.Map(0x80000000, 0x8000FFFF, bus.NewSparseRAM(0x10000))).To(Succeed())
		e = emu.NewEmulator(emu.WithBus(b))
	})

	It("should place the kernel and set the PC", func() {
		img := &loader.Image{
			Kernel:   []byte{0x93, 0x02, 0xA0, 0x02},
			LoadAddr: 0x80000000,
			Entry:    0x80000000,
		}

		Expect(img.Boot(e, b)).To(Succeed())

		Expect(e.PC()).To(Equal(uint32(0x80000000)))
		Expect(b.Read32(0x80000000)).To(Equal(uint32(0x02A00293)))
		Expect(e.RegFile().ReadReg(loader.RegDTB)).To(BeZero())
	})

	It("should place the device tree below the top of RAM and point a1 at it", func() {
		dtb := []byte{0xD0, 0x0D, 0xFE, 0xED, 1, 2, 3, 4}
		img := &loader.Image{
			Kernel:   make([]byte, 128),
			LoadAddr: 0x80000000,
			Entry:    0x80000000,
			DTB:      dtb,
			RAMTop:   0x80010000,
		}

		Expect(img.Boot(e, b)).To(Succeed())

		want := uint32(0x80010000 - 8 - loader.DTBGap)
		Expect(img.DTBAddr()).To(Equal(want))
		Expect(e.RegFile().ReadReg(loader.RegDTB)).To(Equal(want))
		Expect(b.ReadBytes(want, len(dtb))).To(Equal(dtb))
	})

	It("should fail when the kernel does not fit", func() {
		img := &loader.Image{
			Kernel:   make([]byte, 0x20000),
			LoadAddr: 0x80000000,
		}
		Expect(img.Boot(e, b)).To(MatchError(bus.ErrAddressOutOfRange))
	})

	It("should reject a device tree larger than RAM", func() {
		img := &loader.Image{
			DTB:    make([]byte, 64),
			RAMTop: 100,
		}
		Expect(img.Boot(e, b)).NotTo(Succeed())
	})
})

var _ = Describe("ReverseWords", func() {
	It("should reverse every 4-byte group", func() {
		data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
		Expect(loader.ReverseWords(data)).To(Equal([]byte{4, 3, 2, 1, 8, 7, 6, 5}))
	})

	It("should reverse a trailing partial group", func() {
		data := []byte{1, 2, 3, 4, 5, 6}
		Expect(loader.ReverseWords(data)).To(Equal([]byte{4, 3, 2, 1, 6, 5}))
	})

	It("should read and reverse an image file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "code.img")
		Expect(os.WriteFile(path, []byte{0x02, 0xA0, 0x02, 0x93}, 0o644)).To(Succeed())

		data, err := loader.ReadImage(path, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{0x93, 0x02, 0xA0, 0x02}))

		raw, err := loader.ReadImage(path, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(Equal([]byte{0x02, 0xA0, 0x02, 0x93}))
	})
})
