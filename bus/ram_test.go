package bus_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/bus"
)

var _ = Describe("RAM", func() {
	DescribeTable("backends behave identically",
		func(kind bus.RAMType) {
			ram, err := bus.NewRAM(kind, 0x10000)
			Expect(err).NotTo(HaveOccurred())

			buf := make([]byte, 4)
			Expect(ram.Read(0x8000, buf)).To(Succeed())
			Expect(buf).To(Equal([]byte{0, 0, 0, 0}))

			Expect(ram.Write(0x8000, []byte{1, 2, 3, 4})).To(Succeed())
			Expect(ram.Read(0x8001, buf[:2])).To(Succeed())
			Expect(buf[:2]).To(Equal([]byte{2, 3}))

			Expect(ram.Write(0xFFFF, []byte{0xAA})).To(Succeed())
			Expect(ram.Write(0xFFFF, []byte{0xAA, 0xBB})).To(MatchError(bus.ErrAddressOutOfRange))
			Expect(ram.Read(0x10000, buf[:1])).To(MatchError(bus.ErrAddressOutOfRange))
		},
		Entry("contiguous", bus.RAMContiguous),
		Entry("sparse", bus.RAMSparse),
	)

	It("should reject an unknown RAM type", func() {
		_, err := bus.NewRAM("magnetic-core", 16)
		Expect(err).To(HaveOccurred())
	})

	It("should report its size", func() {
		Expect(bus.NewContiguousRAM(128).Size()).To(Equal(uint64(128)))
		Expect(bus.NewSparseRAM(1 << 24).Size()).To(Equal(uint64(1 << 24)))
	})

	It("should serve a sparse transfer spanning storage units", func() {
		ram := bus.NewSparseRAM(1 << 20)
		data := make([]byte, 8192)
		for i := range data {
			data[i] = byte(i * 7)
		}

		Expect(ram.Write(4000, data)).To(Succeed())

		got := make([]byte, len(data))
		Expect(ram.Read(4000, got)).To(Succeed())
		Expect(got).To(Equal(data))
	})
})
