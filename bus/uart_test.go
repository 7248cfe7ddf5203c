package bus_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/bus"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

var _ = Describe("UART", func() {
	var (
		out  *bytes.Buffer
		uart *bus.UART
		b    *bus.AddressBus
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		uart = bus.NewUART(out)
		b = bus.NewAddressBus()
		Expect(b.Map(0x10000000, 0x10000FFF, uart)).To(Succeed())
	})

	It("should report the transmitter ready with no input pending", func() {
		Expect(b.Read8(0x10000005)).To(Equal(uint8(0x60)))
	})

	It("should emit bytes written to the data register", func() {
		for _, c := range []byte("hi\n") {
			Expect(b.Write8(0x10000000, c)).To(Succeed())
		}
		Expect(out.String()).To(Equal("hi\n"))
	})

	It("should ignore writes to other registers", func() {
		Expect(b.Write8(0x10000003, 0x03)).To(Succeed())
		Expect(out.Len()).To(Equal(0))
	})

	It("should only emit the data-register byte of a wide write", func() {
		Expect(b.Write32(0x10000000, 0x44434241)).To(Succeed())
		Expect(out.String()).To(Equal("A"))
	})

	It("should deliver fed input through the data register", func() {
		Expect(uart.Feed('k')).To(BeTrue())

		Expect(b.Read8(0x10000005)).To(Equal(uint8(0x61)))
		Expect(b.Read8(0x10000000)).To(Equal(uint8('k')))
		Expect(b.Read8(0x10000005)).To(Equal(uint8(0x60)))
		Expect(b.Read8(0x10000000)).To(Equal(uint8(0)))
	})

	It("should drop input once the buffer is full", func() {
		for i := 0; i < bus.UARTInputBuffer; i++ {
			Expect(uart.Feed(byte(i))).To(BeTrue())
		}
		Expect(uart.Feed(0xFF)).To(BeFalse())
	})

	It("should wrap host write failures", func() {
		broken := bus.NewUART(failingWriter{})
		err := broken.Write(0, []byte{'x'})
		Expect(err).To(MatchError(ContainSubstring("broken pipe")))
	})
})
