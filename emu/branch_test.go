package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/bus"
	"github.com/sarchlab/rv32sim/emu"
)

var _ = Describe("BranchUnit", func() {
	var (
		b  *bus.AddressBus
		e  *emu.Emulator
		pc uint32
	)

	BeforeEach(func() {
		b = newTestBus()
		pc = ramBase + 0x100
		e = emu.NewEmulator(emu.WithBus(b), emu.WithEntry(pc))
	})

	Describe("JAL", func() {
		It("should link and jump forward", func() {
			result := step(e, b, jal(1, 0x40))

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(e.PC()).To(Equal(pc + 0x40))
			Expect(e.RegFile().ReadReg(1)).To(Equal(pc + 4))
		})

		It("should jump backward", func() {
			result := step(e, b, jal(0, -0x100))

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(e.PC()).To(Equal(ramBase))
			Expect(e.RegFile().ReadReg(0)).To(BeZero())
		})
	})

	Describe("JALR", func() {
		It("should jump to rs1 plus the offset", func() {
			e.RegFile().WriteReg(5, ramBase+0x200)

			result := step(e, b, jalr(1, 5, -8))

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(e.PC()).To(Equal(ramBase + 0x1F8))
			Expect(e.RegFile().ReadReg(1)).To(Equal(pc + 4))
		})

		It("should read rs1 before writing rd", func() {
			e.RegFile().WriteReg(1, ramBase+0x300)

			result := step(e, b, jalr(1, 1, 0))

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(e.PC()).To(Equal(ramBase + 0x300))
			Expect(e.RegFile().ReadReg(1)).To(Equal(pc + 4))
		})

		It("should wrap the target to 32 bits", func() {
			e.RegFile().WriteReg(2, 0xFFFFFFFC)
			loadProgram(b, pc, jalr(0, 2, 8))

			Expect(e.Step().Err).NotTo(HaveOccurred())
			Expect(e.PC()).To(Equal(uint32(4)))
		})
	})

	DescribeTable("conditional branches",
		func(f3 uint8, x, y uint32, taken bool) {
			e.RegFile().WriteReg(1, x)
			e.RegFile().WriteReg(2, y)

			result := step(e, b, branch(f3, 1, 2, -16))

			Expect(result.Err).NotTo(HaveOccurred())
			if taken {
				Expect(e.PC()).To(Equal(pc - 16))
			} else {
				Expect(e.PC()).To(Equal(pc + 4))
			}
		},
		Entry("beq taken", uint8(0), uint32(7), uint32(7), true),
		Entry("beq not taken", uint8(0), uint32(7), uint32(8), false),
		Entry("bne taken", uint8(1), uint32(7), uint32(8), true),
		Entry("bne not taken", uint8(1), uint32(7), uint32(7), false),
		Entry("blt signed", uint8(4), uint32(0xFFFFFFFF), uint32(0), true),
		Entry("blt not taken", uint8(4), uint32(0), uint32(0xFFFFFFFF), false),
		Entry("bge equal", uint8(5), uint32(3), uint32(3), true),
		Entry("bge signed", uint8(5), uint32(0xFFFFFFFF), uint32(0), false),
		Entry("bltu unsigned", uint8(6), uint32(0), uint32(0xFFFFFFFF), true),
		Entry("bltu not taken", uint8(6), uint32(0xFFFFFFFF), uint32(0), false),
		Entry("bgeu unsigned", uint8(7), uint32(0xFFFFFFFF), uint32(0), true),
		Entry("bgeu not taken", uint8(7), uint32(0), uint32(1), false),
	)

	It("should reject branch funct3 2", func() {
		result := step(e, b, branch(2, 1, 2, 8))
		Expect(result.Err).To(MatchError(emu.ErrUnsupportedInstruction))
	})

	It("should count down a loop", func() {
		// x1 = 5; loop: x1 -= 1; x2 += 1; bne x1, x0, loop
		loadProgram(b, pc,
			addi(1, 0, 5),
			addi(1, 1, -1),
			addi(2, 2, 1),
			branch(1, 1, 0, -8),
		)

		for !e.Step().Halted {
		}

		Expect(e.RegFile().ReadReg(1)).To(BeZero())
		Expect(e.RegFile().ReadReg(2)).To(Equal(uint32(5)))
		Expect(e.InstructionCount()).To(Equal(uint64(16)))
	})
})
