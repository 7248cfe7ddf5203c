package emu_test

import (
	"bytes"
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/bus"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
)

var _ = Describe("Emulator", func() {
	var (
		b *bus.AddressBus
		e *emu.Emulator
	)

	BeforeEach(func() {
		b = newTestBus()
		e = emu.NewEmulator(
			emu.WithBus(b),
			emu.WithEntry(ramBase),
			emu.WithLogger(GinkgoLogr),
		)
	})

	Describe("NewEmulator", func() {
		It("should start in machine mode with user as previous mode", func() {
			Expect(e.Privilege()).To(Equal(emu.PrivilegeMachine))
			Expect(e.PrevPrivilege()).To(Equal(emu.PrivilegeUser))
			Expect(e.CSRRead(uint32(emu.CSRMstatus))).To(Equal(uint32(0)))
		})

		It("should set the PC to the entry point", func() {
			Expect(e.PC()).To(Equal(ramBase))
			Expect(e.RegFile().PC).To(Equal(ramBase))
		})

		It("should fault on every access without a bus", func() {
			bare := emu.NewEmulator()
			result := bare.Step()
			Expect(result.Err).To(MatchError(bus.ErrAddressOutOfRange))
		})
	})

	Describe("Run", func() {
		It("should wrap around when adding -1 and 1", func() {
			loadProgram(b, ramBase,
				addi(5, 0, -1),
				addi(6, 0, 1),
				add(7, 5, 6),
			)

			code, err := e.Run(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(emu.ExitHalted))
			Expect(e.RegFile().ReadReg(5)).To(Equal(uint32(0xFFFFFFFF)))
			Expect(e.RegFile().ReadReg(6)).To(Equal(uint32(1)))
			Expect(e.RegFile().ReadReg(7)).To(Equal(uint32(0)))
			Expect(e.InstructionCount()).To(Equal(uint64(3)))
			Expect(e.PC()).To(Equal(ramBase + 12))
		})

		It("should build a constant with LUI and ADDI", func() {
			loadProgram(b, ramBase,
				lui(1, 0x12345),
				addi(1, 1, 0x678),
			)

			_, err := e.Run(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(0x12345678)))
		})

		It("should store and reload a word in little-endian order", func() {
			loadProgram(b, ramBase,
				lui(1, dataAddr>>12),
				lui(2, 0xDEADC),
				addi(2, 2, -0x111),
				sw(1, 2, 0),
				lw(3, 1, 0),
			)

			_, err := e.Run(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(e.RegFile().ReadReg(2)).To(Equal(uint32(0xDEADBEEF)))
			Expect(e.RegFile().ReadReg(3)).To(Equal(uint32(0xDEADBEEF)))
			Expect(b.ReadBytes(dataAddr, 4)).To(Equal([]byte{0xEF, 0xBE, 0xAD, 0xDE}))
		})

		It("should halt at an all-zero parcel without error", func() {
			code, err := e.Run(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(emu.ExitHalted))
			Expect(e.InstructionCount()).To(BeZero())
		})

		It("should return the fault that stopped it", func() {
			loadProgram(b, ramBase, addi(1, 0, 1), 0x0000007B)

			code, err := e.Run(context.Background())

			Expect(code).To(Equal(emu.ExitHalted))
			Expect(err).To(MatchError(emu.ErrUnsupportedInstruction))
			Expect(e.PC()).To(Equal(ramBase + 4))
		})

		It("should stop at the instruction cap", func() {
			e = emu.NewEmulator(
				emu.WithBus(b),
				emu.WithEntry(ramBase),
				emu.WithMaxInstructions(10),
			)
			loadProgram(b, ramBase, jal(0, 0))

			_, err := e.Run(context.Background())

			Expect(err).To(MatchError(emu.ErrInstructionLimit))
			Expect(e.InstructionCount()).To(Equal(uint64(10)))
		})

		It("should stop when the context is cancelled", func() {
			loadProgram(b, ramBase, jal(0, 0))
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := e.Run(ctx)

			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("Step", func() {
		It("should force x0 back to zero", func() {
			result := step(e, b, addi(0, 0, 5))

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(e.RegFile().ReadReg(0)).To(BeZero())
			Expect(e.PC()).To(Equal(ramBase + 4))
		})

		It("should add the PC in AUIPC", func() {
			result := step(e, b, auipc(4, 0xFFFFF))

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(e.RegFile().ReadReg(4)).To(Equal(ramBase - 0x1000))
		})

		DescribeTable("should reject encodings that are not 32 bits wide",
			func(parcel uint16, bits int) {
				Expect(b.Write16(ramBase, parcel)).To(Succeed())

				result := e.Step()

				Expect(result.Err).To(MatchError(emu.ErrUnsupportedInstructionSize))
				var sizeErr *emu.UnsupportedSizeError
				Expect(errors.As(result.Err, &sizeErr)).To(BeTrue())
				Expect(sizeErr.Bits).To(Equal(bits))
				Expect(sizeErr.PC).To(Equal(ramBase))
				Expect(e.PC()).To(Equal(ramBase))
			},
			Entry("16-bit compressed", uint16(0x4501), 16),
			Entry("48-bit", uint16(0x001F), 48),
			Entry("64-bit", uint16(0x003F), 64),
			Entry("80-bit", uint16(0x007F), 80),
			Entry("176-bit", uint16(0x607F), 176),
			Entry("reserved >=192-bit", uint16(0x707F), 0),
		)

		It("should report an unknown opcode with its fields", func() {
			result := step(e, b, 0x0000007B)

			var instErr *emu.UnsupportedInstructionError
			Expect(errors.As(result.Err, &instErr)).To(BeTrue())
			Expect(instErr.Word).To(Equal(uint32(0x7B)))
			Expect(instErr.Field).To(Equal("opcode"))
			Expect(instErr.PC).To(Equal(ramBase))
		})

		It("should leave PC on a faulting load and keep x0 clear", func() {
			result := step(e, b, lw(0, 0, 0x10))

			Expect(result.Err).To(MatchError(bus.ErrAddressOutOfRange))
			Expect(e.PC()).To(Equal(ramBase))
			Expect(e.RegFile().ReadReg(0)).To(BeZero())
			Expect(e.InstructionCount()).To(BeZero())
		})

		It("should fault when fetching outside the bus", func() {
			e.SetPC(0x1000)
			result := e.Step()
			Expect(result.Err).To(MatchError(bus.ErrAddressOutOfRange))
		})
	})

	Describe("hooks", func() {
		It("should call the hook before every instruction", func() {
			var (
				counts []uint64
				pcs    []uint32
			)
			e.SetHook(func(e *emu.Emulator, n uint64) error {
				counts = append(counts, n)
				pcs = append(pcs, e.PC())
				return nil
			})
			loadProgram(b, ramBase, addi(1, 0, 1), addi(1, 1, 1), addi(1, 1, 1))

			_, err := e.Run(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(counts).To(Equal([]uint64{0, 1, 2}))
			Expect(pcs).To(Equal([]uint32{ramBase, ramBase + 4, ramBase + 8}))
		})

		It("should stop before executing when the hook fails", func() {
			stop := errors.New("cutoff")
			e.SetHook(func(_ *emu.Emulator, n uint64) error {
				if n == 1 {
					return stop
				}
				return nil
			})
			loadProgram(b, ramBase, addi(1, 0, 1), addi(1, 1, 1))

			_, err := e.Run(context.Background())

			Expect(err).To(MatchError(stop))
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(1)))
			Expect(e.PC()).To(Equal(ramBase + 4))
		})

		It("should chain hooks in order and skip nil ones", func() {
			var order []string
			first := func(*emu.Emulator, uint64) error {
				order = append(order, "first")
				return nil
			}
			second := func(*emu.Emulator, uint64) error {
				order = append(order, "second")
				return errors.New("second failed")
			}
			third := func(*emu.Emulator, uint64) error {
				order = append(order, "third")
				return nil
			}

			hook := emu.ChainHooks(first, nil, second, third)
			Expect(hook(e, 0)).To(MatchError("second failed"))
			Expect(order).To(Equal([]string{"first", "second"}))

			Expect(emu.ChainHooks(nil, nil)).To(BeNil())
		})
	})

	Describe("console", func() {
		It("should print bytes written to hvc0", func() {
			out := &bytes.Buffer{}
			e = emu.NewEmulator(emu.WithBus(b), emu.WithEntry(ramBase), emu.WithConsole(out))
			loadProgram(b, ramBase,
				addi(1, 0, 'o'),
				csrOp(1, 0, 1, emu.CSRHvc0),
				addi(1, 0, 'k'),
				csrOp(1, 0, 1, emu.CSRHvc0),
			)

			_, err := e.Run(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(out.String()).To(Equal("ok"))
			Expect(e.CSRRead(uint32(emu.CSRHvc0))).To(BeZero())
		})
	})

	Describe("Profile", func() {
		It("should be empty without profiling", func() {
			loadProgram(b, ramBase, addi(1, 0, 1))
			_, _ = e.Run(context.Background())
			Expect(e.Profile()).To(BeEmpty())
		})

		It("should bucket instructions by opcode family", func() {
			e = emu.NewEmulator(emu.WithBus(b), emu.WithEntry(ramBase), emu.WithProfiling())
			loadProgram(b, ramBase,
				addi(1, 0, 1),
				addi(2, 0, 2),
				add(3, 1, 2),
				lui(4, 1),
			)

			_, err := e.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			counts := map[string]uint64{}
			for _, p := range e.Profile() {
				counts[p.Name] = p.Count
			}
			Expect(counts).To(Equal(map[string]uint64{"OP-IMM": 2, "OP": 1, "LUI": 1}))
		})

		DescribeTable("should name opcode families",
			func(op insts.Opcode, name string) {
				Expect(emu.OpcodeName(op)).To(Equal(name))
			},
			Entry("OP-IMM", insts.OpcodeOpImm, "OP-IMM"),
			Entry("AMO", insts.OpcodeAMO, "AMO"),
			Entry("FENCE", insts.OpcodeMiscMem, "FENCE"),
			Entry("unimplemented", insts.Opcode(0x07), ""),
		)
	})

	Describe("Snapshot", func() {
		It("should list registers, pc and mstatus", func() {
			e.RegFile().WriteReg(10, 0xCAFEBABE)

			snap := e.Snapshot()

			Expect(snap).To(HaveLen(34))
			Expect(snap[0]).To(Equal("x00: 00000000"))
			Expect(snap[10]).To(Equal("x10: cafebabe"))
			Expect(snap[32]).To(Equal("pc: 80000000"))
			Expect(snap[33]).To(Equal("mstatus: 00000000"))
		})

		It("should include CSRs once written", func() {
			Expect(e.CSRWrite(uint32(emu.CSRMepc), 0x80001234)).To(Succeed())
			Expect(e.CSRWrite(uint32(emu.CSRMscratch), 0x1)).To(Succeed())

			snap := e.Snapshot()

			Expect(snap).To(HaveLen(36))
			Expect(snap[33]).To(Equal("mscratch: 00000001"))
			Expect(snap[34]).To(Equal("mepc: 80001234"))
			Expect(snap[35]).To(Equal("mstatus: 00000000"))
		})
	})
})
