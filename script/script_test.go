package script_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-logr/logr/funcr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/bus"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/script"
)

const ramBase = uint32(0x80000000)

var _ = Describe("Script", func() {
	var (
		b *bus.AddressBus
		e *emu.Emulator
	)

	BeforeEach(func() {
		b = bus.NewAddressBus()
		Expect(b.Map(ramBase, ramBase+0xFFFF, bus.NewContiguousRAM(0x10000))).To(Succeed())
		e = emu.NewEmulator(emu.WithBus(b), emu.WithEntry(ramBase))
	})

	load := func(src string) *script.Script {
		s, err := script.LoadString("test.lua", src, e, script.WithLogger(GinkgoLogr))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)
		return s
	}

	Describe("loader", func() {
		It("should set up registers and memory", func() {
			s := load(`
function loader(rv)
  rv:set_pc(0x80000100)
  rv:set_reg(10, 42)
  rv:set_reg(11, rv:reg(10) + 1)
  rv:write(0x80000000, 0xdeadbeef)
  rv:write(0x80000004, 0x1234, 2)
  rv:set_reg(12, rv:read(0x80000000, 1))
end
`)
			Expect(s.HasLoader()).To(BeTrue())
			Expect(s.RunLoader()).To(Succeed())

			Expect(e.PC()).To(Equal(uint32(0x80000100)))
			Expect(e.RegFile().ReadReg(10)).To(Equal(uint32(42)))
			Expect(e.RegFile().ReadReg(11)).To(Equal(uint32(43)))
			Expect(e.RegFile().ReadReg(12)).To(Equal(uint32(0xEF)))
			Expect(b.Read32(ramBase)).To(Equal(uint32(0xDEADBEEF)))
			Expect(b.Read32(ramBase + 4)).To(Equal(uint32(0x1234)))
		})

		It("should load raw images", func() {
			path := filepath.Join(GinkgoT().TempDir(), "code.img")
			Expect(os.WriteFile(path, []byte{0x01, 0x02, 0x03, 0x04}, 0o644)).To(Succeed())

			s := load(`
function loader(rv)
  local n = rv:load(IMAGE, 0x80000010, true)
  rv:set_reg(5, n)
end
`)
			Expect(s.RunLoader()).To(MatchError(ContainSubstring("loader")))

			s = load(`IMAGE = "` + filepath.ToSlash(path) + `"
function loader(rv)
  rv:set_reg(5, rv:load(IMAGE, 0x80000010, true))
end
`)
			Expect(s.RunLoader()).To(Succeed())
			Expect(e.RegFile().ReadReg(5)).To(Equal(uint32(4)))
			Expect(b.Read32(ramBase + 0x10)).To(Equal(uint32(0x01020304)))
		})

		It("should read CSRs", func() {
			s := load(`
function loader(rv)
  rv:set_reg(5, rv:csr(0x140))
end
`)
			Expect(s.RunLoader()).To(Succeed())
			Expect(e.RegFile().ReadReg(5)).To(Equal(e.CSRRead(0x140)))
		})

		It("should do nothing without a loader", func() {
			s := load(`x = 1`)
			Expect(s.HasLoader()).To(BeFalse())
			Expect(s.RunLoader()).To(Succeed())
			Expect(s.Hook()).To(BeNil())
		})

		DescribeTable("should surface errors raised by the machine context",
			func(body string) {
				s := load("function loader(rv)\n" + body + "\nend\n")
				Expect(s.RunLoader()).To(MatchError(ContainSubstring("test.lua: loader")))
			},
			Entry("unmapped read", `rv:read(0x1000)`),
			Entry("unmapped write", `rv:write(0x1000, 1)`),
			Entry("bad access size", `rv:read(0x80000000, 3)`),
			Entry("register index", `rv:reg(32)`),
			Entry("oversized value", `rv:set_pc(0x100000000)`),
			Entry("csr address", `rv:csr(0x1000)`),
			Entry("missing image", `rv:load("/nonexistent/code.img", 0x80000000)`),
			Entry("missing elf", `rv:load_elf("/nonexistent/prog.elf")`),
		)
	})

	Describe("on_instruction", func() {
		BeforeEach(func() {
			for i := uint32(0); i < 4; i++ {
				word := insts.EncodeI(insts.OpcodeOpImm, 1, 0, 1, 1)
				Expect(b.Write32(ramBase+4*i, word)).To(Succeed())
			}
		})

		It("should stop the run when it returns false", func() {
			s := load(`
function on_instruction(rv, n)
  if n == 2 then
    return false
  end
end
`)
			e.SetHook(s.Hook())

			_, err := e.Run(context.Background())

			Expect(err).To(MatchError(script.ErrStopped))
			Expect(e.InstructionCount()).To(Equal(uint64(2)))
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(2)))
		})

		It("should see the machine state before each instruction", func() {
			s := load(`
function on_instruction(rv, n)
  rv:set_reg(2, rv:pc())
  rv:set_reg(3, rv:count())
end
`)
			e.SetHook(s.Hook())

			for i := 0; i < 3; i++ {
				Expect(e.Step().Err).NotTo(HaveOccurred())
			}

			Expect(e.RegFile().ReadReg(2)).To(Equal(ramBase + 8))
			Expect(e.RegFile().ReadReg(3)).To(Equal(uint32(2)))
		})

		It("should report Lua errors with the hook name", func() {
			s := load(`
function on_instruction(rv, n)
  error("boom")
end
`)
			e.SetHook(s.Hook())

			res := e.Step()
			Expect(res.Err).To(MatchError(ContainSubstring("test.lua: on_instruction")))
			Expect(res.Err).To(MatchError(ContainSubstring("boom")))
			Expect(e.InstructionCount()).To(BeZero())
		})
	})

	It("should route rv:log to the logger", func() {
		var lines []string
		logger := funcr.New(func(prefix, args string) {
			lines = append(lines, args)
		}, funcr.Options{})

		s, err := script.LoadString("log.lua", `
function loader(rv)
  rv:log("hello")
end
`, e, script.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		Expect(s.RunLoader()).To(Succeed())
		Expect(lines).To(ConsistOf(ContainSubstring(`"msg"="hello"`)))
	})

	It("should reject syntax errors", func() {
		_, err := script.LoadString("bad.lua", "function (", e)
		Expect(err).To(MatchError(ContainSubstring("failed to load script bad.lua")))
	})

	It("should load scripts from files", func() {
		path := filepath.Join(GinkgoT().TempDir(), "boot.lua")
		Expect(os.WriteFile(path, []byte("function loader(rv) rv:set_reg(1, 7) end\n"), 0o644)).To(Succeed())

		s, err := script.Load(path, e)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		Expect(s.RunLoader()).To(Succeed())
		Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(7)))
	})

	It("should report missing files", func() {
		_, err := script.Load(filepath.Join(GinkgoT().TempDir(), "none.lua"), e)
		Expect(err).To(MatchError(ContainSubstring("failed to load script")))
	})
})
