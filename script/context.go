package script

import (
	"encoding/binary"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/sarchlab/rv32sim/loader"
)

// newContext builds the rv table handed to every hook.
func (s *Script) newContext() *lua.LTable {
	t := s.state.NewTable()
	s.state.SetFuncs(t, map[string]lua.LGFunction{
		"pc":       s.luaPC,
		"set_pc":   s.luaSetPC,
		"reg":      s.luaReg,
		"set_reg":  s.luaSetReg,
		"csr":      s.luaCSR,
		"count":    s.luaCount,
		"read":     s.luaRead,
		"write":    s.luaWrite,
		"load":     s.luaLoad,
		"load_elf": s.luaLoadELF,
		"log":      s.luaLog,
	})
	return t
}

// Every function takes the context table as its first argument so that
// scripts may call them either as rv.f(rv, ...) or rv:f(...).

func (s *Script) luaPC(L *lua.LState) int {
	L.Push(lua.LNumber(s.emu.PC()))
	return 1
}

func (s *Script) luaSetPC(L *lua.LState) int {
	s.emu.SetPC(checkWord(L, 2))
	return 0
}

func (s *Script) luaReg(L *lua.LState) int {
	L.Push(lua.LNumber(s.emu.RegFile().ReadReg(checkReg(L, 2))))
	return 1
}

func (s *Script) luaSetReg(L *lua.LState) int {
	s.emu.RegFile().WriteReg(checkReg(L, 2), checkWord(L, 3))
	return 0
}

func (s *Script) luaCSR(L *lua.LState) int {
	addr := L.CheckInt(2)
	if addr < 0 || addr > 0xFFF {
		L.ArgError(2, "csr address out of range")
	}
	L.Push(lua.LNumber(s.emu.CSRRead(uint32(addr))))
	return 1
}

func (s *Script) luaCount(L *lua.LState) int {
	L.Push(lua.LNumber(s.emu.InstructionCount()))
	return 1
}

// read(addr, size) returns an unsigned little-endian value of 1, 2 or 4
// bytes.
func (s *Script) luaRead(L *lua.LState) int {
	addr := checkWord(L, 2)
	size := L.OptInt(3, 4)

	buf, err := accessSize(size)
	if err != nil {
		L.ArgError(3, err.Error())
	}
	if err := s.emu.Bus().Read(addr, buf); err != nil {
		L.RaiseError("read 0x%08x: %v", addr, err)
	}

	L.Push(lua.LNumber(decodeLE(buf)))
	return 1
}

// write(addr, value, size) stores value as 1, 2 or 4 little-endian bytes.
func (s *Script) luaWrite(L *lua.LState) int {
	addr := checkWord(L, 2)
	value := checkWord(L, 3)
	size := L.OptInt(4, 4)

	buf, err := accessSize(size)
	if err != nil {
		L.ArgError(4, err.Error())
	}
	encodeLE(buf, value)
	if err := s.emu.Bus().Write(addr, buf); err != nil {
		L.RaiseError("write 0x%08x: %v", addr, err)
	}
	return 0
}

// load(path, addr, reverse) copies a raw image into memory and returns its
// length.
func (s *Script) luaLoad(L *lua.LState) int {
	path := L.CheckString(2)
	addr := checkWord(L, 3)
	reverse := L.OptBool(4, false)

	data, err := loader.ReadImage(path, reverse)
	if err != nil {
		L.RaiseError("%v", err)
	}
	if err := s.emu.Bus().Write(addr, data); err != nil {
		L.RaiseError("load %s at 0x%08x: %v", path, addr, err)
	}

	L.Push(lua.LNumber(len(data)))
	return 1
}

// load_elf(path) loads an RV32 executable and points the PC at its entry.
func (s *Script) luaLoadELF(L *lua.LState) int {
	path := L.CheckString(2)

	prog, err := loader.Load(path)
	if err != nil {
		L.RaiseError("%v", err)
	}
	if err := prog.Boot(s.emu, s.emu.Bus()); err != nil {
		L.RaiseError("%v", err)
	}

	L.Push(lua.LNumber(prog.EntryPoint))
	return 1
}

func (s *Script) luaLog(L *lua.LState) int {
	s.logger.Info(L.CheckString(2), "script", s.name)
	return 0
}

func checkWord(L *lua.LState, n int) uint32 {
	v := int64(L.CheckNumber(n))
	if v < -(1<<31) || v > 0xFFFFFFFF {
		L.ArgError(n, "value does not fit 32 bits")
	}
	return uint32(v)
}

func checkReg(L *lua.LState, n int) uint8 {
	r := L.CheckInt(n)
	if r < 0 || r > 31 {
		L.ArgError(n, "register index out of range")
	}
	return uint8(r)
}

func accessSize(size int) ([]byte, error) {
	switch size {
	case 1, 2, 4:
		return make([]byte, size), nil
	}
	return nil, fmt.Errorf("access size must be 1, 2 or 4")
}

func decodeLE(buf []byte) uint32 {
	switch len(buf) {
	case 1:
		return uint32(buf[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(buf))
	}
	return binary.LittleEndian.Uint32(buf)
}

func encodeLE(buf []byte, v uint32) {
	switch len(buf) {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	default:
		binary.LittleEndian.PutUint32(buf, v)
	}
}
