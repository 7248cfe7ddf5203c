// Package script runs Lua boot scripts against an emulator.
//
// A script may define two global functions:
//
//	function loader(rv) ... end           -- called once before the run
//	function on_instruction(rv, n) ... end -- called before each instruction
//
// Both receive the machine context table rv. on_instruction may return
// false to stop the run.
package script

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	lua "github.com/yuin/gopher-lua"

	"github.com/sarchlab/rv32sim/emu"
)

// ErrStopped is returned by the hook when on_instruction returns false.
var ErrStopped = errors.New("stopped by script")

const (
	loaderFunc        = "loader"
	onInstructionFunc = "on_instruction"
)

// Script is a loaded Lua program bound to one emulator.
type Script struct {
	name   string
	state  *lua.LState
	emu    *emu.Emulator
	logger logr.Logger
	ctx    *lua.LTable

	onInstruction *lua.LFunction
}

// Option configures a Script.
type Option func(*Script)

// WithLogger sets the logger behind rv.log.
func WithLogger(l logr.Logger) Option {
	return func(s *Script) {
		s.logger = l
	}
}

// Load reads and executes the Lua file at path, binding it to e.
func Load(path string, e *emu.Emulator, opts ...Option) (*Script, error) {
	s := newScript(path, e, opts...)
	if err := s.state.DoFile(path); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load script: %w", err)
	}
	s.bindHooks()
	return s, nil
}

// LoadString executes Lua source held in memory.
func LoadString(name, src string, e *emu.Emulator, opts ...Option) (*Script, error) {
	s := newScript(name, e, opts...)
	if err := s.state.DoString(src); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load script %s: %w", name, err)
	}
	s.bindHooks()
	return s, nil
}

func newScript(name string, e *emu.Emulator, opts ...Option) *Script {
	s := &Script{
		name:   name,
		state:  lua.NewState(),
		emu:    e,
		logger: logr.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.ctx = s.newContext()
	return s
}

func (s *Script) bindHooks() {
	if fn, ok := s.state.GetGlobal(onInstructionFunc).(*lua.LFunction); ok {
		s.onInstruction = fn
	}
}

// Close releases the Lua state.
func (s *Script) Close() {
	s.state.Close()
}

// HasLoader reports whether the script defines loader.
func (s *Script) HasLoader() bool {
	_, ok := s.state.GetGlobal(loaderFunc).(*lua.LFunction)
	return ok
}

// RunLoader calls loader(rv). It is a no-op when the script does not
// define one.
func (s *Script) RunLoader() error {
	fn, ok := s.state.GetGlobal(loaderFunc).(*lua.LFunction)
	if !ok {
		return nil
	}

	err := s.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, s.ctx)
	if err != nil {
		return fmt.Errorf("%s: loader: %w", s.name, err)
	}
	return nil
}

// Hook returns an emulator hook calling on_instruction(rv, n), or nil when
// the script does not define one.
func (s *Script) Hook() emu.Hook {
	if s.onInstruction == nil {
		return nil
	}

	return func(_ *emu.Emulator, n uint64) error {
		err := s.state.CallByParam(lua.P{
			Fn:      s.onInstruction,
			NRet:    1,
			Protect: true,
		}, s.ctx, lua.LNumber(n))
		if err != nil {
			return fmt.Errorf("%s: on_instruction: %w", s.name, err)
		}

		ret := s.state.Get(-1)
		s.state.Pop(1)
		if ret == lua.LFalse {
			return ErrStopped
		}
		return nil
	}
}
