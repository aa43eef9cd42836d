// lua_callout.go - Scriptable callout handler backed by an embedded Lua VM
//
// License: GPLv3 or later
//
// Lets a toy ISA/PCI device's page ownership and byte semantics be
// described in a script instead of Go, for test and tool use. Installed
// through the ordinary Install/Uninstall path, not a privileged special
// case.

package pcmem

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// LuaCalloutHandler wraps a Lua script exposing three globals:
//
//	match(page)             -> boolean
//	read(addr, width)       -> integer
//	write(addr, width, val)
//
// width is always 1, 2, or 4 (bytes). The handler has no host-pointer
// fast path; every access round-trips through the VM.
type LuaCalloutHandler struct {
	state  *MemoryState
	vm     *lua.LState
	script string
}

// NewLuaCalloutHandler compiles script into a fresh Lua VM. The VM is
// owned by the returned handler and must be closed with Close.
func NewLuaCalloutHandler(state *MemoryState, script string) (*LuaCalloutHandler, error) {
	vm := lua.NewState()
	if err := vm.DoString(script); err != nil {
		vm.Close()
		return nil, fmt.Errorf("pcmem: compiling callout script: %w", err)
	}
	return &LuaCalloutHandler{state: state, vm: vm, script: script}, nil
}

// Close releases the Lua VM. The handler must not be used afterward.
func (h *LuaCalloutHandler) Close() { h.vm.Close() }

// AsCalloutFunc adapts the handler's match() global into a CalloutFunc
// suitable for InstallCallout.
func (h *LuaCalloutHandler) AsCalloutFunc() CalloutFunc {
	return func(ppn uint32) PageHandler {
		if h.matches(ppn) {
			return h
		}
		return nil
	}
}

func (h *LuaCalloutHandler) matches(ppn uint32) bool {
	fn := h.vm.GetGlobal("match")
	if fn.Type() != lua.LTFunction {
		return false
	}
	if err := h.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LNumber(ppn)); err != nil {
		h.state.logger.Warnf("callout script match() error: %v", err)
		return false
	}
	ret := h.vm.Get(-1)
	h.vm.Pop(1)
	return lua.LVAsBool(ret)
}

func (h *LuaCalloutHandler) call(fname string, args ...lua.LValue) lua.LValue {
	fn := h.vm.GetGlobal(fname)
	if fn.Type() != lua.LTFunction {
		return lua.LNil
	}
	if err := h.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		h.state.logger.Warnf("callout script %s() error: %v", fname, err)
		return lua.LNil
	}
	ret := h.vm.Get(-1)
	h.vm.Pop(1)
	return ret
}

func (h *LuaCalloutHandler) Flags() HandlerFlags { return FlagReadable | FlagWriteable }

func (h *LuaCalloutHandler) HostReadPtr(uint32) (int, bool)  { return 0, false }
func (h *LuaCalloutHandler) HostWritePtr(uint32) (int, bool) { return 0, false }

func (h *LuaCalloutHandler) ReadB(addr uint64) uint8 {
	return uint8(lua.LVAsNumber(h.call("read", lua.LNumber(addr), lua.LNumber(1))))
}
func (h *LuaCalloutHandler) ReadW(addr uint64) uint16 {
	return uint16(lua.LVAsNumber(h.call("read", lua.LNumber(addr), lua.LNumber(2))))
}
func (h *LuaCalloutHandler) ReadD(addr uint64) uint32 {
	return uint32(lua.LVAsNumber(h.call("read", lua.LNumber(addr), lua.LNumber(4))))
}

func (h *LuaCalloutHandler) WriteB(addr uint64, v uint8) {
	h.call("write", lua.LNumber(addr), lua.LNumber(1), lua.LNumber(v))
}
func (h *LuaCalloutHandler) WriteW(addr uint64, v uint16) {
	h.call("write", lua.LNumber(addr), lua.LNumber(2), lua.LNumber(v))
}
func (h *LuaCalloutHandler) WriteD(addr uint64, v uint32) {
	h.call("write", lua.LNumber(addr), lua.LNumber(4), lua.LNumber(v))
}
