// handler_ram.go - RAM page handler
//
// License: GPLv3 or later

package pcmem

// RAMHandler serves ordinary guest RAM. Its host-pointer fast path folds
// in the active alias mask, except when A20 "fast" mode is in effect and
// the page falls outside the [0x100, 0x10F] 1MB mirror window: fast mode
// defers the masking to this per-access check instead of a TLB flush on
// every A20 toggle.
type RAMHandler struct {
	state *MemoryState
}

func (h *RAMHandler) Flags() HandlerFlags { return FlagReadable | FlagWriteable }

func (h *RAMHandler) hostPage(ppn uint32) uint32 {
	fast := h.state.a20.fastChange
	mirror := (ppn &^ 0xF) == 0x100
	if !fast || mirror {
		return ppn & h.state.aliasPagemaskActive
	}
	return ppn
}

func (h *RAMHandler) HostReadPtr(ppn uint32) (int, bool) {
	return int(h.hostPage(ppn)) * PageSize, true
}

func (h *RAMHandler) HostWritePtr(ppn uint32) (int, bool) {
	return int(h.hostPage(ppn)) * PageSize, true
}

func (h *RAMHandler) ReadB(addr uint64) uint8 {
	off := h.byteOffset(addr)
	return h.state.host.base[off]
}

func (h *RAMHandler) ReadW(addr uint64) uint16 {
	off := h.byteOffset(addr)
	b := h.state.host.base
	return uint16(b[off]) | uint16(b[off+1])<<8
}

func (h *RAMHandler) ReadD(addr uint64) uint32 {
	off := h.byteOffset(addr)
	b := h.state.host.base
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func (h *RAMHandler) WriteB(addr uint64, v uint8) {
	h.state.host.base[h.byteOffset(addr)] = v
}

func (h *RAMHandler) WriteW(addr uint64, v uint16) {
	off := h.byteOffset(addr)
	b := h.state.host.base
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

func (h *RAMHandler) WriteD(addr uint64, v uint32) {
	off := h.byteOffset(addr)
	b := h.state.host.base
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

// byteOffset maps a physical byte address to a host offset by routing
// its page number through the same aliasing rule as the host-pointer path.
func (h *RAMHandler) byteOffset(addr uint64) int {
	ppn := uint32(addr >> PageShift)
	within := addr & (PageSize - 1)
	return int(h.hostPage(ppn))*PageSize + int(within)
}
