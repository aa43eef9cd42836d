// handler_rom.go - ROM and ROM-alias page handlers
//
// License: GPLv3 or later

package pcmem

// ROMHandler reads like RAM (the backing bytes are loaded externally by
// BIOS/ROM-image setup) and drops writes with a warning, except the
// PC-98 quirk: many programs unconditionally zero 0xE0000-0xE7FFF
// whether or not the 4th bit-plane is actually mapped there, so that
// range is silently dropped instead of logged.
type ROMHandler struct {
	state *MemoryState
	pc98  bool
}

func (h *ROMHandler) Flags() HandlerFlags { return FlagReadable | FlagHasROM }

func (h *ROMHandler) ramView() *RAMHandler { return h.state.stock.ram }

func (h *ROMHandler) HostReadPtr(ppn uint32) (int, bool) { return h.ramView().HostReadPtr(ppn) }
func (h *ROMHandler) HostWritePtr(uint32) (int, bool)    { return 0, false }

func (h *ROMHandler) ReadB(addr uint64) uint8  { return h.ramView().ReadB(addr) }
func (h *ROMHandler) ReadW(addr uint64) uint16 { return h.ramView().ReadW(addr) }
func (h *ROMHandler) ReadD(addr uint64) uint32 { return h.ramView().ReadD(addr) }

func (h *ROMHandler) isPC98E0000Quirk(addr uint64) bool {
	return h.pc98 && (addr&^0x7FFF) == 0xE0000
}

func (h *ROMHandler) WriteB(addr uint64, v uint8) {
	if h.isPC98E0000Quirk(addr) {
		return
	}
	h.state.logger.Warnf("write %#x to ROM at phys=%#x", v, addr)
}

func (h *ROMHandler) WriteW(addr uint64, v uint16) {
	if h.isPC98E0000Quirk(addr) {
		return
	}
	h.state.logger.Warnf("write %#x to ROM at phys=%#x", v, addr)
}

func (h *ROMHandler) WriteD(addr uint64, v uint32) {
	if h.isPC98E0000Quirk(addr) {
		return
	}
	h.state.logger.Warnf("write %#x to ROM at phys=%#x", v, addr)
}

// ROMAliasHandler mirrors the top 64KB of the 1MB window (pages 0xF0-0xFF)
// regardless of the PPN accessed.
type ROMAliasHandler struct {
	state *MemoryState
}

func (h *ROMAliasHandler) Flags() HandlerFlags { return FlagReadable | FlagHasROM }

func (h *ROMAliasHandler) aliasedPage(ppn uint32) uint32 { return (ppn & 0xF) + 0xF0 }

func (h *ROMAliasHandler) HostReadPtr(ppn uint32) (int, bool) {
	return int(h.aliasedPage(ppn)) * PageSize, true
}
func (h *ROMAliasHandler) HostWritePtr(uint32) (int, bool) { return 0, false }

func (h *ROMAliasHandler) byteOffset(addr uint64) int {
	ppn := uint32(addr >> PageShift)
	within := addr & (PageSize - 1)
	return int(h.aliasedPage(ppn))*PageSize + int(within)
}

func (h *ROMAliasHandler) ReadB(addr uint64) uint8 {
	return h.state.host.base[h.byteOffset(addr)]
}
func (h *ROMAliasHandler) ReadW(addr uint64) uint16 {
	off := h.byteOffset(addr)
	b := h.state.host.base
	return uint16(b[off]) | uint16(b[off+1])<<8
}
func (h *ROMAliasHandler) ReadD(addr uint64) uint32 {
	off := h.byteOffset(addr)
	b := h.state.host.base
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func (h *ROMAliasHandler) WriteB(addr uint64, v uint8) {
	h.state.logger.Warnf("write %#x to ROM alias at phys=%#x", v, addr)
}
func (h *ROMAliasHandler) WriteW(addr uint64, v uint16) {
	h.state.logger.Warnf("write %#x to ROM alias at phys=%#x", v, addr)
}
func (h *ROMAliasHandler) WriteD(addr uint64, v uint32) {
	h.state.logger.Warnf("write %#x to ROM alias at phys=%#x", v, addr)
}
