// access.go - Linear and physical byte-level access API
//
// License: GPLv3 or later
//
// The CPU's TLB fast path is out of scope for this package; these entry
// points resolve through GetHandler on every call, which is the "on
// miss" path a TLB would otherwise wrap.

package pcmem

// ReadB reads one byte at the given physical address.
func (m *MemoryState) ReadB(addr uint64) uint8 {
	return m.GetHandler(uint32(addr>>PageShift)).ReadB(addr)
}

// ReadW reads two bytes (little-endian) at the given physical address.
// The access may straddle a page boundary; each byte is resolved
// independently since handlers address by absolute physical address.
func (m *MemoryState) ReadW(addr uint64) uint16 {
	if addr&(PageSize-1) == PageSize-1 {
		return uint16(m.ReadB(addr)) | uint16(m.ReadB(addr+1))<<8
	}
	return m.GetHandler(uint32(addr>>PageShift)).ReadW(addr)
}

// ReadD reads four bytes (little-endian) at the given physical address.
func (m *MemoryState) ReadD(addr uint64) uint32 {
	if addr&(PageSize-1) > PageSize-4 {
		return uint32(m.ReadB(addr)) | uint32(m.ReadB(addr+1))<<8 |
			uint32(m.ReadB(addr+2))<<16 | uint32(m.ReadB(addr+3))<<24
	}
	return m.GetHandler(uint32(addr>>PageShift)).ReadD(addr)
}

// WriteB writes one byte at the given physical address.
func (m *MemoryState) WriteB(addr uint64, v uint8) {
	m.GetHandler(uint32(addr >> PageShift)).WriteB(addr, v)
}

// WriteW writes two bytes (little-endian) at the given physical address.
func (m *MemoryState) WriteW(addr uint64, v uint16) {
	if addr&(PageSize-1) == PageSize-1 {
		m.WriteB(addr, uint8(v))
		m.WriteB(addr+1, uint8(v>>8))
		return
	}
	m.GetHandler(uint32(addr >> PageShift)).WriteW(addr, v)
}

// WriteD writes four bytes (little-endian) at the given physical address.
func (m *MemoryState) WriteD(addr uint64, v uint32) {
	if addr&(PageSize-1) > PageSize-4 {
		m.WriteB(addr, uint8(v))
		m.WriteB(addr+1, uint8(v>>8))
		m.WriteB(addr+2, uint8(v>>16))
		m.WriteB(addr+3, uint8(v>>24))
		return
	}
	m.GetHandler(uint32(addr >> PageShift)).WriteD(addr, v)
}

// hostArrayFor returns the backing array a handler's HostReadPtr/
// HostWritePtr offset indexes into. Every stock handler except
// Mem4GBHandler shares the sub-4GB array; Mem4GBHandler addresses the
// separate above-4GB array instead.
func (m *MemoryState) hostArrayFor(h PageHandler) []byte {
	if h == m.stock.mem4gb {
		return m.host.base4GB
	}
	return m.host.base
}

// BlockRead copies len(dst) bytes starting at addr into dst, splitting on
// 4KiB boundaries and using each page's host-pointer fast path when the
// handler exposes one, falling back to byte-at-a-time otherwise.
func (m *MemoryState) BlockRead(addr uint64, dst []byte) {
	for len(dst) > 0 {
		ppn := uint32(addr >> PageShift)
		within := uint32(addr & (PageSize - 1))
		chunk := uint32(PageSize) - within
		if chunk > uint32(len(dst)) {
			chunk = uint32(len(dst))
		}

		h := m.GetHandler(ppn)
		if off, ok := h.HostReadPtr(ppn); ok {
			b := m.hostArrayFor(h)
			copy(dst[:chunk], b[off+int(within):off+int(within)+int(chunk)])
		} else {
			for i := uint32(0); i < chunk; i++ {
				dst[i] = h.ReadB(addr + uint64(i))
			}
		}

		addr += uint64(chunk)
		dst = dst[chunk:]
	}
}

// BlockWrite is the write-side analogue of BlockRead.
func (m *MemoryState) BlockWrite(addr uint64, src []byte) {
	for len(src) > 0 {
		ppn := uint32(addr >> PageShift)
		within := uint32(addr & (PageSize - 1))
		chunk := uint32(PageSize) - within
		if chunk > uint32(len(src)) {
			chunk = uint32(len(src))
		}

		h := m.GetHandler(ppn)
		if off, ok := h.HostWritePtr(ppn); ok {
			b := m.hostArrayFor(h)
			copy(b[off+int(within):off+int(within)+int(chunk)], src[:chunk])
		} else {
			for i := uint32(0); i < chunk; i++ {
				h.WriteB(addr+uint64(i), src[i])
			}
		}

		addr += uint64(chunk)
		src = src[chunk:]
	}
}

// PhysReadB/PhysWriteB are the "physical" access variants: identical to
// ReadB/WriteB in this package since the TLB shortcut they normally skip
// lives in the CPU core, out of scope here. They exist as a distinct name
// so callers document intent (bypassing TLB state) even though the
// implementation converges.
func (m *MemoryState) PhysReadB(addr uint64) uint8     { return m.ReadB(addr) }
func (m *MemoryState) PhysWriteB(addr uint64, v uint8) { m.WriteB(addr, v) }

// PhysDevReadB/PhysDevWriteB are the device-bypass variants: like
// PhysReadB/WriteB, but they resolve the handler from the raw ppn without
// consulting the LFB override, for device code that must see the
// underlying table entry rather than a static override.
func (m *MemoryState) PhysDevReadB(addr uint64) uint8 {
	return m.tableHandler(uint32(addr >> PageShift)).ReadB(addr)
}

func (m *MemoryState) PhysDevWriteB(addr uint64, v uint8) {
	m.tableHandler(uint32(addr >> PageShift)).WriteB(addr, v)
}

// tableHandler resolves ppn through the cache/slow-path only, skipping
// the LFB static override.
func (m *MemoryState) tableHandler(ppn uint32) PageHandler {
	if ppn >= mem4GBBase {
		if ppn < mem4GBBase+m.reportedPages4GB {
			return m.stock.mem4gb
		}
		return m.stock.illegal
	}

	ppn &= m.aliasPagemaskActive
	if ppn < m.handlerPages {
		if h := m.phandlers[ppn]; h != nil {
			return h
		}
		return m.slowPath(ppn)
	}
	return m.stock.illegal
}
