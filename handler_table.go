// handler_table.go - Primary page-handler dispatch
//
// License: GPLv3 or later

package pcmem

// GetHandler resolves the handler for ppn: Mem4GB/Illegal first for any
// address at or above the 4GB line, then alias-masks the page and checks
// the LFB override, then the cache, falling through to the slow path on
// a cache miss and to Illegal outside the handler table's coverage.
func (m *MemoryState) GetHandler(ppn uint32) PageHandler {
	// The above-4GB region is checked against the raw ppn, ahead of the
	// alias mask: that mask models legacy low-memory address wrap and
	// must never fold a genuinely above-4GB address back into the table.
	if ppn >= mem4GBBase {
		if ppn < mem4GBBase+m.reportedPages4GB {
			return m.stock.mem4gb
		}
		return m.stock.illegal
	}

	ppn &= m.aliasPagemaskActive

	if h := m.lfbHandler(ppn); h != nil {
		return h
	}

	if ppn < m.handlerPages {
		if h := m.phandlers[ppn]; h != nil {
			return h
		}
		return m.slowPath(ppn)
	}

	return m.stock.illegal
}

// lfbHandler returns the registered LFB handler if ppn falls within the
// installed LFB or LFB-MMIO window; this is the one override with
// priority over the cached table.
func (m *MemoryState) lfbHandler(ppn uint32) PageHandler {
	if m.lfb.handler != nil && ppn >= m.lfb.startPage && ppn < m.lfb.endPage {
		return m.lfb.handler
	}
	if m.lfbMMIO.handler != nil && ppn >= m.lfbMMIO.startPage && ppn < m.lfbMMIO.endPage {
		return m.lfbMMIO.handler
	}
	return nil
}

// SetRange installs handler across [start, start+n) of the cached table
// and flushes the TLB.
func (m *MemoryState) SetRange(start, n uint32, handler PageHandler) {
	end := start + n
	if end > m.handlerPages {
		end = m.handlerPages
	}
	for p := start; p < end; p++ {
		m.phandlers[p] = handler
	}
	m.tlbFlush()
}

// ResetToRAM installs the stock RAM handler across [start, start+n).
func (m *MemoryState) ResetToRAM(start, n uint32) { m.SetRange(start, n, m.stock.ram) }

// ResetToUnmapped installs the stock Unmapped handler across [start, start+n).
func (m *MemoryState) ResetToUnmapped(start, n uint32) { m.SetRange(start, n, m.stock.unmapped) }

// Invalidate nulls the cache across [start, start+n), forcing the next
// access to each page through the slow path.
func (m *MemoryState) Invalidate(start, n uint32) { m.SetRange(start, n, nil) }
