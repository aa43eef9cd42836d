// ems_allocator.go - EMS/XMS linked-list page allocator
//
// License: GPLv3 or later
//
// Operates over mhandles[XMSStart:reportedPages] as a singly-linked free
// list: 0 marks a free page, -1 marks the end of an allocation's chain,
// and any other value is the index of the chain's next page.

package pcmem

// FreeTotal returns the count of free pages in the allocator's range.
func (m *MemoryState) FreeTotal() uint32 {
	var n uint32
	for p := uint32(XMSStart); p < m.reportedPages; p++ {
		if m.mhandles[p] == HandlerFree {
			n++
		}
	}
	return n
}

// FreeLargest returns the length of the longest contiguous run of free
// pages in the allocator's range.
func (m *MemoryState) FreeLargest() uint32 {
	var best, run uint32
	for p := uint32(XMSStart); p < m.reportedPages; p++ {
		if m.mhandles[p] == HandlerFree {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return best
}

// bestFit scans for the smallest free run that is at least n pages long
// and returns its first page, or 0 if none exists.
func (m *MemoryState) bestFit(n uint32, a20Friendly bool) uint32 {
	var bestStart, bestLen uint32
	var runStart, runLen uint32
	inRun := false

	flush := func(p uint32) {
		if inRun && runLen >= n && (bestLen == 0 || runLen < bestLen) {
			bestStart, bestLen = runStart, runLen
		}
		inRun, runLen = false, 0
		_ = p
	}

	for p := uint32(XMSStart); p < m.reportedPages; p++ {
		if a20Friendly && p&0x100 != 0 {
			flush(p)
			continue
		}
		if m.mhandles[p] == HandlerFree {
			if !inRun {
				inRun, runStart, runLen = true, p, 0
			}
			runLen++
		} else {
			flush(p)
		}
	}
	flush(m.reportedPages)

	return bestStart
}

// threadChain links n pages starting at start into a chain terminated by
// HandlerEnd.
func (m *MemoryState) threadChain(start, n uint32) {
	for i := uint32(0); i < n; i++ {
		p := start + i
		if i == n-1 {
			m.mhandles[p] = HandlerEnd
		} else {
			m.mhandles[p] = MemHandle(start + i + 1)
		}
	}
}

// AllocatePages allocates n pages: sequence=true uses best-fit over a
// single run; sequence=false gathers n free pages from
// wherever they are and threads them into one chain. Returns 0 on failure.
func (m *MemoryState) AllocatePages(n uint32, sequence bool) uint32 {
	return m.allocate(n, sequence, false)
}

// AllocatePagesA20Friendly is the A20-friendly variant: no page in the
// returned chain has bit 0x100 set. Fails (returns 0) if n > 0x100.
func (m *MemoryState) AllocatePagesA20Friendly(n uint32, sequence bool) uint32 {
	if n > 0x100 {
		return 0
	}
	return m.allocate(n, sequence, true)
}

func (m *MemoryState) allocate(n uint32, sequence, a20Friendly bool) uint32 {
	if n == 0 {
		return 0
	}

	if sequence {
		start := m.bestFit(n, a20Friendly)
		if start == 0 {
			return 0
		}
		m.threadChain(start, n)
		return start
	}

	if m.FreeTotal() < n {
		return 0
	}

	var pages []uint32
	for p := uint32(XMSStart); p < m.reportedPages && uint32(len(pages)) < n; p++ {
		if a20Friendly && p&0x100 != 0 {
			continue
		}
		if m.mhandles[p] == HandlerFree {
			pages = append(pages, p)
		}
	}
	if uint32(len(pages)) < n {
		return 0
	}
	for i, p := range pages {
		if i == len(pages)-1 {
			m.mhandles[p] = HandlerEnd
		} else {
			m.mhandles[p] = MemHandle(pages[i+1])
		}
	}
	return pages[0]
}

// chainPages returns every page number on handle's chain, in order.
func (m *MemoryState) chainPages(handle uint32) []uint32 {
	var pages []uint32
	p := handle
	for {
		pages = append(pages, p)
		next := m.mhandles[p]
		if next == HandlerEnd {
			break
		}
		if next <= HandlerFree {
			break
		}
		p = uint32(next)
	}
	return pages
}

// ReleasePages walks handle's chain and zeroes every mhandles entry on it.
func (m *MemoryState) ReleasePages(handle uint32) {
	if handle == 0 {
		return
	}
	for _, p := range m.chainPages(handle) {
		m.mhandles[p] = HandlerFree
	}
}

// ReAllocatePages resizes an existing allocation: shrink truncates
// the chain in place; sequential growth extends in place when the
// immediately-following pages are free, else allocates a fresh chain and
// copies the old pages' contents before releasing them; non-sequential
// growth splices freshly allocated pages onto the tail.
func (m *MemoryState) ReAllocatePages(handle, n uint32, sequence bool) uint32 {
	if handle == 0 {
		return m.allocate(n, sequence, false)
	}

	pages := m.chainPages(handle)
	cur := uint32(len(pages))

	if n == cur {
		return handle
	}

	if n < cur {
		m.mhandles[pages[n-1]] = HandlerEnd
		for _, p := range pages[n:] {
			m.mhandles[p] = HandlerFree
		}
		return handle
	}

	extra := n - cur
	if sequence {
		last := pages[len(pages)-1]
		if m.freeRunFrom(last+1, extra) {
			m.threadChain(last+1, extra)
			m.mhandles[last] = MemHandle(last + 1)
			return handle
		}

		fresh := m.bestFit(n, false)
		if fresh == 0 {
			return 0
		}
		m.threadChain(fresh, n)
		freshPages := m.chainPages(fresh)
		for i, p := range pages {
			copy(m.pageBytes(freshPages[i]), m.pageBytes(p))
		}
		m.ReleasePages(handle)
		return fresh
	}

	extraStart := m.allocate(extra, false, false)
	if extraStart == 0 {
		return 0
	}
	m.mhandles[pages[len(pages)-1]] = MemHandle(extraStart)
	return handle
}

// freeRunFrom reports whether n consecutive pages starting at p are all free.
func (m *MemoryState) freeRunFrom(p, n uint32) bool {
	if p+n > m.reportedPages {
		return false
	}
	for i := uint32(0); i < n; i++ {
		if m.mhandles[p+i] != HandlerFree {
			return false
		}
	}
	return true
}

func (m *MemoryState) pageBytes(p uint32) []byte {
	off := int(p) * PageSize
	return m.host.base[off : off+PageSize]
}
