// mapping.go - Mapping facade: RAM/ROM ranges, LFB install, hw-address assigner
//
// License: GPLv3 or later

package pcmem

import "fmt"

// overridable reports whether existing is a handler that map/unmap calls
// may freely replace: null, Illegal, Unmapped, or one of the stock
// RAM/ROM/ROMAlias handlers. Anything else is owned by a device and must
// be unmapped through its own teardown path first.
func (m *MemoryState) overridable(existing PageHandler) bool {
	switch existing {
	case nil, m.stock.illegal, m.stock.unmapped, m.stock.ram, m.stock.rom, m.stock.romAlias:
		return true
	default:
		return false
	}
}

func (m *MemoryState) checkRange(start, end uint32) error {
	if end <= start {
		return fmt.Errorf("pcmem: empty or inverted range [%#x, %#x)", start, end)
	}
	if end > m.handlerPages {
		return fmt.Errorf("%w: [%#x, %#x) exceeds handler table of %#x pages", ErrRangeUnavailable, start, end, m.handlerPages)
	}
	for p := start; p < end; p++ {
		if !m.overridable(m.phandlers[p]) {
			return fmt.Errorf("%w: page %#x already owned by a non-stock handler", ErrRangeUnavailable, p)
		}
	}
	return nil
}

// Unmap installs the stock Unmapped handler over [start, end).
func (m *MemoryState) Unmap(start, end uint32) error {
	if err := m.checkRange(start, end); err != nil {
		return err
	}
	m.SetRange(start, end-start, m.stock.unmapped)
	return nil
}

// MapRAM installs the stock RAM handler over [start, end).
func (m *MemoryState) MapRAM(start, end uint32) error {
	if err := m.checkRange(start, end); err != nil {
		return err
	}
	m.SetRange(start, end-start, m.stock.ram)
	return nil
}

// MapROM installs the stock ROM handler over [start, end).
func (m *MemoryState) MapROM(start, end uint32) error {
	if err := m.checkRange(start, end); err != nil {
		return err
	}
	m.SetRange(start, end-start, m.stock.rom)
	return nil
}

// MapROMAlias installs the stock ROMAlias handler over [start, end).
func (m *MemoryState) MapROMAlias(start, end uint32) error {
	if err := m.checkRange(start, end); err != nil {
		return err
	}
	m.SetRange(start, end-start, m.stock.romAlias)
	return nil
}

const lfbMMIOOffsetPages = 0x1000 // +16MiB, in pages
const lfbMMIOPages = 16

// SetLFB installs (or, with pages==0, tears down) the linear-framebuffer
// window and its optional MMIO companion, and registers PCI callout
// objects (ISA on systems without a PCI bus) covering power-of-two
// rounded ranges so the slow path serves them after the cache is
// invalidated.
func (m *MemoryState) SetLFB(page, pages uint32, handler, mmioHandler PageHandler) error {
	bus := busPCI
	if !m.callout.hasPCI {
		bus = busISA
	}
	if m.lfb.handler != nil {
		m.UninstallCallout(m.lfb.callout)
		m.lfb = lfbWindow{}
	}
	if m.lfbMMIO.handler != nil {
		m.UninstallCallout(m.lfbMMIO.callout)
		m.lfbMMIO = lfbWindow{}
	}
	m.invalidateHandlerCache()
	m.tlbFlush()

	if pages == 0 || handler == nil {
		return nil
	}

	memMask, err := m.rangeCoveringMask(pages)
	if err != nil {
		return fmt.Errorf("pcmem: LFB size %#x pages: %w", pages, err)
	}

	lfbFn := func(ppn uint32) PageHandler {
		if ppn >= page && ppn < page+pages {
			return handler
		}
		return nil
	}
	h, err := m.InstallCallout(bus, page, memMask, lfbFn)
	if err != nil {
		return err
	}
	m.lfb = lfbWindow{startPage: page, endPage: page + pages, pages: pages, handler: handler, callout: h}

	if mmioHandler != nil {
		mmioBase := page + lfbMMIOOffsetPages
		mmioFn := func(ppn uint32) PageHandler {
			if ppn >= mmioBase && ppn < mmioBase+lfbMMIOPages {
				return mmioHandler
			}
			return nil
		}
		mmioMask, err := m.rangeCoveringMask(lfbMMIOPages)
		if err != nil {
			return err
		}
		hm, err := m.InstallCallout(bus, mmioBase, mmioMask, mmioFn)
		if err != nil {
			return err
		}
		m.lfbMMIO = lfbWindow{startPage: mmioBase, endPage: mmioBase + lfbMMIOPages, pages: lfbMMIOPages, handler: mmioHandler, callout: hm}
	}

	return nil
}

// rangeCoveringMask returns a mem_mask that decodes to a range_mask
// covering at least n pages (rounded up to the next power of two) and an
// alias_mask spanning the whole address space, so the installed callout
// claims its window exactly once with no periodic repeat.
func (m *MemoryState) rangeCoveringMask(n uint32) (uint32, error) {
	if n == 0 {
		return 0, fmt.Errorf("page count %#x out of range", n)
	}
	size := uint32(1)
	for size < n {
		size <<= 1
	}
	if size-1 > m.aliasPagemask {
		return 0, fmt.Errorf("page count %#x exceeds the addressable page range", n)
	}
	return m.aliasPagemask &^ (size - 1), nil
}

// HardwareAllocate advances the hardware-address cursor to a size-aligned
// boundary, reserves size bytes, and returns the base. size must be a
// power of 2; allocation fails if the cursor would cross hwAssignCeiling.
func (m *MemoryState) HardwareAllocate(name string, size uint32) (uint32, error) {
	if size == 0 || size&(size-1) != 0 {
		return 0, fmt.Errorf("pcmem: hardware allocation %q size %#x is not a power of 2", name, size)
	}
	base := (m.hwNextAssign + size - 1) &^ (size - 1)
	if base+size > hwAssignCeiling || base+size < base {
		return 0, fmt.Errorf("pcmem: hardware allocation %q of %#x bytes would cross %#x", name, size, hwAssignCeiling)
	}
	m.hwNextAssign = base + size
	return base, nil
}

// CutRAMUpTo lowers reportedPages so that guest RAM no longer extends past
// addr, nulling the cache over the vacated range so a subsequent ROM map
// can claim it.
func (m *MemoryState) CutRAMUpTo(addr uint32) {
	newCap := addr >> PageShift
	if newCap >= m.reportedPages {
		return
	}
	m.SetRange(newCap, m.reportedPages-newCap, nil)
	m.reportedPages = newCap
}
