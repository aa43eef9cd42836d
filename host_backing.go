// host_backing.go - Host memory backing the guest physical address space
//
// License: GPLv3 or later

package pcmem

import (
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// HostBacking owns the raw host byte arrays RAM/ROM page handlers index
// into. Sub-4GB RAM is always anonymous-mmap'd; the above-4GB extension
// must be file-backed, since the guest can legitimately address more
// than a single process's anonymous mapping budget on 32-bit hosts and
// a file gives the OS somewhere to page it.
type HostBacking struct {
	base    []byte // sub-4GB RAM, length pages*PageSize
	base4GB []byte // above-4GB RAM, length pages4GB*PageSize, may be nil

	file *os.File
}

func newHostBacking(cfg Config, pages, reportedPages, pages4GB uint32) (*HostBacking, error) {
	h := &HostBacking{}

	base, err := unix.Mmap(-1, 0, int(pages)*PageSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("pcmem: anonymous RAM mapping of %d pages: %w", pages, err)
	}
	h.base = base

	if pages4GB > 0 {
		f, err := os.OpenFile(cfg.MemoryFile, os.O_RDWR|os.O_CREATE, 0o600)
		if err != nil {
			unix.Munmap(h.base)
			return nil, fmt.Errorf("pcmem: opening above-4GB backing file %q: %w", cfg.MemoryFile, err)
		}
		size := int64(pages4GB) * PageSize
		if err := f.Truncate(size); err != nil {
			f.Close()
			unix.Munmap(h.base)
			return nil, fmt.Errorf("pcmem: sizing above-4GB backing file: %w", err)
		}
		base4GB, err := unix.Mmap(int(f.Fd()), 0, int(size),
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			unix.Munmap(h.base)
			return nil, fmt.Errorf("pcmem: mapping above-4GB backing file: %w", err)
		}
		h.base4GB = base4GB
		h.file = f
	}

	if err := h.fillInitial(reportedPages); err != nil {
		h.Close()
		return nil, err
	}

	return h, nil
}

// fillInitial applies the conventional-memory boot fill to base and a
// plain zero-fill to the above-4GB extension, in parallel; the two
// regions are independent allocations so there's no ordering dependency
// between them, and this is the one place in the package where
// concurrent work is worth the errgroup.
func (h *HostBacking) fillInitial(reportedPages uint32) error {
	var g errgroup.Group
	g.Go(func() error {
		fillConventionalRAM(h.base, reportedPages)
		return nil
	})
	if h.base4GB != nil {
		g.Go(func() error {
			zero(h.base4GB)
			return nil
		})
	}
	return g.Wait()
}

// fillConventionalRAM reproduces the boot-time fill pattern real BIOSes
// rely on floating-bus detection to see: the guest-visible pages are
// zeroed, any allocated-but-unreported tail floats high (0xFF), and so
// does the adapter ROM window 0xA0000-0xEFFFF pending device ROM
// registration, except the BIOS ROM alias window 0xF0000-0xFFFFF, which
// is zeroed so a ROM image load starts from a clean slate.
func fillConventionalRAM(b []byte, reportedPages uint32) {
	pages := uint32(len(b)) / PageSize
	reported := reportedPages
	if reported > pages {
		reported = pages
	}

	zero(b[:reported*PageSize])
	if reported < pages {
		fillByte(b[reported*PageSize:], 0xFF)
	}

	romStart, romEnd := clampPageRange(0xA0, 0xF0, pages)
	if romStart < romEnd {
		fillByte(b[romStart*PageSize:romEnd*PageSize], 0xFF)
	}

	aliasStart, aliasEnd := clampPageRange(0xF0, 0x100, pages)
	if aliasStart < aliasEnd {
		zero(b[aliasStart*PageSize : aliasEnd*PageSize])
	}
}

// clampPageRange bounds [start, end) page numbers to the array's actual
// page count.
func clampPageRange(start, end, pages uint32) (uint32, uint32) {
	if start > pages {
		start = pages
	}
	if end > pages {
		end = pages
	}
	return start, end
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func fillByte(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

// Close unmaps both regions and closes the backing file, if any.
func (h *HostBacking) Close() error {
	var firstErr error
	if h.base != nil {
		if err := unix.Munmap(h.base); err != nil && firstErr == nil {
			firstErr = err
		}
		h.base = nil
	}
	if h.base4GB != nil {
		if err := unix.Munmap(h.base4GB); err != nil && firstErr == nil {
			firstErr = err
		}
		h.base4GB = nil
	}
	if h.file != nil {
		if err := h.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.file = nil
	}
	return firstErr
}
