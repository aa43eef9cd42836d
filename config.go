// config.go - Configuration parsing and clamping for the pcmem subsystem
//
// License: GPLv3 or later

package pcmem

import "fmt"

// Archetype hints at the host CPU core's generation so MemAlias can be
// auto-selected when left at 0. The CPU core itself is out of scope for
// this package; callers that own CPU selection supply this.
type Archetype int

const (
	Archetype8086 Archetype = iota
	Archetype286
	Archetype386
	ArchetypePentiumII
)

// Config holds every configuration key the memory subsystem accepts.
type Config struct {
	MemSizeMB   int64  // "memsize" in MiB
	MemSizeKB   int64  // "memsizekb" in KiB, summed with MemSizeMB
	MemoryFile  string // "memory file"; backs only the above-4GB extension (RAM below 4GB is always anonymous-mapped)
	MemAlias    uint32 // "memalias" address bits; 0 selects auto
	A20Mode     A20Mode
	EnablePort92 bool
	Archetype   Archetype
	PC98        bool // selects PC-98 ROM write quirk and I/O ports

	// ISAMemoryHole15MB reserves the 15-16MB ISA memory hole.
	ISAMemoryHole15MB bool

	// HasPCI controls slow-path bus arbitration order: when false, the
	// ISA bus is consulted directly instead of gating on a PCI miss.
	// Auto-derived from Archetype when left nil during Normalize
	// (pre-386 archetypes predate PCI).
	HasPCI *bool

	addressBits uint32
	memSizeKB   uint64
	memSizeKB4G uint64
	hasPCI      bool
}

// Normalize clamps memalias to [20,40] (or auto-selects it from
// Archetype when 0), and the
// total memory size is capped by the resulting address-bit budget minus
// the reserved top-of-range slice.
func (c *Config) Normalize() error {
	if c.MemSizeMB < 0 || c.MemSizeKB < 0 {
		return fmt.Errorf("pcmem: negative memory size (memsize=%d memsizekb=%d)", c.MemSizeMB, c.MemSizeKB)
	}

	c.addressBits = c.MemAlias
	if c.addressBits == 0 {
		switch {
		case c.Archetype >= ArchetypePentiumII:
			c.addressBits = 36
		case c.Archetype >= Archetype386:
			c.addressBits = 32
		case c.Archetype >= Archetype286:
			c.addressBits = 24
		default:
			c.addressBits = 20
		}
	} else if c.addressBits < 20 {
		c.addressBits = 20
	} else if c.addressBits > 40 {
		c.addressBits = 40
	}

	memSizeKB := uint64(c.MemSizeKB+3) &^ 3
	memSizeKB += uint64(c.MemSizeMB) * 1024
	if memSizeKB == 0 {
		memSizeKB = 1024
	}

	pagemask := addressBitsToPagemask(c.addressBits)
	if pagemask+1 != 0 {
		var maxPages uint64
		switch {
		case c.addressBits >= 30:
			maxPages = uint64(pagemask+1) - 0x4000 // minus 64MB
		case c.addressBits >= 24:
			maxPages = uint64(pagemask+1) - 0x100 // minus 1MB
		default:
			maxPages = uint64(pagemask+1) - 0x10 // minus 64KB
		}
		if memSizeKB/4 > maxPages {
			memSizeKB = maxPages * 4
		}
	}

	const maxSizeBelow4GBKB = 0xF8000000 >> 10
	var memSizeKB4G uint64
	if c.addressBits > 32 && memSizeKB > maxSizeBelow4GBKB {
		memSizeKB4G = memSizeKB - maxSizeBelow4GBKB
		memSizeKB = maxSizeBelow4GBKB
	}
	if memSizeKB4G > 0 && c.MemoryFile == "" {
		// Above-4GB RAM requires file backing.
		memSizeKB4G = 0
	}

	const oneMBInKB = 1024
	if memSizeKB < oneMBInKB {
		memSizeKB = oneMBInKB
	}

	c.memSizeKB = memSizeKB
	c.memSizeKB4G = memSizeKB4G

	if c.HasPCI != nil {
		c.hasPCI = *c.HasPCI
	} else {
		c.hasPCI = c.Archetype >= Archetype386
	}

	return nil
}

func (c *Config) pagesBelow4GB() uint32 { return uint32(c.memSizeKB / 4) }
func (c *Config) pagesAbove4GB() uint32 { return uint32(c.memSizeKB4G / 4) }
