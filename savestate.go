// savestate.go - Versioned binary save-state codec
//
// License: GPLv3 or later
//
// An explicit versioned schema rather than POD serialization,
// endian-neutral and with bounded-length arrays checked against the live
// MemoryState before restore.

package pcmem

import (
	"encoding/binary"
	"fmt"
	"io"
)

var saveMagic = [8]byte{'P', 'C', 'M', 'E', 'M', 'S', 'S', '1'}

const saveVersion = 1

// handlerTag identifies one of the stock handler variants in the
// per-page handler-index table. tagNone (0xFF) means "null, let the slow
// path recache" and is also used for any non-stock handler (callback,
// Lua, ACPI — those are expected to be reinstalled by their owning
// subsystem after a restore, since they carry state this table doesn't
// capture).
type handlerTag uint8

const (
	tagRAM handlerTag = iota
	tagROM
	tagROMAlias
	tagUnmapped
	tagIllegal
	tagMem4GB
	tagNone handlerTag = 0xFF
)

func (m *MemoryState) tagFor(h PageHandler) handlerTag {
	switch h {
	case m.stock.ram:
		return tagRAM
	case m.stock.rom:
		return tagROM
	case m.stock.romAlias:
		return tagROMAlias
	case m.stock.unmapped:
		return tagUnmapped
	case m.stock.illegal:
		return tagIllegal
	case m.stock.mem4gb:
		return tagMem4GB
	default:
		return tagNone
	}
}

func (m *MemoryState) handlerFor(tag handlerTag) PageHandler {
	switch tag {
	case tagRAM:
		return m.stock.ram
	case tagROM:
		return m.stock.rom
	case tagROMAlias:
		return m.stock.romAlias
	case tagUnmapped:
		return m.stock.unmapped
	case tagIllegal:
		return m.stock.illegal
	case tagMem4GB:
		return m.stock.mem4gb
	default:
		return nil
	}
}

// saveHeader is the fixed-size leading portion of a save-state stream.
type saveHeader struct {
	Magic   [8]byte
	Version uint32
	Flags   uint32

	Pages            uint32
	ReportedPages    uint32
	ReportedPages4GB uint32
	HandlerPages     uint32

	AddressBits         uint32
	AliasPagemask       uint32
	AliasPagemaskActive uint32
	HWNextAssign        uint32

	A20Enabled     uint8
	A20ControlPort uint8
	_              [2]uint8 // padding to keep the struct 4-byte aligned
}

// SaveState writes a versioned snapshot of m's persisted state to w.
func (m *MemoryState) SaveState(w io.Writer) error {
	hdr := saveHeader{
		Magic:               saveMagic,
		Version:             saveVersion,
		Pages:               m.pages,
		ReportedPages:       m.reportedPages,
		ReportedPages4GB:    m.reportedPages4GB,
		HandlerPages:        m.handlerPages,
		AddressBits:         m.addressBits,
		AliasPagemask:       m.aliasPagemask,
		AliasPagemaskActive: m.aliasPagemaskActive,
		HWNextAssign:        m.hwNextAssign,
	}
	if m.a20.enabled {
		hdr.A20Enabled = 1
	}
	hdr.A20ControlPort = m.a20.controlPort

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("pcmem: writing save header: %w", err)
	}

	if _, err := w.Write(m.host.base); err != nil {
		return fmt.Errorf("pcmem: writing RAM image: %w", err)
	}

	mh := make([]int32, m.pages)
	for i, h := range m.mhandles {
		mh[i] = int32(h)
	}
	if err := binary.Write(w, binary.LittleEndian, mh); err != nil {
		return fmt.Errorf("pcmem: writing mhandles: %w", err)
	}

	tags := make([]byte, m.handlerPages)
	for p := uint32(0); p < m.handlerPages; p++ {
		tags[p] = byte(m.tagFor(m.phandlers[p]))
	}
	if _, err := w.Write(tags); err != nil {
		return fmt.Errorf("pcmem: writing handler index table: %w", err)
	}

	return nil
}

// LoadState restores m's RAM, mhandles, and stock-handler page assignments
// from a stream written by SaveState. pages and handlerPages recorded in
// the header must match m's live configuration exactly; a mismatch is a
// hard error, never a silent truncation.
func (m *MemoryState) LoadState(r io.Reader) error {
	var hdr saveHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("pcmem: reading save header: %w", err)
	}
	if hdr.Magic != saveMagic {
		return fmt.Errorf("%w: got %q", ErrSaveBadMagic, hdr.Magic)
	}
	if hdr.Version != saveVersion {
		return fmt.Errorf("pcmem: unsupported save version %d", hdr.Version)
	}
	if hdr.Pages != m.pages || hdr.HandlerPages != m.handlerPages {
		return fmt.Errorf("%w: pages %d/%d handler_pages %d/%d",
			ErrSaveGeometryMismatch, hdr.Pages, m.pages, hdr.HandlerPages, m.handlerPages)
	}

	if _, err := io.ReadFull(r, m.host.base); err != nil {
		return fmt.Errorf("pcmem: reading RAM image: %w", err)
	}

	mh := make([]int32, m.pages)
	if err := binary.Read(r, binary.LittleEndian, mh); err != nil {
		return fmt.Errorf("pcmem: reading mhandles: %w", err)
	}
	for i, v := range mh {
		m.mhandles[i] = MemHandle(v)
	}

	tags := make([]byte, m.handlerPages)
	if _, err := io.ReadFull(r, tags); err != nil {
		return fmt.Errorf("pcmem: reading handler index table: %w", err)
	}
	for p, tag := range tags {
		m.phandlers[p] = m.handlerFor(handlerTag(tag))
	}

	m.reportedPages = hdr.ReportedPages
	m.reportedPages4GB = hdr.ReportedPages4GB
	m.addressBits = hdr.AddressBits
	m.aliasPagemask = hdr.AliasPagemask
	m.aliasPagemaskActive = hdr.AliasPagemaskActive
	m.hwNextAssign = hdr.HWNextAssign
	m.a20.enabled = hdr.A20Enabled != 0
	m.a20.controlPort = hdr.A20ControlPort

	m.tlbFlush()
	return nil
}
