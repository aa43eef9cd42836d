// handler.go - Page handler contract
//
// License: GPLv3 or later

package pcmem

// HandlerFlags describes the capability set of a PageHandler.
type HandlerFlags uint8

const (
	FlagReadable HandlerFlags = 1 << iota
	FlagWriteable
	FlagHasROM
	FlagNoCode
	FlagInit
)

// PageHandler is the per-page dispatch contract every physical page
// resolves to, either directly (cached in phandlers) or via the slow
// path. Implementations must not block.
type PageHandler interface {
	Flags() HandlerFlags

	// addr is the full physical byte address. It is wider than a page
	// number needs to be so that pages at or above the 4GB line (see
	// mem4GBBase) remain addressable: a ppn there times PageSize already
	// overflows uint32.
	ReadB(addr uint64) uint8
	ReadW(addr uint64) uint16
	ReadD(addr uint64) uint32

	WriteB(addr uint64, v uint8)
	WriteW(addr uint64, v uint16)
	WriteD(addr uint64, v uint32)

	// HostReadPtr returns the offset into the host backing array for a
	// bulk read of the whole page, or ok=false if no such fast path
	// exists for this handler (caller must fall back to ReadB/W/D).
	HostReadPtr(ppn uint32) (offset int, ok bool)

	// HostWritePtr is the write-side analogue of HostReadPtr.
	HostWritePtr(ppn uint32) (offset int, ok bool)
}
