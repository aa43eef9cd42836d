// errors.go - Error taxonomy for the pcmem subsystem
//
// License: GPLv3 or later
//
// Configuration errors are reported so the caller decides abort-vs-
// fallback; defined-but-loggable behavior (out-of-range access, ROM
// writes) never returns an error at all; allocator exhaustion returns a
// zero handle instead, and callout-pool exhaustion surfaces as
// ErrCalloutPoolExhausted from InstallCallout. The sentinels below name the subset callers might
// reasonably want to match on with errors.Is; everything else is a plain
// fmt.Errorf-wrapped description.

package pcmem

import "errors"

var (
	// ErrCalloutMaskInvalid is wrapped by InstallCallout when mem_mask
	// fails the range/alias mask decomposition checks.
	ErrCalloutMaskInvalid = errors.New("pcmem: callout mask invalid")

	// ErrCalloutPoolExhausted is wrapped by InstallCallout when a bus's
	// callout pool has reached maxCalloutsPerBus.
	ErrCalloutPoolExhausted = errors.New("pcmem: callout pool exhausted")

	// ErrRangeUnavailable is returned by the mapping facade when a range
	// overlaps a page owned by something other than the stock handlers.
	ErrRangeUnavailable = errors.New("pcmem: range not available for mapping")

	// ErrSaveGeometryMismatch is returned by LoadState when the stream's
	// recorded pages/handler_pages do not match the live MemoryState.
	ErrSaveGeometryMismatch = errors.New("pcmem: save geometry mismatch")

	// ErrSaveBadMagic is returned by LoadState for a stream that doesn't
	// start with the expected magic bytes.
	ErrSaveBadMagic = errors.New("pcmem: bad save magic")
)
