// callout.go - Callout registry, mask validation, and the slow path
//
// License: GPLv3 or later
//
// The pool is an index-stable arena (slice of pointers, addressed by
// index) rather than a reallocating vector, so growth never invalidates a
// handle a caller is holding. getcounter is kept as a pin/unpin
// bookkeeping aid for callers that need to know a handle is in active
// use, not as a growth gate.
package pcmem

import "fmt"

// busKind names one of the three callout buses arbitration walks in order.
type busKind int

const (
	busMB busKind = iota
	busPCI
	busISA
	busCount
)

// CalloutFunc is asked whether it owns ppn; it returns nil if not.
type CalloutFunc func(ppn uint32) PageHandler

// CalloutObject is one registered device claim over a page range.
type CalloutObject struct {
	installed bool
	allocated bool

	basePage  uint32
	memMask   uint32
	rangeMask uint32
	aliasMask uint32

	fn CalloutFunc

	getcounter int32
}

// CalloutHandle identifies a callout object by bus and index. The zero
// value addresses slot 0 of the MB bus; use NoCallout for "no handle".
type CalloutHandle struct {
	bus   busKind
	index int
}

// NoCallout is returned by AllocateCallout when the pool could not be
// grown (bounded at maxCalloutsPerBus) and by InstallCallout on validation
// failure.
var NoCallout = CalloutHandle{bus: -1, index: -1}

func (h CalloutHandle) Valid() bool { return h.bus >= 0 && h.index >= 0 }

const (
	initialCalloutPoolSize = 64
	maxCalloutsPerBus      = 4096
)

// calloutRegistry holds the three bus pools. hasPCI controls whether the
// slow path consults PCI before falling back to ISA; systems predating
// PCI go straight to ISA.
type calloutRegistry struct {
	buses  [busCount][]*CalloutObject
	hasPCI bool
}

func newCalloutRegistry(hasPCI bool) *calloutRegistry {
	r := &calloutRegistry{hasPCI: hasPCI}
	for b := range r.buses {
		r.buses[b] = make([]*CalloutObject, 0, initialCalloutPoolSize)
	}
	return r
}

// AllocateCallout returns the first free slot on bus, or grows the pool
// (bounded at maxCalloutsPerBus) if none is free. Growth is always safe
// here: callers address objects by (bus, index), never by pointer held
// across a resize, so there is no pinning hazard to guard against.
func (r *calloutRegistry) AllocateCallout(bus busKind) CalloutHandle {
	pool := r.buses[bus]
	for i, obj := range pool {
		if !obj.allocated {
			obj.allocated = true
			return CalloutHandle{bus: bus, index: i}
		}
	}
	if len(pool) >= maxCalloutsPerBus {
		return NoCallout
	}
	obj := &CalloutObject{allocated: true}
	r.buses[bus] = append(pool, obj)
	return CalloutHandle{bus: bus, index: len(r.buses[bus]) - 1}
}

func (r *calloutRegistry) object(h CalloutHandle) *CalloutObject {
	if !h.Valid() || int(h.bus) >= len(r.buses) || h.index >= len(r.buses[h.bus]) {
		return nil
	}
	return r.buses[h.bus][h.index]
}

// FreeCallout returns a handle's slot to the free pool.
func (r *calloutRegistry) FreeCallout(h CalloutHandle) {
	obj := r.object(h)
	if obj == nil {
		return
	}
	*obj = CalloutObject{}
}

// GetCallout pins a handle for active use, returning its object.
func (r *calloutRegistry) GetCallout(h CalloutHandle) (*CalloutObject, bool) {
	obj := r.object(h)
	if obj == nil || !obj.allocated {
		return nil, false
	}
	obj.getcounter++
	return obj, true
}

// PutCallout unpins a handle previously returned by GetCallout.
func (r *calloutRegistry) PutCallout(h CalloutHandle) {
	if obj := r.object(h); obj != nil && obj.getcounter > 0 {
		obj.getcounter--
	}
}

// validateMask decomposes memMask into a contiguous low range_mask and a
// contiguous alias_mask covering it, returning (rangeMask, aliasMask, error).
func validateMask(basePage, memMask uint32) (uint32, uint32, error) {
	rangeMask := lowZeroBitsAsOnes(memMask)
	aliasMask := contiguousLowOnes(memMask | rangeMask)

	if memMask&rangeMask != 0 {
		return 0, 0, fmt.Errorf("%w: mem_mask %#x & range_mask != 0", ErrCalloutMaskInvalid, memMask)
	}
	if !isPowerOfTwoMinusOne(rangeMask) {
		return 0, 0, fmt.Errorf("%w: mem_mask %#x range_mask+1 not a power of 2", ErrCalloutMaskInvalid, memMask)
	}
	if memMask^rangeMask^aliasMask != 0 {
		return 0, 0, fmt.Errorf("%w: mem_mask %#x ^ range_mask ^ alias_mask != 0", ErrCalloutMaskInvalid, memMask)
	}
	if !isPowerOfTwoMinusOne(aliasMask) {
		return 0, 0, fmt.Errorf("%w: mem_mask %#x alias_mask+1 not a power of 2", ErrCalloutMaskInvalid, memMask)
	}
	if basePage&rangeMask != 0 {
		return 0, 0, fmt.Errorf("%w: base %#x not aligned to range_mask %#x", ErrCalloutMaskInvalid, basePage, rangeMask)
	}
	return rangeMask, aliasMask, nil
}

// lowZeroBitsAsOnes returns a mask of 1-bits covering the contiguous run
// of low 0-bits in v (e.g. 0xFFF0 -> 0xF).
func lowZeroBitsAsOnes(v uint32) uint32 {
	if v == 0 {
		return 0
	}
	var mask uint32
	for v&1 == 0 {
		mask = mask<<1 | 1
		v >>= 1
	}
	return mask
}

func isPowerOfTwoMinusOne(v uint32) bool {
	return v&(v+1) == 0
}

// contiguousLowOnes returns the mask of the contiguous run of 1-bits
// starting at bit 0 of v (e.g. 0x13FF -> 0x3FF, since bit10 is 0).
func contiguousLowOnes(v uint32) uint32 {
	var mask uint32
	for v&1 == 1 {
		mask = mask<<1 | 1
		v >>= 1
	}
	return mask
}

// InstallCallout registers fn to own every page matching (basePage,
// memMask) on bus, validating the mask first. On success it invalidates
// any cached handler entries the new claim now covers.
func (m *MemoryState) InstallCallout(bus busKind, basePage, memMask uint32, fn CalloutFunc) (CalloutHandle, error) {
	rangeMask, aliasMask, err := validateMask(basePage, memMask)
	if err != nil {
		m.logger.Warnf("callout install rejected: %v", err)
		return NoCallout, err
	}

	h := m.callout.AllocateCallout(bus)
	if !h.Valid() {
		return NoCallout, fmt.Errorf("%w: bus %d", ErrCalloutPoolExhausted, bus)
	}
	obj, _ := m.callout.GetCallout(h)
	obj.installed = true
	obj.basePage = basePage
	obj.memMask = memMask
	obj.rangeMask = rangeMask
	obj.aliasMask = aliasMask
	obj.fn = fn
	m.callout.PutCallout(h)

	m.invalidateCalloutRange(obj)
	m.tlbFlush()
	return h, nil
}

// UninstallCallout removes a previously installed callout and invalidates
// the cached handlers it covered.
func (m *MemoryState) UninstallCallout(h CalloutHandle) {
	obj, ok := m.callout.GetCallout(h)
	if !ok {
		return
	}
	if obj.installed {
		m.invalidateCalloutRange(obj)
	}
	m.callout.PutCallout(h)
	m.callout.FreeCallout(h)
	m.tlbFlush()
}

// invalidateCalloutRange walks every aliased page the object covers,
// stepping by alias_mask+1 with width range_mask+1, and nulls phandlers.
func (m *MemoryState) invalidateCalloutRange(obj *CalloutObject) {
	step := obj.aliasMask + 1
	width := obj.rangeMask + 1
	within := obj.basePage & obj.aliasMask
	for periodBase := obj.basePage &^ obj.aliasMask; periodBase < m.handlerPages; periodBase += step {
		base := periodBase + within
		end := base + width
		if end > m.handlerPages {
			end = m.handlerPages
		}
		for p := base; p < end; p++ {
			m.phandlers[p] = nil
		}
		if step == 0 {
			break
		}
	}
}

// matchBus asks every allocated, installed slot on bus whether it owns
// ppn, returning the first match and the count of all matches.
func (r *calloutRegistry) matchBus(bus busKind, ppn uint32) (PageHandler, int) {
	var first PageHandler
	var count int
	for _, obj := range r.buses[bus] {
		if !obj.allocated || !obj.installed {
			continue
		}
		if obj.fn == nil {
			continue
		}
		// Only the bits between range_mask and alias_mask need to match:
		// bits within range_mask select the page inside the claimed
		// window (free), and bits above alias_mask repeat the claim at
		// every alias period (also free).
		midMask := obj.aliasMask &^ obj.rangeMask
		if ppn&midMask != obj.basePage&midMask {
			continue
		}
		h := obj.fn(ppn)
		if h == nil {
			continue
		}
		count++
		if first == nil {
			first = h
		}
	}
	return first, count
}

// slowPath arbitrates the three buses in order: MB first, then
// PCI-then-ISA-on-miss (or straight to ISA when no PCI bus), defaulting
// to RAM inside reported_pages
// (logged, since system RAM normally never reaches here) or Unmapped
// otherwise. Caching is suppressed on a multi-device conflict.
func (m *MemoryState) slowPath(ppn uint32) PageHandler {
	var fallback PageHandler
	if ppn < m.reportedPages && !m.isISAHolePage(ppn) {
		m.logger.Warnf("slow path reached for in-RAM ppn=%#x", ppn)
		fallback = m.stock.ram
	} else {
		fallback = m.stock.unmapped
	}

	f, matchCount := m.callout.matchBus(busMB, ppn)
	if matchCount == 0 {
		if m.callout.hasPCI {
			f, matchCount = m.callout.matchBus(busPCI, ppn)
			if matchCount == 0 {
				f, matchCount = m.callout.matchBus(busISA, ppn)
			}
		} else {
			f, matchCount = m.callout.matchBus(busISA, ppn)
		}
	}

	if matchCount == 0 {
		f = fallback
	}

	if ppn < m.handlerPages && matchCount <= 1 {
		m.phandlers[ppn] = f
	}
	return f
}

func (m *MemoryState) isISAHolePage(ppn uint32) bool {
	return m.isaHole && ppn >= ISAHoleStart && ppn <= ISAHoleEnd
}
