// a20.go - A20 gate and its interaction with the active alias mask
//
// License: GPLv3 or later

package pcmem

// setA20Mode derives the guest/fake/fast changeability flags from the
// configured mode and applies the initial gate state.
func (m *MemoryState) setA20Mode(mode A20Mode) {
	switch mode {
	case A20On:
		// Briefly guest-changeable so EnableA20 applies the initial state,
		// then locked.
		m.a20.guestChange, m.a20.fakeChange, m.a20.fastChange = true, false, false
		m.EnableA20(true)
		m.a20.guestChange = false
	case A20Off:
		m.a20.guestChange, m.a20.fakeChange, m.a20.fastChange = true, false, false
		m.EnableA20(false)
		m.a20.guestChange = false
	case A20OnFake:
		m.a20.guestChange, m.a20.fakeChange, m.a20.fastChange = true, true, false
		m.EnableA20(true)
	case A20OffFake:
		m.a20.guestChange, m.a20.fakeChange, m.a20.fastChange = true, true, false
		m.EnableA20(false)
	case A20Fast:
		m.a20.guestChange, m.a20.fakeChange, m.a20.fastChange = true, false, true
		m.EnableA20(false)
	default: // A20Mask
		m.a20.guestChange, m.a20.fakeChange, m.a20.fastChange = true, false, false
		m.EnableA20(false)
	}
}

// EnableA20 implements the gate's enable operation. Guest or
// fake-changeable modes always update the guest-visible enabled bit; only
// a non-fake mode actually flips bit 0x100 of the active alias mask and
// requests a TLB flush.
func (m *MemoryState) EnableA20(enabled bool) {
	if !m.a20.guestChange && !m.a20.fakeChange {
		return
	}
	m.a20.enabled = enabled

	if m.a20.fakeChange {
		return
	}
	if m.aliasPagemask&0x100 == 0 {
		return
	}

	before := m.aliasPagemaskActive
	if enabled {
		m.aliasPagemaskActive |= 0x100
	} else {
		m.aliasPagemaskActive &^= 0x100
	}
	if before != m.aliasPagemaskActive {
		m.tlbFlush()
	}
}

// A20Enabled reports the guest-visible gate state, independent of whether
// the mode is fake (in which case it tracks the probe value only).
func (m *MemoryState) A20Enabled() bool { return m.a20.enabled }

// invalidateHandlerCache nulls every cached handler pointer below
// handlerPages, forcing the next access through the slow path. Used by
// SetLFB. Entries installed through SetRange or the mapping facade
// (MapRAM, MapROM, Unmap) are nulled as well; callout registrations and
// the LFB windows themselves are untouched.
func (m *MemoryState) invalidateHandlerCache() {
	for p := range m.phandlers {
		m.phandlers[p] = nil
	}
}

// ReadPort92 implements the PS/2 control port A read side (IBM only).
func (m *MemoryState) ReadPort92() uint8 {
	var v uint8
	if m.a20.enabled {
		v |= 1 << 1
	}
	return v
}

// WritePort92 implements port 0x92: bit 1 drives A20, bit 0 triggers a
// full CPU reset when the caller has enabled that wiring.
// The reset request is reported back to the caller rather than acted on
// here, since only the CPU dispatcher may unwind.
func (m *MemoryState) WritePort92(v uint8, resetAllowed bool) (resetRequested bool) {
	m.EnableA20(v&(1<<1) != 0)
	return resetAllowed && v&1 != 0
}

// ReadPC98A20 implements PC-98 port 0xF6 read-back semantics: bit 0
// reflects the gate state.
func (m *MemoryState) ReadPC98A20() uint8 {
	if m.a20.enabled {
		return 1
	}
	return 0
}

// WritePC98A20F2 implements port 0xF2: any write unconditionally unmasks A20.
func (m *MemoryState) WritePC98A20F2(uint8) {
	m.EnableA20(true)
}

// WritePC98A20F6 implements port 0xF6: value `0000 001x` selects mask (bit0=0)
// or unmask (bit0=1); any other value pattern is ignored.
func (m *MemoryState) WritePC98A20F6(v uint8) {
	if v&0xFE != 0x02 {
		return
	}
	m.EnableA20(v&1 != 0)
}

// ReadPC98MemoryHoleStatus implements port 0x43B: bit 2 is set when the
// 16MiB ISA memory hole is closed (i.e. not reserved).
func (m *MemoryState) ReadPC98MemoryHoleStatus() uint8 {
	if !m.isaHole {
		return 1 << 2
	}
	return 0
}
