package pcmem

import "testing"

// The valid/invalid mask pairs here are the classic Sound Blaster port
// range (0x220-0x22F, mask 0x03F0) and a deliberately broken variant with
// an isolated high bit (0x13F0) that leaves a gap between range_mask and
// alias_mask.
func TestValidateMaskAccepts(t *testing.T) {
	rangeMask, aliasMask, err := validateMask(0x220, 0x03F0)
	if err != nil {
		t.Fatalf("validateMask(0x220, 0x03F0): %v", err)
	}
	if rangeMask != 0x000F {
		t.Errorf("rangeMask = %#x, want 0xF", rangeMask)
	}
	if aliasMask != 0x03FF {
		t.Errorf("aliasMask = %#x, want 0x3FF", aliasMask)
	}
}

func TestValidateMaskRejectsGappedMask(t *testing.T) {
	if _, _, err := validateMask(0x220, 0x13F0); err == nil {
		t.Fatal("expected error for mask with a gap between range and alias bits")
	}
}

func TestValidateMaskRejectsUnalignedBase(t *testing.T) {
	if _, _, err := validateMask(0x221, 0x03F0); err == nil {
		t.Fatal("expected error for a base not aligned to range_mask")
	}
}

func TestContiguousLowOnes(t *testing.T) {
	tests := []struct {
		in, want uint32
	}{
		{0x13FF, 0x3FF},
		{0x3FF, 0x3FF},
		{0, 0},
		{0xFFFFFFFF, 0xFFFFFFFF},
	}
	for _, tc := range tests {
		if got := contiguousLowOnes(tc.in); got != tc.want {
			t.Errorf("contiguousLowOnes(%#x) = %#x, want %#x", tc.in, got, tc.want)
		}
	}
}

func TestLowZeroBitsAsOnes(t *testing.T) {
	tests := []struct {
		in, want uint32
	}{
		{0xFFF0, 0xF},
		{0xFFFF, 0},
		{0, 0},
	}
	for _, tc := range tests {
		if got := lowZeroBitsAsOnes(tc.in); got != tc.want {
			t.Errorf("lowZeroBitsAsOnes(%#x) = %#x, want %#x", tc.in, got, tc.want)
		}
	}
}

// newTestState builds a MemoryState wide enough (32-bit address space)
// that none of the page numbers exercised by these tests collide under
// the active alias mask, which a narrower default archetype would fold.
func newTestState(t *testing.T) *MemoryState {
	t.Helper()
	m, err := New(Config{MemSizeMB: 16, Archetype: Archetype386})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestInstallCalloutRejectsInvalidMask(t *testing.T) {
	m := newTestState(t)
	_, err := m.InstallCallout(busISA, 0x220, 0x13F0, func(uint32) PageHandler { return nil })
	if err == nil {
		t.Fatal("expected InstallCallout to reject an invalid mask")
	}
}

func TestInstallCalloutMatchesOwnedPages(t *testing.T) {
	m := newTestState(t)
	claimed := &UnmappedHandler{}
	fn := func(ppn uint32) PageHandler {
		if ppn == 0x220 {
			return claimed
		}
		return nil
	}
	h, err := m.InstallCallout(busISA, 0x220, 0x03F0, fn)
	if err != nil {
		t.Fatalf("InstallCallout: %v", err)
	}
	if !h.Valid() {
		t.Fatal("expected a valid callout handle")
	}

	if got := m.GetHandler(0x220); got != claimed {
		t.Errorf("GetHandler(0x220) = %v, want the claimed handler", got)
	}
	// A neighboring page not claimed by fn falls back through the bus
	// match, which reports no owner and defaults to RAM since it's
	// inside reported RAM.
	if got := m.GetHandler(0x221); got == claimed {
		t.Error("GetHandler(0x221) should not resolve to the claimed handler")
	}
}

func TestInstallCalloutMatchesPeriodicAlias(t *testing.T) {
	m := newTestState(t)
	claimed := &UnmappedHandler{}
	fn := func(ppn uint32) PageHandler {
		if ppn&0x3F0 == 0x220 {
			return claimed
		}
		return nil
	}
	if _, err := m.InstallCallout(busISA, 0x220, 0x03F0, fn); err != nil {
		t.Fatalf("InstallCallout: %v", err)
	}

	// 0x220's claim repeats every 0x400 pages (the alias period); 0x620
	// and 0xA20 are aliases of the same device and must still resolve.
	for _, ppn := range []uint32{0x220, 0x620, 0xA20} {
		if got := m.GetHandler(ppn); got != claimed {
			t.Errorf("GetHandler(%#x) = %v, want the aliased claim", ppn, got)
		}
	}
	// 0x230 is outside the claimed 16-page window within the same period.
	if got := m.GetHandler(0x230); got == claimed {
		t.Error("GetHandler(0x230) should not match a claim over [0x220,0x230)")
	}
}

func TestUninstallCalloutRestoresDefault(t *testing.T) {
	m := newTestState(t)
	claimed := &UnmappedHandler{}
	h, err := m.InstallCallout(busISA, 0x220, 0x03F0, func(uint32) PageHandler { return claimed })
	if err != nil {
		t.Fatalf("InstallCallout: %v", err)
	}
	if m.GetHandler(0x220) != claimed {
		t.Fatal("callout did not take effect")
	}

	m.UninstallCallout(h)
	if got := m.GetHandler(0x220); got == claimed {
		t.Error("GetHandler still returns the uninstalled handler")
	}
}
