package pcmem

import "testing"

func TestMapUnmapRoundTrip(t *testing.T) {
	m := newTestState(t)

	if err := m.Unmap(0x40, 0x44); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	for p := uint32(0x40); p < 0x44; p++ {
		if m.phandlers[p] != m.stock.unmapped {
			t.Errorf("phandlers[%#x] = %v, want stock Unmapped", p, m.phandlers[p])
		}
	}

	if err := m.MapRAM(0x40, 0x44); err != nil {
		t.Fatalf("MapRAM: %v", err)
	}
	for p := uint32(0x40); p < 0x44; p++ {
		if m.phandlers[p] != m.stock.ram {
			t.Errorf("phandlers[%#x] = %v, want stock RAM", p, m.phandlers[p])
		}
	}
}

func TestMapROMAndROMAlias(t *testing.T) {
	m := newTestState(t)

	if err := m.MapROM(0x50, 0x54); err != nil {
		t.Fatalf("MapROM: %v", err)
	}
	for p := uint32(0x50); p < 0x54; p++ {
		if m.phandlers[p] != m.stock.rom {
			t.Errorf("phandlers[%#x] = %v, want stock ROM", p, m.phandlers[p])
		}
	}

	if err := m.MapROMAlias(0x60, 0x64); err != nil {
		t.Fatalf("MapROMAlias: %v", err)
	}
	for p := uint32(0x60); p < 0x64; p++ {
		if m.phandlers[p] != m.stock.romAlias {
			t.Errorf("phandlers[%#x] = %v, want stock ROMAlias", p, m.phandlers[p])
		}
	}
}

func TestMapRejectsInvertedOrEmptyRange(t *testing.T) {
	m := newTestState(t)
	if err := m.MapRAM(10, 10); err == nil {
		t.Error("expected an error for an empty range")
	}
	if err := m.MapRAM(10, 5); err == nil {
		t.Error("expected an error for an inverted range")
	}
}

func TestMapRejectsRangeBeyondHandlerTable(t *testing.T) {
	m := newTestState(t)
	if err := m.MapRAM(m.handlerPages-1, m.handlerPages+10); err == nil {
		t.Error("expected an error for a range exceeding the handler table")
	}
}

func TestMapRejectsNonOverridablePage(t *testing.T) {
	m := newTestState(t)
	claimed := &UnmappedHandler{}
	m.phandlers[0x70] = claimed // not one of the stock handlers

	if err := m.MapRAM(0x70, 0x71); err == nil {
		t.Error("expected an error mapping over a non-stock-owned page")
	}
}

func TestSetLFBInstallsAndTearsDown(t *testing.T) {
	m := newTestState(t)
	lfbHandler := &UnmappedHandler{}

	if err := m.SetLFB(0x80, 16, lfbHandler, nil); err != nil {
		t.Fatalf("SetLFB: %v", err)
	}
	for _, ppn := range []uint32{0x80, 0x85, 0x8F} {
		if got := m.GetHandler(ppn); got != lfbHandler {
			t.Errorf("GetHandler(%#x) = %v, want the LFB handler", ppn, got)
		}
	}
	if got := m.GetHandler(0x90); got == lfbHandler {
		t.Error("GetHandler(0x90) should fall outside the 16-page LFB window")
	}

	if err := m.SetLFB(0, 0, nil, nil); err != nil {
		t.Fatalf("SetLFB teardown: %v", err)
	}
	if m.lfb.handler != nil {
		t.Error("SetLFB teardown did not clear the LFB window")
	}
	if got := m.GetHandler(0x80); got == lfbHandler {
		t.Error("GetHandler(0x80) should no longer resolve to the torn-down LFB handler")
	}
}

func TestSetLFBWithMMIOCompanion(t *testing.T) {
	m := newTestState(t)
	lfbHandler := &UnmappedHandler{}
	mmioHandler := &IllegalHandler{logger: NewLogger()}

	if err := m.SetLFB(0x80, 16, lfbHandler, mmioHandler); err != nil {
		t.Fatalf("SetLFB: %v", err)
	}
	mmioBase := uint32(0x80) + lfbMMIOOffsetPages
	if got := m.GetHandler(mmioBase); got != mmioHandler {
		t.Errorf("GetHandler(mmioBase) = %v, want the MMIO companion handler", got)
	}
	if got := m.GetHandler(mmioBase + lfbMMIOPages); got == mmioHandler {
		t.Error("GetHandler just past the MMIO window should not match")
	}
}

func TestHardwareAllocateAlignsAndAdvances(t *testing.T) {
	m := newTestState(t)
	start := m.hwNextAssign

	base1, err := m.HardwareAllocate("dev1", 0x1000)
	if err != nil {
		t.Fatalf("HardwareAllocate: %v", err)
	}
	if base1%0x1000 != 0 {
		t.Errorf("base1 = %#x, not aligned to 0x1000", base1)
	}
	if base1 < start {
		t.Errorf("base1 = %#x, should not precede the initial cursor %#x", base1, start)
	}

	base2, err := m.HardwareAllocate("dev2", 0x2000)
	if err != nil {
		t.Fatalf("HardwareAllocate: %v", err)
	}
	if base2%0x2000 != 0 {
		t.Errorf("base2 = %#x, not aligned to 0x2000", base2)
	}
	if base2 < base1+0x1000 {
		t.Errorf("base2 = %#x overlaps dev1's [%#x, %#x)", base2, base1, base1+0x1000)
	}
}

func TestHardwareAllocateRejectsNonPowerOfTwo(t *testing.T) {
	m := newTestState(t)
	if _, err := m.HardwareAllocate("dev", 0x1234); err == nil {
		t.Error("expected an error for a non-power-of-2 size")
	}
}

func TestHardwareAllocateRejectsCeilingCrossing(t *testing.T) {
	m := newTestState(t)
	m.hwNextAssign = hwAssignCeiling - 0x100
	if _, err := m.HardwareAllocate("dev", 0x1000); err == nil {
		t.Error("expected an error when the allocation would cross hwAssignCeiling")
	}
}

func TestCutRAMUpToShrinksReportedPages(t *testing.T) {
	m := newTestState(t)
	before := m.reportedPages

	m.CutRAMUpTo(0x2 * PageSize)
	if m.reportedPages != 2 {
		t.Errorf("reportedPages = %d, want 2", m.reportedPages)
	}
	if got := m.GetHandler(before - 1); got == m.stock.ram {
		t.Error("GetHandler for a vacated page should no longer resolve to RAM")
	}
}

func TestCutRAMUpToIgnoresGrowthRequest(t *testing.T) {
	m := newTestState(t)
	before := m.reportedPages
	m.CutRAMUpTo((before + 10) * PageSize)
	if m.reportedPages != before {
		t.Errorf("reportedPages = %d, want unchanged %d", m.reportedPages, before)
	}
}
