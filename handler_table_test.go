package pcmem

import "testing"

func TestGetHandlerServesRAMWithinReportedPages(t *testing.T) {
	m := newTestState(t)
	if got := m.GetHandler(0); got != m.stock.ram {
		t.Errorf("GetHandler(0) = %v, want stock RAM", got)
	}
}

func TestGetHandlerServesIllegalAboveFourGBWithNoExtension(t *testing.T) {
	m := newTestState(t)
	if m.reportedPages4GB != 0 {
		t.Fatal("test setup error: expected no above-4GB pages configured")
	}
	if got := m.GetHandler(mem4GBBase); got != m.stock.illegal {
		t.Errorf("GetHandler(mem4GBBase) = %v, want stock Illegal with no above-4GB extension", got)
	}
}

func TestGetHandlerServesIllegalPastAboveFourGBExtension(t *testing.T) {
	m, err := New(Config{MemSizeMB: 3970, MemAlias: 33, MemoryFile: t.TempDir() + "/above4g.img"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()
	if m.reportedPages4GB == 0 {
		t.Skip("no above-4GB pages configured")
	}
	past := mem4GBBase + m.reportedPages4GB
	if got := m.GetHandler(past); got != m.stock.illegal {
		t.Errorf("GetHandler(%#x) = %v, want stock Illegal past the above-4GB extension", past, got)
	}
}

func TestGetHandlerServesMem4GBRegion(t *testing.T) {
	m, err := New(Config{MemSizeMB: 3970, MemAlias: 33, MemoryFile: t.TempDir() + "/above4g.img"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()
	if m.reportedPages4GB == 0 {
		t.Skip("no above-4GB pages configured")
	}
	if got := m.GetHandler(mem4GBBase); got != m.stock.mem4gb {
		t.Errorf("GetHandler(mem4GBBase) = %v, want stock Mem4GB", got)
	}
}

func TestGetHandlerCachesSlowPathResult(t *testing.T) {
	m := newTestState(t)
	ppn := uint32(0x200)
	m.phandlers[ppn] = nil

	got := m.GetHandler(ppn)
	if got != m.stock.ram {
		t.Fatalf("GetHandler(%#x) = %v, want stock RAM via slow path", ppn, got)
	}
	if m.phandlers[ppn] != m.stock.ram {
		t.Error("slow path result was not cached into phandlers")
	}
}

func TestSetRangeAndInvalidate(t *testing.T) {
	m := newTestState(t)
	m.SetRange(0x10, 4, m.stock.unmapped)
	for p := uint32(0x10); p < 0x14; p++ {
		if m.phandlers[p] != m.stock.unmapped {
			t.Errorf("phandlers[%#x] = %v, want stock Unmapped", p, m.phandlers[p])
		}
	}

	m.Invalidate(0x10, 4)
	for p := uint32(0x10); p < 0x14; p++ {
		if m.phandlers[p] != nil {
			t.Errorf("phandlers[%#x] = %v, want nil after Invalidate", p, m.phandlers[p])
		}
	}
}

func TestResetToRAMAndUnmapped(t *testing.T) {
	m := newTestState(t)
	m.ResetToUnmapped(0x20, 2)
	if m.phandlers[0x20] != m.stock.unmapped || m.phandlers[0x21] != m.stock.unmapped {
		t.Error("ResetToUnmapped did not install the stock Unmapped handler")
	}
	m.ResetToRAM(0x20, 2)
	if m.phandlers[0x20] != m.stock.ram || m.phandlers[0x21] != m.stock.ram {
		t.Error("ResetToRAM did not install the stock RAM handler")
	}
}

func TestLFBHandlerTakesPriorityOverCache(t *testing.T) {
	m := newTestState(t)
	// Pre-populate the cache with something else, then install an LFB
	// window over the same page: the LFB override must win.
	m.phandlers[0x30] = m.stock.ram
	m.lfb = lfbWindow{startPage: 0x30, endPage: 0x31, handler: m.stock.illegal}

	if got := m.GetHandler(0x30); got != m.stock.illegal {
		t.Errorf("GetHandler(0x30) = %v, want the LFB override", got)
	}
}
