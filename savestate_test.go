// savestate_test.go - Versioned binary save-state codec

package pcmem

import (
	"bytes"
	"errors"
	"testing"
)

func TestSaveLoadStateRoundTrip(t *testing.T) {
	m1 := newTestState(t)

	m1.WriteD(0x1000, 0xCAFEF00D)
	m1.MapROM(0x200, 0x204)
	m1.ResetToUnmapped(0x300, 2)

	h := m1.AllocatePages(5, true)
	if h == 0 {
		t.Fatal("AllocatePages returned 0")
	}
	m1.EnableA20(true)

	var buf bytes.Buffer
	if err := m1.SaveState(&buf); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	m2 := newTestState(t)
	if err := m2.LoadState(&buf); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	if got := m2.ReadD(0x1000); got != 0xCAFEF00D {
		t.Errorf("ReadD(0x1000) after restore = %#x, want 0xCAFEF00D", got)
	}
	for p := uint32(0x200); p < 0x204; p++ {
		if m2.phandlers[p] != m2.stock.rom {
			t.Errorf("phandlers[%#x] = %v, want stock ROM after restore", p, m2.phandlers[p])
		}
	}
	for p := uint32(0x300); p < 0x302; p++ {
		if m2.phandlers[p] != m2.stock.unmapped {
			t.Errorf("phandlers[%#x] = %v, want stock Unmapped after restore", p, m2.phandlers[p])
		}
	}
	if len(m2.chainPages(h)) != 5 {
		t.Errorf("chainPages(%#x) after restore has length %d, want 5", h, len(m2.chainPages(h)))
	}
	if m2.a20.enabled != m1.a20.enabled {
		t.Errorf("a20.enabled after restore = %v, want %v", m2.a20.enabled, m1.a20.enabled)
	}
	if m2.aliasPagemaskActive != m1.aliasPagemaskActive {
		t.Errorf("aliasPagemaskActive after restore = %#x, want %#x", m2.aliasPagemaskActive, m1.aliasPagemaskActive)
	}
}

func TestLoadStateRejectsBadMagic(t *testing.T) {
	m := newTestState(t)
	buf := bytes.NewReader(make([]byte, 64))
	if err := m.LoadState(buf); !errors.Is(err, ErrSaveBadMagic) {
		t.Errorf("LoadState with zeroed header: got %v, want ErrSaveBadMagic", err)
	}
}

func TestLoadStateRejectsGeometryMismatch(t *testing.T) {
	m1 := newTestState(t)
	var buf bytes.Buffer
	if err := m1.SaveState(&buf); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	m2, err := New(Config{MemSizeMB: 4, Archetype: Archetype286})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m2.Close()

	if err := m2.LoadState(&buf); !errors.Is(err, ErrSaveGeometryMismatch) {
		t.Errorf("LoadState into a differently sized state: got %v, want ErrSaveGeometryMismatch", err)
	}
}

func TestTagForAndHandlerForRoundTrip(t *testing.T) {
	m := newTestState(t)
	stocks := []PageHandler{m.stock.ram, m.stock.rom, m.stock.romAlias, m.stock.unmapped, m.stock.illegal, m.stock.mem4gb}
	for _, h := range stocks {
		tag := m.tagFor(h)
		if tag == tagNone {
			t.Errorf("tagFor(%T) = tagNone, want a stock tag", h)
			continue
		}
		if got := m.handlerFor(tag); got != h {
			t.Errorf("handlerFor(tagFor(%T)) = %v, want %v", h, got, h)
		}
	}

	nonStock := &UnmappedHandler{}
	if tag := m.tagFor(nonStock); tag != tagNone {
		t.Errorf("tagFor(non-stock handler) = %v, want tagNone", tag)
	}
	if h := m.handlerFor(tagNone); h != nil {
		t.Errorf("handlerFor(tagNone) = %v, want nil", h)
	}
}
