package bitset

import "testing"

func TestSetTestMSBFirst(t *testing.T) {
	m := New(10)
	m.Set(0)
	if m.bits[0] != 0x80 {
		t.Errorf("bits[0] = %#x, want 0x80 (MSB-first bit 0)", m.bits[0])
	}
	m.Set(7)
	if m.bits[0] != 0x81 {
		t.Errorf("bits[0] = %#x, want 0x81", m.bits[0])
	}
}

func TestCountAndRank(t *testing.T) {
	m := New(8)
	m.Set(1)
	m.Set(3)
	m.Set(6)
	if got := m.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
	if got := m.Rank(3); got != 1 {
		t.Errorf("Rank(3) = %d, want 1", got)
	}
	if got := m.Rank(7); got != 3 {
		t.Errorf("Rank(7) = %d, want 3", got)
	}
}

func TestSlots(t *testing.T) {
	m := New(8)
	m.Set(5)
	m.Set(2)
	got := m.Slots()
	want := []int{2, 5}
	if len(got) != len(want) {
		t.Fatalf("Slots() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Slots()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestOutOfRangeIsNoop(t *testing.T) {
	m := New(4)
	m.Set(10) // must not panic
	if m.Test(10) {
		t.Error("Test(10) on a 4-slot mask should be false")
	}
}

func TestFromGlobal(t *testing.T) {
	global := New(4)
	global.Set(0)
	global.Set(3)
	localOf := map[int]int{0: 1, 1: 0, 2: 2, 3: 3}
	local := FromGlobal(global, func(g int) (int, bool) {
		s, ok := localOf[g]
		return s, ok
	}, 4)
	if !local.Test(1) || !local.Test(3) {
		t.Errorf("expected local slots 1 and 3 set, got %v", local.Slots())
	}
	if local.Count() != 2 {
		t.Errorf("Count() = %d, want 2", local.Count())
	}
}
