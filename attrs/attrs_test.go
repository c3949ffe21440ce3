package attrs

import "testing"

func TestListPreservesOrder(t *testing.T) {
	var l List
	l.Define("b", "2")
	l.Define("a", "1")
	l.Define("c", "3")

	got := l.All()
	want := []Attribute{{"b", "2"}, {"a", "1"}, {"c", "3"}}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestEmptyListAllReturnsNil(t *testing.T) {
	var l List
	if got := l.All(); got != nil {
		t.Errorf("All() on empty list = %+v, want nil", got)
	}
}
