package ids

import (
	"strings"
	"testing"
)

func TestNewIsSortableAndUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	prev := ""
	for i := 0; i < 1000; i++ {
		id := New()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
		if prev != "" && id <= prev {
			t.Fatalf("ids not monotonic: %s <= %s", id, prev)
		}
		prev = id
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("incident")
	if !strings.HasPrefix(id, "incident-") {
		t.Fatalf("unexpected id %s", id)
	}
	if len(Prefixed("")) != 26 {
		t.Fatalf("expected bare ulid when prefix is empty")
	}
}

func TestIntnBounds(t *testing.T) {
	for i := 0; i < 500; i++ {
		if v := Intn(10000); v < 0 || v >= 10000 {
			t.Fatalf("out of range: %d", v)
		}
	}
	if Intn(0) != 0 {
		t.Fatalf("expected 0 for non-positive bound")
	}
}
