package score

import "testing"

func TestNewIDUniqueAndOrdered(t *testing.T) {
	prev := NewID()
	seen := map[string]bool{prev: true}
	for i := 0; i < 100; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		if id <= prev {
			t.Fatalf("id %s not after %s", id, prev)
		}
		seen[id] = true
		prev = id
	}
}
