package slab

import "testing"

func TestInsertAndGet(t *testing.T) {
	s := New[string]()
	h := s.Insert("alpha")

	value, ok := s.Get(h)
	if !ok || value != "alpha" {
		t.Fatalf("Get(%v) = %q, %v; want %q, true", h, value, ok, "alpha")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestRemoveInvalidatesHandle(t *testing.T) {
	s := New[string]()
	h := s.Insert("alpha")

	if !s.Remove(h) {
		t.Fatal("Remove returned false for a live handle")
	}
	if _, ok := s.Get(h); ok {
		t.Fatal("Get succeeded after Remove")
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestReusedSlotDetectsStaleHandle(t *testing.T) {
	s := New[string]()
	first := s.Insert("alpha")
	s.Remove(first)

	second := s.Insert("beta")
	if second.index != first.index {
		t.Fatalf("expected slot reuse, got index %d vs %d", second.index, first.index)
	}
	if second.generation == first.generation {
		t.Fatal("expected generation to change on slot reuse")
	}

	if _, ok := s.Get(first); ok {
		t.Fatal("stale handle resolved after slot reuse")
	}
	if value, ok := s.Get(second); !ok || value != "beta" {
		t.Fatalf("Get(second) = %q, %v; want beta, true", value, ok)
	}
}

func TestSetUpdatesValue(t *testing.T) {
	s := New[int]()
	h := s.Insert(1)

	if !s.Set(h, 2) {
		t.Fatal("Set returned false for a live handle")
	}
	if value, _ := s.Get(h); value != 2 {
		t.Fatalf("Get(h) = %d, want 2", value)
	}
}

func TestSetFailsForStaleHandle(t *testing.T) {
	s := New[int]()
	h := s.Insert(1)
	s.Remove(h)

	if s.Set(h, 99) {
		t.Fatal("Set succeeded for a stale handle")
	}
}

func TestRangeVisitsOnlyLiveEntries(t *testing.T) {
	s := New[int]()
	a := s.Insert(1)
	s.Insert(2)
	s.Remove(a)
	s.Insert(3)

	seen := map[int]bool{}
	s.Range(func(_ Handle, v int) {
		seen[v] = true
	})

	if seen[1] {
		t.Error("removed entry visited by Range")
	}
	if !seen[2] || !seen[3] {
		t.Error("Range did not visit all live entries")
	}
}

func TestZeroHandleIsZero(t *testing.T) {
	var h Handle
	if !h.IsZero() {
		t.Error("zero-value Handle.IsZero() = false")
	}

	s := New[int]()
	if first := s.Insert(1); first.IsZero() {
		t.Error("first inserted handle unexpectedly reported as zero")
	}
}
