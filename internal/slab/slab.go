// Package slab implements a generation-counted arena: a dense slice of slots
// that hands out small, comparable Handle values in place of pointers. A
// Handle embeds both a slot index and a generation counter, so a Handle
// obtained before a slot was freed and reused is detected as stale rather
// than silently resolving to the new occupant.
//
// Slab is not safe for concurrent use; like pkg/state, it assumes a
// single-threaded cooperative executor (the backend dispatcher) owns it,
// and relies on the caller to serialize access.
package slab

import "fmt"

// Handle identifies a value stored in a Slab. The zero Handle never refers to
// a live value (slot 0's first generation is 1, not 0), so a zero Handle can
// be used as a sentinel "no handle" value.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// String renders the handle as "index@generation", useful for log lines.
func (h Handle) String() string {
	return fmt.Sprintf("%d@%d", h.index, h.generation)
}

// slot holds one occupant of the arena, if any, along with the generation
// that will be stamped onto the next Handle issued for this index.
type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Slab is a generational arena of values of type T.
type Slab[T any] struct {
	slots []slot[T]
	free  []uint32
}

// New creates an empty Slab.
func New[T any]() *Slab[T] {
	return &Slab[T]{}
}

// Insert stores value in the arena and returns a Handle that can later be
// used to retrieve, update, or remove it.
func (s *Slab[T]) Insert(value T) Handle {
	// Reuse a freed slot if one is available, otherwise grow the arena.
	var index uint32
	if n := len(s.free); n > 0 {
		index = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		index = uint32(len(s.slots))
		s.slots = append(s.slots, slot[T]{generation: 1})
	}

	slotPtr := &s.slots[index]
	slotPtr.value = value
	slotPtr.occupied = true
	if slotPtr.generation == 0 {
		slotPtr.generation = 1
	}

	return Handle{index: index, generation: slotPtr.generation}
}

// Get retrieves the value associated with h. The second return value is
// false if h is stale (its slot has since been removed and possibly reused)
// or out of range.
func (s *Slab[T]) Get(h Handle) (T, bool) {
	var zero T
	if int(h.index) >= len(s.slots) {
		return zero, false
	}
	slotPtr := &s.slots[h.index]
	if !slotPtr.occupied || slotPtr.generation != h.generation {
		return zero, false
	}
	return slotPtr.value, true
}

// Set replaces the value associated with h, returning false if h is stale.
func (s *Slab[T]) Set(h Handle, value T) bool {
	if int(h.index) >= len(s.slots) {
		return false
	}
	slotPtr := &s.slots[h.index]
	if !slotPtr.occupied || slotPtr.generation != h.generation {
		return false
	}
	slotPtr.value = value
	return true
}

// Remove deletes the value associated with h, freeing its slot for reuse
// with a bumped generation. It returns false if h was already stale.
func (s *Slab[T]) Remove(h Handle) bool {
	if int(h.index) >= len(s.slots) {
		return false
	}
	slotPtr := &s.slots[h.index]
	if !slotPtr.occupied || slotPtr.generation != h.generation {
		return false
	}

	var zero T
	slotPtr.value = zero
	slotPtr.occupied = false
	slotPtr.generation++
	s.free = append(s.free, h.index)

	return true
}

// Len reports the number of live (occupied) entries.
func (s *Slab[T]) Len() int {
	return len(s.slots) - len(s.free)
}

// Range calls fn for every live entry, in index order. fn should not mutate
// the Slab.
func (s *Slab[T]) Range(fn func(Handle, T)) {
	for i := range s.slots {
		slotPtr := &s.slots[i]
		if slotPtr.occupied {
			fn(Handle{index: uint32(i), generation: slotPtr.generation}, slotPtr.value)
		}
	}
}
