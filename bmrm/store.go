// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bmrm

import (
	"fmt"
	"iter"
)

// nilSlot terminates the active list.
const nilSlot = -1

// Store is a fixed capacity pool of cutting planes.
//
// Rows live in one flat buffer of capacity × dim values. Occupied slots are chained
// into a doubly linked list in insertion order, so the k-th element of the list is
// the k-th row and column of the Gram matrix maintained by the optimizer.
//
//	slot:   0     1     2     3
//	free:   F     T     F     F
//	next:   2     -     3    -1     head = 0
//	prev:  -1     -     0     2     tail = 3
//
// A Store is not safe for concurrent mutation. Concurrent readers are fine.
type Store struct {
	dim  int
	data []float64
	free []bool
	prev []int
	next []int
	head int
	tail int
	size int
}

// NewStore allocates a store for capacity rows of length dim.
func NewStore(capacity, dim int) (*Store, error) {
	if capacity <= 0 || dim <= 0 {
		return nil, fmt.Errorf("%w: store capacity %d and dimension %d must be positive", ErrConfig, capacity, dim)
	}
	s := &Store{
		dim:  dim,
		data: make([]float64, capacity*dim),
		free: make([]bool, capacity),
		prev: make([]int, capacity),
		next: make([]int, capacity),
	}
	s.Reset()
	return s, nil
}

// Reset frees every slot.
func (s *Store) Reset() {
	for i := range s.free {
		s.free[i] = true
		s.prev[i] = nilSlot
		s.next[i] = nilSlot
	}
	s.head, s.tail, s.size = nilSlot, nilSlot, 0
}

// Add copies row into the lowest free slot and links it at the tail of the active list.
func (s *Store) Add(row []float64) (slot int, err error) {
	if len(row) != s.dim {
		return nilSlot, fmt.Errorf("%w: row length %d, want %d", ErrDimension, len(row), s.dim)
	}
	slot = nilSlot
	for i, f := range s.free {
		if f {
			slot = i
			break
		}
	}
	if slot == nilSlot {
		return nilSlot, ErrBufferExhausted
	}

	copy(s.data[slot*s.dim:(slot+1)*s.dim], row)
	s.free[slot] = false
	s.prev[slot], s.next[slot] = s.tail, nilSlot
	if s.tail != nilSlot {
		s.next[s.tail] = slot
	} else {
		s.head = slot
	}
	s.tail = slot
	s.size++
	return slot, nil
}

// Remove unlinks slot from the active list and marks it free.
// The stored values are left untouched.
func (s *Store) Remove(slot int) error {
	if !s.Active(slot) {
		return fmt.Errorf("%w: %d", ErrSlotNotActive, slot)
	}
	p, n := s.prev[slot], s.next[slot]
	if p != nilSlot {
		s.next[p] = n
	} else {
		s.head = n
	}
	if n != nilSlot {
		s.prev[n] = p
	} else {
		s.tail = p
	}
	s.prev[slot], s.next[slot] = nilSlot, nilSlot
	s.free[slot] = true
	s.size--
	return nil
}

// All returns the occupied slots and their rows in insertion order.
// The current slot may be removed while iterating.
func (s *Store) All() iter.Seq2[int, []float64] {
	return func(yield func(int, []float64) bool) {
		for slot := s.head; slot != nilSlot; {
			next := s.next[slot]
			if !yield(slot, s.Row(slot)) {
				return
			}
			slot = next
		}
	}
}

// Row returns a view of the values held in slot, or nil when slot is out of range.
// The content of a free slot is stale.
func (s *Store) Row(slot int) []float64 {
	if slot < 0 || slot >= len(s.free) {
		return nil
	}
	lo, hi := slot*s.dim, (slot+1)*s.dim
	return s.data[lo:hi:hi]
}

// Slots appends the occupied slots in insertion order to dst.
func (s *Store) Slots(dst []int) []int {
	for slot := s.head; slot != nilSlot; slot = s.next[slot] {
		dst = append(dst, slot)
	}
	return dst
}

// Active reports whether slot holds a cutting plane.
func (s *Store) Active(slot int) bool {
	return slot >= 0 && slot < len(s.free) && !s.free[slot]
}

// Len returns the number of occupied slots.
func (s *Store) Len() int { return s.size }

// Cap returns the number of slots.
func (s *Store) Cap() int { return len(s.free) }

// Dim returns the row length.
func (s *Store) Dim() int { return s.dim }

// Full reports whether Add would fail with ErrBufferExhausted.
func (s *Store) Full() bool { return s.size == len(s.free) }

// Head returns the oldest occupied slot or -1.
func (s *Store) Head() int { return s.head }

// Tail returns the newest occupied slot or -1.
func (s *Store) Tail() int { return s.tail }
