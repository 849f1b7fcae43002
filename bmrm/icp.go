// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bmrm

import "gonum.org/v1/gonum/floats"

// icpTracker counts for every active cutting plane the consecutive iterations
// in which its dual weight stayed at or below ε (inactive cutting planes).
// Position k refers to the k-th plane of the active list.
type icpTracker struct {
	counter []int
	age     []int
}

func (t *icpTracker) reset() {
	t.counter = t.counter[:0]
	t.age = t.age[:0]
}

// push starts tracking a freshly inserted plane.
func (t *icpTracker) push() {
	t.counter = append(t.counter, 0)
	t.age = append(t.age, 0)
}

// update resets the counter of planes with βᵢ > ε and increments the others.
func (t *icpTracker) update(beta []float64, eps float64) {
	if len(beta) != len(t.counter) {
		panic("icp tracker size does not match dual vector")
	}
	for i, v := range beta {
		if v > eps {
			t.counter[i] = 0
		} else {
			t.counter[i]++
		}
		t.age[i]++
	}
}

// selectForEviction appends to dst the positions whose counter reached cleanAfter
// and whose age reached minAge. The newest plane is never selected.
func (t *icpTracker) selectForEviction(dst []int, cleanAfter, minAge int) []int {
	for i := 0; i < len(t.counter)-1; i++ {
		if t.counter[i] >= cleanAfter && t.age[i] >= minAge {
			dst = append(dst, i)
		}
	}
	return dst
}

func (t *icpTracker) compact(keep []int) {
	t.counter = compact(t.counter, keep)
	t.age = compact(t.age, keep)
}

// compact moves s[keep[k]] to s[k]; keep must be strictly increasing.
func compact[T any](s []T, keep []int) []T {
	for ni, oi := range keep {
		s[ni] = s[oi]
	}
	return s[:len(keep)]
}

// clean evicts the planes at the given active positions (strictly increasing) and
// compacts 𝐇, 𝐛, 𝛃 and the tracker in place. When the evicted planes carried dual
// weight the remaining 𝛃 is rescaled onto the simplex.
// It returns the dual mass that was removed.
func (w *Workspace) clean(evict []int) (mass float64) {
	if len(evict) == 0 {
		return
	}
	n := w.gram.n
	if evict[len(evict)-1] >= n-1 {
		panic("bmrm: the newest cutting plane must not be evicted")
	}

	w.keep = w.keep[:0]
	pos, k := 0, 0
	for slot := range w.store.All() {
		if k < len(evict) && evict[k] == pos {
			if err := w.store.Remove(slot); err != nil {
				panic(err)
			}
			mass += w.beta[pos]
			k++
		} else {
			w.keep = append(w.keep, pos)
		}
		pos++
	}
	if pos != n || k != len(evict) {
		panic("bmrm: active list does not match the Gram matrix")
	}

	w.gram.compact(w.keep)
	w.icp.compact(w.keep)
	w.rows = compact(w.rows, w.keep)
	w.b = compact(w.b, w.keep)
	w.beta = compact(w.beta, w.keep)
	w.evicted += len(evict)

	if mass > zero {
		if sum := floats.Sum(w.beta); sum > zero {
			floats.Scale(one/sum, w.beta)
		} else {
			clear(w.beta)
			w.beta[len(w.beta)-1] = one
		}
	}
	return
}
