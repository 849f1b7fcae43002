// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bmrm

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func testWorkspace(t *testing.T, n, bufSize, workers int, lambda float64) *Workspace {
	p := Problem{
		N: n, Lambda: lambda, BufSize: bufSize, Workers: workers,
		Oracle: OracleFunc(func(w, g []float64) (float64, error) { return 0, nil }),
		Stop:   Termination{MaxIterations: 1},
	}
	o, err := p.New(nil)
	require.NoError(t, err)
	return o.Init()
}

// push inserts a plane the way the driver does.
func (w *Workspace) push(row []float64, b float64, lambda float64) {
	slot, err := w.store.Add(row)
	if err != nil {
		panic(err)
	}
	w.rows = append(w.rows, w.store.Row(slot))
	w.b = append(w.b, b)
	w.beta = append(w.beta, zero)
	w.icp.push()
	w.gram.extend(w.rows, lambda)
}

func requireGram(t *testing.T, w *Workspace, lambda float64) {
	n := len(w.rows)
	require.Equal(t, n, w.gram.n)
	require.Equal(t, n, w.store.Len())
	h := w.gram.view()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			require.InDelta(t, floats.Dot(w.rows[i], w.rows[j])/lambda, h.At(i, j), 1e-12, "H[%d][%d]", i, j)
		}
	}
	k := 0
	for slot, row := range w.store.All() {
		require.Same(t, &w.store.Row(slot)[0], &w.rows[k][0])
		require.Equal(t, row, w.rows[k])
		k++
	}
}

func TestTrackerUpdate(t *testing.T) {
	var tr icpTracker
	for i := 0; i < 4; i++ {
		tr.push()
	}

	tr.update([]float64{0.5, 0, 0.5, 0}, 0)
	tr.update([]float64{0, 0, 1, 0}, 0)
	require.Equal(t, []int{1, 2, 0, 2}, tr.counter)
	require.Equal(t, []int{2, 2, 2, 2}, tr.age)

	// the newest plane is never a candidate
	require.Equal(t, []int{1}, tr.selectForEviction(nil, 2, 1))
	require.Equal(t, []int{0, 1}, tr.selectForEviction(nil, 1, 1))
	require.Empty(t, tr.selectForEviction(nil, 1, 3))

	// epsilon turns small weights inactive
	tr.update([]float64{1e-9, 0, 1 - 1e-9, 0}, 1e-6)
	require.Equal(t, []int{2, 3, 0, 3}, tr.counter)

	tr.compact([]int{0, 2})
	require.Equal(t, []int{2, 0}, tr.counter)
	require.Equal(t, []int{3, 3}, tr.age)

	require.Panics(t, func() { tr.update([]float64{1}, 0) })
}

func TestClean(t *testing.T) {
	const lambda = 0.5
	rng := rand.New(rand.NewPCG(1, 2))
	w := testWorkspace(t, 3, 6, 0, lambda)

	for i := 0; i < 6; i++ {
		w.push([]float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}, float64(i), lambda)
	}
	copy(w.beta, []float64{0, 0.25, 0, 0.5, 0, 0.25})
	requireGram(t, w, lambda)

	mass := w.clean([]int{0, 2, 4})
	require.Zero(t, mass)
	require.Equal(t, []float64{1, 3, 5}, w.b)
	require.Equal(t, []float64{0.25, 0.5, 0.25}, w.beta)
	require.Equal(t, []int{1, 3, 5}, w.store.Slots(nil))
	require.Equal(t, 3, w.evicted)
	requireGram(t, w, lambda)

	// freed slots are reused and the Gram matrix keeps growing consistently
	w.push([]float64{1, 2, 3}, 6, lambda)
	require.Equal(t, []int{1, 3, 5, 0}, w.store.Slots(nil))
	requireGram(t, w, lambda)

	// removing dual mass rescales the remaining weights
	copy(w.beta, []float64{0.5, 0.25, 0.25, 0})
	mass = w.clean([]int{0})
	require.Equal(t, 0.5, mass)
	require.InDeltaSlice(t, []float64{0.5, 0.5, 0}, w.beta, 1e-15)
	require.Equal(t, []float64{3, 5, 6}, w.b)
	requireGram(t, w, lambda)

	// the whole mass gone puts it on the newest plane
	copy(w.beta, []float64{0.75, 0.25, 0})
	w.clean([]int{0, 1})
	require.Equal(t, []float64{1}, w.beta)
	requireGram(t, w, lambda)

	require.Panics(t, func() { w.clean([]int{0}) })
}

func TestGramParallel(t *testing.T) {
	const n, dim, lambda = 2*parallelRows + 7, 5, 3.0
	rng := rand.New(rand.NewPCG(3, 4))

	seq := testWorkspace(t, dim, n, 1, lambda)
	par := testWorkspace(t, dim, n, 4, lambda)
	for i := 0; i < n; i++ {
		row := make([]float64, dim)
		for k := range row {
			row[k] = rng.NormFloat64()
		}
		seq.push(row, 0, lambda)
		par.push(row, 0, lambda)
	}
	require.Equal(t, 4, par.gram.workers)
	require.True(t, mat.Equal(seq.gram.view(), par.gram.view()))
	requireGram(t, par, lambda)
}

func TestGramView(t *testing.T) {
	g := newGram(4, 1)
	rows := [][]float64{{1, 0}, {1, 1}}
	g.extend(rows[:1], 2)
	g.extend(rows, 2)

	v := g.view()
	require.Equal(t, 2, v.SymmetricDim())
	require.Equal(t, []float64{0.5, 0.5, 0.5, 1}, []float64{v.At(0, 0), v.At(0, 1), v.At(1, 0), v.At(1, 1)})

	// the view shares storage with the full matrix
	g.sym.SetSym(0, 1, 3)
	require.Equal(t, 3.0, v.At(1, 0))
}
