// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bmrm

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"golang.org/x/sync/errgroup"
)

// parallelRows is the smallest active set whose Gram row is split across workers.
const parallelRows = 64

// gram holds 𝐇ᵢⱼ = ⟨𝐚ᵢ,𝐚ⱼ⟩/𝛌 for the active cutting planes.
// The leading n×n block of sym is live, the rest is scratch.
type gram struct {
	sym     *mat.SymDense
	n       int
	workers int
}

func newGram(capacity, workers int) *gram {
	return &gram{sym: mat.NewSymDense(capacity, nil), workers: workers}
}

func (g *gram) reset() { g.n = 0 }

// view returns the live block sharing storage with g.
func (g *gram) view() *mat.SymDense {
	return g.sym.SliceSym(0, g.n).(*mat.SymDense)
}

// extend appends the row and column of the newest plane a = rows[n] where rows
// holds the active planes in list order, n = len(rows)-1.
func (g *gram) extend(rows [][]float64, lambda float64) {
	n := len(rows) - 1
	if n != g.n {
		panic("gram size does not match active planes")
	}
	a := rows[n]
	scale := one / lambda

	fill := func(lo, hi int) {
		for j := lo; j < hi; j++ {
			g.sym.SetSym(j, n, floats.Dot(a, rows[j])*scale)
		}
	}

	if g.workers > 1 && n >= parallelRows {
		var eg errgroup.Group
		eg.SetLimit(g.workers)
		chunk := (n + g.workers - 1) / g.workers
		for lo := 0; lo < n; lo += chunk {
			hi := min(lo+chunk, n)
			eg.Go(func() error {
				fill(lo, hi)
				return nil
			})
		}
		_ = eg.Wait()
	} else {
		fill(0, n)
	}

	g.sym.SetSym(n, n, floats.Dot(a, a)*scale)
	g.n++
}

// compact keeps the rows and columns listed in keep (strictly increasing) and
// moves them to the leading block. Entries are never recomputed.
func (g *gram) compact(keep []int) {
	for ni, oi := range keep {
		for nj := ni; nj < len(keep); nj++ {
			g.sym.SetSym(ni, nj, g.sym.At(oi, keep[nj]))
		}
	}
	g.n = len(keep)
}
