// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import (
	"math"
)

// Distance solves a family of LDP (Least Distance Programming) problems
//
//	𝚖𝚒𝚗 ‖ 𝐱 ‖₂ subject to 𝐆𝐱 ≥ 𝐡
//
// sharing the m × n matrix 𝐆 of any rank, with 𝐱 ∈ ℝⁿ and 𝐡 ∈ ℝᵐ.
//
// Each problem is reduced to NNLS with the (n+1) × m matrix 𝐀 = [𝐆 : 𝐡]ᵀ and the (n+1)-vector 𝐛 = [Oₙ : 1].
// Let 𝐮 be the NNLS solution and 𝐫 = 𝐀𝐮 - 𝐛 = [𝐆ᵀ𝐮 : 𝐡ᵀ𝐮 - 1]ᵀ its residual.
// Complementarity 𝐰ᵀ𝐮 = 0 of the NNLS dual vector gives ‖ 𝐫 ‖₂² = -𝐫ₙ₊₁, so the constraints are
// compatible exactly when ‖ 𝐫 ‖₂ > 0, in which case
//
//	𝐱 = 𝐆ᵀ𝐮 / (1 - 𝐡ᵀ𝐮)
//	𝛌 = 𝐮 / (1 - 𝐡ᵀ𝐮)
//
// where 𝛌 ≥ 0 are the multipliers of 𝐆𝐱 ≥ 𝐡 for the objective ½‖ 𝐱 ‖₂², that is 𝐱 = 𝐆ᵀ𝛌.
//
// 𝐆ᵀ is stored once, only the last row of 𝐀 changes between solves.
// A Distance is not safe for concurrent use.
//
// # References
//
//	C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition)
//	Chapters 23, Algorithm 23.27.
type Distance struct {
	m, n int

	gh []float64 // [𝐆 : 𝐡]ᵀ column-major with leading dimension n+1
	a  []float64 // NNLS copy of gh, overwritten by 𝐐𝐀

	b, z    []float64
	u, dual []float64
	index   []int

	// MaxIter limits every NNLS solve (3m when not positive).
	MaxIter int
}

// NewDistance copies the m × n column-major matrix 𝐆 with leading dimension mdg.
func NewDistance(m, n int, g []float64, mdg int) *Distance {
	if m <= 0 || n <= 0 || m > mdg || mdg*(n-1)+m > len(g) {
		panic("bound check error")
	}
	d := &Distance{
		m: m, n: n,
		gh:    make([]float64, m*(n+1)),
		a:     make([]float64, m*(n+1)),
		b:     make([]float64, n+1),
		z:     make([]float64, n+1),
		u:     make([]float64, m),
		dual:  make([]float64, m),
		index: make([]int, m),
	}
	for j := 0; j < m; j++ {
		dcopy(n, g[j:], mdg, d.gh[j*(n+1):], 1)
	}
	return d
}

// Solve solves the problem with right-hand side 𝐡 and stores the solution in x.
// The multipliers are stored in lambda unless it is nil.
func (d *Distance) Solve(h, x, lambda []float64) (xnorm float64, mode lsqMode) {
	if len(h) < d.m {
		panic("bound check error")
	}
	for j, v := range h[:d.m] {
		d.gh[j*(d.n+1)+d.n] = v
	}
	return d.solve(x, lambda)
}

// Level solves the problem with right-hand side 𝐡 = t𝟏 - 𝐛.
func (d *Distance) Level(t float64, b, x, lambda []float64) (xnorm float64, mode lsqMode) {
	if len(b) < d.m {
		panic("bound check error")
	}
	for j, v := range b[:d.m] {
		d.gh[j*(d.n+1)+d.n] = t - v
	}
	return d.solve(x, lambda)
}

func (d *Distance) solve(x, lambda []float64) (xnorm float64, mode lsqMode) {
	m, n := d.m, d.n
	if len(x) < n || (lambda != nil && len(lambda) < m) {
		panic("bound check error")
	}

	copy(d.a, d.gh)
	dzero(d.b[:n])
	d.b[n] = one

	var rnorm float64
	rnorm, mode = NNLS(n+1, m, d.a, n+1, d.b, d.u, d.dual, d.z, d.index, d.MaxIter)

	// 1 - 𝐡ᵀ𝐮 = -𝐫ₙ₊₁
	fac := one - ddot(m, d.gh[n:], n+1, d.u, 1)
	switch {
	case mode != HasSolution:
	case rnorm <= zero, math.IsNaN(fac), fac < eps:
		mode = ConsIncompatible
	}
	if mode != HasSolution {
		return math.NaN(), mode
	}

	fac = one / fac
	for i := 0; i < n; i++ {
		x[i] = ddot(m, d.gh[i:], n+1, d.u, 1) * fac
	}
	if lambda != nil {
		for j, u := range d.u {
			lambda[j] = u * fac
		}
	}
	return dnrm2(n, x, 1), mode
}

// LDP solves a single problem 𝚖𝚒𝚗 ‖ 𝐱 ‖₂ subject to 𝐆𝐱 ≥ 𝐡, see Distance.
//   - 𝐆 is m × n column-major matrix with leading dimension mdg
//   - lambda receives the m multipliers unless it is nil
//   - maxIter limits the NNLS iterations (3m when not positive)
func LDP(m, n int, g []float64, mdg int, h, x, lambda []float64, maxIter int) (xnorm float64, mode lsqMode) {
	if n <= 0 {
		return math.NaN(), BadArgument
	}
	if m <= 0 {
		return 0, OK
	}
	d := NewDistance(m, n, g, mdg)
	d.MaxIter = maxIter
	return d.Solve(h, x, lambda)
}
