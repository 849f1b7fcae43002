// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import (
	"context"
	"fmt"
	"math"

	"github.com/curioloop/bmrm/qp"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultTol     = 1e-12
	DefaultMaxIter = 100

	feasTol = 1e-9
)

// SimplexQP solves 𝚖𝚒𝚗 ½ 𝛂ᵀ𝐇𝛂 + 𝐛ᵀ𝛂 subject to 𝛂 ≥ 0 and ∑𝛂ᵢ = 1 as a sequence of LDP problems.
//
// Adding σ𝟏𝟏ᵀ to 𝐇 shifts the objective by the constant σ/2 on the simplex, so write 𝐇 + σ𝟏𝟏ᵀ = 𝐆𝐆ᵀ
// with σ = 𝚖𝚊𝚡(1, 𝐇ᵢᵢ), where 𝐆 is built from the eigen decomposition of 𝐇 and a constant column √σ𝟏.
// The problem is dual to
//
//	𝚖𝚊𝚡 t - f(t),  f(t) = 𝚖𝚒𝚗 ½‖ 𝐮 ‖₂² subject to 𝐆𝐮 ≥ t𝟏 - 𝐛
//
// f is convex with f'(t) = ∑𝛌ᵢ(t), where 𝛌 ≥ 0 are the LDP multipliers, and the solution is 𝛂 = 𝛌(t*)
// at the level t* where ∑𝛌ᵢ = 1. The constant column keeps every level feasible.
//
// The level is found by regula falsi (Illinois variant) on ∑𝛌ᵢ(t) - 1, which is piecewise linear in t.
// A rank deficient 𝐇 makes ∑𝛌ᵢ jump at t*, then 𝛂 interpolates the multipliers at both ends of the bracket.
//
// SimplexQP keeps no state between calls and can be shared by concurrent optimizers.
// The warm start is only checked for feasibility.
type SimplexQP struct {
	// Tol bounds |∑𝛌ᵢ - 1| and the relative width of the level bracket at termination.
	Tol float64
	// MaxIter limits the number of LDP solves.
	MaxIter int
	// NNLSMaxIter limits every NNLS solve (3n when not positive).
	NNLSMaxIter int
}

// NewSimplexQP returns a SimplexQP with the default parameters.
func NewSimplexQP() *SimplexQP {
	return &SimplexQP{Tol: DefaultTol, MaxIter: DefaultMaxIter}
}

func (s *SimplexQP) params() (tol float64, maxIter int) {
	tol, maxIter = s.Tol, s.MaxIter
	if !(tol > 0) {
		tol = DefaultTol
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	return
}

// factor returns 𝐆 as an n × r column-major matrix with 𝐆𝐆ᵀ = 𝐇 + σ𝟏𝟏ᵀ.
// Eigenvalues below n·eps relative to the largest one are dropped.
func factor(h mat.Symmetric, sigma float64) ([]float64, int, bool) {
	n := h.SymmetricDim()

	var es mat.EigenSym
	if !es.Factorize(h, true) {
		return nil, 0, false
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)

	cut := float64(n) * eps * math.Max(one, floats.Max(values))
	g := make([]float64, 0, n*(n+1))
	for j, v := range values {
		if v <= cut {
			continue
		}
		v = math.Sqrt(v)
		for i := 0; i < n; i++ {
			g = append(g, vectors.At(i, j)*v)
		}
	}
	sigma = math.Sqrt(sigma)
	for i := 0; i < n; i++ {
		g = append(g, sigma)
	}
	return g, len(g) / n, true
}

// Solve implements qp.Backend.
func (s *SimplexQP) Solve(ctx context.Context, p *qp.Problem, alpha []float64) (qp.Result, error) {
	if err := qp.Check(p, alpha, feasTol); err != nil {
		return qp.Result{Status: int(BadArgument)}, fmt.Errorf("%w: %w", qp.ErrFailed, err)
	}

	n := p.Dim()
	if n == 1 {
		alpha[0] = one
		return qp.Result{Objective: qp.Objective(p.H, p.B, alpha), Status: int(HasSolution)}, nil
	}

	tol, maxIter := s.params()

	sigma := one
	for i := 0; i < n; i++ {
		sigma = math.Max(sigma, p.H.At(i, i))
	}
	g, r, ok := factor(p.H, sigma)
	if !ok {
		return qp.Result{Status: int(EigenFailed)}, fmt.Errorf("%w: %w", qp.ErrFailed, ErrFactorize)
	}

	dist := NewDistance(n, r, g, n)
	dist.MaxIter = s.NNLSMaxIter
	u := make([]float64, r)

	res := qp.Result{Status: int(LevelExceedMaxIter)}
	fail := func(err error) (qp.Result, error) {
		res.Objective = qp.Objective(p.H, p.B, alpha)
		return res, fmt.Errorf("%w: %w", qp.ErrFailed, err)
	}

	// mass solves LDP at level t and stores the multipliers in dst.
	mass := func(t float64, dst []float64) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		res.NumIter++
		if _, mode := dist.Level(t, p.B, u, dst); mode != HasSolution {
			res.Status = int(mode)
			return 0, fmt.Errorf("%w: %v", ErrNoSolution, mode)
		}
		return floats.Sum(dst), nil
	}

	// 𝐮 = 0 is optimal up to the level 𝚖𝚒𝚗 𝐛ᵢ
	lo, hi := floats.Min(p.B), zero
	sLo, sHi := zero, zero
	lamLo, lamHi, lam := make([]float64, n), make([]float64, n), make([]float64, n)

	for step := sigma; ; step *= two {
		if res.NumIter >= maxIter {
			return fail(fmt.Errorf("%w after %d iterations", ErrNotConverged, res.NumIter))
		}
		hi = lo + step
		var err error
		if sHi, err = mass(hi, lamHi); err != nil {
			return fail(err)
		}
		if sHi >= one {
			break
		}
		lo, sLo = hi, sHi
		lamLo, lamHi = lamHi, lamLo
	}

	fLo, fHi := sLo-one, sHi-one
	side := 0
	for sHi-one > tol && one-sLo > tol && hi-lo > tol*math.Max(one, math.Max(math.Abs(lo), math.Abs(hi))) {
		if res.NumIter >= maxIter {
			return fail(fmt.Errorf("%w after %d iterations", ErrNotConverged, res.NumIter))
		}
		t := hi - fHi*(hi-lo)/(fHi-fLo)
		if !(t > lo && t < hi) {
			t = (lo + hi) / two
		}
		st, err := mass(t, lam)
		if err != nil {
			return fail(err)
		}
		if st < one {
			lo, sLo, fLo = t, st, st-one
			lamLo, lam = lam, lamLo
			if side < 0 {
				fHi /= two
			}
			side = -1
		} else {
			hi, sHi, fHi = t, st, st-one
			lamHi, lam = lam, lamHi
			if side > 0 {
				fLo /= two
			}
			side = 1
		}
	}

	// ∑𝛂ᵢ = 1 on the segment between both multipliers
	theta := (sHi - one) / (sHi - sLo)
	for i := range alpha {
		alpha[i] = theta*lamLo[i] + (one-theta)*lamHi[i]
	}
	floats.Scale(one/floats.Sum(alpha), alpha)

	res.Status = int(HasSolution)
	res.Objective = qp.Objective(p.H, p.B, alpha)
	return res, nil
}
