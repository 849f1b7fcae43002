// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package splx

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Termination specifies the stopping criteria of the simplex QP solver.
type Termination struct {
	// The iteration stop when the number of iteration exceeds limit.
	MaxIterations int
	// The iteration stop when QP - QD ≤ TolAbs.
	TolAbs float64
	// The iteration stop when QP - QD ≤ |QP| × TolRel.
	TolRel float64
	// The iteration stop when QP ≤ Threshold (use -Inf to disable).
	Threshold float64
}

// State describes the solver state on return.
type State struct {
	QP      float64  // Primal objective value.
	QD      float64  // Dual objective value.
	NumIter int      // Number of iterations performed.
	Status  splxMode // Stopping condition which terminated the solve.
}

// Solve minimizes a convex quadratic function over a scaled simplex
//
//	minimize QP(𝐱) = ½ 𝐱ᵀ𝐇𝐱 + 𝐟ᵀ𝐱 subject to
//	  - ∑𝐱ᵢ = b  (or ∑𝐱ᵢ ≤ b when ineq is true)
//	  - 𝐱ᵢ ≥ 0   (i = 1 ··· n)
//
// 𝐱 must be feasible on input and is updated in place.
//
// # Coordinate Updates
//
// Let 𝐝 = 𝐇𝐱 + 𝐟 be the gradient and u = 𝚊𝚛𝚐𝚖𝚒𝚗ᵢ 𝐝ᵢ.
// The Lagrange dual of QP gives the lower bound
//
//	QD(𝐱) = ½ 𝐱ᵀ(𝐟 - 𝐝) + b·𝚖𝚒𝚗ᵢ 𝐝ᵢ
//
// and the gap QP - QD = 𝐱ᵀ𝐝 - b·𝐝ᵤ ≥ 0 vanishes at the optimum.
//
// Every iteration moves mass between a pair (u,v) along 𝐱 + τ𝐱ᵥ(𝐞ᵤ - 𝐞ᵥ) with 0 < τ ≤ 1.
// For fixed u, v is the variable giving the largest improvement
//
//	num = 𝐱ᵥ(𝐝ᵥ - 𝐝ᵤ)
//	den = 𝐱ᵥ²(𝐇ᵤᵤ - 2𝐇ᵤᵥ + 𝐇ᵥᵥ)
//	improvement = num²/den  if num < den  else  num - ½den
//
// and the optimal step is τ = 𝚖𝚒𝚗(1, num/den). The gradient is maintained incrementally
// with one column of 𝐇 per update so each iteration costs O(n).
//
// For the inequality form a virtual variable 𝐱ₙₑ = b - ∑𝐱ᵢ ≥ 0 with zero gradient
// takes part in the pair selection.
//
// # Reference
//
// V. Franc, V. Hlavac: "A Novel Algorithm for Learning Support Vector Machines with Structured Output Spaces".
// Research Report K333 22/06, CTU-CMP-2006-04, 2006.
func Solve(h mat.Symmetric, f []float64, b float64, ineq bool, x []float64, stop Termination) (state State) {

	n := len(f)
	state.QP = math.Inf(1)
	state.QD = math.Inf(-1)
	state.Status = BadArgument

	if n == 0 || len(x) != n || b <= zero || stop.MaxIterations <= 0 {
		return
	}
	if r, c := h.Dims(); r != n || c != n {
		return
	}

	// virtual variable for transforming inequality to equality
	xNeq := b
	sum := zero
	for _, v := range x {
		if v < zero || math.IsNaN(v) {
			return
		}
		sum += v
	}
	if ineq {
		xNeq -= sum
		if xNeq < -feasTol*b {
			return
		}
		xNeq = math.Max(xNeq, zero)
	} else if math.Abs(sum-b) > feasTol*b {
		return
	}

	cols := newColumns(h)

	// 𝐝 = 𝐇𝐱 + 𝐟
	d := make([]float64, n)
	copy(d, f)
	for i, xi := range x {
		if xi > zero {
			floats.AddScaled(d, xi, cols.col(i))
		}
	}

	state.QP, state.QD = objectives(f, d, x, b, ineq)
	state.Status = running

	for state.Status == running {
		state.NumIter++

		// u = 𝚊𝚛𝚐𝚖𝚒𝚗ᵢ 𝐝ᵢ and δ = ∑𝐱ᵢ𝐝ᵢ - b·𝐝ᵤ
		u, delta := 0, zero
		for i, di := range d {
			delta += x[i] * di
			if di < d[u] {
				u = i
			}
		}
		if ineq && d[u] > zero {
			u = -1
		} else {
			delta -= b * d[u]
		}

		if delta > stop.TolAbs && delta > stop.TolRel*math.Abs(state.QP) {
			var improv float64
			if u != -1 {
				improv = updateToward(cols, d, x, u, &xNeq, ineq)
			} else {
				improv = updateToVirtual(cols, d, x, &xNeq)
			}
			state.QP -= improv
		}

		state.QP, state.QD = objectives(f, d, x, b, ineq)

		switch gap := state.QP - state.QD; {
		case gap <= math.Abs(state.QP)*stop.TolRel:
			state.Status = ConvRelTol
		case gap <= stop.TolAbs:
			state.Status = ConvAbsTol
		case state.QP <= stop.Threshold:
			state.Status = ReachThreshold
		case state.NumIter >= stop.MaxIterations:
			state.Status = ExceedMaxIter
		}
	}
	return
}

// relative feasibility slack accepted for the starting point
const feasTol = 1e-9

// columns is a dense copy of 𝐇 where column i is the contiguous slice data[i×n : (i+1)×n].
type columns struct {
	n    int
	data []float64
}

func newColumns(h mat.Symmetric) columns {
	n := h.SymmetricDim()
	c := columns{n: n, data: make([]float64, n*n)}
	if rs, ok := h.(mat.RawSymmetricer); ok {
		if raw := rs.RawSymmetric(); raw.Uplo == blas.Upper {
			for i := 0; i < n; i++ {
				row := raw.Data[i*raw.Stride : i*raw.Stride+n]
				for j := i; j < n; j++ {
					c.data[i*n+j] = row[j]
					c.data[j*n+i] = row[j]
				}
			}
			return c
		}
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := h.At(i, j)
			c.data[i*n+j] = v
			c.data[j*n+i] = v
		}
	}
	return c
}

func (c columns) col(i int) []float64 { return c.data[i*c.n : (i+1)*c.n] }

func (c columns) at(i, j int) float64 { return c.data[i*c.n+j] }

// objectives computes QP = ½𝐱ᵀ(𝐟+𝐝) and QD = ½𝐱ᵀ(𝐟-𝐝) + b·𝚖𝚒𝚗ᵢ𝐝ᵢ.
func objectives(f, d, x []float64, b float64, ineq bool) (qp, qd float64) {
	dmin := math.Inf(1)
	for i, xi := range x {
		qp += xi * (f[i] + d[i])
		qd += xi * (f[i] - d[i])
		dmin = math.Min(dmin, d[i])
	}
	qp *= half
	qd *= half
	if ineq {
		dmin = math.Min(dmin, zero)
	}
	qd += b * dmin
	return
}

// stepGain returns the improvement and the step τ of a one dimensional move
// whose linear and quadratic coefficients are num and den.
func stepGain(num, den float64) (gain, tau float64, ok bool) {
	switch {
	case den > zero:
		if num < den {
			gain = num * num / den
		} else {
			gain = num - half*den
		}
		return gain, math.Min(one, num/den), true
	case num > zero:
		// flat direction: the whole mass is moved
		return num, one, true
	default:
		return 0, 0, false
	}
}

// updateToward moves mass into variable u from the best donor v (or from the virtual variable).
func updateToward(h columns, d, x []float64, u int, xNeq *float64, ineq bool) float64 {
	hu := h.at(u, u)
	cu := h.col(u)
	improv, tau, v := math.Inf(-1), zero, -1
	for i, xi := range x {
		if xi > zero && i != u {
			num := xi * (d[i] - d[u])
			den := xi * xi * (hu - 2*cu[i] + h.at(i, i))
			if g, t, ok := stepGain(num, den); ok && g > improv {
				improv, tau, v = g, t, i
			}
		}
	}

	virtual := false
	if ineq && *xNeq > zero {
		num := -*xNeq * d[u]
		den := *xNeq * *xNeq * hu
		if g, t, ok := stepGain(num, den); ok && g > improv {
			improv, tau, virtual = g, t, true
		}
	}

	switch {
	case virtual:
		t := *xNeq * tau
		x[u] += t
		*xNeq -= t
		floats.AddScaled(d, t, cu)
	case v >= 0:
		t := x[v] * tau
		x[u] += t
		x[v] -= t
		cv := h.col(v)
		for i := range d {
			d[i] += t * (cu[i] - cv[i])
		}
	default:
		return zero
	}
	return improv
}

// updateToVirtual moves mass from the best variable v into the virtual variable
// when every gradient component is positive.
func updateToVirtual(h columns, d, x []float64, xNeq *float64) float64 {
	improv, tau, v := math.Inf(-1), zero, -1
	for i, xi := range x {
		if xi > zero {
			num := xi * d[i]
			den := xi * xi * h.at(i, i)
			if g, t, ok := stepGain(num, den); ok && g > improv {
				improv, tau, v = g, t, i
			}
		}
	}
	if v < 0 {
		return zero
	}
	t := x[v] * tau
	*xNeq += t
	x[v] -= t
	floats.AddScaled(d, -t, h.col(v))
	return improv
}
