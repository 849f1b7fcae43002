// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package splx

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/curioloop/bmrm/qp"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func identity(n int) *mat.SymDense {
	h := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		h.SetSym(i, i, 1)
	}
	return h
}

// gramOf returns 𝐀ᵀ𝐀 for a row-major k×n matrix 𝐀.
func gramOf(k, n int, a []float64) *mat.SymDense {
	h := mat.NewSymDense(n, nil)
	h.SymOuterK(1, mat.NewDense(k, n, a).T())
	return h
}

func TestSolveCentroid(t *testing.T) {
	x := []float64{1, 0}
	s := Solve(identity(2), []float64{0, 0}, 1, false, x, DefaultTermination)

	require.True(t, s.Status.Converged(), s.Status.String())
	require.InDeltaSlice(t, []float64{0.5, 0.5}, x, 1e-9)
	require.InDelta(t, 0.25, s.QP, 1e-9)
	require.LessOrEqual(t, s.QD, s.QP+1e-12)
}

func TestSolveVertex(t *testing.T) {
	x := []float64{0.5, 0.5}
	s := Solve(identity(2), []float64{-1, 0}, 1, false, x, DefaultTermination)

	require.True(t, s.Status.Converged())
	require.InDeltaSlice(t, []float64{1, 0}, x, 1e-12)
	require.InDelta(t, -0.5, s.QP, 1e-12)
}

func TestSolveInequality(t *testing.T) {
	x := []float64{0.5, 0.5}
	s := Solve(identity(2), []float64{1, 1}, 1, true, x, DefaultTermination)

	require.True(t, s.Status.Converged())
	require.InDeltaSlice(t, []float64{0, 0}, x, 1e-12)
	require.InDelta(t, 0, s.QP, 1e-12)
}

func TestSolveKKT(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	const k, n = 3, 12

	a := make([]float64, k*n)
	for i := range a {
		a[i] = rng.NormFloat64()
	}
	h := gramOf(k, n, a)
	f := make([]float64, n)
	for i := range f {
		f[i] = rng.NormFloat64()
	}
	x := make([]float64, n)
	x[0] = 1

	s := Solve(h, f, 1, false, x, DefaultTermination)
	require.True(t, s.Status.Converged(), s.Status.String())

	sum := 0.0
	for _, v := range x {
		require.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	require.InDelta(t, 1, sum, 1e-12)

	// 𝐝ᵢ = min 𝐝 for every support variable
	d := make([]float64, n)
	mat.NewVecDense(n, d).MulVec(h, mat.NewVecDense(n, x))
	dmin := math.Inf(1)
	for i := range d {
		d[i] += f[i]
		dmin = math.Min(dmin, d[i])
	}
	for i, v := range x {
		if v > 1e-3 {
			require.InDelta(t, dmin, d[i], 1e-4)
		}
	}
	require.InDelta(t, s.QP, qp.Objective(h, f, x), 1e-9)
}

func TestSolveDeterministic(t *testing.T) {
	h := gramOf(2, 4, []float64{1, -1, 2, 0.5, 0, 3, -1, 1})
	f := []float64{-1, 0.2, 0.3, -0.4}

	x1 := []float64{0.25, 0.25, 0.25, 0.25}
	x2 := []float64{0.25, 0.25, 0.25, 0.25}
	s1 := Solve(h, f, 1, false, x1, DefaultTermination)
	s2 := Solve(h, f, 1, false, x2, DefaultTermination)

	require.Equal(t, s1, s2)
	require.Equal(t, x1, x2)
}

func TestSolveBadArgument(t *testing.T) {
	h := identity(2)
	require.Equal(t, BadArgument, Solve(h, []float64{0, 0}, 1, false, []float64{0.3, 0.3}, DefaultTermination).Status)
	require.Equal(t, BadArgument, Solve(h, []float64{0, 0}, 1, false, []float64{1}, DefaultTermination).Status)
	require.Equal(t, BadArgument, Solve(h, []float64{0, 0}, 1, false, []float64{1.5, -0.5}, DefaultTermination).Status)
	require.Equal(t, BadArgument, Solve(h, []float64{0, 0}, 1, true, []float64{1, 1}, DefaultTermination).Status)
}

func TestBackend(t *testing.T) {
	p := &qp.Problem{H: identity(4), B: make([]float64, 4), Lambda: 1}

	alpha := []float64{1, 0, 0, 0}
	res, err := New(Termination{}).Solve(context.Background(), p, alpha)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0.25, 0.25, 0.25, 0.25}, alpha, 1e-6)
	require.InDelta(t, 0.125, res.Objective, 1e-9)

	alpha = []float64{1, 0, 0, 0}
	_, err = New(Termination{MaxIterations: 1, TolRel: 1e-12}).Solve(context.Background(), p, alpha)
	require.ErrorIs(t, err, qp.ErrFailed)
	require.ErrorIs(t, err, ErrNotConverged)

	_, err = New(Termination{}).Solve(context.Background(), p, []float64{0.5, 0, 0, 0})
	require.ErrorIs(t, err, qp.ErrFailed)
	require.ErrorIs(t, err, ErrBadArgument)
	require.ErrorIs(t, err, qp.ErrInfeasible)
}

// symmetric hides the raw storage of the wrapped matrix.
type symmetric struct{ mat.Symmetric }

func TestColumns(t *testing.T) {
	big := mat.NewSymDense(5, nil)
	for i := 0; i < 5; i++ {
		for j := i; j < 5; j++ {
			big.SetSym(i, j, float64(10*i+j))
		}
	}
	h := big.SliceSym(0, 3)

	for _, m := range []mat.Symmetric{h, symmetric{h}} {
		c := newColumns(m)
		require.Equal(t, 3, c.n)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				require.Equal(t, h.At(i, j), c.at(i, j))
				require.Equal(t, h.At(j, i), c.col(i)[j])
			}
		}
	}
}

func TestSolveStorage(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	const k, n = 3, 12
	a := make([]float64, k*n)
	for i := range a {
		a[i] = rng.NormFloat64()
	}
	f := make([]float64, n)
	for i := range f {
		f[i] = rng.NormFloat64()
	}

	// the live block of a larger matrix, as held by the bundle optimizer
	big := mat.NewSymDense(n+4, nil)
	h := gramOf(k, n, a)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			big.SetSym(i, j, h.At(i, j))
		}
	}
	sliced := big.SliceSym(0, n)

	x1 := make([]float64, n)
	x1[0] = 1
	x2 := append([]float64(nil), x1...)
	s1 := Solve(sliced, f, 1, false, x1, DefaultTermination)
	s2 := Solve(symmetric{h}, f, 1, false, x2, DefaultTermination)

	require.True(t, s1.Status.Converged(), s1.Status.String())
	require.Equal(t, s1, s2)
	require.Equal(t, x1, x2)
}
