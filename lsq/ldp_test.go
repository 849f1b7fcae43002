// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// Origin: https://www.netlib.org/lawson-hanson/all (PROG6)
func TestLDP(t *testing.T) {

	const m = 3
	const n = 2

	g := []float64{
		0.20718533228468983, 0.39218501461672955, -0.59937034690141933,
		-2.5576231892137238, 1.3511531307082973, 1.2064700585054264,
	}
	h := []float64{
		-1.3004115226337452, -0.083539094650205481, 0.38395061728395063,
	}

	x := make([]float64, n)
	lambda := make([]float64, m)

	norm, mode := LDP(m, n, g, m, h, x, lambda, 30)
	require.Equal(t, HasSolution, mode, mode.String())
	require.InDelta(t, 0.2850094185999581, norm, 1e-12)
	require.InDeltaSlice(t, []float64{-0.12680556318798736, 0.25524638652733850}, x, 1e-12)
	require.InDeltaSlice(t, []float64{0, 0, 0.21156462585034014}, lambda, 1e-12)

	// 𝐆𝐱 ≥ 𝐡
	for i := 0; i < m; i++ {
		require.GreaterOrEqual(t, g[i]*x[0]+g[i+m]*x[1], h[i]-1e-12)
	}
}

func TestLDPIncompatible(t *testing.T) {
	x := make([]float64, 1)

	// x ≥ 1 and -x ≥ 0
	norm, mode := LDP(2, 1, []float64{1, -1}, 2, []float64{1, 0}, x, nil, 0)
	require.Equal(t, ConsIncompatible, mode)
	require.True(t, math.IsNaN(norm))

	// x ≥ 1
	norm, mode = LDP(1, 1, []float64{1}, 1, []float64{1}, x, nil, 0)
	require.Equal(t, HasSolution, mode)
	require.InDelta(t, 1, x[0], 1e-15)
	require.InDelta(t, 1, norm, 1e-15)
}

func TestLDPArgument(t *testing.T) {
	_, mode := LDP(1, 0, nil, 1, nil, nil, nil, 0)
	require.Equal(t, BadArgument, mode)

	norm, mode := LDP(0, 1, nil, 1, nil, []float64{0}, nil, 0)
	require.Equal(t, OK, mode)
	require.Zero(t, norm)

	require.Panics(t, func() {
		LDP(2, 1, []float64{1, -1}, 2, []float64{1, 0}, make([]float64, 1), make([]float64, 1), 0)
	})
	require.Panics(t, func() {
		NewDistance(3, 1, []float64{1, -1}, 3)
	})
}

func TestDistanceLevel(t *testing.T) {
	// x ≥ t and x ≥ t + 1
	d := NewDistance(2, 1, []float64{1, 1}, 2)
	b := []float64{0, -1}
	x := make([]float64, 1)
	lambda := make([]float64, 2)

	norm, mode := d.Level(1, b, x, lambda)
	require.Equal(t, HasSolution, mode)
	require.InDelta(t, 2, x[0], 1e-14)
	require.InDelta(t, 2, norm, 1e-14)
	require.InDeltaSlice(t, []float64{0, 2}, lambda, 1e-14)

	// the origin is feasible
	norm, mode = d.Level(-2, b, x, lambda)
	require.Equal(t, HasSolution, mode)
	require.Zero(t, norm)
	require.Equal(t, []float64{0, 0}, lambda)

	// same as a fresh solve with 𝐡 = t𝟏 - 𝐛
	want := make([]float64, 1)
	_, mode = LDP(2, 1, []float64{1, 1}, 2, []float64{3, 4}, want, nil, 0)
	require.Equal(t, HasSolution, mode)
	_, mode = d.Level(3, b, x, nil)
	require.Equal(t, HasSolution, mode)
	require.Equal(t, want, x)
}

func TestNNLS(t *testing.T) {
	x := make([]float64, 2)
	w := make([]float64, 2)
	z := make([]float64, 3)
	index := make([]int, 2)

	// unconstrained minimizer is [-1, 2]
	a := []float64{1, 0, 1, 0, 1, 1}
	b := []float64{-1, 2, 1}
	rnorm, mode := NNLS(3, 2, a, 3, b, x, w, z, index, 0)
	require.Equal(t, HasSolution, mode)
	require.InDeltaSlice(t, []float64{0, 1.5}, x, 1e-12)
	require.InDelta(t, math.Sqrt(1.5), rnorm, 1e-12)
	require.LessOrEqual(t, w[0], 0.0)

	a = []float64{1, 0, 0, 1}
	b = []float64{1, -1}
	rnorm, mode = NNLS(2, 2, a, 2, b, x, w, z, index, 0)
	require.Equal(t, HasSolution, mode)
	require.InDeltaSlice(t, []float64{1, 0}, x, 1e-15)
	require.InDelta(t, 1, rnorm, 1e-15)

	_, mode = NNLS(3, 2, a, 2, b, x, w, z, index, 0)
	require.Equal(t, BadArgument, mode)
}

func TestHouseholder(t *testing.T) {
	v := []float64{3, 4}
	up := h1(0, 1, 2, v, 1)
	require.InDelta(t, -5, v[0], 1e-15)

	c := []float64{3, 4}
	h2(0, 1, 2, v, 1, up, c, 1, 1, 1)
	require.InDelta(t, -5, c[0], 1e-14)
	require.InDelta(t, 0, c[1], 1e-14)

	cc, ss, r := g1(3, 4)
	require.InDelta(t, 5, r, 1e-15)
	x, y := g2(cc, ss, 3, 4)
	require.InDelta(t, 5, x, 1e-14)
	require.InDelta(t, 0, y, 1e-14)
}
