// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import (
	"math"
)

// Given m-vector v, h1 construct m×m Householder vector u and scalar s for transformation Qv ≡ y.
// The Householder matrix could be computed with Q = Iₘ - b⁻¹uuᵀ where b = suₚ.
//
// lₚ is the index of the pivot element, which should satisfy 0 ≤ lₚ < l₁.
// If l₁ < m, the transformation will be constructed to zero out elements indexed from l₁ through m.
// But if l₁ ≥ m, the subroutine does an identity transformation.
//
// On input, v contains the pivot vector, ive is the storage increment between elements.
// On output, v contains quantities defining the vector u of the Householder transformation.
// The u[lₚ] element will be return separately.
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition)
// Chapters 10.
func h1(p, l, m int, v []float64, ive int) (up float64) {

	// Check 0 ≤ lₚ < l₁ ≤ m-1
	if p < 0 || p >= l || l >= m {
		return
	}

	lp, l1, lm := p*ive, l*ive, (m-1)*ive
	if ive <= 0 || lp >= len(v) || l1 >= len(v) || lm >= len(v) {
		panic("bound check error")
	}

	// Find max(v)
	maxV := math.Abs(v[lp])
	for j := l1; j <= lm; j += ive {
		maxV = math.Max(math.Abs(v[j]), maxV)
	}
	if maxV <= zero { // v is zero vector
		return
	}

	// Compute (vₚ² + ∑vᵢ²)¹ᐟ² (l ≤ i < m) with normalized v
	invV := one / maxV
	sumV := math.Pow(v[lp]*invV, 2)
	for j := l1; j <= lm; j += ive {
		sumV += math.Pow(v[j]*invV, 2)
	}

	// Compute -σ(vₚ² + ∑vᵢ²)¹ᐟ² where σ = -sgn(vₚ)
	s := maxV * math.Sqrt(sumV)
	if v[lp] > zero {
		s = -s
	}

	up = v[lp] - s // uₚ = vₚ - s
	v[lp] = s      // yₚ = s
	return
}

// h2 apply m×m Householder transformation Qc = c + b⁻¹(uᵀc) × u to columns of matrix C.
//
// On input, c contains a matrix which will be regarded as a set of vectors to which the
// Householder transformation is to be applied.
// On output, c contains the set of transformed vectors.
//
//   - ice: the storage increment between elements of vector in c.
//   - icv: the storage increment between vectors in c.
//   - ncv: the number of vectors in c to be transformed. If ncv ≤ 0, no operations are done on c.
func h2(p, l, m int, u []float64, iue int, up float64, c []float64, ice, icv, ncv int) {

	// Check 0 ≤ lₚ < l₁ ≤ m-1
	if p < 0 || p >= l || l >= m || ncv <= 0 {
		return
	}

	// Q = Iₘ when b = suₚ = 0
	b := u[p*iue] * up
	if b >= zero {
		return
	}
	b = one / b

	base, incr := ice*p, ice*(l-p)
	l1, lm := l*iue, (m-1)*iue
	last := base + icv*(ncv-1)
	if iue <= 0 || l1 >= len(u) || lm >= len(u) || last >= len(c) {
		panic("bound check error")
	}

	for j := base; j <= last; j += icv {
		// The j-th column vector c = Cᵀⱼ
		c1, cm := j+incr, j+incr+(m-l-1)*ice
		if cm >= len(c) {
			panic("bound check error")
		}
		// Compute uᵀc = uₚcₚ + ∑cᵢuᵢ (l ≤ i < m)
		sm := c[j] * up
		for iu, ic := l1, c1; iu <= lm; iu, ic = iu+iue, ic+ice {
			sm += c[ic] * u[iu]
		}
		if sm == zero {
			continue
		}
		sm *= b // b⁻¹(uᵀc)
		c[j] += sm * up
		for iu, ic := l1, c1; iu <= lm; iu, ic = iu+iue, ic+ice {
			c[ic] += sm * u[iu]
		}
	}
}

// g1 compute 2×2 Givens rotation matrix G
//
//	G ⎡x₁⎤ ≡ ⎡ c s⎤⎡x₁⎤ = ⎡(x₁²+x₂²)¹ᐟ²⎤ ≡ ⎡r⎤
//	  ⎣x₂⎦   ⎣-s c⎦⎣x₂⎦   ⎣     ０     ⎦   ⎣0⎦
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition)
// Chapters 3.
func g1(a, b float64) (c, s, sig float64) {
	if xa, xb := math.Abs(a), math.Abs(b); xa > xb {
		xr := b / a
		yr := math.Sqrt(1 + xr*xr)
		c = math.Copysign(1/yr, a)
		s = c * xr
		sig = xa * yr
	} else if xb > 0 {
		xr := a / b
		yr := math.Sqrt(1 + xr*xr)
		s = math.Copysign(1/yr, b)
		c = s * xr
		sig = xb * yr
	} else {
		s = 1
	}
	return
}

// g2 apply the Givens rotation matrix G computed by g1
//
//	G ⎡z₁⎤ =⎡ c s⎤⎡z₁⎤ = ⎡ cz₁ + sz₂⎤
//	  ⎣z₂⎦  ⎣-s c⎦⎣z₂⎦   ⎣-sz₁ + cz₂⎦
func g2(c, s float64, x, y float64) (xr, yr float64) {
	xr = c*x + s*y
	yr = -s*x + c*y
	return
}
