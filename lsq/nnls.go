// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import (
	"math"
)

// NNLS (Non-Negative Least-Squares) solve a least-squares problem 𝚖𝚒𝚗‖ 𝐀𝐱 - 𝐛 ‖₂ subject to 𝐱 ≥ 0 with active-set method.
//   - 𝐀 is m × n column-major matrix (either m ≥ n or m < n is permitted)
//   - 𝐱 ∈ ℝⁿ
//   - 𝐛 ∈ ℝᵐ
//
// The indices are split into the zero set ℤ (𝐱ⱼ held at 0) and the passive set ℙ (𝐱ⱼ free).
// The dual vector 𝐰 = 𝐀ᵀ(𝐛 - 𝐀𝐱) is the negative gradient of ½‖ 𝐀𝐱 - 𝐛 ‖₂², and the
// Kuhn-Tucker conditions hold when 𝐰ⱼ = 0 for j ∈ ℙ and 𝐰ⱼ ≤ 0 for j ∈ ℤ.
//
// Every outer step moves t = 𝚊𝚛𝚐𝚖𝚊𝚡 { 𝐰ⱼ : j ∈ ℤ } into ℙ, after a Householder reflection
// of column t confirms that the unconstrained solution keeps 𝐱ₜ > 0.
// The columns of ℙ are kept upper triangular 𝐐𝐀ₚ = [𝐑ₚ : ೦]ᵀ, so the least-squares solution
// on ℙ is 𝐳 = 𝐑ₚ⁻¹(𝐐𝐛)ₚ. When some 𝐳ⱼ ≤ 0 the iterate moves to 𝐱 + α(𝐳 - 𝐱) with the largest
// feasible α, the variables that hit zero return to ℤ and 𝐑ₚ is re-triangularized with Givens rotations.
//
// On return 𝐚 and 𝐛 hold 𝐐𝐀 and 𝐐𝐛, and the residual norm is ‖ (𝐐𝐛)ₖ ‖₂ for k ∉ ℙ.
//
// # References
//
//	C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition)
//	Chapters 23, Algorithm 23.10.
func NNLS(
	m, n int,
	// initially contains the m × n matrix 𝐀, on return the product matrix 𝐐𝐀.
	a []float64, mda int,
	// initially contains the m-vector 𝐛, on return the product 𝐐𝐛.
	b []float64,
	// will contain the solution vector 𝐱 of primal problem.
	x []float64,
	// will contain the dual vector 𝐰.
	w []float64,
	// array of working space
	z []float64, index []int,
	// maximum number of iterations (3n when not positive)
	maxIter int) (float64, lsqMode) {

	const factor = 0.01

	if m <= 0 || n <= 0 || mda < m ||
		len(a) < mda*n || len(b) < m || len(x) < n || len(w) < n || len(z) < m || len(index) < n {
		return math.NaN(), BadArgument
	}

	if maxIter <= 0 {
		maxIter = 3 * n
	}

	np := 0 // num of elem in set ℙ
	z1 := 0 // start index of set ℤ

	// ℙ = index[:np] and ℤ = index[z1:]
	index = index[:n]
	for i := range index {
		index[i] = i
	}

	// Start from 𝐱 = O and all indices are initially in ℤ.
	dzero(x[:n])

	iter := 0
	term := func() (rnorm float64, mode lsqMode) {
		if np < m {
			rnorm = dnrm2(m-np, b[np:], 1)
		} else {
			dzero(w[:n])
		}
		if iter > maxIter {
			mode = NNLSExceedMaxIter
		} else {
			mode = HasSolution
		}
		return
	}

	for {
		// Quit if ℤ = ∅ or if m columns of 𝐀 have been triangularized.
		if z1 >= n || np >= m {
			return term()
		}

		// 𝐰ⱼ = (𝐀ᵀ𝐛)ⱼ for j ∈ ℤ since 𝐱ⱼ = 0 there.
		for _, j := range index[z1:] {
			w[j] = ddot(m-np, a[np+mda*j:], 1, b[np:], 1)
		}

		for {
			wmax, izmax := zero, 0
			for i, j := range index[z1:] {
				if w[j] > wmax {
					wmax, izmax = w[j], z1+i
				}
			}

			// Kuhn-Tucker conditions satisfied.
			if wmax <= zero {
				return term()
			}

			iz := izmax
			j := index[iz]
			aj := a[mda*j : mda*j+m : mda*j+m]

			asave := aj[np]
			up := h1(np, np+1, m, aj, 1)

			// Reject columns nearly dependent on ℙ.
			accept := false
			unorm := dnrm2(np, aj, 1)
			if math.Abs(aj[np])*factor >= unorm*eps {
				copy(z[:m], b[:m])
				h2(np, np+1, m, aj, 1, up, z, 1, 1, 1)
				accept = z[np]/aj[np] > zero
			}

			if !accept {
				aj[np] = asave
				w[j] = zero
				continue
			}

			copy(b[:m], z[:m])

			// Move j from ℤ to ℙ.
			index[iz] = index[z1]
			index[z1] = j
			z1++
			np++

			for _, jj := range index[z1:] {
				h2(np-1, np, m, aj, 1, up, a[jj*mda:], 1, mda, 1)
			}
			if np < m {
				dzero(aj[np:m])
			}
			w[j] = zero
			break
		}

		// Move variables out of ℙ until the least-squares solution on ℙ is positive.
		for {
			// 𝐳 = 𝐑ₚ⁻¹(𝐐𝐛)ₚ
			for ip, jj := np-1, -1; ip >= 0; ip-- {
				if jj >= 0 {
					daxpy(ip+1, -z[ip+1], a[jj*mda:], 1, z, 1)
				}
				jj = index[ip]
				z[ip] /= a[ip+jj*mda]
			}

			if iter++; iter > maxIter {
				return term()
			}

			// α = 𝚖𝚒𝚗 { 𝐱ⱼ/(𝐱ⱼ-𝐳ⱼ) : 𝐳ⱼ ≤ 0, j ∈ ℙ }
			alpha, jj := two, -1
			for ip, l := range index[:np] {
				if z[ip] <= zero {
					if t := -x[l] / (z[ip] - x[l]); alpha > t {
						alpha, jj = t, ip
					}
				}
			}

			if jj < 0 {
				for ip, idx := range index[:np] {
					x[idx] = z[ip]
				}
				break
			}

			// 𝐱 = 𝐱 + α(𝐳 - 𝐱)
			for ip, l := range index[:np] {
				x[l] += alpha * (z[ip] - x[l])
			}

			// Move index[jj] from ℙ to ℤ and restore the triangular form.
			i := index[jj]
			x[i] = zero
			for j := jj + 1; j < np; j++ {
				ii := index[j]
				ci := a[ii*mda:]
				index[j-1] = ii
				var cc, ss float64
				cc, ss, ci[j-1] = g1(ci[j-1], ci[j])
				ci[j] = zero
				for l := 0; l < n; l++ {
					if l != ii {
						cl := a[l*mda : l*mda+j+1 : l*mda+j+1]
						cl[j-1], cl[j] = g2(cc, ss, cl[j-1], cl[j])
					}
				}
				b[j-1], b[j] = g2(cc, ss, b[j-1], b[j])
			}
			np--
			z1--
			index[z1] = i

			copy(z[:m], b[:m])
		}
	}
}
