// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import (
	"gonum.org/v1/gonum/blas/blas64"
)

// Level 1 routines with the reference BLAS calling convention used by the Lawson-Hanson kernels.
// Increments are positive and the slices start at the first element.

var impl = blas64.Implementation()

// daxpy computes 𝐲 += 𝛼𝐱.
func daxpy(n int, da float64, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 || da == zero {
		return
	}
	impl.Daxpy(n, da, dx, incx, dy, incy)
}

// ddot computes 𝐱ᵀ𝐲.
func ddot(n int, dx []float64, incx int, dy []float64, incy int) float64 {
	if n <= 0 {
		return zero
	}
	return impl.Ddot(n, dx, incx, dy, incy)
}

// dcopy copies 𝐱 to 𝐲.
func dcopy(n int, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 {
		return
	}
	impl.Dcopy(n, dx, incx, dy, incy)
}

// dnrm2 computes ‖𝐱‖₂ without undue overflow.
func dnrm2(n int, x []float64, incx int) float64 {
	if n < 1 || incx < 1 {
		return zero
	}
	return impl.Dnrm2(n, x, incx)
}

// dzero fills 𝐱 with zero.
func dzero(dx []float64) {
	clear(dx)
}
