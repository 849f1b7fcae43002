// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qp declares the reduced QP sub-problem solved at every bundle iteration
//
//	minimize ½ 𝛂ᵀ𝐇𝛂 + 𝐛ᵀ𝛂 subject to 𝛂 ≥ 0 and ∑𝛂ᵢ = 1
//
// and the Backend contract that concrete solvers implement.
package qp

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrFailed is wrapped by backends when the solve did not reach a usable solution.
	ErrFailed = errors.New("qp: solver failed")
	// ErrDimension indicates that 𝐇, 𝐛 and 𝛂 disagree on the problem size.
	ErrDimension = errors.New("qp: dimension mismatch")
	// ErrInfeasible indicates that the warm start does not lie on the simplex.
	ErrInfeasible = errors.New("qp: warm start is not on the simplex")
)

// Problem is one instance of the reduced sub-problem.
type Problem struct {
	// H is the n×n Gram matrix of the active cutting planes already scaled by 1/𝛌.
	// Only symmetric storage is accepted, so 𝐇ᵢⱼ = 𝐇ⱼᵢ holds by construction.
	H mat.Symmetric
	// B is the n-vector linear term.
	B []float64
	// Lambda is the regularization constant 𝛌 the Gram matrix was scaled with.
	Lambda float64
}

// Dim returns the number of dual variables.
func (p *Problem) Dim() int {
	return len(p.B)
}

// Result reports the outcome of a Solve call.
type Result struct {
	// Objective is ½ 𝛂ᵀ𝐇𝛂 + 𝐛ᵀ𝛂 at the returned 𝛂.
	Objective float64
	// NumIter is the number of solver iterations.
	NumIter int
	// Status is the backend specific exit flag.
	Status int
}

// Backend solves the reduced sub-problem.
//
// On input alpha holds a feasible point (warm start) and on return it holds the solution.
// Implementations must be deterministic for identical input.
// A non-nil error wraps ErrFailed and is fatal for the caller.
type Backend interface {
	Solve(ctx context.Context, p *Problem, alpha []float64) (Result, error)
}

// Objective evaluates ½ 𝛂ᵀ𝐇𝛂 + 𝐛ᵀ𝛂.
func Objective(h mat.Symmetric, b, alpha []float64) float64 {
	n := len(alpha)
	if n == 0 {
		return 0
	}
	a := mat.NewVecDense(n, alpha)
	f := 0.5 * mat.Inner(a, h, a)
	for i, v := range alpha {
		f += b[i] * v
	}
	return f
}

// Check validates dimensions and that alpha lies on the simplex within tol.
func Check(p *Problem, alpha []float64, tol float64) error {
	n := p.Dim()
	if p.H == nil || n == 0 || len(alpha) != n {
		return ErrDimension
	}
	if r, c := p.H.Dims(); r != n || c != n {
		return ErrDimension
	}
	sum := 0.0
	for _, v := range alpha {
		if v < 0 || math.IsNaN(v) {
			return ErrInfeasible
		}
		sum += v
	}
	if math.Abs(sum-1) > tol {
		return ErrInfeasible
	}
	return nil
}
