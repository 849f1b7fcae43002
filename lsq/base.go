// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import "errors"

const (
	zero = 0.0
	one  = 1.0
	two  = 2.0
	eps  = float64(7)/3 - float64(4)/3 - 1.
)

type lsqMode int

const (
	OK lsqMode = iota
	// HasSolution problem solved successfully.
	HasSolution
	// BadArgument input dimension unacceptable.
	BadArgument
	// NNLSExceedMaxIter more than max iterations for solving NNLS
	NNLSExceedMaxIter
	// ConsIncompatible inequality constraints incompatible
	ConsIncompatible
	// EigenFailed the eigen decomposition of the Gram matrix failed
	EigenFailed
	// LevelExceedMaxIter more than max level iterations in SimplexQP
	LevelExceedMaxIter
)

func (m lsqMode) String() string {
	switch m {
	case OK:
		return "no constraints"
	case HasSolution:
		return "solution found"
	case BadArgument:
		return "bad argument"
	case NNLSExceedMaxIter:
		return "more than max iterations in NNLS"
	case ConsIncompatible:
		return "inequality constraints incompatible"
	case EigenFailed:
		return "eigen decomposition failed"
	case LevelExceedMaxIter:
		return "more than max level iterations"
	default:
		return "unknown mode"
	}
}

var (
	// ErrNoSolution is returned by SimplexQP when LDP did not produce a solution.
	ErrNoSolution = errors.New("lsq: least distance problem has no solution")
	// ErrFactorize is returned by SimplexQP when the Gram matrix could not be factored.
	ErrFactorize = errors.New("lsq: Gram matrix factorization failed")
	// ErrNotConverged is returned by SimplexQP when the level search did not settle.
	ErrNotConverged = errors.New("lsq: level search not converged")
)
