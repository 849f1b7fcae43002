// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package splx

import "errors"

const (
	zero = 0.0
	one  = 1.0
	half = 0.5
)

type splxMode int

const (
	// ExceedMaxIter the number of iterations reached Termination.MaxIterations.
	ExceedMaxIter splxMode = iota
	// ConvRelTol the duality gap satisfied QP - QD ≤ |QP| × TolRel.
	ConvRelTol
	// ConvAbsTol the duality gap satisfied QP - QD ≤ TolAbs.
	ConvAbsTol
	// ReachThreshold the primal objective satisfied QP ≤ Threshold.
	ReachThreshold
	// BadArgument input dimension unacceptable or starting point infeasible.
	BadArgument
)

// running marks an unfinished solve.
const running splxMode = -1

func (m splxMode) String() string {
	switch m {
	case ExceedMaxIter:
		return "maximal number of iterations reached"
	case ConvRelTol:
		return "relative tolerance reached"
	case ConvAbsTol:
		return "absolute tolerance reached"
	case ReachThreshold:
		return "objective value reached threshold"
	case BadArgument:
		return "bad argument"
	default:
		return "running"
	}
}

// Converged reports whether the mode is one of the stopping rules on the duality gap or threshold.
func (m splxMode) Converged() bool {
	return m == ConvRelTol || m == ConvAbsTol || m == ReachThreshold
}

var (
	// ErrNotConverged is returned by Backend when the solve ended on the iteration limit.
	ErrNotConverged = errors.New("splx: maximal number of iterations reached")
	// ErrBadArgument is returned by Backend for infeasible or mis-sized input.
	ErrBadArgument = errors.New("splx: bad argument")
)
