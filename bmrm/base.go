// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bmrm

import "errors"

const (
	zero = 0.0
	one  = 1.0
	half = 0.5
)

// Status is the state of the outer iteration.
type Status int

const (
	// Running the iteration has not finished yet.
	Running Status = iota
	// ConvRelTol the duality gap satisfied Fp - Fd ≤ TolRel × |Fp|.
	ConvRelTol
	// ConvAbsTol the duality gap satisfied Fp - Fd ≤ TolAbs.
	ConvAbsTol
	// IterLimit the number of iterations reached Termination.MaxIterations.
	IterLimit
	// BufferExhausted the next cutting plane does not fit into the buffer.
	BufferExhausted
	// SolverFailure the reduced QP backend reported an error.
	SolverFailure
	// OracleFailure the risk oracle reported an error.
	OracleFailure
	// Canceled the context was done before the iteration finished.
	Canceled
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case ConvRelTol:
		return "CONVERGENCE: (Fp-Fd) <= TolRel*|Fp|"
	case ConvAbsTol:
		return "CONVERGENCE: (Fp-Fd) <= TolAbs"
	case IterLimit:
		return "STOP: TOTAL NO. of ITERATIONS REACHED LIMIT"
	case BufferExhausted:
		return "STOP: CUTTING PLANE BUFFER EXHAUSTED"
	case SolverFailure:
		return "ABNORMAL: REDUCED QP SOLVER FAILED"
	case OracleFailure:
		return "ABNORMAL: RISK ORACLE FAILED"
	case Canceled:
		return "STOP: CANCELED"
	default:
		return "UNKNOWN STATUS"
	}
}

// Converged reports whether one of the duality gap tolerances was met.
func (s Status) Converged() bool {
	return s == ConvRelTol || s == ConvAbsTol
}

var (
	// ErrConfig is wrapped by every validation error returned from Problem.New.
	ErrConfig = errors.New("bmrm: invalid configuration")
	// ErrSolver is wrapped when the reduced QP could not be solved.
	ErrSolver = errors.New("bmrm: reduced QP failed")
	// ErrOracle is wrapped when the risk oracle failed.
	ErrOracle = errors.New("bmrm: risk oracle failed")

	// ErrBufferExhausted is returned by Store.Add when no free slot is left.
	ErrBufferExhausted = errors.New("bmrm: cutting plane buffer exhausted")
	// ErrSlotNotActive is returned by Store.Remove for a free or out of range slot.
	ErrSlotNotActive = errors.New("bmrm: slot is not active")
	// ErrDimension is returned when a row does not match the store dimension.
	ErrDimension = errors.New("bmrm: dimension mismatch")
)
