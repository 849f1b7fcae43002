// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package splx

import (
	"context"
	"fmt"
	"math"

	"github.com/curioloop/bmrm/qp"
)

// DefaultTermination is tight enough for the duality gap of the outer bundle iteration
// to be dominated by the cutting plane model rather than by the inner solve.
var DefaultTermination = Termination{
	MaxIterations: 1 << 24,
	TolAbs:        0,
	TolRel:        1e-9,
	Threshold:     math.Inf(-1),
}

// Backend adapts Solve to qp.Backend.
// It keeps no state between calls and can be shared by concurrent optimizers.
type Backend struct {
	Stop Termination
}

// New returns a Backend with the given stopping criteria.
// Zero fields of stop are replaced with DefaultTermination values.
func New(stop Termination) *Backend {
	if stop.MaxIterations <= 0 {
		stop.MaxIterations = DefaultTermination.MaxIterations
	}
	if stop.TolRel <= 0 && stop.TolAbs <= 0 {
		stop.TolRel = DefaultTermination.TolRel
	}
	if stop.Threshold == 0 {
		stop.Threshold = DefaultTermination.Threshold
	}
	return &Backend{Stop: stop}
}

// Solve implements qp.Backend. The warm start in alpha is required to lie on the simplex.
func (s *Backend) Solve(_ context.Context, p *qp.Problem, alpha []float64) (qp.Result, error) {
	if err := qp.Check(p, alpha, feasTol); err != nil {
		return qp.Result{Status: int(BadArgument)}, fmt.Errorf("%w: %w: %w", qp.ErrFailed, ErrBadArgument, err)
	}

	state := Solve(p.H, p.B, one, false, alpha, s.Stop)
	res := qp.Result{
		Objective: state.QP,
		NumIter:   state.NumIter,
		Status:    int(state.Status),
	}
	switch {
	case state.Status == BadArgument:
		return res, fmt.Errorf("%w: %w", qp.ErrFailed, ErrBadArgument)
	case !state.Status.Converged():
		return res, fmt.Errorf("%w: %w after %d iterations (gap %g)",
			qp.ErrFailed, ErrNotConverged, state.NumIter, state.QP-state.QD)
	}
	return res, nil
}
