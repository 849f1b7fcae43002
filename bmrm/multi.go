// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bmrm

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task is one independent model of a multi-model run.
type Task struct {
	Problem *Problem
	Logger  *Logger
	W0      []float64 // Optional starting point.
}

// FitAll optimizes independent problems concurrently, at most parallelism at a time
// (unlimited when parallelism ≤ 0). Every task owns its optimizer and workspace.
//
// All problems are validated before any of them starts. The results are index-aligned
// with tasks. The first failing task cancels the others, which then finish with status
// Canceled, and its error is returned.
func FitAll(ctx context.Context, tasks []Task, parallelism int) ([]*Result, error) {
	optimizers := make([]*Optimizer, len(tasks))
	for i, t := range tasks {
		if t.Problem == nil {
			return nil, fmt.Errorf("%w: task %d has no problem", ErrConfig, i)
		}
		o, err := t.Problem.New(t.Logger)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		if t.W0 != nil && len(t.W0) != o.n {
			return nil, fmt.Errorf("%w: task %d starting point has length %d, want %d", ErrConfig, i, len(t.W0), o.n)
		}
		optimizers[i] = o
	}

	results := make([]*Result, len(tasks))
	eg, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		eg.SetLimit(parallelism)
	}
	for i, o := range optimizers {
		eg.Go(func() error {
			res, err := o.Fit(ctx, tasks[i].W0, o.Init())
			results[i] = res
			if err != nil {
				return fmt.Errorf("task %d: %w", i, err)
			}
			return nil
		})
	}
	return results, eg.Wait()
}
