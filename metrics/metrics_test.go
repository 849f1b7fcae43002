// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/curioloop/bmrm/bmrm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// quadratic is the risk ½∑dᵢ(𝐖ᵢ - 1)².
func quadratic(d ...float64) bmrm.OracleFunc {
	return func(w, g []float64) (float64, error) {
		risk := 0.0
		for i := range w {
			r := w[i] - 1
			risk += 0.5 * d[i] * r * r
			g[i] = d[i] * r
		}
		return risk, nil
	}
}

func problem(c *Collector, model string, d ...float64) *bmrm.Problem {
	return &bmrm.Problem{
		N:        len(d),
		Lambda:   1,
		BufSize:  100,
		Oracle:   quadratic(d...),
		Stop:     bmrm.Termination{MaxIterations: 100, TolRel: 1e-4},
		ICP:      bmrm.ICP{Enabled: true, CleanAfter: 2},
		Observer: c.Observer(model),
	}
}

func TestObserver(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry(), "test")
	require.NoError(t, err)

	o, err := problem(c, "m1", 1, 10, 0.1).New(nil)
	require.NoError(t, err)
	res, err := o.Fit(context.Background(), nil, o.Init())
	require.NoError(t, err)
	require.True(t, res.OK)
	c.Finish("m1", res)

	require.Equal(t, float64(res.NumIter), testutil.ToFloat64(c.iterations.WithLabelValues("m1")))
	require.Equal(t, float64(res.NumEvicted), testutil.ToFloat64(c.evictions.WithLabelValues("m1")))
	require.Equal(t, res.Fp, testutil.ToFloat64(c.primal.WithLabelValues("m1")))
	require.Equal(t, res.Fd, testutil.ToFloat64(c.dual.WithLabelValues("m1")))
	require.Equal(t, res.Fp-res.Fd, testutil.ToFloat64(c.gap.WithLabelValues("m1")))
	require.Equal(t, float64(res.NumActive), testutil.ToFloat64(c.active.WithLabelValues("m1")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("m1", "conv_rel_tol")))
	require.Equal(t, 1, testutil.CollectAndCount(c.solve))
}

func TestObserverStartingPoint(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry(), "test")
	require.NoError(t, err)

	c.Observer("m").Observe(bmrm.Record{Fp: 2, NumActive: 0})
	require.Equal(t, 2.0, testutil.ToFloat64(c.primal.WithLabelValues("m")))
	require.Zero(t, testutil.ToFloat64(c.iterations.WithLabelValues("m")))
	require.Zero(t, testutil.CollectAndCount(c.gap))

	c.Observer("m").Observe(bmrm.Record{Iter: 1, Fp: 1.5, Fd: 1, NumActive: 1, NumEvicted: 0, SolveTime: time.Millisecond})
	require.Equal(t, 0.5, testutil.ToFloat64(c.gap.WithLabelValues("m")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.iterations.WithLabelValues("m")))
}

func TestFitAllModels(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry(), "test")
	require.NoError(t, err)

	tasks := []bmrm.Task{
		{Problem: problem(c, "a", 1, 1)},
		{Problem: problem(c, "b", 1, 10, 0.1)},
	}
	results, err := bmrm.FitAll(context.Background(), tasks, 2)
	require.NoError(t, err)
	for i, model := range []string{"a", "b"} {
		c.Finish(model, results[i])
		require.Equal(t, float64(results[i].NumIter), testutil.ToFloat64(c.iterations.WithLabelValues(model)))
		require.Equal(t, results[i].Fp, testutil.ToFloat64(c.primal.WithLabelValues(model)))
	}
	require.Equal(t, 2, testutil.CollectAndCount(c.runs))
}

func TestRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg, "test")
	require.NoError(t, err)

	_, err = NewCollector(reg, "test")
	require.ErrorIs(t, err, ErrRegistration)

	_, err = NewCollector(reg, "other")
	require.NoError(t, err)
}

func TestStatusLabel(t *testing.T) {
	labels := map[string]bool{}
	for s := bmrm.Running; s <= bmrm.Canceled; s++ {
		labels[statusLabel(s)] = true
	}
	require.Len(t, labels, int(bmrm.Canceled)+1)
}
