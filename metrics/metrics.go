// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exports the progress of bundle method runs as Prometheus metrics.
// Every series carries a "model" label so that concurrent FitAll tasks stay apart.
package metrics

import (
	"errors"
	"fmt"

	"github.com/curioloop/bmrm/bmrm"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrRegistration is returned when a metric cannot be registered.
var ErrRegistration = errors.New("metrics: registration failed")

// DefaultSolveBuckets covers reduced QP solves from tens of microseconds to seconds.
var DefaultSolveBuckets = []float64{
	0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
}

// Collector holds the metric vectors of all models.
// It is safe for concurrent use.
type Collector struct {
	iterations *prometheus.CounterVec
	evictions  *prometheus.CounterVec
	runs       *prometheus.CounterVec
	primal     *prometheus.GaugeVec
	dual       *prometheus.GaugeVec
	gap        *prometheus.GaugeVec
	active     *prometheus.GaugeVec
	solve      *prometheus.HistogramVec
}

// NewCollector creates the metric vectors under namespace and registers them with reg
// (prometheus.DefaultRegisterer when nil).
func NewCollector(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	model := []string{"model"}
	c := &Collector{
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bmrm", Name: "iterations_total",
			Help: "Outer iterations performed.",
		}, model),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bmrm", Name: "evicted_planes_total",
			Help: "Cutting planes removed as inactive.",
		}, model),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bmrm", Name: "runs_total",
			Help: "Finished runs by exit status.",
		}, []string{"model", "status"}),
		primal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "bmrm", Name: "primal_objective",
			Help: "Primal objective Fp of the last iteration.",
		}, model),
		dual: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "bmrm", Name: "dual_objective",
			Help: "Dual objective Fd of the last iteration.",
		}, model),
		gap: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "bmrm", Name: "duality_gap",
			Help: "Fp - Fd of the last iteration.",
		}, model),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "bmrm", Name: "active_planes",
			Help: "Cutting planes in the reduced QP.",
		}, model),
		solve: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "bmrm", Name: "qp_solve_seconds",
			Help:    "Wall time of the reduced QP solve.",
			Buckets: DefaultSolveBuckets,
		}, model),
	}

	for _, col := range []prometheus.Collector{
		c.iterations, c.evictions, c.runs, c.primal, c.dual, c.gap, c.active, c.solve,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRegistration, err)
		}
	}
	return c, nil
}

// Observer returns a bmrm.Observer recording the iterations of one model.
func (c *Collector) Observer(model string) bmrm.Observer {
	return bmrm.ObserverFunc(func(r bmrm.Record) {
		c.primal.WithLabelValues(model).Set(r.Fp)
		c.active.WithLabelValues(model).Set(float64(r.NumActive))
		if r.Iter == 0 { // Fd = -Inf at the starting point
			return
		}
		c.iterations.WithLabelValues(model).Inc()
		c.evictions.WithLabelValues(model).Add(float64(r.NumEvicted))
		c.dual.WithLabelValues(model).Set(r.Fd)
		c.gap.WithLabelValues(model).Set(r.Fp - r.Fd)
		c.solve.WithLabelValues(model).Observe(r.SolveTime.Seconds())
	})
}

// Finish counts a finished run by its exit status.
func (c *Collector) Finish(model string, res *bmrm.Result) {
	c.runs.WithLabelValues(model, statusLabel(res.Status)).Inc()
}

func statusLabel(s bmrm.Status) string {
	switch s {
	case bmrm.ConvRelTol:
		return "conv_rel_tol"
	case bmrm.ConvAbsTol:
		return "conv_abs_tol"
	case bmrm.IterLimit:
		return "iter_limit"
	case bmrm.BufferExhausted:
		return "buffer_exhausted"
	case bmrm.SolverFailure:
		return "solver_failure"
	case bmrm.OracleFailure:
		return "oracle_failure"
	case bmrm.Canceled:
		return "canceled"
	default:
		return "running"
	}
}
