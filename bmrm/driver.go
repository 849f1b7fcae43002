// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bmrm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/curioloop/bmrm/qp"
	"gonum.org/v1/gonum/floats"
)

// iterDriver runs the outer iteration of one Fit call.
type iterDriver struct {
	optimizer *Optimizer
	workspace *Workspace
	start     time.Time

	risk, fp, fd float64
	wdist        float64

	qp        qp.Result
	solveTime time.Duration
}

// evaluate calls the oracle at 𝐖, leaving R(𝐖) and the subgradient in the workspace,
// rejects non-finite values and computes Fp = ½𝛌‖𝐖‖² + R(𝐖).
func (d *iterDriver) evaluate() error {
	o, w := d.optimizer, d.workspace
	clear(w.grad)
	risk, err := o.oracle.Risk(w.w, w.grad)
	switch {
	case err != nil:
		return fmt.Errorf("%w: iteration %d: %w", ErrOracle, w.iter, err)
	case math.IsNaN(risk) || math.IsInf(risk, 0):
		return fmt.Errorf("%w: iteration %d: risk is %g", ErrOracle, w.iter, risk)
	}
	for i, v := range w.grad {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: iteration %d: subgradient[%d] is %g", ErrOracle, w.iter, i, v)
		}
	}
	d.risk = risk
	d.fp = risk + half*o.lambda*floats.Dot(w.w, w.w)
	return nil
}

// insert adds the cutting plane R(𝐖) + ⟨𝐚,𝐕-𝐖⟩ = ⟨𝐚,𝐕⟩ - 𝐛ₜ obtained at the current 𝐖
// and extends 𝐇 by one row and column. The dual is warm started with [𝛃; 0].
func (d *iterDriver) insert() Status {
	o, w := d.optimizer, d.workspace
	slot, err := w.store.Add(w.grad)
	if errors.Is(err, ErrBufferExhausted) {
		return BufferExhausted
	} else if err != nil {
		panic(err)
	}

	w.rows = append(w.rows, w.store.Row(slot))
	w.b = append(w.b, floats.Dot(w.grad, w.w)-d.risk)
	w.beta = append(w.beta, zero)
	if len(w.beta) == 1 {
		w.beta[0] = one
	}
	w.icp.push()
	w.gram.extend(w.rows, o.lambda)
	return Running
}

// solve minimizes ½𝛃ᵀ𝐇𝛃 + 𝐛ᵀ𝛃 over the simplex starting from the current 𝛃.
func (d *iterDriver) solve(ctx context.Context) error {
	o, w := d.optimizer, d.workspace
	p := qp.Problem{H: w.gram.view(), B: w.b, Lambda: o.lambda}
	start := time.Now()
	res, err := o.solver.Solve(ctx, &p, w.beta)
	d.solveTime = time.Since(start)
	d.qp = res
	if err != nil {
		return fmt.Errorf("%w: iteration %d: %w", ErrSolver, w.iter, err)
	}
	d.fd = -res.Objective
	return nil
}

// recoverW computes 𝐖 = -∑𝛃ᵢ𝐚ᵢ/𝛌 and the distance to the previous 𝐖.
func (d *iterDriver) recoverW() {
	o, w := d.optimizer, d.workspace
	copy(w.wPrev, w.w)
	clear(w.w)
	for i, a := range w.rows {
		if beta := w.beta[i]; beta != zero {
			floats.AddScaled(w.w, -beta/o.lambda, a)
		}
	}
	d.wdist = floats.Distance(w.w, w.wPrev, 2)
}

// checkConvergence applies the stopping rules, the absolute tolerance first.
func (d *iterDriver) checkConvergence() Status {
	o, w := d.optimizer, d.workspace
	gap := d.fp - d.fd
	switch {
	case gap <= o.stop.TolAbs:
		return ConvAbsTol
	case gap <= o.stop.TolRel*math.Abs(d.fp):
		return ConvRelTol
	case w.iter >= o.stop.MaxIterations:
		return IterLimit
	}
	return Running
}

// removeInactive evicts the planes that stayed inactive for too long.
func (d *iterDriver) removeInactive() int {
	o, w := d.optimizer, d.workspace
	w.evict = w.icp.selectForEviction(w.evict[:0], o.icp.CleanAfter, o.icp.MinAge)
	if len(w.evict) == 0 {
		return 0
	}
	if log := o.logger; log.enable(LogTrace) {
		log.log("ICP: removing %d of %d cutting planes at %v\n", len(w.evict), w.gram.n, w.evict)
	}
	if mass := w.clean(w.evict); mass > zero {
		if log := o.logger; log.enable(LogTrace) {
			log.log("ICP: rescaled dual weights after removing mass %.3e\n", mass)
		}
	}
	return len(w.evict)
}

// snapshot captures the current iteration before any cutting plane is removed.
func (d *iterDriver) snapshot() Record {
	w := d.workspace
	return Record{
		Iter:       w.iter,
		Fp:         d.fp,
		Fd:         d.fd,
		Risk:       d.risk,
		WDist:      d.wdist,
		NumActive:  w.gram.n,
		NumNonZero: nonZero(w.beta),
		QPIter:     d.qp.NumIter,
		QPStatus:   d.qp.Status,
		SolveTime:  d.solveTime,
		Elapsed:    time.Since(d.start),
	}
}

func (d *iterDriver) commit(r Record) {
	o, w := d.optimizer, d.workspace
	w.history = append(w.history, r)
	if o.observer != nil {
		o.observer.Observe(r)
	}
	d.printIter(r)
}

// mainLoop is the outer iteration. The oracle call that yields Fp at the new 𝐖
// also yields the cutting plane inserted for the next iteration.
func (d *iterDriver) mainLoop(ctx context.Context) (task Status, err error) {

	o, w := d.optimizer, d.workspace

	d.fd = math.Inf(-1)
	d.printInit()

	if err = d.evaluate(); err != nil {
		d.fp = math.NaN()
		task = OracleFailure
		d.printExit(task, err)
		return
	}
	d.commit(d.snapshot())
	task = d.insert()

	for task == Running {

		if err = ctx.Err(); err != nil {
			err = fmt.Errorf("bmrm: canceled before iteration %d: %w", w.iter+1, err)
			task = Canceled
			break
		}

		w.iter++

		if err = d.solve(ctx); err != nil {
			task = SolverFailure
			break
		}

		if o.icp.Enabled {
			w.icp.update(w.beta, o.icp.Epsilon)
		}

		d.recoverW()

		if err = d.evaluate(); err != nil {
			copy(w.w, w.wPrev)
			task = OracleFailure
			break
		}

		task = d.checkConvergence()

		rec := d.snapshot()
		if task == Running && o.icp.Enabled && w.iter%o.icp.CleanEvery == 0 {
			rec.NumEvicted = d.removeInactive()
		}
		d.commit(rec)

		if task == Running {
			task = d.insert()
		}
	}

	d.printExit(task, err)
	return
}

func (d *iterDriver) printInit() {
	o := d.optimizer
	log := o.logger
	if log.enable(LogLast) {
		log.log("BMRM: N = %d, lambda = %g, BufSize = %d, TolRel = %g, TolAbs = %g, ICP = %t\n",
			o.n, o.lambda, o.bufSize, o.stop.TolRel, o.stop.TolAbs, o.icp.Enabled)
	}
	if log.enable(LogEval) {
		log.out("   it        tim          Fp          Fd     Fp-Fd   nCP   nzA  QPit QPflag\n")
	}
}

func (d *iterDriver) printIter(r Record) {
	log := d.optimizer.logger
	if !log.enable(LogEval) {
		return
	}
	gap := r.Fp - r.Fd
	tim := r.Elapsed.Seconds()
	log.log("%4d: tim=%.3f, Fp=%f, Fd=%f, (Fp-Fd)=%f, (Fp-Fd)/Fp=%f, R=%f, nCP=%d, nzA=%d, QPexitflag=%d\n",
		r.Iter, tim, r.Fp, r.Fd, gap, gap/r.Fp, r.Risk, r.NumActive, r.NumNonZero, r.QPStatus)
	log.out(" %4d %10.3f %11.4e %11.4e %9.2e %5d %5d %5d %6d\n",
		r.Iter, tim, r.Fp, r.Fd, gap, r.NumActive, r.NumNonZero, r.QPIter, r.QPStatus)
	if log.enable(LogTrace) {
		log.log("      |W-W_prev| = %.5e, QP time = %v\n", r.WDist, r.SolveTime)
	}
}

// printExit logs the final statistics and exit conditions of the optimization process.
func (d *iterDriver) printExit(task Status, err error) {
	o, w := d.optimizer, d.workspace
	log := o.logger
	if !log.enable(LogLast) {
		return
	}

	log.log("\n           * * *\n")
	log.log("Tit   = total number of iterations\n")
	log.log("nCP   = number of cutting planes held at exit\n")
	log.log("nzA   = number of cutting planes with non-zero dual weight\n")
	log.log("Nrm   = number of cutting planes removed as inactive\n")
	log.log("Fp    = final primal objective\n")
	log.log("Fd    = final dual objective\n")
	log.log("\n           * * *\n")
	log.log("\n   N      Tit    nCP    nzA    Nrm        Fp           Fd\n")
	log.log("%5d %8d %6d %6d %6d %12.5e %12.5e\n",
		o.n, w.iter, w.gram.n, nonZero(w.beta), w.evicted, d.fp, d.fd)

	log.log("\n%s\n", task)
	if err != nil {
		log.log(" %v\n", err)
	}
}
