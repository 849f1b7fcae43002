// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bmrm

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"time"

	"github.com/curioloop/bmrm/qp"
	"github.com/curioloop/bmrm/splx"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only the exit summary
	LogLast LogLevel = 0
	// LogEval print also Fp, Fd and the size of the active set at every iteration
	LogEval LogLevel = 1
	// LogTrace print also the evicted cutting planes and the reduced QP status
	LogTrace LogLevel = 99
)

// Logger handles logging output for the optimizer.
// Note the writers must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
	Out   io.Writer // Writer for the iteration table.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

func (l *Logger) out(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Out, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Out, format)
	}
}

// Termination specifies the stopping criteria for the outer iteration.
type Termination struct {
	// The iteration stop when the number of iteration reaches limit.
	MaxIterations int
	// The iteration stop when the duality gap satisfied:
	//   Fp - Fd ≤ 𝚝𝚘𝚕𝚁𝚎𝚕 × |Fp|
	TolRel float64
	// The iteration stop when the duality gap satisfied:
	//   Fp - Fd ≤ 𝚝𝚘𝚕𝙰𝚋𝚜
	TolAbs float64
}

// ICP configures the removal of inactive cutting planes.
type ICP struct {
	Enabled bool
	// A plane becomes a candidate after CleanAfter consecutive iterations with 𝛃ᵢ ≤ Epsilon.
	CleanAfter int
	// Candidates are removed every CleanEvery iterations (0 means CleanAfter).
	CleanEvery int
	// Planes younger than MinAge iterations are kept (0 means 1).
	MinAge int
	// Dual weights not above Epsilon count as inactive.
	Epsilon float64
}

// Observer receives one Record per outer iteration, including the initial point.
// Observe is called from the goroutine running Fit.
type Observer interface {
	Observe(Record)
}

// ObserverFunc adapts an ordinary function to Observer.
type ObserverFunc func(Record)

func (f ObserverFunc) Observe(r Record) { f(r) }

// Problem specifies the regularized risk minimization
//
//	minimize F(𝐖) = ½𝛌‖𝐖‖² + R(𝐖)
//
// solved by the bundle method.
type Problem struct {
	N        int         // The problem dimension
	Lambda   float64     // The regularization constant 𝛌
	BufSize  int         // Maximal number of cutting planes held at once
	Bias     bool        // Whether the last coordinate of 𝐖 is the model bias
	Oracle   Oracle      // Risk and subgradient
	Stop     Termination // Stop condition
	ICP      ICP         // Optional inactive cutting plane removal
	Solver   qp.Backend  // Optional reduced QP backend (splx by default)
	Workers  int         // Optional number of goroutines extending the Gram matrix
	Observer Observer    // Optional per-iteration callback
}

// New creates a new bundle method optimizer for given problem.
func (p *Problem) New(logger *Logger) (optimizer *Optimizer, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}
	if logger.Out == nil {
		logger.Out = os.Stderr
	}

	icp, solver := p.ICP, p.Solver
	if icp.CleanEvery == 0 {
		icp.CleanEvery = icp.CleanAfter
	}
	if icp.MinAge == 0 {
		icp.MinAge = 1
	}
	if solver == nil {
		solver = splx.New(splx.DefaultTermination)
	}

	switch {
	case p.N <= 0:
		err = fmt.Errorf("%w: problem dimension must greater than 0", ErrConfig)
	case p.Bias && p.N < 2:
		err = fmt.Errorf("%w: bias requires problem dimension greater than 1", ErrConfig)
	case !(p.Lambda > zero) || math.IsInf(p.Lambda, 1):
		err = fmt.Errorf("%w: lambda must be a finite number greater than 0", ErrConfig)
	case p.BufSize <= 0:
		err = fmt.Errorf("%w: buffer size must greater than 0", ErrConfig)
	case p.Oracle == nil:
		err = fmt.Errorf("%w: risk oracle is required", ErrConfig)
	case p.Stop.MaxIterations <= 0:
		err = fmt.Errorf("%w: max iteration must greater than 0", ErrConfig)
	case !(p.Stop.TolRel >= zero):
		err = fmt.Errorf("%w: relative tolerance must not less than 0", ErrConfig)
	case !(p.Stop.TolAbs >= zero):
		err = fmt.Errorf("%w: absolute tolerance must not less than 0", ErrConfig)
	case p.Workers < 0:
		err = fmt.Errorf("%w: workers must not less than 0", ErrConfig)
	case icp.Enabled && icp.CleanAfter <= 0:
		err = fmt.Errorf("%w: clean after must greater than 0", ErrConfig)
	case icp.Enabled && icp.CleanEvery < 0:
		err = fmt.Errorf("%w: clean every must not less than 0", ErrConfig)
	case icp.Enabled && icp.MinAge < 0:
		err = fmt.Errorf("%w: min age must not less than 0", ErrConfig)
	case icp.Enabled && !(icp.Epsilon >= zero):
		err = fmt.Errorf("%w: inactivity epsilon must not less than 0", ErrConfig)
	}

	if err != nil {
		return
	}

	optimizer = &Optimizer{
		iterSpec{
			n:        p.N,
			lambda:   p.Lambda,
			bufSize:  p.BufSize,
			bias:     p.Bias,
			oracle:   p.Oracle,
			stop:     p.Stop,
			icp:      icp,
			solver:   solver,
			workers:  p.Workers,
			observer: p.Observer,
			logger:   *logger,
		},
	}
	return
}

// iterSpec is the validated, immutable part of a problem.
type iterSpec struct {
	n        int
	lambda   float64
	bufSize  int
	bias     bool
	oracle   Oracle
	stop     Termination
	icp      ICP
	solver   qp.Backend
	workers  int
	observer Observer
	logger   Logger
}

// Optimizer implemented using the bundle method for regularized risk minimization.
type Optimizer struct {
	iterSpec
}

// Workspace contains the state of one optimization run.
// Given problem dimension n and buffer size m,
// total work space is approximately float64[m×n + m² + 6×m + 4×n].
type Workspace struct {
	n, m int

	store *Store
	gram  *gram
	icp   icpTracker

	rows [][]float64 // active planes in list order
	b    []float64   // affine offsets aligned with rows
	beta []float64   // dual weights aligned with rows

	w, wPrev, grad []float64

	keep, evict []int

	iter    int
	evicted int
	history []Record
}

// Init allocate the workspace for the optimizer.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one optimizer.
func (o *Optimizer) Init() *Workspace {
	store, err := NewStore(o.bufSize, o.n)
	if err != nil {
		panic(err)
	}
	m := o.bufSize
	return &Workspace{
		n: o.n, m: m,
		store: store,
		gram:  newGram(m, o.workers),
		icp: icpTracker{
			counter: make([]int, 0, m),
			age:     make([]int, 0, m),
		},
		rows:  make([][]float64, 0, m),
		b:     make([]float64, 0, m),
		beta:  make([]float64, 0, m),
		w:     make([]float64, o.n),
		wPrev: make([]float64, o.n),
		grad:  make([]float64, o.n),
		keep:  make([]int, 0, m),
		evict: make([]int, 0, m),
	}
}

func (w *Workspace) reset() {
	w.store.Reset()
	w.gram.reset()
	w.icp.reset()
	w.rows = w.rows[:0]
	w.b = w.b[:0]
	w.beta = w.beta[:0]
	w.iter, w.evicted = 0, 0
	w.history = nil
}

// Record describes one outer iteration.
type Record struct {
	Iter       int           // Iteration number (0 is the starting point).
	Fp         float64       // Primal objective ½𝛌‖𝐖‖² + R(𝐖).
	Fd         float64       // Dual objective of the reduced QP (-Inf at the starting point).
	Risk       float64       // Empirical risk R(𝐖).
	WDist      float64       // Distance ‖𝐖ₖ - 𝐖ₖ₋₁‖.
	NumActive  int           // Number of cutting planes in the reduced QP.
	NumNonZero int           // Number of planes with 𝛃ᵢ > 0.
	NumEvicted int           // Number of planes removed in this iteration.
	QPIter     int           // Iterations of the reduced QP solver.
	QPStatus   int           // Exit flag of the reduced QP solver.
	SolveTime  time.Duration // Time spent in the reduced QP solver.
	Elapsed    time.Duration // Time since the start of Fit.
}

// Result contains the final result of the optimization process.
type Result struct {
	OK      bool      // Whether the optimization was converged.
	W       []float64 // Final solution.
	Bias    float64   // Last coordinate of W when the problem has a bias.
	Fp, Fd  float64   // Final primal and dual objective.
	History []Record  // One record per iteration, starting with the initial point.
	Summary           // Optimization summary.
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Status     Status        // Final status after optimization.
	NumIter    int           // Number of iterations performed.
	NumActive  int           // Number of cutting planes held at exit.
	NumEvicted int           // Number of cutting planes removed by ICP.
	NumNonZero int           // Number of planes with 𝛃ᵢ > 0 at exit.
	Elapsed    time.Duration // Wall time of Fit.
}

// Fit runs the optimization from w0 (zero when nil) using the workspace ws.
// The returned error is non-nil for SolverFailure, OracleFailure and Canceled,
// the result is never nil.
func (o *Optimizer) Fit(ctx context.Context, w0 []float64, ws *Workspace) (*Result, error) {

	if w0 != nil && len(w0) != o.n {
		panic("initial w dimension not match spec")
	}

	if ws.n != o.n || ws.m != o.bufSize {
		panic("workspace dimension not match spec")
	}

	ws.reset()
	if w0 != nil {
		copy(ws.w, w0)
	} else {
		clear(ws.w)
	}

	driver := iterDriver{
		optimizer: o,
		workspace: ws,
		start:     time.Now(),
	}

	status, err := driver.mainLoop(ctx)

	res := &Result{
		OK:      status.Converged(),
		W:       slices.Clone(ws.w),
		Fp:      driver.fp,
		Fd:      driver.fd,
		History: ws.history,
		Summary: Summary{
			Status:     status,
			NumIter:    ws.iter,
			NumActive:  ws.gram.n,
			NumEvicted: ws.evicted,
			NumNonZero: nonZero(ws.beta),
			Elapsed:    time.Since(driver.start),
		},
	}
	if o.bias {
		res.Bias = res.W[o.n-1]
	}
	return res, err
}

func nonZero(beta []float64) (nz int) {
	for _, v := range beta {
		if v > zero {
			nz++
		}
	}
	return
}
