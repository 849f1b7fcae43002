// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads solver options from YAML and applies them to a bmrm.Problem.
//
//	lambda: 0.01
//	buf_size: 500
//	stop:
//	  max_iterations: 1000
//	  tol_rel: 1e-3
//	icp:
//	  enabled: true
//	  clean_after: 10
//	solver:
//	  backend: ldp
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/curioloop/bmrm/bmrm"
	"github.com/curioloop/bmrm/lsq"
	"github.com/curioloop/bmrm/qp"
	"github.com/curioloop/bmrm/splx"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every parse or validation failure.
var ErrInvalid = errors.New("config: invalid options")

// Backend names accepted in SolverOptions.Backend.
const (
	BackendSplx = "splx"
	BackendLDP  = "ldp"
)

var validate = validator.New()

// Options mirrors the tunable part of bmrm.Problem.
// The risk oracle and the dimension are supplied by the caller.
type Options struct {
	Lambda  float64       `yaml:"lambda" validate:"gt=0"`
	BufSize int           `yaml:"buf_size" validate:"gte=1"`
	Bias    bool          `yaml:"bias"`
	Workers int           `yaml:"workers" validate:"gte=0"`
	Verbose bool          `yaml:"verbose"`
	Stop    StopOptions   `yaml:"stop"`
	ICP     ICPOptions    `yaml:"icp"`
	Solver  SolverOptions `yaml:"solver"`
}

type StopOptions struct {
	MaxIterations int     `yaml:"max_iterations" validate:"gte=1"`
	TolRel        float64 `yaml:"tol_rel" validate:"gte=0"`
	TolAbs        float64 `yaml:"tol_abs" validate:"gte=0"`
}

type ICPOptions struct {
	Enabled    bool    `yaml:"enabled"`
	CleanAfter int     `yaml:"clean_after" validate:"required_if=Enabled true,gte=0"`
	CleanEvery int     `yaml:"clean_every" validate:"gte=0"`
	MinAge     int     `yaml:"min_age" validate:"gte=0"`
	Epsilon    float64 `yaml:"epsilon" validate:"gte=0"`
}

// SolverOptions selects the reduced QP backend. Zero values keep the backend defaults.
type SolverOptions struct {
	Backend       string  `yaml:"backend" validate:"oneof=splx ldp"`
	MaxIterations int     `yaml:"max_iterations" validate:"gte=0"`
	TolRel        float64 `yaml:"tol_rel" validate:"gte=0"` // splx
	TolAbs        float64 `yaml:"tol_abs" validate:"gte=0"` // splx
	Tol           float64 `yaml:"tol" validate:"gte=0"`     // ldp
}

// Default returns the options used for keys missing from a document.
func Default() Options {
	return Options{
		Lambda:  1,
		BufSize: 1000,
		Stop: StopOptions{
			MaxIterations: 1000,
			TolRel:        1e-3,
		},
		ICP: ICPOptions{
			CleanAfter: 10,
		},
		Solver: SolverOptions{
			Backend: BackendSplx,
		},
	}
}

// Load reads and parses the YAML file at path.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document over Default and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Options, error) {
	opts := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate checks the options against their tags.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Backend builds the reduced QP solver named by Solver.Backend.
func (o *Options) Backend() (qp.Backend, error) {
	s := o.Solver
	switch s.Backend {
	case BackendSplx, "":
		return splx.New(splx.Termination{
			MaxIterations: s.MaxIterations,
			TolAbs:        s.TolAbs,
			TolRel:        s.TolRel,
		}), nil
	case BackendLDP:
		return &lsq.SimplexQP{
			Tol:     s.Tol,
			MaxIter: s.MaxIterations,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalid, s.Backend)
	}
}

// Apply copies the options into p. Oracle, N and Observer are left untouched.
func (o *Options) Apply(p *bmrm.Problem) error {
	if err := o.Validate(); err != nil {
		return err
	}
	solver, err := o.Backend()
	if err != nil {
		return err
	}
	p.Lambda = o.Lambda
	p.BufSize = o.BufSize
	p.Bias = o.Bias
	p.Workers = o.Workers
	p.Stop = bmrm.Termination{
		MaxIterations: o.Stop.MaxIterations,
		TolRel:        o.Stop.TolRel,
		TolAbs:        o.Stop.TolAbs,
	}
	p.ICP = bmrm.ICP{
		Enabled:    o.ICP.Enabled,
		CleanAfter: o.ICP.CleanAfter,
		CleanEvery: o.ICP.CleanEvery,
		MinAge:     o.ICP.MinAge,
		Epsilon:    o.ICP.Epsilon,
	}
	p.Solver = solver
	return nil
}

// Logger returns a logger printing every iteration when Verbose is set
// and only the exit summary otherwise.
func (o *Options) Logger(msg, out io.Writer) *bmrm.Logger {
	level := bmrm.LogLast
	if o.Verbose {
		level = bmrm.LogEval
	}
	return &bmrm.Logger{Level: level, Msg: msg, Out: out}
}
