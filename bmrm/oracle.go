// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bmrm

// Oracle evaluates the empirical risk R(𝐖) and writes one subgradient 𝐚 ∈ ∂R(𝐖) into subgrad.
//
// subgrad has the problem dimension and is zeroed before every call.
// The optimizer never retains w or subgrad after Risk returns.
// A non-nil error stops the optimization with status OracleFailure.
type Oracle interface {
	Risk(w, subgrad []float64) (float64, error)
}

// OracleFunc adapts an ordinary function to Oracle.
type OracleFunc func(w, subgrad []float64) (float64, error)

func (f OracleFunc) Risk(w, subgrad []float64) (float64, error) {
	return f(w, subgrad)
}
