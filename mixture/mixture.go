// Copyright © 2025 The OmicFuse Authors
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package mixture implements the Gaussian mixture prior
// of the shared latent space,
// with one component per engineered strain.
package mixture

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// Param is a collection of hyperparameters
// for the initialization of a mixture.
type Param struct {
	// Components is the number of mixture components.
	Components int

	// LatentDim is the dimension of the latent space.
	LatentDim int

	// Alpha is the concentration
	// of the Dirichlet prior on the mixing weights.
	Alpha float64

	// MeanPrior is the Normal prior
	// on each component mean coordinate.
	MeanPrior distuv.Normal

	// VarPrior is the InverseGamma prior
	// on each component variance.
	VarPrior distuv.InverseGamma
}

// A Mixture is a Gaussian mixture
// with diagonal covariances
// over a low dimensional latent space.
type Mixture struct {
	weights []float64
	means   [][]float64 // component x dimension
	vars    [][]float64 // component x dimension
}

// New creates a mixture from explicit parameter values.
// The weights must be a simplex
// and the variances must be positive componentwise.
func New(weights []float64, means, vars [][]float64) (*Mixture, error) {
	k := len(weights)
	if k == 0 {
		return nil, fmt.Errorf("mixture: empty weights")
	}
	if len(means) != k || len(vars) != k {
		return nil, fmt.Errorf("mixture: got %d means and %d variances, want %d", len(means), len(vars), k)
	}
	d := len(means[0])
	if d == 0 {
		return nil, fmt.Errorf("mixture: empty mean on component %d", 0)
	}

	var sum float64
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("mixture: component %d: negative weight %.6f", i, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-10 {
		return nil, fmt.Errorf("mixture: weights sum %.6f, want 1", sum)
	}

	m := &Mixture{
		weights: make([]float64, k),
		means:   make([][]float64, k),
		vars:    make([][]float64, k),
	}
	copy(m.weights, weights)
	for i := range means {
		if len(means[i]) != d {
			return nil, fmt.Errorf("mixture: component %d: mean dimension %d, want %d", i, len(means[i]), d)
		}
		if len(vars[i]) != d {
			return nil, fmt.Errorf("mixture: component %d: variance dimension %d, want %d", i, len(vars[i]), d)
		}
		for j, v := range vars[i] {
			if v <= 0 {
				return nil, fmt.Errorf("mixture: component %d: non-positive variance %.6f on dimension %d", i, v, j)
			}
		}
		m.means[i] = make([]float64, d)
		copy(m.means[i], means[i])
		m.vars[i] = make([]float64, d)
		copy(m.vars[i], vars[i])
	}
	return m, nil
}

// Prior creates a mixture
// by sampling its parameters from the prior:
// Dirichlet weights,
// and component means and variances
// from the given priors.
func Prior(p Param, rnd *rand.Rand) (*Mixture, error) {
	if p.Components < 1 {
		return nil, fmt.Errorf("mixture: invalid number of components: %d", p.Components)
	}
	if p.LatentDim < 1 {
		return nil, fmt.Errorf("mixture: invalid latent dimension: %d", p.LatentDim)
	}
	if p.Alpha <= 0 {
		return nil, fmt.Errorf("mixture: invalid alpha value: %.6f", p.Alpha)
	}
	if p.MeanPrior.Sigma <= 0 {
		return nil, fmt.Errorf("mixture: invalid mean prior scale: %.6f", p.MeanPrior.Sigma)
	}
	if p.VarPrior.Alpha <= 0 || p.VarPrior.Beta <= 0 {
		return nil, fmt.Errorf("mixture: invalid variance prior: InverseGamma(%.6f,%.6f)", p.VarPrior.Alpha, p.VarPrior.Beta)
	}

	alpha := make([]float64, p.Components)
	for i := range alpha {
		alpha[i] = p.Alpha
	}
	m := &Mixture{
		weights: distmv.NewDirichlet(alpha, rnd).Rand(nil),
		means:   make([][]float64, p.Components),
		vars:    make([][]float64, p.Components),
	}

	mn := p.MeanPrior
	mn.Src = rnd
	ig := p.VarPrior
	ig.Src = rnd
	for k := range m.means {
		m.means[k] = make([]float64, p.LatentDim)
		m.vars[k] = make([]float64, p.LatentDim)
		for d := range m.means[k] {
			m.means[k][d] = mn.Rand()
			m.vars[k][d] = ig.Rand()
		}
	}
	return m, nil
}

// Components returns the number of mixture components.
func (m *Mixture) Components() int {
	return len(m.weights)
}

// Copy returns a deep copy of a mixture,
// used as an immutable snapshot
// by concurrent gradient workers.
func (m *Mixture) Copy() *Mixture {
	nm := &Mixture{
		weights: make([]float64, len(m.weights)),
		means:   make([][]float64, len(m.means)),
		vars:    make([][]float64, len(m.vars)),
	}
	copy(nm.weights, m.weights)
	for k := range m.means {
		nm.means[k] = make([]float64, len(m.means[k]))
		copy(nm.means[k], m.means[k])
		nm.vars[k] = make([]float64, len(m.vars[k]))
		copy(nm.vars[k], m.vars[k])
	}
	return nm
}

// LatentDim returns the dimension of the latent space.
func (m *Mixture) LatentDim() int {
	return len(m.means[0])
}

// LogProb returns the joint log density
// of an assignment and a latent point.
func (m *Mixture) LogProb(z int, x []float64) float64 {
	lp := math.Log(m.weights[z])
	for d, v := range x {
		n := distuv.Normal{
			Mu:    m.means[z][d],
			Sigma: math.Sqrt(m.vars[z][d]),
		}
		lp += n.LogProb(v)
	}
	return lp
}

// Mean returns the mean of a component.
// The returned slice must not be modified.
func (m *Mixture) Mean(k int) []float64 {
	return m.means[k]
}

// PostComponent returns the posterior probability
// of each component given a latent point,
// used for Gibbs draws of unobserved assignments.
func (m *Mixture) PostComponent(x []float64) []float64 {
	lp := make([]float64, len(m.weights))
	for k := range lp {
		lp[k] = m.LogProb(k, x)
	}
	max := floats.Max(lp)
	for k, v := range lp {
		lp[k] = math.Exp(v - max)
	}
	floats.Scale(1/floats.Sum(lp), lp)
	return lp
}

// Sample draws an assignment and a latent point
// from the mixture.
func (m *Mixture) Sample(rnd *rand.Rand) (z int, x []float64) {
	cat := distuv.NewCategorical(m.weights, rnd)
	z = int(cat.Rand())
	return z, m.SampleComponent(z, rnd)
}

// SampleComponent draws a latent point
// from the indicated component.
func (m *Mixture) SampleComponent(z int, rnd *rand.Rand) []float64 {
	x := make([]float64, m.LatentDim())
	for d := range x {
		n := distuv.Normal{
			Mu:    m.means[z][d],
			Sigma: math.Sqrt(m.vars[z][d]),
			Src:   rnd,
		}
		x[d] = n.Rand()
	}
	return x
}

// Var returns the diagonal variance of a component.
// The returned slice must not be modified.
func (m *Mixture) Var(k int) []float64 {
	return m.vars[k]
}

// Weights returns the mixing weights.
// The returned slice must not be modified.
func (m *Mixture) Weights() []float64 {
	return m.weights
}

// SampleWeights replaces the mixing weights
// with a draw from their Dirichlet conditional,
// given the prior concentration
// and the per component counts
// (rescaled to the full dataset).
func (m *Mixture) SampleWeights(alpha float64, counts []float64, rnd *rand.Rand) {
	post := make([]float64, len(m.weights))
	for k := range post {
		post[k] = alpha + counts[k]
	}
	distmv.NewDirichlet(post, rnd).Rand(m.weights)
}

// SampleMeans replaces the component means
// with a draw from their Normal conditional,
// given the prior scale,
// the per component counts,
// and the per component coordinate sums of the latent points
// (both rescaled to the full dataset).
// The current component variances are used as the data variance.
func (m *Mixture) SampleMeans(meanScale float64, counts []float64, sums [][]float64, rnd *rand.Rand) {
	p0 := 1 / (meanScale * meanScale)
	for k := range m.means {
		for d := range m.means[k] {
			prec := p0 + counts[k]/m.vars[k][d]
			mu := (sums[k][d] / m.vars[k][d]) / prec
			n := distuv.Normal{
				Mu:    mu,
				Sigma: math.Sqrt(1 / prec),
				Src:   rnd,
			}
			m.means[k][d] = n.Rand()
		}
	}
}

// SampleVars replaces the component variances
// with a draw from their InverseGamma conditional,
// given the per component counts
// and the per component coordinate sums
// of the squared deviations about the current means
// (both rescaled to the full dataset).
func (m *Mixture) SampleVars(counts []float64, sqDev [][]float64, rnd *rand.Rand) {
	for k := range m.vars {
		for d := range m.vars[k] {
			ig := distuv.InverseGamma{
				Alpha: 1 + counts[k]/2,
				Beta:  1 + sqDev[k][d]/2,
				Src:   rnd,
			}
			m.vars[k][d] = ig.Rand()
		}
	}
}
