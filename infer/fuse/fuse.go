// Copyright © 2025 The OmicFuse Authors
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package fuse implements the alternating inference loop
// that fuses several measurement modalities
// into the shared latent space:
// variational updates of the latent points and linear maps
// alternated with Gibbs draws of the mixture parameters
// on mini-batches.
package fuse

import (
	"fmt"
	"io"
	"math"

	"github.com/strainlab/omicfuse/mixture"
	"github.com/strainlab/omicfuse/modality"
	"github.com/strainlab/omicfuse/modparam"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// initScale is the starting scale of the proxy distributions.
const initScale = 0.1

// Param is a collection of parameters
// for the initialization of an inference context.
type Param struct {
	// MP is the collection of model hyperparameters.
	MP *modparam.MP

	// Output receives the periodic progress reports.
	// If nil the reports are discarded.
	Output io.Writer
}

// A Context holds the full state of an inference run:
// the current mixture sample,
// the proxy-parameter buffers of every modality,
// the chain of mixture samples,
// and the random number source.
// A context is single writer:
// only the inference loop mutates its buffers.
type Context struct {
	mp    *modparam.MP
	mix   *mixture.Mixture
	views []*view
	chain *chain
	rnd   *rand.Rand
	out   io.Writer
}

// A view binds a modality to its proxy distributions
// and its mini-batch slot.
type view struct {
	m *modality.Modality

	// proxy for the latent points,
	// a Gaussian per item and dimension,
	// a mean and a log scale
	xMean [][]float64
	xLogS [][]float64

	// proxy for the linear map,
	// a Gaussian per weight
	wMean *mat.Dense
	wLogS *mat.Dense

	// current fed mini-batch
	batch []int
	scale float64

	// imputed assignments for an unlabeled modality
	z []int
}

// New creates a new inference context
// for the indicated modalities.
// The mixture parameters are drawn from the prior
// and all proxy buffers are initialized,
// so every phase can execute from the start.
func New(p Param, mods ...*modality.Modality) (*Context, error) {
	if p.MP == nil {
		return nil, fmt.Errorf("fuse: undefined hyperparameters")
	}
	if len(mods) == 0 {
		return nil, fmt.Errorf("fuse: expecting at least one modality")
	}

	mp := p.MP
	rnd := rand.New(rand.NewSource(mp.Seed()))
	mix, err := mixture.Prior(mixture.Param{
		Components: mp.Components(),
		LatentDim:  mp.LatentDim(),
		Alpha:      mp.Alpha(),
		MeanPrior:  mp.MeanPrior(),
		VarPrior:   mp.VarPrior(),
	}, rnd)
	if err != nil {
		return nil, err
	}

	c := &Context{
		mp:    mp,
		mix:   mix,
		views: make([]*view, 0, len(mods)),
		chain: newChain(mp.Iterations()),
		rnd:   rnd,
		out:   p.Output,
	}
	for _, m := range mods {
		if _, err := c.view(m.Name()); err == nil {
			return nil, fmt.Errorf("modality %q: repeated modality", m.Name())
		}
		v, err := c.newView(m)
		if err != nil {
			return nil, err
		}
		c.views = append(c.views, v)
	}
	return c, nil
}

func (c *Context) newView(m *modality.Modality) (*view, error) {
	d := c.mp.LatentDim()
	if m.LatentDim() != d {
		return nil, fmt.Errorf("modality %q: latent dimension %d, want %d", m.Name(), m.LatentDim(), d)
	}
	if m.Len() == 0 {
		return nil, fmt.Errorf("modality %q: no data", m.Name())
	}

	k := c.mp.Components()
	v := &view{
		m:     m,
		xMean: make([][]float64, m.Len()),
		xLogS: make([][]float64, m.Len()),
		wMean: mat.NewDense(m.Dim(), d, nil),
		wLogS: mat.NewDense(m.Dim(), d, nil),
	}
	if !m.Labeled() {
		v.z = make([]int, m.Len())
	}

	jitter := distuv.Normal{
		Mu:    0,
		Sigma: initScale,
		Src:   c.rnd,
	}
	for i := range v.xMean {
		v.xMean[i] = make([]float64, d)
		v.xLogS[i] = make([]float64, d)

		z := m.Label(i)
		if z < 0 && m.Labeled() {
			return nil, fmt.Errorf("modality %q: item %d: invalid strain label %d", m.Name(), i, z)
		}
		if z < 0 {
			z, _ = c.mix.Sample(c.rnd)
			v.z[i] = z
		} else if z >= k {
			return nil, fmt.Errorf("modality %q: item %d: invalid strain label %d", m.Name(), i, z)
		}
		mu := c.mix.Mean(z)
		for dd := range v.xMean[i] {
			v.xMean[i][dd] = mu[dd] + jitter.Rand()
			v.xLogS[i][dd] = math.Log(initScale)
		}
	}

	wn := c.mp.WeightPrior()
	wn.Src = c.rnd
	for r := 0; r < m.Dim(); r++ {
		for cc := 0; cc < d; cc++ {
			v.wMean.Set(r, cc, wn.Rand())
			v.wLogS.Set(r, cc, math.Log(initScale))
		}
	}
	return v, nil
}

// Assignments returns the strain assignment of every item
// of the indicated modality:
// the observed labels if the modality is labeled,
// the currently imputed assignments otherwise.
func (c *Context) Assignments(name string) ([]int, error) {
	v, err := c.view(name)
	if err != nil {
		return nil, err
	}
	z := make([]int, v.m.Len())
	for i := range z {
		z[i] = v.assignment(i)
	}
	return z, nil
}

// BatchScale returns the rescaling factor
// of the current mini-batch of the indicated modality,
// the total number of items
// over the batch size.
func (c *Context) BatchScale(name string) (float64, error) {
	v, err := c.view(name)
	if err != nil {
		return 0, err
	}
	if len(v.batch) == 0 {
		return 0, fmt.Errorf("modality %q: unfed mini-batch", name)
	}
	return v.scale, nil
}

// Feed sets the mini-batch of the indicated modality
// to an explicit index set.
func (c *Context) Feed(name string, batch []int) error {
	v, err := c.view(name)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return fmt.Errorf("modality %q: empty mini-batch", name)
	}
	for _, i := range batch {
		if i < 0 || i >= v.m.Len() {
			return fmt.Errorf("modality %q: item %d out of range", name, i)
		}
	}
	v.batch = make([]int, len(batch))
	copy(v.batch, batch)
	v.scale = float64(v.m.Len()) / float64(len(batch))
	return nil
}

// Latents returns the current estimates
// (the proxy means)
// of the latent coordinates of every item
// of the indicated modality.
func (c *Context) Latents(name string) ([][]float64, error) {
	v, err := c.view(name)
	if err != nil {
		return nil, err
	}
	x := make([][]float64, len(v.xMean))
	for i := range x {
		x[i] = make([]float64, len(v.xMean[i]))
		copy(x[i], v.xMean[i])
	}
	return x, nil
}

// Mixture returns a copy of the current mixture sample.
func (c *Context) Mixture() *mixture.Mixture {
	return c.mix.Copy()
}

// NextBatch draws a new mini-batch for every modality,
// uniformly without replacement within the batch,
// independent across modalities.
// A batch size larger than a modality
// is clamped to the full modality.
func (c *Context) NextBatch() {
	for _, v := range c.views {
		n := v.m.Len()
		b := c.mp.BatchSize()
		if b > n {
			b = n
		}
		batch := make([]int, b)
		sampleuv.WithoutReplacement(batch, n, c.rnd)
		v.batch = batch
		v.scale = float64(n) / float64(b)
	}
}

// Posterior returns the posterior point estimate of the mixture,
// the mean of the sampled chain
// after discarding the indicated burn-in.
func (c *Context) Posterior(burnIn int) (*mixture.Mixture, error) {
	return c.chain.posterior(burnIn)
}

// Samples returns the number of mixture samples
// drawn so far.
func (c *Context) Samples() int {
	return c.chain.len()
}

// Weights returns the current estimate
// (the proxy means)
// of the linear map of the indicated modality.
func (c *Context) Weights(name string) (*mat.Dense, error) {
	v, err := c.view(name)
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(v.wMean), nil
}

// Run executes the alternating inference loop
// for the configured number of outer iterations:
// a new mini-batch,
// a variational update,
// then a sampling update,
// with a progress report every ReportEvery iterations.
func (c *Context) Run() error {
	if c.out != nil {
		fmt.Fprintf(c.out, "iteration\tcomponent\tweight\tmean\tvariance\n")
	}
	for it := 1; it <= c.mp.Iterations(); it++ {
		c.NextBatch()
		if err := c.Variational(); err != nil {
			return err
		}
		if err := c.Sampling(); err != nil {
			return err
		}
		if c.out != nil && it%c.mp.ReportEvery() == 0 {
			c.report(it)
		}
	}
	return nil
}

func (c *Context) report(it int) {
	for k := 0; k < c.mix.Components(); k++ {
		fmt.Fprintf(c.out, "%d\t%d\t%.6f\t%.6f\t%.6f\n", it, k, c.mix.Weights()[k], c.mix.Mean(k), c.mix.Var(k))
	}
}

func (c *Context) view(name string) (*view, error) {
	for _, v := range c.views {
		if v.m.Name() == name {
			return v, nil
		}
	}
	return nil, fmt.Errorf("unknown modality %q", name)
}

func (v *view) assignment(i int) int {
	if z := v.m.Label(i); z >= 0 {
		return z
	}
	return v.z[i]
}
