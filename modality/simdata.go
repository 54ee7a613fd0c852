// Copyright © 2025 The OmicFuse Authors
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package modality

import (
	"fmt"

	"github.com/strainlab/omicfuse/mixture"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// SimParam is a collection of parameters
// for the simulation of a modality.
type SimParam struct {
	// Mix is the latent mixture
	// used to draw the assignments and latent points.
	Mix *mixture.Mixture

	// Weights is the linear map of the modality.
	// If nil,
	// a map of Dim rows is drawn elementwise
	// from Normal(0, WeightScale²).
	Weights *mat.Dense

	// Dim is the dimension of the observed space,
	// used only when Weights is nil.
	Dim int

	// WeightScale is the scale of the weight draw
	// when Weights is nil.
	WeightScale float64

	// Items is the number of observations to simulate.
	Items int

	// Noise is the observation noise scale.
	Noise float64
}

// Simulate creates a new modality
// with data simulated from the generative model:
// assignments and latent points drawn from the mixture,
// projected through the linear map,
// with Gaussian observation noise.
// It returns the modality,
// with labels set to the drawn assignments,
// and the drawn latent points.
func Simulate(name string, p SimParam, rnd *rand.Rand) (*Modality, [][]float64, error) {
	if p.Mix == nil {
		return nil, nil, fmt.Errorf("modality %q: undefined mixture", name)
	}
	if p.Items < 1 {
		return nil, nil, fmt.Errorf("modality %q: invalid number of items: %d", name, p.Items)
	}

	d := p.Mix.LatentDim()
	w := p.Weights
	if w == nil {
		if p.Dim < 1 {
			return nil, nil, fmt.Errorf("modality %q: invalid dimension: %d", name, p.Dim)
		}
		if p.WeightScale <= 0 {
			return nil, nil, fmt.Errorf("modality %q: invalid weight scale: %.6f", name, p.WeightScale)
		}
		wn := distuv.Normal{
			Mu:    0,
			Sigma: p.WeightScale,
			Src:   rnd,
		}
		w = mat.NewDense(p.Dim, d, nil)
		for r := 0; r < p.Dim; r++ {
			for c := 0; c < d; c++ {
				w.Set(r, c, wn.Rand())
			}
		}
	}

	obsDim, wd := w.Dims()
	if wd != d {
		return nil, nil, fmt.Errorf("modality %q: got %dx%d weights for latent dimension %d", name, obsDim, wd, d)
	}

	m, err := New(name, obsDim, d, p.Noise)
	if err != nil {
		return nil, nil, err
	}
	if err := m.SetWeights(w); err != nil {
		return nil, nil, err
	}

	en := distuv.Normal{
		Mu:    0,
		Sigma: p.Noise,
		Src:   rnd,
	}
	obs := mat.NewDense(p.Items, obsDim, nil)
	labels := make([]int, p.Items)
	latents := make([][]float64, p.Items)
	for i := 0; i < p.Items; i++ {
		z, x := p.Mix.Sample(rnd)
		labels[i] = z
		latents[i] = x

		y := m.Project(x)
		for j, v := range y {
			obs.Set(i, j, v+en.Rand())
		}
	}
	if err := m.SetData(obs, labels); err != nil {
		return nil, nil, err
	}
	return m, latents, nil
}
