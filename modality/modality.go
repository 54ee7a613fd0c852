// Copyright © 2025 The OmicFuse Authors
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package modality implements an observed measurement space
// (flow cytometry, transcriptomics, proteomics)
// related to the shared latent space
// by a linear probabilistic map.
package modality

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// A Modality is a collection of observations
// on a single measurement space,
// generated from the latent space
// as Normal(W x, noise² I).
type Modality struct {
	name  string
	p     int // observed dimension
	d     int // latent dimension
	noise float64

	weights *mat.Dense // p x d linear map
	obs     *mat.Dense // items x p
	labels  []int      // strain labels, nil if unobserved
}

// New creates a new empty modality
// with the given observed and latent dimensions
// and observation noise scale.
func New(name string, p, d int, noise float64) (*Modality, error) {
	if p < 1 {
		return nil, fmt.Errorf("modality %q: invalid dimension: %d", name, p)
	}
	if d < 1 {
		return nil, fmt.Errorf("modality %q: invalid latent dimension: %d", name, d)
	}
	if noise <= 0 {
		return nil, fmt.Errorf("modality %q: invalid noise scale: %.6f", name, noise)
	}
	return &Modality{
		name:    name,
		p:       p,
		d:       d,
		noise:   noise,
		weights: mat.NewDense(p, d, nil),
	}, nil
}

// Dim returns the dimension of the observed space.
func (m *Modality) Dim() int {
	return m.p
}

// Label returns the strain label of an observation,
// or -1 if the labels are unobserved.
func (m *Modality) Label(i int) int {
	if m.labels == nil {
		return -1
	}
	return m.labels[i]
}

// Labeled reports whether the strain labels are observed.
func (m *Modality) Labeled() bool {
	return m.labels != nil
}

// LatentDim returns the dimension of the latent space.
func (m *Modality) LatentDim() int {
	return m.d
}

// Len returns the number of observations.
func (m *Modality) Len() int {
	if m.obs == nil {
		return 0
	}
	r, _ := m.obs.Dims()
	return r
}

// Name returns the name of the modality.
func (m *Modality) Name() string {
	return m.name
}

// Noise returns the observation noise scale.
func (m *Modality) Noise() float64 {
	return m.noise
}

// Obs returns the observed measurement of an item.
// The returned slice must not be modified.
func (m *Modality) Obs(i int) []float64 {
	return m.obs.RawRowView(i)
}

// Project returns the projection of a latent point
// into the observed space.
func (m *Modality) Project(x []float64) []float64 {
	var y mat.VecDense
	y.MulVec(m.weights, mat.NewVecDense(m.d, x))
	return y.RawVector().Data
}

// SetData sets the observation matrix
// (one row per item)
// and the strain labels.
// A nil label slice indicates that the strains are unobserved
// and must be inferred.
func (m *Modality) SetData(obs *mat.Dense, labels []int) error {
	r, c := obs.Dims()
	if c != m.p {
		return fmt.Errorf("modality %q: got %d measurement channels, want %d", m.name, c, m.p)
	}
	if labels != nil && len(labels) != r {
		return fmt.Errorf("modality %q: got %d labels for %d observations", m.name, len(labels), r)
	}
	m.obs = obs
	m.labels = labels
	return nil
}

// SetWeights sets the linear map of the modality.
func (m *Modality) SetWeights(w *mat.Dense) error {
	r, c := w.Dims()
	if r != m.p || c != m.d {
		return fmt.Errorf("modality %q: got %dx%d weights, want %dx%d", m.name, r, c, m.p, m.d)
	}
	m.weights.Copy(w)
	return nil
}

// Weights returns the linear map of the modality.
// The returned matrix must not be modified.
func (m *Modality) Weights() *mat.Dense {
	return m.weights
}
