// Copyright © 2025 The OmicFuse Authors
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package fuse

import (
	"fmt"

	"github.com/strainlab/omicfuse/mixture"
	"gonum.org/v1/gonum/floats"
)

// A chain is a fixed capacity rolling buffer
// of mixture samples,
// the empirical proxy of the mixture posterior.
// The capacity is the total number of planned samples,
// so rolling only happens if a run is extended.
type chain struct {
	limit   int
	samples []*mixture.Mixture
}

func newChain(limit int) *chain {
	return &chain{
		limit:   limit,
		samples: make([]*mixture.Mixture, 0, limit),
	}
}

func (ch *chain) append(m *mixture.Mixture) {
	if len(ch.samples) == ch.limit {
		copy(ch.samples, ch.samples[1:])
		ch.samples[len(ch.samples)-1] = m
		return
	}
	ch.samples = append(ch.samples, m)
}

func (ch *chain) len() int {
	return len(ch.samples)
}

// Posterior returns the mean of the sampled chain
// after discarding the first burnIn samples.
func (ch *chain) posterior(burnIn int) (*mixture.Mixture, error) {
	if len(ch.samples) == 0 {
		return nil, fmt.Errorf("empty sample chain")
	}
	if burnIn < 0 || burnIn >= len(ch.samples) {
		return nil, fmt.Errorf("invalid burn-in %d with %d samples", burnIn, len(ch.samples))
	}

	s := ch.samples[burnIn:]
	k := s[0].Components()
	d := s[0].LatentDim()

	weights := make([]float64, k)
	means := make([][]float64, k)
	vars := make([][]float64, k)
	for z := range means {
		means[z] = make([]float64, d)
		vars[z] = make([]float64, d)
	}

	f := 1 / float64(len(s))
	for _, m := range s {
		floats.AddScaled(weights, f, m.Weights())
		for z := 0; z < k; z++ {
			floats.AddScaled(means[z], f, m.Mean(z))
			floats.AddScaled(vars[z], f, m.Var(z))
		}
	}

	// guard against floating point drift on the simplex
	floats.Scale(1/floats.Sum(weights), weights)

	return mixture.New(weights, means, vars)
}
