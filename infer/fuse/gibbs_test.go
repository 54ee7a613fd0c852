// Copyright © 2025 The OmicFuse Authors
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package fuse

import (
	"math"
	"testing"

	"github.com/strainlab/omicfuse/modality"
	"github.com/strainlab/omicfuse/modparam"
	"gonum.org/v1/gonum/mat"
)

// TestSamplingProxyVariance checks that the variance conditional
// uses the expected squared deviation under the latent proxies:
// with every proxy mean at the same point,
// the sampled variances must track the proxy scales
// instead of collapsing toward zero.
func TestSamplingProxyVariance(t *testing.T) {
	const items = 200

	m, err := modality.New("cytometry", 2, 2, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.SetData(mat.NewDense(items, 2, nil), make([]int, items)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mp := modparam.New("proxy-variance")
	mp.SetComponents(1)
	mp.SetLatentDim(2)
	mp.SetBatchSize(items)
	mp.SetIterations(10)
	mp.SetSeed(19)

	c, err := New(Param{MP: mp}, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := c.views[0]
	for i := range v.xMean {
		for j := range v.xMean[i] {
			v.xMean[i][j] = 0
			v.xLogS[i][j] = math.Log(0.5)
		}
	}

	c.NextBatch()
	if err := c.Sampling(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Sampling(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// with zero scatter of the proxy means
	// the conditional is InverseGamma(1+n/2, 1+n 0.25/2),
	// concentrated near the proxy variance of 0.25
	for j, va := range c.mix.Var(0) {
		if va < 0.15 || va > 0.4 {
			t.Errorf("dimension %d: sampled variance %.6f, want close to %.6f", j, va, 0.25)
		}
	}
}
