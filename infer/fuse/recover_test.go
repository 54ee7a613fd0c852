// Copyright © 2025 The OmicFuse Authors
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package fuse_test

import (
	"math"
	"testing"

	"github.com/strainlab/omicfuse/infer/fuse"
	"github.com/strainlab/omicfuse/mixture"
	"github.com/strainlab/omicfuse/modality"
	"github.com/strainlab/omicfuse/modparam"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TestRecoverToy checks that the alternating loop
// recovers the generating parameters
// of a fixed two component,
// two modality toy dataset.
//
// The observed cluster centers W·μ are identified
// even if the latent space is only known up to rotation,
// so the recovered means are compared in observation space.
func TestRecoverToy(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))

	means := [][]float64{{-2, 0}, {2, 1}}
	vars := [][]float64{{0.09, 0.09}, {0.09, 0.09}}
	mixA, err := mixture.New([]float64{0.4, 0.6}, means, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mixB, err := mixture.New([]float64{0.3, 0.7}, means, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wA := mat.NewDense(2, 2, []float64{
		1, 0,
		0, 1,
	})
	wB := mat.NewDense(3, 2, []float64{
		1, 0.2,
		0.1, 1,
		0.5, 0.5,
	})

	ma, _, err := modality.Simulate("cytometry", modality.SimParam{
		Mix:     mixA,
		Weights: wA,
		Items:   120,
		Noise:   0.5,
	}, rnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mb, _, err := modality.Simulate("transcriptomics", modality.SimParam{
		Mix:     mixB,
		Weights: wB,
		Items:   120,
		Noise:   0.5,
	}, rnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mp := modparam.New("toy-recover")
	mp.SetComponents(2)
	mp.SetLatentDim(2)
	mp.SetBatchSize(120)
	mp.SetIterations(800)
	mp.SetSubSteps(5)
	mp.SetStepSize(0.01)
	mp.SetMeanScale(2)
	mp.SetSeed(3)

	c, err := fuse.New(fuse.Param{MP: mp}, ma, mb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	post, err := c.Posterior(400)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// the posterior weights pool both modalities,
	// so they must be close to both generating weight sets
	w := post.Weights()
	for k, want := range []float64{0.4, 0.6} {
		if math.Abs(w[k]-want) > 0.1 {
			t.Errorf("cytometry: weight %d: got %.6f, want %.6f", k, w[k], want)
		}
	}
	for k, want := range []float64{0.3, 0.7} {
		if math.Abs(w[k]-want) > 0.1 {
			t.Errorf("transcriptomics: weight %d: got %.6f, want %.6f", k, w[k], want)
		}
	}

	mods := []struct {
		name string
		m    *modality.Modality
		w    *mat.Dense
	}{
		{"cytometry", ma, wA},
		{"transcriptomics", mb, wB},
	}
	for _, md := range mods {
		wHat, err := c.Weights(md.name)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for k := 0; k < 2; k++ {
			got := project(wHat, post.Mean(k))
			want := project(md.w, means[k])
			if d := floats.Distance(got, want, 2); d > 0.3 {
				t.Errorf("%s: component %d: center %v, want %v [dist = %.6f]", md.name, k, got, want, d)
			}
		}
	}
}

// TestRecoverMap checks that with noise free data
// from a known 3x2 linear map
// the inferred map reconstructs the observations,
// up to a rotation of the latent space.
func TestRecoverMap(t *testing.T) {
	rnd := rand.New(rand.NewSource(13))

	wTrue := mat.NewDense(3, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
	})

	const items = 80
	m, err := modality.New("proteomics", 3, 2, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.SetWeights(wTrue); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	obs := mat.NewDense(items, 3, nil)
	labels := make([]int, items)
	for i := 0; i < items; i++ {
		x := []float64{rnd.NormFloat64(), rnd.NormFloat64()}
		obs.SetRow(i, m.Project(x))
	}
	if err := m.SetData(obs, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mp := modparam.New("map-recover")
	mp.SetComponents(1)
	mp.SetLatentDim(2)
	mp.SetBatchSize(items)
	mp.SetIterations(400)
	mp.SetSubSteps(5)
	mp.SetStepSize(0.002)
	mp.SetWeightScale(0.5)
	mp.SetSeed(17)

	c, err := fuse.New(fuse.Param{MP: mp}, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wHat, err := c.Weights("proteomics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	xHat, err := c.Latents("proteomics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sum float64
	for i := 0; i < items; i++ {
		got := project(wHat, xHat[i])
		want := m.Obs(i)
		d := floats.Distance(got, want, 2)
		sum += d * d
	}
	rms := math.Sqrt(sum / items)
	if rms > 0.15 {
		t.Errorf("reconstruction: rms residual %.6f, want < 0.15", rms)
	}
}

func project(w *mat.Dense, x []float64) []float64 {
	_, d := w.Dims()
	var y mat.VecDense
	y.MulVec(w, mat.NewVecDense(d, x))
	return y.RawVector().Data
}
