// Copyright © 2025 The OmicFuse Authors
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package fuse

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sampling executes phase B of an outer iteration:
// holding the latent points and linear maps fixed
// at their current proxy estimates,
// one Gibbs sample of the mixture parameters
// is drawn from their conditionals
// on the current mini-batches,
// with all sufficient statistics
// taken in expectation under the latent proxies
// and rescaled to the full dataset,
// and appended to the sample chain.
//
// Every modality must have a fed mini-batch.
func (c *Context) Sampling() error {
	for _, v := range c.views {
		if len(v.batch) == 0 {
			return fmt.Errorf("modality %q: unfed mini-batch", v.m.Name())
		}
	}

	k := c.mp.Components()
	d := c.mp.LatentDim()

	// impute unobserved assignments on the batch
	for _, v := range c.views {
		if v.m.Labeled() {
			continue
		}
		for _, i := range v.batch {
			v.z[i] = samplePost(c.mix.PostComponent(v.xMean[i]), c.rnd)
		}
	}

	counts := make([]float64, k)
	sums := make([][]float64, k)
	for z := range sums {
		sums[z] = make([]float64, d)
	}
	for _, v := range c.views {
		for _, i := range v.batch {
			z := v.assignment(i)
			counts[z] += v.scale
			floats.AddScaled(sums[z], v.scale, v.xMean[i])
		}
	}

	c.mix.SampleWeights(c.mp.Alpha(), counts, c.rnd)
	c.mix.SampleMeans(c.mp.MeanScale(), counts, sums, c.rnd)

	sqDev := make([][]float64, k)
	for z := range sqDev {
		sqDev[z] = make([]float64, d)
	}
	for _, v := range c.views {
		for _, i := range v.batch {
			z := v.assignment(i)
			mu := c.mix.Mean(z)
			for j := range mu {
				// expected squared deviation under the proxy:
				// the squared mean deviation plus the proxy variance
				dev := v.xMean[i][j] - mu[j]
				sx := math.Exp(v.xLogS[i][j])
				sqDev[z][j] += v.scale * (dev*dev + sx*sx)
			}
		}
	}
	c.mix.SampleVars(counts, sqDev, c.rnd)

	c.chain.append(c.mix.Copy())
	return nil
}

func samplePost(post []float64, rnd *rand.Rand) int {
	cat := distuv.NewCategorical(post, rnd)
	return int(cat.Rand())
}
