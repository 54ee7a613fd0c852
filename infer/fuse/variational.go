// Copyright © 2025 The OmicFuse Authors
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package fuse

import (
	"fmt"
	"math"
	"sync"

	"github.com/strainlab/omicfuse/mixture"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Variational executes phase A of an outer iteration:
// holding the mixture parameters fixed,
// the proxy distributions of the latent points and the linear maps
// are moved by stochastic gradient steps
// on the current mini-batches,
// using the reparameterization of each proxy
// and the analytic gradients of the linear Gaussian log joint.
//
// Every modality must have a fed mini-batch.
// With zero gradient sub-steps the proxies are left unchanged.
//
// Modalities are processed concurrently,
// each worker on an immutable snapshot of the mixture,
// as the proxy buffers of a modality are not shared.
func (c *Context) Variational() error {
	for _, v := range c.views {
		if len(v.batch) == 0 {
			return fmt.Errorf("modality %q: unfed mini-batch", v.m.Name())
		}
	}

	snap := c.mix.Copy()
	g := gradParam{
		subSteps: c.mp.SubSteps(),
		step:     c.mp.StepSize(),
		wScale:   c.mp.WeightScale(),
	}

	var wg sync.WaitGroup
	for _, v := range c.views {
		rnd := rand.New(rand.NewSource(c.rnd.Uint64()))
		wg.Add(1)
		go func(v *view, rnd *rand.Rand) {
			defer wg.Done()
			v.gradSteps(snap, g, rnd)
		}(v, rnd)
	}
	wg.Wait()
	return nil
}

type gradParam struct {
	subSteps int
	step     float64
	wScale   float64
}

// gradSteps runs the gradient sub-steps of a single modality.
// On each sub-step the linear map is drawn once
// and a latent point is drawn per batch item;
// the latent proxies are updated per item
// and the map proxies once per sub-step
// from the batch gradient
// rescaled to the full dataset.
func (v *view) gradSteps(snap *mixture.Mixture, g gradParam, rnd *rand.Rand) {
	p := v.m.Dim()
	d := v.m.LatentDim()
	s2 := v.m.Noise() * v.m.Noise()
	w0 := g.wScale * g.wScale

	// number of items the rescaled batch stands for
	total := v.scale * float64(len(v.batch))

	w := mat.NewDense(p, d, nil)
	wEps := mat.NewDense(p, d, nil)
	gw := mat.NewDense(p, d, nil)
	x := make([]float64, d)
	sx := make([]float64, d)
	ex := make([]float64, d)
	res := make([]float64, p)
	gx := make([]float64, d)

	for st := 0; st < g.subSteps; st++ {
		for i := 0; i < p; i++ {
			for j := 0; j < d; j++ {
				e := rnd.NormFloat64()
				wEps.Set(i, j, e)
				w.Set(i, j, v.wMean.At(i, j)+math.Exp(v.wLogS.At(i, j))*e)
			}
		}
		gw.Zero()

		for _, i := range v.batch {
			z := v.assignment(i)
			mu := snap.Mean(z)
			va := snap.Var(z)

			for j := 0; j < d; j++ {
				ex[j] = rnd.NormFloat64()
				sx[j] = math.Exp(v.xLogS[i][j])
				x[j] = v.xMean[i][j] + sx[j]*ex[j]
			}

			y := v.m.Obs(i)
			for r := 0; r < p; r++ {
				res[r] = y[r] - floats.Dot(w.RawRowView(r), x)
			}

			// log joint gradient on the latent point:
			// mixture prior plus projection likelihood
			for j := 0; j < d; j++ {
				gx[j] = -(x[j] - mu[j]) / va[j]
				for r := 0; r < p; r++ {
					gx[j] += w.At(r, j) * res[r] / s2
				}
			}
			for j := 0; j < d; j++ {
				v.xMean[i][j] += g.step * gx[j]
				v.xLogS[i][j] += g.step * (gx[j]*sx[j]*ex[j] + 1)
			}

			for r := 0; r < p; r++ {
				for j := 0; j < d; j++ {
					gw.Set(r, j, gw.At(r, j)+res[r]*x[j]/s2)
				}
			}
		}

		// full dataset gradient on the map,
		// taken per item so the step size
		// is independent of the dataset size
		for r := 0; r < p; r++ {
			for j := 0; j < d; j++ {
				gFull := v.scale*gw.At(r, j) - w.At(r, j)/w0
				gm := gFull / total
				gl := (gFull*math.Exp(v.wLogS.At(r, j))*wEps.At(r, j) + 1) / total
				v.wMean.Set(r, j, v.wMean.At(r, j)+g.step*gm)
				v.wLogS.Set(r, j, v.wLogS.At(r, j)+g.step*gl)
			}
		}
	}
}
