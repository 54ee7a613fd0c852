// Copyright © 2025 The OmicFuse Authors
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package modparam implements reading and writing
// of the hyperparameters for a multi-modal fusion model.
package modparam

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// Param is a keyword to identify
// the type of parameter in a modParam file.
type Param string

// Valid parameters
const (
	// Components is the number of mixture components
	// in the latent prior,
	// one per strain.
	Components Param = "components"

	// LatentDim is the dimension of the shared latent space.
	LatentDim Param = "latentdim"

	// Alpha is the concentration
	// of the Dirichlet prior on the mixing weights.
	Alpha Param = "alpha"

	// MeanScale is the scale of the Normal prior
	// on the component means.
	MeanScale Param = "meanscale"

	// WeightScale is the scale of the Normal prior
	// on the projection weights.
	WeightScale Param = "weightscale"

	// BatchSize is the number of observations
	// drawn per modality on each outer iteration.
	BatchSize Param = "batchsize"

	// Iterations is the number of outer iterations
	// of the alternating inference loop.
	Iterations Param = "iterations"

	// SubSteps is the number of gradient sub-steps
	// per mini-batch in a variational update.
	SubSteps Param = "substeps"

	// StepSize is the gradient step size
	// used in a variational update.
	StepSize Param = "stepsize"

	// ReportEvery is the number of outer iterations
	// between progress reports.
	ReportEvery Param = "reportevery"

	// Seed is the seed of the random number source.
	Seed Param = "seed"
)

// MP represents a collection of fusion model hyperparameters.
type MP struct {
	name string // file name

	// latent mixture prior
	k         int
	d         int
	alpha     float64
	meanScale float64
	wScale    float64

	// inference loop
	batch    int
	iter     int
	subSteps int
	step     float64
	report   int
	seed     uint64
}

// New creates a new hyperparameter collection
// with the default values.
func New(name string) *MP {
	return &MP{
		name:      name,
		k:         5,
		d:         2,
		alpha:     1,
		meanScale: 1,
		wScale:    1,
		batch:     100,
		iter:      1000,
		subSteps:  5,
		step:      0.01,
		report:    100,
		seed:      1,
	}
}

var header = []string{
	"parameter",
	"value",
}

// Read reads a modParam file from a TSV file.
//
// The TSV must contains the following fields:
//
//   - parameter, the name of the parameter
//   - value, the value of the parameter
//
// Here is an example file:
//
//	# omicfuse model parameters
//	parameter	value
//	components	5
//	latentdim	2
//	batchsize	100
//	iterations	1000
func Read(name string) (*MP, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tsv := csv.NewReader(f)
	tsv.Comma = '\t'
	tsv.Comment = '#'

	head, err := tsv.Read()
	if err != nil {
		return nil, fmt.Errorf("on file %q: header: %v", name, err)
	}
	fields := make(map[string]int, len(head))
	for i, h := range head {
		h = strings.ToLower(h)
		fields[h] = i
	}
	for _, h := range header {
		if _, ok := fields[h]; !ok {
			return nil, fmt.Errorf("on file %q: expecting field %q", name, h)
		}
	}

	mp := New(name)
	for {
		row, err := tsv.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		ln, _ := tsv.FieldPos(0)
		if err != nil {
			return nil, fmt.Errorf("on file %q: on row %d: %v", name, ln, err)
		}

		f := "parameter"
		p := Param(strings.ToLower(row[fields[f]]))

		f = "value"
		switch p {
		case Components, LatentDim, BatchSize, Iterations, SubSteps, ReportEvery:
			v, err := strconv.Atoi(row[fields[f]])
			if err != nil {
				return nil, fmt.Errorf("on file %q: on row %d, field %q: %v", name, ln, f, err)
			}
			if err := mp.setInt(p, v); err != nil {
				return nil, fmt.Errorf("on file %q: on row %d, field %q: %v", name, ln, f, err)
			}
		case Alpha, MeanScale, WeightScale, StepSize:
			v, err := strconv.ParseFloat(row[fields[f]], 64)
			if err != nil {
				return nil, fmt.Errorf("on file %q: on row %d, field %q: %v", name, ln, f, err)
			}
			if err := mp.setFloat(p, v); err != nil {
				return nil, fmt.Errorf("on file %q: on row %d, field %q: %v", name, ln, f, err)
			}
		case Seed:
			v, err := strconv.ParseUint(row[fields[f]], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("on file %q: on row %d, field %q: %v", name, ln, f, err)
			}
			mp.seed = v
		}
	}
	return mp, nil
}

func (mp *MP) setInt(p Param, v int) error {
	switch p {
	case Components:
		return mp.SetComponents(v)
	case LatentDim:
		return mp.SetLatentDim(v)
	case BatchSize:
		return mp.SetBatchSize(v)
	case Iterations:
		return mp.SetIterations(v)
	case SubSteps:
		return mp.SetSubSteps(v)
	case ReportEvery:
		return mp.SetReportEvery(v)
	}
	return fmt.Errorf("unknown parameter %q", p)
}

func (mp *MP) setFloat(p Param, v float64) error {
	switch p {
	case Alpha:
		return mp.SetAlpha(v)
	case MeanScale:
		return mp.SetMeanScale(v)
	case WeightScale:
		return mp.SetWeightScale(v)
	case StepSize:
		return mp.SetStepSize(v)
	}
	return fmt.Errorf("unknown parameter %q", p)
}

// Alpha returns the concentration
// of the Dirichlet prior on the mixing weights.
func (mp *MP) Alpha() float64 {
	return mp.alpha
}

// BatchSize returns the number of observations
// drawn per modality on each outer iteration.
func (mp *MP) BatchSize() int {
	return mp.batch
}

// Components returns the number of mixture components
// of the latent prior.
func (mp *MP) Components() int {
	return mp.k
}

// Iterations returns the number of outer iterations
// of the alternating inference loop.
func (mp *MP) Iterations() int {
	return mp.iter
}

// LatentDim returns the dimension of the shared latent space.
func (mp *MP) LatentDim() int {
	return mp.d
}

// MeanScale returns the scale of the Normal prior
// on the component means.
func (mp *MP) MeanScale() float64 {
	return mp.meanScale
}

// MeanPrior returns the Normal prior
// on a component mean coordinate.
func (mp *MP) MeanPrior() distuv.Normal {
	return distuv.Normal{
		Mu:    0,
		Sigma: mp.meanScale,
	}
}

// Name returns the name used for a hyperparameter collection.
func (mp *MP) Name() string {
	return mp.name
}

// ReportEvery returns the number of outer iterations
// between progress reports.
func (mp *MP) ReportEvery() int {
	return mp.report
}

// Seed returns the seed of the random number source.
func (mp *MP) Seed() uint64 {
	return mp.seed
}

// StepSize returns the gradient step size
// used in a variational update.
func (mp *MP) StepSize() float64 {
	return mp.step
}

// SubSteps returns the number of gradient sub-steps
// per mini-batch in a variational update.
func (mp *MP) SubSteps() int {
	return mp.subSteps
}

// VarPrior returns the InverseGamma prior
// on a component variance.
func (mp *MP) VarPrior() distuv.InverseGamma {
	return distuv.InverseGamma{
		Alpha: 1,
		Beta:  1,
	}
}

// WeightScale returns the scale of the Normal prior
// on the projection weights.
func (mp *MP) WeightScale() float64 {
	return mp.wScale
}

// WeightPrior returns the Normal prior
// on a projection weight.
func (mp *MP) WeightPrior() distuv.Normal {
	return distuv.Normal{
		Mu:    0,
		Sigma: mp.wScale,
	}
}

// SetAlpha sets the concentration
// of the Dirichlet prior on the mixing weights.
func (mp *MP) SetAlpha(a float64) error {
	if a <= 0 {
		return fmt.Errorf("invalid alpha value: %.6f", a)
	}
	mp.alpha = a
	return nil
}

// SetBatchSize sets the number of observations
// drawn per modality on each outer iteration.
func (mp *MP) SetBatchSize(b int) error {
	if b < 1 {
		return fmt.Errorf("invalid batch size: %d", b)
	}
	mp.batch = b
	return nil
}

// SetComponents sets the number of mixture components
// of the latent prior.
func (mp *MP) SetComponents(k int) error {
	if k < 1 {
		return fmt.Errorf("invalid number of components: %d", k)
	}
	mp.k = k
	return nil
}

// SetIterations sets the number of outer iterations
// of the alternating inference loop.
func (mp *MP) SetIterations(i int) error {
	if i < 1 {
		return fmt.Errorf("invalid iterations value: %d", i)
	}
	mp.iter = i
	return nil
}

// SetLatentDim sets the dimension of the shared latent space.
func (mp *MP) SetLatentDim(d int) error {
	if d < 1 {
		return fmt.Errorf("invalid latent dimension: %d", d)
	}
	mp.d = d
	return nil
}

// SetMeanScale sets the scale of the Normal prior
// on the component means.
func (mp *MP) SetMeanScale(s float64) error {
	if s <= 0 {
		return fmt.Errorf("invalid mean scale: %.6f", s)
	}
	mp.meanScale = s
	return nil
}

// SetName sets the name of a hyperparameter collection.
func (mp *MP) SetName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	mp.name = name
}

// SetReportEvery sets the number of outer iterations
// between progress reports.
func (mp *MP) SetReportEvery(r int) error {
	if r < 1 {
		return fmt.Errorf("invalid report value: %d", r)
	}
	mp.report = r
	return nil
}

// SetSeed sets the seed of the random number source.
func (mp *MP) SetSeed(s uint64) {
	mp.seed = s
}

// SetStepSize sets the gradient step size
// used in a variational update.
func (mp *MP) SetStepSize(s float64) error {
	if s <= 0 {
		return fmt.Errorf("invalid step size: %.6f", s)
	}
	mp.step = s
	return nil
}

// SetSubSteps sets the number of gradient sub-steps
// per mini-batch in a variational update.
// Zero sub-steps makes the variational update a no-op.
func (mp *MP) SetSubSteps(s int) error {
	if s < 0 {
		return fmt.Errorf("invalid sub-steps value: %d", s)
	}
	mp.subSteps = s
	return nil
}

// SetWeightScale sets the scale of the Normal prior
// on the projection weights.
func (mp *MP) SetWeightScale(s float64) error {
	if s <= 0 {
		return fmt.Errorf("invalid weight scale: %.6f", s)
	}
	mp.wScale = s
	return nil
}

// Write writes a hyperparameter collection into a file.
func (mp *MP) Write() (err error) {
	f, err := os.Create(mp.name)
	if err != nil {
		return err
	}
	defer func() {
		e := f.Close()
		if e != nil && err == nil {
			err = e
		}
	}()

	bw := bufio.NewWriter(f)
	fmt.Fprintf(bw, "# omicfuse model parameters\n")
	fmt.Fprintf(bw, "# data save on: %s\n", time.Now().Format(time.RFC3339))
	tsv := csv.NewWriter(bw)
	tsv.Comma = '\t'
	tsv.UseCRLF = true

	if err := tsv.Write(header); err != nil {
		return fmt.Errorf("on file %q: while writing header: %v", mp.name, err)
	}

	rows := [][]string{
		{string(Components), strconv.Itoa(mp.k)},
		{string(LatentDim), strconv.Itoa(mp.d)},
		{string(Alpha), strconv.FormatFloat(mp.alpha, 'f', -1, 64)},
		{string(MeanScale), strconv.FormatFloat(mp.meanScale, 'f', -1, 64)},
		{string(WeightScale), strconv.FormatFloat(mp.wScale, 'f', -1, 64)},
		{string(BatchSize), strconv.Itoa(mp.batch)},
		{string(Iterations), strconv.Itoa(mp.iter)},
		{string(SubSteps), strconv.Itoa(mp.subSteps)},
		{string(StepSize), strconv.FormatFloat(mp.step, 'f', -1, 64)},
		{string(ReportEvery), strconv.Itoa(mp.report)},
		{string(Seed), strconv.FormatUint(mp.seed, 10)},
	}
	for _, row := range rows {
		if err := tsv.Write(row); err != nil {
			return fmt.Errorf("on file %q: %v", mp.name, err)
		}
	}

	tsv.Flush()
	if err := tsv.Error(); err != nil {
		return fmt.Errorf("on file %q: while writing data: %v", mp.name, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("on file %q: while writing data: %v", mp.name, err)
	}
	return nil
}
