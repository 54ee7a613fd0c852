// Copyright © 2025 The OmicFuse Authors
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package modparam_test

import (
	"os"
	"reflect"
	"testing"

	"github.com/strainlab/omicfuse/modparam"
)

func TestModParam(t *testing.T) {
	name := "tmp-model-parameters-for-test.tab"
	mp := modparam.New(name)
	testMP(t, mp, nil, name)

	mp.SetComponents(3)
	mp.SetLatentDim(4)
	mp.SetAlpha(0.5)
	mp.SetMeanScale(2.5)
	mp.SetWeightScale(0.75)
	mp.SetBatchSize(40)
	mp.SetIterations(2000)
	mp.SetSubSteps(10)
	mp.SetStepSize(0.005)
	mp.SetReportEvery(50)
	mp.SetSeed(42)

	defer os.Remove(name)
	if err := mp.Write(); err != nil {
		t.Fatalf("error when writing data: %v", err)
	}

	np, err := modparam.Read(name)
	if err != nil {
		t.Fatalf("error when reading data: %v", err)
	}
	testMP(t, np, mp, name)
}

func TestModParamInvalid(t *testing.T) {
	mp := modparam.New("invalid-values")

	if err := mp.SetComponents(0); err == nil {
		t.Errorf("components: expecting error for value %d", 0)
	}
	if err := mp.SetLatentDim(-1); err == nil {
		t.Errorf("latent dimension: expecting error for value %d", -1)
	}
	if err := mp.SetAlpha(0); err == nil {
		t.Errorf("alpha: expecting error for value %.6f", 0.0)
	}
	if err := mp.SetBatchSize(0); err == nil {
		t.Errorf("batch size: expecting error for value %d", 0)
	}
	if err := mp.SetIterations(0); err == nil {
		t.Errorf("iterations: expecting error for value %d", 0)
	}
	if err := mp.SetSubSteps(-1); err == nil {
		t.Errorf("sub-steps: expecting error for value %d", -1)
	}
	if err := mp.SetStepSize(-0.1); err == nil {
		t.Errorf("step size: expecting error for value %.6f", -0.1)
	}
	if err := mp.SetSubSteps(0); err != nil {
		t.Errorf("sub-steps: unexpected error for value %d: %v", 0, err)
	}

	def := modparam.New("invalid-values")
	def.SetSubSteps(0)
	testMP(t, mp, def, "invalid-values")
}

func testMP(t testing.TB, mp, want *modparam.MP, name string) {
	t.Helper()

	if want == nil {
		want = modparam.New(name)
	}

	if mp.Name() != want.Name() {
		t.Errorf("name: got %q, want %q", mp.Name(), want.Name())
	}
	if mp.Components() != want.Components() {
		t.Errorf("components: got %d, want %d", mp.Components(), want.Components())
	}
	if mp.LatentDim() != want.LatentDim() {
		t.Errorf("latent dimension: got %d, want %d", mp.LatentDim(), want.LatentDim())
	}
	if mp.Alpha() != want.Alpha() {
		t.Errorf("alpha: got %.6f, want %.6f", mp.Alpha(), want.Alpha())
	}
	if mp.MeanScale() != want.MeanScale() {
		t.Errorf("mean scale: got %.6f, want %.6f", mp.MeanScale(), want.MeanScale())
	}
	if mp.WeightScale() != want.WeightScale() {
		t.Errorf("weight scale: got %.6f, want %.6f", mp.WeightScale(), want.WeightScale())
	}
	if mp.BatchSize() != want.BatchSize() {
		t.Errorf("batch size: got %d, want %d", mp.BatchSize(), want.BatchSize())
	}
	if mp.Iterations() != want.Iterations() {
		t.Errorf("iterations: got %d, want %d", mp.Iterations(), want.Iterations())
	}
	if mp.SubSteps() != want.SubSteps() {
		t.Errorf("sub-steps: got %d, want %d", mp.SubSteps(), want.SubSteps())
	}
	if mp.StepSize() != want.StepSize() {
		t.Errorf("step size: got %.6f, want %.6f", mp.StepSize(), want.StepSize())
	}
	if mp.ReportEvery() != want.ReportEvery() {
		t.Errorf("report every: got %d, want %d", mp.ReportEvery(), want.ReportEvery())
	}
	if mp.Seed() != want.Seed() {
		t.Errorf("seed: got %d, want %d", mp.Seed(), want.Seed())
	}

	if !reflect.DeepEqual(mp.MeanPrior(), want.MeanPrior()) {
		t.Errorf("mean prior: got %v, want %v", mp.MeanPrior(), want.MeanPrior())
	}
	if !reflect.DeepEqual(mp.WeightPrior(), want.WeightPrior()) {
		t.Errorf("weight prior: got %v, want %v", mp.WeightPrior(), want.WeightPrior())
	}
	if !reflect.DeepEqual(mp.VarPrior(), want.VarPrior()) {
		t.Errorf("variance prior: got %v, want %v", mp.VarPrior(), want.VarPrior())
	}
}
