// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/molprop/pkg/chembl"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLoader generates random binary fingerprints with 3 tasks that are linear in the bits.
type fakeLoader struct {
	numRows, numFeatures int
	err                  error
}

var _ chembl.Loader = fakeLoader{}

func (l fakeLoader) Load(opts chembl.LoadOptions) (tasks []string, splits chembl.Splits, transformers []chembl.Transformer, err error) {
	if l.err != nil {
		return nil, splits, nil, l.err
	}
	tasks = []string{"CHEMBL1", "CHEMBL2", "CHEMBL3"}
	numTasks := len(tasks)
	rng := rand.New(rand.NewSource(opts.Seed))
	ids := make([]string, l.numRows)
	x := make([]float32, 0, l.numRows*l.numFeatures)
	y := make([]float32, 0, l.numRows*numTasks)
	w := make([]float32, 0, l.numRows*numTasks)
	for row := range l.numRows {
		ids[row] = fmt.Sprintf("CHEMBL%d", 1000+row)
		sums := make([]float32, numTasks)
		for col := range l.numFeatures {
			bit := float32(rng.Intn(2))
			x = append(x, bit)
			sums[col%numTasks] += bit
		}
		for task := range numTasks {
			y = append(y, sums[task]*float32(task+1))
			if (row+task)%5 == 0 {
				w = append(w, 0)
			} else {
				w = append(w, 1)
			}
		}
	}
	all, err := chembl.NewPartition(ids, x, y, w, l.numFeatures, numTasks)
	if err != nil {
		return
	}
	normalization := chembl.NewNormalizationTransformer(all)
	if err = normalization.Transform(all); err != nil {
		return
	}
	splitter, err := chembl.SplitterByName(opts.Split)
	if err != nil {
		return
	}
	train, valid, test := splitter.Split(all.Len(), rng)
	splits = chembl.Splits{Train: all.Subset(train), Valid: all.Subset(valid), Test: all.Subset(test)}
	return tasks, splits, []chembl.Transformer{normalization}, nil
}

func smallExperiment() Experiment {
	exp := DefaultExperiment()
	exp.Load.ShardSize = 50
	exp.Model.LayerSizes = []int{32, 32, 32}
	exp.Model.LearningRate = 3e-3
	exp.Model.BatchSize = 20
	exp.Epochs = 5
	return exp
}

func TestDefaultExperiment(t *testing.T) {
	exp := DefaultExperiment()
	config := exp.Model
	config.NumTasks, config.NumFeatures = 10, 1024
	require.NoError(t, config.Validate())
	assert.Equal(t, "ECFP", exp.Load.Featurizer)
	assert.Equal(t, "5thresh", exp.Load.Set)
	assert.Equal(t, 10, exp.Epochs)
}

func TestRun(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping training test in -short mode")
	}
	var out bytes.Buffer
	err := run(&out, fakeLoader{numRows: 200, numFeatures: 24}, graphtest.BuildTestBackend(), smallExperiment(), false)
	require.NoError(t, err)
	got := out.String()

	lines := []string{
		"About to load ChEMBL data.",
		"Number of tasks: 3",
		"Number of compounds in train set: 160",
		"Number of compounds in validation set: 20",
		"Number of compounds in test set: 20",
		"Training model",
		"Train scores",
		"Validation scores",
		"Test scores",
		"Train time: ",
		"Eval time: ",
	}
	// Lines appear in order.
	pos := 0
	for _, line := range lines {
		idx := strings.Index(got[pos:], line)
		require.GreaterOrEqualf(t, idx, 0, "%q not found in order", line)
		pos += idx + len(line)
	}
	assert.Contains(t, got, "mean-pearson_r2_score")
}

func TestRunLoadFailure(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, fakeLoader{err: errors.New("no data")}, nil, smallExperiment(), false)
	require.ErrorContains(t, err, "no data")
	assert.NotContains(t, out.String(), "Training model")
}
