// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sweep

import (
	"bytes"
	"math/rand"
	"path"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/molprop/pkg/artifacts"
	"github.com/gomlx/molprop/pkg/history"
	"github.com/gomlx/molprop/pkg/mlp"
	"github.com/gomlx/molprop/pkg/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func TestDefaultGrid(t *testing.T) {
	g := DefaultGrid()
	require.NoError(t, g.Validate())
	points := g.Points()
	require.Len(t, points, 9)
	assert.Equal(t, Point{"sigmoid", 1900, []int{2900, 50}}, points[0])
	assert.Equal(t, Point{"sigmoid", 1900, []int{3000, 50}}, points[1])
	assert.Equal(t, Point{"sigmoid", 2000, []int{2900, 50}}, points[3])
	assert.Equal(t, Point{"sigmoid", 2100, []int{3100, 50}}, points[8])

	// Distinct points never overwrite each other's artifacts.
	s := &Sweep{Grid: g, DataFile: "/data/train.npz"}
	stems := make(map[string]bool)
	for _, p := range points {
		stems[s.runFor(p).Stem()] = true
	}
	assert.Len(t, stems, len(points))
	assert.Equal(t, "train.npz_2900_50_1900_adam_sigmoid_200", s.runFor(points[0]).Stem())

	config := g.Config(points[4], 7)
	require.NoError(t, config.Validate())
	assert.Equal(t, 7, config.NumFeatures)
	assert.Equal(t, 2000, config.BatchSize)
	assert.Equal(t, []int{3000, 50}, config.Widths)
	assert.Equal(t, int64(123), config.Seed)
}

func TestValidate(t *testing.T) {
	g := DefaultGrid()
	g.Unit2 = nil
	require.Error(t, g.Validate())
	g = DefaultGrid()
	g.MaxEpochs = 0
	require.Error(t, g.Validate())
}

// writeDataFile writes a separable dataset: the label is 1 when the sum of the features is positive.
func writeDataFile(t *testing.T, dir string) string {
	const numRows, numFeatures = 120, 4
	rng := rand.New(rand.NewSource(7))
	table := &tabular.Table{NumRows: numRows, NumCols: numFeatures + 1, Values: make([]float32, 0, numRows*(numFeatures+1))}
	for range numRows {
		var sum float32
		for range numFeatures {
			v := float32(rng.NormFloat64())
			sum += v
			table.Values = append(table.Values, v)
		}
		var label float32
		if sum > 0 {
			label = 1
		}
		table.Values = append(table.Values, label)
	}
	filePath := path.Join(dir, "tiny.npz")
	require.NoError(t, table.Save(filePath))
	return filePath
}

func TestRun(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping training test in -short mode")
	}
	root := t.TempDir()
	var out bytes.Buffer
	s := &Sweep{
		Backend: graphtest.BuildTestBackend(),
		Grid: Grid{
			Activations:     []string{"sigmoid", "relu"},
			BatchSizes:      []int{16},
			Unit1:           []int{8},
			Unit2:           []int{4},
			Optimizer:       "adam",
			MaxEpochs:       5,
			Patience:        mlp.DefaultPatience,
			ValidationSplit: mlp.DefaultValidationSplit,
			Seed:            123,
		},
		DataFile: writeDataFile(t, t.TempDir()),
		RootDir:  root,
		Out:      &out,
	}
	results, err := s.Run()
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Equal(t, 5, r.Epochs)
		for _, filePath := range []string{r.Paths.Log, r.Paths.Plot, r.Paths.Architecture, r.Paths.Weights} {
			assert.Truef(t, fsutil.MustFileExists(filePath), "missing %q", filePath)
		}
		hist, comments, err := history.ReadCSV(r.Paths.Log)
		require.NoError(t, err)
		assert.Equal(t, r.Epochs, hist.Len())
		assert.Equal(t, 0.0, hist.Records[0].Time)
		assert.Contains(t, comments[len(comments)-1], "run: ")

		weights, err := artifacts.LoadWeights(r.Paths.Weights)
		require.NoError(t, err)
		assert.Len(t, weights, 6)
	}
	assert.Contains(t, out.String(), "Data loading ...")
	assert.Contains(t, out.String(), "Total params: 86")
	assert.Contains(t, out.String(), "ran for ")
	assert.Contains(t, Summary(results), results[0].Stem)
}
