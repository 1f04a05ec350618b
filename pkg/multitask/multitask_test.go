// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package multitask

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/molprop/pkg/chembl"
	"github.com/gomlx/molprop/pkg/scores"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func testConfig() Config {
	return Config{
		NumTasks:          2,
		NumFeatures:       8,
		LayerSizes:        []int{16},
		Dropouts:          []float64{0.1},
		WeightInitStddevs: []float64{0.1},
		BiasInitConsts:    []float64{0.1},
		LearningRate:      0.01,
		Penalty:           1e-4,
		PenaltyType:       "l2",
		Optimizer:         "adam",
		BatchSize:         16,
		Seed:              123,
	}
}

// syntheticPartition creates a partition with 2 linear tasks of the features, the second task with
// every 4th label missing.
func syntheticPartition(t *testing.T, numExamples, seed int) *chembl.Partition {
	rng := rand.New(rand.NewSource(int64(seed)))
	ids := make([]string, numExamples)
	x := make([]float32, numExamples*8)
	y := make([]float32, numExamples*2)
	w := make([]float32, numExamples*2)
	for row := range numExamples {
		ids[row] = fmt.Sprintf("c%d", row)
		var sum0, sum1 float32
		for col := range 8 {
			v := float32(rng.Intn(2))
			x[row*8+col] = v
			if col < 4 {
				sum0 += v
			} else {
				sum1 += v
			}
		}
		y[row*2], w[row*2] = sum0-2, 1
		if row%4 != 0 {
			y[row*2+1], w[row*2+1] = sum1-sum0, 1
		}
	}
	p, err := chembl.NewPartition(ids, x, y, w, 8, 2)
	require.NoError(t, err)
	return p
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	for name, mutate := range map[string]func(c *Config){
		"layer lengths": func(c *Config) { c.Dropouts = []float64{0.1, 0.2} },
		"no layers": func(c *Config) {
			c.LayerSizes, c.Dropouts, c.WeightInitStddevs, c.BiasInitConsts = nil, nil, nil, nil
		},
		"penalty type":  func(c *Config) { c.PenaltyType = "l3" },
		"optimizer":     func(c *Config) { c.Optimizer = "nesterov" },
		"batch size":    func(c *Config) { c.BatchSize = 0 },
		"learning rate": func(c *Config) { c.LearningRate = 0 },
		"dropout":       func(c *Config) { c.Dropouts = []float64{1} },
		"tasks":         func(c *Config) { c.NumTasks = 0 },
	} {
		c := testConfig()
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}

	// The regressor keeps its own copy.
	backend := graphtest.BuildTestBackend()
	c := testConfig()
	r, err := New(backend, c)
	require.NoError(t, err)
	c.LayerSizes[0] = 1
	assert.Equal(t, 16, r.Config().LayerSizes[0])
	// 8*16+16 + 16*2+2
	assert.Equal(t, 178, r.NumParameters())

	// Only weights and biases count, for any depth.
	c = testConfig()
	c.LayerSizes = []int{16, 4}
	c.Dropouts = []float64{0.1, 0}
	c.WeightInitStddevs = []float64{0.1, 0.1}
	c.BiasInitConsts = []float64{0.1, 0}
	r, err = New(backend, c)
	require.NoError(t, err)
	// 8*16+16 + 16*4+4 + 4*2+2
	assert.Equal(t, 222, r.NumParameters())
}

func meanSquaredError(predictions []float64, p *chembl.Partition) float64 {
	var sum, count float64
	for ii, y := range p.Y {
		if p.W[ii] == 0 {
			continue
		}
		d := predictions[ii] - float64(y)
		sum += d * d
		count++
	}
	return sum / count
}

func TestFitPredictEvaluate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping training test in -short mode")
	}
	backend := graphtest.BuildTestBackend()
	trainPartition := syntheticPartition(t, 128, 1)
	testPartition := syntheticPartition(t, 40, 2)
	r, err := New(backend, testConfig())
	require.NoError(t, err)
	r.WithPredictBatchSize(30)

	before, err := r.Predict(testPartition)
	require.NoError(t, err)
	require.Len(t, before, 80)

	require.NoError(t, r.Fit(trainPartition, 20))
	after, err := r.Predict(testPartition)
	require.NoError(t, err)
	assert.Less(t, meanSquaredError(after, testPartition), meanSquaredError(before, testPartition))

	// Predictions are deterministic once trained (no dropout).
	again, err := r.Predict(testPartition)
	require.NoError(t, err)
	assert.Equal(t, after, again)

	norm := chembl.NewNormalizationTransformer(trainPartition)
	results, err := r.Evaluate(testPartition, []scores.Metric{scores.PearsonR2Metric}, []chembl.Transformer{norm})
	require.NoError(t, err)
	score, found := results["mean-pearson_r2_score"]
	require.True(t, found)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	// Mismatched partitions are rejected.
	bad, err := chembl.NewPartition([]string{"a"}, make([]float32, 3), []float32{0, 0}, []float32{1, 1}, 3, 2)
	require.NoError(t, err)
	_, err = r.Predict(bad)
	require.Error(t, err)
	require.Error(t, r.Fit(bad, 1))
}
