// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package multitask

import (
	"slices"

	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/pkg/errors"
)

// Config of the multitask regressor. Per-layer slices (LayerSizes, Dropouts, WeightInitStddevs and
// BiasInitConsts) must have the same length.
//
// The regressor keeps its own copy, so a Config can be reused after New.
type Config struct {
	NumTasks, NumFeatures int

	LayerSizes        []int
	Dropouts          []float64
	WeightInitStddevs []float64
	BiasInitConsts    []float64

	LearningRate float64

	// Penalty is the weight regularization amount, of type PenaltyType ("l1" or "l2").
	// A zero Penalty disables it.
	Penalty     float64
	PenaltyType string

	// Optimizer name, one of optimizers.KnownOptimizers.
	Optimizer string

	BatchSize int
	Seed      int64
}

// Validate returns an error describing the first inconsistency found.
func (c Config) Validate() error {
	if c.NumTasks <= 0 || c.NumFeatures <= 0 {
		return errors.Errorf("invalid number of tasks (%d) or features (%d)", c.NumTasks, c.NumFeatures)
	}
	numLayers := len(c.LayerSizes)
	if numLayers == 0 {
		return errors.New("at least one hidden layer is required")
	}
	if len(c.Dropouts) != numLayers || len(c.WeightInitStddevs) != numLayers || len(c.BiasInitConsts) != numLayers {
		return errors.Errorf("per-layer configuration lengths differ: %d layer sizes, %d dropouts, %d weight init stddevs, %d bias init consts",
			numLayers, len(c.Dropouts), len(c.WeightInitStddevs), len(c.BiasInitConsts))
	}
	for ii, size := range c.LayerSizes {
		if size <= 0 {
			return errors.Errorf("layer %d has invalid size %d", ii, size)
		}
		if c.Dropouts[ii] < 0 || c.Dropouts[ii] >= 1 {
			return errors.Errorf("layer %d has invalid dropout rate %g", ii, c.Dropouts[ii])
		}
		if c.WeightInitStddevs[ii] < 0 {
			return errors.Errorf("layer %d has negative weight init stddev %g", ii, c.WeightInitStddevs[ii])
		}
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("invalid learning rate %g", c.LearningRate)
	}
	if c.Penalty < 0 {
		return errors.Errorf("invalid penalty %g", c.Penalty)
	}
	if c.PenaltyType != "l1" && c.PenaltyType != "l2" {
		return errors.Errorf("unknown penalty type %q, valid values are \"l1\" and \"l2\"", c.PenaltyType)
	}
	if _, found := optimizers.KnownOptimizers[c.Optimizer]; !found {
		return errors.Errorf("unknown optimizer %q", c.Optimizer)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("invalid batch size %d", c.BatchSize)
	}
	return nil
}

// clone returns a deep copy of the configuration.
func (c Config) clone() Config {
	c.LayerSizes = slices.Clone(c.LayerSizes)
	c.Dropouts = slices.Clone(c.Dropouts)
	c.WeightInitStddevs = slices.Clone(c.WeightInitStddevs)
	c.BiasInitConsts = slices.Clone(c.BiasInitConsts)
	return c
}
