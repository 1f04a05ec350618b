// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mlp

import (
	"slices"

	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/pkg/errors"
)

// Defaults used by the sweep.
const (
	DefaultPatience        = 10
	DefaultValidationSplit = 0.2

	// InitScale bounds the uniform initialization of the weights: U(-InitScale, InitScale).
	InitScale = 0.05
)

// Config of a classifier and its training.
type Config struct {
	NumFeatures int

	// Widths of the hidden layers, all using Activation.
	Widths     []int
	Activation string

	Optimizer string

	// LearningRate is optional: if 0 the optimizer's default is used.
	LearningRate float64

	BatchSize int
	MaxEpochs int

	// Patience is the number of epochs without improvement of the validation loss tolerated before stopping.
	Patience int

	// ValidationSplit is the fraction of the examples, taken from the end, used for validation.
	ValidationSplit float64

	Seed int64
}

// Validate returns an error describing the first inconsistency found.
func (c Config) Validate() error {
	if c.NumFeatures <= 0 {
		return errors.Errorf("invalid number of features %d", c.NumFeatures)
	}
	if len(c.Widths) == 0 {
		return errors.New("at least one hidden layer is required")
	}
	for ii, w := range c.Widths {
		if w <= 0 {
			return errors.Errorf("hidden layer %d has invalid width %d", ii, w)
		}
	}
	if _, err := activations.TypeString(c.Activation); err != nil {
		return errors.Errorf("unknown activation %q", c.Activation)
	}
	if _, found := optimizers.KnownOptimizers[c.Optimizer]; !found {
		return errors.Errorf("unknown optimizer %q", c.Optimizer)
	}
	if c.LearningRate < 0 {
		return errors.Errorf("invalid learning rate %g", c.LearningRate)
	}
	if c.BatchSize <= 0 || c.MaxEpochs <= 0 || c.Patience < 0 {
		return errors.Errorf("invalid batch size (%d), max epochs (%d) or patience (%d)", c.BatchSize, c.MaxEpochs, c.Patience)
	}
	if c.ValidationSplit <= 0 || c.ValidationSplit >= 1 {
		return errors.Errorf("invalid validation split %g", c.ValidationSplit)
	}
	return nil
}

func (c Config) clone() Config {
	c.Widths = slices.Clone(c.Widths)
	return c
}
