// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sweep

import (
	"github.com/gomlx/molprop/pkg/mlp"
	"github.com/pkg/errors"
)

// Grid of hyperparameters: every combination of Activations, BatchSizes, Unit1 and Unit2 is a Point.
// The remaining fields are shared by all points.
type Grid struct {
	Activations []string
	BatchSizes  []int

	// Unit1 and Unit2 are the widths of the first and second hidden layers.
	Unit1, Unit2 []int

	Optimizer       string
	MaxEpochs       int
	Patience        int
	ValidationSplit float64
	Seed            int64
}

// DefaultGrid is the grid swept by the mlp_sweep command.
func DefaultGrid() Grid {
	return Grid{
		Activations:     []string{"sigmoid"},
		BatchSizes:      []int{1900, 2000, 2100},
		Unit1:           []int{2900, 3000, 3100},
		Unit2:           []int{50},
		Optimizer:       "adam",
		MaxEpochs:       200,
		Patience:        mlp.DefaultPatience,
		ValidationSplit: mlp.DefaultValidationSplit,
		Seed:            123,
	}
}

// Point is one combination of the grid.
type Point struct {
	Activation string
	BatchSize  int
	Widths     []int
}

// Points enumerates the grid, nesting the loops in the order activation, batch size, unit1, unit2
// (the last one varies fastest).
func (g Grid) Points() []Point {
	points := make([]Point, 0, len(g.Activations)*len(g.BatchSizes)*len(g.Unit1)*len(g.Unit2))
	for _, activation := range g.Activations {
		for _, batchSize := range g.BatchSizes {
			for _, unit1 := range g.Unit1 {
				for _, unit2 := range g.Unit2 {
					points = append(points, Point{Activation: activation, BatchSize: batchSize, Widths: []int{unit1, unit2}})
				}
			}
		}
	}
	return points
}

// Validate checks the grid is not empty and the shared fields are valid.
func (g Grid) Validate() error {
	if len(g.Activations) == 0 || len(g.BatchSizes) == 0 || len(g.Unit1) == 0 || len(g.Unit2) == 0 {
		return errors.New("every dimension of the grid needs at least one value")
	}
	if g.MaxEpochs <= 0 || g.Patience < 0 {
		return errors.Errorf("invalid max epochs (%d) or patience (%d)", g.MaxEpochs, g.Patience)
	}
	return nil
}

// Config returns the classifier configuration for the point, given the number of features of the dataset.
func (g Grid) Config(p Point, numFeatures int) mlp.Config {
	return mlp.Config{
		NumFeatures:     numFeatures,
		Widths:          p.Widths,
		Activation:      p.Activation,
		Optimizer:       g.Optimizer,
		BatchSize:       p.BatchSize,
		MaxEpochs:       g.MaxEpochs,
		Patience:        g.Patience,
		ValidationSplit: g.ValidationSplit,
		Seed:            g.Seed,
	}
}
