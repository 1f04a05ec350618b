// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package chembl

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Transformer is a reversible transformation applied to the labels of the dataset.
type Transformer interface {
	// Name of the transformer, for logging.
	Name() string

	// Transform the labels of the partition in place. Missing labels are left untouched.
	Transform(p *Partition) error

	// Untransform values laid out as [numExamples, numTasks] (flat, row-major) in place.
	Untransform(values []float64, numTasks int) error
}

// NormalizationTransformer standardizes each task's labels to zero mean and unit standard deviation.
type NormalizationTransformer struct {
	Means, Stds []float64
}

// NewNormalizationTransformer computes the per-task mean and (population) standard deviation over the
// observed labels of p. A zero (or undefined) standard deviation is replaced by 1.
func NewNormalizationTransformer(p *Partition) *NormalizationTransformer {
	t := &NormalizationTransformer{
		Means: make([]float64, p.NumTasks),
		Stds:  make([]float64, p.NumTasks),
	}
	observed := make([]float64, 0, p.Len())
	for task := range p.NumTasks {
		observed = observed[:0]
		for row := range p.Len() {
			idx := row*p.NumTasks + task
			if p.W[idx] != 0 {
				observed = append(observed, float64(p.Y[idx]))
			}
		}
		t.Stds[task] = 1
		if len(observed) == 0 {
			continue
		}
		mean, std := stat.PopMeanStdDev(observed, nil)
		t.Means[task] = mean
		if std > 0 {
			t.Stds[task] = std
		}
	}
	return t
}

// Name implements Transformer.
func (t *NormalizationTransformer) Name() string { return "normalization" }

func (t *NormalizationTransformer) checkTasks(numTasks int) error {
	if numTasks != len(t.Means) {
		return errors.Errorf("%s transformer fitted for %d tasks, got %d", t.Name(), len(t.Means), numTasks)
	}
	return nil
}

// Transform implements Transformer.
func (t *NormalizationTransformer) Transform(p *Partition) error {
	if err := t.checkTasks(p.NumTasks); err != nil {
		return err
	}
	for idx, y := range p.Y {
		if p.W[idx] == 0 {
			continue
		}
		task := idx % p.NumTasks
		p.Y[idx] = float32((float64(y) - t.Means[task]) / t.Stds[task])
	}
	return nil
}

// Untransform implements Transformer.
func (t *NormalizationTransformer) Untransform(values []float64, numTasks int) error {
	if err := t.checkTasks(numTasks); err != nil {
		return err
	}
	if len(values)%numTasks != 0 {
		return errors.Errorf("%d values is not a multiple of %d tasks", len(values), numTasks)
	}
	for idx, v := range values {
		task := idx % numTasks
		values[idx] = v*t.Stds[task] + t.Means[task]
	}
	return nil
}

// UntransformAll applies the transformers' Untransform in reverse order.
func UntransformAll(transformers []Transformer, values []float64, numTasks int) error {
	for ii := len(transformers) - 1; ii >= 0; ii-- {
		if err := transformers[ii].Untransform(values, numTasks); err != nil {
			return errors.WithMessagef(err, "untransforming with %s", transformers[ii].Name())
		}
	}
	return nil
}
