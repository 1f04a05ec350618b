// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package chembl

import (
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/pkg/errors"
)

// Partition holds a featurized subset of compounds: features, multitask labels and their weights.
//
// All matrices are flat and row-major: X is [Len, NumFeatures], Y and W are [Len, NumTasks].
// A weight of 0 marks a missing label (the label value is then 0 as well).
//
// Fields are exported so the partition can be gob encoded for the binary cache.
type Partition struct {
	IDs                   []string
	X, Y, W               []float32
	NumFeatures, NumTasks int
}

// NewPartition validates the sizes of the given data and returns a Partition.
func NewPartition(ids []string, x, y, w []float32, numFeatures, numTasks int) (*Partition, error) {
	n := len(ids)
	if numFeatures <= 0 || numTasks <= 0 {
		return nil, errors.Errorf("invalid partition dimensions: %d features, %d tasks", numFeatures, numTasks)
	}
	if len(x) != n*numFeatures {
		return nil, errors.Errorf("partition with %d compounds and %d features: got %d feature values", n, numFeatures, len(x))
	}
	if len(y) != n*numTasks || len(w) != n*numTasks {
		return nil, errors.Errorf("partition with %d compounds and %d tasks: got %d labels and %d weights",
			n, numTasks, len(y), len(w))
	}
	return &Partition{IDs: ids, X: x, Y: y, W: w, NumFeatures: numFeatures, NumTasks: numTasks}, nil
}

// Len returns the number of compounds.
func (p *Partition) Len() int { return len(p.IDs) }

// DataShape returns the shape of one feature vector.
func (p *Partition) DataShape() []int { return []int{p.NumFeatures} }

// Subset returns a new partition with the given rows, in the given order.
func (p *Partition) Subset(rows []int) *Partition {
	sub := &Partition{
		IDs:         make([]string, 0, len(rows)),
		X:           make([]float32, 0, len(rows)*p.NumFeatures),
		Y:           make([]float32, 0, len(rows)*p.NumTasks),
		W:           make([]float32, 0, len(rows)*p.NumTasks),
		NumFeatures: p.NumFeatures,
		NumTasks:    p.NumTasks,
	}
	for _, row := range rows {
		sub.IDs = append(sub.IDs, p.IDs[row])
		sub.X = append(sub.X, p.X[row*p.NumFeatures:(row+1)*p.NumFeatures]...)
		sub.Y = append(sub.Y, p.Y[row*p.NumTasks:(row+1)*p.NumTasks]...)
		sub.W = append(sub.W, p.W[row*p.NumTasks:(row+1)*p.NumTasks]...)
	}
	return sub
}

// Slice returns the rows [start, end) as a partition sharing the underlying data.
func (p *Partition) Slice(start, end int) *Partition {
	return &Partition{
		IDs:         p.IDs[start:end],
		X:           p.X[start*p.NumFeatures : end*p.NumFeatures],
		Y:           p.Y[start*p.NumTasks : end*p.NumTasks],
		W:           p.W[start*p.NumTasks : end*p.NumTasks],
		NumFeatures: p.NumFeatures,
		NumTasks:    p.NumTasks,
	}
}

// Tensors converts the partition to tensors shaped [Len, NumFeatures] (features) and [Len, NumTasks]
// (labels and weights).
func (p *Partition) Tensors() (x, y, w *tensors.Tensor) {
	n := p.Len()
	x = tensors.FromFlatDataAndDimensions(p.X, n, p.NumFeatures)
	y = tensors.FromFlatDataAndDimensions(p.Y, n, p.NumTasks)
	w = tensors.FromFlatDataAndDimensions(p.W, n, p.NumTasks)
	return
}

// InMemoryDataset creates a GoMLX dataset with the features as the only input and labels plus weights as
// the labels. It is not batched: the caller configures batching and shuffling.
func (p *Partition) InMemoryDataset(backend backends.Backend, name string) (*datasets.InMemoryDataset, error) {
	if p.Len() == 0 {
		return nil, errors.Errorf("cannot create dataset %q from an empty partition", name)
	}
	x, y, w := p.Tensors()
	ds, err := datasets.InMemoryFromData(backend, name, []any{x}, []any{y, w})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create dataset %q", name)
	}
	return ds, nil
}

// Splits holds the train, validation and test partitions.
type Splits struct {
	Train, Valid, Test *Partition
}
