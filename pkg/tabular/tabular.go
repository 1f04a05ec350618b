// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tabular loads a labeled numeric table from a NumPy ".npz" archive and prepares it for a
// binary classifier: row permutation, feature/label split and one-hot encoding of the label.
//
// The archive must hold an array named "data" shaped [numSamples, numFeatures+1], whose last column
// is the label, 0 or 1.
package tabular

import (
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/numpy"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// DataArray is the name of the array read from the archive.
const DataArray = "data"

// NumClasses of the one-hot encoded label.
const NumClasses = 2

// Table is a dense row-major matrix.
type Table struct {
	NumRows, NumCols int
	Values           []float32
}

// Load reads the DataArray of the ".npz" file. Integer and floating point arrays are accepted and
// converted to float32.
func Load(filePath string) (*Table, error) {
	arrays, err := numpy.FromNpzFile(filePath)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to read %q", filePath)
	}
	tensor, found := arrays[DataArray]
	if !found {
		names := make([]string, 0, len(arrays))
		for name := range arrays {
			names = append(names, name)
		}
		return nil, errors.Errorf("%q has no array %q (arrays found: %q)", filePath, DataArray, names)
	}
	shape := tensor.Shape()
	if shape.Rank() != 2 || shape.Dimensions[0] == 0 || shape.Dimensions[1] < 2 {
		return nil, errors.Errorf("%q: array %q must be shaped [numSamples>0, numFeatures+1>=2], got %s",
			filePath, DataArray, shape)
	}
	values, err := toFloat32(tensor)
	if err != nil {
		return nil, errors.WithMessagef(err, "%q: array %q", filePath, DataArray)
	}
	return &Table{NumRows: shape.Dimensions[0], NumCols: shape.Dimensions[1], Values: values}, nil
}

// Save writes the table as the DataArray of a ".npz" file.
func (t *Table) Save(filePath string) error {
	tensor := tensors.FromFlatDataAndDimensions(t.Values, t.NumRows, t.NumCols)
	if err := numpy.ToNpzFile(map[string]*tensors.Tensor{DataArray: tensor}, filePath); err != nil {
		return errors.WithMessagef(err, "failed to write %q", filePath)
	}
	return nil
}

func toFloat32(t *tensors.Tensor) ([]float32, error) {
	switch t.DType() {
	case dtypes.Float32:
		return tensors.MustCopyFlatData[float32](t), nil
	case dtypes.Float64:
		return convert(tensors.MustCopyFlatData[float64](t)), nil
	case dtypes.Int64:
		return convert(tensors.MustCopyFlatData[int64](t)), nil
	case dtypes.Int32:
		return convert(tensors.MustCopyFlatData[int32](t)), nil
	case dtypes.Uint8:
		return convert(tensors.MustCopyFlatData[uint8](t)), nil
	case dtypes.Bool:
		values := tensors.MustCopyFlatData[bool](t)
		converted := make([]float32, len(values))
		for ii, v := range values {
			if v {
				converted[ii] = 1
			}
		}
		return converted, nil
	default:
		return nil, errors.Errorf("unsupported dtype %s", t.DType())
	}
}

func convert[T constraints.Integer | constraints.Float](values []T) []float32 {
	converted := make([]float32, len(values))
	for ii, v := range values {
		converted[ii] = float32(v)
	}
	return converted
}

// Row returns a view of the given row.
func (t *Table) Row(row int) []float32 {
	return t.Values[row*t.NumCols : (row+1)*t.NumCols]
}

// Permute returns a copy of the table with the rows in the order of rng.Perm.
func (t *Table) Permute(rng *rand.Rand) *Table {
	permuted := &Table{NumRows: t.NumRows, NumCols: t.NumCols, Values: make([]float32, 0, len(t.Values))}
	for _, row := range rng.Perm(t.NumRows) {
		permuted.Values = append(permuted.Values, t.Row(row)...)
	}
	return permuted
}

// Examples holds features and one-hot labels, ready for training.
type Examples struct {
	NumExamples, NumFeatures int

	// Features shaped [NumExamples, NumFeatures].
	Features []float32

	// Labels one-hot encoded, shaped [NumExamples, NumClasses].
	Labels []float32
}

// Split takes all but the last column as features and the last column as the label, which must be 0 or 1,
// and is one-hot encoded.
func (t *Table) Split() (*Examples, error) {
	numFeatures := t.NumCols - 1
	ex := &Examples{
		NumExamples: t.NumRows,
		NumFeatures: numFeatures,
		Features:    make([]float32, 0, t.NumRows*numFeatures),
	}
	labels := make([]int, t.NumRows)
	for row := range t.NumRows {
		values := t.Row(row)
		ex.Features = append(ex.Features, values[:numFeatures]...)
		label := values[numFeatures]
		if label != 0 && label != 1 {
			return nil, errors.Errorf("row %d has label %g, labels must be 0 or 1", row, label)
		}
		labels[row] = int(label)
	}
	ex.Labels = OneHot(labels, NumClasses)
	return ex, nil
}

// OneHot encodes each label as a row of numClasses values with a 1 in the label's column.
func OneHot(labels []int, numClasses int) []float32 {
	encoded := make([]float32, len(labels)*numClasses)
	for row, label := range labels {
		encoded[row*numClasses+label] = 1
	}
	return encoded
}

// Slice returns the examples [start, end), sharing the underlying data.
func (ex *Examples) Slice(start, end int) *Examples {
	return &Examples{
		NumExamples: end - start,
		NumFeatures: ex.NumFeatures,
		Features:    ex.Features[start*ex.NumFeatures : end*ex.NumFeatures],
		Labels:      ex.Labels[start*NumClasses : end*NumClasses],
	}
}

// ValidationSplit splits off the last fraction of the examples for validation, keeping at least one
// example on each side.
func (ex *Examples) ValidationSplit(fraction float64) (train, validation *Examples, err error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, errors.Errorf("invalid validation fraction %g", fraction)
	}
	splitAt := int(float64(ex.NumExamples) * (1 - fraction))
	if splitAt < 1 || splitAt >= ex.NumExamples {
		return nil, nil, errors.Errorf("cannot split %d examples with validation fraction %g", ex.NumExamples, fraction)
	}
	return ex.Slice(0, splitAt), ex.Slice(splitAt, ex.NumExamples), nil
}

// Tensors returns the features and labels as tensors.
func (ex *Examples) Tensors() (features, labels *tensors.Tensor) {
	features = tensors.FromFlatDataAndDimensions(ex.Features, ex.NumExamples, ex.NumFeatures)
	labels = tensors.FromFlatDataAndDimensions(ex.Labels, ex.NumExamples, NumClasses)
	return
}
