// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package chembl

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Fractions of the dataset used for train and validation. The test partition takes the remainder.
const (
	FracTrain = 0.8
	FracValid = 0.1
)

// Splitter assigns row indices to train, validation and test.
type Splitter interface {
	Split(numRows int, rng *rand.Rand) (train, valid, test []int)
}

// Splitters registry, keyed by name.
var Splitters = map[string]Splitter{
	"random": RandomSplitter{},
	"index":  IndexSplitter{},
}

// SplitterByName returns the registered splitter.
func SplitterByName(name string) (Splitter, error) {
	s, found := Splitters[name]
	if !found {
		return nil, errors.Errorf("unknown split %q, valid values are \"random\" and \"index\"", name)
	}
	return s, nil
}

// cutoffs returns the end of the train and validation ranges.
func cutoffs(numRows int) (trainEnd, validEnd int) {
	trainEnd = int(FracTrain * float64(numRows))
	validEnd = int((FracTrain + FracValid) * float64(numRows))
	return
}

// RandomSplitter splits a random permutation of the rows.
type RandomSplitter struct{}

// Split implements Splitter.
func (RandomSplitter) Split(numRows int, rng *rand.Rand) (train, valid, test []int) {
	perm := rng.Perm(numRows)
	trainEnd, validEnd := cutoffs(numRows)
	return perm[:trainEnd], perm[trainEnd:validEnd], perm[validEnd:]
}

// IndexSplitter splits the rows in file order. The rng is not used.
type IndexSplitter struct{}

// Split implements Splitter.
func (IndexSplitter) Split(numRows int, _ *rand.Rand) (train, valid, test []int) {
	rows := make([]int, numRows)
	for ii := range rows {
		rows[ii] = ii
	}
	trainEnd, validEnd := cutoffs(numRows)
	return rows[:trainEnd], rows[trainEnd:validEnd], rows[validEnd:]
}
