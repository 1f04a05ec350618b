// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package chembl

import (
	"encoding/hex"
	"sort"

	"github.com/pkg/errors"
)

// Featurizer converts the stored representation of a compound into a feature vector.
type Featurizer interface {
	// Column is the name of the CSV column holding the compound representation.
	Column() string

	// NumFeatures is the length of the feature vector.
	NumFeatures() int

	// Featurize decodes one compound. An error means the compound is dropped.
	Featurize(value string) ([]float32, error)
}

// Featurizers registry, keyed by tag.
var Featurizers = map[string]Featurizer{
	"ECFP": ECFP{NumBits: 1024},
}

// FeaturizerByName returns the registered featurizer, or an error listing the known tags.
func FeaturizerByName(tag string) (Featurizer, error) {
	f, found := Featurizers[tag]
	if !found {
		known := make([]string, 0, len(Featurizers))
		for k := range Featurizers {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, errors.Errorf("unknown featurizer %q, known featurizers: %q", tag, known)
	}
	return f, nil
}

// ECFP decodes a hex encoded extended-connectivity circular fingerprint into a vector of 0/1 floats.
// Bits are read most significant first within each byte.
type ECFP struct {
	NumBits int
}

// Column implements Featurizer.
func (f ECFP) Column() string { return "ecfp" }

// NumFeatures implements Featurizer.
func (f ECFP) NumFeatures() int { return f.NumBits }

// Featurize implements Featurizer.
func (f ECFP) Featurize(value string) ([]float32, error) {
	if len(value) != f.NumBits/4 {
		return nil, errors.Errorf("ECFP fingerprint has %d hex digits, wanted %d", len(value), f.NumBits/4)
	}
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid ECFP fingerprint")
	}
	bits := make([]float32, f.NumBits)
	for ii := range bits {
		if raw[ii/8]&(0x80>>(ii%8)) != 0 {
			bits[ii] = 1
		}
	}
	return bits, nil
}
