// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package artifacts names and writes the files produced by each training run of a sweep: the per-epoch
// log and plot under "result/", the model architecture and weights under "model/".
//
// All files of a run share a stem that encodes the hyperparameters of the run:
//
//	<dataset base name>_<width 1>_..._<width n>_<batch size>_<optimizer>_<activation>_<max epochs>
package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/numpy"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Output directories, relative to the run's root directory.
const (
	ModelDir  = "model"
	ResultDir = "result"
)

// Run identifies one training run by its hyperparameters.
type Run struct {
	// DataFile is the dataset path: only its base name is used.
	DataFile   string
	Widths     []int
	BatchSize  int
	Optimizer  string
	Activation string
	MaxEpochs  int
}

// Stem returns the base name (without directory or extension) shared by all files of the run.
func (r Run) Stem() string {
	parts := []string{
		filepath.Base(r.DataFile),
		joinInts(r.Widths, "_"),
		strconv.Itoa(r.BatchSize),
		r.Optimizer,
		r.Activation,
		strconv.Itoa(r.MaxEpochs),
	}
	return strings.Join(parts, "_")
}

func joinInts[T constraints.Integer](values []T, sep string) string {
	parts := make([]string, len(values))
	for ii, v := range values {
		parts[ii] = strconv.FormatInt(int64(v), 10)
	}
	return strings.Join(parts, sep)
}

// Paths of the files of one run.
type Paths struct {
	Log, Plot, Architecture, Weights string
}

// PathsFor returns the paths of the run's files under rootDir.
func PathsFor(rootDir string, r Run) Paths {
	stem := r.Stem()
	return Paths{
		Log:          filepath.Join(rootDir, ResultDir, stem+".log"),
		Plot:         filepath.Join(rootDir, ResultDir, stem+".png"),
		Architecture: filepath.Join(rootDir, ModelDir, stem+".json"),
		Weights:      filepath.Join(rootDir, ModelDir, stem+".npz"),
	}
}

// EnsureDirs creates the output directories under rootDir, if they don't exist yet.
func EnsureDirs(rootDir string) error {
	for _, dir := range []string{ModelDir, ResultDir} {
		dirPath := filepath.Join(rootDir, dir)
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %q", dirPath)
		}
	}
	return nil
}

// SaveArchitecture writes the model description as indented JSON, overwriting the file.
func SaveArchitecture(filePath string, architecture any) error {
	contents, err := json.MarshalIndent(architecture, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode the model architecture")
	}
	if err := os.WriteFile(filePath, append(contents, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %q", filePath)
	}
	return nil
}

// LoadArchitecture reads a model description written by SaveArchitecture into architecture.
func LoadArchitecture(filePath string, architecture any) error {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to read %q", filePath)
	}
	if err := json.Unmarshal(contents, architecture); err != nil {
		return errors.Wrapf(err, "failed to parse %q", filePath)
	}
	return nil
}

// SaveWeights writes the named weights as a NumPy ".npz" archive, overwriting the file.
func SaveWeights(filePath string, weights map[string]*tensors.Tensor) error {
	if len(weights) == 0 {
		return errors.Errorf("no weights to save to %q", filePath)
	}
	if err := numpy.ToNpzFile(weights, filePath); err != nil {
		return errors.WithMessagef(err, "failed to write weights to %q", filePath)
	}
	return nil
}

// LoadWeights reads the weights written by SaveWeights.
func LoadWeights(filePath string) (map[string]*tensors.Tensor, error) {
	weights, err := numpy.FromNpzFile(filePath)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to read weights from %q", filePath)
	}
	return weights, nil
}
