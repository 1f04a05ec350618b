// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package chembl loads the ChEMBL bioactivity dataset for multitask regression.
//
// The dataset is read from a CSV file (optionally gzip compressed) with one row per compound:
// a compound id column, one column per supported featurization (e.g. "ecfp" with a hex encoded
// fingerprint) and one column per task with the measured activity (empty when not measured).
//
// Loading featurizes the compounds shard by shard, normalizes the labels, splits the compounds
// into train, validation and test partitions and caches the result in a binary file next to
// the CSV, so later loads are fast.
package chembl

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path"
	"slices"

	"github.com/go-gota/gota/dataframe"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// IDColumn is the name of the compound id column.
const IDColumn = "CMPD_CHEMBLID"

// LoadOptions configures the dataset loading.
type LoadOptions struct {
	// ShardSize is the number of rows featurized at a time. It also bounds the prediction batch size
	// used for evaluation.
	ShardSize int

	// Featurizer tag, see Featurizers.
	Featurizer string

	// Set selects the dataset variant, e.g. "5thresh" (targets with at least 5 measured compounds).
	Set string

	// Split is the splitter name, see Splitters.
	Split string

	// Seed for the random splitter.
	Seed int64
}

// Loader provides the tasks, the split partitions and the label transformers of a dataset.
type Loader interface {
	Load(opts LoadOptions) (tasks []string, splits Splits, transformers []Transformer, err error)
}

// DiskLoader loads "chembl_<set>.csv.gz" (or "chembl_<set>.csv") from Dir.
type DiskLoader struct {
	Dir string
}

var _ Loader = DiskLoader{}

// cached is what is saved in the binary cache file.
type cached struct {
	Tasks         []string
	Splits        Splits
	Normalization *NormalizationTransformer
}

// CSVPath returns the path of the dataset file for the given set, preferring the compressed version.
func (l DiskLoader) CSVPath(set string) (string, error) {
	base := path.Join(l.Dir, fmt.Sprintf("chembl_%s.csv", set))
	for _, candidate := range []string{base + ".gz", base} {
		exists, err := fsutil.FileExists(candidate)
		if err != nil {
			return "", errors.Wrapf(err, "checking for %q", candidate)
		}
		if exists {
			return candidate, nil
		}
	}
	return "", errors.Errorf("ChEMBL dataset not found: neither %q nor %q exist", base+".gz", base)
}

// CachePath returns the path of the binary cache for the given options.
func (l DiskLoader) CachePath(opts LoadOptions) string {
	return path.Join(l.Dir, fmt.Sprintf("chembl_%s-%s-%s-%d.bin", opts.Set, opts.Featurizer, opts.Split, opts.Seed))
}

// Load implements Loader.
func (l DiskLoader) Load(opts LoadOptions) (tasks []string, splits Splits, transformers []Transformer, err error) {
	if opts.ShardSize <= 0 {
		err = errors.Errorf("invalid shard size %d", opts.ShardSize)
		return
	}
	var featurizer Featurizer
	featurizer, err = FeaturizerByName(opts.Featurizer)
	if err != nil {
		return
	}
	var splitter Splitter
	splitter, err = SplitterByName(opts.Split)
	if err != nil {
		return
	}

	cachePath := l.CachePath(opts)
	var data *cached
	data, err = loadCache(cachePath)
	if err != nil {
		return
	}
	if data != nil {
		klog.V(1).Infof("Loaded ChEMBL %q from cache %q", opts.Set, cachePath)
		return data.Tasks, data.Splits, []Transformer{data.Normalization}, nil
	}

	var csvPath string
	csvPath, err = l.CSVPath(opts.Set)
	if err != nil {
		return
	}
	var all *Partition
	tasks, all, err = readFeaturized(csvPath, featurizer, opts.ShardSize)
	if err != nil {
		return
	}

	normalization := NewNormalizationTransformer(all)
	if err = normalization.Transform(all); err != nil {
		return
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	trainRows, validRows, testRows := splitter.Split(all.Len(), rng)
	splits = Splits{Train: all.Subset(trainRows), Valid: all.Subset(validRows), Test: all.Subset(testRows)}
	transformers = []Transformer{normalization}

	data = &cached{Tasks: tasks, Splits: splits, Normalization: normalization}
	if err = saveCache(cachePath, data); err != nil {
		return
	}
	return
}

// readFeaturized reads the CSV file and featurizes its compounds, ShardSize rows at a time.
func readFeaturized(csvPath string, featurizer Featurizer, shardSize int) (tasks []string, p *Partition, err error) {
	var df dataframe.DataFrame
	df, err = readDataFrame(csvPath)
	if err != nil {
		return
	}
	names := df.Names()
	if !slices.Contains(names, IDColumn) || !slices.Contains(names, featurizer.Column()) {
		err = errors.Errorf("%q must have the columns %q and %q, got %q", csvPath, IDColumn, featurizer.Column(), names)
		return
	}
	for _, name := range names {
		if name != IDColumn && !isFeatureColumn(name) {
			tasks = append(tasks, name)
		}
	}
	if len(tasks) == 0 {
		err = errors.Errorf("%q has no task columns", csvPath)
		return
	}

	ids := df.Col(IDColumn).Records()
	representations := df.Col(featurizer.Column()).Records()
	labels := make([][]float64, len(tasks))
	for ii, task := range tasks {
		labels[ii] = df.Col(task).Float()
	}

	numRows := df.Nrow()
	numFeatures, numTasks := featurizer.NumFeatures(), len(tasks)
	p = &Partition{NumFeatures: numFeatures, NumTasks: numTasks}
	var numDropped int
	for shardStart := 0; shardStart < numRows; shardStart += shardSize {
		shardEnd := min(shardStart+shardSize, numRows)
		for row := shardStart; row < shardEnd; row++ {
			features, fErr := featurizer.Featurize(representations[row])
			if fErr != nil {
				klog.Warningf("Dropping compound %q (row %d): %v", ids[row], row, fErr)
				numDropped++
				continue
			}
			p.IDs = append(p.IDs, ids[row])
			p.X = append(p.X, features...)
			for task := range numTasks {
				y := labels[task][row]
				if math.IsNaN(y) {
					p.Y = append(p.Y, 0)
					p.W = append(p.W, 0)
				} else {
					p.Y = append(p.Y, float32(y))
					p.W = append(p.W, 1)
				}
			}
		}
		klog.V(1).Infof("Featurized shard [%d, %d) of %q", shardStart, shardEnd, csvPath)
	}
	if p.Len() == 0 {
		err = errors.Errorf("no compound of %q could be featurized (%d dropped)", csvPath, numDropped)
		return
	}
	if numDropped > 0 {
		klog.Infof("%d compounds of %q failed featurization and were dropped", numDropped, csvPath)
	}
	return
}

// isFeatureColumn returns whether the column holds a representation used by one of the featurizers.
func isFeatureColumn(name string) bool {
	for _, f := range Featurizers {
		if f.Column() == name {
			return true
		}
	}
	return false
}

// readDataFrame reads all columns as strings: task columns are converted afterward, with empty
// values becoming NaN.
func readDataFrame(csvPath string) (df dataframe.DataFrame, err error) {
	var f *os.File
	f, err = os.Open(csvPath)
	if err != nil {
		err = errors.Wrapf(err, "failed to open %q", csvPath)
		return
	}
	defer func() { _ = f.Close() }()
	var r io.Reader = f
	if path.Ext(csvPath) == ".gz" {
		var gz *gzip.Reader
		gz, err = gzip.NewReader(f)
		if err != nil {
			err = errors.Wrapf(err, "failed to decompress %q", csvPath)
			return
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	df = dataframe.ReadCSV(r, dataframe.HasHeader(true), dataframe.DetectTypes(false))
	if df.Err != nil {
		err = errors.Wrapf(df.Err, "failed to parse %q", csvPath)
	}
	return
}

// loadCache returns nil (and no error) if the cache file doesn't exist.
func loadCache(filePath string) (*cached, error) {
	exists, err := fsutil.FileExists(filePath)
	if err != nil || !exists {
		return nil, err
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", filePath)
	}
	defer func() { _ = f.Close() }()
	data := &cached{}
	if err := gob.NewDecoder(f).Decode(data); err != nil {
		return nil, errors.Wrapf(err, "failed to load data from %q", filePath)
	}
	return data, nil
}

func saveCache(filePath string, data *cached) (err error) {
	var f *os.File
	f, err = os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", filePath)
	}
	defer func() {
		cErr := f.Close()
		if err == nil && cErr != nil {
			err = errors.Wrapf(cErr, "failed to close file %q after writing", filePath)
		}
	}()
	if err = gob.NewEncoder(f).Encode(data); err != nil {
		return errors.Wrapf(err, "failed to write data to %q", filePath)
	}
	return nil
}
