// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// chembl_multitask trains a multitask feed-forward regressor on the ChEMBL "5thresh" dataset, with
// a fixed configuration, and reports the mean Pearson r² over tasks on the train, validation and
// test partitions.
//
// The dataset ("chembl_5thresh.csv.gz") is read from the directory given by -data, where the
// featurized cache is also written.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/molprop/pkg/chembl"
	"github.com/gomlx/molprop/pkg/multitask"
	"github.com/gomlx/molprop/pkg/scores"
	"github.com/gomlx/molprop/ui/tables"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagDataDir     = flag.String("data", "~/work/chembl", "Directory with the ChEMBL dataset files, where the featurized cache is also saved.")
	flagProgressBar = flag.Bool("bar", true, "Display a progress bar while training.")
)

// Experiment is the fixed configuration of a run. NumTasks and NumFeatures of Model are taken from the data.
type Experiment struct {
	Load   chembl.LoadOptions
	Model  multitask.Config
	Epochs int
}

// DefaultExperiment is the configuration used by the command.
func DefaultExperiment() Experiment {
	const numLayers = 3
	return Experiment{
		Load: chembl.LoadOptions{
			ShardSize:  2000,
			Featurizer: "ECFP",
			Set:        "5thresh",
			Split:      "random",
			Seed:       123,
		},
		Model: multitask.Config{
			LayerSizes:        []int{1000, 1000, 1000},
			Dropouts:          repeat(0.25, numLayers),
			WeightInitStddevs: repeat(0.02, numLayers),
			BiasInitConsts:    repeat(1.0, numLayers),
			LearningRate:      3e-4,
			Penalty:           1e-4,
			PenaltyType:       "l2",
			Optimizer:         "adam",
			BatchSize:         100,
			Seed:              123,
		},
		Epochs: 10,
	}
}

func repeat(v float64, n int) []float64 {
	values := make([]float64, n)
	for ii := range values {
		values[ii] = v
	}
	return values
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	dataDir := must.M1(fsutil.ReplaceTildeInDir(*flagDataDir))

	var backend backends.Backend
	err := exceptions.TryCatch[error](func() { backend = backends.New() })
	if err != nil {
		klog.Fatalf("Failed to create backend: %+v", err)
	}
	defer backend.Finalize()

	err = run(os.Stdout, chembl.DiskLoader{Dir: dataDir}, backend, DefaultExperiment(), *flagProgressBar)
	if err != nil {
		klog.Fatalf("Failed: %+v", err)
	}
}

// run loads the data, trains the regressor and prints its scores on each partition.
func run(out io.Writer, loader chembl.Loader, backend backends.Backend, exp Experiment, progressBar bool) error {
	_, _ = fmt.Fprintln(out, "About to load ChEMBL data.")
	tasks, splits, transformers, err := loader.Load(exp.Load)
	if err != nil {
		return errors.WithMessage(err, "failed to load ChEMBL data")
	}
	_, _ = fmt.Fprintf(out, "Number of tasks: %d\n", len(tasks))
	_, _ = fmt.Fprintf(out, "Number of compounds in train set: %d\n", splits.Train.Len())
	_, _ = fmt.Fprintf(out, "Number of compounds in validation set: %d\n", splits.Valid.Len())
	_, _ = fmt.Fprintf(out, "Number of compounds in test set: %d\n", splits.Test.Len())

	config := exp.Model
	config.NumTasks = len(tasks)
	config.NumFeatures = splits.Train.DataShape()[0]
	regressor, err := multitask.New(backend, config)
	if err != nil {
		return err
	}
	regressor.WithPredictBatchSize(exp.Load.ShardSize).WithProgressBar(progressBar)
	klog.V(1).Infof("Regressor with %d parameters", regressor.NumParameters())

	_, _ = fmt.Fprintln(out, "Training model")
	start := time.Now()
	if err := regressor.Fit(splits.Train, exp.Epochs); err != nil {
		return err
	}
	trainTime := time.Since(start)

	start = time.Now()
	metrics := []scores.Metric{scores.PearsonR2Metric}
	partitions := []struct {
		name      string
		partition *chembl.Partition
	}{
		{"Train", splits.Train},
		{"Validation", splits.Valid},
		{"Test", splits.Test},
	}
	results := make([]map[string]float64, len(partitions))
	for ii, p := range partitions {
		results[ii], err = regressor.Evaluate(p.partition, metrics, transformers)
		if err != nil {
			return errors.WithMessagef(err, "failed to evaluate %s partition", p.name)
		}
		_, _ = fmt.Fprintf(out, "%s scores\n%v\n", p.name, results[ii])
	}
	evalTime := time.Since(start)

	_, _ = fmt.Fprintf(out, "Train time: %.1fm\n", trainTime.Minutes())
	_, _ = fmt.Fprintf(out, "Eval time: %.1fm\n", evalTime.Minutes())

	summary := make(map[string]float64, len(partitions)*len(metrics))
	for ii, p := range partitions {
		for key, value := range results[ii] {
			summary[p.name+" "+key] = value
		}
	}
	_, _ = fmt.Fprintln(out, tables.FromScores(summary))
	return nil
}
