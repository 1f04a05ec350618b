// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package multitask implements a fully connected multitask regressor: a stack of ReLU hidden layers
// with dropout, shared by all tasks, followed by one linear output per task.
//
// Missing labels are masked out of the loss by their weights, and evaluation scores each task only
// on its observed labels, after undoing the label transformers.
package multitask

import (
	"math/rand"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers/regularizers"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/molprop/pkg/chembl"
	"github.com/gomlx/molprop/pkg/scores"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Regressor is a multitask regression model.
type Regressor struct {
	backend     backends.Backend
	config      Config
	ctx         *context.Context
	regularizer regularizers.Regularizer
	trainer     *train.Trainer
	predictExec *context.Exec

	predictBatchSize int
	progressBar      bool
}

// New creates the regressor and initializes its variables, using config.Seed for the initial values
// and for dropout.
func New(backend backends.Backend, config Config) (*Regressor, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid multitask regressor configuration")
	}
	r := &Regressor{
		backend:          backend,
		config:           config.clone(),
		ctx:              context.New(),
		predictBatchSize: config.BatchSize,
	}
	r.ctx.RngStateFromSeed(r.config.Seed)
	r.ctx.SetParams(map[string]any{
		optimizers.ParamOptimizer:    r.config.Optimizer,
		optimizers.ParamLearningRate: r.config.LearningRate,
	})
	switch r.config.PenaltyType {
	case "l1":
		r.regularizer = regularizers.L1(r.config.Penalty)
	case "l2":
		r.regularizer = regularizers.L2(r.config.Penalty)
	}
	err := exceptions.TryCatch[error](func() {
		r.createVariables(rand.New(rand.NewSource(r.config.Seed)))
		r.trainer = train.NewTrainer(backend, r.ctx.Reuse(), r.ModelGraph, WeightedMeanSquaredError,
			optimizers.FromContext(r.ctx),
			nil, // trainMetrics
			nil) // evalMetrics
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create multitask regressor")
	}
	return r, nil
}

// Config returns a copy of the regressor configuration.
func (r *Regressor) Config() Config { return r.config.clone() }

// NumParameters returns the number of trainable scalar values: the weights and biases of every layer.
func (r *Regressor) NumParameters() int {
	cfg := &r.config
	var total int
	inputDim := cfg.NumFeatures
	for _, size := range cfg.LayerSizes {
		total += inputDim*size + size
		inputDim = size
	}
	return total + inputDim*cfg.NumTasks + cfg.NumTasks
}

// WithPredictBatchSize sets the maximum number of examples predicted at once. It defaults to the
// training batch size.
func (r *Regressor) WithPredictBatchSize(n int) *Regressor {
	if n > 0 {
		r.predictBatchSize = n
	}
	return r
}

// WithProgressBar enables a progress bar while fitting.
func (r *Regressor) WithProgressBar(enabled bool) *Regressor {
	r.progressBar = enabled
	return r
}

// Fit trains the model for the given number of epochs over p, shuffled with the configured seed.
func (r *Regressor) Fit(p *chembl.Partition, epochs int) error {
	if epochs <= 0 {
		return errors.Errorf("invalid number of epochs %d", epochs)
	}
	if err := r.checkPartition(p); err != nil {
		return err
	}
	ds, err := p.InMemoryDataset(r.backend, "train")
	if err != nil {
		return err
	}
	ds.BatchSize(r.config.BatchSize, false).
		WithRand(rand.New(rand.NewSource(r.config.Seed))).
		Shuffle()
	loop := train.NewLoop(r.trainer)
	if r.progressBar {
		commandline.AttachProgressBar(loop)
	}
	metrics, err := loop.RunEpochs(ds, epochs)
	if err != nil {
		return errors.WithMessagef(err, "failed to fit %d epochs", epochs)
	}
	if len(metrics) > 0 {
		klog.V(1).Infof("Fit %d epochs, last batch loss=%s", epochs, metrics[0])
	}
	return nil
}

func (r *Regressor) checkPartition(p *chembl.Partition) error {
	if p.NumFeatures != r.config.NumFeatures || p.NumTasks != r.config.NumTasks {
		return errors.Errorf("partition has %d features and %d tasks, model expects %d and %d",
			p.NumFeatures, p.NumTasks, r.config.NumFeatures, r.config.NumTasks)
	}
	return nil
}

// Predict returns the predictions for p, flat and shaped [p.Len(), NumTasks], in the transformed label space.
// Dropout is disabled.
func (r *Regressor) Predict(p *chembl.Partition) ([]float64, error) {
	if err := r.checkPartition(p); err != nil {
		return nil, err
	}
	if r.predictExec == nil {
		var err error
		r.predictExec, err = context.NewExec(r.backend, r.ctx.Reuse(), func(ctx *context.Context, x *Node) *Node {
			return r.forwardGraph(ctx, x)
		})
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create prediction graph")
		}
	}
	predictions := make([]float64, 0, p.Len()*r.config.NumTasks)
	for start := 0; start < p.Len(); start += r.predictBatchSize {
		batch := p.Slice(start, min(start+r.predictBatchSize, p.Len()))
		x, _, _ := batch.Tensors()
		output, err := r.predictExec.Exec1(x)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to predict examples [%d, %d)", start, start+batch.Len())
		}
		for _, v := range tensors.MustCopyFlatData[float32](output) {
			predictions = append(predictions, float64(v))
		}
		output.FinalizeAll()
	}
	return predictions, nil
}

// Evaluate scores the predictions for p with each of the metrics, after undoing the transformers on both
// predictions and labels. The results are keyed by scores.Metric.Key, e.g. "mean-pearson_r2_score".
func (r *Regressor) Evaluate(p *chembl.Partition, metrics []scores.Metric, transformers []chembl.Transformer) (map[string]float64, error) {
	predictions, err := r.Predict(p)
	if err != nil {
		return nil, err
	}
	numTasks := r.config.NumTasks
	labels := make([]float64, len(p.Y))
	weights := make([]float64, len(p.W))
	for ii := range p.Y {
		labels[ii] = float64(p.Y[ii])
		weights[ii] = float64(p.W[ii])
	}
	if err := chembl.UntransformAll(transformers, predictions, numTasks); err != nil {
		return nil, err
	}
	if err := chembl.UntransformAll(transformers, labels, numTasks); err != nil {
		return nil, err
	}
	results := make(map[string]float64, len(metrics))
	for _, metric := range metrics {
		score, err := metric.Compute(labels, predictions, weights, numTasks)
		if err != nil {
			return nil, err
		}
		results[metric.Key()] = score
	}
	return results, nil
}
