// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package mlp implements a fully connected binary classifier (two softmax outputs) and its training
// loop with early stopping on the validation loss.
//
// Training runs one epoch at a time: after each epoch the loss and accuracy on the training and
// validation partitions are appended to a history.History, and the early-stopping predicate
// decides whether to continue.
package mlp

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/molprop/pkg/history"
	"github.com/gomlx/molprop/pkg/tabular"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Classifier is a feed-forward binary classifier.
type Classifier struct {
	backend    backends.Backend
	config     Config
	activation activations.Type
	layers     []Layer
	ctx        *context.Context
	trainer    *train.Trainer
	evalExec   *context.Exec

	// progress is where the epochs progress bar is written. If nil, no progress bar is shown.
	progress io.Writer
}

// New creates a classifier and initializes its weights, using config.Seed.
func New(backend backends.Backend, config Config) (*Classifier, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid classifier configuration")
	}
	c := &Classifier{
		backend: backend,
		config:  config.clone(),
		ctx:     context.New(),
	}
	c.activation, _ = activations.TypeString(c.config.Activation)
	c.layers = c.config.Layers()
	c.ctx.RngStateFromSeed(c.config.Seed)
	c.ctx.SetParam(optimizers.ParamOptimizer, c.config.Optimizer)
	if c.config.LearningRate > 0 {
		c.ctx.SetParam(optimizers.ParamLearningRate, c.config.LearningRate)
	}
	err := exceptions.TryCatch[error](func() {
		c.createVariables(rand.New(rand.NewSource(c.config.Seed)))
		c.trainer = train.NewTrainer(backend, c.ctx.Reuse(), c.ModelGraph, Loss,
			optimizers.FromContext(c.ctx),
			nil, // trainMetrics
			nil) // evalMetrics
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create classifier")
	}
	return c, nil
}

// WithProgressBar writes a progress bar over the epochs to w while fitting. A nil w disables it.
func (c *Classifier) WithProgressBar(w io.Writer) *Classifier {
	c.progress = w
	return c
}

// Config returns a copy of the classifier configuration.
func (c *Classifier) Config() Config { return c.config.clone() }

// Layers returns the description of the dense layers, including the output layer.
func (c *Classifier) Layers() []Layer {
	return append([]Layer(nil), c.layers...)
}

// NumParameters returns the number of trainable scalar values.
func (c *Classifier) NumParameters() int {
	var total int
	for _, l := range c.layers {
		total += l.NumParameters()
	}
	return total
}

// Fit trains the classifier on examples, keeping the last ValidationSplit fraction of them for validation.
// The training partition is reshuffled every epoch.
//
// It returns the per-epoch history, with times normalized so the first epoch ends at 0.
func (c *Classifier) Fit(examples *tabular.Examples) (*history.History, error) {
	if examples.NumFeatures != c.config.NumFeatures {
		return nil, errors.Errorf("examples have %d features, classifier expects %d", examples.NumFeatures, c.config.NumFeatures)
	}
	trainExamples, validExamples, err := examples.ValidationSplit(c.config.ValidationSplit)
	if err != nil {
		return nil, err
	}
	features, labels := trainExamples.Tensors()
	ds, err := datasets.InMemoryFromData(c.backend, "train", []any{features}, []any{labels})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create training dataset")
	}
	ds.BatchSize(c.config.BatchSize, false).
		WithRand(rand.New(rand.NewSource(c.config.Seed))).
		Shuffle()

	stopping := NewEarlyStopping(c.config.Patience)
	hist := &history.History{}
	bar := c.newProgressBar()
	start := time.Now()
	for epoch := 1; epoch <= c.config.MaxEpochs; epoch++ {
		loop := train.NewLoop(c.trainer)
		if _, err := loop.RunEpochs(ds, 1); err != nil {
			return nil, errors.WithMessagef(err, "failed training epoch %d", epoch)
		}
		record := history.Record{Epoch: epoch}
		record.Loss, record.Acc, err = c.Evaluate(trainExamples)
		if err != nil {
			return nil, err
		}
		record.ValLoss, record.ValAcc, err = c.Evaluate(validExamples)
		if err != nil {
			return nil, err
		}
		record.Time = time.Since(start).Seconds()
		hist.Append(record)
		if bar != nil {
			bar.Describe(fmt.Sprintf("loss=%.4f val_loss=%.4f val_acc=%.4f", record.Loss, record.ValLoss, record.ValAcc))
			_ = bar.Add(1)
		}
		if stopping.Update(record.ValLoss) {
			klog.V(1).Infof("Early stopping at epoch %d: best val_loss=%.4f", epoch, stopping.Best())
			break
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	hist.NormalizeTimes()
	return hist, nil
}

func (c *Classifier) newProgressBar() *progressbar.ProgressBar {
	if c.progress == nil {
		return nil
	}
	return progressbar.NewOptions(c.config.MaxEpochs,
		progressbar.OptionSetWriter(c.progress),
		progressbar.OptionSetDescription("epochs"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(c.progress) }),
	)
}

// Evaluate returns the mean loss and the accuracy over the examples, computed in batches of BatchSize.
func (c *Classifier) Evaluate(examples *tabular.Examples) (loss, accuracy float64, err error) {
	if examples.NumExamples == 0 {
		return 0, 0, errors.New("cannot evaluate zero examples")
	}
	if c.evalExec == nil {
		c.evalExec, err = context.NewExec(c.backend, c.ctx.Reuse(), c.evalGraph)
		if err != nil {
			return 0, 0, errors.WithMessage(err, "failed to create evaluation graph")
		}
	}
	for start := 0; start < examples.NumExamples; start += c.config.BatchSize {
		batch := examples.Slice(start, min(start+c.config.BatchSize, examples.NumExamples))
		features, labels := batch.Tensors()
		var batchLoss, batchAccuracy *tensors.Tensor
		batchLoss, batchAccuracy, err = c.evalExec.Exec2(features, labels)
		if err != nil {
			return 0, 0, errors.WithMessagef(err, "failed to evaluate examples [%d, %d)", start, start+batch.NumExamples)
		}
		n := float64(batch.NumExamples)
		loss += float64(tensors.ToScalar[float32](batchLoss)) * n
		accuracy += float64(tensors.ToScalar[float32](batchAccuracy)) * n
		batchLoss.FinalizeAll()
		batchAccuracy.FinalizeAll()
	}
	n := float64(examples.NumExamples)
	return loss / n, accuracy / n, nil
}

// Weights returns the current values of the model variables, keyed by their scope and name
// (e.g. "model/dense_0/weights").
func (c *Classifier) Weights() (map[string]*tensors.Tensor, error) {
	weights := make(map[string]*tensors.Tensor)
	for v := range c.ctx.In(ModelScope).IterVariablesInScope() {
		value, err := v.Value()
		if err != nil {
			return nil, errors.WithMessagef(err, "reading variable %q", v.ScopeAndName())
		}
		weights[strings.TrimPrefix(v.ScopeAndName(), context.ScopeSeparator)] = value
	}
	return weights, nil
}
