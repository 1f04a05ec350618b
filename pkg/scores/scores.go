// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package scores implements host-side evaluation metrics for multitask predictions.
//
// A Metric scores each task independently, over the rows where the task label was observed,
// and then reduces the per-task scores with its TaskAverager. Metric results are reported
// under the key "<averager>-<metric>", e.g. "mean-pearson_r2_score".
package scores

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// ScoreFn scores one task, given the observed labels and the corresponding predictions.
type ScoreFn func(labels, predictions []float64) float64

// Averager reduces per-task scores to one value.
type Averager struct {
	Name string
	Fn   func(taskScores []float64) float64
}

// Metric is a named score function plus how to average it over tasks.
type Metric struct {
	Name         string
	Fn           ScoreFn
	TaskAverager Averager
}

// Key returns the name under which the metric result is reported.
func (m Metric) Key() string {
	return m.TaskAverager.Name + "-" + m.Name
}

// Mean averages task scores with the arithmetic mean.
var Mean = Averager{
	Name: "mean",
	Fn: func(taskScores []float64) float64 {
		if len(taskScores) == 0 {
			return 0
		}
		return stat.Mean(taskScores, nil)
	},
}

// PearsonR2 is the squared Pearson correlation between labels and predictions.
//
// It returns 0 if there are fewer than 2 points or if either side has zero variance.
func PearsonR2(labels, predictions []float64) float64 {
	if len(labels) < 2 || len(labels) != len(predictions) {
		return 0
	}
	r := stat.Correlation(labels, predictions, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r * r
}

// PearsonR2Metric is the metric used to score the multitask regressor: Pearson r², averaged over tasks.
var PearsonR2Metric = Metric{Name: "pearson_r2_score", Fn: PearsonR2, TaskAverager: Mean}

// Compute scores a [numExamples, numTasks] prediction matrix (row-major, flat) against labels with
// the same layout. weights masks missing labels: only entries with non-zero weight are scored.
// weights may be nil, in which case every entry is observed.
func (m Metric) Compute(labels, predictions, weights []float64, numTasks int) (float64, error) {
	if numTasks <= 0 {
		return 0, errors.Errorf("metric %q: invalid number of tasks %d", m.Name, numTasks)
	}
	if len(labels) != len(predictions) || len(labels)%numTasks != 0 {
		return 0, errors.Errorf("metric %q: labels (%d values) and predictions (%d values) don't match %d tasks",
			m.Name, len(labels), len(predictions), numTasks)
	}
	if weights != nil && len(weights) != len(labels) {
		return 0, errors.Errorf("metric %q: weights has %d values, wanted %d", m.Name, len(weights), len(labels))
	}
	numExamples := len(labels) / numTasks
	taskScores := make([]float64, 0, numTasks)
	taskLabels := make([]float64, 0, numExamples)
	taskPredictions := make([]float64, 0, numExamples)
	for task := range numTasks {
		taskLabels, taskPredictions = taskLabels[:0], taskPredictions[:0]
		for row := range numExamples {
			idx := row*numTasks + task
			if weights != nil && weights[idx] == 0 {
				continue
			}
			taskLabels = append(taskLabels, labels[idx])
			taskPredictions = append(taskPredictions, predictions[idx])
		}
		taskScores = append(taskScores, m.Fn(taskLabels, taskPredictions))
	}
	return m.TaskAverager.Fn(taskScores), nil
}
