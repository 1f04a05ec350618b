// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package multitask

import (
	"fmt"
	"math"
	"math/rand"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gopjrt/dtypes"
)

// DType used by the model.
var DType = dtypes.Float32

// Variable names, within each layer's scope.
const (
	WeightsVar = "weights"
	BiasesVar  = "biases"
)

// OutputScope is the scope of the final (linear) layer.
const OutputScope = "output"

// LayerScope returns the scope of the ii-th hidden layer.
func LayerScope(ii int) string { return fmt.Sprintf("dense_%d", ii) }

// createVariables initializes all layers with values drawn from rng: weights from a normal distribution
// truncated at 2 standard deviations, biases with a constant.
// The output layer uses the initialization of the last hidden layer.
func (r *Regressor) createVariables(rng *rand.Rand) {
	cfg := &r.config
	inputDim := cfg.NumFeatures
	for ii, size := range cfg.LayerSizes {
		createDenseVariables(r.ctx.In(LayerScope(ii)), rng, inputDim, size, cfg.WeightInitStddevs[ii], cfg.BiasInitConsts[ii])
		inputDim = size
	}
	last := len(cfg.LayerSizes) - 1
	createDenseVariables(r.ctx.In(OutputScope), rng, inputDim, cfg.NumTasks, cfg.WeightInitStddevs[last], cfg.BiasInitConsts[last])
}

func createDenseVariables(ctx *context.Context, rng *rand.Rand, inputDim, outputDim int, stddev, bias float64) {
	weights := make([]float32, inputDim*outputDim)
	for ii := range weights {
		weights[ii] = float32(truncatedNormal(rng) * stddev)
	}
	biases := make([]float32, outputDim)
	for ii := range biases {
		biases[ii] = float32(bias)
	}
	ctx.VariableWithValue(WeightsVar, tensors.FromFlatDataAndDimensions(weights, inputDim, outputDim))
	ctx.VariableWithValue(BiasesVar, tensors.FromFlatDataAndDimensions(biases, outputDim))
}

// truncatedNormal samples the standard normal distribution, re-sampling values beyond 2 standard deviations.
func truncatedNormal(rng *rand.Rand) float64 {
	for {
		v := rng.NormFloat64()
		if math.Abs(v) <= 2 {
			return v
		}
	}
}

// denseGraph applies x·weights + biases, with the variables of the current scope.
func denseGraph(ctx *context.Context, x *Node, inputDim, outputDim int) (*Node, *context.Variable) {
	g := x.Graph()
	weights := ctx.VariableWithShape(WeightsVar, shapes.Make(x.DType(), inputDim, outputDim))
	biases := ctx.VariableWithShape(BiasesVar, shapes.Make(x.DType(), outputDim))
	return Add(Dot(x, weights.ValueGraph(g)), ExpandAxes(biases.ValueGraph(g), 0)), weights
}

// ModelGraph implements train.ModelFn: inputs[0] is the batch of features, shaped [batchSize, NumFeatures],
// and the only output is the prediction for every task, shaped [batchSize, NumTasks].
func (r *Regressor) ModelGraph(ctx *context.Context, _ any, inputs []*Node) []*Node {
	return []*Node{r.forwardGraph(ctx, inputs[0])}
}

func (r *Regressor) forwardGraph(ctx *context.Context, x *Node) *Node {
	g := x.Graph()
	cfg := &r.config
	weights := make([]*context.Variable, 0, len(cfg.LayerSizes)+1)
	inputDim := cfg.NumFeatures
	for ii, size := range cfg.LayerSizes {
		layerCtx := ctx.In(LayerScope(ii))
		var w *context.Variable
		x, w = denseGraph(layerCtx, x, inputDim, size)
		weights = append(weights, w)
		x = activations.Relu(x)
		if rate := cfg.Dropouts[ii]; rate > 0 {
			x = layers.Dropout(layerCtx, x, Scalar(g, x.DType(), rate))
		}
		inputDim = size
	}
	output, w := denseGraph(ctx.In(OutputScope), x, inputDim, cfg.NumTasks)
	weights = append(weights, w)
	if r.regularizer != nil && ctx.IsTraining(g) {
		r.regularizer(ctx, g, weights...)
	}
	return output
}

// WeightedMeanSquaredError is the loss: labels[0] are the task labels and labels[1] their weights, both shaped
// like the predictions. Entries with weight 0 (missing labels) don't contribute.
func WeightedMeanSquaredError(labels, predictions []*Node) *Node {
	y, w := labels[0], labels[1]
	residuals := Sub(predictions[0], y)
	sumWeights := ReduceAllSum(w)
	return Div(ReduceAllSum(Mul(w, Square(residuals))), Max(sumWeights, OnesLike(sumWeights)))
}
