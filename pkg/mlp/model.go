// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mlp

import (
	"fmt"
	"math/rand"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/molprop/pkg/tabular"
)

// DType used by the model.
var DType = dtypes.Float32

// ModelScope holds all the model variables. Optimizer variables live elsewhere.
const ModelScope = "model"

// Variable names within each layer's scope.
const (
	WeightsVar = "weights"
	BiasesVar  = "biases"
)

// Layer describes one dense layer of the classifier.
type Layer struct {
	Name       string `json:"name"`
	InputDim   int    `json:"input_dim"`
	Units      int    `json:"units"`
	Activation string `json:"activation"`
}

// NumParameters of the layer, weights plus biases.
func (l Layer) NumParameters() int { return l.InputDim*l.Units + l.Units }

// Layers returns the dense layers of the classifier: the hidden layers followed by the output layer,
// whose activation is softmax.
func (c Config) Layers() []Layer {
	layers := make([]Layer, 0, len(c.Widths)+1)
	inputDim := c.NumFeatures
	for ii, width := range c.Widths {
		layers = append(layers, Layer{Name: fmt.Sprintf("dense_%d", ii), InputDim: inputDim, Units: width, Activation: c.Activation})
		inputDim = width
	}
	return append(layers, Layer{Name: "output", InputDim: inputDim, Units: tabular.NumClasses, Activation: "softmax"})
}

// createVariables initializes the weights with U(-InitScale, InitScale) drawn from rng, and biases with 0.
func (c *Classifier) createVariables(rng *rand.Rand) {
	modelCtx := c.ctx.In(ModelScope)
	for _, layer := range c.layers {
		weights := make([]float32, layer.InputDim*layer.Units)
		for ii := range weights {
			weights[ii] = float32((2*rng.Float64() - 1) * InitScale)
		}
		layerCtx := modelCtx.In(layer.Name)
		layerCtx.VariableWithValue(WeightsVar, tensors.FromFlatDataAndDimensions(weights, layer.InputDim, layer.Units))
		layerCtx.VariableWithValue(BiasesVar, tensors.FromFlatDataAndDimensions(make([]float32, layer.Units), layer.Units))
	}
}

// logitsGraph returns the logits for the batch of features x. The softmax is applied by the loss.
func (c *Classifier) logitsGraph(ctx *context.Context, x *Node) *Node {
	g := x.Graph()
	modelCtx := ctx.In(ModelScope)
	for ii, layer := range c.layers {
		layerCtx := modelCtx.In(layer.Name)
		weights := layerCtx.VariableWithShape(WeightsVar, shapes.Make(x.DType(), layer.InputDim, layer.Units))
		biases := layerCtx.VariableWithShape(BiasesVar, shapes.Make(x.DType(), layer.Units))
		x = Add(Dot(x, weights.ValueGraph(g)), ExpandAxes(biases.ValueGraph(g), 0))
		if ii < len(c.layers)-1 {
			x = activations.Apply(c.activation, x)
		}
	}
	return x
}

// ModelGraph implements train.ModelFn.
func (c *Classifier) ModelGraph(ctx *context.Context, _ any, inputs []*Node) []*Node {
	return []*Node{c.logitsGraph(ctx, inputs[0])}
}

// Loss is the mean categorical cross-entropy of the logits, given one-hot labels.
func Loss(labels, logits []*Node) *Node {
	return ReduceAllMean(losses.CategoricalCrossEntropyLogits(labels[:1], logits))
}

// evalGraph returns the mean loss and the accuracy over the batch.
func (c *Classifier) evalGraph(ctx *context.Context, inputs []*Node) []*Node {
	x, labels := inputs[0], inputs[1]
	logits := c.logitsGraph(ctx, x)
	loss := Loss([]*Node{labels}, []*Node{logits})
	correct := Equal(ArgMax(logits, -1, dtypes.Int32), ArgMax(labels, -1, dtypes.Int32))
	accuracy := ReduceAllMean(ConvertDType(correct, logits.DType()))
	return []*Node{loss, accuracy}
}

// Architecture describes the classifier, as saved next to its weights.
type Architecture struct {
	ClassName string   `json:"class_name"`
	InputDim  int      `json:"input_dim"`
	Layers    []Layer  `json:"layers"`
	Init      string   `json:"init"`
	Loss      string   `json:"loss"`
	Optimizer string   `json:"optimizer"`
	Metrics   []string `json:"metrics"`
}

// Architecture returns the description of the classifier.
func (c *Classifier) Architecture() Architecture {
	return Architecture{
		ClassName: "Sequential",
		InputDim:  c.config.NumFeatures,
		Layers:    c.Layers(),
		Init:      fmt.Sprintf("uniform(-%g, %g)", InitScale, InitScale),
		Loss:      "categorical_crossentropy",
		Optimizer: c.config.Optimizer,
		Metrics:   []string{"accuracy"},
	}
}
