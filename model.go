/*
 *	Copyright 2026 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package wgan

// Default generator and critic architectures for MNIST-sized images. They are
// ordinary GoMLX layer stacks; the trainer works with any GeneratorFn/CriticFn
// pair, these are just sensible defaults for the demo and the tests.

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
)

// MNIST image geometry, channels-first.
const (
	mnistChannels = 1
	mnistHeight   = 28
	mnistWidth    = 28
)

// MNISTGenerator maps a [batchSize, latentDim] noise batch to images shaped
// [batchSize, 1, 28, 28] with values in [-1, 1] (tanh output), using a stack
// of progressively wider dense blocks.
func MNISTGenerator(ctx *context.Context, noise *graph.Node) *graph.Node {
	batchSize := noise.Shape().Dimensions[0]
	hidden := noise
	for ii, width := range []int{256, 512, 1024} {
		hidden = layers.DenseWithBias(ctx.Inf("%03d_dense", ii), hidden, width)
		hidden = activations.Relu(hidden)
	}
	images := layers.DenseWithBias(ctx.In("output"), hidden, mnistChannels*mnistHeight*mnistWidth)
	images = graph.Tanh(images)
	return graph.Reshape(images, batchSize, mnistChannels, mnistHeight, mnistWidth)
}

// MNISTCritic maps images shaped [batchSize, 1, 28, 28] to one unbounded
// realism score per example, shaped [batchSize, 1], using a stack of
// progressively narrower dense blocks. Leaky-relu keeps gradients alive on
// both sides of zero; no normalization layers, as batch statistics would
// couple the per-sample gradients the gradient penalty constrains.
//
// The critic must stay twice-differentiable: its input-space gradient is part
// of the critic loss, so the optimizer differentiates through that gradient.
// Strided convolutions are out -- their backward pass is an input-dilated
// convolution, whose own gradient Convolve does not define.
func MNISTCritic(ctx *context.Context, images *graph.Node) *graph.Node {
	batchSize := images.Shape().Dimensions[0]
	hidden := graph.Reshape(images, batchSize, -1)
	for ii, width := range []int{512, 256} {
		hidden = layers.DenseWithBias(ctx.Inf("%03d_dense", ii), hidden, width)
		hidden = activations.LeakyReluWithAlpha(hidden, 0.2)
	}
	return layers.DenseWithBias(ctx.In("output"), hidden, 1)
}
