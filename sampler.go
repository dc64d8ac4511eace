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

import (
	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
)

// SampleNoise returns a [batchSize, latentDim] batch of latent vectors with
// i.i.d. standard normal entries, drawn from the context's random number
// generator state. Deterministic under Context.RngStateFromSeed; each call
// adds fresh nodes to the graph, so repeated calls yield independent samples.
func SampleNoise(ctx *context.Context, g *graph.Graph, dtype dtypes.DType, batchSize, latentDim int) *graph.Node {
	if batchSize <= 0 || latentDim <= 0 {
		Panicf("SampleNoise requires positive dimensions, got batchSize=%d, latentDim=%d", batchSize, latentDim)
	}
	return ctx.RandomNormal(g, shapes.Make(dtype, batchSize, latentDim))
}

// SampleEpsilon returns per-sample interpolation coefficients for a batch of
// images shaped like imageShape: one uniform [0, 1) scalar per batch element,
// shaped [batchSize, 1, ..., 1] so it broadcasts against the image batch.
func SampleEpsilon(ctx *context.Context, g *graph.Graph, imageShape shapes.Shape) *graph.Node {
	if imageShape.Rank() < 1 {
		Panicf("SampleEpsilon requires a batched image shape, got %s", imageShape)
	}
	dims := make([]int, imageShape.Rank())
	dims[0] = imageShape.Dimensions[0]
	for ii := 1; ii < len(dims); ii++ {
		dims[ii] = 1
	}
	return ctx.RandomUniform(g, shapes.Make(imageShape.DType, dims...))
}
