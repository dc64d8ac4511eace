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

// Gradient penalty engine: interpolated images, the input-space gradient of
// the critic on them, and the penalty on that gradient's norm.

import (
	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/graph"
)

// Interpolate returns the per-sample convex combination
// epsilon*real + (1-epsilon)*fake.
//
// real and fake must have identical shapes. epsilon must have the same rank
// and dtype, with the same leading (batch) dimension and all other dimensions
// set to 1 -- one interpolation weight per batch element, broadcast across
// the image. See SampleEpsilon.
func Interpolate(real, fake, epsilon *graph.Node) *graph.Node {
	if !real.Shape().Equal(fake.Shape()) {
		Panicf("real and fake batches must have the same shape, got real=%s, fake=%s",
			real.Shape(), fake.Shape())
	}
	shape := real.Shape()
	epsShape := epsilon.Shape()
	ok := epsShape.DType == shape.DType && epsShape.Rank() == shape.Rank() &&
		epsShape.Dimensions[0] == shape.Dimensions[0]
	for ii := 1; ok && ii < epsShape.Rank(); ii++ {
		ok = epsShape.Dimensions[ii] == 1
	}
	if !ok {
		Panicf("epsilon must hold one scalar per batch element, broadcastable against the "+
			"image batch (shape [%d, 1, ...]), got epsilon=%s for images=%s",
			shape.Dimensions[0], epsShape, shape)
	}
	return graph.Add(graph.Mul(real, epsilon), graph.Mul(fake, graph.OneMinus(epsilon)))
}

// CriticGradient computes the gradient of the critic's summed scores with
// respect to the interpolated batch built from real, fake and epsilon
// (see Interpolate). The result has exactly the shape of the image batch:
// the per-pixel sensitivity of the critic at the mixed images.
//
// The returned gradient is built from ordinary graph ops, so it stays
// differentiable: a loss derived from it (see GradientPenalty) back-propagates
// through this gradient into the critic's parameters.
func CriticGradient(critic func(images *graph.Node) *graph.Node, real, fake, epsilon *graph.Node) *graph.Node {
	mixed := Interpolate(real, fake, epsilon)
	scores := critic(mixed)
	return graph.Gradient(graph.ReduceAllSum(scores), mixed)[0]
}

// GradientPenalty reduces an input-space gradient -- shaped like an image
// batch, see CriticGradient -- to the WGAN-GP penalty scalar: each sample's
// gradient is flattened, its Euclidean norm taken, and the penalty is the
// batch mean of (norm - 1)^2.
//
// It is 0 iff every sample's gradient has norm exactly 1, and exactly 1 for
// an all-zero gradient.
func GradientPenalty(grad *graph.Node) *graph.Node {
	if grad.Rank() < 2 {
		Panicf("GradientPenalty requires a batched gradient (rank >= 2), got shape %s", grad.Shape())
	}
	batchSize := grad.Shape().Dimensions[0]
	flat := graph.Reshape(grad, batchSize, -1)
	norms := graph.L2Norm(flat, -1)
	return graph.ReduceAllMean(graph.Square(graph.AddScalar(norms, -1)))
}
