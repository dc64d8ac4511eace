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

// Package wgan trains generative image models with the Wasserstein GAN with
// Gradient Penalty (WGAN-GP) formulation, on top of GoMLX.
//
// A generator maps latent gaussian noise to images and a critic scores image
// realism. Both are trained in alternation under a Wasserstein-distance
// objective: the critic is updated several times per generator update, and its
// loss carries a gradient-penalty term that keeps the norm of its input-space
// gradient close to 1 (the 1-Lipschitz surrogate the Wasserstein estimator
// requires).
//
// The penalty is a second gradient pass: the gradient of the critic's score
// with respect to an interpolated ("mixed") image batch is itself part of the
// critic's loss, and so is differentiated again when the critic optimizer
// runs. GoMLX's Gradient expands symbolically into regular graph ops, which is
// what makes this double backpropagation work.
//
// The entry point is Trainer (see NewTrainer); the building blocks
// (Interpolate, CriticGradient, GradientPenalty, CriticLoss, GeneratorLoss)
// are exported and usable on their own.
package wgan

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
)

const (
	// GeneratorScope is the context scope under which all generator
	// variables live. The critic optimizer never touches it.
	GeneratorScope = "generator"

	// CriticScope is the context scope under which all critic variables
	// live. The generator optimizer never touches it.
	CriticScope = "critic"
)

// GeneratorFn builds the generator part of the model graph: it maps a noise
// batch shaped [batchSize, latentDim] to an image batch shaped
// [batchSize, channels, height, width]. It is called with the context already
// scoped to GeneratorScope.
type GeneratorFn func(ctx *context.Context, noise *graph.Node) *graph.Node

// CriticFn builds the critic part of the model graph: it maps an image batch
// shaped [batchSize, channels, height, width] to one realism score per
// example, shaped [batchSize, 1] (or [batchSize]). It is called with the
// context already scoped to CriticScope.
//
// A CriticFn is called multiple times per train step (real batch, fake batch
// and the interpolated batch); all calls share the same variables.
type CriticFn func(ctx *context.Context, images *graph.Node) *graph.Node
