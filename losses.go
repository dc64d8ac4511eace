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
)

// GeneratorLoss returns the scalar generator loss: the negative mean of the
// critic's scores on generated samples. Minimizing it pushes the generator to
// maximize the critic's score on its output, the (negated) Wasserstein
// estimate.
func GeneratorLoss(fakeScores *graph.Node) *graph.Node {
	return graph.Neg(graph.ReduceAllMean(fakeScores))
}

// CriticLoss returns the scalar critic loss:
//
//	mean(fakeScores) - mean(realScores) + lambda*penalty
//
// Minimizing it pushes fake scores down and real scores up, while the penalty
// term (see GradientPenalty) discourages input-space gradient norms away
// from 1. fakeScores and realScores may have different batch sizes; each mean
// is taken independently.
func CriticLoss(fakeScores, realScores, penalty *graph.Node, lambda float64) *graph.Node {
	if !penalty.IsScalar() {
		Panicf("gradient penalty must be a scalar, got shape %s", penalty.Shape())
	}
	loss := graph.Sub(graph.ReduceAllMean(fakeScores), graph.ReduceAllMean(realScores))
	return graph.Add(loss, graph.MulScalar(penalty, lambda))
}
