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
	"fmt"
	"io"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Trainer runs the alternating WGAN-GP optimization: per batch of real
// images, Config.CriticSteps critic updates followed by one generator update.
//
// Both parameter sets live in a single context -- the generator's under
// GeneratorScope, the critic's under CriticScope -- each updated exclusively
// by its own Adam optimizer. All step execution is synchronous: one parameter
// update at a time, no overlapping batches.
type Trainer struct {
	backend backends.Backend
	ctx     *context.Context
	config  *Config

	generator GeneratorFn
	critic    CriticFn

	criticOpt    optimizers.Interface
	generatorOpt optimizers.Interface

	criticExec    *context.Exec
	generatorExec *context.Exec

	checkpoint *checkpoints.Handler

	// Update counters, one increment per optimizer step applied.
	CriticUpdates    int
	GeneratorUpdates int

	// Loss record: one entry per train step. The critic entry is the mean of
	// that step's CriticSteps individual critic losses.
	CriticLosses    []float64
	GeneratorLosses []float64

	// Per-iteration critic losses of the most recent train step.
	lastCriticLosses []float64
}

// NewTrainer creates a WGAN-GP trainer for the given generator/critic pair.
// Hyperparameters are read from the context (see ConfigFromContext) and
// validated before any step graph is built; an invalid configuration fails
// here, not mid-training.
func NewTrainer(backend backends.Backend, ctx *context.Context, generator GeneratorFn, critic CriticFn) (*Trainer, error) {
	config := ConfigFromContext(ctx)
	if err := config.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid WGAN-GP configuration")
	}
	if generator == nil || critic == nil {
		return nil, errors.New("generator and critic functions must both be set")
	}
	t := &Trainer{
		backend:   backend,
		ctx:       ctx,
		config:    config,
		generator: generator,
		critic:    critic,
		criticOpt: optimizers.Adam().
			LearningRate(config.LearningRate).
			Betas(config.AdamBeta1, config.AdamBeta2).
			Scope("adam_critic").
			Done(),
		generatorOpt: optimizers.Adam().
			LearningRate(config.LearningRate).
			Betas(config.AdamBeta1, config.AdamBeta2).
			Scope("adam_generator").
			Done(),
	}
	t.criticExec = context.NewExec(backend, ctx, t.criticStepGraph)
	t.generatorExec = context.NewExec(backend, ctx, t.generatorStepGraph)
	return t, nil
}

// Config returns the hyperparameters snapshot the trainer was built with.
func (t *Trainer) Config() *Config { return t.config }

// Context returns the context holding the generator and critic variables.
func (t *Trainer) Context() *context.Context { return t.ctx }

// AttachCheckpoint enables saving of all variables (both parameter sets and
// both optimizers' states) to dir at the end of every epoch, keeping the
// last keep checkpoints. If dir already holds a checkpoint, it is loaded.
func (t *Trainer) AttachCheckpoint(dir string, keep int) error {
	checkpoint, err := checkpoints.Build(t.ctx).Dir(dir).Keep(keep).Done()
	if err != nil {
		return errors.WithMessagef(err, "attaching checkpoint in %q", dir)
	}
	t.checkpoint = checkpoint
	return nil
}

// criticStepGraph builds one critic update: fresh noise through the
// generator (detached, so no gradient reaches generator parameters), scores
// on real and fake, fresh per-sample epsilon, gradient penalty and the
// WGAN-GP critic loss, then one Adam update of the critic variables only.
// Returns the critic loss.
func (t *Trainer) criticStepGraph(ctx *context.Context, real *graph.Node) *graph.Node {
	g := real.Graph()
	batchSize := real.Shape().Dimensions[0]
	genCtx := ctx.In(GeneratorScope).Checked(false)
	criticCtx := ctx.In(CriticScope).Checked(false)

	noise := SampleNoise(ctx, g, real.DType(), batchSize, t.config.LatentDim)
	fake := graph.StopGradient(t.generator(genCtx, noise))
	realScores := t.critic(criticCtx, real)
	fakeScores := t.critic(criticCtx, fake)

	epsilon := SampleEpsilon(ctx, g, real.Shape())
	grad := CriticGradient(func(images *graph.Node) *graph.Node {
		return t.critic(criticCtx, images)
	}, real, fake, epsilon)
	penalty := GradientPenalty(grad)

	loss := CriticLoss(fakeScores, realScores, penalty, t.config.GradientPenaltyWeight)
	t.updateWithFrozenScope(ctx, g, t.criticOpt, GeneratorScope, loss)
	return loss
}

// generatorStepGraph builds one generator update: fresh noise through the
// generator, this time with the graph attached, scored by the critic; one
// Adam update of the generator variables only. Returns the generator loss.
func (t *Trainer) generatorStepGraph(ctx *context.Context, g *graph.Graph) *graph.Node {
	genCtx := ctx.In(GeneratorScope).Checked(false)
	criticCtx := ctx.In(CriticScope).Checked(false)

	noise := SampleNoise(ctx, g, t.config.DType, t.config.BatchSize, t.config.LatentDim)
	fake := t.generator(genCtx, noise)
	fakeScores := t.critic(criticCtx, fake)

	loss := GeneratorLoss(fakeScores)
	t.updateWithFrozenScope(ctx, g, t.generatorOpt, CriticScope, loss)
	return loss
}

// updateWithFrozenScope applies one optimizer update with the variables under
// frozenScope temporarily marked non-trainable, so the update touches only
// the other parameter set. Trainability is a graph-build-time property, hence
// the flip-update-restore happens while the step graph is being built.
func (t *Trainer) updateWithFrozenScope(ctx *context.Context, g *graph.Graph, opt optimizers.Interface, frozenScope string, loss *graph.Node) {
	var frozen []*context.Variable
	ctx.In(frozenScope).EnumerateVariablesInScope(func(v *context.Variable) {
		if v.Trainable {
			frozen = append(frozen, v)
			v.SetTrainable(false)
		}
	})
	opt.UpdateGraph(ctx, g, loss)
	for _, v := range frozen {
		v.SetTrainable(true)
	}
}

// TrainStep runs the full update schedule on one batch of real images shaped
// [batchSize, channels, height, width]: Config.CriticSteps critic updates,
// then one generator update. It returns the mean of the critic losses and
// the generator loss, both also appended to the loss record.
//
// Errors from the step graphs (shape mismatches, backend failures) abort the
// step with no partial update recorded beyond the optimizer steps already
// applied; the trainer makes no attempt to catch or retry.
func (t *Trainer) TrainStep(real *tensors.Tensor) (criticLoss, generatorLoss float64, err error) {
	err = exceptions.TryCatch[error](func() {
		t.lastCriticLosses = t.lastCriticLosses[:0]
		for range t.config.CriticSteps {
			loss := float64(tensors.ToScalar[float32](t.criticExec.Call(real)[0]))
			t.lastCriticLosses = append(t.lastCriticLosses, loss)
			t.CriticUpdates++
			criticLoss += loss / float64(t.config.CriticSteps)
		}
		generatorLoss = float64(tensors.ToScalar[float32](t.generatorExec.Call()[0]))
		t.GeneratorUpdates++
	})
	if err != nil {
		return 0, 0, err
	}
	t.CriticLosses = append(t.CriticLosses, criticLoss)
	t.GeneratorLosses = append(t.GeneratorLosses, generatorLoss)
	return
}

// LastStepCriticLosses returns the individual critic losses of the most
// recent train step, one per critic update.
func (t *Trainer) LastStepCriticLosses() []float64 { return t.lastCriticLosses }

// RunEpochs trains over ds for the configured number of epochs, reporting
// smoothed running losses every Config.ReportEvery train steps and saving a
// checkpoint (if attached) at the end of each epoch.
//
// ds must yield finite epochs: batches of real images as the first input
// tensor, ending with io.EOF. Labels are ignored. Any step error aborts the
// whole run.
func (t *Trainer) RunEpochs(ds train.Dataset) error {
	numEpochs := t.config.NumEpochs
	step := 0
	var windowCritic, windowGenerator float64
	windowSteps := 0
	for epoch := range numEpochs {
		ds.Reset()
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription(fmt.Sprintf("epoch %d/%d", epoch+1, numEpochs)),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("steps"),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
		)
		for {
			_, inputs, _, err := ds.Yield()
			var lastOfEpoch bool
			if err == io.EOF {
				lastOfEpoch = true
			} else if err != nil {
				return errors.WithMessagef(err, "reading from dataset %q", ds.Name())
			}
			if len(inputs) > 0 && inputs[0].Shape().Dimensions[0] > 0 {
				criticLoss, generatorLoss, err := t.TrainStep(inputs[0])
				if err != nil {
					return errors.WithMessagef(err, "train step %d (epoch %d)", step, epoch)
				}
				step++
				windowCritic += criticLoss
				windowGenerator += generatorLoss
				windowSteps++
				_ = bar.Add(1)
				if step%t.config.ReportEvery == 0 {
					klog.Infof("step %d: critic loss=%.4f, generator loss=%.4f (mean of last %d steps)",
						step, windowCritic/float64(windowSteps), windowGenerator/float64(windowSteps), windowSteps)
					windowCritic, windowGenerator = 0, 0
					windowSteps = 0
				}
			}
			if lastOfEpoch {
				break
			}
		}
		_ = bar.Finish()
		if t.checkpoint != nil {
			if err := t.checkpoint.Save(); err != nil {
				return errors.WithMessagef(err, "saving checkpoint after epoch %d", epoch)
			}
		}
	}
	return nil
}
