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
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Hyperparameter names, settable in the context (see Context.SetParams) and
// overridable from the command line with commandline.CreateContextSettingsFlag.
const (
	// ParamLatentDim is the dimension of the gaussian latent (noise) vectors
	// fed to the generator.
	ParamLatentDim = "latent_dim"

	// ParamBatchSize is the training batch size.
	ParamBatchSize = "batch_size"

	// ParamNumEpochs is the number of passes over the training data. There is
	// no early stopping: training always runs the full number of epochs.
	ParamNumEpochs = "num_epochs"

	// ParamGradientPenaltyWeight is the lambda multiplier of the gradient
	// penalty term in the critic loss.
	ParamGradientPenaltyWeight = "gp_lambda"

	// ParamCriticSteps is the number of critic updates per generator update.
	ParamCriticSteps = "critic_steps"

	// ParamReportEvery is the interval, in generator steps, at which smoothed
	// running losses are logged.
	ParamReportEvery = "report_every"

	// ParamAdamBeta1 and ParamAdamBeta2 are the Adam momentum coefficients,
	// shared by the generator and the critic optimizers.
	ParamAdamBeta1 = "adam_beta1"
	ParamAdamBeta2 = "adam_beta2"
)

// DefaultParams sets in ctx the default hyperparameters for MNIST WGAN-GP
// training -- the classic recipe: latent dimension 64, batch size 128,
// lambda=10, 5 critic updates per generator update, Adam(2e-4, 0.5, 0.999).
// Values already set in ctx are preserved.
func DefaultParams(ctx *context.Context) *context.Context {
	defaults := map[string]any{
		ParamLatentDim:               64,
		ParamBatchSize:               128,
		ParamNumEpochs:               100,
		ParamGradientPenaltyWeight:   10.0,
		ParamCriticSteps:             5,
		ParamReportEvery:             50,
		ParamAdamBeta1:               0.5,
		ParamAdamBeta2:               0.999,
		optimizers.ParamLearningRate: 2e-4,
	}
	for key, value := range defaults {
		if _, found := ctx.GetParam(key); !found {
			ctx.SetParam(key, value)
		}
	}
	return ctx
}

// Config is a snapshot of the scalar training hyperparameters, read once at
// trainer construction. There is no dynamic reconfiguration mid-run.
type Config struct {
	// LatentDim is the dimension of the noise vectors. Fixed per model.
	LatentDim int

	// BatchSize used by the generator update step and by sample generation.
	// Critic steps follow the batch size of the real data they are given.
	BatchSize int

	// NumEpochs to train for.
	NumEpochs int

	// CriticSteps is the number of critic updates per generator update.
	CriticSteps int

	// ReportEvery sets the reporting interval, in train steps.
	ReportEvery int

	// GradientPenaltyWeight is the lambda of the WGAN-GP critic loss.
	GradientPenaltyWeight float64

	// LearningRate, AdamBeta1 and AdamBeta2 configure both Adam optimizers.
	LearningRate float64
	AdamBeta1    float64
	AdamBeta2    float64

	// DType of the model: images, noise, scores and losses.
	DType dtypes.DType
}

// ConfigFromContext reads a Config from the context hyperparameters,
// backfilling the DefaultParams values for anything unset.
func ConfigFromContext(ctx *context.Context) *Config {
	DefaultParams(ctx)
	return &Config{
		LatentDim:             context.GetParamOr(ctx, ParamLatentDim, 64),
		BatchSize:             context.GetParamOr(ctx, ParamBatchSize, 128),
		NumEpochs:             context.GetParamOr(ctx, ParamNumEpochs, 100),
		CriticSteps:           context.GetParamOr(ctx, ParamCriticSteps, 5),
		ReportEvery:           context.GetParamOr(ctx, ParamReportEvery, 50),
		GradientPenaltyWeight: context.GetParamOr(ctx, ParamGradientPenaltyWeight, 10.0),
		LearningRate:          context.GetParamOr(ctx, optimizers.ParamLearningRate, 2e-4),
		AdamBeta1:             context.GetParamOr(ctx, ParamAdamBeta1, 0.5),
		AdamBeta2:             context.GetParamOr(ctx, ParamAdamBeta2, 0.999),
		DType:                 dtypes.Float32,
	}
}

// Validate returns an error on any invalid combination of hyperparameters.
// It runs at trainer construction, before any training step.
func (c *Config) Validate() error {
	if c.LatentDim <= 0 {
		return errors.Errorf("latent dimension must be positive, got %s=%d", ParamLatentDim, c.LatentDim)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch size must be positive, got %s=%d", ParamBatchSize, c.BatchSize)
	}
	if c.NumEpochs <= 0 {
		return errors.Errorf("number of epochs must be positive, got %s=%d", ParamNumEpochs, c.NumEpochs)
	}
	if c.CriticSteps <= 0 {
		return errors.Errorf("critic updates per generator update must be positive, got %s=%d",
			ParamCriticSteps, c.CriticSteps)
	}
	if c.ReportEvery <= 0 {
		return errors.Errorf("reporting interval must be positive, got %s=%d", ParamReportEvery, c.ReportEvery)
	}
	if c.GradientPenaltyWeight < 0 {
		return errors.Errorf("gradient penalty weight must be non-negative, got %s=%g",
			ParamGradientPenaltyWeight, c.GradientPenaltyWeight)
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("learning rate must be positive, got %s=%g",
			optimizers.ParamLearningRate, c.LearningRate)
	}
	return nil
}
