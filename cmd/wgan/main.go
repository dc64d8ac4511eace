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

// wgan trains a WGAN-GP generative model on MNIST.
//
// Typical usage:
//
//	wgan --data=~/tmp/mnist --checkpoint=~/tmp/mnist/wgan --set="num_epochs=25;batch_size=128"
//
// Hyperparameters are context settings (see the wgan package Param* constants)
// and can be overridden with --set.
package main

import (
	"flag"
	"fmt"
	"math/rand"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/wgan"
	"github.com/gomlx/wgan/mnist"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagDataDir    = flag.String("data", "~/tmp/mnist", "Directory to cache the downloaded dataset.")
	flagCheckpoint = flag.String("checkpoint", "", "Directory to save checkpoints to; empty disables checkpointing.")
	flagSamples    = flag.String("samples", "wgan_samples.png", "File to save a sheet of generated images to after training; empty disables it.")
	flagNumSamples = flag.Int("num_samples", 25, "Number of images on the generated sample sheet.")
	flagSeed       = flag.Int64("seed", 0, "Random seed for model initialization, noise and shuffling; 0 picks a random one.")
)

func main() {
	ctx := context.New()
	settings := commandline.CreateContextSettingsFlag(ctx, "set")
	klog.InitFlags(nil)
	flag.Parse()

	err := exceptions.TryCatch[error](func() {
		must.M1(commandline.ParseContextSettings(ctx, *settings))
		run(ctx)
	})
	if err != nil {
		klog.Fatalf("Error:\n%+v", err)
	}
}

func run(ctx *context.Context) {
	wgan.DefaultParams(ctx)
	if *flagSeed != 0 {
		ctx.RngStateFromSeed(*flagSeed)
	} else {
		ctx.RngStateReset()
	}

	backend := backends.MustNew()
	fmt.Printf("Backend %q:\t%s\n", backend.Name(), backend.Description())
	fmt.Println(commandline.SprintContextSettings(ctx))

	dataDir := data.ReplaceTildeInDir(*flagDataDir)
	must.M(mnist.Download(dataDir))

	config := wgan.ConfigFromContext(ctx)
	var shuffle *rand.Rand
	if *flagSeed != 0 {
		shuffle = rand.New(rand.NewSource(*flagSeed))
	} else {
		shuffle = rand.New(rand.NewSource(rand.Int63()))
	}
	trainDS := must.M1(mnist.NewDataset("mnist-train", dataDir, "train", config.BatchSize, shuffle))
	klog.Infof("Training on %d examples (%d steps/epoch) for %d epochs.",
		trainDS.NumExamples(), trainDS.NumBatches(), config.NumEpochs)

	trainer := must.M1(wgan.NewTrainer(backend, ctx, wgan.MNISTGenerator, wgan.MNISTCritic))
	if *flagCheckpoint != "" {
		must.M(trainer.AttachCheckpoint(data.ReplaceTildeInDir(*flagCheckpoint), 3))
	}
	must.M(trainer.RunEpochs(trainDS))

	if *flagSamples != "" {
		samples := wgan.NewSampleGenerator(backend, ctx, wgan.MNISTGenerator, *flagNumSamples)
		images := must.M1(samples.Generate())
		cols := 5
		must.M(wgan.SaveImageSheet(images, cols, 4, *flagSamples))
		klog.Infof("Saved %d generated images to %s", *flagNumSamples, *flagSamples)
	}
}
