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
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
)

// SampleGenerator produces image batches from a trained (or in-training)
// generator using a fixed noise batch, so successive sheets show the same
// latent points evolving as training progresses.
type SampleGenerator struct {
	exec       *context.Exec
	numSamples int
}

// NewSampleGenerator builds a generator executor over the same context used
// by a Trainer (the generator variables under GeneratorScope are reused, not
// recreated). numSamples is the fixed number of images per Generate call.
func NewSampleGenerator(backend backends.Backend, ctx *context.Context, generator GeneratorFn, numSamples int) *SampleGenerator {
	config := ConfigFromContext(ctx)
	sg := &SampleGenerator{numSamples: numSamples}
	sg.exec = context.NewExec(backend, ctx, func(ctx *context.Context, g *graph.Graph) *graph.Node {
		noise := SampleNoise(ctx, g, config.DType, numSamples, config.LatentDim)
		return generator(ctx.In(GeneratorScope).Checked(false), noise)
	})
	return sg
}

// Generate returns a fresh batch of generated images, shaped
// [numSamples, channels, height, width], values in [-1, 1].
func (sg *SampleGenerator) Generate() (images *tensors.Tensor, err error) {
	err = exceptions.TryCatch[error](func() {
		images = sg.exec.Call()[0]
	})
	return
}

// SaveImageSheet lays out a [n, 1, height, width] batch of images with values
// in [-1, 1] as a grayscale grid with cols images per row, upscales it by
// scale (nearest-neighbor, keeps the hard pixel edges) and writes it as PNG.
func SaveImageSheet(batch *tensors.Tensor, cols, scale int, filePath string) error {
	dims := batch.Shape().Dimensions
	if batch.Rank() != 4 || dims[1] != 1 {
		return errors.Errorf("image sheet requires a [n, 1, height, width] batch, got shape %s", batch.Shape())
	}
	if cols <= 0 || scale <= 0 {
		return errors.Errorf("cols (%d) and scale (%d) must be positive", cols, scale)
	}
	n, height, width := dims[0], dims[2], dims[3]
	rows := (n + cols - 1) / cols
	sheet := image.NewGray(image.Rect(0, 0, cols*width, rows*height))
	tensors.ConstFlatData(batch, func(flat []float32) {
		for ii := range n {
			offsetX := (ii % cols) * width
			offsetY := (ii / cols) * height
			pixels := flat[ii*height*width : (ii+1)*height*width]
			for y := range height {
				for x := range width {
					v := (pixels[y*width+x] + 1) / 2 // [-1, 1] -> [0, 1]
					if v < 0 {
						v = 0
					} else if v > 1 {
						v = 1
					}
					sheet.SetGray(offsetX+x, offsetY+y, color.Gray{Y: uint8(v*255 + 0.5)})
				}
			}
		}
	})
	scaled := imaging.Resize(sheet, cols*width*scale, rows*height*scale, imaging.NearestNeighbor)
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "creating image sheet file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	if err := png.Encode(f, scaled); err != nil {
		return errors.Wrapf(err, "encoding image sheet to %q", filePath)
	}
	return nil
}
