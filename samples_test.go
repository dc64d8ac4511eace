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

package wgan_test

import (
	"image/png"
	"os"
	"path"
	"testing"

	"github.com/gomlx/wgan"

	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleGenerator(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	ctx.RngStateFromSeed(42)
	ctx.SetParam(wgan.ParamLatentDim, 7)
	// Identity "generator": noise straight through, reshaped to tiny images.
	generator := func(ctx *context.Context, noise *graph.Node) *graph.Node {
		return graph.Reshape(noise, noise.Shape().Dimensions[0], 1, 1, 7)
	}

	sg := wgan.NewSampleGenerator(backend, ctx, generator, 6)
	images, err := sg.Generate()
	require.NoError(t, err)
	require.True(t, images.Shape().Equal(shapes.Make(dtypes.Float32, 6, 1, 1, 7)),
		"images shaped %s", images.Shape())

	// Fresh noise per call.
	again, err := sg.Generate()
	require.NoError(t, err)
	assert.NotEqual(t, tensors.CopyFlatData[float32](images), tensors.CopyFlatData[float32](again))
}

func TestSaveImageSheet(t *testing.T) {
	// Four 2x2 images laid out in 2 columns, upscaled 3x.
	flat := []float32{
		-1, -1, -1, -1, // black
		1, 1, 1, 1, // white
		0, 0, 0, 0, // mid-gray
		-1, 1, -1, 1,
	}
	batch := tensors.FromFlatDataAndDimensions(flat, 4, 1, 2, 2)
	filePath := path.Join(t.TempDir(), "sheet.png")
	require.NoError(t, wgan.SaveImageSheet(batch, 2, 3, filePath))

	f, err := os.Open(filePath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	sheet, err := png.Decode(f)
	require.NoError(t, err)
	bounds := sheet.Bounds()
	assert.Equal(t, 2*2*3, bounds.Dx())
	assert.Equal(t, 2*2*3, bounds.Dy())

	// Top-left image is black, its right neighbor white.
	r, _, _, _ := sheet.At(0, 0).RGBA()
	assert.Zero(t, r)
	r, _, _, _ = sheet.At(2*3, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestSaveImageSheetErrors(t *testing.T) {
	filePath := path.Join(t.TempDir(), "sheet.png")
	badShape := tensors.FromFlatDataAndDimensions(make([]float32, 12), 4, 3)
	require.ErrorContains(t, wgan.SaveImageSheet(badShape, 2, 1, filePath), "requires a [n, 1, height, width] batch")

	batch := tensors.FromFlatDataAndDimensions(make([]float32, 16), 4, 1, 2, 2)
	require.ErrorContains(t, wgan.SaveImageSheet(batch, 0, 1, filePath), "must be positive")
	require.Error(t, wgan.SaveImageSheet(batch, 2, 1, path.Join(t.TempDir(), "missing-dir", "sheet.png")))
}
