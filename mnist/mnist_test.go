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

package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"io"
	"math/rand"
	"os"
	"path"
	"testing"

	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGzipped(t *testing.T, filePath string, write func(w io.Writer)) {
	f, err := os.Create(filePath)
	require.NoError(t, err)
	w := gzip.NewWriter(f)
	write(w)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

// writeDataset writes a synthetic gzipped IDX pair with numExamples examples:
// example ii is a constant image of pixel value ii*500%256 and label ii%10.
func writeDataset(t *testing.T, baseDir, mode string, numExamples int) {
	pair := files[mode]
	writeGzipped(t, path.Join(baseDir, pair[0]), func(w io.Writer) {
		require.NoError(t, binary.Write(w, binary.BigEndian, imageFileHeader{
			Magic:     imageMagic,
			NumImages: int32(numExamples),
			Height:    Height,
			Width:     Width,
		}))
		for ii := range numExamples {
			pixels := make([]byte, Height*Width)
			for jj := range pixels {
				pixels[jj] = byte(ii * 500 % 256)
			}
			_, err := w.Write(pixels)
			require.NoError(t, err)
		}
	})
	writeGzipped(t, path.Join(baseDir, pair[1]), func(w io.Writer) {
		require.NoError(t, binary.Write(w, binary.BigEndian, labelFileHeader{
			Magic:     labelMagic,
			NumLabels: int32(numExamples),
		}))
		for ii := range numExamples {
			_, err := w.Write([]byte{byte(ii % 10)})
			require.NoError(t, err)
		}
	})
}

func TestDatasetYield(t *testing.T) {
	baseDir := t.TempDir()
	writeDataset(t, baseDir, "train", 5)
	ds, err := NewDataset("mnist-test", baseDir, "train", 2, nil)
	require.NoError(t, err)

	assert.Equal(t, "mnist-test", ds.Name())
	assert.Equal(t, 5, ds.NumExamples())
	assert.Equal(t, 3, ds.NumBatches())
	assert.False(t, ds.IsOwnershipTransferred())

	// 5 examples at batch size 2: two full batches, then a short one with EOF.
	wantImageShape := shapes.Make(dtypes.Float32, 2, Channels, Height, Width)
	for batch := range 2 {
		_, inputs, labels, err := ds.Yield()
		require.NoError(t, err, "batch %d", batch)
		require.Len(t, inputs, 1)
		require.Len(t, labels, 1)
		require.True(t, inputs[0].Shape().Equal(wantImageShape),
			"batch %d images shaped %s", batch, inputs[0].Shape())
		require.True(t, labels[0].Shape().Equal(shapes.Make(dtypes.Int8, 2)),
			"batch %d labels shaped %s", batch, labels[0].Shape())
	}
	_, inputs, labels, err := ds.Yield()
	require.Equal(t, io.EOF, err)
	require.Len(t, inputs, 1)
	require.True(t, inputs[0].Shape().Equal(shapes.Make(dtypes.Float32, 1, Channels, Height, Width)),
		"final batch images shaped %s", inputs[0].Shape())
	require.True(t, labels[0].Shape().Equal(shapes.Make(dtypes.Int8, 1)),
		"final batch labels shaped %s", labels[0].Shape())

	// Exhausted epoch: EOF with no data until Reset.
	_, inputs, _, err = ds.Yield()
	require.Equal(t, io.EOF, err)
	require.Empty(t, inputs)
	ds.Reset()
	_, inputs, _, err = ds.Yield()
	require.NoError(t, err)
	require.Len(t, inputs, 1)
}

func TestDatasetNormalization(t *testing.T) {
	baseDir := t.TempDir()
	writeDataset(t, baseDir, "test", 3)
	ds, err := NewDataset("mnist-test", baseDir, "test", 3, nil)
	require.NoError(t, err)

	_, inputs, labels, err := ds.Yield()
	require.Equal(t, io.EOF, err) // Single batch holds the whole epoch.

	// Without shuffling examples come in file order: pixel values 0, 244
	// (500%256) and 232 (1000%256), normalized by v/127.5-1.
	pixels := tensors.CopyFlatData[float32](inputs[0])
	imageSize := Height * Width
	for ii, want := range []float32{-1, 244.0/127.5 - 1, 232.0/127.5 - 1} {
		for jj := range imageSize {
			require.InDelta(t, want, pixels[ii*imageSize+jj], 1e-6,
				"example %d, pixel %d", ii, jj)
		}
	}
	assert.Equal(t, []int8{0, 1, 2}, tensors.CopyFlatData[int8](labels[0]))
}

func TestDatasetShuffle(t *testing.T) {
	baseDir := t.TempDir()
	writeDataset(t, baseDir, "train", 100)
	ds, err := NewDataset("mnist-test", baseDir, "train", 100, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	epoch := func() []int8 {
		ds.Reset()
		_, _, labels, err := ds.Yield()
		require.Equal(t, io.EOF, err)
		return tensors.CopyFlatData[int8](labels[0])
	}
	first, second := epoch(), epoch()
	assert.NotEqual(t, first, second, "reshuffling between epochs")
	assert.ElementsMatch(t, first, second, "shuffling must permute, not resample")
}

func TestNewDatasetErrors(t *testing.T) {
	baseDir := t.TempDir()
	writeDataset(t, baseDir, "train", 2)

	_, err := NewDataset("mnist-test", baseDir, "train", 0, nil)
	require.ErrorContains(t, err, "batch size")

	_, err = NewDataset("mnist-test", baseDir, "validation", 2, nil)
	require.ErrorContains(t, err, "unknown MNIST mode")

	_, err = NewDataset("mnist-test", t.TempDir(), "train", 2, nil)
	require.Error(t, err) // Files missing.

	// Corrupt magic number.
	badDir := t.TempDir()
	writeDataset(t, badDir, "train", 2)
	writeGzipped(t, path.Join(badDir, trainImagesFilename), func(w io.Writer) {
		require.NoError(t, binary.Write(w, binary.BigEndian, imageFileHeader{
			Magic: 0xbad, NumImages: 2, Height: Height, Width: Width}))
	})
	_, err = NewDataset("mnist-test", badDir, "train", 2, nil)
	require.ErrorContains(t, err, "not an MNIST images file")

	// Negative counts must come back as errors, not crash the allocation.
	negDir := t.TempDir()
	writeDataset(t, negDir, "train", 2)
	writeGzipped(t, path.Join(negDir, trainImagesFilename), func(w io.Writer) {
		require.NoError(t, binary.Write(w, binary.BigEndian, imageFileHeader{
			Magic: imageMagic, NumImages: -60000, Height: Height, Width: Width}))
	})
	_, err = NewDataset("mnist-test", negDir, "train", 2, nil)
	require.ErrorContains(t, err, "negative image count")

	writeGzipped(t, path.Join(negDir, trainImagesFilename), func(w io.Writer) {
		require.NoError(t, binary.Write(w, binary.BigEndian, imageFileHeader{
			Magic: imageMagic, NumImages: 0, Height: Height, Width: Width}))
	})
	writeGzipped(t, path.Join(negDir, trainLabelsFilename), func(w io.Writer) {
		require.NoError(t, binary.Write(w, binary.BigEndian, labelFileHeader{
			Magic: labelMagic, NumLabels: -1}))
	})
	_, err = NewDataset("mnist-test", negDir, "train", 2, nil)
	require.ErrorContains(t, err, "negative label count")
}
