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

// Package mnist yields the MNIST database of handwritten digits as batches of
// channels-first float32 image tensors normalized to [-1, 1], the layout the
// wgan trainer consumes. Labels are yielded too, but WGAN-GP training ignores
// them.
package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"io"
	"math/rand"
	"net/url"
	"os"
	"path"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	downloadURL         = "https://storage.googleapis.com/cvdf-datasets/mnist"
	trainImagesFilename = "train-images-idx3-ubyte.gz"
	trainLabelsFilename = "train-labels-idx1-ubyte.gz"
	testImagesFilename  = "t10k-images-idx3-ubyte.gz"
	testLabelsFilename  = "t10k-labels-idx1-ubyte.gz"

	// Width, Height and Channels of every MNIST image.
	Width    = 28
	Height   = 28
	Channels = 1

	imageMagic = 0x00000803
	labelMagic = 0x00000801
)

var files = map[string][2]string{
	"train": {trainImagesFilename, trainLabelsFilename},
	"test":  {testImagesFilename, testLabelsFilename},
}

// Download fetches the four MNIST files into baseDir, if not already there.
func Download(baseDir string) error {
	baseDir = data.ReplaceTildeInDir(baseDir)
	for _, file := range []string{trainImagesFilename, trainLabelsFilename, testImagesFilename, testLabelsFilename} {
		fileURL, _ := url.JoinPath(downloadURL, file)
		if err := data.DownloadIfMissing(fileURL, path.Join(baseDir, file), ""); err != nil {
			return errors.WithMessagef(err, "downloading %s", file)
		}
	}
	return nil
}

// Dataset implements train.Dataset over the MNIST images. Each Yield returns
// one batch of images shaped [batchSize, 1, 28, 28] (channels-first float32
// in [-1, 1]) and the corresponding digit labels shaped [batchSize] (int8).
//
// Yield is mutex-guarded so a parallelizing wrapper stays safe, although the
// wgan trainer itself consumes batches strictly sequentially.
type Dataset struct {
	name      string
	batchSize int
	shuffle   *rand.Rand

	mu       sync.Mutex
	images   []float32 // Flat, normalized, one image every Height*Width entries.
	labels   []int8
	indices  []int
	position int
}

var _ train.Dataset = (*Dataset)(nil)

// NewDataset loads the given mode ("train" or "test") of MNIST from baseDir
// -- see Download -- into memory. If shuffle is non-nil the example order is
// re-drawn from it at every epoch.
func NewDataset(name, baseDir, mode string, batchSize int, shuffle *rand.Rand) (*Dataset, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	pair, ok := files[mode]
	if !ok {
		return nil, errors.Errorf("unknown MNIST mode %q, valid values are \"train\" and \"test\"", mode)
	}
	baseDir = data.ReplaceTildeInDir(baseDir)
	images, err := loadImages(path.Join(baseDir, pair[0]))
	if err != nil {
		return nil, err
	}
	labels, err := loadLabels(path.Join(baseDir, pair[1]))
	if err != nil {
		return nil, err
	}
	numImages := len(images) / (Height * Width)
	if numImages != len(labels) {
		return nil, errors.Errorf("MNIST %s: %d images but %d labels", mode, numImages, len(labels))
	}
	klog.V(1).Infof("MNIST %s: loaded %s examples", mode, humanize.Comma(int64(numImages)))
	ds := &Dataset{
		name:      name,
		batchSize: batchSize,
		shuffle:   shuffle,
		images:    images,
		labels:    labels,
	}
	ds.reshuffleLocked()
	return ds, nil
}

// NumExamples in the dataset.
func (ds *Dataset) NumExamples() int { return len(ds.labels) }

// NumBatches per epoch, including the final short batch, if any.
func (ds *Dataset) NumBatches() int {
	return (ds.NumExamples() + ds.batchSize - 1) / ds.batchSize
}

// Name implements train.Dataset.
func (ds *Dataset) Name() string { return ds.name }

// Reset implements train.Dataset: it restarts the epoch, reshuffling if the
// dataset was built with a random source.
func (ds *Dataset) Reset() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.position = 0
	ds.reshuffleLocked()
}

func (ds *Dataset) reshuffleLocked() {
	if ds.shuffle != nil {
		ds.indices = ds.shuffle.Perm(ds.NumExamples())
		return
	}
	if ds.indices == nil {
		ds.indices = make([]int, ds.NumExamples())
		for ii := range ds.indices {
			ds.indices[ii] = ii
		}
	}
}

// Yield implements train.Dataset. It returns io.EOF along with the final
// (possibly short) batch of the epoch.
func (ds *Dataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.position >= len(ds.indices) {
		return ds, nil, nil, io.EOF
	}
	start := ds.position
	end := start + ds.batchSize
	if end >= len(ds.indices) {
		end = len(ds.indices)
		err = io.EOF
	}
	ds.position = end

	batch := ds.indices[start:end]
	imageSize := Height * Width
	imagesFlat := make([]float32, len(batch)*imageSize)
	labelsFlat := make([]int8, len(batch))
	for ii, exampleIdx := range batch {
		copy(imagesFlat[ii*imageSize:], ds.images[exampleIdx*imageSize:(exampleIdx+1)*imageSize])
		labelsFlat[ii] = ds.labels[exampleIdx]
	}
	inputs = []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions(imagesFlat, len(batch), Channels, Height, Width)}
	labels = []*tensors.Tensor{tensors.FromFlatDataAndDimensions(labelsFlat, len(batch))}
	return ds, inputs, labels, err
}

// IsOwnershipTransferred tells the training loop the dataset keeps ownership
// of the yielded tensors.
func (ds *Dataset) IsOwnershipTransferred() bool { return false }

type imageFileHeader struct {
	Magic     int32
	NumImages int32
	Height    int32
	Width     int32
}

type labelFileHeader struct {
	Magic     int32
	NumLabels int32
}

// loadImages parses an IDX images file, returning all pixels normalized to
// [-1, 1], flat in example-major order.
func loadImages(filePath string) ([]float32, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening MNIST images file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	reader, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "un-gzipping MNIST images file %q", filePath)
	}
	defer func() { _ = reader.Close() }()

	var header imageFileHeader
	if err := binary.Read(reader, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "reading header of %q", filePath)
	}
	if header.Magic != imageMagic || header.Width != Width || header.Height != Height {
		return nil, errors.Errorf("%q is not an MNIST images file (magic=%x, %dx%d)",
			filePath, header.Magic, header.Height, header.Width)
	}
	if header.NumImages < 0 {
		return nil, errors.Errorf("%q is corrupted: negative image count %d", filePath, header.NumImages)
	}
	raw := make([]byte, int(header.NumImages)*Height*Width)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return nil, errors.Wrapf(err, "reading %d images from %q", header.NumImages, filePath)
	}
	images := make([]float32, len(raw))
	for ii, pixel := range raw {
		images[ii] = float32(pixel)/127.5 - 1 // [0, 255] -> [-1, 1]
	}
	return images, nil
}

// loadLabels parses an IDX labels file.
func loadLabels(filePath string) ([]int8, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening MNIST labels file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	reader, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "un-gzipping MNIST labels file %q", filePath)
	}
	defer func() { _ = reader.Close() }()

	var header labelFileHeader
	if err := binary.Read(reader, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "reading header of %q", filePath)
	}
	if header.Magic != labelMagic {
		return nil, errors.Errorf("%q is not an MNIST labels file (magic=%x)", filePath, header.Magic)
	}
	if header.NumLabels < 0 {
		return nil, errors.Errorf("%q is corrupted: negative label count %d", filePath, header.NumLabels)
	}
	raw := make([]byte, header.NumLabels)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return nil, errors.Wrapf(err, "reading %d labels from %q", header.NumLabels, filePath)
	}
	labels := make([]int8, len(raw))
	for ii, label := range raw {
		labels[ii] = int8(label)
	}
	return labels, nil
}
