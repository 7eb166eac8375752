package transform

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cnsky2016/BigDL/dataset"
	"github.com/cnsky2016/BigDL/tensor"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Pix[(y*width+x)*4] = uint8(x % 256)
			img.Pix[(y*width+x)*4+1] = uint8(y % 256)
			img.Pix[(y*width+x)*4+3] = 255
		}
	}

	path := filepath.Join(t.TempDir(), "img.png")
	file, err := os.Create(path)
	require.Nil(t, err)
	defer file.Close()
	require.Nil(t, png.Encode(file, img))
	return path
}

func chwImage(t *testing.T, channels, height, width int, fill float32) *tensor.Tensor {
	t.Helper()
	data := make([]float32, channels*height*width)
	for i := range data {
		data[i] = fill
	}
	img, err := tensor.NewTensor([]int{channels, height, width}, tensor.Float32, data)
	require.Nil(t, err)
	return img
}

func TestDecoderShortEdge(t *testing.T) {
	path := writePNG(t, 64, 32)

	decoder, err := NewDecoder(16, nil)
	require.Nil(t, err)

	rec := &Record{Sample: dataset.Sample{Path: path, Label: 1}}
	require.Nil(t, decoder.Apply(rec))

	// Short edge (height) scaled to 16, aspect preserved.
	require.Equal(t, []int{3, 16, 32}, rec.Image.Shape)
}

func TestDecoderBadContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.png")
	require.Nil(t, os.WriteFile(path, []byte("garbage"), 0o644))

	decoder, err := NewDecoder(16, nil)
	require.Nil(t, err)

	rec := &Record{Sample: dataset.Sample{Path: path}}
	require.Error(t, decoder.Apply(rec))
}

func TestCenterCrop(t *testing.T) {
	crop, err := NewCrop(2, 2, false)
	require.Nil(t, err)

	data := []float32{
		0, 1, 2, 3,
		4, 5, 6, 7,
		8, 9, 10, 11,
		12, 13, 14, 15,
	}
	img, err := tensor.NewTensor([]int{1, 4, 4}, tensor.Float32, data)
	require.Nil(t, err)

	rec := &Record{Image: img}
	require.Nil(t, crop.Apply(rec))

	out, err := rec.Image.Float32Slice()
	require.Nil(t, err)
	require.Equal(t, []float32{5, 6, 9, 10}, out)
}

func TestRandomCropBounds(t *testing.T) {
	crop, err := NewCrop(3, 3, true)
	require.Nil(t, err)

	for i := 0; i < 50; i++ {
		rec := &Record{Image: chwImage(t, 3, 8, 8, 0.5)}
		require.Nil(t, crop.Apply(rec))
		require.Equal(t, []int{3, 3, 3}, rec.Image.Shape)
	}
}

func TestCropTooLarge(t *testing.T) {
	crop, err := NewCrop(10, 10, false)
	require.Nil(t, err)

	rec := &Record{Image: chwImage(t, 1, 4, 4, 0)}
	require.Error(t, crop.Apply(rec))
}

func TestNormalizer(t *testing.T) {
	norm, err := NewNormalizer([]float32{0.5, 0.25}, []float32{0.5, 0.25})
	require.Nil(t, err)

	data := []float32{1, 1, 0.5, 0.5}
	img, err := tensor.NewTensor([]int{2, 1, 2}, tensor.Float32, data)
	require.Nil(t, err)

	rec := &Record{Image: img}
	require.Nil(t, norm.Apply(rec))

	out, _ := rec.Image.Float32Slice()
	require.InDelta(t, 1.0, out[0], 1e-6)
	require.InDelta(t, 1.0, out[1], 1e-6)
	require.InDelta(t, 1.0, out[2], 1e-6)
	require.InDelta(t, 1.0, out[3], 1e-6)
}

func TestNormalizerZeroStd(t *testing.T) {
	_, err := NewNormalizer([]float32{0}, []float32{0})
	require.Error(t, err)
}

func TestPipelineComposition(t *testing.T) {
	crop, _ := NewCrop(2, 2, false)
	norm, _ := NewNormalizer([]float32{0, 0, 0}, []float32{1, 1, 1})

	p, err := NewPipeline(crop, norm)
	require.Nil(t, err)
	require.Equal(t, KindImage, p.Input())
	require.Equal(t, KindImage, p.Output())
}

func TestPipelineIncompatibleStages(t *testing.T) {
	crop, _ := NewCrop(2, 2, false)
	decoder, _ := NewDecoder(8, nil)

	// Crop emits an image; a decoder expects raw content.
	_, err := NewPipeline(crop, decoder)
	require.Error(t, err)
}

func TestPipelineAssociativity(t *testing.T) {
	mean := []float32{0.1}
	std := []float32{0.9}

	build := func(grouping int) *tensor.Tensor {
		cropA, _ := NewCrop(4, 4, false)
		cropB, _ := NewCrop(2, 2, false)
		norm, _ := NewNormalizer(mean, std)

		var p *Pipeline
		var err error
		if grouping == 0 {
			// (A then B) then C
			p, err = NewPipeline(cropA, cropB)
			require.Nil(t, err)
			p, err = p.Then(norm)
			require.Nil(t, err)
		} else {
			// A then (B then C)
			tail, terr := NewPipeline(cropB, norm)
			require.Nil(t, terr)
			p, err = NewPipeline(cropA)
			require.Nil(t, err)
			p, err = p.Then(tail)
			require.Nil(t, err)
		}

		data := make([]float32, 36)
		for i := range data {
			data[i] = float32(i) / 36
		}
		img, err := tensor.NewTensor([]int{1, 6, 6}, tensor.Float32, data)
		require.Nil(t, err)

		rec := &Record{Image: img}
		require.Nil(t, p.Apply(rec))
		return rec.Image
	}

	left := build(0)
	right := build(1)

	leftData, _ := left.Float32Slice()
	rightData, _ := right.Float32Slice()
	require.Equal(t, leftData, rightData)
}

func TestPipelineWrapsErrors(t *testing.T) {
	crop, _ := NewCrop(10, 10, false)
	p, err := NewPipeline(crop)
	require.Nil(t, err)

	rec := &Record{
		Sample: dataset.Sample{Path: "tiny.jpg", Label: 3},
		Image:  chwImage(t, 1, 4, 4, 0),
	}
	applyErr := p.Apply(rec)
	require.Error(t, applyErr)

	var terr *TransformError
	require.True(t, errors.As(applyErr, &terr))
	require.Equal(t, "tiny.jpg", terr.Sample.Path)
	require.Equal(t, "CenterCrop", terr.Stage)
}

func TestPipelineCloneIndependence(t *testing.T) {
	crop, _ := NewCrop(2, 2, true)
	p, err := NewPipeline(crop)
	require.Nil(t, err)

	a := p.Clone()
	b := p.Clone()
	require.NotSame(t, a, b)

	// Clones run independently without touching the original's state.
	for i := 0; i < 20; i++ {
		recA := &Record{Image: chwImage(t, 1, 5, 5, 1)}
		recB := &Record{Image: chwImage(t, 1, 5, 5, 1)}
		require.Nil(t, a.Apply(recA))
		require.Nil(t, b.Apply(recB))
	}
}
