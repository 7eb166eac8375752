package transform

import (
	"fmt"
	"math/rand"

	"github.com/cnsky2016/BigDL/tensor"
)

// Crop cuts a fixed width x height window out of a CHW image, either at a
// random offset (training) or centered (validation).
type Crop struct {
	width  int
	height int
	random bool
	rng    *rand.Rand
}

// NewCrop creates a crop stage. With random=true offsets are drawn from a
// worker-local random source; otherwise the crop is centered.
func NewCrop(width, height int, random bool) (*Crop, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("crop dimensions must be positive, got %dx%d", width, height)
	}
	return &Crop{
		width:  width,
		height: height,
		random: random,
		rng:    rand.New(rand.NewSource(nextSeed())),
	}, nil
}

func (c *Crop) Name() string {
	if c.random {
		return "RandomCrop"
	}
	return "CenterCrop"
}

func (c *Crop) Input() Kind  { return KindImage }
func (c *Crop) Output() Kind { return KindImage }

func (c *Crop) Apply(rec *Record) error {
	if rec.Image == nil {
		return fmt.Errorf("no decoded image to crop")
	}
	shape := rec.Image.Shape
	if len(shape) != 3 {
		return fmt.Errorf("expected CHW image, got shape %v", shape)
	}

	channels, srcH, srcW := shape[0], shape[1], shape[2]
	if srcH < c.height || srcW < c.width {
		return fmt.Errorf("image %dx%d smaller than crop %dx%d", srcW, srcH, c.width, c.height)
	}

	var x0, y0 int
	if c.random {
		x0 = c.rng.Intn(srcW - c.width + 1)
		y0 = c.rng.Intn(srcH - c.height + 1)
	} else {
		x0 = (srcW - c.width) / 2
		y0 = (srcH - c.height) / 2
	}

	src, err := rec.Image.Float32Slice()
	if err != nil {
		return err
	}

	out := make([]float32, channels*c.height*c.width)
	for ch := 0; ch < channels; ch++ {
		srcPlane := ch * srcH * srcW
		dstPlane := ch * c.height * c.width
		for y := 0; y < c.height; y++ {
			srcRow := srcPlane + (y0+y)*srcW + x0
			dstRow := dstPlane + y*c.width
			copy(out[dstRow:dstRow+c.width], src[srcRow:srcRow+c.width])
		}
	}

	rec.Image, err = tensor.NewTensor([]int{channels, c.height, c.width}, tensor.Float32, out)
	return err
}

func (c *Crop) Clone() Transformer {
	return &Crop{
		width:  c.width,
		height: c.height,
		random: c.random,
		rng:    rand.New(rand.NewSource(nextSeed())),
	}
}
