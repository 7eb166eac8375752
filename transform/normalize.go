package transform

import (
	"fmt"
)

// Normalizer subtracts a per-channel mean and divides by a per-channel
// standard deviation, in canonical channel order. It mutates the image in
// place.
type Normalizer struct {
	mean []float32
	std  []float32
}

// NewNormalizer creates a per-channel normalization stage. Mean and std must
// have one entry per channel and std entries must be non-zero.
func NewNormalizer(mean, std []float32) (*Normalizer, error) {
	if len(mean) == 0 || len(mean) != len(std) {
		return nil, fmt.Errorf("mean and std must be non-empty and the same length, got %d and %d", len(mean), len(std))
	}
	for i, s := range std {
		if s == 0 {
			return nil, fmt.Errorf("std for channel %d is zero", i)
		}
	}
	return &Normalizer{
		mean: append([]float32{}, mean...),
		std:  append([]float32{}, std...),
	}, nil
}

func (n *Normalizer) Name() string { return "Normalizer" }
func (n *Normalizer) Input() Kind  { return KindImage }
func (n *Normalizer) Output() Kind { return KindImage }

func (n *Normalizer) Apply(rec *Record) error {
	if rec.Image == nil {
		return fmt.Errorf("no decoded image to normalize")
	}
	shape := rec.Image.Shape
	if len(shape) != 3 {
		return fmt.Errorf("expected CHW image, got shape %v", shape)
	}
	if shape[0] != len(n.mean) {
		return fmt.Errorf("image has %d channels, normalizer configured for %d", shape[0], len(n.mean))
	}

	data, err := rec.Image.Float32Slice()
	if err != nil {
		return err
	}

	plane := shape[1] * shape[2]
	for ch := 0; ch < shape[0]; ch++ {
		mean, std := n.mean[ch], n.std[ch]
		base := ch * plane
		for i := base; i < base+plane; i++ {
			data[i] = (data[i] - mean) / std
		}
	}
	return nil
}

func (n *Normalizer) Clone() Transformer {
	return &Normalizer{mean: n.mean, std: n.std}
}
