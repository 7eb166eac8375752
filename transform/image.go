package transform

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/cnsky2016/BigDL/tensor"
)

// DecodeFunc turns raw file content into an image. The default recognizes
// JPEG and PNG; callers with exotic formats supply their own.
type DecodeFunc func(r io.Reader) (image.Image, error)

func defaultDecode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}

// Decoder resolves a sample's content handle, decodes it, and scales it so
// the short edge matches a canonical dimension. Output is a CHW float32
// tensor with values in [0, 1].
type Decoder struct {
	shortEdge int
	decode    DecodeFunc
	scratch   []float32
}

// NewDecoder creates a decode stage with the given canonical short-edge size.
func NewDecoder(shortEdge int, decode DecodeFunc) (*Decoder, error) {
	if shortEdge <= 0 {
		return nil, fmt.Errorf("short edge must be positive, got %d", shortEdge)
	}
	if decode == nil {
		decode = defaultDecode
	}
	return &Decoder{shortEdge: shortEdge, decode: decode}, nil
}

func (d *Decoder) Name() string { return "Decoder" }
func (d *Decoder) Input() Kind  { return KindRaw }
func (d *Decoder) Output() Kind { return KindImage }

func (d *Decoder) Apply(rec *Record) error {
	file, err := os.Open(rec.Sample.Path)
	if err != nil {
		return fmt.Errorf("failed to open content: %w", err)
	}
	defer file.Close()

	img, err := d.decode(file)
	if err != nil {
		return fmt.Errorf("failed to decode content: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return fmt.Errorf("decoded image has empty bounds %v", bounds)
	}

	// Scale so the short edge lands on the canonical dimension.
	short := width
	if height < short {
		short = height
	}
	scale := float64(d.shortEdge) / float64(short)
	outW := int(float64(width)*scale + 0.5)
	outH := int(float64(height)*scale + 0.5)
	if outW < d.shortEdge {
		outW = d.shortEdge
	}
	if outH < d.shortEdge {
		outH = d.shortEdge
	}

	required := 3 * outW * outH
	if len(d.scratch) < required {
		d.scratch = make([]float32, required)
	}
	data := d.scratch[:required]

	plane := outW * outH
	for y := 0; y < outH; y++ {
		srcY := int(float64(y) / scale)
		if srcY >= height {
			srcY = height - 1
		}
		for x := 0; x < outW; x++ {
			srcX := int(float64(x) / scale)
			if srcX >= width {
				srcX = width - 1
			}

			r, g, b, _ := img.At(bounds.Min.X+srcX, bounds.Min.Y+srcY).RGBA()
			idx := y*outW + x
			data[idx] = float32(r) / 65535.0
			data[plane+idx] = float32(g) / 65535.0
			data[2*plane+idx] = float32(b) / 65535.0
		}
	}

	// The scratch buffer is reused across samples; the record gets a copy.
	out := make([]float32, required)
	copy(out, data)

	rec.Image, err = tensor.NewTensor([]int{3, outH, outW}, tensor.Float32, out)
	return err
}

func (d *Decoder) Clone() Transformer {
	return &Decoder{shortEdge: d.shortEdge, decode: d.decode}
}
