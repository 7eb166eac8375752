package tensor

import (
	"fmt"
)

type DType int

const (
	Float32 DType = iota
	Int32
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "Float32"
	case Int32:
		return "Int32"
	default:
		return "Unknown"
	}
}

// Tensor is a dense, CPU-resident, row-major numeric array.
type Tensor struct {
	Shape    []int
	Strides  []int
	DType    DType
	Data     interface{}
	NumElems int
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, elements=%d)", t.Shape, t.DType, t.NumElems)
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}

	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func calculateNumElems(shape []int) int {
	n := 1
	for _, dim := range shape {
		n *= dim
	}
	return n
}

// NewTensor creates a tensor from existing data. The data length must match
// the product of the shape dimensions.
func NewTensor(shape []int, dtype DType, data interface{}) (*Tensor, error) {
	for _, dim := range shape {
		if dim <= 0 {
			return nil, fmt.Errorf("invalid shape %v: dimensions must be positive", shape)
		}
	}

	numElems := calculateNumElems(shape)

	switch d := data.(type) {
	case []float32:
		if dtype != Float32 {
			return nil, fmt.Errorf("dtype mismatch: %s data for %s tensor", Float32, dtype)
		}
		if len(d) != numElems {
			return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", len(d), shape, numElems)
		}
	case []int32:
		if dtype != Int32 {
			return nil, fmt.Errorf("dtype mismatch: %s data for %s tensor", Int32, dtype)
		}
		if len(d) != numElems {
			return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", len(d), shape, numElems)
		}
	default:
		return nil, fmt.Errorf("unsupported data type %T", data)
	}

	return &Tensor{
		Shape:    append([]int{}, shape...),
		Strides:  calculateStrides(shape),
		DType:    dtype,
		Data:     data,
		NumElems: numElems,
	}, nil
}

// Zeros creates a zero-filled tensor of the given shape and dtype.
func Zeros(shape []int, dtype DType) (*Tensor, error) {
	numElems := calculateNumElems(shape)

	var data interface{}
	switch dtype {
	case Float32:
		data = make([]float32, numElems)
	case Int32:
		data = make([]int32, numElems)
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}

	return NewTensor(shape, dtype, data)
}

// Float32Slice returns the underlying float32 storage.
func (t *Tensor) Float32Slice() ([]float32, error) {
	data, ok := t.Data.([]float32)
	if !ok {
		return nil, fmt.Errorf("tensor is %s, not %s", t.DType, Float32)
	}
	return data, nil
}

// Int32Slice returns the underlying int32 storage.
func (t *Tensor) Int32Slice() ([]int32, error) {
	data, ok := t.Data.([]int32)
	if !ok {
		return nil, fmt.Errorf("tensor is %s, not %s", t.DType, Int32)
	}
	return data, nil
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() (*Tensor, error) {
	switch d := t.Data.(type) {
	case []float32:
		data := make([]float32, len(d))
		copy(data, d)
		return NewTensor(t.Shape, t.DType, data)
	case []int32:
		data := make([]int32, len(d))
		copy(data, d)
		return NewTensor(t.Shape, t.DType, data)
	default:
		return nil, fmt.Errorf("unsupported data type %T", t.Data)
	}
}

// CopyInto copies src into a leading-dimension slot of t, so that a batch
// tensor of shape [B, ...] receives one sample of shape [...] at batchIndex.
func (t *Tensor) CopyInto(src *Tensor, batchIndex int) error {
	if t.DType != src.DType {
		return fmt.Errorf("dtype mismatch: batch %s, sample %s", t.DType, src.DType)
	}
	if len(t.Shape) == 0 {
		return fmt.Errorf("cannot copy into a scalar tensor")
	}
	if batchIndex < 0 || batchIndex >= t.Shape[0] {
		return fmt.Errorf("batch index %d out of range [0, %d)", batchIndex, t.Shape[0])
	}

	sampleSize := src.NumElems
	if t.NumElems != t.Shape[0]*sampleSize {
		return fmt.Errorf("sample shape %v does not fit batch shape %v", src.Shape, t.Shape)
	}
	offset := batchIndex * sampleSize

	switch dst := t.Data.(type) {
	case []float32:
		srcData, err := src.Float32Slice()
		if err != nil {
			return err
		}
		copy(dst[offset:offset+sampleSize], srcData)
	case []int32:
		srcData, err := src.Int32Slice()
		if err != nil {
			return err
		}
		copy(dst[offset:offset+sampleSize], srcData)
	default:
		return fmt.Errorf("unsupported data type %T", t.Data)
	}

	return nil
}
