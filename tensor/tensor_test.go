package tensor

import (
	"testing"
)

func TestNewTensor(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	tensor, err := NewTensor([]int{2, 3}, Float32, data)
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}

	if tensor.NumElems != 6 {
		t.Errorf("expected 6 elements, got %d", tensor.NumElems)
	}
	if tensor.Strides[0] != 3 || tensor.Strides[1] != 1 {
		t.Errorf("unexpected strides: %v", tensor.Strides)
	}
}

func TestNewTensorShapeMismatch(t *testing.T) {
	_, err := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for mismatched data length")
	}
}

func TestNewTensorDTypeMismatch(t *testing.T) {
	_, err := NewTensor([]int{2}, Int32, []float32{1, 2})
	if err == nil {
		t.Fatal("expected error for dtype mismatch")
	}
}

func TestZeros(t *testing.T) {
	tensor, err := Zeros([]int{4, 2}, Int32)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}

	data, err := tensor.Int32Slice()
	if err != nil {
		t.Fatalf("Int32Slice failed: %v", err)
	}
	for i, v := range data {
		if v != 0 {
			t.Errorf("element %d: expected 0, got %d", i, v)
		}
	}
}

func TestCopyInto(t *testing.T) {
	batch, err := Zeros([]int{3, 2, 2}, Float32)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}

	sample, err := NewTensor([]int{2, 2}, Float32, []float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}

	if err := batch.CopyInto(sample, 1); err != nil {
		t.Fatalf("CopyInto failed: %v", err)
	}

	data, _ := batch.Float32Slice()
	expected := []float32{0, 0, 0, 0, 1, 2, 3, 4, 0, 0, 0, 0}
	for i, v := range expected {
		if data[i] != v {
			t.Errorf("element %d: expected %f, got %f", i, v, data[i])
		}
	}
}

func TestCopyIntoOutOfRange(t *testing.T) {
	batch, _ := Zeros([]int{2, 4}, Float32)
	sample, _ := NewTensor([]int{4}, Float32, []float32{1, 2, 3, 4})

	if err := batch.CopyInto(sample, 2); err == nil {
		t.Fatal("expected error for out-of-range batch index")
	}
}

func TestClone(t *testing.T) {
	orig, _ := NewTensor([]int{2}, Float32, []float32{1, 2})
	clone, err := orig.Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	cloneData, _ := clone.Float32Slice()
	cloneData[0] = 99

	origData, _ := orig.Float32Slice()
	if origData[0] != 1 {
		t.Error("clone shares storage with original")
	}
}
