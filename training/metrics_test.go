package training

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cnsky2016/BigDL/tensor"
)

func scoreTensor(t *testing.T, batchSize, classes int, scores []float32) *tensor.Tensor {
	t.Helper()
	out, err := tensor.NewTensor([]int{batchSize, classes}, tensor.Float32, scores)
	require.Nil(t, err)
	return out
}

func TestTop1Accuracy(t *testing.T) {
	method := NewTop1Accuracy()

	// Row 0 predicts class 2 (correct), row 1 predicts class 0 (wrong).
	output := scoreTensor(t, 2, 3, []float32{
		0.1, 0.2, 0.7,
		0.8, 0.1, 0.1,
	})
	require.Nil(t, method.Update(output, []int32{2, 1}))
	require.InDelta(t, 0.5, method.Result(), 1e-9)
}

func TestTopKAccuracy(t *testing.T) {
	method, err := NewTopKAccuracy(2)
	require.Nil(t, err)

	// True label ranked second still counts for top-2.
	output := scoreTensor(t, 1, 4, []float32{0.4, 0.3, 0.2, 0.1})
	require.Nil(t, method.Update(output, []int32{1}))
	require.InDelta(t, 1.0, method.Result(), 1e-9)

	method.Reset()
	require.Nil(t, method.Update(output, []int32{3}))
	require.InDelta(t, 0.0, method.Result(), 1e-9)
}

func TestTopKAccuracyAccumulates(t *testing.T) {
	method := NewTop1Accuracy()

	output := scoreTensor(t, 1, 2, []float32{0.9, 0.1})
	require.Nil(t, method.Update(output, []int32{0}))
	require.Nil(t, method.Update(output, []int32{1}))
	require.Nil(t, method.Update(output, []int32{0}))

	require.InDelta(t, 2.0/3.0, method.Result(), 1e-9)
	require.Equal(t, "Top1Accuracy", method.Name())
}

func TestTopKAccuracyBadLabel(t *testing.T) {
	method := NewTop1Accuracy()
	output := scoreTensor(t, 1, 2, []float32{0.5, 0.5})
	require.Error(t, method.Update(output, []int32{7}))
}

func TestTopKAccuracyLabelLengthMismatch(t *testing.T) {
	method := NewTop1Accuracy()
	output := scoreTensor(t, 2, 2, []float32{1, 0, 0, 1})
	require.Error(t, method.Update(output, []int32{0}))
}

func TestLossValue(t *testing.T) {
	method := NewLossValue(NewCrossEntropyLoss())

	// Uniform scores: loss is ln(2) per batch.
	output := scoreTensor(t, 2, 2, []float32{0, 0, 0, 0})
	require.Nil(t, method.Update(output, []int32{0, 1}))
	require.InDelta(t, 0.6931, method.Result(), 1e-3)

	method.Reset()
	require.InDelta(t, 0.0, method.Result(), 1e-9)
}
