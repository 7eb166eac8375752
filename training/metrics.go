package training

import (
	"fmt"

	"github.com/cnsky2016/BigDL/tensor"
)

// ValidationMethod accumulates a score over a validation pass. Multiple
// methods may be registered simultaneously; each sees every batch.
type ValidationMethod interface {
	Update(output *tensor.Tensor, labels []int32) error
	Result() float64
	Name() string
	Reset()
}

// TopKAccuracy measures the fraction of samples whose true label appears
// among the K highest-scored model outputs.
type TopKAccuracy struct {
	k       int
	correct int
	total   int
}

// NewTopKAccuracy creates a top-K accuracy method.
func NewTopKAccuracy(k int) (*TopKAccuracy, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	return &TopKAccuracy{k: k}, nil
}

// NewTop1Accuracy returns the standard top-1 accuracy method.
func NewTop1Accuracy() *TopKAccuracy {
	m, _ := NewTopKAccuracy(1)
	return m
}

// NewTop5Accuracy returns the standard top-5 accuracy method.
func NewTop5Accuracy() *TopKAccuracy {
	m, _ := NewTopKAccuracy(5)
	return m
}

func (m *TopKAccuracy) Name() string {
	return fmt.Sprintf("Top%dAccuracy", m.k)
}

func (m *TopKAccuracy) Update(output *tensor.Tensor, labels []int32) error {
	if len(output.Shape) != 2 {
		return fmt.Errorf("expected [batch, classes] output, got shape %v", output.Shape)
	}
	batchSize, numClasses := output.Shape[0], output.Shape[1]
	if len(labels) != batchSize {
		return fmt.Errorf("labels length %d does not match batch size %d", len(labels), batchSize)
	}

	scores, err := output.Float32Slice()
	if err != nil {
		return err
	}

	for i := 0; i < batchSize; i++ {
		label := int(labels[i])
		if label < 0 || label >= numClasses {
			return fmt.Errorf("label %d out of range [0, %d)", label, numClasses)
		}

		row := scores[i*numClasses : (i+1)*numClasses]
		target := row[label]

		// The label is in the top K when fewer than K classes strictly
		// outscore it.
		higher := 0
		for _, score := range row {
			if score > target {
				higher++
			}
		}
		if higher < m.k {
			m.correct++
		}
		m.total++
	}
	return nil
}

func (m *TopKAccuracy) Result() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.correct) / float64(m.total)
}

func (m *TopKAccuracy) Reset() {
	m.correct = 0
	m.total = 0
}

// LossValue accumulates the mean criterion loss over a validation pass.
type LossValue struct {
	criterion Criterion
	sum       float64
	batches   int
}

// NewLossValue creates a mean-loss validation method over criterion.
func NewLossValue(criterion Criterion) *LossValue {
	return &LossValue{criterion: criterion}
}

func (m *LossValue) Name() string { return "Loss" }

func (m *LossValue) Update(output *tensor.Tensor, labels []int32) error {
	loss, _, err := m.criterion.Forward(output, labels)
	if err != nil {
		return err
	}
	m.sum += loss
	m.batches++
	return nil
}

func (m *LossValue) Result() float64 {
	if m.batches == 0 {
		return 0
	}
	return m.sum / float64(m.batches)
}

func (m *LossValue) Reset() {
	m.sum = 0
	m.batches = 0
}
