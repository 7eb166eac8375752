package training

import (
	"fmt"
	"math"

	"github.com/cnsky2016/BigDL/tensor"
)

// Criterion is the loss collaborator: given model output and true labels it
// returns the scalar loss and the gradient with respect to the output.
type Criterion interface {
	Forward(output *tensor.Tensor, labels []int32) (float64, *tensor.Tensor, error)
}

// CrossEntropyLoss combines a softmax over class scores with negative
// log-likelihood, averaged over the batch.
type CrossEntropyLoss struct{}

// NewCrossEntropyLoss creates a cross-entropy criterion.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return &CrossEntropyLoss{}
}

func (ce *CrossEntropyLoss) Forward(output *tensor.Tensor, labels []int32) (float64, *tensor.Tensor, error) {
	if len(output.Shape) != 2 {
		return 0, nil, fmt.Errorf("expected [batch, classes] output, got shape %v", output.Shape)
	}
	batchSize, numClasses := output.Shape[0], output.Shape[1]
	if len(labels) != batchSize {
		return 0, nil, fmt.Errorf("labels length %d does not match batch size %d", len(labels), batchSize)
	}

	scores, err := output.Float32Slice()
	if err != nil {
		return 0, nil, err
	}

	grad := make([]float32, len(scores))
	var totalLoss float64

	for i := 0; i < batchSize; i++ {
		label := int(labels[i])
		if label < 0 || label >= numClasses {
			return 0, nil, fmt.Errorf("label %d out of range [0, %d)", label, numClasses)
		}

		row := scores[i*numClasses : (i+1)*numClasses]

		// Shifted softmax for numerical stability.
		maxScore := row[0]
		for _, s := range row[1:] {
			if s > maxScore {
				maxScore = s
			}
		}

		var sumExp float64
		for _, s := range row {
			sumExp += math.Exp(float64(s - maxScore))
		}
		logSumExp := math.Log(sumExp)

		totalLoss += logSumExp - float64(row[label]-maxScore)

		gradRow := grad[i*numClasses : (i+1)*numClasses]
		for c, s := range row {
			softmax := math.Exp(float64(s-maxScore)) / sumExp
			gradRow[c] = float32(softmax) / float32(batchSize)
		}
		gradRow[label] -= 1.0 / float32(batchSize)
	}

	gradTensor, err := tensor.NewTensor([]int{batchSize, numClasses}, tensor.Float32, grad)
	if err != nil {
		return 0, nil, err
	}
	return totalLoss / float64(batchSize), gradTensor, nil
}
