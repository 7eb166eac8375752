package training

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cnsky2016/BigDL/tensor"
)

// Global random source for deterministic weight initialization.
var globalRng = rand.New(rand.NewSource(1))

// SetRandomSeed sets the global random seed for deterministic initialization.
func SetRandomSeed(seed int64) {
	globalRng = rand.New(rand.NewSource(seed))
}

// Module is the model collaborator of the training loop: an opaque
// differentiable function with a forward/backward contract and an addressable
// set of parameter tensors for in-place update. Parameters are owned and
// mutated by the control thread only.
type Module interface {
	// Forward evaluates the model on a batch tensor whose leading dimension
	// is the batch size.
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)

	// Backward propagates the gradient with respect to the last Forward
	// output, refreshing the tensors returned by Gradients.
	Backward(gradOutput *tensor.Tensor) error

	// Parameters returns the trainable parameter tensors.
	Parameters() []*tensor.Tensor

	// Gradients returns the parameter gradients, parallel to Parameters.
	Gradients() []*tensor.Tensor

	Train()
	Eval()
	IsTraining() bool
}

// Linear is a fully connected softmax classifier head: y = xW + b. Input
// batches of any shape [B, ...] are flattened to [B, features]. It exists so
// the training loop can be exercised end to end without an external model.
type Linear struct {
	weight   *tensor.Tensor // [features, classes]
	bias     *tensor.Tensor // [classes]
	gradW    *tensor.Tensor
	gradB    *tensor.Tensor
	input    *tensor.Tensor // cached for backward
	features int
	classes  int
	training bool
}

// NewLinear creates a linear layer with Xavier-uniform initialized weights.
func NewLinear(features, classes int) (*Linear, error) {
	if features <= 0 || classes <= 0 {
		return nil, fmt.Errorf("features and classes must be positive, got %d and %d", features, classes)
	}

	bound := math.Sqrt(6.0 / float64(features+classes))
	weightData := make([]float32, features*classes)
	for i := range weightData {
		weightData[i] = float32((globalRng.Float64()*2.0 - 1.0) * bound)
	}

	weight, err := tensor.NewTensor([]int{features, classes}, tensor.Float32, weightData)
	if err != nil {
		return nil, err
	}
	bias, err := tensor.Zeros([]int{classes}, tensor.Float32)
	if err != nil {
		return nil, err
	}
	gradW, err := tensor.Zeros([]int{features, classes}, tensor.Float32)
	if err != nil {
		return nil, err
	}
	gradB, err := tensor.Zeros([]int{classes}, tensor.Float32)
	if err != nil {
		return nil, err
	}

	return &Linear{
		weight:   weight,
		bias:     bias,
		gradW:    gradW,
		gradB:    gradB,
		features: features,
		classes:  classes,
		training: true,
	}, nil
}

func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) < 2 {
		return nil, fmt.Errorf("expected batched input, got shape %v", input.Shape)
	}
	batchSize := input.Shape[0]
	features := input.NumElems / batchSize
	if features != l.features {
		return nil, fmt.Errorf("input has %d features per sample, layer expects %d", features, l.features)
	}

	x, err := input.Float32Slice()
	if err != nil {
		return nil, err
	}
	w, err := l.weight.Float32Slice()
	if err != nil {
		return nil, err
	}
	b, err := l.bias.Float32Slice()
	if err != nil {
		return nil, err
	}

	out := make([]float32, batchSize*l.classes)
	for i := 0; i < batchSize; i++ {
		row := x[i*features : (i+1)*features]
		for c := 0; c < l.classes; c++ {
			sum := b[c]
			for d, v := range row {
				sum += v * w[d*l.classes+c]
			}
			out[i*l.classes+c] = sum
		}
	}

	l.input = input
	return tensor.NewTensor([]int{batchSize, l.classes}, tensor.Float32, out)
}

func (l *Linear) Backward(gradOutput *tensor.Tensor) error {
	if l.input == nil {
		return fmt.Errorf("backward called before forward")
	}
	if len(gradOutput.Shape) != 2 || gradOutput.Shape[1] != l.classes {
		return fmt.Errorf("expected [batch, %d] gradient, got shape %v", l.classes, gradOutput.Shape)
	}

	batchSize := gradOutput.Shape[0]
	x, err := l.input.Float32Slice()
	if err != nil {
		return err
	}
	gradOut, err := gradOutput.Float32Slice()
	if err != nil {
		return err
	}
	gw, err := l.gradW.Float32Slice()
	if err != nil {
		return err
	}
	gb, err := l.gradB.Float32Slice()
	if err != nil {
		return err
	}

	for i := range gw {
		gw[i] = 0
	}
	for i := range gb {
		gb[i] = 0
	}

	for i := 0; i < batchSize; i++ {
		row := x[i*l.features : (i+1)*l.features]
		gradRow := gradOut[i*l.classes : (i+1)*l.classes]
		for c, g := range gradRow {
			gb[c] += g
			for d, v := range row {
				gw[d*l.classes+c] += v * g
			}
		}
	}
	return nil
}

func (l *Linear) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{l.weight, l.bias}
}

func (l *Linear) Gradients() []*tensor.Tensor {
	return []*tensor.Tensor{l.gradW, l.gradB}
}

func (l *Linear) Train() { l.training = true }

func (l *Linear) Eval() { l.training = false }

func (l *Linear) IsTraining() bool { return l.training }
