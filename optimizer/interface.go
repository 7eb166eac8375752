package optimizer

import (
	"fmt"

	"github.com/cnsky2016/BigDL/tensor"
)

// Method is the update-rule collaborator of the training loop: given the
// model's parameter and gradient tensors and the effective learning rate for
// the current iteration, it mutates the parameters in place.
type Method interface {
	// Step applies one update. gradients must parallel parameters.
	Step(parameters, gradients []*tensor.Tensor, learningRate float64) error

	// Name returns the method name for logging and checkpoints.
	Name() string

	// State extracts method state (momentum buffers and hyperparameters)
	// for checkpointing.
	State() (*State, error)

	// LoadState restores method state from a checkpoint.
	LoadState(state *State) error

	// StepCount returns the number of updates applied so far.
	StepCount() uint64
}

// State is the serializable snapshot of an update method.
type State struct {
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters"`
	Buffers    []StateTensor          `json:"buffers,omitempty"`
	StepCount  uint64                 `json:"step_count"`
}

// StateTensor holds one state buffer (momentum, variance, ...) by name.
type StateTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

func validateStateType(methodType string, state *State) error {
	if state.Type != methodType {
		return fmt.Errorf("state type mismatch: expected %s, got %s", methodType, state.Type)
	}
	return nil
}
