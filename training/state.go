package training

import (
	"github.com/gofrs/uuid"
)

// State is the mutable training-progress record owned exclusively by the
// control loop. Workers never touch it; it is read by triggers and schedules
// and mutated only between optimization steps.
type State struct {
	Iteration    int
	Epoch        int
	LearningRate float64

	// Best primary-validation-metric bookkeeping.
	BestScore     float64
	BestIteration int

	// RunID identifies this training run in logs and checkpoints.
	RunID string
}

// NewState creates the initial state for a fresh run.
func NewState() *State {
	return &State{
		RunID: uuid.Must(uuid.NewV4()).String(),
	}
}
