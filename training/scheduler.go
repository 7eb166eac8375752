package training

import (
	"math"
)

// Schedule maps an iteration number to the effective learning rate used by
// the update rule. Schedules are pure functions of iteration and base rate.
type Schedule interface {
	Rate(iteration int, baseRate float64) float64
	Name() string
}

// StepSchedule multiplies the base rate by Gamma every StepSize iterations
// (floor-division staircase).
type StepSchedule struct {
	StepSize int
	Gamma    float64
}

// NewStepSchedule creates a staircase decay schedule.
func NewStepSchedule(stepSize int, gamma float64) *StepSchedule {
	if stepSize <= 0 {
		stepSize = 30
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepSchedule{StepSize: stepSize, Gamma: gamma}
}

func (s *StepSchedule) Rate(iteration int, baseRate float64) float64 {
	times := iteration / s.StepSize
	return baseRate * math.Pow(s.Gamma, float64(times))
}

func (s *StepSchedule) Name() string { return "Step" }

// PolySchedule shrinks the rate toward zero as
// base * (1 - iteration/maxIteration)^Power, clamped at the final iteration.
type PolySchedule struct {
	Power        float64
	MaxIteration int
}

// NewPolySchedule creates a polynomial decay schedule.
func NewPolySchedule(power float64, maxIteration int) *PolySchedule {
	if power <= 0 {
		power = 1
	}
	if maxIteration <= 0 {
		maxIteration = 100
	}
	return &PolySchedule{Power: power, MaxIteration: maxIteration}
}

func (s *PolySchedule) Rate(iteration int, baseRate float64) float64 {
	if iteration >= s.MaxIteration {
		return 0
	}
	return baseRate * math.Pow(1-float64(iteration)/float64(s.MaxIteration), s.Power)
}

func (s *PolySchedule) Name() string { return "Polynomial" }

// ExponentialSchedule decays the rate by Gamma per iteration.
type ExponentialSchedule struct {
	Gamma float64
}

// NewExponentialSchedule creates an exponential decay schedule.
func NewExponentialSchedule(gamma float64) *ExponentialSchedule {
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.95
	}
	return &ExponentialSchedule{Gamma: gamma}
}

func (s *ExponentialSchedule) Rate(iteration int, baseRate float64) float64 {
	return baseRate * math.Pow(s.Gamma, float64(iteration))
}

func (s *ExponentialSchedule) Name() string { return "Exponential" }

// ConstantSchedule keeps the base rate unchanged (default behavior).
type ConstantSchedule struct{}

func (s *ConstantSchedule) Rate(iteration int, baseRate float64) float64 {
	return baseRate
}

func (s *ConstantSchedule) Name() string { return "Constant" }
