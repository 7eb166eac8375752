package optimizer

import (
	"fmt"

	"github.com/cnsky2016/BigDL/tensor"
)

// SGDConfig holds hyperparameters for stochastic gradient descent.
type SGDConfig struct {
	Momentum    float64
	Dampening   float64
	WeightDecay float64
	Nesterov    bool
}

// DefaultSGDConfig returns vanilla SGD with no regularization.
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{}
}

// SGD implements gradient descent with optional momentum, dampening, L2
// weight decay and Nesterov acceleration. Momentum buffers are allocated
// lazily on the first step, matching the parameter shapes.
type SGD struct {
	config    SGDConfig
	momentum  [][]float32
	stepCount uint64
}

// NewSGD creates an SGD update method.
func NewSGD(config SGDConfig) (*SGD, error) {
	if config.Momentum < 0 || config.Momentum > 1 {
		return nil, fmt.Errorf("momentum must be in [0, 1], got %f", config.Momentum)
	}
	if config.Dampening < 0 || config.Dampening > 1 {
		return nil, fmt.Errorf("dampening must be in [0, 1], got %f", config.Dampening)
	}
	if config.WeightDecay < 0 {
		return nil, fmt.Errorf("weight decay cannot be negative: %f", config.WeightDecay)
	}
	if config.Nesterov && (config.Momentum == 0 || config.Dampening != 0) {
		return nil, fmt.Errorf("nesterov requires momentum > 0 and zero dampening")
	}
	return &SGD{config: config}, nil
}

func (s *SGD) Name() string { return "SGD" }

// Step mutates parameters in place: p -= lr * (grad + weightDecay*p), routed
// through the momentum buffer when momentum is enabled.
func (s *SGD) Step(parameters, gradients []*tensor.Tensor, learningRate float64) error {
	if len(parameters) != len(gradients) {
		return fmt.Errorf("parameter/gradient count mismatch: %d vs %d", len(parameters), len(gradients))
	}

	if s.config.Momentum > 0 && s.momentum == nil {
		s.momentum = make([][]float32, len(parameters))
		for i, p := range parameters {
			s.momentum[i] = make([]float32, p.NumElems)
		}
	}
	if s.momentum != nil && len(s.momentum) != len(parameters) {
		return fmt.Errorf("parameter count changed: momentum holds %d buffers, got %d parameters", len(s.momentum), len(parameters))
	}

	lr := float32(learningRate)
	mu := float32(s.config.Momentum)
	damp := float32(s.config.Dampening)
	decay := float32(s.config.WeightDecay)

	for i := range parameters {
		p, err := parameters[i].Float32Slice()
		if err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
		g, err := gradients[i].Float32Slice()
		if err != nil {
			return fmt.Errorf("gradient %d: %w", i, err)
		}
		if len(p) != len(g) {
			return fmt.Errorf("parameter %d: gradient size %d does not match parameter size %d", i, len(g), len(p))
		}

		for j := range p {
			d := g[j] + decay*p[j]
			if mu > 0 {
				buf := s.momentum[i]
				buf[j] = mu*buf[j] + (1-damp)*d
				if s.config.Nesterov {
					d += mu * buf[j]
				} else {
					d = buf[j]
				}
			}
			p[j] -= lr * d
		}
	}

	s.stepCount++
	return nil
}

// StepCount returns the number of updates applied.
func (s *SGD) StepCount() uint64 {
	return s.stepCount
}

// State extracts hyperparameters and momentum buffers for checkpointing.
func (s *SGD) State() (*State, error) {
	state := &State{
		Type: s.Name(),
		Parameters: map[string]interface{}{
			"momentum":     s.config.Momentum,
			"dampening":    s.config.Dampening,
			"weight_decay": s.config.WeightDecay,
			"nesterov":     s.config.Nesterov,
		},
		StepCount: s.stepCount,
	}

	for i, buf := range s.momentum {
		data := make([]float32, len(buf))
		copy(data, buf)
		state.Buffers = append(state.Buffers, StateTensor{
			Name:  fmt.Sprintf("momentum_%d", i),
			Shape: []int{len(buf)},
			Data:  data,
		})
	}
	return state, nil
}

// LoadState restores momentum buffers and the step counter.
func (s *SGD) LoadState(state *State) error {
	if err := validateStateType(s.Name(), state); err != nil {
		return err
	}

	s.stepCount = state.StepCount
	if len(state.Buffers) == 0 {
		s.momentum = nil
		return nil
	}

	s.momentum = make([][]float32, len(state.Buffers))
	for i, buf := range state.Buffers {
		data := make([]float32, len(buf.Data))
		copy(data, buf.Data)
		s.momentum[i] = data
	}
	return nil
}
