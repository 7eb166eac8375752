package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/hashicorp/go-multierror"

	"github.com/cnsky2016/BigDL/async"
	"github.com/cnsky2016/BigDL/checkpoints"
	"github.com/cnsky2016/BigDL/dataset"
	"github.com/cnsky2016/BigDL/optimizer"
	"github.com/cnsky2016/BigDL/transform"
)

// ErrDiverged is returned when the training loss stops being finite.
var ErrDiverged = errors.New("training: loss is not finite")

// Phase identifies which part of the control loop an error came from.
type Phase int

const (
	PhaseTrainStep Phase = iota
	PhaseValidation
	PhaseCheckpoint
)

func (p Phase) String() string {
	switch p {
	case PhaseTrainStep:
		return "training step"
	case PhaseValidation:
		return "validation"
	case PhaseCheckpoint:
		return "checkpoint"
	default:
		return "unknown"
	}
}

// PhaseError tags a loop-level failure with the phase it occurred in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// BatchProvider supplies batches to the control loop; *async.Assembler
// satisfies it.
type BatchProvider interface {
	Next(ctx context.Context) (*async.Batch, error)
	Stop()
}

// ValidationConfig describes how validation phases run: a fresh bounded pass
// over Source through Pipeline, scored by every registered method.
type ValidationConfig struct {
	Source    dataset.Source
	Pipeline  transform.Transformer
	BatchSize int
	Workers   int
	Methods   []ValidationMethod
}

// CheckpointConfig describes where checkpoint phases persist snapshots.
type CheckpointConfig struct {
	Saver *checkpoints.Saver
}

// LocalOptimizerConfig holds the control-loop triggers and hyperparameters.
type LocalOptimizerConfig struct {
	// EndWhen transitions the loop to its terminal state. Required.
	EndWhen Trigger
	// TestTrigger starts a validation phase. Optional.
	TestTrigger Trigger
	// CacheTrigger starts a checkpoint phase. Optional.
	CacheTrigger Trigger

	LearningRate float64  // base rate (default: 0.01)
	Schedule     Schedule // default: ConstantSchedule

	Logger *log.Logger // default: log.Default()
}

// ValidationRecord is one validation phase's scores, keyed by method name.
type ValidationRecord struct {
	Iteration int
	Epoch     int
	Scores    map[string]float64
}

// Result summarizes a completed run.
type Result struct {
	State             State
	UpdateCount       uint64
	ValidationHistory []ValidationRecord
	FinalScores       map[string]float64
	CheckpointPaths   []string
}

// LocalOptimizer drives the single-process training control loop: pull a
// batch, forward, backward, update, then consult the triggers to validate,
// checkpoint, or stop. Model parameters are mutated only on this loop's
// goroutine.
type LocalOptimizer struct {
	model     Module
	criterion Criterion
	method    optimizer.Method
	batches   BatchProvider
	cfg       LocalOptimizerConfig

	validation *ValidationConfig
	checkpoint *CheckpointConfig

	state *State
}

// NewLocalOptimizer wires a control loop over a model, criterion, update
// method and batch stream.
func NewLocalOptimizer(model Module, criterion Criterion, method optimizer.Method, batches BatchProvider, cfg LocalOptimizerConfig) (*LocalOptimizer, error) {
	if model == nil || criterion == nil || method == nil || batches == nil {
		return nil, fmt.Errorf("model, criterion, method and batch provider are all required")
	}
	if cfg.EndWhen == nil {
		return nil, fmt.Errorf("EndWhen trigger is required")
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.01
	}
	if cfg.LearningRate < 0 {
		return nil, fmt.Errorf("learning rate cannot be negative: %f", cfg.LearningRate)
	}
	if cfg.Schedule == nil {
		cfg.Schedule = &ConstantSchedule{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &LocalOptimizer{
		model:     model,
		criterion: criterion,
		method:    method,
		batches:   batches,
		cfg:       cfg,
		state:     NewState(),
	}, nil
}

// SetValidation registers a validation pass run whenever TestTrigger fires.
func (o *LocalOptimizer) SetValidation(cfg ValidationConfig) error {
	if cfg.Source == nil || cfg.Pipeline == nil {
		return fmt.Errorf("validation source and pipeline are required")
	}
	if cfg.Source.Looped() {
		return fmt.Errorf("validation source must be bounded")
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("validation batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if len(cfg.Methods) == 0 {
		return fmt.Errorf("at least one validation method is required")
	}
	o.validation = &cfg
	return nil
}

// SetCheckpoint registers a snapshot store written whenever CacheTrigger
// fires.
func (o *LocalOptimizer) SetCheckpoint(cfg CheckpointConfig) error {
	if cfg.Saver == nil {
		return fmt.Errorf("checkpoint saver is required")
	}
	o.checkpoint = &cfg
	return nil
}

// State returns the optimizer's training state.
func (o *LocalOptimizer) State() *State {
	return o.state
}

// Optimize runs the control loop until the terminal trigger fires. Loop-level
// failures (training step, validation, divergence) are fatal and tagged with
// their phase. Checkpoint write failures are recoverable: the loop continues,
// and they are reported aggregated alongside the result.
func (o *LocalOptimizer) Optimize(ctx context.Context) (*Result, error) {
	result := &Result{}
	var recoverable *multierror.Error

	o.model.Train()

	for {
		batch, err := o.batches.Next(ctx)
		if err != nil {
			if errors.Is(err, async.ErrStopped) {
				// Bounded training stream drained before EndWhen fired.
				break
			}
			return result, &PhaseError{Phase: PhaseTrainStep, Err: err}
		}

		output, err := o.model.Forward(batch.Data)
		if err != nil {
			return result, &PhaseError{Phase: PhaseTrainStep, Err: err}
		}

		loss, grad, err := o.criterion.Forward(output, batch.Labels)
		if err != nil {
			return result, &PhaseError{Phase: PhaseTrainStep, Err: err}
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return result, &PhaseError{
				Phase: PhaseTrainStep,
				Err:   fmt.Errorf("iteration %d: loss=%v: %w", o.state.Iteration, loss, ErrDiverged),
			}
		}

		if err := o.model.Backward(grad); err != nil {
			return result, &PhaseError{Phase: PhaseTrainStep, Err: err}
		}

		rate := o.cfg.Schedule.Rate(o.state.Iteration, o.cfg.LearningRate)
		o.state.LearningRate = rate
		if err := o.method.Step(o.model.Parameters(), o.model.Gradients(), rate); err != nil {
			return result, &PhaseError{Phase: PhaseTrainStep, Err: err}
		}
		result.UpdateCount++

		o.state.Iteration++
		if batch.Epoch > o.state.Epoch {
			o.state.Epoch = batch.Epoch
		}

		if o.cfg.EndWhen.IsTriggered(o.state) {
			// Terminal: stop claiming samples; in-flight work drains.
			o.batches.Stop()
			break
		}

		if o.validation != nil && o.cfg.TestTrigger != nil && o.cfg.TestTrigger.IsTriggered(o.state) {
			record, err := o.runValidation(ctx)
			if err != nil {
				return result, &PhaseError{Phase: PhaseValidation, Err: err}
			}
			result.ValidationHistory = append(result.ValidationHistory, record)
			result.FinalScores = record.Scores
		}

		if o.checkpoint != nil && o.cfg.CacheTrigger != nil && o.cfg.CacheTrigger.IsTriggered(o.state) {
			path, err := o.writeCheckpoint()
			if err != nil {
				// Recoverable: training continues without the snapshot, but
				// the failure is reported, not swallowed.
				o.cfg.Logger.Printf("checkpoint at iteration %d failed: %v", o.state.Iteration, err)
				recoverable = multierror.Append(recoverable, &PhaseError{Phase: PhaseCheckpoint, Err: err})
				continue
			}
			result.CheckpointPaths = append(result.CheckpointPaths, path)
		}
	}

	result.State = *o.state
	return result, recoverable.ErrorOrNil()
}

// runValidation performs one inference-mode pass over the entire validation
// source. It must not mutate model parameters or the learning-rate schedule.
func (o *LocalOptimizer) runValidation(ctx context.Context) (ValidationRecord, error) {
	record := ValidationRecord{
		Iteration: o.state.Iteration,
		Epoch:     o.state.Epoch,
		Scores:    make(map[string]float64),
	}

	o.model.Eval()
	defer o.model.Train()

	o.validation.Source.Reset()
	for _, method := range o.validation.Methods {
		method.Reset()
	}

	assembler, err := async.NewAssembler(o.validation.Source, o.validation.Pipeline, async.AssemblerConfig{
		BatchSize: o.validation.BatchSize,
		Workers:   o.validation.Workers,
		Logger:    o.cfg.Logger,
	})
	if err != nil {
		return record, err
	}
	if err := assembler.Start(ctx); err != nil {
		return record, err
	}
	defer assembler.Stop()

	for {
		batch, err := assembler.Next(ctx)
		if errors.Is(err, async.ErrStopped) {
			break
		}
		if err != nil {
			return record, err
		}

		output, err := o.model.Forward(batch.Data)
		if err != nil {
			return record, err
		}
		for _, method := range o.validation.Methods {
			if err := method.Update(output, batch.Labels); err != nil {
				return record, err
			}
		}
	}

	for _, method := range o.validation.Methods {
		record.Scores[method.Name()] = method.Result()
	}

	// The first registered method is the primary one for best-score
	// bookkeeping.
	primary := o.validation.Methods[0]
	if score := primary.Result(); score > o.state.BestScore || o.state.BestIteration == 0 {
		o.state.BestScore = score
		o.state.BestIteration = o.state.Iteration
	}

	o.cfg.Logger.Printf("validation at iteration %d: %v", o.state.Iteration, record.Scores)
	return record, nil
}

// writeCheckpoint serializes model parameters and training state under a name
// encoding the current iteration.
func (o *LocalOptimizer) writeCheckpoint() (string, error) {
	weights := make([]checkpoints.WeightTensor, 0, len(o.model.Parameters()))
	for i, p := range o.model.Parameters() {
		data, err := p.Float32Slice()
		if err != nil {
			return "", err
		}
		snapshot := make([]float32, len(data))
		copy(snapshot, data)
		weights = append(weights, checkpoints.WeightTensor{
			Name:  fmt.Sprintf("parameter_%d", i),
			Shape: append([]int{}, p.Shape...),
			Data:  snapshot,
		})
	}

	methodState, err := o.method.State()
	if err != nil {
		return "", err
	}

	return o.checkpoint.Saver.Save(&checkpoints.Checkpoint{
		Weights:        weights,
		OptimizerState: methodState,
		TrainingState: checkpoints.TrainingState{
			Iteration:    o.state.Iteration,
			Epoch:        o.state.Epoch,
			LearningRate: o.state.LearningRate,
			BestScore:    o.state.BestScore,
			RunID:        o.state.RunID,
		},
	})
}
