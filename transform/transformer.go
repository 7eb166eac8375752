package transform

import (
	"fmt"
	"sync/atomic"

	"github.com/cnsky2016/BigDL/dataset"
	"github.com/cnsky2016/BigDL/tensor"
)

// Kind describes the payload a stage consumes or produces, so that pipeline
// composition can be validated once, at build time, rather than per call.
type Kind int

const (
	// KindRaw marks a record whose image content has not been decoded yet.
	KindRaw Kind = iota
	// KindImage marks a record carrying a decoded CHW image tensor.
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "Raw"
	case KindImage:
		return "Image"
	default:
		return "Unknown"
	}
}

// Record is the unit flowing through a pipeline: the originating sample plus
// whatever image tensor the stages so far have produced.
type Record struct {
	Sample dataset.Sample
	Image  *tensor.Tensor
}

// Transformer is a pure sample-mapping stage. Apply mutates the record in
// place and must not retain shared mutable state across invocations; per-worker
// scratch buffers and random sources are obtained through Clone.
type Transformer interface {
	Name() string
	Input() Kind
	Output() Kind
	Apply(rec *Record) error
	Clone() Transformer
}

// TransformError reports a stage failure together with the identity of the
// offending sample, so the batch assembler can decide whether to skip or abort.
type TransformError struct {
	Sample dataset.Sample
	Stage  string
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform stage %s failed on %s: %v", e.Stage, e.Sample, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// Pipeline is an ordered chain of stages. It is itself a Transformer, so
// pipelines compose associatively via Then.
type Pipeline struct {
	stages []Transformer
}

// NewPipeline builds a pipeline, validating stage adjacency: each stage's
// output kind must match the next stage's input kind.
func NewPipeline(stages ...Transformer) (*Pipeline, error) {
	for i := 1; i < len(stages); i++ {
		if stages[i-1].Output() != stages[i].Input() {
			return nil, fmt.Errorf("incompatible stages: %s emits %s but %s expects %s",
				stages[i-1].Name(), stages[i-1].Output(), stages[i].Name(), stages[i].Input())
		}
	}
	return &Pipeline{stages: append([]Transformer{}, stages...)}, nil
}

// Then appends a stage (or another pipeline) and returns the extended
// pipeline. The receiver is left unchanged.
func (p *Pipeline) Then(next Transformer) (*Pipeline, error) {
	if nested, ok := next.(*Pipeline); ok {
		return NewPipeline(append(append([]Transformer{}, p.stages...), nested.stages...)...)
	}
	return NewPipeline(append(append([]Transformer{}, p.stages...), next)...)
}

// Name identifies the pipeline by its stages.
func (p *Pipeline) Name() string {
	name := "Pipeline("
	for i, stage := range p.stages {
		if i > 0 {
			name += " -> "
		}
		name += stage.Name()
	}
	return name + ")"
}

// Input returns the kind consumed by the first stage.
func (p *Pipeline) Input() Kind {
	if len(p.stages) == 0 {
		return KindRaw
	}
	return p.stages[0].Input()
}

// Output returns the kind produced by the last stage.
func (p *Pipeline) Output() Kind {
	if len(p.stages) == 0 {
		return KindRaw
	}
	return p.stages[len(p.stages)-1].Output()
}

// Apply runs every stage in order. Stage failures are wrapped in a
// TransformError carrying the sample identity.
func (p *Pipeline) Apply(rec *Record) error {
	for _, stage := range p.stages {
		if err := stage.Apply(rec); err != nil {
			if _, ok := err.(*TransformError); ok {
				return err
			}
			return &TransformError{Sample: rec.Sample, Stage: stage.Name(), Err: err}
		}
	}
	return nil
}

// Clone returns a pipeline whose stages carry private scratch state and
// independent random sources, for use by a single worker.
func (p *Pipeline) Clone() Transformer {
	stages := make([]Transformer, len(p.stages))
	for i, stage := range p.stages {
		stages[i] = stage.Clone()
	}
	return &Pipeline{stages: stages}
}

// seedCounter hands out distinct seeds to stage clones so worker-local random
// sources are uncorrelated.
var seedCounter int64 = 1

// SetSeed rebases the seed sequence used by stage clones, for reproducible runs.
func SetSeed(seed int64) {
	atomic.StoreInt64(&seedCounter, seed)
}

func nextSeed() int64 {
	return atomic.AddInt64(&seedCounter, 1)
}
