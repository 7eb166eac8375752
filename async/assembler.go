package async

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/cnsky2016/BigDL/dataset"
	"github.com/cnsky2016/BigDL/tensor"
	"github.com/cnsky2016/BigDL/transform"
)

// ErrStopped is returned by Next once the batch stream has ended: the source
// was exhausted (bounded pass) or the assembler was stopped.
var ErrStopped = errors.New("async: batch stream ended")

// Batch is a fixed-size group of preprocessed samples assembled into a single
// tensor plus a parallel label vector. Sample membership within a batch is an
// unordered multiset; slot order carries no meaning.
type Batch struct {
	Data   *tensor.Tensor // [size, C, H, W]
	Labels []int32        // len == size
	Size   int

	// Epoch is the source pass count observed when the batch was assembled,
	// for epoch bookkeeping in the control loop.
	Epoch int

	// Final marks the short trailing batch of a bounded pass. Every other
	// batch is fully populated.
	Final bool
}

// ErrorPolicy decides what the assembler does with a sample the pipeline
// cannot process.
type ErrorPolicy int

const (
	// AbortOnError halts the whole pipeline on the first malformed sample.
	// This is the default: silent data loss is worse than stopping.
	AbortOnError ErrorPolicy = iota
	// SkipAndLog logs the offending sample, records the error, and continues.
	SkipAndLog
)

// AssemblerConfig holds configuration for the batch assembler.
type AssemblerConfig struct {
	BatchSize int
	Workers   int // preprocessing parallelism (default: 2)
	Buffer    int // bounded output queue, in batches (default: 3)
	Policy    ErrorPolicy
	Logger    *log.Logger // used by SkipAndLog; default: log.Default()
}

type item struct {
	image *tensor.Tensor
	label int32
	pass  int
}

// Assembler converts a possibly-infinite stream of raw samples into a stream
// of fixed-size batches. A pool of workers claims samples from the shared
// source, runs a private clone of the transformer pipeline, and delivers
// results to the batch under assembly. Completed batches land on a bounded
// queue: workers suspend when it is full, the consumer suspends when empty.
type Assembler struct {
	source   dataset.Source
	pipeline transform.Transformer
	cfg      AssemblerConfig

	items   chan item
	batches chan *Batch
	cancel  context.CancelFunc
	done    chan struct{}

	mu        sync.Mutex
	fatalErr  error
	skipped   *multierror.Error
	started   bool
	produced  uint64
	collected uint64
}

// NewAssembler creates a batch assembler over source and pipeline.
func NewAssembler(source dataset.Source, pipeline transform.Transformer, cfg AssemblerConfig) (*Assembler, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &Assembler{
		source:   source,
		pipeline: pipeline,
		cfg:      cfg,
		items:    make(chan item, cfg.BatchSize),
		batches:  make(chan *Batch, cfg.Buffer),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the worker pool and the batch collector.
func (a *Assembler) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return fmt.Errorf("assembler already started")
	}
	a.started = true

	ctx, a.cancel = context.WithCancel(ctx)

	group, gctx := errgroup.WithContext(ctx)
	for w := 0; w < a.cfg.Workers; w++ {
		worker := a.pipeline.Clone()
		group.Go(func() error {
			return a.run(gctx, worker)
		})
	}

	go func() {
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			a.mu.Lock()
			a.fatalErr = err
			a.mu.Unlock()
		}
		close(a.items)
	}()

	go a.collect(ctx)
	return nil
}

// run is the worker loop: claim, transform, deliver.
func (a *Assembler) run(ctx context.Context, worker transform.Transformer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sample, err := a.source.Next()
		if errors.Is(err, dataset.ErrExhausted) {
			return nil
		}
		if err != nil {
			return err
		}

		rec := &transform.Record{Sample: sample}
		if err := worker.Apply(rec); err != nil {
			if a.cfg.Policy == SkipAndLog {
				a.cfg.Logger.Printf("skipping sample %s: %v", sample, err)
				a.mu.Lock()
				a.skipped = multierror.Append(a.skipped, err)
				a.mu.Unlock()
				continue
			}
			return err
		}

		select {
		case a.items <- item{image: rec.Image, label: sample.Label, pass: a.source.Passes()}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// collect fills batch slots in completion order and hands finished batches to
// the bounded output queue.
func (a *Assembler) collect(ctx context.Context) {
	defer close(a.batches)
	defer close(a.done)

	var data *tensor.Tensor
	var labels []int32
	var filled, epoch int

	flush := func(final bool) bool {
		if filled == 0 {
			return true
		}
		batch := &Batch{Data: data, Labels: labels[:filled], Size: filled, Epoch: epoch, Final: final}
		if final {
			// A short trailing batch keeps its populated prefix only.
			short, err := a.shrink(data, filled)
			if err != nil {
				a.mu.Lock()
				if a.fatalErr == nil {
					a.fatalErr = err
				}
				a.mu.Unlock()
				return false
			}
			batch.Data = short
		}
		data, labels, filled = nil, nil, 0

		select {
		case a.batches <- batch:
			atomic.AddUint64(&a.produced, 1)
			return true
		case <-ctx.Done():
			return false
		}
	}

	for it := range a.items {
		if data == nil {
			shape := append([]int{a.cfg.BatchSize}, it.image.Shape...)
			var err error
			data, err = tensor.Zeros(shape, tensor.Float32)
			if err != nil {
				a.fail(err)
				return
			}
			labels = make([]int32, a.cfg.BatchSize)
		}

		if err := data.CopyInto(it.image, filled); err != nil {
			a.fail(err)
			return
		}
		labels[filled] = it.label
		epoch = it.pass
		filled++
		atomic.AddUint64(&a.collected, 1)

		if filled == a.cfg.BatchSize {
			if !flush(false) {
				return
			}
		}
	}

	// Source drained: emit the explicitly flagged short remainder, if any.
	// An aborted pipeline emits nothing further.
	if a.FatalErr() == nil {
		flush(true)
	}
}

func (a *Assembler) fail(err error) {
	a.mu.Lock()
	if a.fatalErr == nil {
		a.fatalErr = err
	}
	a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *Assembler) shrink(data *tensor.Tensor, size int) (*tensor.Tensor, error) {
	full, err := data.Float32Slice()
	if err != nil {
		return nil, err
	}
	shape := append([]int{size}, data.Shape[1:]...)
	sampleSize := data.NumElems / data.Shape[0]
	out := make([]float32, size*sampleSize)
	copy(out, full[:size*sampleSize])
	return tensor.NewTensor(shape, tensor.Float32, out)
}

// Next returns the next completed batch, suspending until one is ready. Once
// the stream ends it returns the pipeline's fatal error, if any, and
// ErrStopped thereafter.
func (a *Assembler) Next(ctx context.Context) (*Batch, error) {
	select {
	case batch, ok := <-a.batches:
		if !ok {
			if err := a.FatalErr(); err != nil {
				return nil, err
			}
			return nil, ErrStopped
		}
		return batch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop cancels sample claiming, drains in-flight work, and waits for the
// collector to finish.
func (a *Assembler) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	started := a.started
	a.mu.Unlock()

	if !started {
		return
	}
	if cancel != nil {
		cancel()
	}
	for range a.batches {
	}
	<-a.done
}

// FatalErr returns the error that aborted the pipeline, if any.
func (a *Assembler) FatalErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fatalErr
}

// Skipped returns the accumulated per-sample errors ignored under SkipAndLog.
func (a *Assembler) Skipped() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.skipped.ErrorOrNil()
}

// Stats is a point-in-time snapshot of assembler progress.
type Stats struct {
	BatchesProduced  uint64
	SamplesCollected uint64
	QueuedBatches    int
	QueueCapacity    int
	Workers          int
}

// Stats returns a snapshot of assembler progress.
func (a *Assembler) Stats() Stats {
	return Stats{
		BatchesProduced:  atomic.LoadUint64(&a.produced),
		SamplesCollected: atomic.LoadUint64(&a.collected),
		QueuedBatches:    len(a.batches),
		QueueCapacity:    cap(a.batches),
		Workers:          a.cfg.Workers,
	}
}
