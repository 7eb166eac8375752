package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// ErrExhausted is returned by Next on a bounded source once the current pass
// has enumerated every sample. Reset rewinds the source and clears it.
var ErrExhausted = errors.New("dataset: source exhausted")

// ErrEmptyCorpus is returned at construction time when the backing enumeration
// contains no samples. Sources never fail with it at iteration time.
var ErrEmptyCorpus = errors.New("dataset: corpus contains no samples")

// Source produces labeled samples from a backing corpus.
//
// A looped source cycles indefinitely and never returns ErrExhausted; every
// underlying sample is revisited exactly once per pass, though ordering may be
// reshuffled across pass boundaries. A bounded source enumerates each sample
// once and then returns ErrExhausted until Reset is called.
//
// Next is safe for concurrent use; it is the single point of shared mutable
// state among preprocessing workers.
type Source interface {
	Next() (Sample, error)
	Reset()
	Len() int
	Looped() bool

	// Passes reports how many complete passes over the corpus have finished.
	Passes() int
}

// SliceSource serves samples from an in-memory list. It backs both in-memory
// corpora and path-enumerating corpora such as ImageFolder.
type SliceSource struct {
	mu      sync.Mutex
	samples []Sample
	order   []int
	pos     int
	looped  bool
	shuffle bool
	passes  int
	done    bool
	rng     *rand.Rand
}

// NewSliceSource creates a source over samples. Looped sources restart at
// exhaustion; shuffled sources draw a fresh permutation for every pass.
func NewSliceSource(samples []Sample, looped, shuffle bool) (*SliceSource, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot create source: %w", ErrEmptyCorpus)
	}

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}

	s := &SliceSource{
		samples: samples,
		order:   order,
		looped:  looped,
		shuffle: shuffle,
		rng:     rand.New(rand.NewSource(1)),
	}

	if shuffle {
		s.reshuffle()
	}
	return s, nil
}

// Seed reseeds the permutation source, for reproducible runs.
func (s *SliceSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

func (s *SliceSource) reshuffle() {
	for i := len(s.order) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		s.order[i], s.order[j] = s.order[j], s.order[i]
	}
}

// Next returns the next sample in the current pass. For bounded sources it
// returns ErrExhausted past the end of the pass.
func (s *SliceSource) Next() (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.order) {
		if !s.done {
			s.done = true
			s.passes++
		}

		if !s.looped {
			return Sample{}, ErrExhausted
		}

		// Loop boundary: restart with a fresh permutation. Identity and
		// coverage are preserved; ordering is not.
		s.pos = 0
		s.done = false
		if s.shuffle {
			s.reshuffle()
		}
	}

	sample := s.samples[s.order[s.pos]]
	s.pos++
	return sample, nil
}

// Reset rewinds the source to the start of a fresh pass.
func (s *SliceSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pos = 0
	s.done = false
	if s.shuffle {
		s.reshuffle()
	}
}

// Len returns the number of underlying samples.
func (s *SliceSource) Len() int {
	return len(s.samples)
}

// Looped reports whether the source cycles indefinitely.
func (s *SliceSource) Looped() bool {
	return s.looped
}

// Passes returns the number of completed passes over the corpus.
func (s *SliceSource) Passes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes
}
