package checkpoints

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4"

	"github.com/cnsky2016/BigDL/optimizer"
)

// Checkpoint is a durable snapshot of model parameters and training progress,
// written by the control loop's cache trigger and read back by resume tooling.
type Checkpoint struct {
	Weights        []WeightTensor   `json:"weights"`
	TrainingState  TrainingState    `json:"training_state"`
	OptimizerState *optimizer.State `json:"optimizer_state,omitempty"`
	Metadata       Metadata         `json:"metadata"`
}

// WeightTensor is one model parameter tensor with its data.
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// TrainingState captures training progress at snapshot time.
type TrainingState struct {
	Iteration    int     `json:"iteration"`
	Epoch        int     `json:"epoch"`
	LearningRate float64 `json:"learning_rate"`
	BestScore    float64 `json:"best_score"`
	RunID        string  `json:"run_id"`
}

// Metadata describes the snapshot itself.
type Metadata struct {
	Version   string    `json:"version"`
	Framework string    `json:"framework"`
	CreatedAt time.Time `json:"created_at"`
}

// Saver persists checkpoints under a directory, one file per iteration. Files
// carry an xxhash content checksum and an lz4-compressed JSON body.
type Saver struct {
	dir string
}

// NewSaver creates the checkpoint directory if needed.
func NewSaver(dir string) (*Saver, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Saver{dir: dir}, nil
}

// Path returns the deterministic file name for an iteration. History is
// retained: each iteration gets its own file, enabling resume from any
// snapshot.
func (s *Saver) Path(iteration int) string {
	return filepath.Join(s.dir, fmt.Sprintf("snapshot-%d.ckpt", iteration))
}

// Save writes the checkpoint, named by its iteration, and returns the path.
func (s *Saver) Save(checkpoint *Checkpoint) (string, error) {
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "BigDL"
		checkpoint.Metadata.Version = "1.0.0"
		checkpoint.Metadata.CreatedAt = time.Now()
	}

	body, err := json.Marshal(checkpoint)
	if err != nil {
		return "", fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	path := s.Path(checkpoint.TrainingState.Iteration)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create checkpoint file: %w", err)
	}
	defer file.Close()

	var header [8]byte
	binary.BigEndian.PutUint64(header[:], xxhash.Sum64(body))
	if _, err := file.Write(header[:]); err != nil {
		return "", fmt.Errorf("failed to write checkpoint header: %w", err)
	}

	zw := lz4.NewWriter(file)
	if _, err := zw.Write(body); err != nil {
		return "", fmt.Errorf("failed to write checkpoint body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to flush checkpoint body: %w", err)
	}

	return path, nil
}

// Load reads a checkpoint file and verifies its content checksum.
func (s *Saver) Load(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var header [8]byte
	if _, err := io.ReadFull(file, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read checkpoint header: %w", err)
	}

	var body bytes.Buffer
	if _, err := io.Copy(&body, lz4.NewReader(file)); err != nil {
		return nil, fmt.Errorf("failed to decompress checkpoint: %w", err)
	}

	if sum := xxhash.Sum64(body.Bytes()); sum != binary.BigEndian.Uint64(header[:]) {
		return nil, fmt.Errorf("checkpoint %s is corrupt: checksum mismatch", path)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(body.Bytes(), &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &checkpoint, nil
}

// LoadIteration reads the snapshot written at the given iteration.
func (s *Saver) LoadIteration(iteration int) (*Checkpoint, error) {
	return s.Load(s.Path(iteration))
}

// List returns the paths of all snapshots in the directory, sorted by name.
func (s *Saver) List() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "snapshot-*.ckpt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
