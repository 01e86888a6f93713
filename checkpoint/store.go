package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

var ErrNoCheckpoint = errors.New("no checkpoint found")

// Checkpoint is a model snapshot tagged with the cumulative batch count it was taken at
type Checkpoint struct {
	Model      json.RawMessage `json:"model"`
	BatchCount int             `json:"batch_count"`
	Epsilon    *float64        `json:"epsilon,omitempty"`
}

// Dir is the directory holding the checkpoints of one experiment
func Dir(root, experiment string) string {
	return filepath.Join(root, experiment)
}

// Path of the checkpoint file for a batch count
func Path(root, experiment string, batchCount int) string {
	return filepath.Join(Dir(root, experiment), strconv.Itoa(batchCount)+".json")
}

// Write stores the checkpoint and returns the file path and size.
// Existing files are never replaced.
func Write(root, experiment string, c *Checkpoint) (string, int, error) {
	dir := Dir(root, experiment)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("creating checkpoint directory: %w", err)
	}
	bs, err := json.Marshal(c)
	if err != nil {
		return "", 0, fmt.Errorf("encoding checkpoint: %w", err)
	}

	file := Path(root, experiment, c.BatchCount)
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("creating checkpoint file: %w", err)
	}
	if _, err := f.Write(bs); err != nil {
		f.Close()
		return "", 0, fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("writing checkpoint: %w", err)
	}
	return file, len(bs), nil
}

// List returns the batch counts of all checkpoints of the experiment in increasing order
func List(root, experiment string) ([]int, error) {
	entries, err := os.ReadDir(Dir(root, experiment))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []int{}, nil
		}
		return nil, err
	}
	counts := make([]int, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		counts = append(counts, count)
	}
	slices.Sort(counts)
	return counts, nil
}

// ReadLatest loads the checkpoint with the highest batch count
func ReadLatest(root, experiment string) (*Checkpoint, error) {
	counts, err := List(root, experiment)
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return nil, ErrNoCheckpoint
	}
	return Read(Path(root, experiment, counts[len(counts)-1]))
}

func Read(file string) (*Checkpoint, error) {
	bs, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	c := &Checkpoint{}
	if err := json.Unmarshal(bs, c); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return c, nil
}
