package stats

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/zeu5/driving-rl/util"
)

const (
	PhaseFill  = "fill"
	PhaseTrain = "train"
)

// EpochStats is one line of the statistics log
type EpochStats struct {
	RunID         string    `json:"run_id"`
	Epoch         int       `json:"epoch"`
	Phase         string    `json:"phase"`
	Frames        int       `json:"frames"`
	NumRandom     int       `json:"num_random"`
	PercentRandom float64   `json:"percent_random"`
	TotalReward   float64   `json:"total_reward"`
	Epsilon       float64   `json:"epsilon"`
	ReplayFill    float64   `json:"replay_fill"`
	Cumulative    int       `json:"cumulative"`
	Checkpoint    int       `json:"checkpoint,omitempty"`
	Degenerate    bool      `json:"degenerate,omitempty"`
	Time          time.Time `json:"time"`
}

// Recorder appends epoch statistics to a JSON lines file
type Recorder struct {
	path string
	lock *sync.Mutex
}

func NewRecorder(path string) *Recorder {
	return &Recorder{
		path: path,
		lock: new(sync.Mutex),
	}
}

func (r *Recorder) Path() string {
	return r.path
}

func (r *Recorder) Record(s EpochStats) error {
	if s.Time.IsZero() {
		s.Time = time.Now()
	}
	bs, err := json.Marshal(s)
	if err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return util.AppendToFile(r.path, string(bs))
}

// ReadAll loads every record in the file. A missing file has no records.
func ReadAll(path string) ([]EpochStats, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []EpochStats{}, nil
		}
		return nil, err
	}
	defer f.Close()

	out := make([]EpochStats, 0)
	dec := json.NewDecoder(f)
	for {
		var s EpochStats
		if err := dec.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		out = append(out, s)
	}
}

// Summary aggregates the training epochs of a log
type Summary struct {
	Epochs          int     `json:"epochs"`
	FillEpochs      int     `json:"fill_epochs"`
	Frames          int     `json:"frames"`
	MeanReward      float64 `json:"mean_reward"`
	Epsilon         float64 `json:"epsilon"`
	Checkpoints     int     `json:"checkpoints"`
	LastCheckpoint  int     `json:"last_checkpoint"`
	DegenerateDraws int     `json:"degenerate_draws"`
}

func Summarize(all []EpochStats) Summary {
	s := Summary{}
	totalReward := 0.0
	for _, e := range all {
		if e.Phase == PhaseFill {
			s.FillEpochs++
			continue
		}
		s.Epochs++
		s.Frames += e.Frames
		totalReward += e.TotalReward
		s.Epsilon = e.Epsilon
		if e.Checkpoint > 0 {
			s.Checkpoints++
			s.LastCheckpoint = e.Checkpoint
		}
		if e.Degenerate {
			s.DegenerateDraws++
		}
	}
	if s.Epochs > 0 {
		s.MeanReward = totalReward / float64(s.Epochs)
	}
	return s
}
