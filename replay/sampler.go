package replay

import (
	"fmt"

	"github.com/zeu5/driving-rl/types"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Mode selects how minibatch indices are drawn
type Mode string

const (
	ModeUniform  Mode = "uniform"
	ModeWeighted Mode = "weighted"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeUniform, ModeWeighted:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown sampling mode %q", s)
	}
}

// Minibatch is one set of distinct transitions drawn from the pool
type Minibatch struct {
	Indices     []int
	Transitions []types.Transition
}

type SampleResult struct {
	Batches []Minibatch
	// Degenerate is set when weighted sampling had no surprise to weigh by and fell back to uniform
	Degenerate bool
}

// Transitions flattens all minibatches in draw order
func (r SampleResult) Transitions() []types.Transition {
	out := make([]types.Transition, 0)
	for _, b := range r.Batches {
		out = append(out, b.Transitions...)
	}
	return out
}

// Sampler draws minibatches from a replay pool, either uniformly or weighted by surprise
type Sampler struct {
	BatchSize int
	src       rand.Source
}

func NewSampler(batchSize int, src rand.Source) *Sampler {
	return &Sampler{
		BatchSize: batchSize,
		src:       src,
	}
}

// Sample produces count minibatches. Indices are distinct within a minibatch,
// minibatches are drawn independently of each other.
func (s *Sampler) Sample(pool []types.Transition, count int, mode Mode) SampleResult {
	result := SampleResult{Batches: make([]Minibatch, 0, count)}
	if len(pool) == 0 || count <= 0 || s.BatchSize <= 0 {
		return result
	}
	size := s.BatchSize
	if size > len(pool) {
		size = len(pool)
	}

	var weights []float64
	if mode == ModeWeighted {
		weights = SurpriseWeights(pool)
		if weights == nil {
			result.Degenerate = true
		}
	}

	for i := 0; i < count; i++ {
		var idxs []int
		if weights != nil {
			idxs = s.weighted(weights, size)
		} else {
			idxs = s.uniform(len(pool), size)
		}
		batch := Minibatch{
			Indices:     idxs,
			Transitions: make([]types.Transition, len(idxs)),
		}
		for j, idx := range idxs {
			batch.Transitions[j] = pool[idx]
		}
		result.Batches = append(result.Batches, batch)
	}
	return result
}

// SurpriseWeights returns |reward - predicted| normalized to sum to 1,
// or nil when every prediction was exact
func SurpriseWeights(pool []types.Transition) []float64 {
	weights := make([]float64, len(pool))
	for i, t := range pool {
		weights[i] = t.Surprise()
	}
	sum := floats.Sum(weights)
	if sum <= 0 {
		return nil
	}
	floats.Scale(1/sum, weights)
	return weights
}

func (s *Sampler) uniform(n, size int) []int {
	idxs := make([]int, size)
	sampleuv.WithoutReplacement(idxs, n, s.src)
	return idxs
}

func (s *Sampler) weighted(weights []float64, size int) []int {
	w := sampleuv.NewWeighted(weights, s.src)
	idxs := make([]int, 0, size)
	picked := make(map[int]bool, size)
	for len(idxs) < size {
		i, ok := w.Take()
		if !ok {
			break
		}
		idxs = append(idxs, i)
		picked[i] = true
	}
	if len(idxs) == size {
		return idxs
	}

	// fewer transitions carry surprise than the batch needs, fill up uniformly
	rest := make([]int, 0, len(weights)-len(idxs))
	for i := range weights {
		if !picked[i] {
			rest = append(rest, i)
		}
	}
	fill := s.uniform(len(rest), size-len(idxs))
	for _, j := range fill {
		idxs = append(idxs, rest[j])
	}
	return idxs
}
