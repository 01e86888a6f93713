package policies

import (
	"math"

	"golang.org/x/exp/rand"
)

// EpsilonGreedy holds the exploration probability of the agent.
// Epsilon starts at 1 and moves down by a fixed step after every regular epoch until it hits the floor.
type EpsilonGreedy struct {
	epsilon   float64
	reduction float64
	floor     float64
	rand      *rand.Rand
}

func NewEpsilonGreedy(reduction, minEpsilon float64, rng *rand.Rand) *EpsilonGreedy {
	return &EpsilonGreedy{
		epsilon:   1.0,
		reduction: reduction,
		floor:     minEpsilon,
		rand:      rng,
	}
}

// Explore decides whether the next action is random. Forced mode always explores.
func (e *EpsilonGreedy) Explore(forced bool) bool {
	sample := e.rand.Float64()
	return forced || sample < e.epsilon
}

// Decay lowers epsilon by one step, never below the floor
func (e *EpsilonGreedy) Decay() float64 {
	e.epsilon = math.Max(e.epsilon-e.reduction, e.floor)
	return e.epsilon
}

func (e *EpsilonGreedy) Epsilon() float64 {
	return e.epsilon
}

func (e *EpsilonGreedy) Floor() float64 {
	return e.floor
}

// Override replaces epsilon with a value received from the trainer
func (e *EpsilonGreedy) Override(v float64) {
	e.epsilon = math.Min(1, math.Max(v, e.floor))
}
