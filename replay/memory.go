package replay

import (
	"errors"
	"sync"

	"github.com/zeu5/driving-rl/types"
)

var ErrInvalidCapacity = errors.New("replay memory capacity must be greater than zero")

// Memory is the bounded replay memory. Transitions are kept in generation order
// and the oldest ones are evicted once an append takes the memory over capacity.
type Memory struct {
	mu          sync.Mutex
	transitions []types.Transition
	capacity    int
}

func NewMemory(capacity int) (*Memory, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Memory{
		transitions: make([]types.Transition, 0, capacity),
		capacity:    capacity,
	}, nil
}

// Append adds every transition of the record, then drops from the front down to capacity
func (m *Memory) Append(record *types.EpochRecord) int {
	if record == nil || record.Len() == 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transitions = append(m.transitions, record.Transitions...)
	evicted := 0
	if over := len(m.transitions) - m.capacity; over > 0 {
		kept := make([]types.Transition, m.capacity)
		copy(kept, m.transitions[over:])
		m.transitions = kept
		evicted = over
	}
	return evicted
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transitions)
}

func (m *Memory) Capacity() int {
	return m.capacity
}

func (m *Memory) Full() bool {
	return m.Len() >= m.capacity
}

// PercentFull is the fill level in [0, 100]
func (m *Memory) PercentFull() float64 {
	return 100.0 * float64(m.Len()) / float64(m.capacity)
}

// Snapshot returns a copy of the stored transitions, oldest first
func (m *Memory) Snapshot() []types.Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Transition, len(m.transitions))
	copy(out, m.transitions)
	return out
}

// per field views of a pool of transitions

func Rewards(pool []types.Transition) []float64 {
	out := make([]float64, len(pool))
	for i, t := range pool {
		out[i] = t.Reward
	}
	return out
}

func PredictedRewards(pool []types.Transition) []float64 {
	out := make([]float64, len(pool))
	for i, t := range pool {
		out[i] = t.PredictedReward
	}
	return out
}

func Actions(pool []types.Transition) []types.Action {
	out := make([]types.Action, len(pool))
	for i, t := range pool {
		out[i] = t.Action
	}
	return out
}

// IsNotTerminal returns 1 for every non terminal transition and 0 for terminal ones
func IsNotTerminal(pool []types.Transition) []float64 {
	out := make([]float64, len(pool))
	for i, t := range pool {
		if !t.IsTerminal {
			out[i] = 1
		}
	}
	return out
}

func PreStates(pool []types.Transition) [][]types.Frame {
	out := make([][]types.Frame, len(pool))
	for i, t := range pool {
		out[i] = t.PreState
	}
	return out
}

func PostStates(pool []types.Transition) [][]types.Frame {
	out := make([][]types.Frame, len(pool))
	for i, t := range pool {
		out[i] = t.PostState
	}
	return out
}
