package replay

import (
	"testing"

	"github.com/zeu5/driving-rl/types"
)

// record builds an epoch whose rewards are the given tags so eviction order can be checked
func record(tags ...float64) *types.EpochRecord {
	r := types.NewEpochRecord()
	for _, tag := range tags {
		r.Append(types.Transition{
			Action:          types.Action(int(tag)),
			Reward:          tag,
			PredictedReward: tag / 2,
		})
	}
	r.MarkTerminal()
	return r
}

func TestMemoryRejectsBadCapacity(t *testing.T) {
	if _, err := NewMemory(0); err != ErrInvalidCapacity {
		t.Errorf("expected ErrInvalidCapacity, got %v", err)
	}
}

func TestMemoryEvictsOldestFirst(t *testing.T) {
	m, _ := NewMemory(5)
	m.Append(record(1, 2, 3))
	if m.Len() != 3 || m.Full() {
		t.Fatalf("expected 3 entries and not full, got %d", m.Len())
	}
	evicted := m.Append(record(4, 5, 6, 7))
	if evicted != 2 {
		t.Errorf("expected 2 evictions, got %d", evicted)
	}
	if !m.Full() {
		t.Errorf("expected memory to be full")
	}

	rewards := Rewards(m.Snapshot())
	want := []float64{3, 4, 5, 6, 7}
	for i := range want {
		if rewards[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, rewards)
		}
	}
}

func TestMemoryFieldViewsStayAligned(t *testing.T) {
	m, _ := NewMemory(7)
	epochs := [][]float64{{1}, {2, 3, 4}, {}, {5, 6, 7, 8, 9}, {10, 11}, {12, 13, 14, 15, 16, 17, 18, 19}}
	for _, tags := range epochs {
		m.Append(record(tags...))
		pool := m.Snapshot()
		n := len(pool)
		if n > m.Capacity() {
			t.Fatalf("memory grew past capacity: %d", n)
		}
		if len(Rewards(pool)) != n || len(PredictedRewards(pool)) != n || len(Actions(pool)) != n ||
			len(IsNotTerminal(pool)) != n || len(PreStates(pool)) != n || len(PostStates(pool)) != n {
			t.Fatalf("field views diverged at length %d", n)
		}
		for i, a := range Actions(pool) {
			if float64(a) != pool[i].Reward {
				t.Fatalf("action %d does not match its reward tag", i)
			}
		}
	}
	if got := Rewards(m.Snapshot())[0]; got != 13 {
		t.Errorf("expected oldest kept tag 13, got %v", got)
	}
}

func TestMemoryEmptyRecordDoesNotGrow(t *testing.T) {
	m, _ := NewMemory(3)
	m.Append(types.NewEpochRecord())
	m.Append(nil)
	if m.Len() != 0 {
		t.Errorf("expected empty memory, got %d", m.Len())
	}
}

func TestIsNotTerminal(t *testing.T) {
	flags := IsNotTerminal(record(1, 2, 3).Transitions)
	want := []float64{1, 1, 0}
	for i := range want {
		if flags[i] != want[i] {
			t.Errorf("expected %v, got %v", want, flags)
		}
	}
}
