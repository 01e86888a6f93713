package types

// Action indexes the model's action space
type Action int

// Transition is one control step: the state before acting, the action taken,
// the state observed afterwards and the reward for it
type Transition struct {
	PreState        []Frame
	PostState       []Frame
	Action          Action
	Reward          float64
	PredictedReward float64
	IsTerminal      bool
}

// Surprise is the absolute error between observed and predicted reward
func (t Transition) Surprise() float64 {
	d := t.Reward - t.PredictedReward
	if d < 0 {
		return -d
	}
	return d
}

// EpochRecord collects the transitions of a single epoch in the order they were generated
type EpochRecord struct {
	Transitions []Transition
}

func NewEpochRecord() *EpochRecord {
	return &EpochRecord{
		Transitions: make([]Transition, 0),
	}
}

func (r *EpochRecord) Append(t Transition) {
	t.IsTerminal = false
	r.Transitions = append(r.Transitions, t)
}

func (r *EpochRecord) Len() int {
	return len(r.Transitions)
}

func (r *EpochRecord) Get(i int) (Transition, bool) {
	if i < 0 || i >= len(r.Transitions) {
		return Transition{}, false
	}
	return r.Transitions[i], true
}

func (r *EpochRecord) Last() (Transition, bool) {
	return r.Get(len(r.Transitions) - 1)
}

// MarkTerminal flags the final transition as terminal. An empty record is left untouched.
func (r *EpochRecord) MarkTerminal() {
	if len(r.Transitions) == 0 {
		return
	}
	r.Transitions[len(r.Transitions)-1].IsTerminal = true
}

// TotalReward sums the rewards of the record
func (r *EpochRecord) TotalReward() float64 {
	sum := 0.0
	for _, t := range r.Transitions {
		sum += t.Reward
	}
	return sum
}
