package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeu5/driving-rl/geometry"
	"github.com/zeu5/driving-rl/policies"
	"github.com/zeu5/driving-rl/types"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"
)

// fakeSim keeps the car on the road at a constant speed. It reports a collision once
// collideAfter control signals were applied since the last teleport and fails every call
// once failAfter control signals were applied in total.
type fakeSim struct {
	lock         sync.Mutex
	collideAfter int
	failAfter    int
	speed        float64
	position     types.Vector3

	sincePose int
	total     int
	poses     []types.Pose
	controls  []types.Controls
	images    int
	pings     int
	apiCtl    bool
	closed    bool
}

func newFakeSim(collideAfter int) *fakeSim {
	return &fakeSim{
		collideAfter: collideAfter,
		speed:        10,
		position:     types.Vector3{X: 50},
	}
}

func (s *fakeSim) check() error {
	if s.failAfter > 0 && s.total >= s.failAfter {
		return types.ErrConnectionLost
	}
	return nil
}

func (s *fakeSim) Ping(context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pings++
	return s.check()
}

func (s *fakeSim) EnableAPIControl(_ context.Context, enabled bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.apiCtl = enabled
	return s.check()
}

func (s *fakeSim) SetPose(_ context.Context, pose types.Pose, _ bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.poses = append(s.poses, pose)
	s.sincePose = 0
	return nil
}

func (s *fakeSim) SetControls(_ context.Context, c types.Controls) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.controls = append(s.controls, c)
	s.sincePose++
	s.total++
	return nil
}

func (s *fakeSim) VehicleState(context.Context) (types.VehicleState, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return types.VehicleState{Speed: s.speed, Position: s.position}, s.check()
}

func (s *fakeSim) CollisionInfo(context.Context) (types.CollisionInfo, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	collided := s.collideAfter > 0 && s.sincePose >= s.collideAfter
	return types.CollisionInfo{HasCollided: collided}, s.check()
}

func (s *fakeSim) Image(context.Context) (types.RawImage, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.images++
	return types.RawImage{Width: 256, Height: 144, Data: make([]byte, 256*144*4)}, s.check()
}

func (s *fakeSim) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true
	return nil
}

type fakeModel struct {
	trained    int
	critics    int
	packets    []json.RawMessage
	predicts   int
	predictErr error
}

func (m *fakeModel) RandomState() types.Action { return 1 }
func (m *fakeModel) PredictState([]types.Frame) (types.Action, float64, error) {
	m.predicts++
	if m.predictErr != nil {
		return 0, 0, m.predictErr
	}
	return 2, 0.5, nil
}
func (m *fakeModel) StateToControls(a types.Action, _ types.VehicleState) types.Controls {
	return types.Controls{Steering: float64(a) / 10, Throttle: 1}
}
func (m *fakeModel) UpdateCritic() error {
	m.critics++
	return nil
}
func (m *fakeModel) ToPacket(bool) (json.RawMessage, error) {
	return json.Marshal(map[string]int{"critics": m.critics})
}
func (m *fakeModel) FromPacket(p json.RawMessage) error {
	m.packets = append(m.packets, p)
	return nil
}
func (m *fakeModel) Train(b []types.Transition) error {
	m.trained += len(b)
	return nil
}

func road() []geometry.Segment {
	return []geometry.Segment{{A: r3.Vec{X: 0}, B: r3.Vec{X: 100}}}
}

func testTiming() Timing {
	return Timing{Settle: 0, RollingStart: time.Millisecond, Interval: 0}
}

func newTestAgent(t *testing.T, model types.Model, exploration *policies.EpsilonGreedy) *Agent {
	starts, err := geometry.NewStartSelector(road(), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewAgent(AgentConfig{
		Starts:          starts,
		Rewards:         geometry.NewRewardEvaluator(road()),
		Exploration:     exploration,
		Model:           model,
		Timing:          testTiming(),
		MaxEpochRuntime: time.Minute,
	}, zerolog.Nop())
}

func TestEpochEndsOnCollision(t *testing.T) {
	sim := newFakeSim(4)
	a := newTestAgent(t, &fakeModel{}, policies.NewEpsilonGreedy(0.1, 0.1, rand.New(rand.NewSource(2))))

	res := a.RunEpoch(context.Background(), sim, true)
	if res.Outcome != OutcomeCompleted || res.Err != nil {
		t.Fatalf("expected completed epoch, got %v (%v)", res.Outcome, res.Err)
	}
	if res.Record.Len() != 3 {
		t.Fatalf("expected 3 transitions, got %d", res.Record.Len())
	}
	for i := 0; i < res.Record.Len(); i++ {
		tr, _ := res.Record.Get(i)
		if tr.IsTerminal != (i == 2) {
			t.Errorf("transition %d: unexpected terminal flag %v", i, tr.IsTerminal)
		}
		if len(tr.PreState) != types.StateBufferLen || len(tr.PostState) != types.StateBufferLen {
			t.Errorf("transition %d: states must hold %d frames", i, types.StateBufferLen)
		}
		if tr.Action != 1 || tr.PredictedReward != 0 {
			t.Errorf("transition %d: forced epochs must only take random actions", i)
		}
	}
	if first, _ := res.Record.Get(0); first.Reward != 1 {
		t.Errorf("expected full reward on the centerline, got %v", first.Reward)
	}
	if last, _ := res.Record.Last(); last.Reward != 0 {
		t.Errorf("expected no reward after a collision, got %v", last.Reward)
	}
	if res.NumRandom != 3 || res.PercentRandom() != 1 {
		t.Errorf("expected 3 random actions, got %d", res.NumRandom)
	}

	// teleport, brake, settle, teleport again to the same pose
	if len(sim.poses) != 2 || sim.poses[0] != sim.poses[1] {
		t.Errorf("expected two identical teleports, got %+v", sim.poses)
	}
	if sim.controls[0] != (types.Controls{Brake: 1}) || sim.controls[1] != (types.Controls{Throttle: 1}) {
		t.Errorf("unexpected warm up controls %+v", sim.controls[:2])
	}
	if sim.images < 3+types.StateBufferLen {
		t.Errorf("expected the buffer to be warm before the first tick, got %d images", sim.images)
	}
}

func TestCollisionOnFirstTickYieldsEmptyRecord(t *testing.T) {
	sim := newFakeSim(1)
	a := newTestAgent(t, &fakeModel{}, policies.NewEpsilonGreedy(0.1, 0.1, rand.New(rand.NewSource(2))))

	res := a.RunEpoch(context.Background(), sim, true)
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("expected completed epoch, got %v", res.Outcome)
	}
	if res.Record.Len() != 0 || res.PercentRandom() != 0 {
		t.Errorf("expected an empty record, got %d transitions", res.Record.Len())
	}
}

func TestEpochEndsWhenStoppedOrOffTrack(t *testing.T) {
	stopped := newFakeSim(0)
	stopped.speed = 1
	a := newTestAgent(t, &fakeModel{}, policies.NewEpsilonGreedy(0.1, 0.1, rand.New(rand.NewSource(2))))
	if res := a.RunEpoch(context.Background(), stopped, true); res.Record.Len() != 0 {
		t.Errorf("a stopped car must end the epoch, got %d transitions", res.Record.Len())
	}

	// off the road: the first transition is recorded, the next tick terminates
	off := newFakeSim(0)
	off.position = types.Vector3{X: 50, Y: geometry.ThreshDist + 1}
	res := a.RunEpoch(context.Background(), off, true)
	if res.Record.Len() != 1 {
		t.Fatalf("expected 1 transition, got %d", res.Record.Len())
	}
	if last, _ := res.Record.Last(); !last.IsTerminal {
		t.Errorf("expected the only transition to be terminal")
	}
}

func TestEpochUsesModelWhenNotExploring(t *testing.T) {
	sim := newFakeSim(3)
	model := &fakeModel{}
	exploration := policies.NewEpsilonGreedy(0.1, 0, rand.New(rand.NewSource(2)))
	exploration.Override(0)
	a := newTestAgent(t, model, exploration)

	res := a.RunEpoch(context.Background(), sim, false)
	if res.Record.Len() != 2 || res.NumRandom != 0 || model.predicts != 2 {
		t.Fatalf("expected 2 predicted actions, got %d transitions %d random %d predictions", res.Record.Len(), res.NumRandom, model.predicts)
	}
	tr, _ := res.Record.Get(0)
	if tr.Action != 2 || tr.PredictedReward != 0.5 {
		t.Errorf("unexpected transition %+v", tr)
	}
	if sim.controls[2].Steering != 0.2 {
		t.Errorf("expected controls from the model, got %+v", sim.controls[2])
	}
}

func TestConnectionLostDiscardsRecord(t *testing.T) {
	sim := newFakeSim(0)
	sim.failAfter = 3
	a := newTestAgent(t, &fakeModel{}, policies.NewEpsilonGreedy(0.1, 0.1, rand.New(rand.NewSource(2))))

	res := a.RunEpoch(context.Background(), sim, true)
	if res.Outcome != OutcomeConnectionLost {
		t.Fatalf("expected lost connection, got %v", res.Outcome)
	}
	if res.Record != nil {
		t.Errorf("a partial record must be discarded")
	}
	if !errors.Is(res.Err, types.ErrConnectionLost) {
		t.Errorf("expected ErrConnectionLost, got %v", res.Err)
	}
}

func TestCancelledContextAbortsEpoch(t *testing.T) {
	sim := newFakeSim(0)
	a := newTestAgent(t, &fakeModel{}, policies.NewEpsilonGreedy(0.1, 0.1, rand.New(rand.NewSource(2))))
	a.config.Timing.Settle = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := a.RunEpoch(ctx, sim, true)
	if res.Outcome != OutcomeConnectionLost || !errors.Is(res.Err, context.Canceled) {
		t.Errorf("expected cancellation, got %v (%v)", res.Outcome, res.Err)
	}
}

func TestEpochEndsAtMaxRuntime(t *testing.T) {
	sim := newFakeSim(0)
	a := newTestAgent(t, &fakeModel{}, policies.NewEpsilonGreedy(0.1, 0.1, rand.New(rand.NewSource(2))))
	a.config.MaxEpochRuntime = 20 * time.Millisecond
	a.config.Timing.Interval = time.Millisecond

	res := a.RunEpoch(context.Background(), sim, true)
	if res.Outcome != OutcomeCompleted || res.Err != nil {
		t.Fatalf("expected completed epoch, got %v (%v)", res.Outcome, res.Err)
	}
	if res.Record.Len() == 0 {
		t.Fatalf("expected transitions before the runtime ran out")
	}
	for i := 0; i < res.Record.Len(); i++ {
		tr, _ := res.Record.Get(i)
		if tr.IsTerminal != (i == res.Record.Len()-1) {
			t.Errorf("transition %d: unexpected terminal flag %v", i, tr.IsTerminal)
		}
	}
}

func TestPredictionFailureKeepsLink(t *testing.T) {
	sim := newFakeSim(0)
	broken := errors.New("bad weights")
	exploration := policies.NewEpsilonGreedy(0.1, 0, rand.New(rand.NewSource(2)))
	exploration.Override(0)
	a := newTestAgent(t, &fakeModel{predictErr: broken}, exploration)

	res := a.RunEpoch(context.Background(), sim, false)
	if res.Outcome != OutcomeModelFailed {
		t.Fatalf("expected a model failure, got %v", res.Outcome)
	}
	if res.Record != nil || !errors.Is(res.Err, broken) {
		t.Errorf("expected the record discarded and the model error reported, got %v", res.Err)
	}
	if sim.closed {
		t.Errorf("a model failure must not close the link")
	}
}
