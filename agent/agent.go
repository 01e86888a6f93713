package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeu5/driving-rl/geometry"
	"github.com/zeu5/driving-rl/policies"
	"github.com/zeu5/driving-rl/types"
	"gonum.org/v1/gonum/spatial/r3"
)

var errPredict = errors.New("predicting action")

type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeConnectionLost
	// OutcomeModelFailed means the model could not choose an action, the link is healthy
	OutcomeModelFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeConnectionLost:
		return "connection_lost"
	case OutcomeModelFailed:
		return "model_failed"
	}
	return "unknown"
}

// EpochResult is what a single drive produced. Record is nil unless the epoch completed.
type EpochResult struct {
	Outcome   Outcome
	Record    *types.EpochRecord
	NumRandom int
	Err       error
}

// PercentRandom is the share of actions chosen by exploration
func (r EpochResult) PercentRandom() float64 {
	if r.Record == nil || r.Record.Len() == 0 {
		return 0
	}
	return float64(r.NumRandom) / float64(r.Record.Len())
}

// Timing of the epoch phases
type Timing struct {
	// Settle is how long the brake is held before the second teleport
	Settle time.Duration
	// RollingStart is how long full throttle is applied before recording
	RollingStart time.Duration
	// Interval between a control signal and its observation
	Interval time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Settle:       4 * time.Second,
		RollingStart: 2 * time.Second,
		Interval:     10 * time.Millisecond,
	}
}

type AgentConfig struct {
	Starts          *geometry.StartSelector
	Rewards         *geometry.RewardEvaluator
	Exploration     *policies.EpsilonGreedy
	Model           types.Model
	Timing          Timing
	MaxEpochRuntime time.Duration
}

// Agent drives the simulator through one epoch at a time:
// INIT -> ROLLING_START -> ACTIVE -> TERMINATED
type Agent struct {
	config AgentConfig
	logger zerolog.Logger
}

func NewAgent(config AgentConfig, logger zerolog.Logger) *Agent {
	return &Agent{
		config: config,
		logger: logger.With().Str("component", "agent").Logger(),
	}
}

// RunEpoch runs a full epoch against sim. When forceRandom is set every action is random.
// Any simulator failure discards the partial record and reports OutcomeConnectionLost.
// A prediction failure discards it as well and reports OutcomeModelFailed.
func (a *Agent) RunEpoch(ctx context.Context, sim types.Simulator, forceRandom bool) EpochResult {
	buffer := types.NewStateBuffer(types.StateBufferLen)

	start, err := a.init(ctx, sim)
	if err != nil {
		return a.lost(err)
	}
	if err := a.rollingStart(ctx, sim, buffer); err != nil {
		return a.lost(err)
	}
	record, numRandom, err := a.active(ctx, sim, buffer, forceRandom)
	if errors.Is(err, errPredict) {
		a.logger.Error().Err(err).Msg("epoch aborted")
		return EpochResult{Outcome: OutcomeModelFailed, Err: err}
	}
	if err != nil {
		return a.lost(err)
	}
	record.MarkTerminal()

	a.logger.Info().
		Float64("start_x", start.Position.X).
		Float64("start_y", start.Position.Y).
		Int("actions", record.Len()).
		Int("random", numRandom).
		Float64("total_reward", record.TotalReward()).
		Msg("epoch finished")
	return EpochResult{
		Outcome:   OutcomeCompleted,
		Record:    record,
		NumRandom: numRandom,
	}
}

func (a *Agent) lost(err error) EpochResult {
	a.logger.Warn().Err(err).Msg("epoch aborted")
	return EpochResult{Outcome: OutcomeConnectionLost, Err: err}
}

// init teleports the vehicle and holds the brake until it is still.
// Pose resets keep the velocity, hence the second teleport after settling.
func (a *Agent) init(ctx context.Context, sim types.Simulator) (geometry.StartPose, error) {
	start := a.config.Starts.NextStart()
	pose := start.Pose()

	if err := sim.SetPose(ctx, pose, true); err != nil {
		return start, fmt.Errorf("teleporting vehicle: %w", err)
	}
	if err := sim.SetControls(ctx, types.Controls{Brake: 1}); err != nil {
		return start, fmt.Errorf("braking: %w", err)
	}
	if err := sleep(ctx, a.config.Timing.Settle); err != nil {
		return start, err
	}
	if err := sim.SetPose(ctx, pose, true); err != nil {
		return start, fmt.Errorf("teleporting vehicle: %w", err)
	}
	return start, nil
}

// rollingStart applies full throttle and fills the state buffer.
// It lasts at least Timing.RollingStart and until the buffer is full.
func (a *Agent) rollingStart(ctx context.Context, sim types.Simulator, buffer *types.StateBuffer) error {
	if err := sim.SetControls(ctx, types.Controls{Throttle: 1}); err != nil {
		return fmt.Errorf("accelerating: %w", err)
	}
	begin := time.Now()
	for time.Since(begin) < a.config.Timing.RollingStart || buffer.Len() < buffer.Capacity() {
		if err := sleep(ctx, a.config.Timing.Interval); err != nil {
			return err
		}
		if err := observe(ctx, sim, buffer); err != nil {
			return err
		}
	}
	return nil
}

func (a *Agent) active(ctx context.Context, sim types.Simulator, buffer *types.StateBuffer, forceRandom bool) (*types.EpochRecord, int, error) {
	record := types.NewEpochRecord()
	numRandom := 0
	offTrack := false
	begin := time.Now()

	for {
		collision, err := sim.CollisionInfo(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("reading collision info: %w", err)
		}
		state, err := sim.VehicleState(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("reading vehicle state: %w", err)
		}
		elapsed := time.Since(begin)
		if collision.HasCollided || state.Speed < geometry.MinSpeed || elapsed > a.config.MaxEpochRuntime || offTrack {
			a.logger.Debug().
				Bool("collided", collision.HasCollided).
				Float64("speed", state.Speed).
				Bool("off_track", offTrack).
				Dur("elapsed", elapsed).
				Msg("terminal state")
			return record, numRandom, nil
		}

		preState := buffer.Snapshot()
		var action types.Action
		predicted := 0.0
		if a.config.Exploration.Explore(forceRandom) {
			numRandom++
			action = a.config.Model.RandomState()
		} else {
			action, predicted, err = a.config.Model.PredictState(preState)
			if err != nil {
				return nil, 0, fmt.Errorf("%w: %w", errPredict, err)
			}
			a.logger.Debug().Int("action", int(action)).Float64("predicted_reward", predicted).Msg("model prediction")
		}

		controls := a.config.Model.StateToControls(action, state)
		if err := sim.SetControls(ctx, controls); err != nil {
			return nil, 0, fmt.Errorf("applying controls: %w", err)
		}
		if err := sleep(ctx, a.config.Timing.Interval); err != nil {
			return nil, 0, err
		}
		if err := observe(ctx, sim, buffer); err != nil {
			return nil, 0, err
		}

		state, err = sim.VehicleState(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("reading vehicle state: %w", err)
		}
		collision, err = sim.CollisionInfo(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("reading collision info: %w", err)
		}
		var reward float64
		pos := r3.Vec{X: state.Position.X, Y: state.Position.Y}
		reward, offTrack = a.config.Rewards.Evaluate(collision.HasCollided, state.Speed, pos)

		record.Append(types.Transition{
			PreState:        preState,
			PostState:       buffer.Snapshot(),
			Action:          action,
			Reward:          reward,
			PredictedReward: predicted,
		})
	}
}

// observe pushes a cropped camera frame into the buffer
func observe(ctx context.Context, sim types.Simulator, buffer *types.StateBuffer) error {
	img, err := sim.Image(ctx)
	if err != nil {
		return fmt.Errorf("reading camera: %w", err)
	}
	frame, err := types.CropFrame(img)
	if err != nil {
		return err
	}
	buffer.Push(frame)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
