package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"github.com/zeu5/driving-rl/checkpoint"
	"github.com/zeu5/driving-rl/policies"
	"github.com/zeu5/driving-rl/replay"
	"github.com/zeu5/driving-rl/stats"
	"github.com/zeu5/driving-rl/types"
)

// ModelSource returns the newest model snapshot published by a trainer
type ModelSource interface {
	Latest(context.Context) (*checkpoint.Checkpoint, error)
}

// Session is the mutable training state of one run
type Session struct {
	RunID       string
	Model       types.Model
	Exploration *policies.EpsilonGreedy
	Memory      *replay.Memory
	Sampler     *replay.Sampler
	Coordinator *checkpoint.Coordinator
}

// NewRunID returns a fresh identifier for a session
func NewRunID() string {
	return uuid.Must(uuid.NewV4()).String()
}

type ExperimentConfig struct {
	// Epochs bounds the training loop, 0 runs until the context is done
	Epochs   int
	Sampling replay.Mode
	// Trainer is polled for a newer model before every training epoch, optional
	Trainer ModelSource
	// Stats receives one record per completed epoch, optional
	Stats *stats.Recorder
}

// Experiment fills the replay memory with random drives and then alternates
// between driving with the current model and training on sampled experience
type Experiment struct {
	config     ExperimentConfig
	agent      *Agent
	supervisor *Supervisor
	session    *Session
	epoch      int
	// batch count of the last snapshot taken from the trainer
	synced     int
	logger     zerolog.Logger
}

func NewExperiment(config ExperimentConfig, agent *Agent, supervisor *Supervisor, session *Session, logger zerolog.Logger) *Experiment {
	if config.Sampling == "" {
		config.Sampling = replay.ModeWeighted
	}
	return &Experiment{
		config:     config,
		agent:      agent,
		supervisor: supervisor,
		session:    session,
		logger:     logger.With().Str("component", "experiment").Str("run_id", session.RunID).Logger(),
	}
}

func (e *Experiment) Session() *Session {
	return e.session
}

// Run drives the session until the epoch limit is reached, the context is done
// or checkpointing fails
func (e *Experiment) Run(ctx context.Context) error {
	sim, err := e.supervisor.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if sim != nil {
			sim.Close()
		}
	}()

	for !e.session.Memory.Full() {
		res := e.agent.RunEpoch(ctx, sim, true)
		if res.Outcome == OutcomeModelFailed {
			return res.Err
		}
		if res.Outcome == OutcomeConnectionLost {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if sim, err = e.supervisor.Reconnect(ctx, sim); err != nil {
				return err
			}
			continue
		}
		e.session.Memory.Append(res.Record)
		e.logger.Info().
			Int("transitions", e.session.Memory.Len()).
			Float64("percent_full", e.session.Memory.PercentFull()).
			Msg("filling replay memory")
		e.record(stats.PhaseFill, res, false, nil)
	}

	for done := 0; e.config.Epochs == 0 || done < e.config.Epochs; {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.sync(ctx)

		res := e.agent.RunEpoch(ctx, sim, false)
		if res.Outcome == OutcomeModelFailed {
			return res.Err
		}
		if res.Outcome == OutcomeConnectionLost {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if sim, err = e.supervisor.Reconnect(ctx, sim); err != nil {
				return err
			}
			continue
		}

		degenerate, cp, err := e.train(ctx, res)
		if err != nil {
			return err
		}
		e.record(stats.PhaseTrain, res, degenerate, cp)
		done++
	}
	return nil
}

// train stores the epoch, samples minibatches and hands them to the coordinator
func (e *Experiment) train(ctx context.Context, res EpochResult) (bool, *checkpoint.Checkpoint, error) {
	frames := res.Record.Len()
	e.session.Memory.Append(res.Record)
	epsilon := e.session.Exploration.Decay()
	e.logger.Info().
		Int("actions", frames).
		Float64("percent_random", res.PercentRandom()).
		Float64("epsilon", epsilon).
		Msg("epoch complete")

	var batches []replay.Minibatch
	degenerate := false
	if frames > 0 {
		result := e.session.Sampler.Sample(e.session.Memory.Snapshot(), frames, e.config.Sampling)
		if result.Degenerate {
			e.logger.Warn().Msg("no surprise in replay memory, sampled uniformly")
		}
		e.logger.Debug().Int("minibatches", len(result.Batches)).Str("mode", string(e.config.Sampling)).Msg("sampled experiences")
		batches = result.Batches
		degenerate = result.Degenerate
	}

	cp, err := e.session.Coordinator.Step(ctx, frames, batches)
	if err != nil {
		return degenerate, nil, fmt.Errorf("checkpointing: %w", err)
	}
	return degenerate, cp, nil
}

// sync pulls the trainer's latest model. Failures keep the local model, and so do
// snapshots no newer than the last one applied or written locally.
func (e *Experiment) sync(ctx context.Context) {
	if e.config.Trainer == nil {
		return
	}
	cp, err := e.config.Trainer.Latest(ctx)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNoCheckpoint) {
			e.logger.Debug().Msg("trainer has no model yet")
		} else {
			e.logger.Warn().Err(err).Msg("fetching latest model failed")
		}
		return
	}
	if cp.BatchCount <= e.synced || cp.BatchCount <= e.session.Coordinator.Counters().LastCheckpoint {
		e.logger.Debug().Int("batch_count", cp.BatchCount).Msg("trainer model is not newer, keeping local model")
		return
	}
	if err := e.session.Model.FromPacket(cp.Model); err != nil {
		e.logger.Warn().Err(err).Int("batch_count", cp.BatchCount).Msg("loading trainer model failed")
		return
	}
	e.synced = cp.BatchCount
	if cp.Epsilon != nil {
		e.session.Exploration.Override(*cp.Epsilon)
	}
	e.logger.Debug().Int("batch_count", cp.BatchCount).Float64("epsilon", e.session.Exploration.Epsilon()).Msg("synced model from trainer")
}

func (e *Experiment) record(phase string, res EpochResult, degenerate bool, cp *checkpoint.Checkpoint) {
	epoch := e.epoch
	e.epoch++
	if e.config.Stats == nil {
		return
	}
	s := stats.EpochStats{
		RunID:         e.session.RunID,
		Epoch:         epoch,
		Phase:         phase,
		Frames:        res.Record.Len(),
		NumRandom:     res.NumRandom,
		PercentRandom: res.PercentRandom(),
		TotalReward:   res.Record.TotalReward(),
		Epsilon:       e.session.Exploration.Epsilon(),
		ReplayFill:    e.session.Memory.PercentFull(),
		Cumulative:    e.session.Coordinator.Counters().Cumulative,
		Degenerate:    degenerate,
	}
	if cp != nil {
		s.Checkpoint = cp.BatchCount
	}
	if err := e.config.Stats.Record(s); err != nil {
		e.logger.Warn().Err(err).Msg("recording epoch stats failed")
	}
}
