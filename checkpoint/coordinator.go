package checkpoint

import (
	"context"
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/rs/zerolog"
	"github.com/zeu5/driving-rl/replay"
	"github.com/zeu5/driving-rl/types"
)

// Counters track how many transitions were processed and where the last checkpoint was taken
type Counters struct {
	Cumulative     int `json:"cumulative"`
	LastCheckpoint int `json:"last_checkpoint"`
}

type CoordinatorConfig struct {
	// Frequency is the number of processed transitions between checkpoints
	Frequency  int
	Root       string
	Experiment string
	Publishers []Publisher
	// Epsilon reports the current exploration rate to store alongside the model, optional
	Epsilon func() float64
}

// Coordinator trains the model on sampled minibatches and writes a checkpoint
// every time enough new experience has been processed
type Coordinator struct {
	config   CoordinatorConfig
	model    types.Model
	counters Counters
	logger   zerolog.Logger
}

func NewCoordinator(config CoordinatorConfig, model types.Model, logger zerolog.Logger) *Coordinator {
	if config.Frequency <= 0 {
		config.Frequency = 1
	}
	return &Coordinator{
		config: config,
		model:  model,
		logger: logger.With().Str("component", "coordinator").Logger(),
	}
}

func (c *Coordinator) Counters() Counters {
	return c.counters
}

// Due reports whether the cumulative count reached the next multiple of the
// frequency above the last checkpoint
func (c *Coordinator) Due() bool {
	next := (c.counters.LastCheckpoint/c.config.Frequency + 1) * c.config.Frequency
	return c.counters.Cumulative >= next
}

// Step accounts for an epoch of frames, trains on its minibatches and checkpoints when due.
// It returns the checkpoint written, if any. Filesystem errors are returned and must stop the run.
func (c *Coordinator) Step(ctx context.Context, frames int, batches []replay.Minibatch) (*Checkpoint, error) {
	c.counters.Cumulative += frames
	if len(batches) == 0 {
		return nil, nil
	}

	if trainer, ok := c.model.(types.Trainer); ok {
		for _, b := range batches {
			if err := trainer.Train(b.Transitions); err != nil {
				return nil, fmt.Errorf("training on minibatch: %w", err)
			}
		}
	}

	if !c.Due() {
		return nil, nil
	}
	return c.checkpoint(ctx)
}

func (c *Coordinator) checkpoint(ctx context.Context) (*Checkpoint, error) {
	if err := c.model.UpdateCritic(); err != nil {
		return nil, fmt.Errorf("updating critic: %w", err)
	}
	packet, err := c.model.ToPacket(true)
	if err != nil {
		return nil, fmt.Errorf("serializing model: %w", err)
	}
	cp := &Checkpoint{
		Model:      packet,
		BatchCount: c.counters.Cumulative,
	}
	if c.config.Epsilon != nil {
		eps := c.config.Epsilon()
		cp.Epsilon = &eps
	}

	file, size, err := Write(c.config.Root, c.config.Experiment, cp)
	if err != nil {
		return nil, err
	}
	c.logger.Info().
		Str("file", file).
		Int("batch_count", cp.BatchCount).
		Str("size", datasize.ByteSize(size).HumanReadable()).
		Msg("Checkpointing")
	c.counters.LastCheckpoint = c.counters.Cumulative

	for _, p := range c.config.Publishers {
		if err := p.Publish(ctx, c.config.Experiment, cp, file); err != nil {
			// the file on disk is the source of truth, a failed announcement is not fatal
			c.logger.Warn().Err(err).Int("batch_count", cp.BatchCount).Msg("publishing checkpoint failed")
		}
	}
	return cp, nil
}
