package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeu5/driving-rl/types"
)

// DialFunc opens a fresh link to the simulator
type DialFunc func(context.Context) (types.Simulator, error)

// Supervisor owns the simulator link and re-establishes it after failures
type Supervisor struct {
	Dial    DialFunc
	Backoff time.Duration
	// MaxAttempts bounds consecutive failed attempts, 0 retries until the context is done
	MaxAttempts int

	logger zerolog.Logger
}

func NewSupervisor(dial DialFunc, backoff time.Duration, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		Dial:    dial,
		Backoff: backoff,
		logger:  logger.With().Str("component", "supervisor").Logger(),
	}
}

// Connect dials, confirms the link and takes API control of the vehicle
func (s *Supervisor) Connect(ctx context.Context) (types.Simulator, error) {
	for attempt := 1; ; attempt++ {
		sim, err := s.connect(ctx)
		if err == nil {
			s.logger.Info().Int("attempt", attempt).Msg("connected to simulator")
			return sim, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", s.Backoff).Msg("connecting to simulator failed")
		if s.MaxAttempts > 0 && attempt >= s.MaxAttempts {
			return nil, fmt.Errorf("connecting to simulator after %d attempts: %w", attempt, err)
		}
		if err := sleep(ctx, s.Backoff); err != nil {
			return nil, err
		}
	}
}

// Reconnect drops the old link, if any, and connects again
func (s *Supervisor) Reconnect(ctx context.Context, old types.Simulator) (types.Simulator, error) {
	if old != nil {
		old.Close()
	}
	s.logger.Info().Msg("lost connection to simulator, reconnecting")
	return s.Connect(ctx)
}

func (s *Supervisor) connect(ctx context.Context) (types.Simulator, error) {
	sim, err := s.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := sim.Ping(ctx); err != nil {
		sim.Close()
		return nil, fmt.Errorf("confirming connection: %w", err)
	}
	if err := sim.EnableAPIControl(ctx, true); err != nil {
		sim.Close()
		return nil, fmt.Errorf("enabling api control: %w", err)
	}
	return sim, nil
}
