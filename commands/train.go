package commands

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/zeu5/driving-rl/agent"
	"github.com/zeu5/driving-rl/checkpoint"
	"github.com/zeu5/driving-rl/config"
	"github.com/zeu5/driving-rl/geometry"
	"github.com/zeu5/driving-rl/model"
	"github.com/zeu5/driving-rl/policies"
	"github.com/zeu5/driving-rl/replay"
	"github.com/zeu5/driving-rl/simulator"
	"github.com/zeu5/driving-rl/stats"
	"github.com/zeu5/driving-rl/trainer"
	"github.com/zeu5/driving-rl/types"
	"golang.org/x/exp/rand"
)

func TrainCommand() *cobra.Command {
	var (
		epochs     int
		experiment string
		simAddr    string
		trainerAdr string
		redisAddr  string
		sampling   string
		seed       int64
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Drive the simulator, fill the replay memory and train the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("epochs") {
				cfg.Epochs = epochs
			}
			if flags.Changed("experiment") {
				cfg.ExperimentName = experiment
			}
			if flags.Changed("simulator") {
				cfg.SimulatorAddr = simAddr
			}
			if flags.Changed("trainer") {
				cfg.TrainerAddr = trainerAdr
			}
			if flags.Changed("redis") {
				cfg.RedisAddr = redisAddr
			}
			if flags.Changed("sampling") {
				cfg.Sampling = sampling
			}
			if flags.Changed("seed") {
				cfg.Seed = seed
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			err = runTraining(ctx, cfg, logger)
			if errors.Is(err, context.Canceled) {
				logger.Info().Msg("training interrupted")
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&epochs, "epochs", 0, "Number of training epochs, 0 runs until interrupted")
	cmd.Flags().StringVarP(&experiment, "experiment", "e", "", "Experiment name, used for the checkpoint directory")
	cmd.Flags().StringVar(&simAddr, "simulator", "", "Simulator RPC address")
	cmd.Flags().StringVar(&trainerAdr, "trainer", "", "Trainer address to pull the latest model from")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address to announce checkpoints on")
	cmd.Flags().StringVar(&sampling, "sampling", "", "Minibatch sampling mode (weighted, uniform)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed, 0 seeds from the clock")
	return cmd
}

func runTraining(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	rewardTransform := geometry.Identity
	if cfg.RewardPointsUnreal {
		rewardTransform = geometry.UnrealTransform
	}
	tables, err := geometry.LoadTables(cfg.RoadPoints, cfg.RewardPoints, geometry.UnrealTransform, rewardTransform)
	if err != nil {
		return err
	}

	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	starts, err := geometry.NewStartSelector(tables.Road, rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}
	if starts.Skipped() > 0 {
		logger.Warn().Int("skipped", starts.Skipped()).Msg("diagonal road segments are not used as starting points")
	}

	exploration := policies.NewEpsilonGreedy(cfg.PerIterEpsilonReduction, cfg.MinEpsilon, rand.New(rand.NewSource(seed+1)))
	m := model.NewLinear(cfg.TrainConvLayers, rand.New(rand.NewSource(seed+2)))
	if cfg.WeightsPath != "" {
		if err := m.LoadFile(cfg.WeightsPath); err != nil {
			return err
		}
		logger.Info().Str("weights", cfg.WeightsPath).Msg("loaded initial weights")
	}
	memory, err := replay.NewMemory(cfg.ReplayMemorySize)
	if err != nil {
		return err
	}

	runID := agent.NewRunID()
	publishers := make([]checkpoint.Publisher, 0)
	if cfg.RedisAddr != "" {
		p := checkpoint.NewRedisPublisher(cfg.RedisAddr, runID)
		defer p.Close()
		publishers = append(publishers, p)
	}
	session := &agent.Session{
		RunID:       runID,
		Model:       m,
		Exploration: exploration,
		Memory:      memory,
		Sampler:     replay.NewSampler(cfg.BatchSize, rand.NewSource(seed+3)),
		Coordinator: checkpoint.NewCoordinator(checkpoint.CoordinatorConfig{
			Frequency:  cfg.BatchUpdateFrequency,
			Root:       cfg.CheckpointDir,
			Experiment: cfg.ExperimentName,
			Publishers: publishers,
			Epsilon:    exploration.Epsilon,
		}, m, logger),
	}

	a := agent.NewAgent(agent.AgentConfig{
		Starts:          starts,
		Rewards:         geometry.NewRewardEvaluator(tables.Reward),
		Exploration:     exploration,
		Model:           m,
		Timing:          agent.DefaultTiming(),
		MaxEpochRuntime: cfg.MaxEpochRuntime(),
	}, logger)

	dial := func(ctx context.Context) (types.Simulator, error) {
		c, err := simulator.Dial(ctx, cfg.SimulatorAddr, cfg.RPCTimeout(), logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	supervisor := agent.NewSupervisor(dial, cfg.ReconnectBackoff(), logger)

	expConfig := agent.ExperimentConfig{
		Epochs:   cfg.Epochs,
		Sampling: cfg.SamplingMode(),
	}
	if cfg.TrainerAddr != "" {
		expConfig.Trainer = trainer.NewClient(cfg.TrainerAddr, cfg.TrainerTimeout())
	}
	if cfg.StatsPath != "" {
		expConfig.Stats = stats.NewRecorder(cfg.StatsPath)
	}

	logger.Info().
		Str("run_id", runID).
		Str("experiment", cfg.ExperimentName).
		Int("road_segments", len(tables.Road)).
		Int("reward_segments", len(tables.Reward)).
		Str("sampling", cfg.Sampling).
		Msg("starting training")
	return agent.NewExperiment(expConfig, a, supervisor, session, logger).Run(ctx)
}
