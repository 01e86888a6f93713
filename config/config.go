package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zeu5/driving-rl/replay"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds every tunable of a training run
type Config struct {
	// Training loop
	BatchUpdateFrequency    int     `yaml:"batch_update_frequency"`     // transitions between checkpoints
	MaxEpochRuntimeSec      float64 `yaml:"max_epoch_runtime_sec"`      // wall time of the active phase
	PerIterEpsilonReduction float64 `yaml:"per_iter_epsilon_reduction"` // epsilon decay per training epoch
	MinEpsilon              float64 `yaml:"min_epsilon"`
	BatchSize               int     `yaml:"batch_size"`
	ReplayMemorySize        int     `yaml:"replay_memory_size"` // in transitions
	Sampling                string  `yaml:"sampling"`           // weighted or uniform
	Epochs                  int     `yaml:"epochs"`             // 0 runs until interrupted
	Seed                    int64   `yaml:"seed"`               // 0 seeds from the clock

	// Model
	WeightsPath     string `yaml:"weights_path"`
	TrainConvLayers bool   `yaml:"train_conv_layers"`

	// Simulator
	SimulatorAddr       string  `yaml:"simulator_addr"`
	RPCTimeoutSec       float64 `yaml:"rpc_timeout_sec"`
	ReconnectBackoffSec float64 `yaml:"reconnect_backoff_sec"`

	// Geometry tables
	RoadPoints         string `yaml:"road_points"`
	RewardPoints       string `yaml:"reward_points"`
	RewardPointsUnreal bool   `yaml:"reward_points_unreal"` // reward points are in unreal units like the road points

	// Outputs
	ExperimentName string `yaml:"experiment_name"`
	CheckpointDir  string `yaml:"checkpoint_dir"`
	StatsPath      string `yaml:"stats_path"`

	// Distribution, empty addresses disable the feature
	TrainerAddr       string  `yaml:"trainer_addr"`
	TrainerTimeoutSec float64 `yaml:"trainer_timeout_sec"`
	RedisAddr         string  `yaml:"redis_addr"`
	ServeAddr         string  `yaml:"serve_addr"`
}

func Default() *Config {
	return &Config{
		BatchUpdateFrequency:    10,
		MaxEpochRuntimeSec:      30,
		PerIterEpsilonReduction: 0.003,
		MinEpsilon:              0.1,
		BatchSize:               32,
		ReplayMemorySize:        50,
		Sampling:                string(replay.ModeWeighted),

		SimulatorAddr:       "127.0.0.1:41451",
		RPCTimeoutSec:       3600,
		ReconnectBackoffSec: 1,

		RoadPoints:   "road_lines.txt",
		RewardPoints: "reward_points.txt",

		ExperimentName: "rl_run_local",
		CheckpointDir:  "checkpoint",
		StatsPath:      "stats/epochs.jsonl",

		TrainerTimeoutSec: 5,
		ServeAddr:         ":8080",
	}
}

// Load overlays the YAML file at path on the defaults
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(bs, c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	bs, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bs, 0644)
}

func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}
	switch {
	case c.BatchUpdateFrequency <= 0:
		return invalid("batch_update_frequency must be positive, got %d", c.BatchUpdateFrequency)
	case c.MaxEpochRuntimeSec <= 0:
		return invalid("max_epoch_runtime_sec must be positive, got %v", c.MaxEpochRuntimeSec)
	case c.BatchSize <= 0:
		return invalid("batch_size must be positive, got %d", c.BatchSize)
	case c.ReplayMemorySize <= 0:
		return invalid("replay_memory_size must be positive, got %d", c.ReplayMemorySize)
	case c.MinEpsilon < 0 || c.MinEpsilon > 1:
		return invalid("min_epsilon must be in [0, 1], got %v", c.MinEpsilon)
	case c.PerIterEpsilonReduction < 0 || c.PerIterEpsilonReduction > 1:
		return invalid("per_iter_epsilon_reduction must be in [0, 1], got %v", c.PerIterEpsilonReduction)
	case c.Epochs < 0:
		return invalid("epochs must not be negative, got %d", c.Epochs)
	case c.RPCTimeoutSec <= 0:
		return invalid("rpc_timeout_sec must be positive, got %v", c.RPCTimeoutSec)
	case c.TrainerAddr != "" && c.TrainerTimeoutSec <= 0:
		return invalid("trainer_timeout_sec must be positive when trainer_addr is set, got %v", c.TrainerTimeoutSec)
	case c.ExperimentName == "":
		return invalid("experiment_name is required")
	case c.RoadPoints == "" || c.RewardPoints == "":
		return invalid("road_points and reward_points are required")
	}
	if _, err := replay.ParseMode(c.Sampling); err != nil {
		return invalid("%s", err)
	}
	return nil
}

func (c *Config) MaxEpochRuntime() time.Duration {
	return seconds(c.MaxEpochRuntimeSec)
}

func (c *Config) RPCTimeout() time.Duration {
	return seconds(c.RPCTimeoutSec)
}

func (c *Config) ReconnectBackoff() time.Duration {
	return seconds(c.ReconnectBackoffSec)
}

func (c *Config) TrainerTimeout() time.Duration {
	return seconds(c.TrainerTimeoutSec)
}

func (c *Config) SamplingMode() replay.Mode {
	return replay.Mode(c.Sampling)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
