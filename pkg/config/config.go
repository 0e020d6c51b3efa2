// Package config loads sweep configuration from YAML, environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. STEPSWEEP_SWEEP_DATA_POINTS
const EnvPrefix = "STEPSWEEP"

// ExperimentConfig is the full configuration of one sweep run
type ExperimentConfig struct {
	Name    string        `mapstructure:"name" yaml:"name"`
	Sweep   SweepParams   `mapstructure:"sweep" yaml:"sweep"`
	Physics PhysicsConfig `mapstructure:"physics" yaml:"physics"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Signals SignalsConfig `mapstructure:"signals" yaml:"signals"`
}

// SweepParams is fixed for the lifetime of a sweep
type SweepParams struct {
	EpisodesPerEpoch  int     `mapstructure:"episodes_per_epoch" yaml:"episodes_per_epoch"`
	DataPoints        int     `mapstructure:"data_points" yaml:"data_points"`
	InitialTimestep   float64 `mapstructure:"initial_timestep" yaml:"initial_timestep"`
	TimestepIncrement float64 `mapstructure:"timestep_increment" yaml:"timestep_increment"`
	LogPath           string  `mapstructure:"log_path" yaml:"log_path"`
	// Schema is "legacy" (default) or "corrected"
	Schema string `mapstructure:"schema" yaml:"schema"`
}

// PhysicsConfig holds the host-wide simulation settings overridden for the run
type PhysicsConfig struct {
	GravityMultiplier        float64 `mapstructure:"gravity_multiplier" yaml:"gravity_multiplier"`
	MaximumDeltaTime         float64 `mapstructure:"maximum_delta_time" yaml:"maximum_delta_time"`
	SolverIterations         int     `mapstructure:"solver_iterations" yaml:"solver_iterations"`
	SolverVelocityIterations int     `mapstructure:"solver_velocity_iterations" yaml:"solver_velocity_iterations"`
	ReuseCollisionCallbacks  bool    `mapstructure:"reuse_collision_callbacks" yaml:"reuse_collision_callbacks"`
}

// AgentConfig tunes the stand-in agent used by the reference host
type AgentConfig struct {
	Seed        int64   `mapstructure:"seed" yaml:"seed"`
	BaseSuccess float64 `mapstructure:"base_success" yaml:"base_success"`
	Decay       float64 `mapstructure:"decay" yaml:"decay"`
}

// StorageConfig points at the optional sqlite run database
type StorageConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// SignalsConfig points at the directory watched for halt and parameter files
type SignalsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Validate checks the ranges the sweep relies on and that a journal path is set
func (p SweepParams) Validate() error {
	err := p.ValidateRanges()
	if p.LogPath == "" {
		err = errors.Join(err, errors.New("log_path is required"))
	}
	return err
}

// ValidateRanges checks the numeric parameters only. Every timestep of the
// sweep must be finite and positive, and each data point must use a larger
// timestep than the one before.
func (p SweepParams) ValidateRanges() error {
	var errs []error
	if p.EpisodesPerEpoch <= 0 {
		errs = append(errs, fmt.Errorf("episodes_per_epoch must be positive, got %d", p.EpisodesPerEpoch))
	}
	if p.DataPoints <= 0 {
		errs = append(errs, fmt.Errorf("data_points must be positive, got %d", p.DataPoints))
	}
	if !finite(p.InitialTimestep) || p.InitialTimestep <= 0 {
		errs = append(errs, fmt.Errorf("initial_timestep must be a positive number, got %g", p.InitialTimestep))
	}
	if !finite(p.TimestepIncrement) || p.TimestepIncrement <= 0 {
		errs = append(errs, fmt.Errorf("timestep_increment must be a positive number, got %g", p.TimestepIncrement))
	}
	if len(errs) == 0 && p.DataPoints > 0 && !finite(p.TimestepAt(p.DataPoints)) {
		errs = append(errs, fmt.Errorf("timestep at data point %d overflows", p.DataPoints))
	}
	return errors.Join(errs...)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// TimestepAt returns the timestep used for the 1-based data point k
func (p SweepParams) TimestepAt(k int) float64 {
	return p.InitialTimestep + float64(k-1)*p.TimestepIncrement
}

// DefaultSweepParams returns the stock sweep: 20 data points of 100 episodes
func DefaultSweepParams() SweepParams {
	return SweepParams{
		EpisodesPerEpoch:  100,
		DataPoints:        20,
		InitialTimestep:   0.001,
		TimestepIncrement: 0.1,
		LogPath:           "DataRecorder/ragDollWalker.json",
		Schema:            "legacy",
	}
}

// Default returns a config with default values
func Default() *ExperimentConfig {
	return &ExperimentConfig{
		Name:  "timestep_sweep",
		Sweep: DefaultSweepParams(),
		Physics: PhysicsConfig{
			GravityMultiplier:        1.0,
			MaximumDeltaTime:         1.0 / 3.0,
			SolverIterations:         6,
			SolverVelocityIterations: 1,
			ReuseCollisionCallbacks:  true,
		},
		Agent: AgentConfig{
			Seed:        1,
			BaseSuccess: 0.95,
			Decay:       1.5,
		},
		Signals: SignalsConfig{
			Dir: ".stepsweep/signals",
		},
	}
}

// setDefaults mirrors Default onto viper keys
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("name", d.Name)

	v.SetDefault("sweep.episodes_per_epoch", d.Sweep.EpisodesPerEpoch)
	v.SetDefault("sweep.data_points", d.Sweep.DataPoints)
	v.SetDefault("sweep.initial_timestep", d.Sweep.InitialTimestep)
	v.SetDefault("sweep.timestep_increment", d.Sweep.TimestepIncrement)
	v.SetDefault("sweep.log_path", d.Sweep.LogPath)
	v.SetDefault("sweep.schema", d.Sweep.Schema)

	v.SetDefault("physics.gravity_multiplier", d.Physics.GravityMultiplier)
	v.SetDefault("physics.maximum_delta_time", d.Physics.MaximumDeltaTime)
	v.SetDefault("physics.solver_iterations", d.Physics.SolverIterations)
	v.SetDefault("physics.solver_velocity_iterations", d.Physics.SolverVelocityIterations)
	v.SetDefault("physics.reuse_collision_callbacks", d.Physics.ReuseCollisionCallbacks)

	v.SetDefault("agent.seed", d.Agent.Seed)
	v.SetDefault("agent.base_success", d.Agent.BaseSuccess)
	v.SetDefault("agent.decay", d.Agent.Decay)

	v.SetDefault("storage.db_path", d.Storage.DBPath)
	v.SetDefault("signals.dir", d.Signals.Dir)
}

// New returns a viper instance carrying defaults and environment overrides.
// Callers may bind flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if non-empty) into v and unmarshals the result.
// Precedence, highest first: bound flags, environment, file, defaults.
func Load(v *viper.Viper, path string) (*ExperimentConfig, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}

	cfg := &ExperimentConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadConfig loads configuration from a YAML file on top of the defaults
func LoadConfig(path string) (*ExperimentConfig, error) {
	return Load(New(), path)
}
