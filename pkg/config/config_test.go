package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Sweep.EpisodesPerEpoch != 100 {
		t.Errorf("expected 100 episodes per epoch, got %d", cfg.Sweep.EpisodesPerEpoch)
	}
	if cfg.Sweep.DataPoints != 20 {
		t.Errorf("expected 20 data points, got %d", cfg.Sweep.DataPoints)
	}
	if cfg.Sweep.InitialTimestep != 0.001 {
		t.Errorf("expected initial timestep 0.001, got %g", cfg.Sweep.InitialTimestep)
	}
	if cfg.Sweep.TimestepIncrement != 0.1 {
		t.Errorf("expected increment 0.1, got %g", cfg.Sweep.TimestepIncrement)
	}
	if cfg.Sweep.Schema != "legacy" {
		t.Errorf("expected legacy schema, got %q", cfg.Sweep.Schema)
	}
	if cfg.Physics.SolverIterations != 6 {
		t.Errorf("expected 6 solver iterations, got %d", cfg.Physics.SolverIterations)
	}
	if err := cfg.Sweep.Validate(); err != nil {
		t.Errorf("default sweep params should validate: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stepsweep.yaml")
		content := `
name: walker
sweep:
  episodes_per_epoch: 3
  data_points: 4
  initial_timestep: 0.5
  timestep_increment: 0.25
  log_path: out/walker.json
physics:
  gravity_multiplier: 3
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}

		if cfg.Name != "walker" {
			t.Errorf("expected name 'walker', got %q", cfg.Name)
		}
		if cfg.Sweep.EpisodesPerEpoch != 3 || cfg.Sweep.DataPoints != 4 {
			t.Errorf("unexpected sweep sizes: %+v", cfg.Sweep)
		}
		if cfg.Sweep.InitialTimestep != 0.5 || cfg.Sweep.TimestepIncrement != 0.25 {
			t.Errorf("unexpected timesteps: %+v", cfg.Sweep)
		}
		if cfg.Sweep.LogPath != "out/walker.json" {
			t.Errorf("expected log path out/walker.json, got %q", cfg.Sweep.LogPath)
		}
		if cfg.Physics.GravityMultiplier != 3 {
			t.Errorf("expected gravity multiplier 3, got %g", cfg.Physics.GravityMultiplier)
		}
		// untouched keys keep their defaults
		if cfg.Physics.SolverIterations != 6 {
			t.Errorf("expected default solver iterations 6, got %d", cfg.Physics.SolverIterations)
		}
		if cfg.Sweep.Schema != "legacy" {
			t.Errorf("expected default schema legacy, got %q", cfg.Sweep.Schema)
		}
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("STEPSWEEP_SWEEP_DATA_POINTS", "7")

		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Sweep.DataPoints != 7 {
			t.Errorf("expected data points 7 from env, got %d", cfg.Sweep.DataPoints)
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func TestSweepParams(t *testing.T) {
	t.Run("validate rejects non-positive sizes", func(t *testing.T) {
		p := DefaultSweepParams()
		p.EpisodesPerEpoch = 0
		p.DataPoints = -1
		if err := p.Validate(); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("validate rejects non-increasing sweeps", func(t *testing.T) {
		for _, inc := range []float64{0, -0.1, -0.0001} {
			p := DefaultSweepParams()
			p.TimestepIncrement = inc
			if err := p.Validate(); err == nil {
				t.Errorf("expected validation error for increment %g", inc)
			}
		}
	})

	t.Run("validate rejects non-finite timesteps", func(t *testing.T) {
		cases := map[string]func(*SweepParams){
			"NaN initial":       func(p *SweepParams) { p.InitialTimestep = math.NaN() },
			"+Inf initial":      func(p *SweepParams) { p.InitialTimestep = math.Inf(1) },
			"NaN increment":     func(p *SweepParams) { p.TimestepIncrement = math.NaN() },
			"+Inf increment":    func(p *SweepParams) { p.TimestepIncrement = math.Inf(1) },
			"overflowing sweep": func(p *SweepParams) { p.TimestepIncrement = math.MaxFloat64 },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				p := DefaultSweepParams()
				mutate(&p)
				if err := p.Validate(); err == nil {
					t.Errorf("expected validation error, params %+v", p)
				}
			})
		}
	})

	t.Run("ranges do not need a log path", func(t *testing.T) {
		p := DefaultSweepParams()
		p.LogPath = ""
		if err := p.ValidateRanges(); err != nil {
			t.Errorf("ValidateRanges failed: %v", err)
		}
		if err := p.Validate(); err == nil {
			t.Error("expected Validate to require log_path")
		}
	})

	t.Run("timestep at data point", func(t *testing.T) {
		p := SweepParams{InitialTimestep: 0.5, TimestepIncrement: 0.25}
		if got := p.TimestepAt(1); got != 0.5 {
			t.Errorf("TimestepAt(1) = %g, want 0.5", got)
		}
		if got := p.TimestepAt(3); got != 1.0 {
			t.Errorf("TimestepAt(3) = %g, want 1.0", got)
		}
	})
}
