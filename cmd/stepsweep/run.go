package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/boristopalov/stepsweep/internal/store"
	"github.com/boristopalov/stepsweep/pkg/agent"
	"github.com/boristopalov/stepsweep/pkg/config"
	"github.com/boristopalov/stepsweep/pkg/core"
	"github.com/boristopalov/stepsweep/pkg/environment"
	"github.com/boristopalov/stepsweep/pkg/experiment"
	"github.com/boristopalov/stepsweep/pkg/messaging"
	"github.com/boristopalov/stepsweep/pkg/signals"
)

const haltPollInterval = 500 * time.Millisecond

// runFlagKeys maps run flags onto config keys
var runFlagKeys = map[string]string{
	"log":              "sweep.log_path",
	"episodes":         "sweep.episodes_per_epoch",
	"data-points":      "sweep.data_points",
	"initial-timestep": "sweep.initial_timestep",
	"increment":        "sweep.timestep_increment",
	"schema":           "sweep.schema",
	"db":               "storage.db_path",
	"signals":          "signals.dir",
	"seed":             "agent.seed",
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		clock      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a timestep sweep with the reference host",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.New()
			if err := bindRunFlags(v, cmd); err != nil {
				return err
			}
			cfg, err := config.Load(v, resolveConfigPath(configPath))
			if err != nil {
				return err
			}
			return runSweep(cmd.Context(), cfg, clock)
		},
	}

	d := config.Default()
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (default ./stepsweep.yaml if present)")
	cmd.Flags().StringVar(&clock, "clock", "host", "Who counts episodes: host or controller")
	cmd.Flags().String("log", d.Sweep.LogPath, "Journal file the epoch records are appended to")
	cmd.Flags().Int("episodes", d.Sweep.EpisodesPerEpoch, "Episodes per epoch")
	cmd.Flags().Int("data-points", d.Sweep.DataPoints, "Number of timestep values to sweep")
	cmd.Flags().Float64("initial-timestep", d.Sweep.InitialTimestep, "First fixed timestep")
	cmd.Flags().Float64("increment", d.Sweep.TimestepIncrement, "Timestep increase per data point")
	cmd.Flags().String("schema", d.Sweep.Schema, "Journal schema: legacy or corrected")
	cmd.Flags().String("db", d.Storage.DBPath, "Optional sqlite database the run is recorded in")
	cmd.Flags().String("signals", d.Signals.Dir, "Directory watched for halt and parameter signals")
	cmd.Flags().Int64("seed", d.Agent.Seed, "Agent random seed")
	return cmd
}

// bindRunFlags binds the run flags so that only flags set on the command
// line win over the config file and environment
func bindRunFlags(v *viper.Viper, cmd *cobra.Command) error {
	for flag, key := range runFlagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}

func runSweep(ctx context.Context, cfg *config.ExperimentConfig, clock string) error {
	var runnerOpts []experiment.RunnerOption
	switch clock {
	case "host", "":
	case "controller":
		runnerOpts = append(runnerOpts, experiment.WithControllerClock())
	default:
		return fmt.Errorf("unknown clock %q (want host or controller)", clock)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	env := environment.NewPhysicsEnvironment(environment.DefaultSettings())
	if err := env.Apply(cfg.Physics, cfg.Sweep.InitialTimestep); err != nil {
		return err
	}
	defer func() {
		if err := env.Restore(); err != nil {
			log.Printf("Warning: failed to restore physics settings: %v", err)
		}
	}()

	a, err := agent.NewStochasticAgent(
		agent.WithSeed(cfg.Agent.Seed),
		agent.WithSuccessModel(cfg.Agent.BaseSuccess, cfg.Agent.Decay),
	)
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}

	broker := messaging.NewBroker()
	var consumers sync.WaitGroup
	var channels []chan core.Event

	// Each subscriber gets room for every event of the sweep
	buffer := cfg.Sweep.DataPoints*3 + 8

	consoleCh := make(chan core.Event, buffer)
	if err := broker.Subscribe("console", consoleCh); err != nil {
		return err
	}
	channels = append(channels, consoleCh)
	consumers.Add(1)
	go func() {
		defer consumers.Done()
		consoleReporter(os.Stdout, consoleCh)
	}()

	if cfg.Storage.DBPath != "" {
		db, err := store.Open(cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}
		storeCh := make(chan core.Event, buffer)
		if err := broker.Subscribe("store", storeCh, core.EventSweepStarted, core.EventRecordFlushed, core.EventSweepFinished); err != nil {
			return err
		}
		channels = append(channels, storeCh)
		sink := store.NewSink(db, cfg.Name, cfg.Sweep)
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			sink.Consume(context.Background(), storeCh)
		}()
	}

	// Subscribers must drain before the database is closed
	defer func() {
		broker.Reset()
		for _, ch := range channels {
			close(ch)
		}
		consumers.Wait()
	}()

	watcher, err := signals.Watch(cfg.Signals.Dir, env, env.Halt)
	if err != nil {
		return err
	}
	defer watcher.Close()
	watcher.Clear()
	go pollHalt(ctx, watcher)

	controller := experiment.NewSweepController(env,
		experiment.WithPublisher(broker),
		experiment.WithWarningHandler(func(err error) {
			log.Printf("[sweep] Warning: %v", err)
		}),
	)
	runner := experiment.NewRunner(cfg.Name, cfg.Sweep, env, a, controller, runnerOpts...)

	// Handle interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Println("\nReceived interrupt, stopping sweep...")
			cancel()
		case <-ctx.Done():
		}
	}()

	printStatus(os.Stdout, "▶", fmt.Sprintf("sweeping %d timesteps from %g (+%g), %d episodes each → %s",
		cfg.Sweep.DataPoints, cfg.Sweep.InitialTimestep, cfg.Sweep.TimestepIncrement,
		cfg.Sweep.EpisodesPerEpoch, cfg.Sweep.LogPath), color.FgCyan)

	runErr := runner.Run(ctx)

	status := controller.Status()
	switch {
	case runErr != nil && ctx.Err() != nil:
		printStatus(os.Stdout, "■", fmt.Sprintf("sweep interrupted at data point %d/%d", status.DataPointIndex, status.DataPoints), color.FgYellow)
		return nil
	case runErr != nil:
		return runErr
	case status.State != core.SweepStateFinished:
		printStatus(os.Stdout, "■", fmt.Sprintf("sweep halted at data point %d/%d", status.DataPointIndex, status.DataPoints), color.FgYellow)
	}
	if n := len(status.Warnings); n > 0 {
		printStatus(os.Stdout, "⚠", fmt.Sprintf("%d record(s) could not be written to %s", n, cfg.Sweep.LogPath), color.FgYellow)
	}
	return nil
}

// pollHalt backs up the file watcher by checking the halt file directly
func pollHalt(ctx context.Context, w *signals.Watcher) {
	ticker := time.NewTicker(haltPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.ShouldHalt() {
				return
			}
		}
	}
}
