package experiment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/boristopalov/stepsweep/pkg/agent"
	"github.com/boristopalov/stepsweep/pkg/config"
	"github.com/boristopalov/stepsweep/pkg/core"
	"github.com/boristopalov/stepsweep/pkg/memory"
	"github.com/boristopalov/stepsweep/pkg/recorder"
)

// HostEnvironment is what the reference host loop needs from its simulation
type HostEnvironment interface {
	core.SimulationEnvironment
	agent.Stepper
	Halted() bool
}

// ExperimentStatus reports the host loop's progress
type ExperimentStatus struct {
	Running   bool
	StartTime time.Time
	EndTime   time.Time
	Episodes  int
	Errors    []error
}

// Runner is the reference host: it plays episodes, decides where epochs
// end and reports both to a SweepController.
type Runner struct {
	name       string
	params     config.SweepParams
	env        HostEnvironment
	agent      agent.Agent
	controller *SweepController
	history    *memory.History

	// controllerClock hands episode counting to the controller
	controllerClock bool

	mu     sync.RWMutex
	status ExperimentStatus
	cancel context.CancelFunc
}

type RunnerOption func(*Runner)

// WithControllerClock lets SweepController.AdvanceEpisode count episodes.
// The boundary then fires as the first episode of the next epoch starts.
func WithControllerClock() RunnerOption {
	return func(r *Runner) {
		r.controllerClock = true
	}
}

// WithHistorySize sets how many flushed records Recent keeps
func WithHistorySize(n int) RunnerOption {
	return func(r *Runner) {
		r.history = memory.NewHistory(n)
	}
}

func NewRunner(name string, params config.SweepParams, env HostEnvironment, a agent.Agent, controller *SweepController, opts ...RunnerOption) *Runner {
	r := &Runner{
		name:       name,
		params:     params,
		env:        env,
		agent:      a,
		controller: controller,
		history:    memory.NewHistory(params.DataPoints),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run initializes the controller and plays episodes until the sweep
// finishes, the host is halted from outside, or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.status.Running = true
	r.status.StartTime = time.Now()
	r.cancel = cancel
	r.mu.Unlock()

	defer func() {
		cancel()
		r.mu.Lock()
		r.status.Running = false
		r.status.EndTime = time.Now()
		r.mu.Unlock()
	}()

	if err := r.controller.Initialize(r.params); err != nil {
		return r.fail(err)
	}
	log.Printf("[runner] %s: agent %s starting", r.name, r.agent.GetID())

	if err := r.runLoop(ctx); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *Runner) runLoop(ctx context.Context) error {
	inEpoch := 0
	for !r.controller.IsFinished() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.env.Halted() {
			log.Printf("[runner] %s: host halted before the sweep finished", r.name)
			return nil
		}

		if r.controllerClock {
			pending := r.controller.Snapshot()
			crossed, err := r.controller.AdvanceEpisode()
			if err != nil {
				return err
			}
			if crossed {
				r.flushed(pending)
			}
			if r.controller.IsFinished() {
				return nil
			}
		}

		success, err := r.agent.RunEpisode(ctx, r.env)
		if err != nil {
			if r.env.Halted() && !errors.Is(err, context.Canceled) {
				continue
			}
			return fmt.Errorf("episode failed: %w", err)
		}
		if err := r.controller.OnEpisodeEnd(success); err != nil {
			return err
		}
		r.mu.Lock()
		r.status.Episodes++
		r.mu.Unlock()

		if r.controllerClock {
			continue
		}
		inEpoch++
		if inEpoch < r.params.EpisodesPerEpoch {
			continue
		}
		inEpoch = 0
		pending := r.controller.Snapshot()
		if err := r.controller.OnEpochBoundary(); err != nil {
			return err
		}
		r.flushed(pending)
	}
	return nil
}

func (r *Runner) flushed(rec recorder.Record) {
	r.history.Store(rec)
	log.Printf("[runner] %s: epoch %d at timestep %g: %d/%d succeeded (%.1f%%)",
		r.name, rec.EpochNo, rec.CurrentTimestep, rec.Success, rec.Success+rec.Failure, rec.SuccessRate())
}

func (r *Runner) fail(err error) error {
	r.mu.Lock()
	r.status.Errors = append(r.status.Errors, err)
	r.mu.Unlock()
	return err
}

// Stop cancels a running sweep
func (r *Runner) Stop() error {
	r.mu.RLock()
	cancel := r.cancel
	r.mu.RUnlock()
	if cancel == nil {
		return fmt.Errorf("runner %s is not running", r.name)
	}
	cancel()
	return nil
}

func (r *Runner) GetStatus() ExperimentStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status := r.status
	status.Errors = append([]error(nil), r.status.Errors...)
	return status
}

// Recent returns the records flushed most recently, oldest first
func (r *Runner) Recent() []recorder.Record {
	return r.history.All()
}

func (r *Runner) Controller() *SweepController {
	return r.controller
}
