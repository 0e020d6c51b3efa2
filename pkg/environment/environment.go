package environment

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/boristopalov/stepsweep/pkg/config"
	"github.com/boristopalov/stepsweep/pkg/core"
)

// GravityParameter is the named parameter that replaces the gravity vector
const GravityParameter = "gravity"

type Vector3 struct {
	X, Y, Z float64
}

func (v Vector3) Scale(f float64) Vector3 {
	return Vector3{v.X * f, v.Y * f, v.Z * f}
}

// Settings are the process-wide physics settings of the host
type Settings struct {
	Gravity                  Vector3
	FixedDeltaTime           float64
	MaximumDeltaTime         float64
	SolverIterations         int
	SolverVelocityIterations int
	ReuseCollisionCallbacks  bool
}

// DefaultSettings are the settings of a freshly started host
func DefaultSettings() Settings {
	return Settings{
		Gravity:                  Vector3{0, -9.81, 0},
		FixedDeltaTime:           0.02,
		MaximumDeltaTime:         1.0 / 3.0,
		SolverIterations:         6,
		SolverVelocityIterations: 1,
		ReuseCollisionCallbacks:  false,
	}
}

type State struct {
	Status    string
	Step      uint64
	SimTime   float64
	Timestamp time.Time
}

// PhysicsEnvironment is the reference host. It owns the global physics
// settings, hands the sweep read/write access to the fixed timestep and
// records halt requests.
type PhysicsEnvironment struct {
	mu        sync.RWMutex
	settings  Settings
	original  *Settings
	callbacks map[string][]func(float64)
	halted    bool
	haltCount int
	state     State
}

var (
	_ core.SimulationEnvironment = (*PhysicsEnvironment)(nil)
	_ core.ParameterNotifier     = (*PhysicsEnvironment)(nil)
)

func NewPhysicsEnvironment(settings Settings) *PhysicsEnvironment {
	return &PhysicsEnvironment{
		settings:  settings,
		callbacks: make(map[string][]func(float64)),
		state: State{
			Status:    "idle",
			Timestamp: time.Now(),
		},
	}
}

// Apply saves the current settings and overrides them for a sweep run.
// It also wires the gravity parameter channel. Restore undoes it.
func (e *PhysicsEnvironment) Apply(cfg config.PhysicsConfig, fixedDeltaTime float64) error {
	e.mu.Lock()
	if e.original != nil {
		e.mu.Unlock()
		return fmt.Errorf("physics overrides already applied")
	}
	saved := e.settings
	e.original = &saved

	e.settings.Gravity = e.settings.Gravity.Scale(cfg.GravityMultiplier)
	e.settings.FixedDeltaTime = fixedDeltaTime
	e.settings.MaximumDeltaTime = cfg.MaximumDeltaTime
	e.settings.SolverIterations = cfg.SolverIterations
	e.settings.SolverVelocityIterations = cfg.SolverVelocityIterations
	e.settings.ReuseCollisionCallbacks = cfg.ReuseCollisionCallbacks
	e.state.Status = "running"
	e.mu.Unlock()

	e.RegisterCallback(GravityParameter, func(f float64) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.settings.Gravity = Vector3{0, -f, 0}
	})
	return nil
}

// Restore puts back the settings saved by Apply
func (e *PhysicsEnvironment) Restore() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.original == nil {
		return fmt.Errorf("no physics overrides to restore")
	}
	e.settings = *e.original
	e.original = nil
	delete(e.callbacks, GravityParameter)
	e.state.Status = "idle"
	return nil
}

func (e *PhysicsEnvironment) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

func (e *PhysicsEnvironment) CurrentTimestep() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings.FixedDeltaTime
}

func (e *PhysicsEnvironment) SetCurrentTimestep(timestep float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings.FixedDeltaTime = timestep
}

// Halt stops the run. Further Step calls are refused.
func (e *PhysicsEnvironment) Halt() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.halted {
		log.Printf("[env] halt requested at step %d", e.state.Step)
	}
	e.halted = true
	e.haltCount++
	e.state.Status = "halted"
}

func (e *PhysicsEnvironment) Halted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.halted
}

// HaltCount reports how many times Halt has been called
func (e *PhysicsEnvironment) HaltCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.haltCount
}

// Step advances the simulated clock by one fixed timestep
func (e *PhysicsEnvironment) Step() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.halted {
		return fmt.Errorf("environment halted")
	}
	e.state.Step++
	e.state.SimTime += e.settings.FixedDeltaTime
	e.state.Timestamp = time.Now()
	return nil
}

func (e *PhysicsEnvironment) GetState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// RegisterCallback invokes fn whenever the named parameter changes
func (e *PhysicsEnvironment) RegisterCallback(name string, fn func(value float64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks[name] = append(e.callbacks[name], fn)
}

// SetParameter delivers a named parameter value to its callbacks
func (e *PhysicsEnvironment) SetParameter(name string, value float64) error {
	e.mu.RLock()
	fns := append([]func(float64){}, e.callbacks[name]...)
	e.mu.RUnlock()

	if len(fns) == 0 {
		return fmt.Errorf("no callback registered for parameter %q", name)
	}
	for _, fn := range fns {
		fn(value)
	}
	return nil
}

// Parameters lists the names that currently have callbacks
func (e *PhysicsEnvironment) Parameters() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.callbacks))
	for name := range e.callbacks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears the halt flag and the simulated clock. Settings are kept.
func (e *PhysicsEnvironment) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.halted = false
	e.haltCount = 0
	e.state = State{
		Status:    "idle",
		Timestamp: time.Now(),
	}
	if e.original != nil {
		e.state.Status = "running"
	}
	return nil
}
