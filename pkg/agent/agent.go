package agent

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
)

// Agent plays one episode against the host and reports whether it reached its goal
type Agent interface {
	GetID() string
	RunEpisode(ctx context.Context, env Stepper) (bool, error)
}

// Stepper is the part of the host an agent advances
type Stepper interface {
	CurrentTimestep() float64
	Step() error
}

// StochasticAgent stands in for a trained policy. Its chance of reaching
// the goal falls off exponentially as the physics timestep grows.
type StochasticAgent struct {
	id          string
	rng         *rand.Rand
	baseSuccess float64
	decay       float64
	horizon     int
}

type AgentParams struct {
	AgentID     string
	Seed        int64
	BaseSuccess float64
	Decay       float64
	Horizon     int
}

type AgentOption func(*AgentParams)

func WithAgentId(id string) AgentOption {
	return func(p *AgentParams) {
		p.AgentID = id
	}
}

func WithSeed(seed int64) AgentOption {
	return func(p *AgentParams) {
		p.Seed = seed
	}
}

// WithSuccessModel sets the success probability at timestep zero and its decay rate
func WithSuccessModel(base, decay float64) AgentOption {
	return func(p *AgentParams) {
		p.BaseSuccess = base
		p.Decay = decay
	}
}

// WithHorizon sets how many physics steps one episode lasts
func WithHorizon(steps int) AgentOption {
	return func(p *AgentParams) {
		p.Horizon = steps
	}
}

func NewStochasticAgent(opts ...AgentOption) (*StochasticAgent, error) {
	params := &AgentParams{
		AgentID:     uuid.New().String(),
		Seed:        1,
		BaseSuccess: 0.95,
		Decay:       1.5,
		Horizon:     10,
	}
	for _, opt := range opts {
		opt(params)
	}

	if params.BaseSuccess < 0 || params.BaseSuccess > 1 {
		return nil, fmt.Errorf("base success %g outside [0, 1]", params.BaseSuccess)
	}
	if params.Horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", params.Horizon)
	}

	return &StochasticAgent{
		id:          params.AgentID,
		rng:         rand.New(rand.NewSource(params.Seed)),
		baseSuccess: params.BaseSuccess,
		decay:       params.Decay,
		horizon:     params.Horizon,
	}, nil
}

func (a *StochasticAgent) GetID() string {
	return a.id
}

// SuccessProbability is the chance of success at the given timestep
func (a *StochasticAgent) SuccessProbability(timestep float64) float64 {
	p := a.baseSuccess * math.Exp(-a.decay*timestep)
	return math.Max(0, math.Min(1, p))
}

// RunEpisode steps the host for the agent's horizon and draws the outcome
func (a *StochasticAgent) RunEpisode(ctx context.Context, env Stepper) (bool, error) {
	for i := 0; i < a.horizon; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if err := env.Step(); err != nil {
			return false, fmt.Errorf("agent %s: step %d: %w", a.id, i, err)
		}
	}
	return a.rng.Float64() < a.SuccessProbability(env.CurrentTimestep()), nil
}
