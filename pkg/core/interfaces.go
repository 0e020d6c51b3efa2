package core

// SimulationEnvironment is the slice of the host the sweep core is allowed to touch
type SimulationEnvironment interface {
	// CurrentTimestep returns the fixed physics timestep currently in effect
	CurrentTimestep() float64
	// SetCurrentTimestep replaces the fixed physics timestep
	SetCurrentTimestep(timestep float64)
	// Halt tells the host to stop the simulation run
	Halt()
}

// ParameterNotifier lets an outside channel push named parameter values into the host
type ParameterNotifier interface {
	// RegisterCallback invokes fn whenever the named parameter changes
	RegisterCallback(name string, fn func(value float64))
}

// Publisher fans sweep events out to observers
type Publisher interface {
	Publish(event Event) error
}
