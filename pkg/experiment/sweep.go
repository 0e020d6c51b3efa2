package experiment

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boristopalov/stepsweep/pkg/config"
	"github.com/boristopalov/stepsweep/pkg/core"
	"github.com/boristopalov/stepsweep/pkg/recorder"
)

var (
	// ErrInvalidState is returned when an operation is called out of sequence
	ErrInvalidState = errors.New("sweep: invalid state")
	// ErrInvalidConfig is returned when sweep parameters are out of range
	ErrInvalidConfig = errors.New("sweep: invalid parameters")
)

// LogWriteError reports a record that could not be appended to the journal.
// The sweep keeps going; the record is lost.
type LogWriteError struct {
	Path   string
	Record recorder.Record
	Err    error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("failed to write epoch %d record to %s: %v", e.Record.EpochNo, e.Path, e.Err)
}

func (e *LogWriteError) Unwrap() error {
	return e.Err
}

// RecordWriter persists flushed epoch records
type RecordWriter interface {
	Append(r recorder.Record) error
	Path() string
}

// SweepController steps the physics timestep through a fixed number of
// data points, flushing one record per epoch.
type SweepController struct {
	env       core.SimulationEnvironment
	journal   RecordWriter
	publisher core.Publisher
	onWarning func(error)

	mu             sync.Mutex
	sweepID        string
	params         config.SweepParams
	stats          *recorder.EpisodeStats
	initialized    bool
	finished       bool
	episodeInEpoch int
	dataPointIndex int
	startTime      time.Time
	endTime        time.Time
	warnings       []string
}

// ControllerOption configures a SweepController
type ControllerOption func(*SweepController)

// WithJournal overrides the journal derived from the sweep parameters
func WithJournal(j RecordWriter) ControllerOption {
	return func(c *SweepController) {
		c.journal = j
	}
}

// WithPublisher sends sweep events to p
func WithPublisher(p core.Publisher) ControllerOption {
	return func(c *SweepController) {
		c.publisher = p
	}
}

// WithWarningHandler receives non-fatal failures such as journal write errors
func WithWarningHandler(fn func(error)) ControllerOption {
	return func(c *SweepController) {
		c.onWarning = fn
	}
}

// NewSweepController creates a controller bound to a host environment.
// Initialize must be called before any episode is reported.
func NewSweepController(env core.SimulationEnvironment, opts ...ControllerOption) *SweepController {
	c := &SweepController{
		env: env,
		onWarning: func(err error) {
			log.Printf("[sweep] Warning: %v", err)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize arms the controller with the parameters for one sweep
func (c *SweepController) Initialize(params config.SweepParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return fmt.Errorf("%w: already initialized", ErrInvalidState)
	}
	// An injected journal does not need a log path
	validate := params.Validate
	if c.journal != nil {
		validate = params.ValidateRanges
	}
	if err := validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.journal == nil {
		schema, err := recorder.ParseSchema(params.Schema)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		c.journal = recorder.NewJournal(params.LogPath, schema)
	}

	c.params = params
	c.sweepID = uuid.New().String()
	c.stats = recorder.NewEpisodeStats(params.InitialTimestep)
	c.episodeInEpoch = 0
	c.dataPointIndex = 1
	c.finished = false
	c.initialized = true
	c.startTime = time.Now()
	c.env.SetCurrentTimestep(params.InitialTimestep)

	log.Printf("[sweep] %s started: %d data points x %d episodes, timestep %g (+%g)",
		c.sweepID[:8], params.DataPoints, params.EpisodesPerEpoch, params.InitialTimestep, params.TimestepIncrement)
	c.publishAt(core.EventSweepStarted, params, c.startTime)
	return nil
}

// OnEpisodeEnd records the outcome of one completed episode
func (c *SweepController) OnEpisodeEnd(success bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return fmt.Errorf("%w: episode reported before initialize", ErrInvalidState)
	}
	c.stats.RecordOutcome(success)
	return nil
}

// AdvanceEpisode counts one episode on the controller's own clock and runs
// the epoch boundary once more than EpisodesPerEpoch have been counted.
// It reports whether a boundary was crossed.
func (c *SweepController) AdvanceEpisode() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return false, fmt.Errorf("%w: episode counted before initialize", ErrInvalidState)
	}
	if c.finished {
		return false, nil
	}
	c.episodeInEpoch++
	if c.episodeInEpoch <= c.params.EpisodesPerEpoch {
		return false, nil
	}
	c.episodeInEpoch = 1
	c.epochBoundary()
	return true, nil
}

// OnEpochBoundary flushes the epoch's record and moves to the next data
// point, or finishes the sweep after the last one. Late calls after the
// sweep has finished do nothing.
func (c *SweepController) OnEpochBoundary() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return fmt.Errorf("%w: epoch boundary before initialize", ErrInvalidState)
	}
	if c.finished {
		return nil
	}
	c.episodeInEpoch = 0
	c.epochBoundary()
	return nil
}

// epochBoundary must be called with mu held on a running sweep
func (c *SweepController) epochBoundary() {
	record := c.stats.Snapshot()
	if err := c.journal.Append(record); err != nil {
		c.warn(&LogWriteError{Path: c.journal.Path(), Record: record, Err: err})
	} else {
		c.publish(core.EventRecordFlushed, record)
	}

	c.stats.Reset()
	c.dataPointIndex++

	if c.dataPointIndex > c.params.DataPoints {
		c.finished = true
		c.endTime = time.Now()
		log.Printf("[sweep] %s finished after %d data points", c.sweepID[:8], c.params.DataPoints)
		c.publish(core.EventSweepFinished, record)
		c.env.Halt()
		return
	}

	timestep := c.params.TimestepAt(c.dataPointIndex)
	c.env.SetCurrentTimestep(timestep)
	c.stats.SetTimestep(timestep)
	c.stats.AdvanceEpoch()
	c.publish(core.EventTimestepChanged, timestep)
}

func (c *SweepController) warn(err error) {
	c.warnings = append(c.warnings, err.Error())
	if c.onWarning != nil {
		c.onWarning(err)
	}
	c.publish(core.EventWarning, err)
}

func (c *SweepController) publish(t core.EventType, content any) {
	c.publishAt(t, content, time.Now())
}

func (c *SweepController) publishAt(t core.EventType, content any, at time.Time) {
	if c.publisher == nil {
		return
	}
	err := c.publisher.Publish(core.Event{
		SweepID:   c.sweepID,
		Type:      t,
		Content:   content,
		Timestamp: at,
	})
	if err != nil {
		log.Printf("[sweep] Warning: failed to publish %s event: %v", t, err)
	}
}

// IsFinished reports whether every data point has been swept
func (c *SweepController) IsFinished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Snapshot returns the in-progress epoch's counters
func (c *SweepController) Snapshot() recorder.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stats == nil {
		return recorder.Record{}
	}
	return c.stats.Snapshot()
}

// Status returns a copy of the controller's progress
func (c *SweepController) Status() core.SweepStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := core.SweepStatus{
		SweepID:        c.sweepID,
		State:          core.SweepStateIdle,
		EpisodeInEpoch: c.episodeInEpoch,
		DataPointIndex: c.dataPointIndex,
		DataPoints:     c.params.DataPoints,
		StartTime:      c.startTime,
		EndTime:        c.endTime,
		Warnings:       append([]string(nil), c.warnings...),
	}
	if c.stats != nil {
		status.CurrentTimestep = c.stats.CurrentTimestep()
	}
	switch {
	case c.finished:
		status.State = core.SweepStateFinished
	case c.initialized:
		status.State = core.SweepStateRunning
	}
	return status
}
