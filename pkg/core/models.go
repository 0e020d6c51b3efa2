package core

import (
	"time"
)

// EventType names the kind of sweep event being published
type EventType string

const (
	EventSweepStarted    EventType = "sweep_started"
	EventRecordFlushed   EventType = "record_flushed"
	EventTimestepChanged EventType = "timestep_changed"
	EventSweepFinished   EventType = "sweep_finished"
	EventWarning         EventType = "warning"
)

// Event is a notification emitted by a running sweep
type Event struct {
	SweepID   string    // Sweep run that produced the event
	Type      EventType // What happened
	Content   any       // Payload, typed per event type
	Timestamp time.Time // When the event was emitted
}

// SweepState is the coarse lifecycle state of a sweep
type SweepState string

const (
	SweepStateIdle     SweepState = "idle"
	SweepStateRunning  SweepState = "running"
	SweepStateFinished SweepState = "finished"
)

// SweepStatus is a point-in-time view of a sweep's progress
type SweepStatus struct {
	SweepID         string
	State           SweepState
	EpisodeInEpoch  int
	DataPointIndex  int
	DataPoints      int
	CurrentTimestep float64
	StartTime       time.Time
	EndTime         time.Time
	Warnings        []string
}
