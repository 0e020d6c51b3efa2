package store

import (
	"context"
	"log"

	"github.com/boristopalov/stepsweep/pkg/config"
	"github.com/boristopalov/stepsweep/pkg/core"
	"github.com/boristopalov/stepsweep/pkg/recorder"
)

// Sink persists the events of a live sweep. The run row is created on the
// first event carrying a new sweep id, normally the start event, which
// carries the sweep's start time and parameters.
type Sink struct {
	db     *DB
	name   string
	params config.SweepParams
	known  map[string]bool
}

func NewSink(db *DB, name string, params config.SweepParams) *Sink {
	return &Sink{
		db:     db,
		name:   name,
		params: params,
		known:  make(map[string]bool),
	}
}

// Consume handles events until the channel is closed or ctx is done
func (s *Sink) Consume(ctx context.Context, events <-chan core.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.Handle(ev); err != nil {
				log.Printf("[store] Warning: %v", err)
			}
		}
	}
}

// Handle persists a single event
func (s *Sink) Handle(ev core.Event) error {
	if err := s.ensureRun(ev); err != nil {
		return err
	}
	switch ev.Type {
	case core.EventRecordFlushed:
		r, ok := ev.Content.(recorder.Record)
		if !ok {
			return nil
		}
		return s.db.AddRecord(ev.SweepID, r)
	case core.EventSweepFinished:
		return s.db.FinishRun(ev.SweepID, ev.Timestamp)
	}
	return nil
}

func (s *Sink) ensureRun(ev core.Event) error {
	if s.known[ev.SweepID] {
		return nil
	}
	params := s.params
	if p, ok := ev.Content.(config.SweepParams); ok && ev.Type == core.EventSweepStarted {
		params = p
	}
	run := &Run{
		ID:        ev.SweepID,
		Name:      s.name,
		Params:    params,
		StartedAt: ev.Timestamp,
	}
	if err := s.db.CreateRun(run); err != nil {
		return err
	}
	s.known[ev.SweepID] = true
	return nil
}
