package memory

import (
	"sync"

	"github.com/boristopalov/stepsweep/pkg/recorder"
)

// History keeps the most recent flushed records for display
type History struct {
	records  []recorder.Record
	capacity int
	mu       sync.RWMutex
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{
		records:  make([]recorder.Record, 0, capacity),
		capacity: capacity,
	}
}

// All returns a copy of the stored records, oldest first
func (h *History) All() []recorder.Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	records := make([]recorder.Record, len(h.records))
	copy(records, h.records)
	return records
}

// Last returns the newest record, if any
func (h *History) Last() (recorder.Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.records) == 0 {
		return recorder.Record{}, false
	}
	return h.records[len(h.records)-1], true
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Store appends a record, evicting the oldest once full
func (h *History) Store(r recorder.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, r)
	if len(h.records) > h.capacity {
		h.records = h.records[1:]
	}
}
