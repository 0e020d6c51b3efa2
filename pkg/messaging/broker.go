package messaging

import (
	"errors"
	"fmt"
	"sync"

	"github.com/boristopalov/stepsweep/pkg/core"
)

type subscription struct {
	ch    chan<- core.Event
	types map[core.EventType]bool // nil means every type
}

func (s subscription) wants(t core.EventType) bool {
	return s.types == nil || s.types[t]
}

// SimpleBroker implements the Broker interface
// subscribers is keyed by subscriber ID
type SimpleBroker struct {
	subscribers map[string]subscription
	mu          sync.RWMutex
}

var _ Broker = (*SimpleBroker)(nil)

// NewBroker creates a new event broker
func NewBroker() *SimpleBroker {
	return &SimpleBroker{
		subscribers: make(map[string]subscription),
	}
}

// Publish sends the event to every matching subscriber without blocking.
// A full subscriber channel drops the event for that subscriber only.
func (b *SimpleBroker) Publish(event core.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var errs []error
	for id, sub := range b.subscribers {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			errs = append(errs, fmt.Errorf("subscriber %s's channel is full", id))
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a subscriber. With no types it receives every event.
func (b *SimpleBroker) Subscribe(subscriberID string, ch chan<- core.Event, types ...core.EventType) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[subscriberID]; exists {
		return fmt.Errorf("subscriber %s is already subscribed", subscriberID)
	}

	sub := subscription{ch: ch}
	if len(types) > 0 {
		sub.types = make(map[core.EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	b.subscribers[subscriberID] = sub
	return nil
}

// Unsubscribe removes a subscription
func (b *SimpleBroker) Unsubscribe(subscriberID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[subscriberID]; !exists {
		return fmt.Errorf("subscriber %s is not subscribed", subscriberID)
	}

	delete(b.subscribers, subscriberID)
	return nil
}

func (b *SimpleBroker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]subscription)
}
