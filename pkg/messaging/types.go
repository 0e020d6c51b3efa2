package messaging

import (
	"github.com/boristopalov/stepsweep/pkg/core"
)

// Broker routes sweep events to subscribers
type Broker interface {
	// Publish delivers an event to every subscriber interested in its type
	Publish(event core.Event) error
	// Subscribe registers a channel, optionally filtered to some event types
	Subscribe(subscriberID string, ch chan<- core.Event, types ...core.EventType) error
	// Unsubscribe removes a subscription
	Unsubscribe(subscriberID string) error
}
