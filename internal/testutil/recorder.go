package testutil

import (
	"sync"

	"github.com/hupe1980/docmesh/core"
)

// EventRecorder is a core.EventSink that keeps every event it receives.
type EventRecorder struct {
	mu     sync.Mutex
	events []core.Event
}

// Publish implements core.EventSink.
func (r *EventRecorder) Publish(e core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *EventRecorder) Types() []core.EventType {
	events := r.Events()
	out := make([]core.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// OfType returns the recorded events of type t.
func (r *EventRecorder) OfType(t core.EventType) []core.Event {
	var out []core.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
