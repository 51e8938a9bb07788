package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a point in a dispatch run's lifecycle.
type EventType string

const (
	// EventRunStarted is emitted once before the first supervisor decision.
	EventRunStarted EventType = "run.started"
	// EventRouteDecided carries the supervisor's choice for a turn.
	EventRouteDecided EventType = "route.decided"
	// EventWorkerMessage carries the message a worker appended.
	EventWorkerMessage EventType = "worker.message"
	// EventRunFinished is emitted once with the run outcome.
	EventRunFinished EventType = "run.finished"
)

// Event is the record streamed to observers while a run progresses. After
// emission it should be treated as immutable.
type Event struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Type      EventType `json:"type"`
	Turn      int       `json:"turn,omitempty"`
	Author    string    `json:"author,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	Outcome   Outcome   `json:"outcome,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event of type t bound to a run.
func NewEvent(runID string, t EventType) Event {
	return Event{
		ID:        NewID(),
		RunID:     runID,
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}

// IsTerminal reports whether the event closes a run.
func (e Event) IsTerminal() bool { return e.Type == EventRunFinished }

// NewID generates a new unique identifier.
func NewID() string { return uuid.NewString() }

// EventSink receives run events. Implementations must not block the caller
// for long; the dispatch loop emits synchronously between turns.
type EventSink interface {
	Publish(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// Publish implements EventSink.
func (f EventSinkFunc) Publish(e Event) { f(e) }

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

// Publish implements EventSink.
func (m MultiSink) Publish(e Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(e)
		}
	}
}
