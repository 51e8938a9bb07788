package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/docmesh/core"
)

// Finish is the reserved routing option that ends a run.
const Finish = "FINISH"

// Worker performs one bounded task over the shared conversation and returns
// a single message. Failures are encoded in the message content; Run never
// returns an error.
type Worker interface {
	Name() string
	Description() string
	Run(ctx context.Context, conv *core.Conversation) core.Message
}

// Roster is the closed, ordered set of workers a supervisor may route to.
// It is immutable after construction.
type Roster struct {
	workers []Worker
	byName  map[string]Worker
}

// NewRoster validates and indexes workers. Names must be non-empty, unique
// and different from Finish.
func NewRoster(workers ...Worker) (*Roster, error) {
	if len(workers) == 0 {
		return nil, fmt.Errorf("roster: at least one worker is required")
	}

	r := &Roster{
		workers: make([]Worker, 0, len(workers)),
		byName:  make(map[string]Worker, len(workers)),
	}

	for _, w := range workers {
		name := w.Name()
		switch {
		case strings.TrimSpace(name) == "":
			return nil, fmt.Errorf("roster: worker name is empty")
		case name == Finish:
			return nil, fmt.Errorf("roster: worker name %q is reserved", Finish)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("roster: duplicate worker name %q", name)
		}

		r.workers = append(r.workers, w)
		r.byName[name] = w
	}

	return r, nil
}

// Names returns worker names in roster order.
func (r *Roster) Names() []string {
	names := make([]string, len(r.workers))
	for i, w := range r.workers {
		names[i] = w.Name()
	}
	return names
}

// Options returns the closed routing option set: Finish followed by the
// worker names.
func (r *Roster) Options() []string {
	return append([]string{Finish}, r.Names()...)
}

// Resolve returns the worker registered under name.
func (r *Roster) Resolve(name string) (Worker, bool) {
	w, ok := r.byName[name]
	return w, ok
}

// Len returns the number of workers.
func (r *Roster) Len() int { return len(r.workers) }

// Describe renders one "- name: description" line per worker.
func (r *Roster) Describe() string {
	var b strings.Builder
	for _, w := range r.workers {
		fmt.Fprintf(&b, "- %s: %s\n", w.Name(), w.Description())
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Valid reports whether next belongs to the option set.
func (r *Roster) Valid(next string) bool {
	if next == Finish {
		return true
	}
	_, ok := r.byName[next]
	return ok
}
