package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/logging"
)

// DefaultMaxTurns bounds supervisor decisions per run when not configured.
const DefaultMaxTurns = 10

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// MaxTurns bounds the number of supervisor decisions in a run.
	MaxTurns int
	Logger   logging.Logger
	// Sink receives lifecycle events; nil disables emission.
	Sink core.EventSink
}

// Result reports how a run ended.
type Result struct {
	RunID   string
	Outcome core.Outcome
	// Turns is the number of supervisor decisions requested.
	Turns    int
	Messages []core.Message
	// Err is set for failure outcomes: a contract violation, a supervisor
	// error or cancellation.
	Err error
}

// Final returns the last worker message of the run, if any.
func (r Result) Final() (core.Message, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		m := r.Messages[i]
		if m.Author != core.UserAuthor && !m.IsSystem() {
			return m, true
		}
	}
	return core.Message{}, false
}

// IsContractViolation reports whether the run failed on a contract violation.
func (r Result) IsContractViolation() bool {
	return errors.Is(r.Err, core.ErrContractViolation)
}

// Dispatcher alternates supervisor decisions and worker turns over one
// conversation:
//
//	RUNNING --FINISH--------------> DONE (success)
//	RUNNING --contract violation--> DONE (failure)
//	RUNNING --turn ceiling--------> DONE (inconclusive)
//
// A Dispatcher is stateless between runs and safe for concurrent use as long
// as every run has its own conversation.
type Dispatcher struct {
	supervisor Supervisor
	roster     *Roster
	maxTurns   int
	logger     logging.Logger
	sink       core.EventSink
}

// NewDispatcher wires a supervisor to a roster.
func NewDispatcher(supervisor Supervisor, roster *Roster, optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{
		MaxTurns: DefaultMaxTurns,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}

	return &Dispatcher{
		supervisor: supervisor,
		roster:     roster,
		maxTurns:   opts.MaxTurns,
		logger:     opts.Logger,
		sink:       opts.Sink,
	}
}

// WithSink returns a copy of the dispatcher that also publishes to sink.
func (d *Dispatcher) WithSink(sink core.EventSink) *Dispatcher {
	cp := *d
	switch {
	case sink == nil:
	case d.sink == nil:
		cp.sink = sink
	default:
		cp.sink = core.MultiSink{d.sink, sink}
	}
	return &cp
}

// Roster returns the dispatcher's roster.
func (d *Dispatcher) Roster() *Roster { return d.roster }

// MaxTurns returns the configured turn ceiling.
func (d *Dispatcher) MaxTurns() int { return d.maxTurns }

// Run executes a run with a generated id.
func (d *Dispatcher) Run(ctx context.Context, conv *core.Conversation) Result {
	return d.RunWithID(ctx, core.NewID(), conv)
}

// RunWithID executes the dispatch loop over conv until it reaches DONE.
// Cancellation of ctx is observed between turns.
func (d *Dispatcher) RunWithID(ctx context.Context, runID string, conv *core.Conversation) Result {
	ctx = core.WithRunID(ctx, runID)
	logger := logging.With(d.logger, "run_id", runID)
	limiter := core.NewTurnLimiter(d.maxTurns)

	d.emit(core.NewEvent(runID, core.EventRunStarted))
	logger.Info("dispatch.run.start", "max_turns", d.maxTurns, "workers", d.roster.Len())

	finish := func(outcome core.Outcome, err error) Result {
		res := Result{
			RunID:    runID,
			Outcome:  outcome,
			Turns:    limiter.Count(),
			Messages: conv.Messages(),
			Err:      err,
		}

		ev := core.NewEvent(runID, core.EventRunFinished)
		ev.Turn = res.Turns
		ev.Outcome = outcome
		if err != nil {
			ev.Error = err.Error()
			logger.Warn("dispatch.run.finished", "outcome", outcome, "turns", res.Turns, "error", err.Error())
		} else {
			logger.Info("dispatch.run.finished", "outcome", outcome, "turns", res.Turns)
		}
		d.emit(ev)

		return res
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(core.OutcomeFailure, fmt.Errorf("run cancelled: %w", err))
		}

		if err := limiter.Increment(); err != nil {
			return finish(core.OutcomeInconclusive, nil)
		}
		turn := limiter.Count()

		logger.Debug("dispatch.turn.start", "turn", turn)

		decision, err := d.supervisor.Decide(ctx, conv, d.roster)
		if err != nil {
			return finish(core.OutcomeFailure, err)
		}

		ev := core.NewEvent(runID, core.EventRouteDecided)
		ev.Turn = turn
		ev.Decision = decision.Next
		d.emit(ev)

		if decision.IsFinish() {
			return finish(core.OutcomeSuccess, nil)
		}

		worker, ok := d.roster.Resolve(decision.Next)
		if !ok {
			return finish(core.OutcomeFailure, core.NewContractViolation(ReasonUnknownWorker, decision.Next, d.roster.Options()))
		}

		msg := worker.Run(ctx, conv)
		msg.Author = worker.Name()
		if msg.ID == "" {
			msg.ID = core.NewID()
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now().UTC()
		}
		conv.Append(msg)

		ev = core.NewEvent(runID, core.EventWorkerMessage)
		ev.Turn = turn
		ev.Author = msg.Author
		ev.Message = &msg
		d.emit(ev)

		logger.Debug("dispatch.turn.completed", "turn", turn, "worker", msg.Author)
	}
}

func (d *Dispatcher) emit(e core.Event) {
	if d.sink != nil {
		d.sink.Publish(e)
	}
}
