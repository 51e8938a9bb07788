package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/docmesh/agent"
	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/logging"
)

// ErrRunNotFound is returned for ids that are not active.
var ErrRunNotFound = errors.New("run not found")

// RunRecorder persists run outcome metadata.
type RunRecorder interface {
	StartRun(ctx context.Context, id, task string, startedAt time.Time) error
	FinishRun(ctx context.Context, id string, outcome core.Outcome, turns int, runErr string, finishedAt time.Time) error
}

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns limits concurrent dispatch runs.
	MaxConcurrentRuns int
	// Sinks receive the events of every run.
	Sinks []core.EventSink
	// Recorder stores run outcomes; nil disables recording.
	Recorder RunRecorder
	Logger   logging.Logger
}

// Run states reported by Status.
const (
	StateQueued  = "queued"
	StateRunning = "running"
)

// Status describes an active run.
type Status struct {
	RunID     string         `json:"run_id"`
	Task      string         `json:"task"`
	State     string         `json:"state"`
	StartedAt time.Time      `json:"started_at"`
	Messages  []core.Message `json:"messages"`
}

type activeRun struct {
	task      string
	conv      *core.Conversation
	cancel    context.CancelFunc
	startedAt time.Time
	running   bool // guarded by Runner.mu
}

// Runner coordinates dispatch runs. A run is active from the moment its id
// is handed out, including while it waits for a slot. Public methods are
// safe for concurrent use.
type Runner struct {
	dispatcher *agent.Dispatcher
	sem        chan struct{}
	recorder   RunRecorder
	logger     logging.Logger

	activeRuns map[string]*activeRun
	mu         sync.RWMutex
}

// New constructs a Runner around d.
func New(d *agent.Dispatcher, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: 4,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = 1
	}
	if len(opts.Sinks) > 0 {
		d = d.WithSink(core.MultiSink(opts.Sinks))
	}

	return &Runner{
		dispatcher: d,
		sem:        make(chan struct{}, opts.MaxConcurrentRuns),
		recorder:   opts.Recorder,
		logger:     logging.With(opts.Logger, "component", "runner"),
		activeRuns: make(map[string]*activeRun),
	}
}

// Dispatcher returns the dispatcher runs are executed with.
func (r *Runner) Dispatcher() *agent.Dispatcher { return r.dispatcher }

// Run executes a run for task and blocks until it is done. The returned
// error is non-nil only when no run slot could be acquired before ctx ended;
// run failures are reported in the Result.
func (r *Runner) Run(ctx context.Context, task string) (agent.Result, error) {
	return r.RunWithID(ctx, core.NewID(), task)
}

// RunWithID is Run with a caller-chosen run id.
func (r *Runner) RunWithID(ctx context.Context, runID, task string) (agent.Result, error) {
	ctx, done := r.register(ctx, runID, task)
	defer done()

	return r.run(ctx, runID)
}

// Start launches a run in the background and returns its id immediately.
// The run is visible to Status and Cancel before Start returns, even while
// it is queued for a slot. The channel receives the result once and is then
// closed. The run is bound to ctx.
func (r *Runner) Start(ctx context.Context, task string) (string, <-chan agent.Result) {
	runID := core.NewID()
	out := make(chan agent.Result, 1)

	ctx, done := r.register(ctx, runID, task)

	go func() {
		defer close(out)

		res, err := r.run(ctx, runID)
		done()
		if err != nil {
			res = agent.Result{RunID: runID, Outcome: core.OutcomeFailure, Err: err}
		}
		out <- res
	}()

	return runID, out
}

// Cancel cancels an active run by id.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	run, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	run.cancel()
	r.logger.Info("runner.run.cancel", "run_id", runID)

	return nil
}

// Status returns a snapshot of an active run.
func (r *Runner) Status(runID string) (Status, bool) {
	r.mu.RLock()
	run, ok := r.activeRuns[runID]
	state := StateQueued
	if ok && run.running {
		state = StateRunning
	}
	r.mu.RUnlock()

	if !ok {
		return Status{}, false
	}

	return Status{
		RunID:     runID,
		Task:      run.task,
		State:     state,
		StartedAt: run.startedAt,
		Messages:  run.conv.Messages(),
	}, true
}

// Active returns the ids of active runs, sorted.
func (r *Runner) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.activeRuns))
	for id := range r.activeRuns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// register makes runID visible as a queued run and records its start. The
// returned context is cancelled by Cancel; done removes the run again.
func (r *Runner) register(ctx context.Context, runID, task string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	startedAt := time.Now().UTC()

	r.mu.Lock()
	r.activeRuns[runID] = &activeRun{
		task:      task,
		conv:      core.NewConversation(task),
		cancel:    cancel,
		startedAt: startedAt,
	}
	r.mu.Unlock()

	if r.recorder != nil {
		if err := r.recorder.StartRun(context.WithoutCancel(ctx), runID, task, startedAt); err != nil {
			r.logger.Warn("runner.ledger.error", "run_id", runID, "error", err.Error())
		}
	}

	return ctx, func() {
		cancel()
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
	}
}

// run waits for a slot and executes the registered run. A run cancelled
// while queued is recorded as a failure and the slot error is returned.
func (r *Runner) run(ctx context.Context, runID string) (agent.Result, error) {
	if err := r.acquire(ctx); err != nil {
		r.logger.Info("runner.run.dequeued", "run_id", runID, "error", err.Error())
		r.finish(ctx, agent.Result{RunID: runID, Outcome: core.OutcomeFailure, Err: err})
		return agent.Result{}, err
	}
	defer r.release()

	r.mu.Lock()
	run := r.activeRuns[runID]
	run.running = true
	r.mu.Unlock()

	res := r.dispatcher.RunWithID(ctx, runID, run.conv)
	r.finish(ctx, res)

	return res, nil
}

func (r *Runner) finish(ctx context.Context, res agent.Result) {
	if r.recorder == nil {
		return
	}

	var runErr string
	if res.Err != nil {
		runErr = res.Err.Error()
	}
	if err := r.recorder.FinishRun(context.WithoutCancel(ctx), res.RunID, res.Outcome, res.Turns, runErr, time.Now().UTC()); err != nil {
		r.logger.Warn("runner.ledger.error", "run_id", res.RunID, "error", err.Error())
	}
}

func (r *Runner) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("waiting for run slot: %w", err)
	}

	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for run slot: %w", ctx.Err())
	}
}

func (r *Runner) release() { <-r.sem }
