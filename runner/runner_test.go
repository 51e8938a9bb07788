package runner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hupe1980/docmesh/agent"
	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/internal/testutil"
	"github.com/hupe1980/docmesh/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// blockingWorker signals when it starts and waits for release or ctx.
type blockingWorker struct {
	started chan struct{}
	release chan struct{}
}

func (w *blockingWorker) Name() string        { return "writer" }
func (w *blockingWorker) Description() string { return "writes" }

func (w *blockingWorker) Run(ctx context.Context, _ *core.Conversation) core.Message {
	w.started <- struct{}{}
	select {
	case <-w.release:
	case <-ctx.Done():
	}
	return core.NewMessage("writer", "draft")
}

// onceSupervisor routes to the writer once and then finishes.
var onceSupervisor = agent.SupervisorFunc(func(_ context.Context, conv *core.Conversation, _ *agent.Roster) (agent.Decision, error) {
	if conv.Len() == 1 {
		return agent.Decision{Next: "writer"}, nil
	}
	return agent.Decision{Next: agent.Finish}, nil
})

func newBlockingDispatcher(t *testing.T) (*agent.Dispatcher, *blockingWorker) {
	t.Helper()
	w := &blockingWorker{started: make(chan struct{}, 4), release: make(chan struct{})}
	roster, err := agent.NewRoster(w)
	require.NoError(t, err)
	return agent.NewDispatcher(onceSupervisor, roster), w
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) StartRun(ctx context.Context, id, task string, startedAt time.Time) error {
	return m.Called(id, task).Error(0)
}

func (m *mockRecorder) FinishRun(ctx context.Context, id string, outcome core.Outcome, turns int, runErr string, finishedAt time.Time) error {
	return m.Called(id, outcome, turns, runErr).Error(0)
}

func TestRunner_Run(t *testing.T) {
	d, w := newBlockingDispatcher(t)
	close(w.release)

	rec := &testutil.EventRecorder{}
	recorder := &mockRecorder{}
	recorder.On("StartRun", mock.Anything, "summarize").Return(nil)
	recorder.On("FinishRun", mock.Anything, core.OutcomeSuccess, 2, "").Return(nil)

	r := New(d, func(o *Options) {
		o.Sinks = []core.EventSink{rec}
		o.Recorder = recorder
	})

	res, err := r.Run(context.Background(), "summarize")
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeSuccess, res.Outcome)
	assert.Len(t, res.Messages, 2)
	assert.Empty(t, r.Active())
	assert.Equal(t, core.EventRunFinished, rec.Types()[len(rec.Types())-1])
	recorder.AssertExpectations(t)
}

func TestRunner_CancelAndStatus(t *testing.T) {
	d, w := newBlockingDispatcher(t)
	r := New(d)

	runID, done := r.Start(context.Background(), "long task")
	<-w.started

	status, ok := r.Status(runID)
	require.True(t, ok)
	assert.Equal(t, "long task", status.Task)
	assert.Len(t, status.Messages, 1)
	assert.Equal(t, []string{runID}, r.Active())

	require.NoError(t, r.Cancel(runID))

	select {
	case res := <-done:
		assert.Equal(t, runID, res.RunID)
		assert.Equal(t, core.OutcomeFailure, res.Outcome)
		assert.ErrorIs(t, res.Err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for cancelled run")
	}

	assert.ErrorIs(t, r.Cancel(runID), ErrRunNotFound)
	_, ok = r.Status(runID)
	assert.False(t, ok)
}

func TestRunner_ConcurrencyLimit(t *testing.T) {
	d, w := newBlockingDispatcher(t)
	r := New(d, func(o *Options) { o.MaxConcurrentRuns = 1 })

	_, done := r.Start(context.Background(), "first")
	<-w.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, "second")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(w.release)
	res := <-done
	assert.Equal(t, core.OutcomeSuccess, res.Outcome)
}

func TestRunner_CancelQueuedRun(t *testing.T) {
	d, w := newBlockingDispatcher(t)

	recorder := &mockRecorder{}
	recorder.On("StartRun", mock.Anything, mock.Anything).Return(nil)
	recorder.On("FinishRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	r := New(d, func(o *Options) {
		o.MaxConcurrentRuns = 1
		o.Recorder = recorder
	})

	firstID, firstDone := r.Start(context.Background(), "first")
	<-w.started

	queuedID, queuedDone := r.Start(context.Background(), "second")

	status, ok := r.Status(queuedID)
	require.True(t, ok)
	assert.Equal(t, StateQueued, status.State)
	assert.Equal(t, "second", status.Task)
	assert.Len(t, status.Messages, 1)
	assert.ElementsMatch(t, []string{firstID, queuedID}, r.Active())

	first, ok := r.Status(firstID)
	require.True(t, ok)
	assert.Equal(t, StateRunning, first.State)

	require.NoError(t, r.Cancel(queuedID))

	select {
	case res := <-queuedDone:
		assert.Equal(t, queuedID, res.RunID)
		assert.Equal(t, core.OutcomeFailure, res.Outcome)
		assert.ErrorIs(t, res.Err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for cancelled queued run")
	}

	_, ok = r.Status(queuedID)
	assert.False(t, ok)
	recorder.AssertCalled(t, "StartRun", queuedID, "second")
	recorder.AssertCalled(t, "FinishRun", queuedID, core.OutcomeFailure, 0, mock.Anything)

	close(w.release)
	assert.Equal(t, core.OutcomeSuccess, (<-firstDone).Outcome)
}

func TestRunner_RecordsInLedger(t *testing.T) {
	l, err := ledger.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer l.Close()

	d, w := newBlockingDispatcher(t)
	close(w.release)

	r := New(d, func(o *Options) { o.Recorder = l })

	res, err := r.Run(context.Background(), "record me")
	require.NoError(t, err)

	run, err := l.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "record me", run.Task)
	assert.Equal(t, core.OutcomeSuccess, run.Outcome)
	assert.Equal(t, 2, run.Turns)
	assert.False(t, run.Running())
}
