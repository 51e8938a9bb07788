package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/internal/testutil"
	"github.com/hupe1980/docmesh/model"
	"github.com/hupe1980/docmesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_FinishAfterWorker(t *testing.T) {
	researcher := &stubWorker{name: "researcher", reply: "found three documents"}
	roster := newTestRoster(t, researcher, &stubWorker{name: "writer"})

	m := model.NewScriptedModel("supervisor", testutil.Routes("researcher", "FINISH")...)
	rec := &testutil.EventRecorder{}
	d := NewDispatcher(NewModelSupervisor(m), roster, func(o *DispatcherOptions) { o.Sink = rec })

	conv := core.NewConversation("Find the documents.")
	res := d.Run(context.Background(), conv)

	require.NoError(t, res.Err)
	assert.Equal(t, core.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 2, res.Turns)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "researcher", res.Messages[1].Author)
	assert.Equal(t, "found three documents", res.Messages[1].Content)
	assert.Equal(t, 1, researcher.calls)

	final, ok := res.Final()
	require.True(t, ok)
	assert.Equal(t, "researcher", final.Author)

	assert.Equal(t, []core.EventType{
		core.EventRunStarted,
		core.EventRouteDecided,
		core.EventWorkerMessage,
		core.EventRouteDecided,
		core.EventRunFinished,
	}, rec.Types())

	for _, e := range rec.Events() {
		assert.Equal(t, res.RunID, e.RunID)
	}
	finished := rec.OfType(core.EventRunFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, core.OutcomeSuccess, finished[0].Outcome)
}

func TestDispatcher_ImmediateFinish(t *testing.T) {
	worker := &stubWorker{name: "writer"}
	roster := newTestRoster(t, worker)

	d := NewDispatcher(NewModelSupervisor(model.NewScriptedModel("supervisor", testutil.Route("FINISH"))), roster)
	res := d.Run(context.Background(), core.NewConversation("nothing to do"))

	assert.Equal(t, core.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 1, res.Turns)
	assert.Len(t, res.Messages, 1)
	assert.Equal(t, 0, worker.calls)

	_, ok := res.Final()
	assert.False(t, ok)
}

func TestDispatcher_TurnCeiling(t *testing.T) {
	worker := &stubWorker{name: "writer", reply: "draft"}
	roster := newTestRoster(t, worker)

	m := model.NewScriptedModel("supervisor")
	m.Fallback = func(model.Request) model.Reply { return testutil.Route("writer") }

	d := NewDispatcher(NewModelSupervisor(m), roster, func(o *DispatcherOptions) { o.MaxTurns = 3 })
	res := d.Run(context.Background(), core.NewConversation("loop forever"))

	assert.Equal(t, core.OutcomeInconclusive, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Equal(t, 3, res.Turns)
	assert.Len(t, m.Requests(), 3)
	assert.Equal(t, 3, worker.calls)
	// Partial progress is kept.
	assert.Len(t, res.Messages, 4)
}

func TestDispatcher_ContractViolation(t *testing.T) {
	worker := &stubWorker{name: "writer", reply: "draft"}
	roster := newTestRoster(t, worker)

	tests := []struct {
		name  string
		reply model.Reply
	}{
		{"unknown worker", testutil.Route("editor")},
		{"free text", model.TextReply("the writer should go")},
		{"bare string", model.CallReply(RouteFunctionName, `"writer"`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model.NewScriptedModel("supervisor", tt.reply)
			rec := &testutil.EventRecorder{}
			d := NewDispatcher(NewModelSupervisor(m), roster, func(o *DispatcherOptions) { o.Sink = rec })

			conv := core.NewConversation("task")
			res := d.Run(context.Background(), conv)

			assert.Equal(t, core.OutcomeFailure, res.Outcome)
			assert.True(t, res.IsContractViolation())
			assert.Equal(t, 1, conv.Len())
			assert.Equal(t, 0, worker.calls)
			assert.Empty(t, rec.OfType(core.EventWorkerMessage))
			require.Len(t, rec.OfType(core.EventRunFinished), 1)
			assert.NotEmpty(t, rec.OfType(core.EventRunFinished)[0].Error)
		})
	}
}

func TestDispatcher_SupervisorReturnsUnknownWorker(t *testing.T) {
	roster := newTestRoster(t, &stubWorker{name: "writer"})

	// A supervisor that skips validation still cannot reach a missing worker.
	s := SupervisorFunc(func(context.Context, *core.Conversation, *Roster) (Decision, error) {
		return Decision{Next: "ghost"}, nil
	})

	res := NewDispatcher(s, roster).Run(context.Background(), core.NewConversation("task"))

	assert.Equal(t, core.OutcomeFailure, res.Outcome)
	var cv *core.ContractViolationError
	require.True(t, errors.As(res.Err, &cv))
	assert.Equal(t, ReasonUnknownWorker, cv.Reason)
	assert.Equal(t, "ghost", cv.Value)
}

func TestDispatcher_AuthorIsForced(t *testing.T) {
	worker := &stubWorker{name: "writer", reply: "draft", author: "someone_else"}
	roster := newTestRoster(t, worker)

	m := model.NewScriptedModel("supervisor", testutil.Routes("writer", "FINISH")...)
	res := NewDispatcher(NewModelSupervisor(m), roster).Run(context.Background(), core.NewConversation("task"))

	require.Len(t, res.Messages, 2)
	msg := res.Messages[1]
	assert.Equal(t, "writer", msg.Author)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestDispatcher_SupervisorSeesWorkerOutput(t *testing.T) {
	roster := newTestRoster(t, &stubWorker{name: "researcher", reply: "notes"})

	m := model.NewScriptedModel("supervisor", testutil.Routes("researcher", "FINISH")...)
	NewDispatcher(NewModelSupervisor(m), roster).Run(context.Background(), core.NewConversation("task"))

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Contents, 2)
	assert.Len(t, reqs[1].Contents, 3)
	assert.Equal(t, "researcher: notes", reqs[1].Contents[1].Text())
}

func TestDispatcher_Cancellation(t *testing.T) {
	roster := newTestRoster(t, &stubWorker{name: "writer"})
	m := model.NewScriptedModel("supervisor", testutil.Route("writer"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewDispatcher(NewModelSupervisor(m), roster).Run(ctx, core.NewConversation("task"))

	assert.Equal(t, core.OutcomeFailure, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 0, res.Turns)
	assert.Empty(t, m.Requests())
}

func TestDispatcher_RunIDReachesWorkers(t *testing.T) {
	var seen string
	w := &ctxWorker{name: "writer", fn: func(ctx context.Context) { seen = core.RunIDFromContext(ctx) }}
	roster := newTestRoster(t, w)

	m := model.NewScriptedModel("supervisor", testutil.Routes("writer", "FINISH")...)
	res := NewDispatcher(NewModelSupervisor(m), roster).RunWithID(context.Background(), "run-42", core.NewConversation("task"))

	assert.Equal(t, "run-42", res.RunID)
	assert.Equal(t, "run-42", seen)
}

type ctxWorker struct {
	name string
	fn   func(ctx context.Context)
}

func (w *ctxWorker) Name() string        { return w.name }
func (w *ctxWorker) Description() string { return "" }

func (w *ctxWorker) Run(ctx context.Context, _ *core.Conversation) core.Message {
	w.fn(ctx)
	return core.NewMessage(w.name, "ok")
}

func TestDispatcher_WithSink(t *testing.T) {
	roster := newTestRoster(t, &stubWorker{name: "writer"})
	first := &testutil.EventRecorder{}
	second := &testutil.EventRecorder{}

	m := model.NewScriptedModel("supervisor", testutil.Route("FINISH"))
	base := NewDispatcher(NewModelSupervisor(m), roster, func(o *DispatcherOptions) { o.Sink = first })
	d := base.WithSink(second)

	d.Run(context.Background(), core.NewConversation("task"))

	assert.Len(t, first.Events(), 3)
	assert.Equal(t, first.Types(), second.Types())
	assert.Same(t, roster, d.Roster())
}

func TestDispatcher_TwoWorkerScenario(t *testing.T) {
	inv, objects := newTestInvoker(t)
	_, err := objects.Put(context.Background(), "docs", "sales.csv", []byte("q1,100\nq2,140\n"), "text/csv")
	require.NoError(t, err)

	// One scripted model drives the supervisor and both workers in turn order.
	m := model.NewScriptedModel("shared",
		testutil.Route("Analyst"),
		testutil.NewReplyBuilder().Call(tool.ObjectStoreToolName, map[string]any{
			"action":      "download",
			"object_name": "sales.csv",
		}).Build(),
		model.TextReply("sales grew"),
		testutil.Route("Writer"),
		model.TextReply("report"),
		testutil.Route(Finish),
	)

	analyst := NewModelWorker("Analyst", "Analyze data.", m, inv, func(o *ModelWorkerOptions) {
		o.Tools = []string{tool.ObjectStoreToolName}
	})
	writer := NewModelWorker("Writer", "Write reports.", m, inv)
	roster := newTestRoster(t, analyst, writer)

	d := NewDispatcher(NewModelSupervisor(m), roster)
	res := d.Run(context.Background(), core.NewConversation("Summarize the sales data."))

	require.NoError(t, res.Err)
	assert.Equal(t, core.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 0, m.Remaining())

	require.Len(t, res.Messages, 3)
	assert.Equal(t, core.UserAuthor, res.Messages[0].Author)
	assert.Equal(t, "Analyst", res.Messages[1].Author)
	assert.Equal(t, "sales grew", res.Messages[1].Content)
	assert.Equal(t, "Writer", res.Messages[2].Author)
	assert.Equal(t, "report", res.Messages[2].Content)

	reqs := m.Requests()
	require.Len(t, reqs, 6)
	analystFollowUp := reqs[2].Contents
	frs := analystFollowUp[len(analystFollowUp)-1].FunctionResponses()
	require.Len(t, frs, 1)
	result, ok := frs[0].Response.(tool.Result)
	require.True(t, ok)
	assert.Equal(t, tool.StatusSuccess, result.Status)
	content, ok := result.Data.(tool.ObjectContent)
	require.True(t, ok)
	assert.Equal(t, "q1,100\nq2,140\n", content.Content)
}
