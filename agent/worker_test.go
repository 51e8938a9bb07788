package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/internal/testutil"
	"github.com/hupe1980/docmesh/model"
	"github.com/hupe1980/docmesh/objectstore"
	"github.com/hupe1980/docmesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoker(t *testing.T) (*tool.Invoker, *objectstore.Memory) {
	t.Helper()

	objects := objectstore.NewMemory()
	require.NoError(t, objects.EnsureBucket(context.Background(), "docs"))

	inv := tool.NewInvoker()
	require.NoError(t, inv.Register(tool.NewObjectStoreTool(objects, func(o *tool.ObjectStoreToolOptions) {
		o.DefaultBucket = "docs"
	})))

	return inv, objects
}

func TestModelWorker_ToolLoop(t *testing.T) {
	inv, objects := newTestInvoker(t)
	_, err := objects.Put(context.Background(), "docs", "a.md", []byte("# A"), "text/markdown")
	require.NoError(t, err)

	m := model.NewScriptedModel("worker",
		testutil.NewReplyBuilder().Call(tool.ObjectStoreToolName, map[string]any{"action": "list"}).Build(),
		model.TextReply("The bucket holds a.md."),
	)

	w := NewModelWorker("data_analysis", "Analyze data.", m, inv, func(o *ModelWorkerOptions) {
		o.Tools = []string{tool.ObjectStoreToolName}
		o.TeamMembers = []string{"data_analysis", "communication"}
	})

	conv := core.NewConversation("What is in the bucket?")
	msg := w.Run(context.Background(), conv)

	assert.Equal(t, "data_analysis", msg.Author)
	assert.Equal(t, "The bucket holds a.md.", msg.Content)
	assert.NotEmpty(t, msg.ID)

	// Tool traffic stays out of the shared conversation.
	assert.Equal(t, 1, conv.Len())

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Instructions, "Analyze data.")
	assert.Contains(t, reqs[0].Instructions, "data_analysis, communication.")
	require.Len(t, reqs[0].Tools, 1)

	second := reqs[1].Contents
	require.Len(t, second, 3)
	assert.Equal(t, "tool", second[2].Role)
	frs := second[2].FunctionResponses()
	require.Len(t, frs, 1)
	assert.Empty(t, frs[0].Error)
	result, ok := frs[0].Response.(tool.Result)
	require.True(t, ok)
	assert.True(t, result.OK())
}

func TestModelWorker_DisallowedTool(t *testing.T) {
	inv, _ := newTestInvoker(t)

	m := model.NewScriptedModel("worker",
		testutil.NewReplyBuilder().Call(tool.ObjectStoreToolName, map[string]any{"action": "list"}).Build(),
		model.TextReply("done"),
	)

	// No tools granted: the call is answered with a not-found result.
	w := NewModelWorker("communication", "Summarize.", m, inv)
	msg := w.Run(context.Background(), core.NewConversation("task"))
	assert.Equal(t, "done", msg.Content)

	frs := m.Requests()[1].Contents[2].FunctionResponses()
	require.Len(t, frs, 1)
	assert.Equal(t, "Tool 'minio' not found", frs[0].Error)
}

func TestModelWorker_ErrorsBecomeContent(t *testing.T) {
	t.Run("model error", func(t *testing.T) {
		m := model.NewScriptedModel("worker", model.ErrorReply(errors.New("rate limited")))
		msg := NewModelWorker("writer", "Write.", m, nil).Run(context.Background(), core.NewConversation("task"))
		assert.Equal(t, "writer", msg.Author)
		assert.Equal(t, "Error: writer failed: rate limited", msg.Content)
	})

	t.Run("round limit", func(t *testing.T) {
		inv, _ := newTestInvoker(t)
		call := testutil.NewReplyBuilder().Call(tool.ObjectStoreToolName, map[string]any{"action": "list"}).Build()
		m := model.NewScriptedModel("worker", call, call, call)

		w := NewModelWorker("data_analysis", "Analyze.", m, inv, func(o *ModelWorkerOptions) {
			o.Tools = []string{tool.ObjectStoreToolName}
			o.MaxToolRounds = 2
		})
		msg := w.Run(context.Background(), core.NewConversation("task"))
		assert.True(t, strings.HasPrefix(msg.Content, "Error: data_analysis failed:"))
		assert.Equal(t, 0, m.Remaining())
	})

	t.Run("empty answer", func(t *testing.T) {
		m := model.NewScriptedModel("worker", model.TextReply("  "))
		msg := NewModelWorker("writer", "Write.", m, nil).Run(context.Background(), core.NewConversation("task"))
		assert.Equal(t, "(no response)", msg.Content)
	})
}

func TestBuildTeam(t *testing.T) {
	inv, _ := newTestInvoker(t)
	m := model.NewScriptedModel("team")

	roster, err := BuildTeam(m, inv, []WorkerSpec{
		{Name: "data_analysis", Description: "Analyze.", Tools: []string{tool.ObjectStoreToolName}},
		{Name: "communication", Description: "Summarize."},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"data_analysis", "communication"}, roster.Names())

	w, ok := roster.Resolve("data_analysis")
	require.True(t, ok)
	assert.Equal(t, []string{tool.ObjectStoreToolName}, w.(*ModelWorker).Tools())

	_, err = BuildTeam(m, inv, []WorkerSpec{{Name: "automation", Tools: []string{tool.PythonToolName}}})
	assert.ErrorIs(t, err, tool.ErrToolNotFound)
}

func TestDefaultWorkerSpecs(t *testing.T) {
	specs := DefaultWorkerSpecs()
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"data_analysis", "content_creation", "automation", "quality_assurance", "communication"}, names)
}
