package docmesh

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/docmesh/agent"
	"github.com/hupe1980/docmesh/config"
	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/internal/testutil"
	"github.com/hupe1980/docmesh/model"
	"github.com/hupe1980/docmesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	m := model.NewScriptedModel("scripted")
	mesh, err := New(m)
	require.NoError(t, err)

	dir := mesh.WorkspaceDir()
	assert.DirExists(t, dir)

	assert.Equal(t, []string{"data_analysis", "content_creation", "automation", "quality_assurance", "communication"}, mesh.Roster().Names())
	assert.ElementsMatch(t, []string{
		tool.ObjectStoreToolName, tool.VectorStoreToolName, tool.PythonToolName,
		"create_outline", "read_document", "write_document", "edit_document",
	}, mesh.Invoker().Names())

	require.NoError(t, mesh.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNew_UnknownWorkerTool(t *testing.T) {
	_, err := New(model.NewScriptedModel("scripted"), func(o *Options) {
		o.WorkspaceDir = t.TempDir()
		o.Workers = []agent.WorkerSpec{{Name: "writer", Description: "writes", Tools: []string{"browser"}}}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, tool.ErrToolNotFound)
}

func TestMesh_Run(t *testing.T) {
	m := model.NewScriptedModel("scripted",
		testutil.Route("communication"),
		model.TextReply("The team agreed on the outline."),
		testutil.Route(agent.Finish),
	)
	rec := &testutil.EventRecorder{}

	mesh, err := New(m, func(o *Options) {
		o.WorkspaceDir = t.TempDir()
		o.Sinks = []core.EventSink{rec}
	})
	require.NoError(t, err)
	defer mesh.Close()

	res, err := mesh.Run(context.Background(), "Summarize the discussion.")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, core.OutcomeSuccess, res.Outcome)

	final, ok := res.Final()
	require.True(t, ok)
	assert.Equal(t, "communication", final.Author)
	assert.Equal(t, "The team agreed on the outline.", final.Content)

	assert.Len(t, rec.OfType(core.EventRunFinished), 1)
}

func TestMesh_PythonToolDisabledByDefault(t *testing.T) {
	mesh, err := New(model.NewScriptedModel("scripted"), func(o *Options) { o.WorkspaceDir = t.TempDir() })
	require.NoError(t, err)
	defer mesh.Close()

	res := mesh.Invoker().Invoke(context.Background(), tool.PythonToolName, "run", map[string]any{"code": "print(1)"})
	assert.False(t, res.OK())
	assert.Contains(t, res.Message, "code execution is not enabled")
}

func TestNewFromConfig_MemoryBackends(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Model.APIKey = "test-key"
	cfg.MinIO.Backend = config.BackendMemory
	cfg.Weaviate.Backend = config.BackendMemory
	cfg.Ledger.Path = filepath.Join(dir, "docmesh.db")
	cfg.Workspace.Dir = filepath.Join(dir, "workspace")
	cfg.Ingest.Summarizer = config.SummarizerNone

	mesh, l, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, l)
	defer mesh.Close()

	ctx := context.Background()
	require.NoError(t, mesh.Prepare(ctx))

	res := mesh.Invoker().Invoke(ctx, tool.ObjectStoreToolName, "upload", map[string]any{
		"object_name": "notes.md",
		"content":     "# Notes",
	})
	require.True(t, res.OK(), res.Message)

	report, err := mesh.IndexBucket(ctx)
	require.NoError(t, err)
	assert.Equal(t, "langchain-bucket", report.Bucket)
	require.Len(t, report.Indexed, 1)

	obj, err := l.Object(ctx, "langchain-bucket", "notes.md")
	require.NoError(t, err)
	assert.Equal(t, report.Indexed[0].DocumentID, obj.DocumentID)

	report, err = mesh.IndexBucket(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.md"}, report.Skipped)
}

func TestNewFromConfig_Invalid(t *testing.T) {
	cfg := config.Default()
	cfg.Dispatch.MaxTurns = 0

	_, _, err := NewFromConfig(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(context.Background(), config.ModelConfig{Provider: config.ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", m.Info().Provider)

	m, err = NewModel(context.Background(), config.ModelConfig{Provider: config.ProviderOpenAI, Name: "gpt-4o", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", m.Info().Name)

	_, err = NewModel(context.Background(), config.ModelConfig{Provider: "llama"})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	_, err := NewLogger(config.LogConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)

	_, err = NewLogger(config.LogConfig{Level: "verbose"})
	assert.Error(t, err)
}
