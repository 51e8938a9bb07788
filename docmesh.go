// Package docmesh assembles a supervisor-routed worker team over an object
// store and a vector store. Most applications:
//  1. Create a Mesh with New (in-memory stores) or NewFromConfig
//  2. Run tasks through Run, or serve them over HTTP with the server package
//  3. Index the bucket with IndexBucket, on demand or on a schedule
package docmesh

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/docmesh/agent"
	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/ingest"
	"github.com/hupe1980/docmesh/logging"
	"github.com/hupe1980/docmesh/model"
	"github.com/hupe1980/docmesh/objectstore"
	"github.com/hupe1980/docmesh/runner"
	"github.com/hupe1980/docmesh/tool"
	"github.com/hupe1980/docmesh/vectorstore"
)

// Options configures a Mesh. Unset stores default to in-memory
// implementations.
type Options struct {
	ObjectStore core.ObjectStore
	VectorStore core.VectorStore
	Bucket      string
	Class       string

	// WorkspaceDir holds the documents of the writing tools. Empty selects a
	// temporary directory removed by Close.
	WorkspaceDir string
	// CodeRunner backs python_repl; nil registers a runner that refuses to
	// execute.
	CodeRunner tool.CodeRunner

	// Workers defaults to agent.DefaultWorkerSpecs.
	Workers           []agent.WorkerSpec
	MaxTurns          int
	MaxToolRounds     int
	MaxConcurrentRuns int

	// Sinks receive the events of every run.
	Sinks    []core.EventSink
	Recorder runner.RunRecorder

	// Summarizer condenses documents during ingestion; nil indexes them
	// unsummarized. TeamSummaries overrides it with a dispatch run per
	// document.
	Summarizer    ingest.Summarizer
	TeamSummaries bool
	ObjectLedger  ingest.ObjectLedger
	Tags          []string

	Logger logging.Logger
}

// Mesh aggregates the tools, team, runner and ingestion pipeline.
type Mesh struct {
	opts       Options
	invoker    *tool.Invoker
	workspace  *tool.Workspace
	roster     *agent.Roster
	dispatcher *agent.Dispatcher
	runner     *runner.Runner
	pipeline   *ingest.Pipeline
	closers    []func() error
}

// New creates a Mesh driven by m, which serves both the supervisor and the
// workers.
func New(m model.Model, optFns ...func(o *Options)) (*Mesh, error) {
	if m == nil {
		return nil, errors.New("docmesh: model is required")
	}

	opts := Options{
		Bucket:            "langchain-bucket",
		Class:             vectorstore.DefaultClass,
		MaxTurns:          10,
		MaxToolRounds:     8,
		MaxConcurrentRuns: 4,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.ObjectStore == nil {
		opts.ObjectStore = objectstore.NewMemory()
	}
	if opts.VectorStore == nil {
		opts.VectorStore = vectorstore.NewMemory()
	}
	if opts.CodeRunner == nil {
		opts.CodeRunner = disabledRunner{}
	}
	if len(opts.Workers) == 0 {
		opts.Workers = agent.DefaultWorkerSpecs()
	}

	mesh := &Mesh{opts: opts}

	dir := opts.WorkspaceDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "docmesh-workspace-*")
		if err != nil {
			return nil, fmt.Errorf("docmesh: workspace: %w", err)
		}
		dir = tmp
		mesh.closers = append(mesh.closers, func() error { return os.RemoveAll(tmp) })
	}
	ws, err := tool.OpenWorkspace(dir)
	if err != nil {
		_ = mesh.Close()
		return nil, fmt.Errorf("docmesh: %w", err)
	}
	mesh.workspace = ws
	// Close runs closers in reverse, so the handle closes before removal.
	mesh.closers = append(mesh.closers, ws.Close)

	mesh.invoker = tool.NewInvoker(func(o *tool.InvokerOptions) { o.Logger = opts.Logger })
	tools := []tool.Tool{
		tool.NewObjectStoreTool(opts.ObjectStore, func(o *tool.ObjectStoreToolOptions) { o.DefaultBucket = opts.Bucket }),
		tool.NewVectorStoreTool(opts.VectorStore, func(o *tool.VectorStoreToolOptions) { o.DefaultClass = opts.Class }),
		tool.NewPythonTool(opts.CodeRunner),
	}
	tools = append(tools, ws.Tools()...)
	if err := mesh.invoker.Register(tools...); err != nil {
		_ = mesh.Close()
		return nil, fmt.Errorf("docmesh: register tools: %w", err)
	}

	mesh.roster, err = agent.BuildTeam(m, mesh.invoker, opts.Workers, func(o *agent.TeamOptions) {
		o.MaxToolRounds = opts.MaxToolRounds
		o.Logger = opts.Logger
	})
	if err != nil {
		_ = mesh.Close()
		return nil, fmt.Errorf("docmesh: build team: %w", err)
	}

	supervisor := agent.NewModelSupervisor(m, func(o *agent.ModelSupervisorOptions) { o.Logger = opts.Logger })
	mesh.dispatcher = agent.NewDispatcher(supervisor, mesh.roster, func(o *agent.DispatcherOptions) {
		o.MaxTurns = opts.MaxTurns
		o.Logger = opts.Logger
	})

	mesh.runner = runner.New(mesh.dispatcher, func(o *runner.Options) {
		o.MaxConcurrentRuns = opts.MaxConcurrentRuns
		o.Sinks = opts.Sinks
		o.Recorder = opts.Recorder
		o.Logger = opts.Logger
	})

	summarizer := opts.Summarizer
	if opts.TeamSummaries {
		summarizer = ingest.NewTeamSummarizer(mesh.runner, "")
	}
	mesh.pipeline = ingest.NewPipeline(mesh.invoker, func(o *ingest.Options) {
		o.Bucket = opts.Bucket
		o.Class = opts.Class
		o.Summarizer = summarizer
		o.Ledger = opts.ObjectLedger
		o.Tags = opts.Tags
		o.Logger = opts.Logger
	})

	return mesh, nil
}

// Invoker returns the tool invoker shared by workers, ingestion and the HTTP
// surface.
func (m *Mesh) Invoker() *tool.Invoker { return m.invoker }

// Roster returns the worker team.
func (m *Mesh) Roster() *agent.Roster { return m.roster }

// Runner returns the run coordinator.
func (m *Mesh) Runner() *runner.Runner { return m.runner }

// Pipeline returns the ingestion pipeline.
func (m *Mesh) Pipeline() *ingest.Pipeline { return m.pipeline }

// WorkspaceDir returns the directory of the writing tools.
func (m *Mesh) WorkspaceDir() string { return m.workspace.Dir() }

// Prepare creates the bucket and the vector class when they do not exist.
func (m *Mesh) Prepare(ctx context.Context) error {
	if err := m.opts.ObjectStore.EnsureBucket(ctx, m.opts.Bucket); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", m.opts.Bucket, err)
	}
	if err := m.opts.VectorStore.EnsureClass(ctx, m.opts.Class); err != nil {
		return fmt.Errorf("ensure class %s: %w", m.opts.Class, err)
	}
	return nil
}

// Run executes a dispatch run for task and waits for its result.
func (m *Mesh) Run(ctx context.Context, task string) (agent.Result, error) {
	return m.runner.Run(ctx, task)
}

// IndexBucket runs one ingestion pass over the configured bucket.
func (m *Mesh) IndexBucket(ctx context.Context) (ingest.Report, error) {
	return m.pipeline.IndexBucket(ctx)
}

// OnClose registers fn to run on Close, before the resources registered
// earlier.
func (m *Mesh) OnClose(fn func() error) { m.closers = append(m.closers, fn) }

// Close releases the resources held by the mesh in reverse order of
// acquisition.
func (m *Mesh) Close() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}

type disabledRunner struct{}

func (disabledRunner) Run(context.Context, string) (string, error) {
	return "", errors.New("code execution is not enabled")
}
