package docmesh

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/docmesh/agent"
	"github.com/hupe1980/docmesh/config"
	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/ingest"
	"github.com/hupe1980/docmesh/ledger"
	"github.com/hupe1980/docmesh/logging"
	"github.com/hupe1980/docmesh/model"
	"github.com/hupe1980/docmesh/model/anthropic"
	"github.com/hupe1980/docmesh/model/gemini"
	"github.com/hupe1980/docmesh/model/openai"
	"github.com/hupe1980/docmesh/objectstore"
	"github.com/hupe1980/docmesh/objectstore/minio"
	"github.com/hupe1980/docmesh/sandbox"
	"github.com/hupe1980/docmesh/vectorstore"
	"github.com/hupe1980/docmesh/vectorstore/weaviate"
)

// NewFromConfig builds the model, the stores, the ledger and the sandbox
// described by cfg and assembles a Mesh over them. optFns run after the
// configuration has been applied. The returned Ledger is nil when no ledger
// path is configured; it is closed by Mesh.Close.
func NewFromConfig(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Mesh, *ledger.Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	m, err := NewModel(ctx, cfg.Model)
	if err != nil {
		return nil, nil, err
	}

	var closers []func() error
	if c, ok := m.(interface{ Close() error }); ok {
		closers = append(closers, c.Close)
	}

	objects, err := newObjectStore(cfg.MinIO)
	if err != nil {
		closeAll(closers)
		return nil, nil, err
	}
	vectors, err := newVectorStore(cfg.Weaviate)
	if err != nil {
		closeAll(closers)
		return nil, nil, err
	}

	var l *ledger.Ledger
	if cfg.Ledger.Path != "" {
		l, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			closeAll(closers)
			return nil, nil, err
		}
		closers = append(closers, l.Close)
	}

	var code *sandbox.Docker
	if cfg.Sandbox.Enabled {
		code, err = sandbox.NewDocker(func(o *sandbox.Options) {
			o.Image = cfg.Sandbox.Image
			o.Memory = cfg.Sandbox.Memory
			o.Timeout = cfg.Sandbox.Timeout
		})
		if err != nil {
			closeAll(closers)
			return nil, nil, err
		}
		closers = append(closers, code.Close)
	}

	workers := make([]agent.WorkerSpec, len(cfg.Workers))
	for i, w := range cfg.Workers {
		workers[i] = agent.WorkerSpec{Name: w.Name, Description: w.Description, Tools: w.Tools, Instruction: w.Instruction}
	}

	mesh, err := New(m, func(o *Options) {
		o.ObjectStore = objects
		o.VectorStore = vectors
		o.Bucket = cfg.MinIO.Bucket
		o.Class = cfg.Weaviate.Class
		o.WorkspaceDir = cfg.Workspace.Dir
		o.Workers = workers
		o.MaxTurns = cfg.Dispatch.MaxTurns
		o.MaxToolRounds = cfg.Dispatch.MaxToolRounds
		o.MaxConcurrentRuns = cfg.Dispatch.MaxConcurrentRuns
		o.Tags = []string{"minio"}

		switch cfg.Ingest.Summarizer {
		case config.SummarizerModel:
			o.Summarizer = ingest.NewModelSummarizer(m, "")
		case config.SummarizerTeam:
			o.TeamSummaries = true
		}

		if code != nil {
			o.CodeRunner = code
		}
		if l != nil {
			o.Recorder = l
			o.ObjectLedger = l
		}

		for _, fn := range optFns {
			fn(o)
		}
	})
	if err != nil {
		closeAll(closers)
		return nil, nil, err
	}
	for _, c := range closers {
		mesh.OnClose(c)
	}

	return mesh, l, nil
}

// NewModel creates the model adapter for the configured provider.
func NewModel(ctx context.Context, cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.Temperature = cfg.Temperature
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.APIKey = cfg.APIKey
			o.Temperature = cfg.Temperature
		}), nil
	case config.ProviderGemini:
		return gemini.NewModel(ctx, func(o *gemini.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.APIKey = cfg.APIKey
			o.Temperature = float32(cfg.Temperature)
		})
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func newObjectStore(cfg config.MinIOConfig) (core.ObjectStore, error) {
	if cfg.Backend == config.BackendMemory {
		return objectstore.NewMemory(), nil
	}
	return minio.New(func(o *minio.Options) {
		o.Endpoint = cfg.Endpoint
		o.AccessKey = cfg.AccessKey
		o.SecretKey = cfg.SecretKey
		o.Secure = cfg.Secure
		o.Region = cfg.Region
	})
}

func newVectorStore(cfg config.WeaviateConfig) (core.VectorStore, error) {
	if cfg.Backend == config.BackendMemory {
		return vectorstore.NewMemory(), nil
	}
	return weaviate.New(func(o *weaviate.Options) {
		o.Endpoint = cfg.Endpoint
		o.APIKey = cfg.APIKey
		o.Vectorizer = cfg.Vectorizer
	})
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{Level: level, Format: cfg.Format}), nil
}

func closeAll(closers []func() error) {
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i]()
	}
}
