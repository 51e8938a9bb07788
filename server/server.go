// Package server exposes the document service and dispatch runs over HTTP
// and streams run events over a websocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hupe1980/docmesh/ingest"
	"github.com/hupe1980/docmesh/ledger"
	"github.com/hupe1980/docmesh/logging"
	"github.com/hupe1980/docmesh/runner"
	"github.com/hupe1980/docmesh/tool"
	"github.com/hupe1980/docmesh/vectorstore"
)

// ServiceMessage is returned by GET /.
const ServiceMessage = "LangChain-Weaviate-MinIO Integration Service"

// RunLedger looks up finished runs.
type RunLedger interface {
	GetRun(ctx context.Context, id string) (ledger.Run, error)
	RecentRuns(ctx context.Context, limit int) ([]ledger.Run, error)
}

// Options configures a Server.
type Options struct {
	Addr string
	// Pipeline serves /index_from_minio and /minio-event; nil disables both.
	Pipeline *ingest.Pipeline
	// Runs serves finished runs; nil limits lookups to active runs.
	Runs RunLedger
	// Hub streams run events; it must also be a sink of the runner.
	Hub *Hub
	// Class and VectorTool select the vector store tool and class used by
	// the document endpoints.
	Class      string
	VectorTool string
	Logger     logging.Logger
}

// Server is the HTTP surface.
type Server struct {
	runner   *runner.Runner
	invoker  *tool.Invoker
	pipeline *ingest.Pipeline
	runs     RunLedger
	hub      *Hub
	opts     Options
	logger   logging.Logger
	// baseCtx bounds asynchronous runs.
	baseCtx context.Context
}

// New creates a server.
func New(r *runner.Runner, inv *tool.Invoker, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:       ":8000",
		Class:      vectorstore.DefaultClass,
		VectorTool: tool.VectorStoreToolName,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger)
	}

	return &Server{
		runner:   r,
		invoker:  inv,
		pipeline: opts.Pipeline,
		runs:     opts.Runs,
		hub:      opts.Hub,
		opts:     opts,
		logger:   logging.With(opts.Logger, "component", "server"),
		baseCtx:  context.Background(),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /index_from_minio", s.handleIndex)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /update/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /delete/{id}", s.handleDelete)
	mux.HandleFunc("POST /minio-event", s.handleMinioEvent)

	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("POST /api/runs", s.handleCreateRun)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.handleCancelRun)
	mux.HandleFunc("/api/ws", s.handleWebSocket)

	return s.withMiddleware(mux)
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	go s.hub.Run(ctx)

	server := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("server.listening", "addr", s.opts.Addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("server.request", "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	})
}
