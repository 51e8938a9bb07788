package core

import (
	"context"

	"github.com/hupe1980/docmesh/logging"
)

// ToolContext is the scoped surface handed to a tool implementation for one
// function call: the cancellation context plus correlation identifiers.
type ToolContext struct {
	ctx            context.Context
	runID          string
	worker         string
	functionCallID string

	*loggerAdapter
}

// NewToolContext binds a tool call to its run, worker and function call id.
func NewToolContext(ctx context.Context, runID, worker, functionCallID string, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ToolContext{
		ctx:            ctx,
		runID:          runID,
		worker:         worker,
		functionCallID: functionCallID,
		loggerAdapter:  newLoggerAdapter(logger),
	}
}

// Context returns the context of the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// RunID returns the dispatch run the call belongs to.
func (tc *ToolContext) RunID() string { return tc.runID }

// WorkerName returns the worker that requested the call.
func (tc *ToolContext) WorkerName() string { return tc.worker }

// FunctionCallID returns the model-assigned function call id.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

type runIDKey struct{}

// WithRunID returns a context carrying the dispatch run id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id stored by WithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
