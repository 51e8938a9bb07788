package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/logging"
	"github.com/hupe1980/docmesh/model"
	"github.com/hupe1980/docmesh/tool"
)

// WorkerSpec describes a worker at configuration time.
type WorkerSpec struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Tools       []string `yaml:"tools" json:"tools"`
	// Instruction overrides the description as the worker's system prompt.
	Instruction string `yaml:"instruction,omitempty" json:"instruction,omitempty"`
}

// ModelWorkerOptions configures a ModelWorker.
type ModelWorkerOptions struct {
	Instruction Instruction
	// Tools are the identifiers the worker may call through the invoker.
	Tools []string
	// MaxToolRounds bounds model calls that request tools before the worker
	// gives up.
	MaxToolRounds int
	TeamMembers   []string
	Logger        logging.Logger
}

// ModelWorker is a Worker driven by a language model with tool access.
type ModelWorker struct {
	name          string
	description   string
	model         model.Model
	invoker       *tool.Invoker
	instruction   Instruction
	tools         []string
	allowed       map[string]bool
	maxToolRounds int
	teamMembers   []string
	logger        logging.Logger
}

// NewModelWorker creates a worker. The description doubles as the default
// instruction.
func NewModelWorker(name, description string, m model.Model, invoker *tool.Invoker, optFns ...func(o *ModelWorkerOptions)) *ModelWorker {
	opts := ModelWorkerOptions{
		Instruction:   NewInstructionFromText(description),
		MaxToolRounds: 8,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	allowed := make(map[string]bool, len(opts.Tools))
	for _, t := range opts.Tools {
		allowed[t] = true
	}

	return &ModelWorker{
		name:          name,
		description:   description,
		model:         m,
		invoker:       invoker,
		instruction:   opts.Instruction,
		tools:         opts.Tools,
		allowed:       allowed,
		maxToolRounds: opts.MaxToolRounds,
		teamMembers:   opts.TeamMembers,
		logger:        logging.With(opts.Logger, "worker", name),
	}
}

// Name implements Worker.
func (w *ModelWorker) Name() string { return w.name }

// Description implements Worker.
func (w *ModelWorker) Description() string { return w.description }

// Tools returns the tool identifiers the worker may call.
func (w *ModelWorker) Tools() []string {
	out := make([]string, len(w.tools))
	copy(out, w.tools)
	return out
}

// Run implements Worker. Tool calls and their results live in a scratch
// history local to this call; only the final answer reaches the conversation.
func (w *ModelWorker) Run(ctx context.Context, conv *core.Conversation) core.Message {
	instructions, err := w.instructions(conv)
	if err != nil {
		return w.failure(err)
	}

	var defs []model.ToolDefinition
	if w.invoker != nil && len(w.tools) > 0 {
		defs, err = w.invoker.Definitions(w.tools...)
		if err != nil {
			return w.failure(err)
		}
	}

	scratch := conv.Contents()
	runID := core.RunIDFromContext(ctx)

	for round := 0; ; round++ {
		start := time.Now()
		resp, err := model.Collect(ctx, w.model, model.Request{
			Instructions: instructions,
			Contents:     scratch,
			Tools:        defs,
		})
		logging.LogModelCall(w.logger, w.model.Info().Name, time.Since(start), err)
		if err != nil {
			return w.failure(err)
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			text := strings.TrimSpace(resp.Content.Text())
			if text == "" {
				text = "(no response)"
			}
			return core.NewMessage(w.name, text)
		}

		if round >= w.maxToolRounds {
			return w.failure(fmt.Errorf("tool round limit (%d) reached without a final answer", w.maxToolRounds))
		}

		scratch = append(scratch, resp.Content)

		parts := make([]core.Part, 0, len(calls))
		for _, fc := range calls {
			result := w.call(ctx, runID, fc)
			fr := core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: result}
			if !result.OK() {
				fr.Error = result.Message
			}
			parts = append(parts, core.FunctionResponsePart{FunctionResponse: fr})
		}
		scratch = append(scratch, core.Content{Role: "tool", Parts: parts})
	}
}

func (w *ModelWorker) call(ctx context.Context, runID string, fc core.FunctionCall) tool.Result {
	if !w.allowed[fc.Name] || w.invoker == nil {
		return tool.NotFound(fc.Name)
	}
	toolCtx := core.NewToolContext(ctx, runID, w.name, fc.ID, w.logger)
	return w.invoker.CallFunction(toolCtx, fc)
}

func (w *ModelWorker) instructions(conv *core.Conversation) (string, error) {
	data := InstructionData{
		WorkerName:  w.name,
		TeamMembers: strings.Join(w.teamMembers, ", "),
		Task:        conv.Task(),
	}

	base, err := w.instruction.Resolve(data)
	if err != nil {
		return "", fmt.Errorf("instruction: %w", err)
	}

	suffix, err := NewInstructionFromTemplate(WorkerSuffix).Resolve(data)
	if err != nil {
		return "", fmt.Errorf("instruction suffix: %w", err)
	}

	return base + "\n" + suffix, nil
}

// failure encodes err as the worker's answer.
func (w *ModelWorker) failure(err error) core.Message {
	w.logger.Warn("worker.failed", "error", err.Error())
	return core.NewMessage(w.name, fmt.Sprintf("Error: %s failed: %v", w.name, err))
}
