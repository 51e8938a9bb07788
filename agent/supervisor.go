package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/logging"
	"github.com/hupe1980/docmesh/model"
)

// DefaultSupervisorPrompt is the supervisor system prompt template.
const DefaultSupervisorPrompt = `You are a supervisor tasked with managing a conversation between the following workers: {{.TeamMembers}}.
{{.Workers}}
Given the following user request, respond with the worker to act next. Each worker will perform a task and respond with their results and status. When finished, respond with FINISH.`

// RoutePrompt is appended after the conversation on every decision.
const RoutePrompt = "Given the conversation above, who should act next? Or should we FINISH? Select one of: {{.Options}}"

// Supervisor chooses the next worker, or Finish, from the conversation.
// Implementations must return a Decision whose Next is in roster.Options()
// or a *core.ContractViolationError.
type Supervisor interface {
	Decide(ctx context.Context, conv *core.Conversation, roster *Roster) (Decision, error)
}

// SupervisorFunc adapts a function to Supervisor.
type SupervisorFunc func(ctx context.Context, conv *core.Conversation, roster *Roster) (Decision, error)

// Decide implements Supervisor.
func (f SupervisorFunc) Decide(ctx context.Context, conv *core.Conversation, roster *Roster) (Decision, error) {
	return f(ctx, conv, roster)
}

// ModelSupervisorOptions configures a ModelSupervisor.
type ModelSupervisorOptions struct {
	Instruction Instruction
	RoutePrompt Instruction
	Logger      logging.Logger
}

// ModelSupervisor asks a language model to route by forcing a call to the
// closed "route" function. It holds no per-run state.
type ModelSupervisor struct {
	model       model.Model
	instruction Instruction
	routePrompt Instruction
	logger      logging.Logger
}

// NewModelSupervisor creates a supervisor backed by m.
func NewModelSupervisor(m model.Model, optFns ...func(o *ModelSupervisorOptions)) *ModelSupervisor {
	opts := ModelSupervisorOptions{
		Instruction: NewInstructionFromTemplate(DefaultSupervisorPrompt),
		RoutePrompt: NewInstructionFromTemplate(RoutePrompt),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &ModelSupervisor{
		model:       m,
		instruction: opts.Instruction,
		routePrompt: opts.RoutePrompt,
		logger:      opts.Logger,
	}
}

// Decide implements Supervisor.
func (s *ModelSupervisor) Decide(ctx context.Context, conv *core.Conversation, roster *Roster) (Decision, error) {
	req, err := s.BuildRequest(conv, roster)
	if err != nil {
		return Decision{}, err
	}

	start := time.Now()
	resp, err := model.Collect(ctx, s.model, req)
	logging.LogModelCall(s.logger, s.model.Info().Name, time.Since(start), err)
	if err != nil {
		return Decision{}, fmt.Errorf("supervisor model: %w", err)
	}

	decision, err := ParseDecision(resp, roster.Options())
	if err != nil {
		s.logger.Warn("supervisor.contract_violation", "error", err.Error())
		return Decision{}, err
	}

	return decision, nil
}

// BuildRequest assembles the routing request: system prompt, the full
// conversation, the trailing route prompt, and the forced route function.
func (s *ModelSupervisor) BuildRequest(conv *core.Conversation, roster *Roster) (model.Request, error) {
	options := roster.Options()
	data := InstructionData{
		TeamMembers: strings.Join(roster.Names(), ", "),
		Options:     "[" + strings.Join(options, ", ") + "]",
		Workers:     roster.Describe(),
		Task:        conv.Task(),
	}

	system, err := s.instruction.Resolve(data)
	if err != nil {
		return model.Request{}, fmt.Errorf("supervisor instruction: %w", err)
	}

	route, err := s.routePrompt.Resolve(data)
	if err != nil {
		return model.Request{}, fmt.Errorf("supervisor route prompt: %w", err)
	}

	contents := append(conv.Contents(), core.NewTextContent("system", route))

	return model.Request{
		Instructions: system,
		Contents:     contents,
		Tools:        []model.ToolDefinition{RouteTool(options)},
		ToolChoice:   RouteFunctionName,
	}, nil
}
