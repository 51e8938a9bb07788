package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/docmesh/agent"
	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/internal/util"
	"github.com/hupe1980/docmesh/model"
)

// Summarizer condenses a document before it is indexed.
type Summarizer interface {
	Summarize(ctx context.Context, name, content string) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, name, content string) (string, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, name, content string) (string, error) {
	return f(ctx, name, content)
}

// DefaultSummaryPrompt is the instruction given to ModelSummarizer.
const DefaultSummaryPrompt = "Process this document and return a concise summary of its key points."

// DefaultTeamTask is the task template given to TeamSummarizer.
const DefaultTeamTask = `Summarize the document "{{.Name}}" for the search index. Reply with the summary only.

{{.Content}}`

// ModelSummarizer asks a model for a summary in a single call.
type ModelSummarizer struct {
	model  model.Model
	prompt string
}

// NewModelSummarizer creates a ModelSummarizer. An empty prompt selects
// DefaultSummaryPrompt.
func NewModelSummarizer(m model.Model, prompt string) *ModelSummarizer {
	if prompt == "" {
		prompt = DefaultSummaryPrompt
	}
	return &ModelSummarizer{model: m, prompt: prompt}
}

// Summarize implements Summarizer.
func (s *ModelSummarizer) Summarize(ctx context.Context, name, content string) (string, error) {
	resp, err := model.Collect(ctx, s.model, model.Request{
		Instructions: s.prompt,
		Contents: []core.Content{
			core.NewTextContent("user", fmt.Sprintf("Document: %s\n\n%s", name, content)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", name, err)
	}
	return strings.TrimSpace(resp.Content.Text()), nil
}

// TaskRunner executes a dispatch run for a task.
type TaskRunner interface {
	Run(ctx context.Context, task string) (agent.Result, error)
}

// TeamSummarizer summarizes through a dispatch run. The last worker message
// is the summary; an inconclusive run still yields its partial answer.
type TeamSummarizer struct {
	runner TaskRunner
	task   string
}

// NewTeamSummarizer creates a TeamSummarizer. An empty task template selects
// DefaultTeamTask.
func NewTeamSummarizer(r TaskRunner, task string) *TeamSummarizer {
	if task == "" {
		task = DefaultTeamTask
	}
	return &TeamSummarizer{runner: r, task: task}
}

// Summarize implements Summarizer.
func (s *TeamSummarizer) Summarize(ctx context.Context, name, content string) (string, error) {
	task, err := util.RenderTemplate(s.task, map[string]string{"Name": name, "Content": content})
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", name, err)
	}

	res, err := s.runner.Run(ctx, task)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", name, err)
	}
	if res.Outcome == core.OutcomeFailure {
		if res.Err == nil {
			res.Err = errors.New("run failed")
		}
		return "", fmt.Errorf("summarize %s: %w", name, res.Err)
	}

	final, ok := res.Final()
	if !ok {
		return "", nil
	}
	return strings.TrimSpace(final.Content), nil
}
