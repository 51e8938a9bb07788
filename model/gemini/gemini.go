// Package gemini implements model.Model on Google's Gemini API through the
// generative-ai-go client.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/internal/util"
	"github.com/hupe1980/docmesh/model"
	"google.golang.org/api/option"
)

// Options configures the Gemini adapter.
type Options struct {
	Model       string
	Temperature float32
	APIKey      string
}

// Model wraps a genai client behind model.Model.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel dials the Gemini API. The API key is required.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:       "gemini-1.5-flash-latest",
		Temperature: 0,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// Close releases the underlying client.
func (m *Model) Close() error { return m.client.Close() }

// Generate implements model.Model. The history is replayed into a chat
// session and the last content is sent as the new turn.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		gm := m.client.GenerativeModel(m.opts.Model)
		gm.SetTemperature(m.opts.Temperature)
		configure(gm, req)

		history := buildHistory(req.Contents)
		if len(history) == 0 {
			errCh <- fmt.Errorf("gemini: no contents provided")
			return
		}

		session := gm.StartChat()
		session.History = history[:len(history)-1]

		resp, err := session.SendMessage(ctx, history[len(history)-1].Parts...)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			errCh <- fmt.Errorf("gemini: no candidates returned")
			return
		}

		cand := resp.Candidates[0]
		var parts []core.Part
		for i, p := range cand.Content.Parts {
			switch v := p.(type) {
			case genai.Text:
				if v != "" {
					parts = append(parts, core.TextPart{Text: string(v)})
				}
			case genai.FunctionCall:
				args, err := json.Marshal(v.Args)
				if err != nil {
					args = []byte("{}")
				}
				parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        fmt.Sprintf("%s_%d", v.Name, i),
					Name:      v.Name,
					Arguments: string(args),
				}})
			}
		}

		finish := "stop"
		if len(parts) > 0 {
			if _, ok := parts[len(parts)-1].(core.FunctionCallPart); ok {
				finish = "tool_calls"
			}
		}

		out <- model.Response{
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: finish,
		}
	}()

	return out, errCh
}

// configure applies instructions, tool declarations and tool choice.
func configure(gm *genai.GenerativeModel, req model.Request) {
	system := req.Instructions
	for _, c := range req.Contents {
		if c.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += c.Text()
		}
	}
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	if len(req.Tools) == 0 {
		return
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
	for _, t := range req.Tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  toSchema(t.Function.Parameters),
		})
	}
	gm.Tools = []*genai.Tool{{FunctionDeclarations: decls}}

	if req.ToolChoice != "" {
		gm.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingAny,
				AllowedFunctionNames: []string{req.ToolChoice},
			},
		}
	}
}

// buildHistory maps contents onto genai roles ("user" and "model"). Tool
// responses travel as user-role FunctionResponse parts.
func buildHistory(contents []core.Content) []*genai.Content {
	var history []*genai.Content

	for _, c := range contents {
		var parts []genai.Part
		role := "user"

		switch c.Role {
		case "system":
			continue
		case "assistant":
			role = "model"
			if text := c.Text(); text != "" {
				parts = append(parts, genai.Text(text))
			}
			for _, fc := range c.FunctionCalls() {
				args := map[string]any{}
				_ = json.Unmarshal([]byte(fc.Arguments), &args)
				parts = append(parts, genai.FunctionCall{Name: fc.Name, Args: args})
			}
		case "tool":
			for _, fr := range c.FunctionResponses() {
				parts = append(parts, genai.FunctionResponse{
					Name:     fr.Name,
					Response: responseMap(fr),
				})
			}
		default:
			if text := c.Text(); text != "" {
				parts = append(parts, genai.Text(text))
			}
		}

		if len(parts) > 0 {
			history = append(history, &genai.Content{Role: role, Parts: parts})
		}
	}

	return history
}

func responseMap(fr core.FunctionResponse) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(model.ResponseText(fr)), &m); err == nil {
		return m
	}
	return map[string]any{"result": model.ResponseText(fr)}
}

// toSchema converts a JSON schema map into a genai.Schema.
func toSchema(s map[string]any) *genai.Schema {
	if s == nil {
		return &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
	}

	out := &genai.Schema{Type: schemaType(s["type"])}
	if d, ok := s["description"].(string); ok {
		out.Description = d
	}

	if enum, ok := s["enum"]; ok {
		switch e := enum.(type) {
		case []string:
			out.Enum = append(out.Enum, e...)
		case []any:
			for _, v := range e {
				if str, ok := v.(string); ok {
					out.Enum = append(out.Enum, str)
				}
			}
		}
	}

	if props, ok := s["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				out.Properties[name] = toSchema(pm)
			}
		}
	}

	if items, ok := s["items"].(map[string]any); ok {
		out.Items = toSchema(items)
	}

	out.Required = util.RequiredFields(s)

	return out
}

func schemaType(v any) genai.Type {
	switch v {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeObject
	}
}

// Info returns metadata describing this model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}
