package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/internal/util"
)

// ActionHandler executes one action of an ActionTool.
type ActionHandler func(ctx context.Context, params map[string]any) Result

// Action is one member of an ActionTool's closed vocabulary.
type Action struct {
	Name        string
	Description string
	// Properties maps parameter names to their JSON schema.
	Properties map[string]any
	Required   []string
	Handler    ActionHandler
}

// ActionTool groups a closed set of actions behind one tool name. Models
// select the action through the "action" enum parameter.
type ActionTool struct {
	name        string
	description string
	actions     map[string]Action
	order       []string
}

// NewActionTool creates an ActionTool. Actions keep their declaration order
// in the exposed enum.
func NewActionTool(name, description string, actions ...Action) *ActionTool {
	t := &ActionTool{
		name:        name,
		description: description,
		actions:     make(map[string]Action, len(actions)),
	}
	for _, a := range actions {
		if _, dup := t.actions[a.Name]; !dup {
			t.order = append(t.order, a.Name)
		}
		t.actions[a.Name] = a
	}
	return t
}

// Name returns the tool name.
func (t *ActionTool) Name() string { return t.name }

// Description returns the tool description followed by a summary of actions.
func (t *ActionTool) Description() string {
	var b strings.Builder
	b.WriteString(t.description)
	for _, name := range t.order {
		if d := t.actions[name].Description; d != "" {
			fmt.Fprintf(&b, "\n- %s: %s", name, d)
		}
	}
	return b.String()
}

// Actions returns the action vocabulary in declaration order.
func (t *ActionTool) Actions() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Parameters returns the union of all action parameters plus the required
// "action" enum.
func (t *ActionTool) Parameters() map[string]any {
	props := map[string]any{
		"action": map[string]any{
			"type":        "string",
			"description": "The action to perform.",
			"enum":        t.Actions(),
		},
	}

	for _, name := range t.paramNames() {
		var schemas []map[string]any
		for _, actionName := range t.order {
			if schema, ok := t.actions[actionName].Properties[name].(map[string]any); ok {
				schemas = append(schemas, schema)
			}
		}
		props[name] = mergeSchemas(schemas)
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   []string{"action"},
	}
}

// Run executes action with params. Unknown actions and missing or mistyped
// parameters produce error results; the handler never sees them.
func (t *ActionTool) Run(ctx context.Context, action string, params map[string]any) Result {
	a, ok := t.actions[action]
	if !ok {
		return UnsupportedAction(action)
	}

	if params == nil {
		params = map[string]any{}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": a.Properties,
		"required":   a.Required,
	}
	if err := util.ValidateParameters(params, schema); err != nil {
		return Failure("invalid parameters for action '%s': %v", action, err).WithCode(CodeValidation)
	}

	return a.Handler(ctx, params)
}

// Call implements Tool. The "action" argument selects the action and the
// remaining arguments become its parameters.
func (t *ActionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	action, params := SplitAction(args)
	return t.Run(toolCtx.Context(), action, params), nil
}

// SplitAction separates the "action" argument from the rest.
func SplitAction(args map[string]any) (string, map[string]any) {
	action, _ := args["action"].(string)
	params := make(map[string]any, len(args))
	for k, v := range args {
		if k != "action" {
			params[k] = v
		}
	}
	return action, params
}

func (t *ActionTool) paramNames() []string {
	seen := map[string]bool{"action": true}
	var names []string
	for _, a := range t.actions {
		for name := range a.Properties {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// mergeSchemas keeps the first schema when all actions agree on the type.
// Conflicting types collapse into an untyped schema with joined descriptions.
func mergeSchemas(schemas []map[string]any) map[string]any {
	if len(schemas) == 0 {
		return map[string]any{}
	}

	first := schemas[0]
	var descriptions []string
	conflict := false
	for _, s := range schemas {
		if s["type"] != first["type"] {
			conflict = true
		}
		if d, ok := s["description"].(string); ok && d != "" && !containsString(descriptions, d) {
			descriptions = append(descriptions, d)
		}
	}

	if !conflict {
		return first
	}

	return map[string]any{"description": strings.Join(descriptions, " ")}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
