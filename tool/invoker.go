package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/logging"
	"github.com/hupe1980/docmesh/model"
)

// ErrToolNotFound is returned when a tool identifier is not registered.
var ErrToolNotFound = errors.New("tool not found")

// Actioner is implemented by tools with a closed action vocabulary.
type Actioner interface {
	Actions() []string
	Run(ctx context.Context, action string, params map[string]any) Result
}

// InvokerOptions configures an Invoker.
type InvokerOptions struct {
	Logger logging.Logger
}

// Invoker is the boundary between workers and external capabilities. It
// never returns a Go error from an invocation: unknown tools, unsupported
// actions and external failures all become error Results.
//
// Invoker performs no retries, batching or deduplication.
type Invoker struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger logging.Logger
}

// NewInvoker creates an empty Invoker.
func NewInvoker(optFns ...func(o *InvokerOptions)) *Invoker {
	opts := InvokerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Invoker{
		tools:  make(map[string]Tool),
		logger: opts.Logger,
	}
}

// Register adds tools. Names must be unique.
func (inv *Invoker) Register(tools ...Tool) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	for _, t := range tools {
		if t == nil || t.Name() == "" {
			return fmt.Errorf("register tool: empty name")
		}
		if _, exists := inv.tools[t.Name()]; exists {
			return fmt.Errorf("register tool: duplicate name %q", t.Name())
		}
		inv.tools[t.Name()] = t
	}

	return nil
}

// Lookup returns the tool registered under name.
func (inv *Invoker) Lookup(name string) (Tool, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	t, ok := inv.tools[name]

	return t, ok
}

// Names returns the registered tool names sorted.
func (inv *Invoker) Names() []string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	names := make([]string, 0, len(inv.tools))
	for name := range inv.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Definitions returns function declarations for the named tools. An unknown
// name is an error wrapping ErrToolNotFound.
func (inv *Invoker) Definitions(names ...string) ([]model.ToolDefinition, error) {
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		t, ok := inv.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
		}
		defs = append(defs, Definition(t))
	}
	return defs, nil
}

// Invoke executes action on the named tool outside of any worker scope.
func (inv *Invoker) Invoke(ctx context.Context, toolName, action string, params map[string]any) Result {
	return inv.Call(core.NewToolContext(ctx, "", "", "", inv.logger), toolName, action, params)
}

// Call executes action on the named tool within toolCtx. Tools without an
// action vocabulary accept only an empty action. A panicking tool yields an
// error Result with CodeExecution.
func (inv *Invoker) Call(toolCtx *core.ToolContext, toolName, action string, params map[string]any) (result Result) {
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			inv.logger.Error("tool.invoke.panic", "tool", toolName, "action", action, "worker", toolCtx.WorkerName(), "panic", fmt.Sprint(p))
			result = Failure("tool '%s' failed: %v", toolName, p).WithCode(CodeExecution)
		}
	}()

	t, ok := inv.Lookup(toolName)
	if !ok {
		inv.logger.Warn("tool.invoke.not_found", "tool", toolName, "worker", toolCtx.WorkerName())
		return NotFound(toolName)
	}

	if actioner, ok := t.(Actioner); ok {
		result = actioner.Run(toolCtx.Context(), action, params)
	} else if action != "" {
		result = UnsupportedAction(action)
	} else {
		result = callPlain(toolCtx, t, params)
	}

	logging.LogToolCall(inv.logger, toolName, action, time.Since(start), result.Err())

	return result
}

// CallFunction executes a model-issued function call. The JSON arguments
// are decoded and an "action" argument selects the action.
func (inv *Invoker) CallFunction(toolCtx *core.ToolContext, fc core.FunctionCall) Result {
	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return Failure("invalid arguments for tool '%s': %v", fc.Name, err).WithCode(CodeValidation)
		}
	}

	t, ok := inv.Lookup(fc.Name)
	if !ok {
		return NotFound(fc.Name)
	}

	if _, ok := t.(Actioner); ok {
		action, params := SplitAction(args)
		return inv.Call(toolCtx, fc.Name, action, params)
	}

	return inv.Call(toolCtx, fc.Name, "", args)
}

func callPlain(toolCtx *core.ToolContext, t Tool, params map[string]any) Result {
	if params == nil {
		params = map[string]any{}
	}

	out, err := t.Call(toolCtx, params)
	if err != nil {
		return FromError(err)
	}

	switch v := out.(type) {
	case Result:
		return v
	case string:
		return Success(v, nil)
	default:
		return Success("", v)
	}
}
