package tool

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/docmesh/core"
)

// Status is the outcome of a tool invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the structured outcome of every invocation: a success payload or
// a structured error. String renders it as JSON for model consumption.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	// Code classifies errors in-process (CodeNotFound, CodeValidation, ...).
	// It is not part of the rendered result.
	Code string `json:"-"`
}

// Success builds a successful result.
func Success(message string, data any) Result {
	return Result{Status: StatusSuccess, Message: message, Data: data}
}

// Failure builds an error result from a formatted message.
func Failure(format string, args ...any) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// FromError converts err into an error result. A *ToolError contributes
// only its message and code.
func FromError(err error) Result {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return Result{Status: StatusError, Message: toolErr.Message, Code: toolErr.Code}
	}
	r := Result{Status: StatusError, Message: err.Error(), Code: CodeExecution}
	if errors.Is(err, core.ErrNotFound) {
		r.Code = CodeNotFound
	}
	return r
}

// UnsupportedAction is returned for actions outside a tool's vocabulary.
func UnsupportedAction(action string) Result {
	return Failure("Action '%s' not supported", action).WithCode(CodeValidation)
}

// NotFound is returned for tool names the invoker does not know.
func NotFound(name string) Result {
	return Failure("Tool '%s' not found", name).WithCode(CodeNotFound)
}

// WithCode returns a copy of r carrying code.
func (r Result) WithCode(code string) Result {
	r.Code = code
	return r
}

// OK reports whether the result is a success.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// Err returns nil for a success and an error carrying the message otherwise.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return errors.New(r.Message)
}

// String renders the result as JSON.
func (r Result) String() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"status":%q,"message":%q}`, r.Status, r.Message)
	}
	return string(data)
}
