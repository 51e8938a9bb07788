package tool

import (
	"context"
	"fmt"
)

// PythonToolName is the identifier of the code execution tool.
const PythonToolName = "python_repl"

// CodeRunner executes Python source and returns its combined output.
type CodeRunner interface {
	Run(ctx context.Context, code string) (string, error)
}

// NewPythonTool exposes runner through the single "run" action.
func NewPythonTool(runner CodeRunner) *ActionTool {
	return NewActionTool(PythonToolName,
		"Use this to execute python code. If you want to see the output of a value, you should print it out with `print(...)`. This is visible to the user.",
		Action{
			Name:        "run",
			Description: "execute code in an isolated sandbox",
			Properties: map[string]any{
				"code": map[string]any{"type": "string", "description": "The python code to execute."},
			},
			Required: []string{"code"},
			Handler: func(ctx context.Context, params map[string]any) Result {
				code := stringParam(params, "code", "")

				out, err := runner.Run(ctx, code)
				if err != nil {
					return Failure("Failed to execute. Error: %v", err)
				}

				return Success(fmt.Sprintf("Successfully executed:\n```python\n%s\n```\nStdout: %s", code, out), out)
			},
		},
	)
}
