package agent

import (
	"encoding/json"
	"strings"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/internal/util"
	"github.com/hupe1980/docmesh/model"
)

// RouteFunctionName is the function the supervisor model is forced to call.
const RouteFunctionName = "route"

// Contract violation reasons.
const (
	ReasonMissingCall   = "missing_route_call"
	ReasonMalformedArgs = "malformed_arguments"
	ReasonInvalidRoute  = "invalid_route"
	ReasonUnknownWorker = "unknown_worker"
)

// Decision is the supervisor's choice for one turn.
type Decision struct {
	Next string `json:"next"`
}

// IsFinish reports whether the decision ends the run.
func (d Decision) IsFinish() bool { return d.Next == Finish }

// RouteTool returns the closed "route" function declaration: one required
// string field "next" whose enum is options.
func RouteTool(options []string) model.ToolDefinition {
	return model.NewFunctionTool(
		RouteFunctionName,
		"Select the next role.",
		util.EnumSchema("next", "The next role to act, or FINISH.", options),
	)
}

// ParseDecision extracts the decision from a supervisor response. The only
// accepted shape is a call to the route function whose arguments are the
// object {"next": "<option>"} with an option from the set. Plain text, bare
// strings, missing calls, malformed JSON and out-of-set values are contract
// violations.
func ParseDecision(resp model.Response, options []string) (Decision, error) {
	var call *core.FunctionCall
	for _, fc := range resp.Content.FunctionCalls() {
		if fc.Name == RouteFunctionName {
			fc := fc
			call = &fc
			break
		}
	}
	if call == nil {
		return Decision{}, core.NewContractViolation(ReasonMissingCall, strings.TrimSpace(resp.Content.Text()), options)
	}

	var args map[string]json.RawMessage
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return Decision{}, core.NewContractViolation(ReasonMalformedArgs, call.Arguments, options)
	}

	raw, ok := args["next"]
	if !ok {
		return Decision{}, core.NewContractViolation(ReasonMalformedArgs, call.Arguments, options)
	}

	var next string
	if err := json.Unmarshal(raw, &next); err != nil {
		return Decision{}, core.NewContractViolation(ReasonMalformedArgs, string(raw), options)
	}

	for _, opt := range options {
		if next == opt {
			return Decision{Next: next}, nil
		}
	}

	return Decision{}, core.NewContractViolation(ReasonInvalidRoute, next, options)
}
