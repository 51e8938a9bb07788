package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by stores when an object or record is absent.
	ErrNotFound = errors.New("not found")

	// ErrContractViolation matches every *ContractViolationError via errors.Is.
	ErrContractViolation = errors.New("contract violation")

	// ErrTurnLimitExceeded is returned by TurnLimiter once the ceiling is hit.
	ErrTurnLimitExceeded = errors.New("turn limit exceeded")
)

// ContractViolationError reports a routing reply outside the closed option
// set, or a routed name that the roster cannot resolve. It is fatal for the
// run that produced it.
type ContractViolationError struct {
	Reason  string   // short machine-friendly reason, e.g. "invalid_route"
	Value   string   // offending value as received
	Options []string // the closed option set in force
}

// NewContractViolation builds a ContractViolationError.
func NewContractViolation(reason, value string, options []string) *ContractViolationError {
	return &ContractViolationError{Reason: reason, Value: value, Options: options}
}

func (e *ContractViolationError) Error() string {
	if len(e.Options) == 0 {
		return fmt.Sprintf("contract violation [%s]: %q", e.Reason, e.Value)
	}
	return fmt.Sprintf("contract violation [%s]: %q not in [%s]", e.Reason, e.Value, strings.Join(e.Options, ", "))
}

// Is lets errors.Is(err, ErrContractViolation) match.
func (e *ContractViolationError) Is(target error) bool { return target == ErrContractViolation }
