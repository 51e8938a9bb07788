package agent

import (
	"github.com/hupe1980/docmesh/internal/util"
)

// WorkerSuffix is appended to every model worker's instruction.
const WorkerSuffix = `
Work autonomously according to your specialty, using the tools available to you.
Do not ask for clarification. Your other team members (and other teams) will collaborate with you with their own specialties.
You are chosen for a reason! You are one of the following team members: {{.TeamMembers}}.`

// InstructionData is the template data available to instructions.
type InstructionData struct {
	WorkerName  string
	TeamMembers string
	Options     string
	Workers     string
	Task        string
}

// Provider supplies instruction text at runtime.
type Provider interface {
	Instruction(data InstructionData) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(InstructionData) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(data InstructionData) (string, error) { return f(data) }

// Instruction is either static text, a text/template, or a dynamic provider.
type Instruction struct {
	text     string
	template bool
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromTemplate creates an Instruction rendered with
// InstructionData on every Resolve.
func NewInstructionFromTemplate(text string) Instruction {
	return Instruction{text: text, template: true}
}

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(InstructionData) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is a plain string.
func (i Instruction) IsStatic() bool { return i.provider == nil && !i.template }

// Resolve returns the instruction text.
func (i Instruction) Resolve(data InstructionData) (string, error) {
	switch {
	case i.provider != nil:
		return i.provider.Instruction(data)
	case i.template:
		return util.RenderTemplate(i.text, data)
	default:
		return i.text, nil
	}
}
