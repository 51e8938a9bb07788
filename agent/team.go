package agent

import (
	"fmt"

	"github.com/hupe1980/docmesh/logging"
	"github.com/hupe1980/docmesh/model"
	"github.com/hupe1980/docmesh/tool"
)

// DefaultWorkerSpecs is the default team.
func DefaultWorkerSpecs() []WorkerSpec {
	stores := []string{tool.ObjectStoreToolName, tool.VectorStoreToolName}
	return []WorkerSpec{
		{
			Name:        "data_analysis",
			Description: "Analyze the provided dataset and summarize key insights.",
			Tools:       stores,
		},
		{
			Name:        "content_creation",
			Description: "Create a detailed report/article based on the provided insights.",
			Tools:       []string{"create_outline", "read_document", "write_document", "edit_document"},
		},
		{
			Name:        "automation",
			Description: "Automate the identified routine task based on the criteria provided.",
			Tools:       []string{tool.PythonToolName},
		},
		{
			Name:        "quality_assurance",
			Description: "Review the output for accuracy, quality, and adherence to guidelines.",
			Tools:       []string{"read_document"},
		},
		{
			Name:        "communication",
			Description: "Summarize the discussions and facilitate communication between agents.",
		},
	}
}

// TeamOptions configures BuildTeam.
type TeamOptions struct {
	MaxToolRounds int
	Logger        logging.Logger
}

// BuildTeam creates one ModelWorker per spec and returns them as a roster.
// Every tool identifier must be registered with invoker.
func BuildTeam(m model.Model, invoker *tool.Invoker, specs []WorkerSpec, optFns ...func(o *TeamOptions)) (*Roster, error) {
	opts := TeamOptions{MaxToolRounds: 8, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}

	workers := make([]Worker, 0, len(specs))
	for _, spec := range specs {
		for _, t := range spec.Tools {
			if _, ok := invoker.Lookup(t); !ok {
				return nil, fmt.Errorf("worker %s: %w: %s", spec.Name, tool.ErrToolNotFound, t)
			}
		}

		instruction := NewInstructionFromText(spec.Description)
		if spec.Instruction != "" {
			instruction = NewInstructionFromTemplate(spec.Instruction)
		}

		workers = append(workers, NewModelWorker(spec.Name, spec.Description, m, invoker, func(o *ModelWorkerOptions) {
			o.Instruction = instruction
			o.Tools = spec.Tools
			o.TeamMembers = names
			o.MaxToolRounds = opts.MaxToolRounds
			o.Logger = opts.Logger
		}))
	}

	return NewRoster(workers...)
}
