package workflows

import (
	"fmt"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/validator"
)

// definition is the validated shape of a workflow graph
type definition struct {
	Nodes []Node `json:"nodes" validate:"required,min=1,dive"`
	Edges []Edge `json:"edges" validate:"dive"`
}

// ValidateDefinition checks the structural invariants of a workflow graph:
// at least one node, well-formed nodes and edges, unique node identifiers,
// and edges that reference existing nodes. A missing start node is not a
// definition error; it surfaces as a failed execution.
func ValidateDefinition(wf *Workflow) error {
	if wf == nil {
		return errors.NewValidationError("workflow cannot be nil")
	}

	if err := validator.Validate(definition{Nodes: wf.Nodes, Edges: wf.Edges}); err != nil {
		return err
	}

	errs := errors.NewErrorList()
	seen := make(map[string]struct{}, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if _, dup := seen[n.ID]; dup {
			errs.Add(errors.ValidationError(errors.CodeInvalidWorkflow, fmt.Sprintf("duplicate node id %q", n.ID)))
			continue
		}
		seen[n.ID] = struct{}{}
	}
	for _, e := range wf.Edges {
		if _, ok := seen[e.Source]; !ok {
			errs.Add(errors.ValidationError(errors.CodeInvalidWorkflow, fmt.Sprintf("edge %q references unknown source %q", e.ID, e.Source)))
		}
		if _, ok := seen[e.Target]; !ok {
			errs.Add(errors.ValidationError(errors.CodeInvalidWorkflow, fmt.Sprintf("edge %q references unknown target %q", e.ID, e.Target)))
		}
	}

	return errs.ErrorOrNil()
}

// ValidateWorkflow validates a workflow about to be stored
func ValidateWorkflow(wf *Workflow) error {
	if wf == nil {
		return errors.NewValidationError("workflow cannot be nil")
	}
	if wf.Name == "" {
		return errors.ValidationError(errors.CodeMissingField, "name is required")
	}
	if wf.Schedule != "" {
		if _, err := validator.CronParser.Parse(wf.Schedule); err != nil {
			return errors.ValidationError(errors.CodeInvalidFormat, "schedule must be a valid cron expression").
				WithDetails(err.Error())
		}
	}
	return ValidateDefinition(wf)
}
