package definition

import (
	"fmt"
	"strings"

	"mediaflow/internal/services"
)

// Workflow is a named, ordered list of operations. List order is execution
// order.
type Workflow struct {
	ID          string      `json:"id"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Published   bool        `json:"published"`
	Operations  []Operation `json:"operations"`
}

// Validate checks the workflow and each of its operations.
func (w *Workflow) Validate(checker ConditionChecker) error {
	if w == nil {
		return services.Wrap(services.ErrConfiguration, "definition", "validate workflow", "definition is nil", nil)
	}
	if strings.TrimSpace(w.ID) == "" {
		return services.Wrap(services.ErrConfiguration, "definition", "validate workflow", "workflow id is required", nil)
	}
	if len(w.Operations) == 0 {
		return services.Wrap(services.ErrConfiguration, "definition", "validate workflow", fmt.Sprintf("workflow %q has no operations", w.ID), nil)
	}
	for i, op := range w.Operations {
		if err := op.Validate(checker); err != nil {
			return fmt.Errorf("workflow %q position %d: %w", w.ID, i, err)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	out.Operations = make([]Operation, len(w.Operations))
	for i, op := range w.Operations {
		out.Operations[i] = op.Clone()
	}
	return &out
}

// Label returns the title, or the id when untitled.
func (w *Workflow) Label() string {
	if strings.TrimSpace(w.Title) != "" {
		return w.Title
	}
	return w.ID
}
