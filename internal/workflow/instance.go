package workflow

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"mediaflow/internal/definition"
	"mediaflow/internal/mediapackage"
	"mediaflow/internal/services"
)

// Instance is one run of a workflow definition against one media package.
// Position points at the operation being, or about to be, executed.
type Instance struct {
	ID           string
	DefinitionID string
	Title        string
	State        State
	MediaPackage *mediapackage.MediaPackage
	Operations   []*Operation
	Position     int
	Properties   map[string]string

	// History keeps the operations replaced by an exception handling
	// workflow, up to and including the one that failed.
	History []*Operation
	Errors  []string

	DateCreated   time.Time
	DateCompleted *time.Time
}

// NewInstance deep-copies def into a fresh INSTANTIATED instance that owns a
// clone of mp.
func NewInstance(def *definition.Workflow, mp *mediapackage.MediaPackage, properties map[string]string, now time.Time) (*Instance, error) {
	if err := def.Validate(nil); err != nil {
		return nil, err
	}
	ops, err := instantiate(def)
	if err != nil {
		return nil, err
	}
	if mp == nil {
		mp = &mediapackage.MediaPackage{ID: uuid.NewString()}
	}
	props := make(map[string]string, len(properties))
	maps.Copy(props, properties)
	return &Instance{
		ID:           uuid.NewString(),
		DefinitionID: def.ID,
		Title:        def.Label(),
		State:        StateInstantiated,
		MediaPackage: mp.Clone(),
		Operations:   ops,
		Properties:   props,
		DateCreated:  now,
	}, nil
}

func instantiate(def *definition.Workflow) ([]*Operation, error) {
	ops := make([]*Operation, len(def.Operations))
	for i, opDef := range def.Operations {
		op, err := newOperation(opDef.Clone(), i)
		if err != nil {
			return nil, fmt.Errorf("workflow %q position %d: %w", def.ID, i, err)
		}
		ops[i] = op
	}
	return ops, nil
}

// Current returns the operation at Position, or nil once the pointer has
// moved past the last operation.
func (i *Instance) Current() *Operation {
	if i.Position < 0 || i.Position >= len(i.Operations) {
		return nil
	}
	return i.Operations[i.Position]
}

// Active returns the RUNNING or PAUSED operation, if any.
func (i *Instance) Active() *Operation {
	for _, op := range i.Operations {
		if op.IsActive() {
			return op
		}
	}
	return nil
}

// Redirected reports whether an exception handling workflow took over.
func (i *Instance) Redirected() bool {
	return len(i.History) > 0
}

// Redirect replaces the remaining operations with the operations of def and
// resets the pointer to 0. Operations up to and including the current one
// move to History.
func (i *Instance) Redirect(def *definition.Workflow) error {
	if err := def.Validate(nil); err != nil {
		return err
	}
	ops, err := instantiate(def)
	if err != nil {
		return err
	}
	end := min(i.Position+1, len(i.Operations))
	i.History = append(i.History, i.Operations[:end]...)
	i.Operations = ops
	i.Position = 0
	i.State = StateFailing
	return nil
}

// AddError records a failure message on the instance.
func (i *Instance) AddError(message string) {
	if message != "" {
		i.Errors = append(i.Errors, message)
	}
}

// MergeProperties copies values into the run variables.
func (i *Instance) MergeProperties(values map[string]string) {
	if len(values) == 0 {
		return
	}
	if i.Properties == nil {
		i.Properties = make(map[string]string, len(values))
	}
	maps.Copy(i.Properties, values)
}

// Variables returns a copy of the run variables used for conditions and
// configuration placeholders.
func (i *Instance) Variables() map[string]string {
	out := make(map[string]string, len(i.Properties)+2)
	maps.Copy(out, i.Properties)
	if _, ok := out["workflow.id"]; !ok {
		out["workflow.id"] = i.ID
	}
	if _, ok := out["mediapackage.id"]; !ok && i.MediaPackage != nil {
		out["mediapackage.id"] = i.MediaPackage.ID
	}
	return out
}

// Check verifies the structural invariants: the pointer is in range and at
// most one operation is RUNNING or PAUSED.
func (i *Instance) Check() error {
	if i.Position < 0 || i.Position > len(i.Operations) {
		return services.Wrap(services.ErrInvalidState, "workflow", "check", fmt.Sprintf("position %d out of range", i.Position), nil)
	}
	active := 0
	for _, op := range i.Operations {
		if op.IsActive() {
			active++
		}
	}
	if active > 1 {
		return services.Wrap(services.ErrInvalidState, "workflow", "check", fmt.Sprintf("%d operations active", active), nil)
	}
	return nil
}

// Clone returns a deep copy.
func (i *Instance) Clone() *Instance {
	out := *i
	out.MediaPackage = i.MediaPackage.Clone()
	out.Operations = cloneOperations(i.Operations)
	out.History = cloneOperations(i.History)
	out.Properties = maps.Clone(i.Properties)
	out.Errors = append([]string(nil), i.Errors...)
	out.DateCompleted = cloneTime(i.DateCompleted)
	return &out
}

func cloneOperations(in []*Operation) []*Operation {
	if in == nil {
		return nil
	}
	out := make([]*Operation, len(in))
	for idx, op := range in {
		out[idx] = op.clone()
	}
	return out
}
