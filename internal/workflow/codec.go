package workflow

import (
	"encoding/json"
	"time"

	"mediaflow/internal/definition"
	"mediaflow/internal/mediapackage"
)

// operationJSON is the stored layout of an operation instance. Timestamps are
// epoch milliseconds.
type operationJSON struct {
	ID                        string                   `json:"id"`
	Position                  int                      `json:"position"`
	Description               string                   `json:"description,omitempty"`
	State                     OperationState           `json:"state"`
	If                        string                   `json:"if,omitempty"`
	Unless                    string                   `json:"unless,omitempty"`
	ExceptionHandlingWorkflow string                   `json:"exception-handler-workflow,omitempty"`
	FailOnError               bool                     `json:"fail-on-error"`
	MaxAttempts               int                      `json:"max-attempts"`
	FailedAttempts            int                      `json:"failed-attempts"`
	JobID                     string                   `json:"job,omitempty"`
	Abortable                 *bool                    `json:"abortable,omitempty"`
	Continuable               *bool                    `json:"continuable,omitempty"`
	HoldURL                   string                   `json:"hold-url,omitempty"`
	HoldActionTitle           string                   `json:"hold-action-title,omitempty"`
	Started                   *int64                   `json:"started,omitempty"`
	Completed                 *int64                   `json:"completed,omitempty"`
	TimeInQueue               int64                    `json:"time-in-queue,omitempty"`
	Configuration             definition.Configuration `json:"configurations"`
}

func (o *Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(operationJSON{
		ID:                        o.template.ID,
		Position:                  o.position,
		Description:               o.template.Description,
		State:                     o.state,
		If:                        o.template.ExecuteCondition,
		Unless:                    o.template.SkipCondition,
		ExceptionHandlingWorkflow: o.template.ExceptionHandlingWorkflow,
		FailOnError:               o.template.FailWorkflowOnException,
		MaxAttempts:               o.template.MaxAttempts,
		FailedAttempts:            o.failedAttempts,
		JobID:                     o.jobID,
		Abortable:                 o.abortable,
		Continuable:               o.continuable,
		HoldURL:                   o.holdURL,
		HoldActionTitle:           o.holdTitle,
		Started:                   toMillis(o.dateStarted),
		Completed:                 toMillis(o.dateCompleted),
		TimeInQueue:               o.timeInQueue.Milliseconds(),
		Configuration:             o.configuration,
	})
}

// UnmarshalJSON rebuilds an operation. A stored max-attempts below 1 is
// rejected so no instance ever carries one.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var wire operationJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	template := definition.Operation{
		ID:                        wire.ID,
		Description:               wire.Description,
		ExecuteCondition:          wire.If,
		SkipCondition:             wire.Unless,
		ExceptionHandlingWorkflow: wire.ExceptionHandlingWorkflow,
		FailWorkflowOnException:   wire.FailOnError,
		MaxAttempts:               wire.MaxAttempts,
	}
	if err := template.Validate(nil); err != nil {
		return err
	}
	state := wire.State
	if state == "" {
		state = OperationInstantiated
	}
	*o = Operation{
		template:       template,
		position:       wire.Position,
		state:          state,
		configuration:  wire.Configuration,
		jobID:          wire.JobID,
		failedAttempts: wire.FailedAttempts,
		abortable:      wire.Abortable,
		continuable:    wire.Continuable,
		holdURL:        wire.HoldURL,
		holdTitle:      wire.HoldActionTitle,
		dateStarted:    fromMillis(wire.Started),
		dateCompleted:  fromMillis(wire.Completed),
		timeInQueue:    time.Duration(wire.TimeInQueue) * time.Millisecond,
	}
	return nil
}

type instanceJSON struct {
	ID            string                     `json:"id"`
	DefinitionID  string                     `json:"template"`
	Title         string                     `json:"title,omitempty"`
	State         State                      `json:"state"`
	Position      int                        `json:"position"`
	MediaPackage  *mediapackage.MediaPackage `json:"mediapackage"`
	Operations    []*Operation               `json:"operations"`
	Properties    map[string]string          `json:"properties,omitempty"`
	History       []*Operation               `json:"history,omitempty"`
	Errors        []string                   `json:"errors,omitempty"`
	DateCreated   int64                      `json:"created"`
	DateCompleted *int64                     `json:"completed,omitempty"`
}

func (i *Instance) MarshalJSON() ([]byte, error) {
	return json.Marshal(instanceJSON{
		ID:            i.ID,
		DefinitionID:  i.DefinitionID,
		Title:         i.Title,
		State:         i.State,
		Position:      i.Position,
		MediaPackage:  i.MediaPackage,
		Operations:    i.Operations,
		Properties:    i.Properties,
		History:       i.History,
		Errors:        i.Errors,
		DateCreated:   i.DateCreated.UnixMilli(),
		DateCompleted: toMillis(i.DateCompleted),
	})
}

func (i *Instance) UnmarshalJSON(data []byte) error {
	var wire instanceJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*i = Instance{
		ID:            wire.ID,
		DefinitionID:  wire.DefinitionID,
		Title:         wire.Title,
		State:         wire.State,
		Position:      wire.Position,
		MediaPackage:  wire.MediaPackage,
		Operations:    wire.Operations,
		Properties:    wire.Properties,
		History:       wire.History,
		Errors:        wire.Errors,
		DateCreated:   time.UnixMilli(wire.DateCreated).UTC(),
		DateCompleted: fromMillis(wire.DateCompleted),
	}
	return i.Check()
}

func toMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromMillis(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
