package workflow

import (
	"fmt"
	"time"

	"mediaflow/internal/definition"
	"mediaflow/internal/services"
)

// Key identifies an operation instance within its workflow.
type Key struct {
	TemplateID string
	Position   int
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.TemplateID, k.Position)
}

// Operation is the runtime record of one step. The template fields are copied
// from the definition at instantiation; everything else changes only through
// the transition methods.
type Operation struct {
	template      definition.Operation
	position      int
	state         OperationState
	configuration definition.Configuration

	jobID          string
	failedAttempts int
	abortable      *bool
	continuable    *bool
	holdURL        string
	holdTitle      string
	dateStarted    *time.Time
	dateCompleted  *time.Time
	timeInQueue    time.Duration
}

func newOperation(def definition.Operation, position int) (*Operation, error) {
	if err := def.Validate(nil); err != nil {
		return nil, err
	}
	config := def.Configuration.Clone()
	def.Configuration = definition.Configuration{}
	return &Operation{
		template:      def,
		position:      position,
		state:         OperationInstantiated,
		configuration: config,
	}, nil
}

func (o *Operation) TemplateID() string    { return o.template.ID }
func (o *Operation) Position() int         { return o.position }
func (o *Operation) State() OperationState { return o.state }
func (o *Operation) Description() string   { return o.template.Description }
func (o *Operation) JobID() string         { return o.jobID }
func (o *Operation) FailedAttempts() int   { return o.failedAttempts }
func (o *Operation) MaxAttempts() int      { return o.template.MaxAttempts }

func (o *Operation) ExecuteCondition() string          { return o.template.ExecuteCondition }
func (o *Operation) SkipCondition() string             { return o.template.SkipCondition }
func (o *Operation) ExceptionHandlingWorkflow() string { return o.template.ExceptionHandlingWorkflow }
func (o *Operation) FailWorkflowOnException() bool     { return o.template.FailWorkflowOnException }

// HoldStateUserInterfaceURL is set only while the operation is paused.
func (o *Operation) HoldStateUserInterfaceURL() string { return o.holdURL }

// HoldActionTitle is set only while the operation is paused.
func (o *Operation) HoldActionTitle() string { return o.holdTitle }

func (o *Operation) Abortable() *bool   { return cloneBool(o.abortable) }
func (o *Operation) Continuable() *bool { return cloneBool(o.continuable) }

func (o *Operation) DateStarted() *time.Time   { return cloneTime(o.dateStarted) }
func (o *Operation) DateCompleted() *time.Time { return cloneTime(o.dateCompleted) }
func (o *Operation) TimeInQueue() time.Duration {
	return o.timeInQueue
}

// Configuration returns a copy of the instance configuration.
func (o *Operation) Configuration() definition.Configuration {
	return o.configuration.Clone()
}

// Key returns the value identity of the operation.
func (o *Operation) Key() Key {
	return Key{TemplateID: o.template.ID, Position: o.position}
}

// Equal compares template id and position only.
func (o *Operation) Equal(other *Operation) bool {
	if o == nil || other == nil {
		return o == other
	}
	return o.Key() == other.Key()
}

// IsTerminal reports whether the operation is done for good.
func (o *Operation) IsTerminal() bool {
	switch o.state {
	case OperationSucceeded, OperationSkipped:
		return true
	case OperationFailed:
		return !o.CanRetry()
	default:
		return false
	}
}

// IsActive reports whether the operation is RUNNING or PAUSED.
func (o *Operation) IsActive() bool {
	return o.state == OperationRunning || o.state == OperationPaused
}

// CanRetry reports whether a failed operation has attempts left.
func (o *Operation) CanRetry() bool {
	return o.state == OperationFailed && o.failedAttempts < o.template.MaxAttempts
}

// Begin moves INSTANTIATED to RUNNING. The start date is kept from the first
// attempt.
func (o *Operation) Begin(now time.Time) error {
	if err := o.require("begin", OperationInstantiated); err != nil {
		return err
	}
	o.state = OperationRunning
	if o.dateStarted == nil {
		o.dateStarted = &now
	}
	return nil
}

// Succeed moves RUNNING to SUCCEEDED.
func (o *Operation) Succeed(now time.Time) error {
	if err := o.require("succeed", OperationRunning); err != nil {
		return err
	}
	o.state = OperationSucceeded
	o.complete(now)
	return nil
}

// Skip moves INSTANTIATED or RUNNING to SKIPPED.
func (o *Operation) Skip(now time.Time) error {
	if err := o.require("skip", OperationInstantiated, OperationRunning); err != nil {
		return err
	}
	o.state = OperationSkipped
	o.complete(now)
	return nil
}

// Pause moves RUNNING to PAUSED and records the hold UI.
func (o *Operation) Pause(holdURL, holdTitle string) error {
	if err := o.require("pause", OperationRunning); err != nil {
		return err
	}
	o.state = OperationPaused
	o.holdURL = holdURL
	o.holdTitle = holdTitle
	return nil
}

// Resume moves PAUSED back to RUNNING, clears the hold UI and merges the
// external properties into the configuration.
func (o *Operation) Resume(properties map[string]string) error {
	if err := o.require("resume", OperationPaused); err != nil {
		return err
	}
	o.state = OperationRunning
	o.holdURL = ""
	o.holdTitle = ""
	o.configuration.Merge(properties)
	return nil
}

// Abandon ends a PAUSED operation whose workflow was stopped. The hold UI is
// cleared and the operation is recorded as SKIPPED.
func (o *Operation) Abandon(now time.Time) error {
	if err := o.require("abandon", OperationPaused); err != nil {
		return err
	}
	o.state = OperationSkipped
	o.holdURL = ""
	o.holdTitle = ""
	continuable := false
	o.continuable = &continuable
	o.complete(now)
	return nil
}

// Fail moves RUNNING to FAILED and counts the attempt.
func (o *Operation) Fail(now time.Time) error {
	if err := o.require("fail", OperationRunning); err != nil {
		return err
	}
	o.state = OperationFailed
	o.failedAttempts++
	o.complete(now)
	return nil
}

// Retry moves FAILED back to RUNNING when attempts remain.
func (o *Operation) Retry() error {
	if err := o.require("retry", OperationFailed); err != nil {
		return err
	}
	if !o.CanRetry() {
		return services.Wrap(services.ErrInvalidState, "operation", "retry",
			fmt.Sprintf("%s exhausted %d of %d attempts", o.Key(), o.failedAttempts, o.template.MaxAttempts), nil)
	}
	o.state = OperationRunning
	o.dateCompleted = nil
	return nil
}

// AddQueueTime accumulates time the operation's jobs spent queued.
func (o *Operation) AddQueueTime(d time.Duration) {
	if d > 0 {
		o.timeInQueue += d
	}
}

// BindJob records the job currently backing the operation.
func (o *Operation) BindJob(id string) {
	o.jobID = id
}

// SetFlags records the abortable and continuable hints; nil leaves a flag unset.
func (o *Operation) SetFlags(abortable, continuable *bool) {
	o.abortable = cloneBool(abortable)
	o.continuable = cloneBool(continuable)
}

func (o *Operation) complete(now time.Time) {
	o.dateCompleted = &now
}

func (o *Operation) require(action string, allowed ...OperationState) error {
	for _, s := range allowed {
		if o.state == s {
			return nil
		}
	}
	return services.Wrap(services.ErrInvalidState, "operation", action,
		fmt.Sprintf("%s is %s", o.Key(), o.state), nil)
}

func (o *Operation) clone() *Operation {
	out := *o
	out.template = o.template.Clone()
	out.configuration = o.configuration.Clone()
	out.abortable = cloneBool(o.abortable)
	out.continuable = cloneBool(o.continuable)
	out.dateStarted = cloneTime(o.dateStarted)
	out.dateCompleted = cloneTime(o.dateCompleted)
	return &out
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
