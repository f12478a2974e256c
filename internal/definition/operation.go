package definition

import (
	"encoding/json"
	"fmt"
	"strings"

	"mediaflow/internal/services"
)

// DefaultMaxAttempts applies when an authored operation omits max attempts.
const DefaultMaxAttempts = 1

// ConditionChecker validates condition syntax. condition.Evaluator satisfies it.
type ConditionChecker interface {
	Check(expression string) error
}

// Operation is the immutable template of one pipeline step.
type Operation struct {
	ID                        string
	Description               string
	ExecuteCondition          string
	SkipCondition             string
	ExceptionHandlingWorkflow string
	FailWorkflowOnException   bool
	MaxAttempts               int
	Configuration             Configuration
}

// OperationOption customizes NewOperation.
type OperationOption func(*Operation)

func WithDescription(description string) OperationOption {
	return func(o *Operation) { o.Description = description }
}

func WithExecuteCondition(expression string) OperationOption {
	return func(o *Operation) { o.ExecuteCondition = expression }
}

func WithSkipCondition(expression string) OperationOption {
	return func(o *Operation) { o.SkipCondition = expression }
}

// WithExceptionHandler names the workflow the instance switches to when this
// operation fails fatally.
func WithExceptionHandler(workflowID string) OperationOption {
	return func(o *Operation) { o.ExceptionHandlingWorkflow = workflowID }
}

func WithFailOnError(fail bool) OperationOption {
	return func(o *Operation) { o.FailWorkflowOnException = fail }
}

func WithMaxAttempts(n int) OperationOption {
	return func(o *Operation) { o.MaxAttempts = n }
}

func WithConfig(key, value string) OperationOption {
	return func(o *Operation) { o.Configuration.Set(key, value) }
}

// NewOperation builds and validates an operation definition. Unless options
// say otherwise it allows one attempt and fails the workflow on error.
func NewOperation(id string, opts ...OperationOption) (Operation, error) {
	op := Operation{
		ID:                      strings.TrimSpace(id),
		FailWorkflowOnException: true,
		MaxAttempts:             DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(&op)
	}
	if err := op.Validate(nil); err != nil {
		return Operation{}, err
	}
	return op, nil
}

// MustOperation is NewOperation for static definitions and tests.
func MustOperation(id string, opts ...OperationOption) Operation {
	op, err := NewOperation(id, opts...)
	if err != nil {
		panic(err)
	}
	return op
}

// Validate rejects operations that could never run correctly. checker may be
// nil, in which case conditions are not compiled.
func (o Operation) Validate(checker ConditionChecker) error {
	if strings.TrimSpace(o.ID) == "" {
		return services.Wrap(services.ErrConfiguration, "definition", "validate operation", "operation id is required", nil)
	}
	if o.MaxAttempts < 1 {
		return services.Wrap(services.ErrConfiguration, "definition", "validate operation", fmt.Sprintf("operation %q: max attempts must be at least 1, got %d", o.ID, o.MaxAttempts), nil)
	}
	for _, key := range o.Configuration.Keys() {
		if strings.TrimSpace(key) == "" {
			return services.Wrap(services.ErrConfiguration, "definition", "validate operation", fmt.Sprintf("operation %q: empty configuration key", o.ID), nil)
		}
	}
	if checker == nil {
		return nil
	}
	for _, expression := range []string{o.ExecuteCondition, o.SkipCondition} {
		if err := checker.Check(expression); err != nil {
			return fmt.Errorf("operation %q: %w", o.ID, err)
		}
	}
	return nil
}

// Clone returns a copy that shares no mutable state with o.
func (o Operation) Clone() Operation {
	o.Configuration = o.Configuration.Clone()
	return o
}

func (o Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.file())
}

func (o *Operation) UnmarshalJSON(data []byte) error {
	var f operationFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	decoded := f.operation(DefaultMaxAttempts)
	if err := decoded.Validate(nil); err != nil {
		return err
	}
	*o = decoded
	return nil
}
