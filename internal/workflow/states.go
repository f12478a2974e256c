package workflow

import "strings"

// OperationState is the lifecycle state of one operation instance.
type OperationState string

const (
	OperationInstantiated OperationState = "INSTANTIATED"
	OperationRunning      OperationState = "RUNNING"
	OperationPaused       OperationState = "PAUSED"
	OperationSucceeded    OperationState = "SUCCEEDED"
	OperationFailed       OperationState = "FAILED"
	OperationSkipped      OperationState = "SKIPPED"
)

// State is the lifecycle state of a workflow instance.
type State string

const (
	StateInstantiated State = "INSTANTIATED"
	StateRunning      State = "RUNNING"
	StatePaused       State = "PAUSED"
	StateStopped      State = "STOPPED"
	StateSucceeded    State = "SUCCEEDED"
	StateFailed       State = "FAILED"
	// StateFailing marks an instance running its exception handling workflow.
	StateFailing State = "FAILING"
)

var allStates = []State{
	StateInstantiated,
	StateRunning,
	StatePaused,
	StateStopped,
	StateSucceeded,
	StateFailed,
	StateFailing,
}

// AllStates returns every workflow state in lifecycle order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState normalizes a user-supplied state name.
func ParseState(value string) (State, bool) {
	candidate := State(strings.ToUpper(strings.TrimSpace(value)))
	for _, s := range allStates {
		if s == candidate {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether the instance will never run again.
func (s State) IsTerminal() bool {
	switch s {
	case StateStopped, StateSucceeded, StateFailed:
		return true
	default:
		return false
	}
}

// IsActive reports whether an engine is, or should be, advancing the instance.
func (s State) IsActive() bool {
	return s == StateRunning || s == StateFailing
}
