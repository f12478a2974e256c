package handler

import (
	"context"
	"time"

	"mediaflow/internal/mediapackage"
)

// Action tells the engine what to do after a handler returns.
type Action string

const (
	// ActionContinue completes the operation and advances to the next one.
	ActionContinue Action = "CONTINUE"
	// ActionPause holds the whole workflow until it is resumed.
	ActionPause Action = "PAUSE"
	// ActionSkip marks the operation skipped and advances.
	ActionSkip Action = "SKIP"
	// ActionStop completes the operation and stops the workflow.
	ActionStop Action = "STOP"
)

// Result is what a handler hands back to the engine. A nil MediaPackage
// leaves the instance's package unchanged; Properties are merged into the run
// variables.
type Result struct {
	Action       Action
	MediaPackage *mediapackage.MediaPackage
	Properties   map[string]string
	QueueTime    time.Duration
}

// Continue returns a CONTINUE result carrying mp.
func Continue(mp *mediapackage.MediaPackage) Result {
	return Result{Action: ActionContinue, MediaPackage: mp}
}

// Skip returns a SKIP result.
func Skip() Result { return Result{Action: ActionSkip} }

// Pause returns a PAUSE result.
func Pause() Result { return Result{Action: ActionPause} }

// Stop returns a STOP result.
func Stop() Result { return Result{Action: ActionStop} }

// Handler implements one operation id. Any returned error is a recoverable
// operation failure and drives the retry policy.
type Handler interface {
	Start(ctx context.Context, inv *Invocation) (Result, error)
	// ConfigurationKeys maps each recognized key to its description. A "*"
	// key accepts any configuration.
	ConfigurationKeys() map[string]string
}

// Resumable handlers can hold the workflow pending external input.
type Resumable interface {
	Handler
	// Resume is only called for a PAUSED operation.
	Resume(ctx context.Context, inv *Invocation, properties map[string]string) (Result, error)
	// AlwaysPause makes the engine hold after a successful start even when
	// the handler returned CONTINUE.
	AlwaysPause() bool
	HoldStateUserInterfaceURL() string
	HoldActionTitle() string
}

// Required is implemented by handlers that cannot run without some keys.
type Required interface {
	RequiredConfigurationKeys() []string
}

// HealthChecker is implemented by handlers that depend on something outside
// the process.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// AnyKey in ConfigurationKeys disables unknown-key validation.
const AnyKey = "*"
