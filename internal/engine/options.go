package engine

import (
	"context"
	"log/slog"
	"time"

	"mediaflow/internal/definition"
	"mediaflow/internal/workflow"
)

// Definitions resolves exception handling workflows by id.
type Definitions interface {
	Get(id string) (*definition.Workflow, bool)
}

// Saver persists an instance after a transition.
type Saver interface {
	Save(ctx context.Context, wi *workflow.Instance) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, wi *workflow.Instance) error

func (f SaverFunc) Save(ctx context.Context, wi *workflow.Instance) error { return f(ctx, wi) }

// StopSignal reports whether a stop was requested for the instance. It is
// polled between operations.
type StopSignal func(ctx context.Context, workflowID string) (bool, error)

// Conditions evaluates execute and skip conditions.
type Conditions interface {
	Evaluate(expression string, vars map[string]string, fallback bool) (bool, error)
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithSaver(saver Saver) Option {
	return func(e *Engine) { e.saver = saver }
}

func WithStopSignal(signal StopSignal) Option {
	return func(e *Engine) { e.stopSignal = signal }
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRetryBackoff waits d before each retry of a failed operation.
func WithRetryBackoff(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.backoff = d
		}
	}
}

func WithConditions(c Conditions) Option {
	return func(e *Engine) {
		if c != nil {
			e.conditions = c
		}
	}
}
