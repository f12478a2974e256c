package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mediaflow/internal/condition"
	"mediaflow/internal/handler"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
	"mediaflow/internal/workflow"
)

// Event types logged on engine transitions.
const (
	EventOperationStarted   = "operation_started"
	EventOperationSucceeded = "operation_succeeded"
	EventOperationSkipped   = "operation_skipped"
	EventOperationPaused    = "operation_paused"
	EventOperationResumed   = "operation_resumed"
	EventOperationFailed    = "operation_failed"
	EventOperationRetry     = "operation_retry"
	EventWorkflowRedirected = "workflow_redirected"
	EventWorkflowSucceeded  = "workflow_succeeded"
	EventWorkflowFailed     = "workflow_failed"
	EventWorkflowStopped    = "workflow_stopped"
)

// Engine dispatches operations to their handlers and applies the results.
type Engine struct {
	handlers    *handler.Registry
	definitions Definitions
	logger      *slog.Logger
	saver       Saver
	stopSignal  StopSignal
	conditions  Conditions
	clock       func() time.Time
	backoff     time.Duration
}

// New builds an engine over the handler registry and the definitions used for
// exception handling workflows.
func New(handlers *handler.Registry, definitions Definitions, opts ...Option) *Engine {
	e := &Engine{
		handlers:    handlers,
		definitions: definitions,
		logger:      logging.NewNop(),
		conditions:  condition.NewEvaluator(),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "engine")
	return e
}

// Start runs a freshly created instance. Only INSTANTIATED instances can be
// started.
func (e *Engine) Start(ctx context.Context, wi *workflow.Instance) error {
	if wi.State != workflow.StateInstantiated {
		return invalidState("start", wi)
	}
	wi.State = workflow.StateRunning
	if err := e.save(ctx, wi); err != nil {
		return err
	}
	e.instanceLogger(ctx, wi).Info("workflow started",
		logging.Int("operations", len(wi.Operations)),
	)
	return e.run(ctx, wi)
}

// Resume hands properties to the paused operation and continues the run.
// Calling it on an instance that is not PAUSED fails with
// services.ErrInvalidState and leaves the instance untouched.
func (e *Engine) Resume(ctx context.Context, wi *workflow.Instance, properties map[string]string) error {
	if wi.State != workflow.StatePaused {
		return invalidState("resume", wi)
	}
	op := wi.Current()
	if op == nil || op.State() != workflow.OperationPaused {
		return services.Wrap(services.ErrInvalidState, "engine", "resume",
			fmt.Sprintf("workflow %s has no paused operation at position %d", wi.ID, wi.Position), nil)
	}
	h, ok := e.handlers.Lookup(op.TemplateID())
	if !ok {
		return services.Wrap(services.ErrConfiguration, "engine", "resume",
			fmt.Sprintf("no handler for operation %q", op.TemplateID()), nil)
	}
	resumable, ok := h.(handler.Resumable)
	if !ok {
		return services.Wrap(services.ErrConfiguration, "engine", "resume",
			fmt.Sprintf("handler for %q is not resumable", op.TemplateID()), nil)
	}

	if err := op.Resume(properties); err != nil {
		return err
	}
	wi.MergeProperties(properties)
	wi.State = e.runningState(wi)
	ctx, logger := e.operationContext(ctx, wi, op)
	logger.Info("operation resumed",
		logging.String(logging.FieldEventType, EventOperationResumed),
		logging.Int("properties", len(properties)),
	)
	if err := e.save(ctx, wi); err != nil {
		return err
	}

	inv := handler.NewInvocation(wi, op, logger, op.BindJob)
	result, err := invoke(func() (handler.Result, error) {
		return resumable.Resume(ctx, inv, properties)
	})
	if err := e.apply(ctx, wi, op, h, result, err, true); err != nil {
		return err
	}
	return e.run(ctx, wi)
}

// Stop ends an instance that is not currently being advanced. Running
// instances are stopped through the stop signal at the next step boundary.
func (e *Engine) Stop(ctx context.Context, wi *workflow.Instance) error {
	switch {
	case wi.State.IsTerminal():
		return invalidState("stop", wi)
	case wi.State.IsActive():
		return services.Wrap(services.ErrInvalidState, "engine", "stop",
			fmt.Sprintf("workflow %s is %s; request a stop and let its worker observe it", wi.ID, wi.State), nil)
	}
	return e.stop(ctx, wi)
}

// Recover re-enters an instance that was RUNNING or FAILING when its previous
// owner went away. An operation caught mid-dispatch is started again at the
// same position.
func (e *Engine) Recover(ctx context.Context, wi *workflow.Instance) error {
	if !wi.State.IsActive() {
		return invalidState("recover", wi)
	}
	if err := wi.Check(); err != nil {
		return err
	}
	e.instanceLogger(ctx, wi).Info("workflow recovered",
		logging.Int(logging.FieldPosition, wi.Position),
	)
	return e.run(ctx, wi)
}

func (e *Engine) run(ctx context.Context, wi *workflow.Instance) error {
	for wi.State.IsActive() {
		if err := ctx.Err(); err != nil {
			return err
		}
		stop, err := e.stopRequested(ctx, wi)
		if err != nil {
			return err
		}
		if stop {
			return e.stop(ctx, wi)
		}

		op := wi.Current()
		if op == nil {
			return e.complete(ctx, wi)
		}
		if err := e.step(ctx, wi, op); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) step(ctx context.Context, wi *workflow.Instance, op *workflow.Operation) error {
	switch op.State() {
	case workflow.OperationInstantiated:
		skip, err := e.skipped(wi, op)
		if err != nil {
			if beginErr := op.Begin(e.clock()); beginErr != nil {
				return beginErr
			}
			return e.fail(ctx, wi, op, err)
		}
		if skip {
			if err := op.Skip(e.clock()); err != nil {
				return err
			}
			_, logger := e.operationContext(ctx, wi, op)
			logger.Info("operation skipped by condition",
				logging.String(logging.FieldEventType, EventOperationSkipped),
			)
			wi.Position++
			return e.save(ctx, wi)
		}
		if err := op.Begin(e.clock()); err != nil {
			return err
		}
		return e.dispatch(ctx, wi, op)

	case workflow.OperationRunning:
		return e.dispatch(ctx, wi, op)

	case workflow.OperationFailed:
		if !op.CanRetry() {
			return e.escalate(ctx, wi, op)
		}
		if err := e.wait(ctx); err != nil {
			return err
		}
		if err := op.Retry(); err != nil {
			return err
		}
		_, logger := e.operationContext(ctx, wi, op)
		logger.Info("retrying operation",
			logging.String(logging.FieldEventType, EventOperationRetry),
			logging.Int("attempt", op.FailedAttempts()+1),
			logging.Int("max_attempts", op.MaxAttempts()),
		)
		return e.dispatch(ctx, wi, op)

	case workflow.OperationPaused:
		wi.State = workflow.StatePaused
		return e.save(ctx, wi)

	default:
		wi.Position++
		return e.save(ctx, wi)
	}
}

func (e *Engine) skipped(wi *workflow.Instance, op *workflow.Operation) (bool, error) {
	vars := wi.Variables()
	execute, err := e.conditions.Evaluate(op.ExecuteCondition(), vars, true)
	if err != nil {
		return false, err
	}
	skip, err := e.conditions.Evaluate(op.SkipCondition(), vars, false)
	if err != nil {
		return false, err
	}
	return !execute || skip, nil
}

func (e *Engine) dispatch(ctx context.Context, wi *workflow.Instance, op *workflow.Operation) error {
	if err := e.save(ctx, wi); err != nil {
		return err
	}
	ctx, logger := e.operationContext(ctx, wi, op)
	h, ok := e.handlers.Lookup(op.TemplateID())
	if !ok {
		return e.fail(ctx, wi, op, services.Wrap(services.ErrConfiguration, "engine", "dispatch",
			fmt.Sprintf("no handler for operation %q", op.TemplateID()), nil))
	}
	logger.Info("operation started",
		logging.String(logging.FieldEventType, EventOperationStarted),
		logging.Int("attempt", op.FailedAttempts()+1),
	)
	inv := handler.NewInvocation(wi, op, logger, op.BindJob)
	result, err := invoke(func() (handler.Result, error) {
		return h.Start(ctx, inv)
	})
	return e.apply(ctx, wi, op, h, result, err, false)
}

func (e *Engine) apply(ctx context.Context, wi *workflow.Instance, op *workflow.Operation, h handler.Handler, result handler.Result, callErr error, resumed bool) error {
	if callErr != nil {
		return e.fail(ctx, wi, op, callErr)
	}
	_, logger := e.operationContext(ctx, wi, op)
	op.AddQueueTime(result.QueueTime)

	action := result.Action
	if action == "" {
		action = handler.ActionContinue
	}
	resumable, isResumable := h.(handler.Resumable)
	if action == handler.ActionContinue && !resumed && isResumable && resumable.AlwaysPause() {
		action = handler.ActionPause
	}
	if action == handler.ActionPause && !isResumable {
		return e.fail(ctx, wi, op, services.Wrap(services.ErrConfiguration, "engine", "pause",
			fmt.Sprintf("handler for %q cannot pause", op.TemplateID()), nil))
	}
	if action != handler.ActionSkip {
		if result.MediaPackage != nil {
			wi.MediaPackage = result.MediaPackage.Clone()
		}
		wi.MergeProperties(result.Properties)
	}

	now := e.clock()
	switch action {
	case handler.ActionContinue:
		if err := op.Succeed(now); err != nil {
			return err
		}
		logger.Info("operation succeeded",
			logging.String(logging.FieldEventType, EventOperationSucceeded),
			logging.Duration("time_in_queue", op.TimeInQueue()),
		)
		wi.Position++
	case handler.ActionSkip:
		if err := op.Skip(now); err != nil {
			return err
		}
		logger.Info("operation skipped by handler",
			logging.String(logging.FieldEventType, EventOperationSkipped),
		)
		wi.Position++
	case handler.ActionPause:
		if err := op.Pause(resumable.HoldStateUserInterfaceURL(), resumable.HoldActionTitle()); err != nil {
			return err
		}
		held := true
		op.SetFlags(&held, &held)
		wi.State = workflow.StatePaused
		logger.Info("workflow paused for input",
			logging.String(logging.FieldEventType, EventOperationPaused),
			logging.String("hold_url", op.HoldStateUserInterfaceURL()),
			logging.String("hold_title", op.HoldActionTitle()),
		)
	case handler.ActionStop:
		if err := op.Succeed(now); err != nil {
			return err
		}
		logger.Info("operation requested stop",
			logging.String(logging.FieldEventType, EventOperationSucceeded),
		)
		wi.Position++
		return e.stop(ctx, wi)
	default:
		return e.fail(ctx, wi, op, services.Wrap(services.ErrConfiguration, "engine", "apply",
			fmt.Sprintf("handler for %q returned unknown action %q", op.TemplateID(), action), nil))
	}
	return e.save(ctx, wi)
}

// fail records one failed attempt. Retries happen on the next step so the
// stop signal and context are checked between attempts.
func (e *Engine) fail(ctx context.Context, wi *workflow.Instance, op *workflow.Operation, cause error) error {
	if err := op.Fail(e.clock()); err != nil {
		return err
	}
	wi.AddError(fmt.Sprintf("%s attempt %d/%d: %v", op.Key(), op.FailedAttempts(), op.MaxAttempts(), cause))
	_, logger := e.operationContext(ctx, wi, op)
	logging.WarnWithContext(logger, "operation failed", EventOperationFailed,
		logging.Error(cause),
		logging.String("error_kind", services.Kind(cause)),
		logging.Int("failed_attempts", op.FailedAttempts()),
		logging.Int("max_attempts", op.MaxAttempts()),
		logging.String(logging.FieldErrorHint, failureHint(wi, op)),
	)
	if op.CanRetry() {
		return e.save(ctx, wi)
	}
	return e.escalate(ctx, wi, op)
}

// escalate applies the failure policy of an operation out of attempts.
func (e *Engine) escalate(ctx context.Context, wi *workflow.Instance, op *workflow.Operation) error {
	_, logger := e.operationContext(ctx, wi, op)
	if !op.FailWorkflowOnException() {
		logger.Info("continuing after failed operation",
			logging.String(logging.FieldEventType, EventOperationFailed),
			logging.Bool("fail_on_error", false),
		)
		wi.Position++
		return e.save(ctx, wi)
	}

	if target := op.ExceptionHandlingWorkflow(); target != "" && !wi.Redirected() {
		def, ok := e.definitions.Get(target)
		if !ok {
			wi.AddError(fmt.Sprintf("exception handling workflow %q not found", target))
		} else if err := wi.Redirect(def); err != nil {
			wi.AddError(fmt.Sprintf("redirect to %q: %v", target, err))
		} else {
			logging.WarnWithContext(logger, "workflow redirected to exception handler", EventWorkflowRedirected,
				logging.String("exception_workflow", target),
				logging.Int("operations", len(wi.Operations)),
				logging.String(logging.FieldErrorHint, "inspect the instance errors for the original failure"),
			)
			return e.save(ctx, wi)
		}
	}

	now := e.clock()
	wi.State = workflow.StateFailed
	wi.DateCompleted = &now
	logging.ErrorWithContext(logger, "workflow failed", EventWorkflowFailed,
		logging.Int("failed_attempts", op.FailedAttempts()),
		logging.String(logging.FieldErrorHint, "fix the cause and submit the media package again"),
	)
	return e.save(ctx, wi)
}

// complete is reached when the pointer moves past the last operation.
func (e *Engine) complete(ctx context.Context, wi *workflow.Instance) error {
	now := e.clock()
	wi.DateCompleted = &now
	logger := e.instanceLogger(ctx, wi)
	if wi.State == workflow.StateFailing {
		wi.State = workflow.StateFailed
		logging.ErrorWithContext(logger, "exception handling workflow finished", EventWorkflowFailed,
			logging.Int("errors", len(wi.Errors)),
			logging.String(logging.FieldErrorHint, "inspect the instance errors for the original failure"),
		)
	} else {
		wi.State = workflow.StateSucceeded
		logger.Info("workflow succeeded",
			logging.String(logging.FieldEventType, EventWorkflowSucceeded),
			logging.Duration("elapsed", now.Sub(wi.DateCreated)),
		)
	}
	return e.save(ctx, wi)
}

func (e *Engine) stop(ctx context.Context, wi *workflow.Instance) error {
	now := e.clock()
	if op := wi.Active(); op != nil && op.State() == workflow.OperationPaused {
		if err := op.Abandon(now); err != nil {
			return err
		}
	}
	wi.State = workflow.StateStopped
	wi.DateCompleted = &now
	e.instanceLogger(ctx, wi).Info("workflow stopped",
		logging.String(logging.FieldEventType, EventWorkflowStopped),
		logging.Int(logging.FieldPosition, wi.Position),
	)
	return e.save(ctx, wi)
}

func (e *Engine) stopRequested(ctx context.Context, wi *workflow.Instance) (bool, error) {
	if e.stopSignal == nil {
		return false, nil
	}
	return e.stopSignal(ctx, wi.ID)
}

func (e *Engine) wait(ctx context.Context) error {
	if e.backoff <= 0 {
		return nil
	}
	timer := time.NewTimer(e.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) save(ctx context.Context, wi *workflow.Instance) error {
	if e.saver == nil {
		return nil
	}
	if err := e.saver.Save(ctx, wi); err != nil {
		return fmt.Errorf("save workflow %s: %w", wi.ID, err)
	}
	return nil
}

func (e *Engine) runningState(wi *workflow.Instance) workflow.State {
	if wi.Redirected() {
		return workflow.StateFailing
	}
	return workflow.StateRunning
}

func (e *Engine) instanceLogger(ctx context.Context, wi *workflow.Instance) *slog.Logger {
	ctx = services.WithWorkflowID(ctx, wi.ID)
	ctx = services.WithDefinitionID(ctx, wi.DefinitionID)
	return logging.WithContext(ctx, e.logger)
}

func (e *Engine) operationContext(ctx context.Context, wi *workflow.Instance, op *workflow.Operation) (context.Context, *slog.Logger) {
	ctx = services.WithWorkflowID(ctx, wi.ID)
	ctx = services.WithDefinitionID(ctx, wi.DefinitionID)
	ctx = services.WithOperation(ctx, op.TemplateID(), op.Position())
	return ctx, logging.WithContext(ctx, e.logger)
}

func invoke(call func() (handler.Result, error)) (result handler.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return call()
}

func invalidState(action string, wi *workflow.Instance) error {
	return services.Wrap(services.ErrInvalidState, "engine", action,
		fmt.Sprintf("workflow %s is %s", wi.ID, wi.State), nil)
}

func failureHint(wi *workflow.Instance, op *workflow.Operation) string {
	switch {
	case op.CanRetry():
		return "the operation will be retried"
	case !op.FailWorkflowOnException():
		return "the workflow continues without this operation"
	case op.ExceptionHandlingWorkflow() != "" && !wi.Redirected():
		return "the exception handling workflow takes over"
	default:
		return "the workflow fails at this operation"
	}
}
