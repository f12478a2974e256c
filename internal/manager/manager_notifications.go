package manager

import (
	"context"
	"errors"
	"log/slog"

	"mediaflow/internal/logging"
	"mediaflow/internal/notifications"
	"mediaflow/internal/workflow"
)

func (m *Manager) notifyOutcome(ctx context.Context, logger *slog.Logger, wi *workflow.Instance) {
	if m.notifier == nil {
		return
	}
	event, ok := outcomeEvent(wi.State)
	if !ok {
		return
	}
	payload := notifications.Payload{
		"title":      wi.Title,
		"workflow":   wi.ID,
		"definition": wi.DefinitionID,
		"operation":  operationLabel(wi),
	}
	switch wi.State {
	case workflow.StatePaused:
		if op := wi.Current(); op != nil {
			payload["holdUrl"] = op.HoldStateUserInterfaceURL()
			payload["holdTitle"] = op.HoldActionTitle()
		}
	case workflow.StateFailed:
		if n := len(wi.Errors); n > 0 {
			payload["error"] = wi.Errors[n-1]
		}
	case workflow.StateSucceeded:
		if wi.DateCompleted != nil {
			payload["duration"] = wi.DateCompleted.Sub(wi.DateCreated)
		}
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send workflow notification")
		} else {
			logger.Debug("workflow notification failed",
				logging.String("event", string(event)),
				logging.Error(err),
			)
		}
	}
}

func outcomeEvent(state workflow.State) (notifications.Event, bool) {
	switch state {
	case workflow.StatePaused:
		return notifications.EventWorkflowPaused, true
	case workflow.StateSucceeded:
		return notifications.EventWorkflowSucceeded, true
	case workflow.StateFailed:
		return notifications.EventWorkflowFailed, true
	case workflow.StateStopped:
		return notifications.EventWorkflowStopped, true
	default:
		return "", false
	}
}
