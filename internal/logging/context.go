package logging

import (
	"context"
	"log/slog"

	"mediaflow/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (operation_started, workflow_failed, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries a short next step for the operator.
	FieldErrorHint = "error_hint"
	// FieldWorkflowID is the workflow instance identifier.
	FieldWorkflowID = "workflow_id"
	// FieldDefinitionID is the workflow definition identifier.
	FieldDefinitionID = "definition_id"
	// FieldOperation is the operation template id.
	FieldOperation = "operation"
	// FieldPosition is the 0-based operation position.
	FieldPosition = "position"
	// FieldJobID is the job identifier.
	FieldJobID = "job_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if id, ok := services.WorkflowIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWorkflowID, id))
	}
	if id, ok := services.DefinitionIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDefinitionID, id))
	}
	if op, pos, ok := services.OperationFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOperation, op), slog.Int(FieldPosition, pos))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return slog.New(logger.Handler().WithAttrs(fields))
}
