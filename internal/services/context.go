package services

import "context"

type contextKey string

const (
	workflowIDKey   contextKey = "workflow_id"
	definitionIDKey contextKey = "definition_id"
	operationKey    contextKey = "operation"
	positionKey     contextKey = "position"
	requestIDKey    contextKey = "request_id"
)

// WithWorkflowID annotates context with the workflow instance identifier.
func WithWorkflowID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, workflowIDKey, id)
}

// WorkflowIDFromContext extracts the workflow instance identifier if present.
func WorkflowIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(workflowIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithDefinitionID annotates context with the workflow definition identifier.
func WithDefinitionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, definitionIDKey, id)
}

// DefinitionIDFromContext returns the workflow definition identifier if present.
func DefinitionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(definitionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOperation annotates context with the operation template id and its
// position inside the running workflow.
func WithOperation(ctx context.Context, operation string, position int) context.Context {
	if operation == "" {
		return ctx
	}
	ctx = context.WithValue(ctx, operationKey, operation)
	return context.WithValue(ctx, positionKey, position)
}

// OperationFromContext returns the operation template id and position if present.
func OperationFromContext(ctx context.Context) (string, int, bool) {
	op, ok := ctx.Value(operationKey).(string)
	if !ok || op == "" {
		return "", 0, false
	}
	pos, _ := ctx.Value(positionKey).(int)
	return op, pos, true
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
