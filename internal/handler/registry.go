package handler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"mediaflow/internal/definition"
	"mediaflow/internal/services"
)

// Registry maps operation ids to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds h to id. Each id may be bound once.
func (r *Registry) Register(id string, h Handler) error {
	id = strings.TrimSpace(id)
	if id == "" || h == nil {
		return services.Wrap(services.ErrConfiguration, "handlers", "register", "handler id and implementation are required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[id]; exists {
		return services.Wrap(services.ErrConfiguration, "handlers", "register", fmt.Sprintf("handler %q already registered", id), nil)
	}
	r.handlers[id] = h
	return nil
}

// Lookup resolves the handler for an operation id.
func (r *Registry) Lookup(id string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[id]
	return h, ok
}

// IDs lists registered operation ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidateOperation checks that op has a handler, uses only keys that handler
// declares and sets every key it requires.
func (r *Registry) ValidateOperation(op definition.Operation) error {
	h, ok := r.Lookup(op.ID)
	if !ok {
		return services.Wrap(services.ErrConfiguration, "handlers", "validate", fmt.Sprintf("no handler registered for operation %q", op.ID), nil)
	}
	declared := h.ConfigurationKeys()
	if _, wildcard := declared[AnyKey]; !wildcard {
		var unknown []string
		for _, key := range op.Configuration.Keys() {
			if _, ok := declared[key]; !ok {
				unknown = append(unknown, key)
			}
		}
		if len(unknown) > 0 {
			return services.Wrap(services.ErrConfiguration, "handlers", "validate",
				fmt.Sprintf("operation %q: unknown configuration keys %s", op.ID, strings.Join(unknown, ", ")), nil)
		}
	}
	if req, ok := h.(Required); ok {
		keys := op.Configuration.Keys()
		var missing []string
		for _, key := range req.RequiredConfigurationKeys() {
			if !slices.Contains(keys, key) {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return services.Wrap(services.ErrConfiguration, "handlers", "validate",
				fmt.Sprintf("operation %q: missing required configuration keys %s", op.ID, strings.Join(missing, ", ")), nil)
		}
	}
	return nil
}

// ValidateDefinition validates every operation of def, reporting all problems.
func (r *Registry) ValidateDefinition(def *definition.Workflow) error {
	var errs []error
	for pos, op := range def.Operations {
		if err := r.ValidateOperation(op); err != nil {
			errs = append(errs, fmt.Errorf("workflow %q position %d: %w", def.ID, pos, err))
		}
	}
	return errors.Join(errs...)
}

// HealthCheck polls every handler that implements HealthChecker.
func (r *Registry) HealthCheck(ctx context.Context) []Health {
	var out []Health
	for _, id := range r.IDs() {
		h, _ := r.Lookup(id)
		if checker, ok := h.(HealthChecker); ok {
			health := checker.HealthCheck(ctx)
			if health.Name == "" {
				health.Name = id
			}
			out = append(out, health)
			continue
		}
		out = append(out, Healthy(id))
	}
	return out
}
