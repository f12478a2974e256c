package operations

import (
	"context"

	"mediaflow/internal/handler"
	"mediaflow/internal/logging"
)

// DefaultsHandler sets every configured key as a workflow property unless the
// run already carries a value for it.
type DefaultsHandler struct{}

func (DefaultsHandler) Start(_ context.Context, inv *handler.Invocation) (handler.Result, error) {
	missing := make(map[string]string)
	cfg := inv.Configuration()
	for _, key := range cfg.Keys() {
		if current, ok := inv.Properties[key]; ok && current != "" {
			continue
		}
		value, _ := inv.Config(key)
		missing[key] = value
	}
	if len(missing) == 0 {
		return handler.Skip(), nil
	}
	inv.Logger.Debug("workflow defaults applied", logging.Int("count", len(missing)))
	return handler.Result{Action: handler.ActionContinue, Properties: missing}, nil
}

func (DefaultsHandler) ConfigurationKeys() map[string]string {
	return map[string]string{handler.AnyKey: "property name mapped to its default value"}
}
