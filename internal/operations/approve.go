package operations

import (
	"context"
	"strconv"

	"mediaflow/internal/handler"
	"mediaflow/internal/services"
)

// ApproveHandler always holds the workflow for a human decision. Resuming with
// approved=true continues the run; approved=false stops it.
type ApproveHandler struct{}

func (ApproveHandler) Start(_ context.Context, inv *handler.Invocation) (handler.Result, error) {
	inv.Logger.Info("waiting for approval")
	return handler.Pause(), nil
}

func (ApproveHandler) Resume(_ context.Context, inv *handler.Invocation, properties map[string]string) (handler.Result, error) {
	raw, ok := properties["approved"]
	if !ok {
		return handler.Result{}, services.Wrap(services.ErrValidation, "approve", "resume", "missing approved property", nil)
	}
	approved, err := strconv.ParseBool(raw)
	if err != nil {
		return handler.Result{}, services.Wrap(services.ErrValidation, "approve", "resume", "approved must be true or false", err)
	}
	if !approved {
		inv.Logger.Info("recording rejected")
		return handler.Stop(), nil
	}
	return handler.Continue(inv.MediaPackage), nil
}

func (ApproveHandler) AlwaysPause() bool                 { return true }
func (ApproveHandler) HoldStateUserInterfaceURL() string { return "/hold/approve" }
func (ApproveHandler) HoldActionTitle() string           { return "Review and approve recording" }

func (ApproveHandler) ConfigurationKeys() map[string]string {
	return map[string]string{}
}
