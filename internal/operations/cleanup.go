package operations

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"mediaflow/internal/handler"
	"mediaflow/internal/logging"
	"mediaflow/internal/mediapackage"
	"mediaflow/internal/services"
)

// CleanupHandler removes the elements matching flavors. With delete-files the
// local files they point at are deleted too, but only inside Workspace.
type CleanupHandler struct {
	Workspace string
}

func (h *CleanupHandler) Start(_ context.Context, inv *handler.Invocation) (handler.Result, error) {
	flavors, err := mediapackage.ParseFlavors(inv.ConfigOr("flavors", ""))
	if err != nil {
		return handler.Result{}, services.Wrap(services.ErrConfiguration, "cleanup", "parse flavors", "", err)
	}
	mp := inv.MediaPackage
	if mp == nil || len(flavors) == 0 {
		return handler.Skip(), nil
	}
	deleteFiles := inv.ConfigBool("delete-files", false)

	var ids []string
	var errs []error
	for _, el := range mp.Select(flavors, nil) {
		ids = append(ids, el.ID)
		if !deleteFiles {
			continue
		}
		if err := h.deleteFile(el.URI); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range ids {
		mp.Remove(id)
	}
	if err := errors.Join(errs...); err != nil {
		return handler.Result{}, services.Wrap(services.ErrTransient, "cleanup", "delete files", "", err)
	}
	inv.Logger.Info("elements removed", logging.Int("count", len(ids)))
	return handler.Continue(mp), nil
}

func (h *CleanupHandler) deleteFile(uri string) error {
	path, ok := localPath(uri, h.Workspace)
	if !ok || h.Workspace == "" {
		return nil
	}
	rel, err := filepath.Rel(h.Workspace, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (h *CleanupHandler) ConfigurationKeys() map[string]string {
	return map[string]string{
		"flavors":      "comma-separated flavors of elements to remove",
		"delete-files": "true to delete workspace files of removed elements",
	}
}

func (h *CleanupHandler) RequiredConfigurationKeys() []string {
	return []string{"flavors"}
}
