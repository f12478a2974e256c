package preflight

import (
	"context"
	"fmt"
	"strings"

	"mediaflow/internal/config"
	"mediaflow/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	Optional bool
}

// RunAll executes all applicable preflight checks for the given config.
// The ntfy check only runs when a topic is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Definitions directory", cfg.Paths.DefinitionsDir),
		CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir),
	}

	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		ntfy := CheckNtfy(ctx, topic)
		ntfy.Optional = true
		results = append(results, ntfy)
	}
	return results
}

// Failures returns an error naming every failed required check, or nil.
func Failures(results []Result) error {
	var failed []string
	for _, r := range results {
		if r.Passed || r.Optional {
			continue
		}
		failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "run checks", strings.Join(failed, "; "), nil)
}
