package operations

import (
	"errors"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/handler"
	"mediaflow/internal/job"
)

// Handler ids.
const (
	Defaults = "defaults"
	Tag      = "tag"
	Inspect  = "inspect"
	Approve  = "approve"
	Cleanup  = "cleanup"
)

// Job types.
const (
	JobInspect = "inspect"
)

// Register adds every built-in handler to reg. Job-backed handlers submit to
// jobs and wait at most the configured job wait timeout.
func Register(reg *handler.Registry, jobs job.Service, cfg *config.Config) error {
	poll := 500 * time.Millisecond
	wait := time.Hour
	workspace := ""
	if cfg != nil {
		poll = cfg.JobPollInterval()
		wait = cfg.JobWaitTimeout()
		workspace = cfg.Paths.WorkspaceDir
	}
	return errors.Join(
		reg.Register(Defaults, &DefaultsHandler{}),
		reg.Register(Tag, &TagHandler{}),
		reg.Register(Inspect, &InspectHandler{Jobs: jobs, Poll: poll, Timeout: wait}),
		reg.Register(Approve, &ApproveHandler{}),
		reg.Register(Cleanup, &CleanupHandler{Workspace: workspace}),
	)
}

// RegisterProcessors installs the processors for the job types the built-in
// handlers submit. Relative paths are resolved against workspace.
func RegisterProcessors(cluster *job.Cluster, workspace string) error {
	return cluster.RegisterProcessor(JobInspect, InspectProcessor(workspace))
}
