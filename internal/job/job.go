package job

import (
	"context"
	"maps"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued   Status = "QUEUED"
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
	StatusFailed   Status = "FAILED"
)

// IsTerminal reports whether the job will not change again.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// Work describes a unit of work to run on a node.
type Work struct {
	Type      string            `json:"type"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// Job is the record of one submitted unit of work.
type Job struct {
	ID            string
	Work          Work
	Status        Status
	Payload       string
	Error         string
	Node          int
	DateCreated   time.Time
	DateStarted   time.Time
	DateCompleted time.Time
}

// QueueTime is the time between submission and start; for a job still
// queued it is measured against now.
func (j Job) QueueTime(now time.Time) time.Duration {
	switch {
	case !j.DateStarted.IsZero():
		return j.DateStarted.Sub(j.DateCreated)
	case j.Status == StatusQueued:
		return now.Sub(j.DateCreated)
	default:
		return 0
	}
}

// RunTime is the time spent executing; for a running job it is measured
// against now.
func (j Job) RunTime(now time.Time) time.Duration {
	switch {
	case j.DateStarted.IsZero():
		return 0
	case !j.DateCompleted.IsZero():
		return j.DateCompleted.Sub(j.DateStarted)
	default:
		return now.Sub(j.DateStarted)
	}
}

func (j Job) clone() Job {
	j.Work.Arguments = maps.Clone(j.Work.Arguments)
	return j
}

// Service is what operation handlers need from the job subsystem.
type Service interface {
	Submit(ctx context.Context, work Work) (string, error)
	Status(ctx context.Context, id string) (Status, error)
	Payload(ctx context.Context, id string) (string, error)
	QueueTime(ctx context.Context, id string) (time.Duration, error)
	RunTime(ctx context.Context, id string) (time.Duration, error)
}

// Processor executes one job type and returns its payload.
type Processor func(ctx context.Context, work Work) (string, error)
