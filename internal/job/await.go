package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediaflow/internal/services"
)

// Summary is the outcome of a set of jobs that all finished.
type Summary struct {
	Payloads  map[string]string
	QueueTime time.Duration
	RunTime   time.Duration
}

// Await polls svc until every job in ids is terminal. It fails with
// services.ErrExternalTool if any job failed and with services.ErrTimeout
// when ctx reaches its deadline first; the caller bounds the wait through ctx.
// Queue and run times are summed over all jobs.
func Await(ctx context.Context, svc Service, poll time.Duration, ids ...string) (Summary, error) {
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}
	statuses := make(map[string]Status, len(ids))

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		for id := range pending {
			status, err := svc.Status(ctx, id)
			if err != nil {
				return Summary{}, services.Wrap(services.ErrExternalTool, "jobs", "await", "status of job "+id, err)
			}
			if status.IsTerminal() {
				statuses[id] = status
				delete(pending, id)
			}
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Summary{}, services.Wrap(services.ErrTimeout, "jobs", "await", fmt.Sprintf("%d of %d jobs not terminal", len(pending), len(ids)), ctx.Err())
			}
			return Summary{}, ctx.Err()
		case <-ticker.C:
		}
	}

	summary := Summary{Payloads: make(map[string]string, len(ids))}
	var failed []string
	for _, id := range ids {
		if statuses[id] == StatusFailed {
			failed = append(failed, id)
		}
		qt, err := svc.QueueTime(ctx, id)
		if err != nil {
			return Summary{}, services.Wrap(services.ErrExternalTool, "jobs", "await", "queue time of job "+id, err)
		}
		rt, err := svc.RunTime(ctx, id)
		if err != nil {
			return Summary{}, services.Wrap(services.ErrExternalTool, "jobs", "await", "run time of job "+id, err)
		}
		summary.QueueTime += qt
		summary.RunTime += rt
		if statuses[id] == StatusFinished {
			payload, err := svc.Payload(ctx, id)
			if err != nil {
				return Summary{}, services.Wrap(services.ErrExternalTool, "jobs", "await", "payload of job "+id, err)
			}
			summary.Payloads[id] = payload
		}
	}
	if len(failed) > 0 {
		return summary, services.Wrap(services.ErrExternalTool, "jobs", "await", "failed jobs: "+strings.Join(failed, ", "), nil)
	}
	return summary, nil
}
