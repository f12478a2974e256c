package manager

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mediaflow/internal/logging"
	"mediaflow/internal/store"
)

// HeartbeatMonitor keeps claims alive and frees the ones whose owner stopped
// reporting.
type HeartbeatMonitor struct {
	store             *store.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	clock             func() time.Time
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(st *store.Store, logger *slog.Logger, interval, timeout time.Duration, clock func() time.Time) *HeartbeatMonitor {
	if clock == nil {
		clock = time.Now
	}
	return &HeartbeatMonitor{
		store:             st,
		logger:            logging.NewComponentLogger(logger, "workflow-heartbeat"),
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
		clock:             clock,
	}
}

// ReclaimStale releases claims whose heartbeat is older than the timeout.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) (int64, error) {
	if h.heartbeatTimeout <= 0 {
		return 0, nil
	}
	cutoff := h.clock().Add(-h.heartbeatTimeout)
	reclaimed, err := h.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		h.logger.Info("reclaimed stale workflows",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "heartbeat_reclaimed"),
		)
	}
	return reclaimed, nil
}

// StartLoop refreshes the claim on workflowID until ctx is cancelled.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, workflowID, owner string) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.Heartbeat(ctx, workflowID, owner); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("heartbeat cancelled")
				} else {
					logging.WarnWithContext(logger, "heartbeat update failed", "heartbeat_failed",
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "the claim may be reclaimed by another worker"),
					)
				}
			}
		}
	}
}
