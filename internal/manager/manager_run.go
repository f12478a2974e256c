package manager

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mediaflow/internal/logging"
	"mediaflow/internal/services"
	"mediaflow/internal/store"
	"mediaflow/internal/workflow"
)

type route string

const (
	routeStart   route = "start"
	routeResume  route = "resume"
	routeRecover route = "recover"
	routeStop    route = "stop"
	routeNone    route = "none"
)

// Start launches the worker pool. It returns once the workers are running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow manager already running")
	}
	if m.handlers == nil || len(m.handlers.IDs()) == 0 {
		m.mu.Unlock()
		return errors.New("no operation handlers registered")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	m.mu.Unlock()

	for i := range m.workers {
		go m.runWorker(runCtx, i)
	}
	m.logger.Info("workflow manager started",
		logging.Int("workers", m.workers),
		logging.String("owner", m.owner),
	)
	return nil
}

// Stop cancels the workers and waits for them. Instances interrupted
// mid-operation stay RUNNING in the store and are recovered later.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// ProcessOnce claims at most one instance and advances it. It reports
// whether anything was claimed.
func (m *Manager) ProcessOnce(ctx context.Context) (bool, error) {
	return m.processNext(ctx, m.logger)
}

// Drain processes instances until none is runnable or ctx ends.
func (m *Manager) Drain(ctx context.Context) (int, error) {
	count := 0
	for {
		claimed, err := m.processNext(ctx, m.logger)
		if err != nil {
			return count, err
		}
		if !claimed {
			return count, nil
		}
		count++
	}
}

func (m *Manager) runWorker(ctx context.Context, index int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", index))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := m.heartbeat.ReclaimStale(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(logger, "reclaim stale workflows failed; stuck instances may remain", "heartbeat_reclaim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check workflow database access"),
			)
		}

		claimed, err := m.processNext(ctx, logger)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if !claimed {
			m.waitForWorkOrShutdown(ctx)
		}
	}
}

// processNext returns an error only when claiming failed or ctx ended;
// engine errors are recorded on the manager and logged.
func (m *Manager) processNext(ctx context.Context, logger *slog.Logger) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	rec, err := m.store.Claim(ctx, m.owner)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	if err := m.process(ctx, logger, rec); err != nil && ctx.Err() != nil {
		return true, ctx.Err()
	}
	return true, nil
}

func (m *Manager) process(ctx context.Context, logger *slog.Logger, rec *store.Record) error {
	wi := rec.Instance
	ctx = services.WithWorkflowID(ctx, wi.ID)
	ctx = services.WithDefinitionID(ctx, wi.DefinitionID)
	logger = logging.WithContext(ctx, logger)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	m.wg.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &m.wg, wi.ID, m.owner)

	before := wi.State
	r := routeFor(rec)
	logger.Debug("workflow claimed",
		logging.String("route", string(r)),
		logging.String("state", string(before)),
	)
	err := m.advance(ctx, rec, r)
	stopHeartbeat()

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if relErr := m.store.Release(releaseCtx, wi.ID, m.owner); relErr != nil {
		logging.WarnWithContext(logger, "release workflow claim failed", "claim_release_failed",
			logging.Error(relErr),
			logging.String(logging.FieldErrorHint, "the claim is freed after the heartbeat timeout"),
		)
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		logger.Info("workflow interrupted; it will be recovered",
			logging.String("state", string(wi.State)),
			logging.Int(logging.FieldPosition, wi.Position),
		)
		return err
	case services.IsRejection(err):
		logging.WarnWithContext(logger, "workflow request rejected", "workflow_request_rejected",
			logging.String("route", string(r)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the instance with mediaflow show"),
		)
	default:
		logging.ErrorWithContext(logger, "workflow processing failed", "workflow_processing_failed",
			logging.String("route", string(r)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check workflow database access"),
		)
	}

	m.recordOutcome(wi, err)
	if err == nil && (wi.State != before || r == routeResume) {
		m.notifyOutcome(releaseCtx, logger, wi)
	}
	return err
}

func routeFor(rec *store.Record) route {
	wi := rec.Instance
	switch {
	case rec.StopRequested && !wi.State.IsActive() && !wi.State.IsTerminal():
		return routeStop
	case wi.State == workflow.StateInstantiated:
		return routeStart
	case wi.State == workflow.StatePaused && rec.ResumeRequested:
		return routeResume
	case wi.State.IsActive():
		return routeRecover
	default:
		return routeNone
	}
}

func (m *Manager) advance(ctx context.Context, rec *store.Record, r route) error {
	wi := rec.Instance
	switch r {
	case routeStop:
		return m.engine.Stop(ctx, wi)
	case routeStart:
		return m.engine.Start(ctx, wi)
	case routeResume:
		if err := m.store.ClearResume(ctx, wi.ID); err != nil {
			return err
		}
		return m.engine.Resume(ctx, wi, rec.ResumeProperties)
	case routeRecover:
		return m.engine.Recover(ctx, wi)
	default:
		return nil
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(logger, "failed to claim next workflow", "workflow_claim_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check workflow database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.cfg.ErrorRetryInterval()):
	}
}

func (m *Manager) waitForWorkOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
