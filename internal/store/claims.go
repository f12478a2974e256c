package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mediaflow/internal/workflow"
)

// Claim gives owner exclusive use of the oldest unowned instance that has
// work to do: a new instance, a paused one with a resume or stop request, or
// a running one left behind by a previous owner. It returns nil when nothing
// is runnable.
func (s *Store) Claim(ctx context.Context, owner string) (*Record, error) {
	ctx = ensureContext(ctx)
	now := s.now()
	var id string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`UPDATE workflow_instances
             SET owner = ?, last_heartbeat = ?, updated_at = ?
             WHERE id = (
                 SELECT id FROM workflow_instances
                 WHERE owner IS NULL AND (
                     state IN (?, ?, ?)
                     OR (state = ? AND (resume_requested = 1 OR stop_requested = 1))
                 )
                 ORDER BY created_at, id
                 LIMIT 1
             ) AND owner IS NULL
             RETURNING id`,
			owner, now, now,
			workflow.StateInstantiated, workflow.StateRunning, workflow.StateFailing,
			workflow.StatePaused,
		).Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim workflow: %w", err)
	}
	return s.Get(ctx, id)
}

// Release drops owner's claim on id.
func (s *Store) Release(ctx context.Context, id, owner string) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE workflow_instances SET owner = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND owner = ?`,
		s.now(), id, owner,
	); err != nil {
		return fmt.Errorf("release workflow %s: %w", id, err)
	}
	return nil
}

// Heartbeat refreshes owner's claim on id.
func (s *Store) Heartbeat(ctx context.Context, id, owner string) error {
	now := s.now()
	res, err := s.execWithRetry(ctx,
		`UPDATE workflow_instances SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND owner = ?`,
		now, now, id, owner,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.rejection(ctx, "heartbeat", id, "is not owned by "+owner)
	}
	return nil
}

// ReclaimStale frees claims whose heartbeat is older than cutoff.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE workflow_instances SET owner = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE owner IS NOT NULL AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		s.now(), formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale workflows: %w", err)
	}
	return res.RowsAffected()
}

// ResetOwners frees every claim. The daemon calls it at startup since no
// worker of a previous process can still be running.
func (s *Store) ResetOwners(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE workflow_instances SET owner = NULL, last_heartbeat = NULL, updated_at = ? WHERE owner IS NOT NULL`,
		s.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("reset workflow owners: %w", err)
	}
	return res.RowsAffected()
}

// RequestResume records hold properties for a paused instance. Instances in
// any other state are rejected with services.ErrInvalidState.
func (s *Store) RequestResume(ctx context.Context, id string, properties map[string]string) error {
	props, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("encode resume properties: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE workflow_instances SET resume_requested = 1, resume_properties_json = ?, updated_at = ?
         WHERE id = ? AND state = ?`,
		string(props), s.now(), id, workflow.StatePaused,
	)
	if err != nil {
		return fmt.Errorf("request resume %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.rejection(ctx, "resume", id, "is not paused")
	}
	return nil
}

// ClearResume consumes a pending resume request.
func (s *Store) ClearResume(ctx context.Context, id string) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE workflow_instances SET resume_requested = 0, resume_properties_json = NULL, updated_at = ? WHERE id = ?`,
		s.now(), id,
	); err != nil {
		return fmt.Errorf("clear resume %s: %w", id, err)
	}
	return nil
}

// RequestStop asks the owner of a non-terminal instance to stop it at the
// next step boundary.
func (s *Store) RequestStop(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE workflow_instances SET stop_requested = 1, updated_at = ?
         WHERE id = ? AND state NOT IN (?, ?, ?)`,
		s.now(), id, workflow.StateSucceeded, workflow.StateFailed, workflow.StateStopped,
	)
	if err != nil {
		return fmt.Errorf("request stop %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.rejection(ctx, "stop", id, "is already terminal")
	}
	return nil
}

// StopRequested reports whether a stop was requested for id.
func (s *Store) StopRequested(ctx context.Context, id string) (bool, error) {
	var flag int
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT stop_requested FROM workflow_instances WHERE id = ?`, id).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, notFound("stop requested", id)
	}
	if err != nil {
		return false, fmt.Errorf("read stop flag %s: %w", id, err)
	}
	return flag != 0, nil
}
