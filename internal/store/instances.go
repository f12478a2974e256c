package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediaflow/internal/services"
	"mediaflow/internal/workflow"
)

// Record is a stored instance plus its request and ownership columns.
type Record struct {
	Instance         *workflow.Instance
	ResumeRequested  bool
	ResumeProperties map[string]string
	StopRequested    bool
	Owner            string
	LastHeartbeat    *time.Time
	UpdatedAt        time.Time
}

const recordColumns = "document, resume_requested, resume_properties_json, stop_requested, owner, last_heartbeat, updated_at"

// Create inserts a new instance.
func (s *Store) Create(ctx context.Context, wi *workflow.Instance) error {
	doc, err := json.Marshal(wi)
	if err != nil {
		return fmt.Errorf("encode workflow %s: %w", wi.ID, err)
	}
	now := s.now()
	_, err = s.execWithRetry(ctx,
		`INSERT INTO workflow_instances (
            id, definition_id, title, state, position, current_operation, mediapackage_id,
            document, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wi.ID,
		wi.DefinitionID,
		nullableString(wi.Title),
		wi.State,
		wi.Position,
		nullableString(currentOperation(wi)),
		nullableString(mediaPackageID(wi)),
		string(doc),
		formatTime(wi.DateCreated),
		now,
	)
	if err != nil {
		return fmt.Errorf("insert workflow %s: %w", wi.ID, err)
	}
	return nil
}

// Save rewrites the document and derived columns of an existing instance.
func (s *Store) Save(ctx context.Context, wi *workflow.Instance) error {
	doc, err := json.Marshal(wi)
	if err != nil {
		return fmt.Errorf("encode workflow %s: %w", wi.ID, err)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE workflow_instances
         SET title = ?, state = ?, position = ?, current_operation = ?, mediapackage_id = ?,
             document = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(wi.Title),
		wi.State,
		wi.Position,
		nullableString(currentOperation(wi)),
		nullableString(mediaPackageID(wi)),
		string(doc),
		s.now(),
		wi.ID,
	)
	if err != nil {
		return fmt.Errorf("update workflow %s: %w", wi.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("save", wi.ID)
	}
	return nil
}

// Get returns the record with id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM workflow_instances WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("get", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow %s: %w", id, err)
	}
	return record, nil
}

// List returns instances in the given states, oldest first. No states means all.
func (s *Store) List(ctx context.Context, states ...workflow.State) ([]*workflow.Instance, error) {
	query := `SELECT ` + recordColumns + ` FROM workflow_instances`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
		for _, state := range states {
			args = append(args, state)
		}
	}
	query += ` ORDER BY created_at, id`
	records, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	out := make([]*workflow.Instance, 0, len(records))
	for _, r := range records {
		out = append(out, r.Instance)
	}
	return out, nil
}

// Query filters a paged listing. StartPage is 0-based.
type Query struct {
	States       []workflow.State
	DefinitionID string
	StartPage    int
	Count        int
}

// Page returns one page of instances, newest first.
func (s *Store) Page(ctx context.Context, q Query) (workflow.Set, error) {
	started := time.Now()
	if q.Count <= 0 {
		q.Count = 20
	}
	if q.StartPage < 0 {
		q.StartPage = 0
	}

	var (
		clauses []string
		args    []any
	)
	if len(q.States) > 0 {
		clauses = append(clauses, `state IN (`+makePlaceholders(len(q.States))+`)`)
		for _, state := range q.States {
			args = append(args, state)
		}
	}
	if q.DefinitionID != "" {
		clauses = append(clauses, `definition_id = ?`)
		args = append(args, q.DefinitionID)
	}
	where := ""
	if len(clauses) > 0 {
		where = ` WHERE ` + strings.Join(clauses, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM workflow_instances`+where, args...).Scan(&total); err != nil {
		return workflow.Set{}, fmt.Errorf("count workflows: %w", err)
	}
	pageArgs := append(append([]any{}, args...), q.Count, q.StartPage*q.Count)
	records, err := s.query(ctx,
		`SELECT `+recordColumns+` FROM workflow_instances`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		pageArgs...,
	)
	if err != nil {
		return workflow.Set{}, fmt.Errorf("page workflows: %w", err)
	}
	set := workflow.Set{
		Items:      make([]*workflow.Instance, 0, len(records)),
		StartPage:  q.StartPage,
		Count:      q.Count,
		TotalCount: total,
	}
	for _, r := range records {
		set.Items = append(set.Items, r.Instance)
	}
	set.SearchTime = time.Since(started)
	return set, nil
}

// Counts returns the number of instances per state.
func (s *Store) Counts(ctx context.Context) (map[workflow.State]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT state, COUNT(1) FROM workflow_instances GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("workflow counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[workflow.State]int)
	for rows.Next() {
		var state workflow.State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		counts[state] = count
	}
	return counts, rows.Err()
}

// Remove deletes a terminal instance.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM workflow_instances WHERE id = ? AND state IN (?, ?, ?)`,
		id, workflow.StateSucceeded, workflow.StateFailed, workflow.StateStopped,
	)
	if err != nil {
		return fmt.Errorf("remove workflow %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.rejection(ctx, "remove", id, "is not terminal")
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// rejection distinguishes a missing instance from one in the wrong state
// after a conditional update touched no rows.
func (s *Store) rejection(ctx context.Context, action, id, reason string) error {
	var state string
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT state FROM workflow_instances WHERE id = ?`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(action, id)
	}
	if err != nil {
		return fmt.Errorf("%s workflow %s: %w", action, id, err)
	}
	return services.Wrap(services.ErrInvalidState, "store", action,
		fmt.Sprintf("workflow %s %s (state %s)", id, reason, state), nil)
}

func notFound(action, id string) error {
	return services.Wrap(services.ErrNotFound, "store", action, fmt.Sprintf("workflow %s", id), nil)
}

func currentOperation(wi *workflow.Instance) string {
	if op := wi.Current(); op != nil {
		return op.TemplateID()
	}
	return ""
}

func mediaPackageID(wi *workflow.Instance) string {
	if wi.MediaPackage == nil {
		return ""
	}
	return wi.MediaPackage.ID
}
