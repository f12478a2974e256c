package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mediaflow/internal/workflow"
)

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		document         string
		resumeRequested  int
		resumeProps      sql.NullString
		stopRequested    int
		owner            sql.NullString
		lastHeartbeatRaw sql.NullString
		updatedRaw       string
	)
	if err := scanner.Scan(
		&document,
		&resumeRequested,
		&resumeProps,
		&stopRequested,
		&owner,
		&lastHeartbeatRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	var wi workflow.Instance
	if err := json.Unmarshal([]byte(document), &wi); err != nil {
		return nil, fmt.Errorf("decode workflow document: %w", err)
	}
	record := &Record{
		Instance:        &wi,
		ResumeRequested: resumeRequested != 0,
		StopRequested:   stopRequested != 0,
		Owner:           owner.String,
	}
	if resumeProps.Valid && resumeProps.String != "" {
		if err := json.Unmarshal([]byte(resumeProps.String), &record.ResumeProperties); err != nil {
			return nil, fmt.Errorf("decode resume properties of %s: %w", wi.ID, err)
		}
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			record.LastHeartbeat = &heartbeat
		}
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
