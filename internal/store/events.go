package store

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

// RecordEvent appends an observed file event and returns its id.
func (s *Store) RecordEvent(ctx context.Context, ev Event) (int64, error) {
	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = nowUTC()
	}
	if ev.Kind == "" || ev.Op == "" || ev.Path == "" {
		return 0, fmt.Errorf("record event: kind, op, and path are required")
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO trigger_events (observed_at, kind, op, path, agent, state) VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(ev.ObservedAt), ev.Kind, ev.Op, ev.Path, nullableString(ev.Agent), nullableString(ev.State),
	)
	if err != nil {
		return 0, fmt.Errorf("record event: %w", err)
	}
	return res.LastInsertId()
}

// RecentEvents returns the newest events first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	limit = clampLimit(limit, defaultEventLimit, maxEventLimit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, observed_at, kind, op, path, COALESCE(agent, ''), COALESCE(state, '')
         FROM trigger_events ORDER BY observed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev          Event
			observedRaw string
		)
		if err := rows.Scan(&ev.ID, &observedRaw, &ev.Kind, &ev.Op, &ev.Path, &ev.Agent, &ev.State); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.ObservedAt = parseTime(observedRaw)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// PruneEvents deletes events observed before cutoff.
func (s *Store) PruneEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM trigger_events WHERE observed_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}
