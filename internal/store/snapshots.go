package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"reconcile/internal/inventory"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSnapshot(ctx context.Context, db execer, auditID string, snap inventory.Snapshot) (int64, error) {
	counts, err := json.Marshal(snap.Counts)
	if err != nil {
		return 0, fmt.Errorf("encode snapshot counts: %w", err)
	}
	takenAt := snap.TakenAt
	if takenAt.IsZero() {
		takenAt = nowUTC()
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO trigger_snapshots (audit_id, taken_at, root, counts_json, total, findings)
         VALUES (?, ?, ?, ?, ?, ?)`,
		nullableString(auditID), formatTime(takenAt), snap.Root, string(counts), snap.Total(), snap.Findings,
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return res.LastInsertId()
}

// SaveSnapshot stores a trigger snapshot that is not tied to an audit.
func (s *Store) SaveSnapshot(ctx context.Context, snap inventory.Snapshot) (int64, error) {
	var id int64
	err := defaultBusyPolicy.do(ensureContext(ctx), func() error {
		var err error
		id, err = insertSnapshot(ctx, s.db, "", snap)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// LatestSnapshot returns the most recent trigger snapshot, or ErrNotFound.
func (s *Store) LatestSnapshot(ctx context.Context) (*inventory.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT taken_at, root, counts_json, findings FROM trigger_snapshots ORDER BY taken_at DESC, id DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest snapshot: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) snapshotForAudit(ctx context.Context, auditID string) (*inventory.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT taken_at, root, counts_json, findings FROM trigger_snapshots WHERE audit_id = ? ORDER BY id DESC LIMIT 1`, auditID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot for audit: %w", err)
	}
	return snap, nil
}

func scanSnapshot(scanner interface{ Scan(dest ...any) error }) (*inventory.Snapshot, error) {
	var (
		takenRaw string
		root     string
		counts   string
		findings int
	)
	if err := scanner.Scan(&takenRaw, &root, &counts, &findings); err != nil {
		return nil, err
	}
	snap := &inventory.Snapshot{
		TakenAt:  parseTime(takenRaw),
		Root:     root,
		Findings: findings,
		Counts:   map[string]inventory.Counts{},
	}
	if err := json.Unmarshal([]byte(counts), &snap.Counts); err != nil {
		return nil, fmt.Errorf("decode snapshot counts: %w", err)
	}
	return snap, nil
}
