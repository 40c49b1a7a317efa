// Package sqlite keeps a local append-only copy of the audit trail in a
// single SQLite file, independent of the ledger database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"agrokoperasi/backend/internal/domain"
)

// fixed width so created_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Journal struct {
	db *sql.DB
}

func Open(path string) (*Journal, error) {
	if path == "" {
		path = "audit.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		actor_username TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		action TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT,
		details TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_username, actor_role, action, entity, entity_id, old_value, new_value, details, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`, entry.ID, entry.ActorID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.Entity, entry.EntityID,
		textOrNil(entry.OldValue), textOrNil(entry.NewValue), entry.Details, entry.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (j *Journal) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_username, actor_role, action, entity, entity_id, old_value, new_value, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("select audit logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		var oldValue, newValue sql.NullString
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.Entity,
			&entry.EntityID, &oldValue, &newValue, &entry.Details, &createdAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if oldValue.Valid {
			entry.OldValue = []byte(oldValue.String)
		}
		if newValue.Valid {
			entry.NewValue = []byte(newValue.String)
		}
		entry.Timestamp, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func textOrNil(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
