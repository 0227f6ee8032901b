package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/hyeonwkim/passdir/internal/domain/model"
	"github.com/hyeonwkim/passdir/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AuditLogStore = (*AuditLogRepo)(nil)

// AuditLogRepo is the SQLite implementation of the AuditLogStore port.
// Unlike search logs the audit trail is never trimmed.
type AuditLogRepo struct {
	db *DB
}

// NewAuditLogRepo creates a new AuditLogRepo.
func NewAuditLogRepo(db *DB) *AuditLogRepo {
	return &AuditLogRepo{db: db}
}

// Append inserts an audit entry.
func (r *AuditLogRepo) Append(ctx context.Context, entry model.AdminActionLog) error {
	const query = `INSERT INTO admin_logs (ts, admin_email, action, target, details, ip) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.AdminEmail,
		entry.Action,
		entry.Target,
		entry.Details,
		entry.IP,
	)
	if err != nil {
		return fmt.Errorf("append admin log: %w", err)
	}
	return nil
}

// ListRecent returns up to limit entries, most recent first.
func (r *AuditLogRepo) ListRecent(ctx context.Context, limit int) ([]model.AdminActionLog, error) {
	const query = `SELECT id, ts, admin_email, action, target, details, ip
	               FROM admin_logs ORDER BY id DESC LIMIT ?`
	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list admin logs: %w", err)
	}
	defer rows.Close()

	var logs []model.AdminActionLog
	for rows.Next() {
		var entry model.AdminActionLog
		var ts string
		if err := rows.Scan(&entry.ID, &ts, &entry.AdminEmail, &entry.Action, &entry.Target, &entry.Details, &entry.IP); err != nil {
			return nil, fmt.Errorf("scan admin log: %w", err)
		}
		entry.Timestamp, err = parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("parse admin log timestamp: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin logs: %w", err)
	}

	return logs, nil
}
