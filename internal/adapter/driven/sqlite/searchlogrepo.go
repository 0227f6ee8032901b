package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/hyeonwkim/passdir/internal/domain/model"
	"github.com/hyeonwkim/passdir/internal/domain/port/driven"
)

// searchLogCap bounds the table size. Appends beyond the cap evict the oldest
// rows so the table behaves like a ring buffer.
const searchLogCap = 1000

// Compile-time interface satisfaction check.
var _ driven.SearchLogStore = (*SearchLogRepo)(nil)

// SearchLogRepo is the SQLite implementation of the SearchLogStore port.
type SearchLogRepo struct {
	db *DB
}

// NewSearchLogRepo creates a new SearchLogRepo.
func NewSearchLogRepo(db *DB) *SearchLogRepo {
	return &SearchLogRepo{db: db}
}

// Append inserts a log entry and trims the table back to the cap in the same
// transaction, oldest rows first.
func (r *SearchLogRepo) Append(ctx context.Context, entry model.SearchLog) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append search log: begin tx: %w", err)
	}
	defer tx.Rollback()

	const insert = `INSERT INTO search_logs (ts, email, query, ip, user_agent, success) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.Email,
		entry.Query,
		entry.IP,
		entry.UserAgent,
		boolToInt(entry.Success),
	); err != nil {
		return fmt.Errorf("append search log: %w", err)
	}

	const trim = `DELETE FROM search_logs WHERE id NOT IN (SELECT id FROM search_logs ORDER BY id DESC LIMIT ?)`
	if _, err := tx.ExecContext(ctx, trim, searchLogCap); err != nil {
		return fmt.Errorf("trim search logs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append search log: commit: %w", err)
	}
	return nil
}

// ListRecent returns up to limit entries, most recent first.
func (r *SearchLogRepo) ListRecent(ctx context.Context, limit int) ([]model.SearchLog, error) {
	const query = `SELECT id, ts, email, query, ip, user_agent, success
	               FROM search_logs ORDER BY id DESC LIMIT ?`
	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list search logs: %w", err)
	}
	defer rows.Close()

	var logs []model.SearchLog
	for rows.Next() {
		var entry model.SearchLog
		var ts string
		var success int
		if err := rows.Scan(&entry.ID, &ts, &entry.Email, &entry.Query, &entry.IP, &entry.UserAgent, &success); err != nil {
			return nil, fmt.Errorf("scan search log: %w", err)
		}
		entry.Timestamp, err = parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("parse search log timestamp: %w", err)
		}
		entry.Success = success != 0
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search logs: %w", err)
	}

	return logs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
