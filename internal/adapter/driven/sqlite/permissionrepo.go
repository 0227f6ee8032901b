package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hyeonwkim/passdir/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PermissionStore = (*PermissionRepo)(nil)

// PermissionRepo persists permission entries so admin edits survive restarts.
// The in-memory permission map in the application layer is the read path;
// this repo only backs it. Group lists are stored as JSON arrays.
type PermissionRepo struct {
	db *DB
}

// NewPermissionRepo creates a new PermissionRepo.
func NewPermissionRepo(db *DB) *PermissionRepo {
	return &PermissionRepo{db: db}
}

// Set replaces the allowed-group list for a service. An empty list deletes
// the row entirely — open-by-default needs no entry.
func (r *PermissionRepo) Set(ctx context.Context, serviceID string, groups []string) error {
	if len(groups) == 0 {
		const del = `DELETE FROM service_permissions WHERE service_id = ?`
		if _, err := r.db.Writer.ExecContext(ctx, del, serviceID); err != nil {
			return fmt.Errorf("clear permission for %q: %w", serviceID, err)
		}
		return nil
	}

	encoded, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("encode groups for %q: %w", serviceID, err)
	}

	const upsert = `INSERT OR REPLACE INTO service_permissions (service_id, groups) VALUES (?, ?)`
	if _, err := r.db.Writer.ExecContext(ctx, upsert, serviceID, string(encoded)); err != nil {
		return fmt.Errorf("set permission for %q: %w", serviceID, err)
	}
	return nil
}

// LoadAll returns every persisted entry, keyed by service ID.
func (r *PermissionRepo) LoadAll(ctx context.Context) (map[string][]string, error) {
	const query = `SELECT service_id, groups FROM service_permissions`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	defer rows.Close()

	perms := make(map[string][]string)
	for rows.Next() {
		var serviceID, encoded string
		if err := rows.Scan(&serviceID, &encoded); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}

		var groups []string
		if err := json.Unmarshal([]byte(encoded), &groups); err != nil {
			return nil, fmt.Errorf("decode groups for %q: %w", serviceID, err)
		}
		if len(groups) > 0 {
			perms[serviceID] = groups
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}

	return perms, nil
}
