package driven

import (
	"context"

	"github.com/hyeonwkim/passdir/internal/domain/model"
)

// AuditLogStore defines the driven port for the administrative audit trail.
// Entries are append-only and never mutated.
type AuditLogStore interface {
	Append(ctx context.Context, entry model.AdminActionLog) error
	// ListRecent returns up to limit entries, most recent first.
	ListRecent(ctx context.Context, limit int) ([]model.AdminActionLog, error)
}
