package driven

import (
	"context"

	"github.com/hyeonwkim/passdir/internal/domain/model"
)

// SearchLogStore defines the driven port for search-log persistence.
// The store keeps at most 1000 entries; appending beyond the cap evicts the
// oldest rows (ring-buffer semantics).
type SearchLogStore interface {
	Append(ctx context.Context, entry model.SearchLog) error
	// ListRecent returns up to limit entries, most recent first.
	ListRecent(ctx context.Context, limit int) ([]model.SearchLog, error)
}
