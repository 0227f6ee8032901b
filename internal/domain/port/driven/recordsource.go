package driven

import (
	"context"

	"github.com/hyeonwkim/passdir/internal/domain/model"
)

// RecordSource defines the driven port for the upstream record store (the
// spreadsheet web-app API). Fetches return the full raw record set; the
// snapshot cache decides how long results live. Implementations must not
// cache or retry — transport and parse errors surface to the caller.
type RecordSource interface {
	FetchServices(ctx context.Context) ([]model.ServiceRecord, error)
	FetchMembers(ctx context.Context) ([]model.Member, error)
	FetchFavorites(ctx context.Context) ([]model.Favorite, error)

	// Mutations write through to the upstream sheet. AddFavorite is
	// idempotent upstream: posting an existing (email, service) pair
	// leaves a single row.
	AddMember(ctx context.Context, email, group string) error
	RemoveMember(ctx context.Context, email, group string) error
	AddFavorite(ctx context.Context, fav model.Favorite) error
	RemoveFavorite(ctx context.Context, email, serviceID string) error
}
