package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyeonwkim/passdir/internal/domain/model"
	"github.com/hyeonwkim/passdir/internal/domain/port/driven"
)

// Catalog owns the in-memory snapshots of every upstream record set. All
// reads of services, members, and favorites go through it; nothing else in
// the process talks to the record source for reads.
type Catalog struct {
	source    driven.RecordSource
	services  *snapshotCache[model.ServiceRecord]
	members   *snapshotCache[model.Member]
	favorites *snapshotCache[model.Favorite]
}

// NewCatalog creates a Catalog with the given snapshot TTLs. The service
// catalog changes rarely and tolerates a longer TTL than membership and
// favorites, which admins expect to see update quickly.
func NewCatalog(source driven.RecordSource, serviceTTL, memberTTL time.Duration, logger *slog.Logger) *Catalog {
	return &Catalog{
		source:    source,
		services:  newSnapshotCache("services", serviceTTL, logger, source.FetchServices),
		members:   newSnapshotCache("members", memberTTL, logger, source.FetchMembers),
		favorites: newSnapshotCache("favorites", memberTTL, logger, source.FetchFavorites),
	}
}

// Services returns the current service snapshot.
func (c *Catalog) Services(ctx context.Context) []model.ServiceRecord {
	return c.services.Get(ctx)
}

// Members returns the current membership snapshot.
func (c *Catalog) Members(ctx context.Context) []model.Member {
	return c.members.Get(ctx)
}

// Favorites returns the current favorites snapshot (all users).
func (c *Catalog) Favorites(ctx context.Context) []model.Favorite {
	return c.favorites.Get(ctx)
}

// InvalidateMembers forces the next member read to refetch.
func (c *Catalog) InvalidateMembers() { c.members.Invalidate() }

// InvalidateFavorites forces the next favorites read to refetch.
func (c *Catalog) InvalidateFavorites() { c.favorites.Invalidate() }

// Refresh invalidates every snapshot and warms the service catalog. Returns
// the number of services loaded.
func (c *Catalog) Refresh(ctx context.Context) int {
	c.services.Invalidate()
	c.members.Invalidate()
	c.favorites.Invalidate()
	return len(c.services.Get(ctx))
}
