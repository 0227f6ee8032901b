package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/hyeonwkim/passdir/internal/domain/model"
	"github.com/hyeonwkim/passdir/internal/domain/port/driven"
)

// FavoriteService manages per-user bookmarks. Adding is idempotent: both
// this service and the upstream script deduplicate on (email, service ID),
// so a double-add leaves exactly one favorite.
type FavoriteService struct {
	catalog *Catalog
	source  driven.RecordSource
	logger  *slog.Logger
}

// NewFavoriteService creates a FavoriteService.
func NewFavoriteService(catalog *Catalog, source driven.RecordSource, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{catalog: catalog, source: source, logger: logger}
}

// Favorites returns the user's favorites, newest first.
func (s *FavoriteService) Favorites(ctx context.Context, email string) []model.Favorite {
	email = strings.ToLower(email)

	favorites := []model.Favorite{}
	for _, fav := range s.catalog.Favorites(ctx) {
		if strings.ToLower(fav.Email) == email {
			favorites = append(favorites, fav)
		}
	}
	slices.SortStableFunc(favorites, func(a, b model.Favorite) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return favorites
}

// FavoriteServices returns the catalog records the user has favorited, in
// catalog order.
func (s *FavoriteService) FavoriteServices(ctx context.Context, email string) []model.ServiceRecord {
	ids := make(map[string]bool)
	for _, fav := range s.Favorites(ctx, email) {
		ids[fav.ServiceID] = true
	}

	records := []model.ServiceRecord{}
	for _, record := range s.catalog.Services(ctx) {
		if ids[record.ID] {
			records = append(records, record)
		}
	}
	return records
}

// IsFavorite reports whether the user has favorited the service.
func (s *FavoriteService) IsFavorite(ctx context.Context, email, serviceID string) bool {
	email = strings.ToLower(email)
	for _, fav := range s.catalog.Favorites(ctx) {
		if fav.ServiceID == serviceID && strings.ToLower(fav.Email) == email {
			return true
		}
	}
	return false
}

// AddFavorite bookmarks a service for the user. When serviceName is empty it
// is resolved from the catalog, falling back to the raw ID. Adding an
// existing favorite is a no-op.
func (s *FavoriteService) AddFavorite(ctx context.Context, email, serviceID, serviceName string) error {
	if s.IsFavorite(ctx, email, serviceID) {
		return nil
	}

	if serviceName == "" {
		serviceName = serviceID
		for _, record := range s.catalog.Services(ctx) {
			if record.ID == serviceID {
				serviceName = record.ServiceName
				break
			}
		}
	}

	fav := model.Favorite{
		Email:       strings.ToLower(email),
		ServiceID:   serviceID,
		ServiceName: serviceName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.source.AddFavorite(ctx, fav); err != nil {
		return fmt.Errorf("adding favorite: %w", err)
	}

	s.catalog.InvalidateFavorites()
	return nil
}

// RemoveFavorite deletes the user's bookmark for the service.
func (s *FavoriteService) RemoveFavorite(ctx context.Context, email, serviceID string) error {
	if err := s.source.RemoveFavorite(ctx, strings.ToLower(email), serviceID); err != nil {
		return fmt.Errorf("removing favorite: %w", err)
	}

	s.catalog.InvalidateFavorites()
	return nil
}

// Stats aggregates favorites per service for the admin overview, most
// favorited first.
func (s *FavoriteService) Stats(ctx context.Context) []model.FavoriteStat {
	byService := make(map[string]*model.FavoriteStat)
	var order []string
	for _, fav := range s.catalog.Favorites(ctx) {
		stat, ok := byService[fav.ServiceID]
		if !ok {
			stat = &model.FavoriteStat{ServiceID: fav.ServiceID, ServiceName: fav.ServiceName}
			byService[fav.ServiceID] = stat
			order = append(order, fav.ServiceID)
		}
		stat.Count++
		stat.Users = append(stat.Users, fav.Email)
	}

	stats := make([]model.FavoriteStat, 0, len(order))
	for _, id := range order {
		stats = append(stats, *byService[id])
	}
	slices.SortStableFunc(stats, func(a, b model.FavoriteStat) int {
		return b.Count - a.Count
	})
	return stats
}
