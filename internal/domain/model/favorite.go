package model

import "time"

// Favorite bookmarks a service for one user. Unique per (email, service ID);
// adding the same pair again is a no-op.
type Favorite struct {
	Email       string
	ServiceID   string
	ServiceName string
	CreatedAt   time.Time
}

// FavoriteStat aggregates favorites per service for the admin overview.
type FavoriteStat struct {
	ServiceID   string
	ServiceName string
	Count       int
	Users       []string
}
