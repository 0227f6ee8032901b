package model

import "time"

// SearchLog is one immutable search-audit entry. Success records whether the
// query returned at least one visible result; the popularity ranker counts
// only successful entries.
type SearchLog struct {
	ID        int64
	Timestamp time.Time
	Email     string
	Query     string
	IP        string
	UserAgent string
	Success   bool
}
