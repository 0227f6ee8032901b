package driven

import "context"

// PermissionStore defines the driven port for persisted permission entries.
// Setting an empty group list removes the entry entirely; a missing entry and
// an empty one are indistinguishable to callers (both mean open-by-default).
type PermissionStore interface {
	Set(ctx context.Context, serviceID string, groups []string) error
	// LoadAll returns every persisted entry, keyed by service ID.
	LoadAll(ctx context.Context) (map[string][]string, error)
}
