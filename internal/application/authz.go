package application

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hyeonwkim/passdir/internal/domain/model"
	"github.com/hyeonwkim/passdir/internal/domain/port/driven"
)

// Permissions is the process-wide permission map: service ID to allowed
// groups. A missing entry means the service is visible to everyone; setting
// an empty group list removes the entry rather than storing an empty set,
// which is externally indistinguishable. Reads take a shared lock so request
// handlers never contend with each other, only with admin mutations.
//
// Mutations write through to the backing store before updating the map, so
// the map never claims a state that was not persisted.
type Permissions struct {
	store driven.PermissionStore

	mu        sync.RWMutex
	byService map[string][]string
}

// LoadPermissions builds the in-memory map from the backing store.
func LoadPermissions(ctx context.Context, store driven.PermissionStore) (*Permissions, error) {
	byService, err := store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading permissions: %w", err)
	}
	return &Permissions{store: store, byService: byService}, nil
}

// Set replaces the allowed-group list for a service. An empty or nil list
// clears the restriction (open-by-default).
func (p *Permissions) Set(ctx context.Context, serviceID string, groups []string) error {
	if err := p.store.Set(ctx, serviceID, groups); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(groups) == 0 {
		delete(p.byService, serviceID)
	} else {
		p.byService[serviceID] = slices.Clone(groups)
	}
	return nil
}

// AllowedGroups returns the allowed-group list for a service, or an empty
// slice when the service is unrestricted.
func (p *Permissions) AllowedGroups(serviceID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.byService[serviceID])
}

// Visible reports whether a record may be shown to a caller holding the
// given groups: wildcard callers see everything, unrestricted records are
// visible to all, and restricted records require a non-empty intersection.
func (p *Permissions) Visible(record model.ServiceRecord, userGroups []string) bool {
	if slices.Contains(userGroups, model.WildcardGroup) {
		return true
	}

	p.mu.RLock()
	allowed := p.byService[record.ID]
	p.mu.RUnlock()

	if len(allowed) == 0 {
		return true
	}
	for _, group := range userGroups {
		if slices.Contains(allowed, group) {
			return true
		}
	}
	return false
}
