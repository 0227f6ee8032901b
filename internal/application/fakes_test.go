package application_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hyeonwkim/passdir/internal/domain/model"
	"github.com/hyeonwkim/passdir/internal/domain/port/driven"
)

// fakeSource is an in-memory RecordSource. Mutations behave like the real
// upstream script: AddFavorite deduplicates on (email, service ID).
type fakeSource struct {
	mu        sync.Mutex
	services  []model.ServiceRecord
	members   []model.Member
	favorites []model.Favorite

	failServices   bool
	serviceFetches int
}

var _ driven.RecordSource = (*fakeSource)(nil)

func (f *fakeSource) FetchServices(_ context.Context) ([]model.ServiceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serviceFetches++
	if f.failServices {
		return nil, errors.New("upstream unavailable")
	}
	return append([]model.ServiceRecord(nil), f.services...), nil
}

func (f *fakeSource) FetchMembers(_ context.Context) ([]model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Member(nil), f.members...), nil
}

func (f *fakeSource) FetchFavorites(_ context.Context) ([]model.Favorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Favorite(nil), f.favorites...), nil
}

func (f *fakeSource) AddMember(_ context.Context, email, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members = append(f.members, model.Member{Email: email, Group: group})
	return nil
}

func (f *fakeSource) RemoveMember(_ context.Context, email, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.members[:0]
	for _, m := range f.members {
		if !(m.Email == email && m.Group == group) {
			kept = append(kept, m)
		}
	}
	f.members = kept
	return nil
}

func (f *fakeSource) AddFavorite(_ context.Context, fav model.Favorite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.favorites {
		if strings.EqualFold(existing.Email, fav.Email) && existing.ServiceID == fav.ServiceID {
			return nil
		}
	}
	f.favorites = append(f.favorites, fav)
	return nil
}

func (f *fakeSource) RemoveFavorite(_ context.Context, email, serviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.favorites[:0]
	for _, fav := range f.favorites {
		if !(strings.EqualFold(fav.Email, email) && fav.ServiceID == serviceID) {
			kept = append(kept, fav)
		}
	}
	f.favorites = kept
	return nil
}

// fakeSearchLogStore keeps search logs in memory, newest last.
type fakeSearchLogStore struct {
	mu      sync.Mutex
	entries []model.SearchLog
	err     error
}

var _ driven.SearchLogStore = (*fakeSearchLogStore)(nil)

func (f *fakeSearchLogStore) Append(_ context.Context, entry model.SearchLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeSearchLogStore) ListRecent(_ context.Context, limit int) ([]model.SearchLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.SearchLog
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.entries[i])
	}
	return out, nil
}

// fakeAuditLogStore keeps audit entries in memory, newest last.
type fakeAuditLogStore struct {
	mu      sync.Mutex
	entries []model.AdminActionLog
}

var _ driven.AuditLogStore = (*fakeAuditLogStore)(nil)

func (f *fakeAuditLogStore) Append(_ context.Context, entry model.AdminActionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditLogStore) ListRecent(_ context.Context, limit int) ([]model.AdminActionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AdminActionLog
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.entries[i])
	}
	return out, nil
}

// fakePermStore is an in-memory PermissionStore.
type fakePermStore struct {
	mu      sync.Mutex
	entries map[string][]string
}

var _ driven.PermissionStore = (*fakePermStore)(nil)

func newFakePermStore() *fakePermStore {
	return &fakePermStore{entries: make(map[string][]string)}
}

func (f *fakePermStore) Set(_ context.Context, serviceID string, groups []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(groups) == 0 {
		delete(f.entries, serviceID)
		return nil
	}
	f.entries[serviceID] = append([]string(nil), groups...)
	return nil
}

func (f *fakePermStore) LoadAll(_ context.Context) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]string, len(f.entries))
	for k, v := range f.entries {
		out[k] = append([]string(nil), v...)
	}
	return out, nil
}

func testService(id, name, url string) model.ServiceRecord {
	return model.ServiceRecord{ID: id, ServiceName: name, URL: url}
}

func successLog(query string) model.SearchLog {
	return model.SearchLog{
		Timestamp: time.Now().UTC(),
		Email:     "alice@example.com",
		Query:     query,
		Success:   true,
	}
}
