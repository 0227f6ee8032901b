package httphandler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/hyeonwkim/passdir/internal/adapter/driving/http"
	"github.com/hyeonwkim/passdir/internal/application"
	"github.com/hyeonwkim/passdir/internal/domain/model"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// --- In-memory driven fakes ---

type stubSource struct {
	mu        sync.Mutex
	services  []model.ServiceRecord
	members   []model.Member
	favorites []model.Favorite
}

func (s *stubSource) FetchServices(_ context.Context) ([]model.ServiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ServiceRecord(nil), s.services...), nil
}

func (s *stubSource) FetchMembers(_ context.Context) ([]model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Member(nil), s.members...), nil
}

func (s *stubSource) FetchFavorites(_ context.Context) ([]model.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Favorite(nil), s.favorites...), nil
}

func (s *stubSource) AddMember(_ context.Context, email, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = append(s.members, model.Member{Email: email, Group: group})
	return nil
}

func (s *stubSource) RemoveMember(_ context.Context, email, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.members[:0]
	for _, m := range s.members {
		if !(m.Email == email && m.Group == group) {
			kept = append(kept, m)
		}
	}
	s.members = kept
	return nil
}

func (s *stubSource) AddFavorite(_ context.Context, fav model.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.favorites {
		if strings.EqualFold(existing.Email, fav.Email) && existing.ServiceID == fav.ServiceID {
			return nil
		}
	}
	s.favorites = append(s.favorites, fav)
	return nil
}

func (s *stubSource) RemoveFavorite(_ context.Context, email, serviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.favorites[:0]
	for _, fav := range s.favorites {
		if !(strings.EqualFold(fav.Email, email) && fav.ServiceID == serviceID) {
			kept = append(kept, fav)
		}
	}
	s.favorites = kept
	return nil
}

type stubSearchLogStore struct {
	mu      sync.Mutex
	entries []model.SearchLog
}

func (s *stubSearchLogStore) Append(_ context.Context, entry model.SearchLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubSearchLogStore) ListRecent(_ context.Context, limit int) ([]model.SearchLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SearchLog
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

type stubAuditLogStore struct {
	mu      sync.Mutex
	entries []model.AdminActionLog
}

func (s *stubAuditLogStore) Append(_ context.Context, entry model.AdminActionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubAuditLogStore) ListRecent(_ context.Context, limit int) ([]model.AdminActionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AdminActionLog
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

type stubPermStore struct {
	mu      sync.Mutex
	entries map[string][]string
}

func (s *stubPermStore) Set(_ context.Context, serviceID string, groups []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = make(map[string][]string)
	}
	if len(groups) == 0 {
		delete(s.entries, serviceID)
		return nil
	}
	s.entries[serviceID] = append([]string(nil), groups...)
	return nil
}

func (s *stubPermStore) LoadAll(_ context.Context) (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = append([]string(nil), v...)
	}
	return out, nil
}

// --- Test server assembly ---

type testServer struct {
	handler    http.Handler
	source     *stubSource
	searchLogs *stubSearchLogStore
	auditLogs  *stubAuditLogStore
}

func newTestServer(t *testing.T, source *stubSource, settings httphandler.Settings) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := application.NewCatalog(source, 5*time.Minute, time.Minute, logger)

	perms, err := application.LoadPermissions(context.Background(), &stubPermStore{})
	require.NoError(t, err)

	searchLogs := &stubSearchLogStore{}
	auditLogs := &stubAuditLogStore{}
	directory := application.NewDirectoryService(catalog, perms, searchLogs, auditLogs,
		[]string{"admin@example.com"}, logger)
	members := application.NewMemberService(catalog, source, auditLogs, logger)
	favorites := application.NewFavoriteService(catalog, source, logger)

	h := httphandler.NewHandler(directory, members, favorites, settings, logger)
	return &testServer{
		handler:    httphandler.NewServeMux(h, logger),
		source:     source,
		searchLogs: searchLogs,
		auditLogs:  auditLogs,
	}
}

func devSettings() httphandler.Settings {
	return httphandler.Settings{
		Environment:   "development",
		SessionSecret: testSecret,
		SkipAuth:      true,
	}
}

func catalogSource() *stubSource {
	return &stubSource{
		services: []model.ServiceRecord{
			{ID: "service-2", ServiceName: "AWS Console", URL: "https://console.aws.amazon.com", AccountID: "ops", Password: "hunter2"},
			{ID: "service-3", ServiceName: "GitHub", URL: "https://github.com", AccountID: "deploy", Password: "hunter3"},
		},
		members: []model.Member{
			{Email: "alice@example.com", Group: "DevTeam"},
		},
	}
}

func doRequest(t *testing.T, ts *testServer, method, target, email, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if email != "" {
		req.Header.Set("X-Dev-Email", email)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestSearchEndpoint(t *testing.T) {
	ts := newTestServer(t, catalogSource(), devSettings())

	rec := doRequest(t, ts, http.MethodGet, "/api/v1/search?q=aws", "alice@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var results []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "AWS Console", results[0]["serviceName"])
	assert.Equal(t, "hunter2", results[0]["password"])

	require.Len(t, ts.searchLogs.entries, 1)
	assert.Equal(t, "alice@example.com", ts.searchLogs.entries[0].Email)
	assert.True(t, ts.searchLogs.entries[0].Success)
}

func TestSearchEndpoint_EmptyQuery(t *testing.T) {
	ts := newTestServer(t, catalogSource(), devSettings())

	rec := doRequest(t, ts, http.MethodGet, "/api/v1/search?q=", "alice@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Empty(t, ts.searchLogs.entries)
}

func TestSearchEndpoint_RequiresAuth(t *testing.T) {
	settings := devSettings()
	settings.SkipAuth = false
	ts := newTestServer(t, catalogSource(), settings)

	rec := doRequest(t, ts, http.MethodGet, "/api/v1/search?q=aws", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSearchEndpoint_BearerToken(t *testing.T) {
	settings := devSettings()
	settings.SkipAuth = false
	ts := newTestServer(t, catalogSource(), settings)

	token, err := httphandler.IssueSessionToken(testSecret, "alice@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=github", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchEndpoint_RejectsForeignDomain(t *testing.T) {
	settings := devSettings()
	settings.SkipAuth = false
	settings.AllowedDomain = "example.com"
	ts := newTestServer(t, catalogSource(), settings)

	token, err := httphandler.IssueSessionToken(testSecret, "mallory@evil.test", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=aws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPopularEndpoint(t *testing.T) {
	ts := newTestServer(t, catalogSource(), devSettings())

	// Seed popularity via real searches.
	for range 3 {
		doRequest(t, ts, http.MethodGet, "/api/v1/search?q=github", "alice@example.com", "")
	}

	rec := doRequest(t, ts, http.MethodGet, "/api/v1/popular?limit=1", "alice@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var results []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "GitHub", results[0]["serviceName"])
}

func TestPopularEndpoint_InvalidLimit(t *testing.T) {
	ts := newTestServer(t, catalogSource(), devSettings())

	rec := doRequest(t, ts, http.MethodGet, "/api/v1/popular?limit=zero", "alice@example.com", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFavoritesFlow(t *testing.T) {
	ts := newTestServer(t, catalogSource(), devSettings())

	rec := doRequest(t, ts, http.MethodPost, "/api/v1/favorites", "alice@example.com",
		`{"serviceId":"service-2"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Re-adding is a no-op, not an error.
	rec = doRequest(t, ts, http.MethodPost, "/api/v1/favorites", "alice@example.com",
		`{"serviceId":"service-2","serviceName":"AWS Console"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, ts, http.MethodGet, "/api/v1/favorites", "alice@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var favs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &favs))
	require.Len(t, favs, 1)
	assert.Equal(t, "service-2", favs[0]["serviceId"])
	assert.Equal(t, "AWS Console", favs[0]["serviceName"], "name resolved from the catalog")

	rec = doRequest(t, ts, http.MethodGet, "/api/v1/favorites?details=true", "alice@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "hunter2", records[0]["password"])

	rec = doRequest(t, ts, http.MethodDelete, "/api/v1/favorites?serviceId=service-2", "alice@example.com", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, ts, http.MethodGet, "/api/v1/favorites", "alice@example.com", "")
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestFavorites_MissingServiceID(t *testing.T) {
	ts := newTestServer(t, catalogSource(), devSettings())

	rec := doRequest(t, ts, http.MethodPost, "/api/v1/favorites", "alice@example.com", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, ts, http.MethodDelete, "/api/v1/favorites", "alice@example.com", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminEndpoints_ForbiddenForNonAdmin(t *testing.T) {
	ts := newTestServer(t, catalogSource(), devSettings())

	for _, target := range []string{
		"/api/v1/admin/members",
		"/api/v1/admin/permissions",
		"/api/v1/admin/logs",
		"/api/v1/admin/audit",
		"/api/v1/admin/favorites",
	} {
		rec := doRequest(t, ts, http.MethodGet, target, "alice@example.com", "")
		assert.Equal(t, http.StatusForbidden, rec.Code, "GET %s", target)
	}

	rec := doRequest(t, ts, http.MethodPost, "/api/v1/admin/refresh", "alice@example.com", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminMembers_AddAndDelete(t *testing.T) {
	ts := newTestServer(t, catalogSource(), devSettings())

	rec := doRequest(t, ts, http.MethodPost, "/api/v1/admin/members", "admin@example.com",
		`{"email":"Bob@Example.com","group":"Marketing"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, ts, http.MethodGet, "/api/v1/admin/members", "admin@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var members []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
	require.Len(t, members, 2)
	assert.Equal(t, "bob@example.com", members[1]["email"])

	rec = doRequest(t, ts, http.MethodDelete,
		"/api/v1/admin/members?email=bob@example.com&group=Marketing", "admin@example.com", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Add and delete both left an audit entry.
	require.Len(t, ts.auditLogs.entries, 2)
	assert.Equal(t, model.ActionMemberAdd, ts.auditLogs.entries[0].Action)
	assert.Equal(t, model.ActionMemberDelete, ts.auditLogs.entries[1].Action)
}

func TestAdminMembers_Validation(t *testing.T) {
	settings := devSettings()
	settings.AllowedDomain = "example.com"
	ts := newTestServer(t, catalogSource(), settings)

	rec := doRequest(t, ts, http.MethodPost, "/api/v1/admin/members", "admin@example.com",
		`{"email":"not-an-email","group":"DevTeam"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, ts, http.MethodPost, "/api/v1/admin/members", "admin@example.com",
		`{"email":"bob@other.test","group":"DevTeam"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, ts, http.MethodPost, "/api/v1/admin/members", "admin@example.com",
		`{"email":"bob@example.com","group":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminPermissions_SetAndList(t *testing.T) {
	ts := newTestServer(t, catalogSource(), devSettings())

	rec := doRequest(t, ts, http.MethodPost, "/api/v1/admin/permissions", "admin@example.com",
		`{"serviceId":"service-3","allowedGroups":["DevTeam"]}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, ts, http.MethodGet, "/api/v1/admin/permissions", "admin@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var perms []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &perms))
	require.Len(t, perms, 2)
	assert.Equal(t, []any{}, perms[0]["allowedGroups"], "unrestricted entries report an empty list")
	assert.Equal(t, []any{"DevTeam"}, perms[1]["allowedGroups"])

	// The restriction is now enforced on search.
	rec = doRequest(t, ts, http.MethodGet, "/api/v1/search?q=github", "stranger@example.com", "")
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestAdminLogs(t *testing.T) {
	ts := newTestServer(t, catalogSource(), devSettings())

	doRequest(t, ts, http.MethodGet, "/api/v1/search?q=aws", "alice@example.com", "")
	doRequest(t, ts, http.MethodGet, "/api/v1/search?q=github", "alice@example.com", "")

	rec := doRequest(t, ts, http.MethodGet, "/api/v1/admin/logs?limit=1", "admin@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "github", logs[0]["searchQuery"], "newest entry first")

	rec = doRequest(t, ts, http.MethodGet, "/api/v1/admin/logs?limit=bogus", "admin@example.com", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRefreshAndAudit(t *testing.T) {
	ts := newTestServer(t, catalogSource(), devSettings())

	rec := doRequest(t, ts, http.MethodPost, "/api/v1/admin/refresh", "admin@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"services":2}`, rec.Body.String())

	rec = doRequest(t, ts, http.MethodGet, "/api/v1/admin/audit", "admin@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionCacheRefresh, logs[0]["action"])
}

func TestAdminFavoriteStats(t *testing.T) {
	source := catalogSource()
	source.favorites = []model.Favorite{
		{Email: "alice@example.com", ServiceID: "service-2", ServiceName: "AWS Console", CreatedAt: time.Now().UTC()},
		{Email: "bob@example.com", ServiceID: "service-2", ServiceName: "AWS Console", CreatedAt: time.Now().UTC()},
	}
	ts := newTestServer(t, source, devSettings())

	rec := doRequest(t, ts, http.MethodGet, "/api/v1/admin/favorites", "admin@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, float64(2), stats[0]["count"])
}

func TestConfigEndpoint(t *testing.T) {
	ts := newTestServer(t, catalogSource(), devSettings())

	rec := doRequest(t, ts, http.MethodGet, "/api/v1/config", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"environment":"development","skipAuth":true}`, rec.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, catalogSource(), devSettings())

	rec := doRequest(t, ts, http.MethodGet, "/api/v1/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
}
