package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hyeonwkim/passdir/internal/domain/model"
	"github.com/hyeonwkim/passdir/internal/domain/port/driven"
)

var searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "passdir_searches_total",
	Help: "Directory searches, labeled by whether any visible record matched.",
}, []string{"success"})

// DirectoryService is the externally-facing read surface of the directory:
// group resolution, authorized search, popularity ranking, and forced cache
// refresh. Every result set it returns has already passed the visibility
// filter; callers never see records their groups do not permit.
type DirectoryService struct {
	catalog    *Catalog
	perms      *Permissions
	searchLogs driven.SearchLogStore
	auditLogs  driven.AuditLogStore
	admins     map[string]bool
	logger     *slog.Logger
}

// NewDirectoryService creates a DirectoryService. adminEmails are compared
// case-insensitively; an admin resolves to the wildcard group.
func NewDirectoryService(
	catalog *Catalog,
	perms *Permissions,
	searchLogs driven.SearchLogStore,
	auditLogs driven.AuditLogStore,
	adminEmails []string,
	logger *slog.Logger,
) *DirectoryService {
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			admins[email] = true
		}
	}
	return &DirectoryService{
		catalog:    catalog,
		perms:      perms,
		searchLogs: searchLogs,
		auditLogs:  auditLogs,
		admins:     admins,
		logger:     logger,
	}
}

// IsAdmin reports whether the email belongs to a configured administrator.
func (s *DirectoryService) IsAdmin(email string) bool {
	return s.admins[strings.ToLower(email)]
}

// Groups resolves a user's group memberships. Administrators resolve to the
// wildcard group. Unknown users resolve to no groups, which denies access to
// every restricted record — resolution failures are never promoted to
// broader access.
func (s *DirectoryService) Groups(ctx context.Context, email string) []string {
	email = strings.ToLower(email)
	if s.admins[email] {
		return []string{model.WildcardGroup}
	}

	var groups []string
	for _, m := range s.catalog.Members(ctx) {
		if strings.ToLower(m.Email) == email {
			groups = append(groups, m.Group)
		}
	}
	return groups
}

// Search returns the visible records whose name or URL contains the query,
// case-insensitively, in snapshot order. An empty or whitespace-only query
// returns no records: the empty query must not disclose the full catalog.
func (s *DirectoryService) Search(ctx context.Context, query string, userGroups []string) []model.ServiceRecord {
	results := []model.ServiceRecord{}
	if strings.TrimSpace(query) == "" {
		return results
	}

	lowerQuery := strings.ToLower(query)
	for _, record := range s.catalog.Services(ctx) {
		nameMatch := strings.Contains(strings.ToLower(record.ServiceName), lowerQuery)
		urlMatch := strings.Contains(strings.ToLower(record.URL), lowerQuery)
		if !nameMatch && !urlMatch {
			continue
		}
		// Restricted records drop out silently; reporting them would leak
		// their existence.
		if !s.perms.Visible(record, userGroups) {
			continue
		}
		results = append(results, record)
	}
	return results
}

// SearchAsUser resolves the caller's groups, runs the search, and records
// exactly one search-log entry with success reflecting whether anything
// matched. Empty queries return early and are not logged.
func (s *DirectoryService) SearchAsUser(ctx context.Context, email, query, ip, userAgent string) []model.ServiceRecord {
	if strings.TrimSpace(query) == "" {
		return []model.ServiceRecord{}
	}

	results := s.Search(ctx, query, s.Groups(ctx, email))
	success := len(results) > 0
	searchesTotal.WithLabelValues(boolLabel(success)).Inc()

	entry := model.SearchLog{
		Timestamp: time.Now().UTC(),
		Email:     email,
		Query:     query,
		IP:        ip,
		UserAgent: userAgent,
		Success:   success,
	}
	if err := s.searchLogs.Append(ctx, entry); err != nil {
		// The search itself succeeded; losing one log entry is not worth
		// failing the request over.
		s.logger.Error("failed to append search log", "error", err)
	}

	return results
}

// RecentSearchLogs returns up to limit search-log entries, newest first.
func (s *DirectoryService) RecentSearchLogs(ctx context.Context, limit int) ([]model.SearchLog, error) {
	return s.searchLogs.ListRecent(ctx, limit)
}

// RecentAuditLogs returns up to limit admin audit entries, newest first.
func (s *DirectoryService) RecentAuditLogs(ctx context.Context, limit int) ([]model.AdminActionLog, error) {
	return s.auditLogs.ListRecent(ctx, limit)
}

// Refresh forces every snapshot to refetch, warms the service catalog, and
// records the action in the audit trail. Returns the number of services in
// the fresh snapshot.
func (s *DirectoryService) Refresh(ctx context.Context, adminEmail, ip string) int {
	count := s.catalog.Refresh(ctx)

	if err := s.auditLogs.Append(ctx, model.AdminActionLog{
		Timestamp:  time.Now().UTC(),
		AdminEmail: adminEmail,
		Action:     model.ActionCacheRefresh,
		Details:    "forced snapshot refresh",
		IP:         ip,
	}); err != nil {
		s.logger.Error("failed to append audit log", "action", model.ActionCacheRefresh, "error", err)
	}

	return count
}

// ServicesWithPermissions returns the unfiltered catalog joined with each
// record's allowed groups. This is the admin management view: it operates on
// the raw record set because it configures permissions rather than consuming
// them.
func (s *DirectoryService) ServicesWithPermissions(ctx context.Context) []model.ServicePermission {
	services := s.catalog.Services(ctx)
	out := make([]model.ServicePermission, 0, len(services))
	for _, record := range services {
		out = append(out, model.ServicePermission{
			ServiceID:     record.ID,
			ServiceName:   record.ServiceName,
			AllowedGroups: s.perms.AllowedGroups(record.ID),
		})
	}
	return out
}

// SetPermission replaces a service's allowed groups and records the change
// in the audit trail.
func (s *DirectoryService) SetPermission(ctx context.Context, adminEmail, ip, serviceID string, groups []string) error {
	if err := s.perms.Set(ctx, serviceID, groups); err != nil {
		return err
	}

	details := "open to all groups"
	if len(groups) > 0 {
		details = "allowed groups: " + strings.Join(groups, ", ")
	}
	if err := s.auditLogs.Append(ctx, model.AdminActionLog{
		Timestamp:  time.Now().UTC(),
		AdminEmail: adminEmail,
		Action:     model.ActionPermissionUpdate,
		Target:     serviceID,
		Details:    details,
		IP:         ip,
	}); err != nil {
		s.logger.Error("failed to append audit log", "action", model.ActionPermissionUpdate, "error", err)
	}
	return nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
