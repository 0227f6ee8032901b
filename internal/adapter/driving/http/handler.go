// Package httphandler is the HTTP driving adapter that serves the REST API.
package httphandler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyeonwkim/passdir/internal/application"
)

const defaultLogLimit = 100

// defaultPopularLimit matches the GUI's landing grid size.
const defaultPopularLimit = 9

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Settings carries the request-handling configuration the adapter needs.
type Settings struct {
	Environment   string
	SessionSecret []byte
	AllowedDomain string
	SkipAuth      bool
}

// Handler serves the REST API.
type Handler struct {
	directory *application.DirectoryService
	members   *application.MemberService
	favorites *application.FavoriteService
	settings  Settings
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	directory *application.DirectoryService,
	members *application.MemberService,
	favorites *application.FavoriteService,
	settings Settings,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		directory: directory,
		members:   members,
		favorites: favorites,
		settings:  settings,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with metrics, logging, and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	limiter := newRateLimiter(rateWindow)

	mux.HandleFunc("GET /api/v1/search",
		limiter.limit("search", searchRateLimit, h.withAuth(h.Search)))
	mux.HandleFunc("GET /api/v1/popular",
		limiter.limit("popular", popularRateLimit, h.withAuth(h.Popular)))

	mux.HandleFunc("GET /api/v1/favorites",
		limiter.limit("favorites", favoriteRateLimit, h.withAuth(h.ListFavorites)))
	mux.HandleFunc("POST /api/v1/favorites",
		limiter.limit("favorites", favoriteRateLimit, h.withAuth(h.AddFavorite)))
	mux.HandleFunc("DELETE /api/v1/favorites",
		limiter.limit("favorites", favoriteRateLimit, h.withAuth(h.RemoveFavorite)))

	mux.HandleFunc("GET /api/v1/admin/members",
		limiter.limit("admin", adminRateLimit, h.withAdmin(h.ListMembers)))
	mux.HandleFunc("POST /api/v1/admin/members",
		limiter.limit("admin", adminRateLimit, h.withAdmin(h.AddMember)))
	mux.HandleFunc("DELETE /api/v1/admin/members",
		limiter.limit("admin", adminRateLimit, h.withAdmin(h.DeleteMember)))
	mux.HandleFunc("GET /api/v1/admin/permissions",
		limiter.limit("admin", adminRateLimit, h.withAdmin(h.ListPermissions)))
	mux.HandleFunc("POST /api/v1/admin/permissions",
		limiter.limit("admin", adminRateLimit, h.withAdmin(h.SetPermission)))
	mux.HandleFunc("GET /api/v1/admin/logs",
		limiter.limit("admin", adminRateLimit, h.withAdmin(h.SearchLogs)))
	mux.HandleFunc("GET /api/v1/admin/audit",
		limiter.limit("admin", adminRateLimit, h.withAdmin(h.AuditLogs)))
	mux.HandleFunc("GET /api/v1/admin/favorites",
		limiter.limit("admin", adminRateLimit, h.withAdmin(h.FavoriteStats)))
	mux.HandleFunc("POST /api/v1/admin/refresh",
		limiter.limit("admin", adminRateLimit, h.withAdmin(h.Refresh)))

	mux.HandleFunc("GET /api/v1/config", h.Config)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = metricsMiddleware(wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Search runs an authorized directory search and records it in the search log.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request, email string) {
	query := r.URL.Query().Get("q")
	results := h.directory.SearchAsUser(r.Context(), email, query, clientIP(r), r.UserAgent())
	writeJSON(w, http.StatusOK, toServiceResponses(results))
}

// Popular returns the caller's most relevant records by recent search
// popularity.
func (h *Handler) Popular(w http.ResponseWriter, r *http.Request, email string) {
	limit := defaultPopularLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	groups := h.directory.Groups(r.Context(), email)
	writeJSON(w, http.StatusOK, toServiceResponses(h.directory.Popular(r.Context(), limit, groups)))
}

// ListFavorites returns the caller's bookmarks. With details=true the
// response carries the full catalog records instead of the bare bookmarks.
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request, email string) {
	if r.URL.Query().Get("details") == "true" {
		writeJSON(w, http.StatusOK, toServiceResponses(h.favorites.FavoriteServices(r.Context(), email)))
		return
	}

	favs := h.favorites.Favorites(r.Context(), email)
	resp := make([]FavoriteResponse, 0, len(favs))
	for _, fav := range favs {
		resp = append(resp, toFavoriteResponse(fav))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddFavorite bookmarks a service for the caller. Re-adding an existing
// favorite succeeds without creating a duplicate.
func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request, email string) {
	var req AddFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ServiceID == "" {
		writeError(w, http.StatusBadRequest, "serviceId is required")
		return
	}

	if err := h.favorites.AddFavorite(r.Context(), email, req.ServiceID, req.ServiceName); err != nil {
		h.logger.Error("failed to add favorite", "service_id", req.ServiceID, "error", err)
		writeError(w, http.StatusBadGateway, "upstream record store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFavorite deletes the caller's bookmark named by the serviceId query
// parameter.
func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request, email string) {
	serviceID := r.URL.Query().Get("serviceId")
	if serviceID == "" {
		serviceID = r.URL.Query().Get("service_id")
	}
	if serviceID == "" {
		writeError(w, http.StatusBadRequest, "serviceId is required")
		return
	}

	if err := h.favorites.RemoveFavorite(r.Context(), email, serviceID); err != nil {
		h.logger.Error("failed to remove favorite", "service_id", serviceID, "error", err)
		writeError(w, http.StatusBadGateway, "upstream record store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers returns the full membership roster.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request, _ string) {
	members := h.members.Members(r.Context())
	resp := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, MemberResponse{Email: m.Email, Group: m.Group})
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddMember appends an (email, group) row to the roster.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request, adminEmail string) {
	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	group := strings.TrimSpace(req.Group)
	if !emailPattern.MatchString(email) {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if domain := h.settings.AllowedDomain; domain != "" && !strings.HasSuffix(email, "@"+domain) {
		writeError(w, http.StatusBadRequest, "email is outside the allowed domain")
		return
	}
	if group == "" {
		writeError(w, http.StatusBadRequest, "group is required")
		return
	}

	if err := h.members.AddMember(r.Context(), adminEmail, clientIP(r), email, group); err != nil {
		h.logger.Error("failed to add member", "email", email, "error", err)
		writeError(w, http.StatusBadGateway, "upstream record store unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, MemberResponse{Email: email, Group: group})
}

// DeleteMember removes the (email, group) row named by query parameters.
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request, adminEmail string) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))
	group := strings.TrimSpace(r.URL.Query().Get("group"))
	if email == "" || group == "" {
		writeError(w, http.StatusBadRequest, "email and group are required")
		return
	}

	if err := h.members.DeleteMember(r.Context(), adminEmail, clientIP(r), email, group); err != nil {
		h.logger.Error("failed to delete member", "email", email, "error", err)
		writeError(w, http.StatusBadGateway, "upstream record store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPermissions returns every catalog record with its allowed groups.
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request, _ string) {
	perms := h.directory.ServicesWithPermissions(r.Context())
	resp := make([]PermissionResponse, 0, len(perms))
	for _, perm := range perms {
		resp = append(resp, toPermissionResponse(perm))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetPermission replaces a service's allowed groups. An empty list makes the
// service visible to everyone again.
func (h *Handler) SetPermission(w http.ResponseWriter, r *http.Request, adminEmail string) {
	var req SetPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ServiceID == "" {
		writeError(w, http.StatusBadRequest, "serviceId is required")
		return
	}

	groups := make([]string, 0, len(req.AllowedGroups))
	for _, group := range req.AllowedGroups {
		if group = strings.TrimSpace(group); group != "" {
			groups = append(groups, group)
		}
	}

	if err := h.directory.SetPermission(r.Context(), adminEmail, clientIP(r), req.ServiceID, groups); err != nil {
		h.logger.Error("failed to set permission", "service_id", req.ServiceID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchLogs returns recent search-log entries, newest first.
func (h *Handler) SearchLogs(w http.ResponseWriter, r *http.Request, _ string) {
	limit, ok := logLimit(w, r)
	if !ok {
		return
	}

	logs, err := h.directory.RecentSearchLogs(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list search logs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]SearchLogResponse, 0, len(logs))
	for _, entry := range logs {
		resp = append(resp, toSearchLogResponse(entry))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AuditLogs returns recent admin actions, newest first.
func (h *Handler) AuditLogs(w http.ResponseWriter, r *http.Request, _ string) {
	limit, ok := logLimit(w, r)
	if !ok {
		return
	}

	logs, err := h.directory.RecentAuditLogs(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list audit logs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]AuditLogResponse, 0, len(logs))
	for _, entry := range logs {
		resp = append(resp, toAuditLogResponse(entry))
	}
	writeJSON(w, http.StatusOK, resp)
}

// FavoriteStats returns the per-service favorite counts for the admin
// overview.
func (h *Handler) FavoriteStats(w http.ResponseWriter, r *http.Request, _ string) {
	stats := h.favorites.Stats(r.Context())
	resp := make([]FavoriteStatResponse, 0, len(stats))
	for _, stat := range stats {
		users := stat.Users
		if users == nil {
			users = []string{}
		}
		resp = append(resp, FavoriteStatResponse{
			ServiceID:   stat.ServiceID,
			ServiceName: stat.ServiceName,
			Count:       stat.Count,
			Users:       users,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh forces every cached snapshot to refetch from the upstream store.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request, adminEmail string) {
	count := h.directory.Refresh(r.Context(), adminEmail, clientIP(r))
	writeJSON(w, http.StatusOK, RefreshResponse{Services: count})
}

// Config exposes the non-sensitive runtime settings the GUI needs before
// sign-in.
func (h *Handler) Config(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ConfigResponse{
		Environment: h.settings.Environment,
		SkipAuth:    h.settings.SkipAuth,
	})
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// logLimit parses the limit query parameter for the log endpoints.
func logLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}
