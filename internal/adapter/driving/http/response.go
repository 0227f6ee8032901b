package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hyeonwkim/passdir/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ServiceResponse is the JSON representation of a directory entry. Field
// names mirror the canonical upstream column keys so API consumers see the
// same vocabulary the sheet uses.
type ServiceResponse struct {
	ID           string            `json:"id"`
	ServiceName  string            `json:"serviceName"`
	URL          string            `json:"url"`
	AccountID    string            `json:"accountId"`
	Password     string            `json:"password"`
	PasswordKr   string            `json:"passwordKr,omitempty"`
	Usage        string            `json:"usage,omitempty"`
	LastModified string            `json:"lastModified,omitempty"`
	Editor       string            `json:"editor,omitempty"`
	Registrant   string            `json:"registrant,omitempty"`
	Verified     string            `json:"verified,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// MemberResponse is the JSON representation of one roster row.
type MemberResponse struct {
	Email string `json:"email"`
	Group string `json:"group"`
}

// FavoriteResponse is the JSON representation of one bookmark.
type FavoriteResponse struct {
	Email       string `json:"email"`
	ServiceID   string `json:"serviceId"`
	ServiceName string `json:"serviceName"`
	CreatedAt   string `json:"createdAt"`
}

// FavoriteStatResponse is one row of the admin favorites overview.
type FavoriteStatResponse struct {
	ServiceID   string   `json:"serviceId"`
	ServiceName string   `json:"serviceName"`
	Count       int      `json:"count"`
	Users       []string `json:"users"`
}

// SearchLogResponse is the JSON representation of one search-log entry.
type SearchLogResponse struct {
	Timestamp string `json:"timestamp"`
	Email     string `json:"email"`
	Query     string `json:"searchQuery"`
	IP        string `json:"ip"`
	UserAgent string `json:"browser"`
	Success   bool   `json:"success"`
}

// AuditLogResponse is the JSON representation of one admin action.
type AuditLogResponse struct {
	Timestamp  string `json:"timestamp"`
	AdminEmail string `json:"adminEmail"`
	Action     string `json:"action"`
	Target     string `json:"target,omitempty"`
	Details    string `json:"details,omitempty"`
	IP         string `json:"ip"`
}

// PermissionResponse is one service with its allowed groups; an empty list
// means the service is visible to everyone.
type PermissionResponse struct {
	ServiceID     string   `json:"serviceId"`
	ServiceName   string   `json:"serviceName"`
	AllowedGroups []string `json:"allowedGroups"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ConfigResponse exposes the non-sensitive runtime settings the GUI needs.
type ConfigResponse struct {
	Environment string `json:"environment"`
	SkipAuth    bool   `json:"skipAuth"`
}

// AddFavoriteRequest is the JSON body for the add favorite endpoint.
type AddFavoriteRequest struct {
	ServiceID   string `json:"serviceId"`
	ServiceName string `json:"serviceName"`
}

// AddMemberRequest is the JSON body for the add member endpoint.
type AddMemberRequest struct {
	Email string `json:"email"`
	Group string `json:"group"`
}

// SetPermissionRequest is the JSON body for the set permission endpoint.
type SetPermissionRequest struct {
	ServiceID     string   `json:"serviceId"`
	AllowedGroups []string `json:"allowedGroups"`
}

// RefreshResponse reports the outcome of a forced cache refresh.
type RefreshResponse struct {
	Services int `json:"services"`
}

func toServiceResponse(record model.ServiceRecord) ServiceResponse {
	return ServiceResponse{
		ID:           record.ID,
		ServiceName:  record.ServiceName,
		URL:          record.URL,
		AccountID:    record.AccountID,
		Password:     record.Password,
		PasswordKr:   record.PasswordKr,
		Usage:        record.Usage,
		LastModified: record.LastModified,
		Editor:       record.Editor,
		Registrant:   record.Registrant,
		Verified:     record.Verified,
		Extra:        record.Extra,
	}
}

func toServiceResponses(records []model.ServiceRecord) []ServiceResponse {
	resp := make([]ServiceResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, toServiceResponse(record))
	}
	return resp
}

func toFavoriteResponse(fav model.Favorite) FavoriteResponse {
	return FavoriteResponse{
		Email:       fav.Email,
		ServiceID:   fav.ServiceID,
		ServiceName: fav.ServiceName,
		CreatedAt:   fav.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toSearchLogResponse(entry model.SearchLog) SearchLogResponse {
	return SearchLogResponse{
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339),
		Email:     entry.Email,
		Query:     entry.Query,
		IP:        entry.IP,
		UserAgent: entry.UserAgent,
		Success:   entry.Success,
	}
}

func toAuditLogResponse(entry model.AdminActionLog) AuditLogResponse {
	return AuditLogResponse{
		Timestamp:  entry.Timestamp.UTC().Format(time.RFC3339),
		AdminEmail: entry.AdminEmail,
		Action:     entry.Action,
		Target:     entry.Target,
		Details:    entry.Details,
		IP:         entry.IP,
	}
}

func toPermissionResponse(perm model.ServicePermission) PermissionResponse {
	groups := perm.AllowedGroups
	if groups == nil {
		groups = []string{}
	}
	return PermissionResponse{
		ServiceID:     perm.ServiceID,
		ServiceName:   perm.ServiceName,
		AllowedGroups: groups,
	}
}
