package model

import "time"

// Admin action types recorded in the audit trail. Values match the labels
// the original spreadsheet audit sheet used.
const (
	ActionPermissionUpdate = "PERMISSION_UPDATE"
	ActionMemberAdd        = "MEMBER_ADD"
	ActionMemberDelete     = "MEMBER_DELETE"
	ActionCacheRefresh     = "CACHE_REFRESH"
)

// AdminActionLog is one immutable record of an administrative mutation.
type AdminActionLog struct {
	ID         int64
	Timestamp  time.Time
	AdminEmail string
	Action     string
	Target     string // Service ID or "email/group" pair the action touched.
	Details    string
	IP         string
}
