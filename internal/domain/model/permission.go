package model

// WildcardGroup marks a privileged caller (administrator) for whom every
// record is visible regardless of permission entries.
const WildcardGroup = "*"

// ServicePermission pairs a service with the groups allowed to see it.
// An empty AllowedGroups means the service is visible to everyone
// (open-by-default).
type ServicePermission struct {
	ServiceID     string
	ServiceName   string
	AllowedGroups []string
}
