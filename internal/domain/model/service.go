package model

// ServiceRecord is one directory entry: a shared service account with its
// login credentials. ID is derived from the upstream row position and stays
// stable within one cached snapshot, so permission entries and favorites can
// reference it safely until the next refetch.
type ServiceRecord struct {
	ID           string
	ServiceName  string
	URL          string
	AccountID    string
	Password     string
	PasswordKr   string // Password spelled out in Korean for phone handoff.
	Usage        string
	LastModified string
	Editor       string
	Registrant   string
	Verified     string // "O"/"X" in the source sheet.

	// Extra holds upstream columns that have no canonical field, keyed by
	// the slugified header text. Never dropped so admins see the full row.
	Extra map[string]string
}
