package domain

// Severity of a user-facing notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// String returns the string representation of Severity.
func (s Severity) String() string {
	return string(s)
}

// Notification is a user-facing alert identified by a stable key.
type Notification struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Persistent  bool     `json:"persistent"`
	ShownAt     int64    `json:"shown_at,omitempty"` // ms, set when displayed
}

// NotificationEvent is the persisted record of a notification being shown.
type NotificationEvent struct {
	ID          string // uuid
	Key         string
	Title       string
	Description string
	Severity    Severity
	ShownAt     int64 // ms
}
