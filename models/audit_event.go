package models

import "time"

// Audit actions recorded by the login middleware
const (
	ActionLogin  = "login"
	ActionLogout = "logout"
)

// AuditEvent represents a single authentication-related event
type AuditEvent struct {
	ID        int64
	Timestamp time.Time
	UserID    string
	Action    string
	Path      string
	UserAgent string
	IPAddress string
}
