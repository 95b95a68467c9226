package domain

import "time"

type AuditAction string

const (
	ActionLogin        AuditAction = "login"
	ActionLogout       AuditAction = "logout"
	ActionCreate       AuditAction = "create"
	ActionUpdate       AuditAction = "update"
	ActionDelete       AuditAction = "delete"
	ActionStatusChange AuditAction = "status_change"
	ActionAdminDelete  AuditAction = "admin_delete"
)

// AuditEntry is one immutable row of the audit trail. Entries are append
// only; nothing in the system updates or deletes them.
type AuditEntry struct {
	ID           string
	ActorEmail   string
	Action       AuditAction
	ResourceType string
	ResourceID   string
	Details      string
	Timestamp    time.Time
}
