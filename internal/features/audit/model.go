// Package audit records admin actions performed through the console to
// the audit_log table. It only observes: nothing reads it on the hot
// path, and a write failure never blocks the action it describes.
package audit

import "time"

// Actions recorded in the log. These match the ENUM on audit_log.action.
const (
	ActionLogin         = "login"
	ActionLogout        = "logout"
	ActionSave          = "save"
	ActionDiscard       = "discard"
	ActionStatusChange  = "status_change"
	ActionDelete        = "delete"
	ActionSupportUpdate = "support_update"
)

// Entry is one recorded admin action.
type Entry struct {
	ID         string    `json:"id"`
	AdminLogin string    `json:"adminLogin"`
	Action     string    `json:"action"`
	EntityKind string    `json:"entityKind,omitempty"`
	EntityID   string    `json:"entityId,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
