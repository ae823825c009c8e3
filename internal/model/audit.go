package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit action enum constants — one per accepted lifecycle transition.
const (
	ActionSubmitted        = "SUBMITTED"
	ActionApproved         = "APPROVED"
	ActionRejected         = "REJECTED"
	ActionRejectedWithEdit = "REJECTED_WITH_EDIT"
	ActionForwarded        = "FORWARDED"
)

// RequestAuditLog is one immutable record of a lifecycle transition: who acted,
// who is responsible next (if anyone), and why. Rows are append-only — no
// update or delete path exists anywhere in the codebase. Keyed by a sequence
// rather than a uuid so id order is insertion order.
type RequestAuditLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID  uuid.UUID `gorm:"type:uuid;not null;index" json:"request_id"`
	Action     string    `gorm:"type:varchar(30);not null" json:"action"`
	ActedBy    string    `gorm:"type:varchar(255);not null" json:"acted_by"`
	ActedTo    string    `gorm:"type:varchar(255)" json:"acted_to,omitempty"`
	Comment    string    `gorm:"type:text" json:"comment"`
	OccurredAt time.Time `gorm:"column:occurred_at;autoCreateTime;index" json:"occurred_at"`
}

// ValidAction reports whether a belongs to the closed action set.
func ValidAction(a string) bool {
	switch a {
	case ActionSubmitted, ActionApproved, ActionRejected, ActionRejectedWithEdit, ActionForwarded:
		return true
	}
	return false
}

// CommentRequired reports whether the action demands a non-empty comment.
// Every approval-path action does; submission carries fixed text instead.
func CommentRequired(a string) bool {
	return a == ActionApproved || a == ActionRejected || a == ActionRejectedWithEdit || a == ActionForwarded
}
