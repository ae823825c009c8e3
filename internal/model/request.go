package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Request status enum constants
const (
	StatusDraft            = "DRAFT"
	StatusPending          = "PENDING"
	StatusApproved         = "APPROVED"
	StatusRejected         = "REJECTED"
	StatusRejectedWithEdit = "REJECTED_WITH_EDIT"
)

// Request is the unit of work routed through the approval chain.
// CurrentApprover holds the email of whoever must act next: the assigned
// approver while PENDING, the creator after REJECTED_WITH_EDIT, empty otherwise.
type Request struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string     `gorm:"type:varchar(255);not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	Status          string     `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	CreatedBy       string     `gorm:"type:varchar(255);not null;index" json:"created_by"`
	CurrentApprover string     `gorm:"type:varchar(255);index" json:"current_approver,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Documents       []Document `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"documents,omitempty"`
}

// BeforeCreate assigns the id client-side so the model works on both
// Postgres and the sqlite test databases.
func (r *Request) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ValidStatus reports whether s is one of the closed status set.
// Unknown values must be rejected at the boundary, never coerced.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusRejectedWithEdit:
		return true
	}
	return false
}

// Editable reports whether the creator may change title/description/documents
// and re-submit. Only drafts and requests returned for correction qualify.
func (r *Request) Editable() bool {
	return r.Status == StatusDraft || r.Status == StatusRejectedWithEdit
}
