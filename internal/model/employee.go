package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Employee mirrors the organizational directory. The workflow core only ever
// reads ReportsTo to compute routing; it never writes this table.
type Employee struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FullName   string    `gorm:"type:varchar(255)" json:"full_name"`
	Role       string    `gorm:"type:varchar(100)" json:"role"`
	Department string    `gorm:"type:varchar(100)" json:"department"`
	ReportsTo  string    `gorm:"type:varchar(255);index" json:"reports_to,omitempty"` // manager email, empty at the top of the chain
	CreatedAt  time.Time `json:"created_at"`
}

func (e *Employee) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
