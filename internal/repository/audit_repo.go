package repository

import (
	"context"

	"approvalflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository is append-and-read only. The ledger has no update or
// delete operation anywhere — history is permanent.
type AuditRepository interface {
	Append(ctx context.Context, entry *model.RequestAuditLog) error
	// ListByRequest returns the full trail ascending by occurrence,
	// id as the tiebreak for same-timestamp rows.
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.RequestAuditLog, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *model.RequestAuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.RequestAuditLog, error) {
	var entries []model.RequestAuditLog
	if err := GetDB(ctx, r.db).
		Where("request_id = ?", requestID).
		Order("occurred_at asc, id asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
