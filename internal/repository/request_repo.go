package repository

import (
	"context"

	"approvalflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestFilter narrows List results. Zero values mean "no constraint".
type RequestFilter struct {
	CreatedBy       string // requests originated by this employee
	CurrentApprover string // requests waiting on this employee
	Status          string
	// VisibleTo hides other creators' drafts from broad listings. Drafts are
	// private until submitted.
	VisibleTo string
}

type RequestRepository interface {
	Create(ctx context.Context, req *model.Request) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error)
	List(ctx context.Context, filter RequestFilter, page, limit int) ([]model.Request, int64, error)
	// UpdateTransition is a compare-and-swap: the write only lands if the row
	// still carries the expected status and approver. Returns false when a
	// concurrent transition got there first.
	UpdateTransition(ctx context.Context, id uuid.UUID, expectStatus, expectApprover string, fields map[string]interface{}) (bool, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter, page, limit int) ([]model.Request, int64, error) {
	var requests []model.Request
	var total int64

	db := GetDB(ctx, r.db)
	apply := func(q *gorm.DB) *gorm.DB {
		if filter.CreatedBy != "" {
			q = q.Where("created_by = ?", filter.CreatedBy)
		}
		if filter.CurrentApprover != "" {
			q = q.Where("current_approver = ?", filter.CurrentApprover)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.VisibleTo != "" {
			q = q.Where("status <> ? OR created_by = ?", model.StatusDraft, filter.VisibleTo)
		}
		return q
	}

	if err := apply(db.Model(&model.Request{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := apply(db).Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *requestRepository) UpdateTransition(ctx context.Context, id uuid.UUID, expectStatus, expectApprover string, fields map[string]interface{}) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Request{}).
		Where("id = ? AND status = ? AND current_approver = ?", id, expectStatus, expectApprover).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
