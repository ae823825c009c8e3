package repository

import (
	"context"

	"approvalflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	// ListByRequest returns documents in arrival order.
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.Document, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Document, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	return GetDB(ctx, r.db).Create(doc).Error
}

func (r *documentRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.Document, error) {
	var docs []model.Document
	if err := GetDB(ctx, r.db).
		Where("request_id = ?", requestID).
		Order("created_at asc, id asc").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Document, error) {
	var docs []model.Document
	if len(ids) == 0 {
		return docs, nil
	}
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Where("id IN ?", ids).Delete(&model.Document{}).Error
}
