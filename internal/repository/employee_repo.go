package repository

import (
	"context"

	"approvalflow/internal/model"

	"gorm.io/gorm"
)

type EmployeeRepository interface {
	GetByEmail(ctx context.Context, email string) (*model.Employee, error)
	List(ctx context.Context, page, limit int) ([]model.Employee, int64, error)
	// Create exists for the dev bootstrap endpoint only; the workflow core
	// treats the directory as read-only.
	Create(ctx context.Context, emp *model.Employee) error
}

type employeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) EmployeeRepository {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) GetByEmail(ctx context.Context, email string) (*model.Employee, error) {
	var emp model.Employee
	if err := GetDB(ctx, r.db).First(&emp, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &emp, nil
}

func (r *employeeRepository) List(ctx context.Context, page, limit int) ([]model.Employee, int64, error) {
	var emps []model.Employee
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Employee{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("email asc").Offset(offset).Limit(limit).Find(&emps).Error; err != nil {
		return nil, 0, err
	}

	return emps, total, nil
}

func (r *employeeRepository) Create(ctx context.Context, emp *model.Employee) error {
	return GetDB(ctx, r.db).Create(emp).Error
}
