package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"approvalflow/internal/model"
	"approvalflow/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// managerCacheTTL bounds how long a stale reporting line can be served.
const managerCacheTTL = 5 * time.Minute

// DirectoryService reads the organizational reporting hierarchy. The
// workflow core never writes through this interface.
type DirectoryService interface {
	// LookupManager resolves an employee's direct manager. Returns "" with a
	// nil error when the employee exists but reports to nobody, and
	// model.ErrNotFound when the employee is unknown.
	LookupManager(ctx context.Context, email string) (string, error)
	GetEmployee(ctx context.Context, email string) (*model.Employee, error)
	ListEmployees(ctx context.Context, page, limit int) ([]model.Employee, int64, error)
}

type directoryService struct {
	repo  repository.EmployeeRepository
	cache *redis.Client // nil disables caching
}

// NewDirectoryService wires the employee table with an optional Redis
// cache-aside for manager lookups. Pass a nil client to run without cache.
func NewDirectoryService(repo repository.EmployeeRepository, cache *redis.Client) DirectoryService {
	return &directoryService{repo: repo, cache: cache}
}

func managerCacheKey(email string) string {
	return "directory:manager:" + email
}

func (s *directoryService) LookupManager(ctx context.Context, email string) (string, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, managerCacheKey(email)).Result()
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, redis.Nil) {
			// Cache trouble must not break routing; fall through to the DB.
			log.Warn().Err(err).Str("email", email).Msg("manager cache read failed")
		}
	}

	emp, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("employee %s: %w", email, model.ErrNotFound)
		}
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, managerCacheKey(email), emp.ReportsTo, managerCacheTTL).Err(); err != nil {
			log.Warn().Err(err).Str("email", email).Msg("manager cache write failed")
		}
	}

	return emp.ReportsTo, nil
}

func (s *directoryService) GetEmployee(ctx context.Context, email string) (*model.Employee, error) {
	emp, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("employee %s: %w", email, model.ErrNotFound)
		}
		return nil, err
	}
	return emp, nil
}

func (s *directoryService) ListEmployees(ctx context.Context, page, limit int) ([]model.Employee, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, page, limit)
}
