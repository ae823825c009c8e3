package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"approvalflow/internal/middleware"
	"approvalflow/internal/model"
	"approvalflow/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for request validation
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

type BootstrapEmployeeRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	FullName   string `json:"full_name"`
	Role       string `json:"role"`
	Department string `json:"department"`
	ReportsTo  string `json:"reports_to" binding:"omitempty,email"`
}

// ProfileResponse joins the auth identity with the directory entry.
type ProfileResponse struct {
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Role       string `json:"role"`
	Department string `json:"department"`
	ReportsTo  string `json:"reports_to,omitempty"`
}

// UserService handles authentication. Identity verification lives entirely
// here; the workflow core only ever receives the resolved actor email.
type UserService interface {
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	GetProfile(ctx context.Context, email string) (*ProfileResponse, error)
	// BootstrapEmployee creates a user plus directory row in one go.
	// Development convenience only.
	BootstrapEmployee(ctx context.Context, req BootstrapEmployeeRequest) (*ProfileResponse, error)
}

type userService struct {
	users     repository.UserRepository
	employees repository.EmployeeRepository
	txManager repository.TransactionManager
}

func NewUserService(users repository.UserRepository, employees repository.EmployeeRepository, txManager repository.TransactionManager) UserService {
	return &userService{users: users, employees: employees, txManager: txManager}
}

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

func (s *userService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.New("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	return s.issueTokens(ctx, user)
}

func (s *userService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	stored, err := s.users.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = s.users.DeleteRefreshToken(ctx, refreshToken)
		return nil, errors.New("refresh token expired")
	}

	// Rotate: the old token dies with the new issue.
	if err := s.users.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, &stored.User)
}

func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.users.DeleteRefreshToken(ctx, refreshToken)
}

func (s *userService) GetProfile(ctx context.Context, email string) (*ProfileResponse, error) {
	profile := &ProfileResponse{Email: email}

	emp, err := s.employees.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Authenticated but not in the directory: a bare profile.
			return profile, nil
		}
		return nil, err
	}

	profile.FullName = emp.FullName
	profile.Role = emp.Role
	profile.Department = emp.Department
	profile.ReportsTo = emp.ReportsTo
	return profile, nil
}

func (s *userService) BootstrapEmployee(ctx context.Context, req BootstrapEmployeeRequest) (*ProfileResponse, error) {
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, errors.New("email already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	emp := model.Employee{
		Email:      req.Email,
		FullName:   req.FullName,
		Role:       req.Role,
		Department: req.Department,
		ReportsTo:  req.ReportsTo,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.users.Create(txCtx, &model.User{Email: req.Email, Password: string(hashed)}); err != nil {
			return err
		}
		return s.employees.Create(txCtx, &emp)
	})
	if err != nil {
		return nil, err
	}

	return &ProfileResponse{
		Email:      emp.Email,
		FullName:   emp.FullName,
		Role:       emp.Role,
		Department: emp.Department,
		ReportsTo:  emp.ReportsTo,
	}, nil
}

func (s *userService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	claims := jwt.MapClaims{
		"sub": user.Email,
		"exp": time.Now().Add(accessTokenTTL).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(middleware.GetJWTSecret())
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	refresh := hex.EncodeToString(raw)

	if err := s.users.SaveRefreshToken(ctx, &model.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: time.Now().Add(refreshTokenTTL),
	}); err != nil {
		return nil, err
	}

	// Opportunistic cleanup of expired rows; failure is harmless.
	_ = s.users.DeleteExpiredRefreshTokens(ctx)

	return &TokenResponse{Token: access, RefreshToken: refresh}, nil
}
