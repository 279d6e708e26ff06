package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/subtrackhq/subtrack-backend/pkg/db"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/pagination"
)

// ServiceParams groups dependencies for the user service.
type ServiceParams struct {
	Repo Repository
}

// Service orchestrates user operations.
type Service struct {
	repo Repository
}

// NewService builds a user service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

// CreateParams carries the admin-facing user creation input.
type CreateParams struct {
	Email string
	Name  string
	Role  enums.UserRole
}

// Create registers a new user account.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	role := params.Role
	if role == "" {
		role = enums.UserRoleUser
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}

	user := &models.User{
		Email:    email,
		Name:     strings.TrimSpace(params.Name),
		Role:     role,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "idx_users_email") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating user")
	}
	return user, nil
}

// Get loads a user by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
	}
	return user, nil
}

// GetByEmail loads a user by email, returning nil when absent.
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	return user, nil
}

// ListParams carries user listing filters.
type ListParams struct {
	Role   *enums.UserRole
	Active *bool
	Limit  int
	Cursor string
}

// ListResult is one page of users.
type ListResult struct {
	Users      []models.User
	NextCursor string
}

// List returns a page of users ordered newest first.
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, ListQuery{
		Role:   params.Role,
		Active: params.Active,
		Limit:  params.Limit,
		After:  after,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing users")
	}

	result := &ListResult{Users: rows}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// SetActive toggles the account's active flag.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.IsActive = active
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating user")
	}
	return user, nil
}

// RecordLogin stamps last_login_at and marks the account verified.
func (s *Service) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := s.repo.MarkLogin(ctx, id, at); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording login")
	}
	return nil
}

// ListActiveSubscribers returns every active non-admin account, used to build
// campaign recipient lists.
func (s *Service) ListActiveSubscribers(ctx context.Context) ([]models.User, error) {
	rows, err := s.repo.ListActiveSubscribers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing subscribers")
	}
	return rows, nil
}
