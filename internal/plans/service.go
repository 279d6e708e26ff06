package plans

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subtrackhq/subtrack-backend/pkg/db"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
)

// ServiceParams groups dependencies for the plan service.
type ServiceParams struct {
	Repo Repository
}

// Service orchestrates plan operations.
type Service struct {
	repo Repository
}

// NewService builds a plan service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

// UpsertParams carries plan create/update input.
type UpsertParams struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	Currency      string
	BillingPeriod enums.BillingPeriod
	Features      json.RawMessage
	TrialDays     int
	IsActive      *bool
}

func (p UpsertParams) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if p.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if !p.BillingPeriod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid billing period")
	}
	if p.TrialDays < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "trial days cannot be negative")
	}
	return nil
}

// Create registers a new plan.
func (s *Service) Create(ctx context.Context, params UpsertParams) (*models.Plan, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "USD"
	}
	active := true
	if params.IsActive != nil {
		active = *params.IsActive
	}

	plan := &models.Plan{
		Name:          strings.TrimSpace(params.Name),
		Description:   strings.TrimSpace(params.Description),
		Price:         params.Price,
		Currency:      currency,
		BillingPeriod: params.BillingPeriod,
		Features:      params.Features,
		TrialDays:     params.TrialDays,
		IsActive:      active,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		if db.IsUniqueViolation(err, "idx_plans_name") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "plan name already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating plan")
	}
	return plan, nil
}

// Update applies the provided fields to an existing plan.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpsertParams) (*models.Plan, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	plan.Name = strings.TrimSpace(params.Name)
	plan.Description = strings.TrimSpace(params.Description)
	plan.Price = params.Price
	plan.BillingPeriod = params.BillingPeriod
	plan.TrialDays = params.TrialDays
	if currency := strings.ToUpper(strings.TrimSpace(params.Currency)); currency != "" {
		plan.Currency = currency
	}
	if params.Features != nil {
		plan.Features = params.Features
	}
	if params.IsActive != nil {
		plan.IsActive = *params.IsActive
	}

	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating plan")
	}
	return plan, nil
}

// Get loads a plan by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Plan not found")
	}
	return plan, nil
}

// List returns plans, optionally filtered by active state.
func (s *Service) List(ctx context.Context, active *bool) ([]models.Plan, error) {
	rows, err := s.repo.List(ctx, ListQuery{Active: active})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing plans")
	}
	return rows, nil
}

// ListPublic returns the active catalog shown to subscribers.
func (s *Service) ListPublic(ctx context.Context) ([]models.Plan, error) {
	active := true
	return s.List(ctx, &active)
}

// SetActive archives or restores a plan. Existing subscriptions are not
// touched; an archived plan just stops accepting signups.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Plan, error) {
	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	plan.IsActive = active
	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating plan")
	}
	return plan, nil
}
