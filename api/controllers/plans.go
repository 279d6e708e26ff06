package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subtrackhq/subtrack-backend/api/responses"
	"github.com/subtrackhq/subtrack-backend/api/validators"
	planssvc "github.com/subtrackhq/subtrack-backend/internal/plans"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

// PlanService describes the plan catalog surface used by the HTTP controllers.
type PlanService interface {
	Create(ctx context.Context, params planssvc.UpsertParams) (*models.Plan, error)
	Update(ctx context.Context, id uuid.UUID, params planssvc.UpsertParams) (*models.Plan, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	List(ctx context.Context, active *bool) ([]models.Plan, error)
	ListPublic(ctx context.Context) ([]models.Plan, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Plan, error)
}

type planResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         string          `json:"price"`
	Currency      string          `json:"currency"`
	BillingPeriod string          `json:"billing_period"`
	Features      json.RawMessage `json:"features,omitempty"`
	TrialDays     int             `json:"trial_days"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

type planUpsertRequest struct {
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description"`
	Price         string          `json:"price" validate:"required"`
	Currency      string          `json:"currency"`
	BillingPeriod string          `json:"billing_period" validate:"required,oneof=monthly yearly"`
	Features      json.RawMessage `json:"features"`
	TrialDays     *int            `json:"trial_days"`
	IsActive      *bool           `json:"is_active"`
}

func planToResponse(plan *models.Plan) planResponse {
	return planResponse{
		ID:            plan.ID.String(),
		Name:          plan.Name,
		Description:   plan.Description,
		Price:         plan.Price.StringFixed(2),
		Currency:      plan.Currency,
		BillingPeriod: string(plan.BillingPeriod),
		Features:      plan.Features,
		TrialDays:     plan.TrialDays,
		IsActive:      plan.IsActive,
		CreatedAt:     plan.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     plan.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func plansToResponse(plans []models.Plan) []planResponse {
	out := make([]planResponse, 0, len(plans))
	for i := range plans {
		out = append(out, planToResponse(&plans[i]))
	}
	return out
}

func upsertParamsFromRequest(payload planUpsertRequest) (planssvc.UpsertParams, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(payload.Price))
	if err != nil {
		return planssvc.UpsertParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
	}
	period, err := enums.ParseBillingPeriod(payload.BillingPeriod)
	if err != nil {
		return planssvc.UpsertParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid billing period")
	}
	params := planssvc.UpsertParams{
		Name:          payload.Name,
		Description:   payload.Description,
		Price:         price,
		Currency:      payload.Currency,
		BillingPeriod: period,
		Features:      payload.Features,
		IsActive:      payload.IsActive,
	}
	if payload.TrialDays != nil {
		params.TrialDays = *payload.TrialDays
	}
	return params, nil
}

// PublicPlansList returns the active plans shown on the signup page.
func PublicPlansList(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		plans, err := svc.ListPublic(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planListResponse{Plans: plansToResponse(plans)})
	}
}

func AdminPlansList(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		var active *bool
		if raw := strings.TrimSpace(r.URL.Query().Get("active")); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid active flag"))
				return
			}
			active = &parsed
		}

		plans, err := svc.List(ctx, active)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planListResponse{Plans: plansToResponse(plans)})
	}
}

func AdminPlanCreate(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		var payload planUpsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params, err := upsertParamsFromRequest(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.Create(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, planToResponse(plan))
	}
}

func AdminPlanGet(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		id, err := parseIDParam(r, "planId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planToResponse(plan))
	}
}

func AdminPlanUpdate(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		id, err := parseIDParam(r, "planId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload planUpsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params, err := upsertParamsFromRequest(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.Update(ctx, id, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planToResponse(plan))
	}
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// AdminPlanSetActive toggles plan visibility. Plans are never hard-deleted so
// existing subscriptions keep their pricing reference.
func AdminPlanSetActive(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		id, err := parseIDParam(r, "planId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload setActiveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.SetActive(ctx, id, *payload.IsActive)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planToResponse(plan))
	}
}

func parseIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid id")
	}
	return id, nil
}
