package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/subtrackhq/subtrack-backend/api/responses"
	"github.com/subtrackhq/subtrack-backend/api/validators"
	campaignsvc "github.com/subtrackhq/subtrack-backend/internal/campaigns"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

// CampaignService describes the campaign surface used by the HTTP controllers.
type CampaignService interface {
	Create(ctx context.Context, params campaignsvc.CreateParams) (*models.EmailCampaign, error)
	Get(ctx context.Context, id uuid.UUID) (*models.EmailCampaign, error)
	List(ctx context.Context, params campaignsvc.ListParams) ([]models.EmailCampaign, error)
	Schedule(ctx context.Context, id uuid.UUID, at time.Time) (*models.EmailCampaign, error)
}

type campaignCreateRequest struct {
	Name        string `json:"name" validate:"required"`
	TemplateID  string `json:"template_id" validate:"required,uuid"`
	ScheduledAt string `json:"scheduled_at" validate:"omitempty"`
}

type campaignScheduleRequest struct {
	ScheduledAt string `json:"scheduled_at" validate:"required"`
}

type campaignResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	TemplateID     string  `json:"template_id"`
	Status         string  `json:"status"`
	ScheduledAt    *string `json:"scheduled_at,omitempty"`
	SentAt         *string `json:"sent_at,omitempty"`
	RecipientCount int     `json:"recipient_count"`
	SentCount      int     `json:"sent_count"`
	FailedCount    int     `json:"failed_count"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func campaignToResponse(campaign *models.EmailCampaign) campaignResponse {
	resp := campaignResponse{
		ID:             campaign.ID.String(),
		Name:           campaign.Name,
		TemplateID:     campaign.TemplateID.String(),
		Status:         string(campaign.Status),
		RecipientCount: campaign.RecipientCount,
		SentCount:      campaign.SentCount,
		FailedCount:    campaign.FailedCount,
		CreatedAt:      campaign.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      campaign.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if campaign.ScheduledAt != nil {
		at := campaign.ScheduledAt.UTC().Format(time.RFC3339)
		resp.ScheduledAt = &at
	}
	if campaign.SentAt != nil {
		at := campaign.SentAt.UTC().Format(time.RFC3339)
		resp.SentAt = &at
	}
	return resp
}

func parseScheduleTime(raw string) (time.Time, error) {
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "scheduled_at must be RFC 3339")
	}
	return at.UTC(), nil
}

func AdminCampaignsList(svc CampaignService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaign service unavailable"))
			return
		}

		var params campaignsvc.ListParams
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseCampaignStatus(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}

		campaigns, err := svc.List(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]campaignResponse, 0, len(campaigns))
		for i := range campaigns {
			out = append(out, campaignToResponse(&campaigns[i]))
		}
		responses.WriteSuccess(w, map[string]any{"campaigns": out})
	}
}

func AdminCampaignCreate(svc CampaignService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaign service unavailable"))
			return
		}

		var payload campaignCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		templateID, err := uuid.Parse(payload.TemplateID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid template id"))
			return
		}

		params := campaignsvc.CreateParams{
			Name:       payload.Name,
			TemplateID: templateID,
		}
		if payload.ScheduledAt != "" {
			at, err := parseScheduleTime(payload.ScheduledAt)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			params.ScheduledAt = &at
		}

		campaign, err := svc.Create(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, campaignToResponse(campaign))
	}
}

func AdminCampaignGet(svc CampaignService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaign service unavailable"))
			return
		}

		id, err := parseIDParam(r, "campaignId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		campaign, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaignToResponse(campaign))
	}
}

// AdminCampaignSchedule queues a draft campaign for the dispatch sweep.
func AdminCampaignSchedule(svc CampaignService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaign service unavailable"))
			return
		}

		id, err := parseIDParam(r, "campaignId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload campaignScheduleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		at, err := parseScheduleTime(payload.ScheduledAt)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		campaign, err := svc.Schedule(ctx, id, at)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaignToResponse(campaign))
	}
}
