package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/subtrackhq/subtrack-backend/api/responses"
	"github.com/subtrackhq/subtrack-backend/api/validators"
	templatesvc "github.com/subtrackhq/subtrack-backend/internal/emailtemplates"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

// TemplateService describes the email template surface used by the HTTP
// controllers.
type TemplateService interface {
	Create(ctx context.Context, params templatesvc.UpsertParams) (*models.EmailTemplate, error)
	Update(ctx context.Context, id uuid.UUID, params templatesvc.UpsertParams) (*models.EmailTemplate, error)
	Get(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error)
	List(ctx context.Context, params templatesvc.ListParams) ([]models.EmailTemplate, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.EmailTemplate, error)
}

type templateUpsertRequest struct {
	Name     string `json:"name" validate:"required"`
	Subject  string `json:"subject" validate:"required"`
	Body     string `json:"body" validate:"required"`
	Category string `json:"category" validate:"required"`
	IsActive *bool  `json:"is_active"`
}

type templateResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Category  string   `json:"category"`
	Variables []string `json:"variables"`
	IsActive  bool     `json:"is_active"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

type templatePreviewRequest struct {
	Variables map[string]string `json:"variables"`
}

type templatePreviewResponse struct {
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Missing []string `json:"missing,omitempty"`
}

func templateToResponse(template *models.EmailTemplate) templateResponse {
	return templateResponse{
		ID:        template.ID.String(),
		Name:      template.Name,
		Subject:   template.Subject,
		Body:      template.Body,
		Category:  string(template.Category),
		Variables: template.Variables,
		IsActive:  template.IsActive,
		CreatedAt: template.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: template.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func templateParamsFromRequest(payload templateUpsertRequest) (templatesvc.UpsertParams, error) {
	category, err := enums.ParseTemplateCategory(payload.Category)
	if err != nil {
		return templatesvc.UpsertParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
	}
	return templatesvc.UpsertParams{
		Name:     payload.Name,
		Subject:  payload.Subject,
		Body:     payload.Body,
		Category: category,
		IsActive: payload.IsActive,
	}, nil
}

func AdminTemplatesList(svc TemplateService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "template service unavailable"))
			return
		}

		var params templatesvc.ListParams
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			category, err := enums.ParseTemplateCategory(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			params.Category = &category
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("active")); raw != "" {
			active, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid active flag"))
				return
			}
			params.Active = &active
		}

		templates, err := svc.List(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]templateResponse, 0, len(templates))
		for i := range templates {
			out = append(out, templateToResponse(&templates[i]))
		}
		responses.WriteSuccess(w, map[string]any{"templates": out})
	}
}

func AdminTemplateCreate(svc TemplateService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "template service unavailable"))
			return
		}

		var payload templateUpsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params, err := templateParamsFromRequest(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		template, err := svc.Create(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, templateToResponse(template))
	}
}

func AdminTemplateGet(svc TemplateService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "template service unavailable"))
			return
		}

		id, err := parseIDParam(r, "templateId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		template, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, templateToResponse(template))
	}
}

func AdminTemplateUpdate(svc TemplateService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "template service unavailable"))
			return
		}

		id, err := parseIDParam(r, "templateId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload templateUpsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params, err := templateParamsFromRequest(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		template, err := svc.Update(ctx, id, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, templateToResponse(template))
	}
}

func AdminTemplateDelete(svc TemplateService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "template service unavailable"))
			return
		}

		id, err := parseIDParam(r, "templateId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Delete(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "template deleted"})
	}
}

func AdminTemplateSetActive(svc TemplateService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "template service unavailable"))
			return
		}

		id, err := parseIDParam(r, "templateId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload setActiveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		template, err := svc.SetActive(ctx, id, *payload.IsActive)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, templateToResponse(template))
	}
}

// AdminTemplatePreview renders a template with sample variables so admins can
// check the copy before a campaign goes out.
func AdminTemplatePreview(svc TemplateService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "template service unavailable"))
			return
		}

		id, err := parseIDParam(r, "templateId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload templatePreviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		template, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rendered := templatesvc.Render(template, payload.Variables)
		responses.WriteSuccess(w, templatePreviewResponse{
			Subject: rendered.Subject,
			Body:    rendered.Body,
			Missing: rendered.Missing,
		})
	}
}
