package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/subtrackhq/subtrack-backend/api/middleware"
	"github.com/subtrackhq/subtrack-backend/api/responses"
	"github.com/subtrackhq/subtrack-backend/api/validators"
	subscriptionsvc "github.com/subtrackhq/subtrack-backend/internal/subscriptions"
	"github.com/subtrackhq/subtrack-backend/internal/workflow"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/logger"
	"github.com/subtrackhq/subtrack-backend/pkg/outbox"
)

// SubscriptionService describes the subscription surface used by the HTTP
// controllers.
type SubscriptionService interface {
	Create(ctx context.Context, params subscriptionsvc.CreateParams) (*subscriptionsvc.CreateResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	Events(ctx context.Context, id uuid.UUID) ([]models.SubscriptionEvent, error)
	List(ctx context.Context, params subscriptionsvc.ListParams) (*subscriptionsvc.ListResult, error)
	Transition(ctx context.Context, params subscriptionsvc.TransitionParams) (*models.Subscription, error)
}

type subscriptionCreateRequest struct {
	PlanID          string `json:"plan_id" validate:"required,uuid"`
	PaymentMethod   string `json:"payment_method" validate:"required"`
	RequiresPayment bool   `json:"requires_payment"`
	HasTrialPeriod  bool   `json:"has_trial_period"`
	TrialDays       *int   `json:"trial_days" validate:"omitempty,gte=0"`
	// UserID lets administrators create a subscription on behalf of a
	// subscriber. Subscribers always act on themselves.
	UserID string `json:"user_id" validate:"omitempty,uuid"`
}

type subscriptionResponse struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	PlanID        string  `json:"plan_id"`
	Status        string  `json:"status"`
	PaymentMethod string  `json:"payment_method"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	TrialEndDate  *string `json:"trial_end_date,omitempty"`
	AutoRenewal   bool    `json:"auto_renewal"`
	CreatedAt     string  `json:"created_at"`
}

type invoiceResponse struct {
	ID             string  `json:"id"`
	SubscriptionID string  `json:"subscription_id"`
	UserID         string  `json:"user_id"`
	Number         string  `json:"number"`
	Amount         string  `json:"amount"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
	DueDate        string  `json:"due_date"`
	PaidDate       *string `json:"paid_date,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

type transactionResponse struct {
	ID            string  `json:"id"`
	InvoiceID     string  `json:"invoice_id"`
	UserID        string  `json:"user_id"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	PaymentMethod string  `json:"payment_method"`
	Status        string  `json:"status"`
	Reference     *string `json:"reference,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

type subscriptionCreateResponse struct {
	Subscription subscriptionResponse  `json:"subscription"`
	Invoice      invoiceResponse       `json:"invoice"`
	Transaction  transactionResponse   `json:"transaction"`
	Workflow     string                `json:"workflow"`
	Confirmation workflow.Confirmation `json:"confirmation"`
}

type subscriptionListResponse struct {
	Subscriptions []subscriptionResponse `json:"subscriptions"`
	NextCursor    string                 `json:"next_cursor,omitempty"`
}

type subscriptionEventResponse struct {
	ID         string `json:"id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func subscriptionToResponse(sub *models.Subscription) subscriptionResponse {
	resp := subscriptionResponse{
		ID:            sub.ID.String(),
		UserID:        sub.UserID.String(),
		PlanID:        sub.PlanID.String(),
		Status:        string(sub.Status),
		PaymentMethod: string(sub.PaymentMethod),
		StartDate:     sub.StartDate.UTC().Format(time.RFC3339),
		EndDate:       sub.EndDate.UTC().Format(time.RFC3339),
		AutoRenewal:   sub.AutoRenewal,
		CreatedAt:     sub.CreatedAt.UTC().Format(time.RFC3339),
	}
	if sub.TrialEndDate != nil {
		formatted := sub.TrialEndDate.UTC().Format(time.RFC3339)
		resp.TrialEndDate = &formatted
	}
	return resp
}

func invoiceToResponse(invoice *models.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:             invoice.ID.String(),
		SubscriptionID: invoice.SubscriptionID.String(),
		UserID:         invoice.UserID.String(),
		Number:         invoice.Number,
		Amount:         invoice.Amount.StringFixed(2),
		Currency:       invoice.Currency,
		Status:         string(invoice.Status),
		DueDate:        invoice.DueDate.UTC().Format(time.RFC3339),
		CreatedAt:      invoice.CreatedAt.UTC().Format(time.RFC3339),
	}
	if invoice.PaidDate != nil {
		formatted := invoice.PaidDate.UTC().Format(time.RFC3339)
		resp.PaidDate = &formatted
	}
	return resp
}

func transactionToResponse(txn *models.Transaction) transactionResponse {
	return transactionResponse{
		ID:            txn.ID.String(),
		InvoiceID:     txn.InvoiceID.String(),
		UserID:        txn.UserID.String(),
		Amount:        txn.Amount.StringFixed(2),
		Currency:      txn.Currency,
		PaymentMethod: string(txn.PaymentMethod),
		Status:        string(txn.Status),
		Reference:     txn.Reference,
		CreatedAt:     txn.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// SubscriptionCreate signs the caller up for a plan. Retrying the request
// creates another subscription; clients must not resubmit blindly.
func SubscriptionCreate(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		actorID, err := actorFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload subscriptionCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		planID, err := uuid.Parse(payload.PlanID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan id"))
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		userID := actorID
		if payload.UserID != "" {
			requested, err := uuid.Parse(payload.UserID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
				return
			}
			if requested != actorID && middleware.RoleFromContext(ctx) != string(enums.UserRoleAdmin) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cannot subscribe another user"))
				return
			}
			userID = requested
		}

		result, err := svc.Create(ctx, subscriptionsvc.CreateParams{
			UserID:          userID,
			PlanID:          planID,
			PaymentMethod:   method,
			RequiresPayment: payload.RequiresPayment,
			HasTrialPeriod:  payload.HasTrialPeriod,
			TrialDays:       payload.TrialDays,
			Actor: &outbox.ActorRef{
				UserID: actorID,
				Role:   middleware.RoleFromContext(ctx),
			},
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, subscriptionCreateResponse{
			Subscription: subscriptionToResponse(result.Subscription),
			Invoice:      invoiceToResponse(result.Invoice),
			Transaction:  transactionToResponse(result.Transaction),
			Workflow:     string(result.Workflow),
			Confirmation: result.Confirmation,
		})
	}
}

// SubscriptionsListMine returns the caller's subscriptions, newest first.
func SubscriptionsListMine(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := actorFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params, err := subscriptionListParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params.UserID = &userID

		result, err := svc.List(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, subscriptionsToListResponse(result))
	}
}

func AdminSubscriptionsList(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		params, err := subscriptionListParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
				return
			}
			params.UserID = &userID
		}

		result, err := svc.List(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, subscriptionsToListResponse(result))
	}
}

func AdminSubscriptionGet(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		id, err := parseIDParam(r, "subscriptionId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, subscriptionToResponse(sub))
	}
}

// AdminSubscriptionEvents returns the audit trail for one subscription.
func AdminSubscriptionEvents(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		id, err := parseIDParam(r, "subscriptionId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		events, err := svc.Events(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]subscriptionEventResponse, 0, len(events))
		for _, event := range events {
			out = append(out, subscriptionEventResponse{
				ID:         event.ID.String(),
				FromStatus: string(event.FromStatus),
				ToStatus:   string(event.ToStatus),
				Reason:     event.Reason,
				CreatedAt:  event.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		responses.WriteSuccess(w, map[string]any{"events": out})
	}
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason"`
}

// AdminSubscriptionTransition moves a subscription through its lifecycle.
func AdminSubscriptionTransition(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		id, err := parseIDParam(r, "subscriptionId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status, err := enums.ParseSubscriptionStatus(payload.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription status"))
			return
		}

		var actorID *uuid.UUID
		if actor, err := actorFromContext(ctx); err == nil {
			actorID = &actor
		}

		sub, err := svc.Transition(ctx, subscriptionsvc.TransitionParams{
			SubscriptionID: id,
			To:             status,
			Reason:         payload.Reason,
			ActorID:        actorID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, subscriptionToResponse(sub))
	}
}

func subscriptionListParams(r *http.Request) (subscriptionsvc.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
	if err != nil {
		return subscriptionsvc.ListParams{}, err
	}
	params := subscriptionsvc.ListParams{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseSubscriptionStatus(raw)
		if err != nil {
			return subscriptionsvc.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		params.Status = &status
	}
	return params, nil
}

func subscriptionsToListResponse(result *subscriptionsvc.ListResult) subscriptionListResponse {
	resp := subscriptionListResponse{
		Subscriptions: make([]subscriptionResponse, 0, len(result.Subscriptions)),
		NextCursor:    result.NextCursor,
	}
	for i := range result.Subscriptions {
		resp.Subscriptions = append(resp.Subscriptions, subscriptionToResponse(&result.Subscriptions[i]))
	}
	return resp
}

func actorFromContext(ctx context.Context) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid credentials")
	}
	return id, nil
}
