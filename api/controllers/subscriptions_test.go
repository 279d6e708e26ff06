package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subtrackhq/subtrack-backend/api/middleware"
	subscriptionsvc "github.com/subtrackhq/subtrack-backend/internal/subscriptions"
	"github.com/subtrackhq/subtrack-backend/internal/workflow"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
)

type stubSubscriptionService struct {
	createParams     subscriptionsvc.CreateParams
	createResult     *subscriptionsvc.CreateResult
	createErr        error
	found            *models.Subscription
	events           []models.SubscriptionEvent
	listResult       *subscriptionsvc.ListResult
	listParams       subscriptionsvc.ListParams
	transitionParams subscriptionsvc.TransitionParams
	transitioned     *models.Subscription
}

func (s *stubSubscriptionService) Create(ctx context.Context, params subscriptionsvc.CreateParams) (*subscriptionsvc.CreateResult, error) {
	s.createParams = params
	return s.createResult, s.createErr
}

func (s *stubSubscriptionService) Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return s.found, nil
}

func (s *stubSubscriptionService) Events(ctx context.Context, id uuid.UUID) ([]models.SubscriptionEvent, error) {
	return s.events, nil
}

func (s *stubSubscriptionService) List(ctx context.Context, params subscriptionsvc.ListParams) (*subscriptionsvc.ListResult, error) {
	s.listParams = params
	return s.listResult, nil
}

func (s *stubSubscriptionService) Transition(ctx context.Context, params subscriptionsvc.TransitionParams) (*models.Subscription, error) {
	s.transitionParams = params
	return s.transitioned, nil
}

func authedRequest(method, target, body string, userID uuid.UUID, role enums.UserRole) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func sampleCreateResult(userID, planID uuid.UUID, now time.Time) *subscriptionsvc.CreateResult {
	subID := uuid.New()
	invoiceID := uuid.New()
	trialEnd := now.AddDate(0, 0, 14)
	return &subscriptionsvc.CreateResult{
		Subscription: &models.Subscription{
			ID:            subID,
			UserID:        userID,
			PlanID:        planID,
			Status:        enums.SubscriptionStatusTrialing,
			PaymentMethod: enums.PaymentMethodCard,
			StartDate:     now,
			EndDate:       now.AddDate(0, 1, 0),
			TrialEndDate:  &trialEnd,
			AutoRenewal:   true,
			CreatedAt:     now,
		},
		Invoice: &models.Invoice{
			ID:             invoiceID,
			SubscriptionID: subID,
			UserID:         userID,
			Number:         "INV-2026-000001",
			Amount:         decimal.Zero,
			Currency:       "USD",
			Status:         enums.InvoiceStatusUnpaid,
			DueDate:        now.AddDate(0, 0, 7),
			CreatedAt:      now,
		},
		Transaction: &models.Transaction{
			ID:            uuid.New(),
			InvoiceID:     invoiceID,
			UserID:        userID,
			Amount:        decimal.Zero,
			Currency:      "USD",
			PaymentMethod: enums.PaymentMethodCard,
			Status:        enums.TransactionStatusPending,
			CreatedAt:     now,
		},
		Workflow: workflow.TypeTrial,
		Confirmation: workflow.BuildConfirmation(
			workflow.Workflow{Type: workflow.TypeTrial, PaymentMethod: enums.PaymentMethodCard, TrialDays: 14},
			models.Plan{Name: "Pro", Price: decimal.NewFromInt(29), Currency: "USD"},
		),
	}
}

func TestSubscriptionCreateReturnsConfirmation(t *testing.T) {
	userID := uuid.New()
	planID := uuid.New()
	service := &stubSubscriptionService{
		createResult: sampleCreateResult(userID, planID, time.Now().UTC()),
	}

	body := `{"plan_id":"` + planID.String() + `","payment_method":"card","has_trial_period":true,"trial_days":14}`
	req := authedRequest(http.MethodPost, "/api/v1/subscriptions", body, userID, enums.UserRoleUser)

	resp := httptest.NewRecorder()
	SubscriptionCreate(service, nil)(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.createParams.UserID != userID {
		t.Fatalf("expected subscription for caller, got %s", service.createParams.UserID)
	}
	if service.createParams.PlanID != planID {
		t.Fatalf("expected plan %s, got %s", planID, service.createParams.PlanID)
	}
	if service.createParams.TrialDays == nil || *service.createParams.TrialDays != 14 {
		t.Fatalf("expected trial days 14, got %v", service.createParams.TrialDays)
	}
	if service.createParams.Actor == nil || service.createParams.Actor.UserID != userID {
		t.Fatalf("expected actor ref for caller, got %+v", service.createParams.Actor)
	}

	var envelope struct {
		Data subscriptionCreateResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Workflow != string(workflow.TypeTrial) {
		t.Fatalf("expected trial workflow, got %s", envelope.Data.Workflow)
	}
	if envelope.Data.Confirmation.Title != "Trial Subscription Started" {
		t.Fatalf("unexpected confirmation title %q", envelope.Data.Confirmation.Title)
	}
	if envelope.Data.Subscription.TrialEndDate == nil {
		t.Fatal("expected trial end date in response")
	}
}

func TestSubscriptionCreatePlanNotFoundPassesMessageThrough(t *testing.T) {
	service := &stubSubscriptionService{
		createErr: pkgerrors.New(pkgerrors.CodeNotFound, "Plan not found"),
	}

	body := `{"plan_id":"` + uuid.NewString() + `","payment_method":"card"}`
	req := authedRequest(http.MethodPost, "/api/v1/subscriptions", body, uuid.New(), enums.UserRoleUser)

	resp := httptest.NewRecorder()
	SubscriptionCreate(service, nil)(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Message != "Plan not found" {
		t.Fatalf("expected exact not-found message, got %q", envelope.Error.Message)
	}
}

func TestSubscriptionCreateGenericFailureMessage(t *testing.T) {
	service := &stubSubscriptionService{
		createErr: pkgerrors.New(pkgerrors.CodeInternal, "Failed to create subscription. Please try again."),
	}

	body := `{"plan_id":"` + uuid.NewString() + `","payment_method":"bank_transfer"}`
	req := authedRequest(http.MethodPost, "/api/v1/subscriptions", body, uuid.New(), enums.UserRoleUser)

	resp := httptest.NewRecorder()
	SubscriptionCreate(service, nil)(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Message != "Failed to create subscription. Please try again." {
		t.Fatalf("expected generic failure message, got %q", envelope.Error.Message)
	}
}

func TestSubscriptionCreateRequiresAuth(t *testing.T) {
	service := &stubSubscriptionService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(`{}`))

	resp := httptest.NewRecorder()
	SubscriptionCreate(service, nil)(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", resp.Code)
	}
}

func TestSubscriptionCreateRejectsUnknownPaymentMethod(t *testing.T) {
	service := &stubSubscriptionService{}
	body := `{"plan_id":"` + uuid.NewString() + `","payment_method":"crypto"}`
	req := authedRequest(http.MethodPost, "/api/v1/subscriptions", body, uuid.New(), enums.UserRoleUser)

	resp := httptest.NewRecorder()
	SubscriptionCreate(service, nil)(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown payment method, got %d", resp.Code)
	}
}

func TestSubscriptionCreateOnBehalfRequiresAdmin(t *testing.T) {
	service := &stubSubscriptionService{}
	other := uuid.New()
	body := `{"plan_id":"` + uuid.NewString() + `","payment_method":"card","user_id":"` + other.String() + `"}`
	req := authedRequest(http.MethodPost, "/api/v1/subscriptions", body, uuid.New(), enums.UserRoleUser)

	resp := httptest.NewRecorder()
	SubscriptionCreate(service, nil)(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin on-behalf create, got %d", resp.Code)
	}
}

func TestSubscriptionCreateOnBehalfAsAdmin(t *testing.T) {
	adminID := uuid.New()
	subscriberID := uuid.New()
	planID := uuid.New()
	service := &stubSubscriptionService{
		createResult: sampleCreateResult(subscriberID, planID, time.Now().UTC()),
	}

	body := `{"plan_id":"` + planID.String() + `","payment_method":"card","user_id":"` + subscriberID.String() + `"}`
	req := authedRequest(http.MethodPost, "/api/v1/subscriptions", body, adminID, enums.UserRoleAdmin)

	resp := httptest.NewRecorder()
	SubscriptionCreate(service, nil)(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.createParams.UserID != subscriberID {
		t.Fatalf("expected subscription for subscriber, got %s", service.createParams.UserID)
	}
	if service.createParams.Actor == nil || service.createParams.Actor.UserID != adminID {
		t.Fatalf("expected admin actor ref, got %+v", service.createParams.Actor)
	}
}

func TestSubscriptionsListMineScopesToCaller(t *testing.T) {
	userID := uuid.New()
	service := &stubSubscriptionService{
		listResult: &subscriptionsvc.ListResult{},
	}

	req := authedRequest(http.MethodGet, "/api/v1/subscriptions/me?status=active", "", userID, enums.UserRoleUser)

	resp := httptest.NewRecorder()
	SubscriptionsListMine(service, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.listParams.UserID == nil || *service.listParams.UserID != userID {
		t.Fatalf("expected caller-scoped list, got %v", service.listParams.UserID)
	}
	if service.listParams.Status == nil || *service.listParams.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active filter, got %v", service.listParams.Status)
	}
}

func TestAdminSubscriptionTransitionRecordsActor(t *testing.T) {
	adminID := uuid.New()
	subID := uuid.New()
	service := &stubSubscriptionService{
		transitioned: &models.Subscription{
			ID:     subID,
			UserID: uuid.New(),
			PlanID: uuid.New(),
			Status: enums.SubscriptionStatusSuspended,
		},
	}

	body := `{"status":"suspended","reason":"fraud review"}`
	req := authedRequest(http.MethodPost, "/api/admin/v1/subscriptions/"+subID.String()+"/transition", body, adminID, enums.UserRoleAdmin)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("subscriptionId", subID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	resp := httptest.NewRecorder()
	AdminSubscriptionTransition(service, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if service.transitionParams.SubscriptionID != subID {
		t.Fatalf("expected subscription %s, got %s", subID, service.transitionParams.SubscriptionID)
	}
	if service.transitionParams.To != enums.SubscriptionStatusSuspended {
		t.Fatalf("expected suspended target, got %s", service.transitionParams.To)
	}
	if service.transitionParams.Reason != "fraud review" {
		t.Fatalf("expected reason to pass through, got %q", service.transitionParams.Reason)
	}
	if service.transitionParams.ActorID == nil || *service.transitionParams.ActorID != adminID {
		t.Fatalf("expected admin actor id, got %v", service.transitionParams.ActorID)
	}
}

func TestAdminSubscriptionTransitionRejectsUnknownStatus(t *testing.T) {
	service := &stubSubscriptionService{}
	subID := uuid.New()

	body := `{"status":"paused"}`
	req := authedRequest(http.MethodPost, "/api/admin/v1/subscriptions/"+subID.String()+"/transition", body, uuid.New(), enums.UserRoleAdmin)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("subscriptionId", subID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	resp := httptest.NewRecorder()
	AdminSubscriptionTransition(service, nil)(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.Code)
	}
}

func TestSubscriptionCreateNilServiceGuard(t *testing.T) {
	req := authedRequest(http.MethodPost, "/api/v1/subscriptions", `{}`, uuid.New(), enums.UserRoleUser)
	resp := httptest.NewRecorder()
	SubscriptionCreate(nil, nil)(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 with nil service, got %d", resp.Code)
	}
}
