package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/subtrackhq/subtrack-backend/internal/workflow"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/outbox"
	"github.com/subtrackhq/subtrack-backend/pkg/pagination"
)

type stubRepo struct {
	findFn   func(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	trialsFn func(ctx context.Context, cutoff time.Time) ([]models.Subscription, error)
	created  *models.Subscription
	updated  []*models.Subscription
	events   []*models.SubscriptionEvent
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }
func (s *stubRepo) Create(ctx context.Context, sub *models.Subscription) error {
	s.created = sub
	return nil
}
func (s *stubRepo) Update(ctx context.Context, sub *models.Subscription) error {
	s.updated = append(s.updated, sub)
	return nil
}
func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return nil, nil
}
func (s *stubRepo) List(ctx context.Context, query ListQuery) ([]models.Subscription, *pagination.Cursor, error) {
	return nil, nil, nil
}
func (s *stubRepo) InsertEvent(ctx context.Context, event *models.SubscriptionEvent) error {
	s.events = append(s.events, event)
	return nil
}
func (s *stubRepo) ListEvents(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionEvent, error) {
	return nil, nil
}
func (s *stubRepo) ListTrialsEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Subscription, error) {
	if s.trialsFn != nil {
		return s.trialsFn(ctx, cutoff)
	}
	return nil, nil
}

type stubPlans struct {
	plan *models.Plan
	err  error
}

func (s *stubPlans) Get(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	return s.plan, s.err
}

type stubUsers struct {
	user *models.User
	err  error
}

func (s *stubUsers) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.user, s.err
}

type stubBilling struct {
	createErr error
	latestFn  func(ctx context.Context, subscriptionID uuid.UUID) (*models.Invoice, error)
	invoice   *models.Invoice
	txn       *models.Transaction
	paid      []uuid.UUID
}

func (s *stubBilling) CreateRecords(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, txn *models.Transaction) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.invoice = invoice
	s.txn = txn
	return nil
}
func (s *stubBilling) LatestInvoiceForSubscription(ctx context.Context, subscriptionID uuid.UUID) (*models.Invoice, error) {
	if s.latestFn != nil {
		return s.latestFn(ctx, subscriptionID)
	}
	return nil, nil
}
func (s *stubBilling) MarkInvoicePaid(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, at time.Time) (*models.Invoice, error) {
	s.paid = append(s.paid, invoiceID)
	return nil, nil
}

type stubOutbox struct {
	events []outbox.EmailEvent
	err    error
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.EmailEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

var testClock = time.Date(2026, 4, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	repo    *stubRepo
	billing *stubBilling
	outbox  *stubOutbox
	plan    *models.Plan
	user    *models.User
}

func newFixture(t *testing.T, mutate func(f *fixture)) *fixture {
	t.Helper()

	f := &fixture{
		repo:    &stubRepo{},
		billing: &stubBilling{},
		outbox:  &stubOutbox{},
		plan: &models.Plan{
			ID:            uuid.New(),
			Name:          "Pro",
			Price:         decimal.RequireFromString("29.99"),
			Currency:      "USD",
			BillingPeriod: enums.BillingPeriodMonthly,
			TrialDays:     14,
			IsActive:      true,
		},
		user: &models.User{
			ID:    uuid.New(),
			Email: "jane@example.com",
			Name:  "Jane Doe",
			Role:  enums.UserRoleUser,
		},
	}
	if mutate != nil {
		mutate(f)
	}

	svc, err := NewService(ServiceParams{
		Repo:    f.repo,
		Plans:   &stubPlans{plan: f.plan},
		Users:   &stubUsers{user: f.user},
		Billing: f.billing,
		Outbox:  f.outbox,
		DB:      stubTx{},
		Now:     func() time.Time { return testClock },
	})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	f.svc = svc
	return f
}

func TestCreateTrialSubscription(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.svc.Create(context.Background(), CreateParams{
		UserID:          f.user.ID,
		PlanID:          f.plan.ID,
		PaymentMethod:   enums.PaymentMethodCard,
		RequiresPayment: true,
		HasTrialPeriod:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Subscription.Status != enums.SubscriptionStatusTrialing {
		t.Fatalf("expected trialing, got %s", result.Subscription.Status)
	}
	if result.Subscription.TrialEndDate == nil {
		t.Fatal("trial end date missing")
	}
	wantTrialEnd := testClock.Add(14 * 24 * time.Hour)
	if !result.Subscription.TrialEndDate.Equal(wantTrialEnd) {
		t.Fatalf("trial end %s, want %s", result.Subscription.TrialEndDate, wantTrialEnd)
	}
	// Trials that still require payment keep the plan price on the invoice.
	if !result.Invoice.Amount.Equal(f.plan.Price) {
		t.Fatalf("invoice amount %s, want %s", result.Invoice.Amount, f.plan.Price)
	}
	if result.Invoice.Status != enums.InvoiceStatusUnpaid {
		t.Fatalf("expected unpaid invoice, got %s", result.Invoice.Status)
	}
	if result.Confirmation.Title != "Trial Subscription Started" {
		t.Fatalf("unexpected title %q", result.Confirmation.Title)
	}

	if f.repo.created == nil {
		t.Fatal("subscription not persisted")
	}
	if f.billing.invoice == nil || f.billing.txn == nil {
		t.Fatal("billing records not persisted")
	}
	if len(f.outbox.events) != 1 {
		t.Fatalf("expected one email event, got %d", len(f.outbox.events))
	}
	event := f.outbox.events[0]
	if event.EventType != enums.EmailEventSubscriptionCreated {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	if event.AggregateID != result.Subscription.ID {
		t.Fatal("event aggregate should be the subscription")
	}
}

func TestCreateFreeTrialZeroesInvoice(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.svc.Create(context.Background(), CreateParams{
		UserID:         f.user.ID,
		PlanID:         f.plan.ID,
		PaymentMethod:  enums.PaymentMethodCard,
		HasTrialPeriod: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Invoice.Amount.IsZero() {
		t.Fatalf("free trial invoice should be zero, got %s", result.Invoice.Amount)
	}
	if !result.Transaction.Amount.IsZero() {
		t.Fatalf("free trial transaction should be zero, got %s", result.Transaction.Amount)
	}
}

func TestCreateImmediateCardActivates(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.svc.Create(context.Background(), CreateParams{
		UserID:          f.user.ID,
		PlanID:          f.plan.ID,
		PaymentMethod:   enums.PaymentMethodCard,
		RequiresPayment: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Subscription.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active, got %s", result.Subscription.Status)
	}
	if result.Invoice.Status != enums.InvoiceStatusPaid || result.Invoice.PaidDate == nil {
		t.Fatal("card payment should settle the invoice immediately")
	}
	if result.Transaction.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected completed transaction, got %s", result.Transaction.Status)
	}
	if result.Confirmation.Title != "Subscription Confirmed" {
		t.Fatalf("unexpected title %q", result.Confirmation.Title)
	}
	if !result.Subscription.EndDate.Equal(testClock.AddDate(0, 1, 0)) {
		t.Fatalf("monthly period end %s", result.Subscription.EndDate)
	}
}

func TestCreateBankTransferAwaitsApproval(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.svc.Create(context.Background(), CreateParams{
		UserID:        f.user.ID,
		PlanID:        f.plan.ID,
		PaymentMethod: enums.PaymentMethodBankTransfer,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Subscription.Status != enums.SubscriptionStatusPendingApproval {
		t.Fatalf("expected pending approval, got %s", result.Subscription.Status)
	}
	if result.Invoice.Status != enums.InvoiceStatusUnpaid {
		t.Fatalf("expected unpaid invoice, got %s", result.Invoice.Status)
	}
	if result.Transaction.Status != enums.TransactionStatusPending {
		t.Fatalf("expected pending transaction, got %s", result.Transaction.Status)
	}
	if result.Confirmation.Title != "Subscription Pending Payment" {
		t.Fatalf("unexpected title %q", result.Confirmation.Title)
	}

	// Manual payment also queues transfer instructions ahead of the
	// confirmation email.
	if len(f.outbox.events) != 2 {
		t.Fatalf("expected 2 email events, got %d", len(f.outbox.events))
	}
	if f.outbox.events[0].EventType != enums.EmailEventPaymentInstructions {
		t.Fatalf("unexpected first event %s", f.outbox.events[0].EventType)
	}
	if f.outbox.events[1].EventType != enums.EmailEventSubscriptionCreated {
		t.Fatalf("unexpected second event %s", f.outbox.events[1].EventType)
	}
}

func TestCreateCashFallsBackToPending(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.svc.Create(context.Background(), CreateParams{
		UserID:        f.user.ID,
		PlanID:        f.plan.ID,
		PaymentMethod: enums.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Subscription.Status != enums.SubscriptionStatusPendingPayment {
		t.Fatalf("expected pending payment, got %s", result.Subscription.Status)
	}
	if result.Confirmation.Title != "Subscription Created" {
		t.Fatalf("unexpected title %q", result.Confirmation.Title)
	}
}

func TestCreateTrialDaysOverride(t *testing.T) {
	f := newFixture(t, nil)
	override := 7

	result, err := f.svc.Create(context.Background(), CreateParams{
		UserID:         f.user.ID,
		PlanID:         f.plan.ID,
		PaymentMethod:  enums.PaymentMethodCard,
		HasTrialPeriod: true,
		TrialDays:      &override,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantTrialEnd := testClock.Add(7 * 24 * time.Hour)
	if result.Subscription.TrialEndDate == nil || !result.Subscription.TrialEndDate.Equal(wantTrialEnd) {
		t.Fatalf("trial end %v, want %s", result.Subscription.TrialEndDate, wantTrialEnd)
	}
}

func TestCreatePlanNotFound(t *testing.T) {
	repo := &stubRepo{}
	svc, _ := NewService(ServiceParams{
		Repo:    repo,
		Plans:   &stubPlans{err: pkgerrors.New(pkgerrors.CodeNotFound, "Plan not found")},
		Users:   &stubUsers{},
		Billing: &stubBilling{},
		Outbox:  &stubOutbox{},
		DB:      stubTx{},
	})

	_, err := svc.Create(context.Background(), CreateParams{
		PaymentMethod: enums.PaymentMethodCard,
	})
	if err == nil {
		t.Fatal("expected not found")
	}
	e := pkgerrors.As(err)
	if e.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if e.Message() != "Plan not found" {
		t.Fatalf("unexpected message %q", e.Message())
	}
	if repo.created != nil {
		t.Fatal("nothing should be persisted")
	}
}

func TestCreateUserNotFound(t *testing.T) {
	plan := &models.Plan{
		ID:            uuid.New(),
		Name:          "Pro",
		Price:         decimal.RequireFromString("29.99"),
		BillingPeriod: enums.BillingPeriodMonthly,
		IsActive:      true,
	}
	svc, _ := NewService(ServiceParams{
		Repo:    &stubRepo{},
		Plans:   &stubPlans{plan: plan},
		Users:   &stubUsers{err: pkgerrors.New(pkgerrors.CodeNotFound, "User not found")},
		Billing: &stubBilling{},
		Outbox:  &stubOutbox{},
		DB:      stubTx{},
	})

	_, err := svc.Create(context.Background(), CreateParams{
		PaymentMethod: enums.PaymentMethodCard,
	})
	if err == nil {
		t.Fatal("expected not found")
	}
	if pkgerrors.As(err).Message() != "User not found" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCreateRejectsInactivePlan(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.plan.IsActive = false
	})

	_, err := f.svc.Create(context.Background(), CreateParams{
		UserID:        f.user.ID,
		PlanID:        f.plan.ID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	if err == nil {
		t.Fatal("expected state conflict")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCreateSurfacesGenericFailure(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.billing.createErr = errors.New("connection reset")
	})

	_, err := f.svc.Create(context.Background(), CreateParams{
		UserID:        f.user.ID,
		PlanID:        f.plan.ID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	e := pkgerrors.As(err)
	if e.Code() != pkgerrors.CodeInternal {
		t.Fatalf("expected internal code, got %s", e.Code())
	}
	if e.Message() != "Failed to create subscription. Please try again." {
		t.Fatalf("unexpected message %q", e.Message())
	}
	if len(f.outbox.events) != 0 {
		t.Fatal("no email event should survive a failed signup")
	}
}

func TestCreateIsNotIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	params := CreateParams{
		UserID:        f.user.ID,
		PlanID:        f.plan.ID,
		PaymentMethod: enums.PaymentMethodCash,
	}

	first, err := f.svc.Create(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.Create(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Subscription.ID == second.Subscription.ID {
		t.Fatal("repeated signups must create distinct subscriptions")
	}
}

func TestTransitionApprovalSettlesInvoice(t *testing.T) {
	sub := &models.Subscription{
		ID:     uuid.New(),
		Status: enums.SubscriptionStatusPendingApproval,
	}
	invoice := &models.Invoice{
		ID:     uuid.New(),
		Status: enums.InvoiceStatusUnpaid,
	}
	actor := uuid.New()

	f := newFixture(t, func(f *fixture) {
		f.repo.findFn = func(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
			return sub, nil
		}
		f.billing.latestFn = func(ctx context.Context, subscriptionID uuid.UUID) (*models.Invoice, error) {
			return invoice, nil
		}
	})

	updated, err := f.svc.Transition(context.Background(), TransitionParams{
		SubscriptionID: sub.ID,
		To:             enums.SubscriptionStatusActive,
		Reason:         "bank transfer received",
		ActorID:        &actor,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active, got %s", updated.Status)
	}
	if len(f.repo.events) != 1 {
		t.Fatalf("expected one audit event, got %d", len(f.repo.events))
	}
	event := f.repo.events[0]
	if event.FromStatus != enums.SubscriptionStatusPendingApproval || event.ToStatus != enums.SubscriptionStatusActive {
		t.Fatalf("unexpected audit transition %s -> %s", event.FromStatus, event.ToStatus)
	}
	if event.Reason != "bank transfer received" {
		t.Fatalf("unexpected reason %q", event.Reason)
	}
	if event.ActorID == nil || *event.ActorID != actor {
		t.Fatal("actor not recorded")
	}
	if len(f.billing.paid) != 1 || f.billing.paid[0] != invoice.ID {
		t.Fatal("open invoice not settled")
	}
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	sub := &models.Subscription{
		ID:     uuid.New(),
		Status: enums.SubscriptionStatusActive,
	}
	f := newFixture(t, func(f *fixture) {
		f.repo.findFn = func(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
			return sub, nil
		}
	})

	for _, to := range []enums.SubscriptionStatus{
		enums.SubscriptionStatusTrialing,
		enums.SubscriptionStatusActive, // no-op transition
	} {
		_, err := f.svc.Transition(context.Background(), TransitionParams{
			SubscriptionID: sub.ID,
			To:             to,
		})
		if err == nil {
			t.Fatalf("transition to %s should fail", to)
		}
		if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
			t.Fatalf("expected state conflict, got %v", err)
		}
	}
}

func TestTransitionMissingSubscription(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Transition(context.Background(), TransitionParams{
		SubscriptionID: uuid.New(),
		To:             enums.SubscriptionStatusActive,
	})
	if err == nil {
		t.Fatal("expected not found")
	}
	e := pkgerrors.As(err)
	if e.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if e.Message() != "Subscription not found" {
		t.Fatalf("unexpected message %q", e.Message())
	}
}

func TestExpireTrialsRoutesByInvoiceState(t *testing.T) {
	paidSub := models.Subscription{ID: uuid.New(), Status: enums.SubscriptionStatusTrialing}
	unpaidSub := models.Subscription{ID: uuid.New(), Status: enums.SubscriptionStatusTrialing}
	subs := map[uuid.UUID]*models.Subscription{
		paidSub.ID:   &paidSub,
		unpaidSub.ID: &unpaidSub,
	}

	f := newFixture(t, func(f *fixture) {
		f.repo.trialsFn = func(ctx context.Context, cutoff time.Time) ([]models.Subscription, error) {
			return []models.Subscription{paidSub, unpaidSub}, nil
		}
		f.repo.findFn = func(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
			return subs[id], nil
		}
		f.billing.latestFn = func(ctx context.Context, subscriptionID uuid.UUID) (*models.Invoice, error) {
			if subscriptionID == paidSub.ID {
				return &models.Invoice{ID: uuid.New(), Status: enums.InvoiceStatusPaid}, nil
			}
			return &models.Invoice{ID: uuid.New(), Status: enums.InvoiceStatusUnpaid}, nil
		}
	})

	moved, err := f.svc.ExpireTrials(context.Background(), testClock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved != 2 {
		t.Fatalf("expected 2 moved, got %d", moved)
	}
	if paidSub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("paid trial should activate, got %s", paidSub.Status)
	}
	if unpaidSub.Status != enums.SubscriptionStatusPendingPayment {
		t.Fatalf("unpaid trial should wait for payment, got %s", unpaidSub.Status)
	}
}

func TestListInvalidCursor(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.List(context.Background(), ListParams{Cursor: "garbage!"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateInvalidPaymentMethod(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Create(context.Background(), CreateParams{
		UserID:        f.user.ID,
		PlanID:        f.plan.ID,
		PaymentMethod: "crypto",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWorkflowIsLogged(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.svc.Create(context.Background(), CreateParams{
		UserID:          f.user.ID,
		PlanID:          f.plan.ID,
		PaymentMethod:   enums.PaymentMethodCard,
		RequiresPayment: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Workflow != workflow.TypeImmediateCard {
		t.Fatalf("unexpected workflow %s", result.Workflow)
	}
}
