package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/subtrackhq/subtrack-backend/internal/workflow"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/outbox"
	"github.com/subtrackhq/subtrack-backend/pkg/pagination"
)

// PlanCatalog resolves plans for signup.
type PlanCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

// UserDirectory resolves subscribers for signup.
type UserDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// BillingRecorder creates and settles the billing rows tied to a subscription.
type BillingRecorder interface {
	CreateRecords(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, txn *models.Transaction) error
	LatestInvoiceForSubscription(ctx context.Context, subscriptionID uuid.UUID) (*models.Invoice, error)
	MarkInvoicePaid(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, at time.Time) (*models.Invoice, error)
}

// EmailEmitter queues email events transactionally with domain writes.
type EmailEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.EmailEvent) error
}

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo    Repository
	Plans   PlanCatalog
	Users   UserDirectory
	Billing BillingRecorder
	Outbox  EmailEmitter
	DB      TxRunner
	Builder *workflow.Builder
	Now     func() time.Time
}

// Service orchestrates the subscription lifecycle: signup, status transitions,
// and the trial expiry sweep.
type Service struct {
	repo    Repository
	plans   PlanCatalog
	users   UserDirectory
	billing BillingRecorder
	outbox  EmailEmitter
	db      TxRunner
	builder *workflow.Builder
	now     func() time.Time
}

// NewService builds a subscription service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Plans == nil {
		return nil, errors.New("plan catalog is required")
	}
	if params.Users == nil {
		return nil, errors.New("user directory is required")
	}
	if params.Billing == nil {
		return nil, errors.New("billing recorder is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("email emitter is required")
	}
	if params.DB == nil {
		return nil, errors.New("tx runner is required")
	}
	builder := params.Builder
	if builder == nil {
		builder = workflow.NewBuilder(params.Now)
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:    params.Repo,
		plans:   params.Plans,
		users:   params.Users,
		billing: params.Billing,
		outbox:  params.Outbox,
		db:      params.DB,
		builder: builder,
		now:     now,
	}, nil
}

// CreateParams carries a signup request.
type CreateParams struct {
	UserID          uuid.UUID
	PlanID          uuid.UUID
	PaymentMethod   enums.PaymentMethod
	RequiresPayment bool
	HasTrialPeriod  bool
	// TrialDays overrides the plan's default trial length when set.
	TrialDays *int
	Actor     *outbox.ActorRef
}

// CreateResult bundles everything produced by a signup.
type CreateResult struct {
	Subscription *models.Subscription
	Invoice      *models.Invoice
	Transaction  *models.Transaction
	Workflow     workflow.Type
	Confirmation workflow.Confirmation
}

type subscriptionCreatedPayload struct {
	SubscriptionID string                `json:"subscriptionId"`
	UserID         string                `json:"userId"`
	Email          string                `json:"email"`
	Name           string                `json:"name"`
	PlanName       string                `json:"planName"`
	Workflow       string                `json:"workflow"`
	Status         string                `json:"status"`
	InvoiceNumber  string                `json:"invoiceNumber"`
	Amount         string                `json:"amount"`
	Currency       string                `json:"currency"`
	Confirmation   workflow.Confirmation `json:"confirmation"`
}

type paymentInstructionsPayload struct {
	SubscriptionID string    `json:"subscriptionId"`
	InvoiceNumber  string    `json:"invoiceNumber"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	DueDate        time.Time `json:"dueDate"`
}

// Create runs the full signup workflow: it classifies the request, builds the
// subscription with its invoice and opening transaction, persists all three in
// one transaction, and queues the confirmation email. Calling it twice creates
// two subscriptions.
func (s *Service) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	if !params.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if params.TrialDays != nil && *params.TrialDays < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "trial days cannot be negative")
	}

	plan, err := s.plans.Get(ctx, params.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "plan is not available")
	}

	user, err := s.users.Get(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	trialDays := plan.TrialDays
	if params.TrialDays != nil {
		trialDays = *params.TrialDays
	}

	wf := workflow.Classify(workflow.Input{
		HasTrialPeriod:  params.HasTrialPeriod,
		RequiresPayment: params.RequiresPayment,
		PaymentMethod:   params.PaymentMethod,
		TrialDays:       trialDays,
	})
	recs := s.builder.Build(*user, *plan, wf)
	confirmation := workflow.BuildConfirmation(wf, *plan)

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, &recs.Subscription); err != nil {
			return err
		}
		if err := s.billing.CreateRecords(ctx, tx, &recs.Invoice, &recs.Transaction); err != nil {
			return err
		}
		if wf.Type == workflow.TypeManualPayment {
			if err := s.outbox.Emit(ctx, tx, outbox.EmailEvent{
				EventType:   enums.EmailEventPaymentInstructions,
				AggregateID: recs.Invoice.ID,
				Actor:       params.Actor,
				Data: paymentInstructionsPayload{
					SubscriptionID: recs.Subscription.ID.String(),
					InvoiceNumber:  recs.Invoice.Number,
					Email:          user.Email,
					Name:           user.Name,
					Amount:         recs.Invoice.Amount.StringFixed(2),
					Currency:       recs.Invoice.Currency,
					DueDate:        recs.Invoice.DueDate,
				},
			}); err != nil {
				return err
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.EmailEvent{
			EventType:   enums.EmailEventSubscriptionCreated,
			AggregateID: recs.Subscription.ID,
			Actor:       params.Actor,
			Data: subscriptionCreatedPayload{
				SubscriptionID: recs.Subscription.ID.String(),
				UserID:         user.ID.String(),
				Email:          user.Email,
				Name:           user.Name,
				PlanName:       plan.Name,
				Workflow:       string(wf.Type),
				Status:         string(recs.Subscription.Status),
				InvoiceNumber:  recs.Invoice.Number,
				Amount:         recs.Invoice.Amount.StringFixed(2),
				Currency:       recs.Invoice.Currency,
				Confirmation:   confirmation,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "Failed to create subscription. Please try again.")
	}

	return &CreateResult{
		Subscription: &recs.Subscription,
		Invoice:      &recs.Invoice,
		Transaction:  &recs.Transaction,
		Workflow:     wf.Type,
		Confirmation: confirmation,
	}, nil
}

// Get loads a subscription by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Subscription not found")
	}
	return sub, nil
}

// Events returns the audit trail for a subscription, oldest first.
func (s *Service) Events(ctx context.Context, id uuid.UUID) ([]models.SubscriptionEvent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing subscription events")
	}
	return rows, nil
}

// ListParams carries subscription listing filters.
type ListParams struct {
	UserID *uuid.UUID
	Status *enums.SubscriptionStatus
	Limit  int
	Cursor string
}

// ListResult is one page of subscriptions.
type ListResult struct {
	Subscriptions []models.Subscription
	NextCursor    string
}

// List returns a page of subscriptions ordered newest first.
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid subscription status")
	}

	rows, next, err := s.repo.List(ctx, ListQuery{
		UserID: params.UserID,
		Status: params.Status,
		Limit:  params.Limit,
		After:  after,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing subscriptions")
	}

	result := &ListResult{Subscriptions: rows}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// allowedTransitions gates every status change. Terminal states (expired,
// inactive) have no exits.
var allowedTransitions = map[enums.SubscriptionStatus][]enums.SubscriptionStatus{
	enums.SubscriptionStatusTrialing: {
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusPendingPayment,
		enums.SubscriptionStatusExpired,
		enums.SubscriptionStatusInactive,
	},
	enums.SubscriptionStatusPendingApproval: {
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusInactive,
	},
	enums.SubscriptionStatusPendingPayment: {
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusInactive,
	},
	enums.SubscriptionStatusActive: {
		enums.SubscriptionStatusSuspended,
		enums.SubscriptionStatusPastDue,
		enums.SubscriptionStatusExpired,
		enums.SubscriptionStatusInactive,
	},
	enums.SubscriptionStatusSuspended: {
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusInactive,
	},
	enums.SubscriptionStatusPastDue: {
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusSuspended,
		enums.SubscriptionStatusExpired,
		enums.SubscriptionStatusInactive,
	},
}

func transitionAllowed(from, to enums.SubscriptionStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// TransitionParams carries a status change request.
type TransitionParams struct {
	SubscriptionID uuid.UUID
	To             enums.SubscriptionStatus
	Reason         string
	ActorID        *uuid.UUID
}

// Transition moves a subscription to a new status and records the change in
// the audit trail. Activating a subscription that was waiting on payment also
// settles its open invoice.
func (s *Service) Transition(ctx context.Context, params TransitionParams) (*models.Subscription, error) {
	if !params.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid subscription status")
	}

	sub, err := s.Get(ctx, params.SubscriptionID)
	if err != nil {
		return nil, err
	}
	from := sub.Status
	if from == params.To {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is already "+string(params.To))
	}
	if !transitionAllowed(from, params.To) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			"cannot transition subscription from "+string(from)+" to "+string(params.To))
	}

	settleInvoice := params.To == enums.SubscriptionStatusActive &&
		(from == enums.SubscriptionStatusPendingApproval || from == enums.SubscriptionStatusPendingPayment)

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sub.Status = params.To
		if err := repo.Update(ctx, sub); err != nil {
			return err
		}
		if err := repo.InsertEvent(ctx, &models.SubscriptionEvent{
			SubscriptionID: sub.ID,
			FromStatus:     from,
			ToStatus:       params.To,
			Reason:         params.Reason,
			ActorID:        params.ActorID,
		}); err != nil {
			return err
		}
		if settleInvoice {
			return s.settleOpenInvoice(ctx, tx, sub.ID)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "transitioning subscription")
	}
	return sub, nil
}

func (s *Service) settleOpenInvoice(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID) error {
	invoice, err := s.billing.LatestInvoiceForSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return nil
	}
	if invoice.Status != enums.InvoiceStatusUnpaid && invoice.Status != enums.InvoiceStatusOverdue {
		return nil
	}
	_, err = s.billing.MarkInvoicePaid(ctx, tx, invoice.ID, s.now())
	return err
}

// ExpireTrials moves trials past their end date onward: to active when the
// opening invoice was already settled, otherwise to pending payment. It
// returns how many subscriptions changed and keeps going after per-row
// failures.
func (s *Service) ExpireTrials(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.repo.ListTrialsEndedBefore(ctx, now.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing ended trials")
	}

	var moved int
	var errs error
	for i := range rows {
		sub := rows[i]

		target := enums.SubscriptionStatusPendingPayment
		invoice, err := s.billing.LatestInvoiceForSubscription(ctx, sub.ID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if invoice != nil && invoice.Status == enums.InvoiceStatusPaid {
			target = enums.SubscriptionStatusActive
		}

		if _, err := s.Transition(ctx, TransitionParams{
			SubscriptionID: sub.ID,
			To:             target,
			Reason:         "trial period ended",
		}); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		moved++
	}
	return moved, errs
}
