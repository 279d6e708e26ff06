package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
)

const invoiceDueDays = 7

// Records bundles the rows produced for one signup. IDs are assigned here so
// the invoice and transaction can reference the subscription before any insert
// happens; calling Build twice always yields distinct records.
type Records struct {
	Subscription models.Subscription
	Invoice      models.Invoice
	Transaction  models.Transaction
}

// Builder turns a classified workflow into persistable records.
type Builder struct {
	now func() time.Time
}

// NewBuilder constructs a Builder. A nil clock falls back to time.Now.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

// Build materializes the subscription, invoice, and transaction for the
// workflow. The subscription period follows the plan's billing period, trials
// get a trial end date on top of it, and auto renewal is always on.
func (b *Builder) Build(user models.User, plan models.Plan, wf Workflow) Records {
	now := b.now().UTC()

	sub := models.Subscription{
		ID:            uuid.New(),
		UserID:        user.ID,
		PlanID:        plan.ID,
		Status:        wf.InitialStatus,
		PaymentMethod: wf.PaymentMethod,
		StartDate:     now,
		EndDate:       periodEnd(now, plan.BillingPeriod),
		AutoRenewal:   true,
	}
	if wf.Type == TypeTrial && wf.TrialDays > 0 {
		trialEnd := now.Add(time.Duration(wf.TrialDays) * 24 * time.Hour)
		sub.TrialEndDate = &trialEnd
	}

	amount := plan.Price
	if wf.Type == TypeTrial && !wf.RequiresPayment {
		amount = decimal.Zero
	}

	active := wf.InitialStatus == enums.SubscriptionStatusActive

	invoice := models.Invoice{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		UserID:         user.ID,
		Number:         invoiceNumber(now),
		Amount:         amount,
		Currency:       plan.Currency,
		Status:         enums.InvoiceStatusUnpaid,
		DueDate:        now.Add(invoiceDueDays * 24 * time.Hour),
	}
	if active {
		invoice.Status = enums.InvoiceStatusPaid
		paid := now
		invoice.PaidDate = &paid
	}

	txn := models.Transaction{
		ID:            uuid.New(),
		InvoiceID:     invoice.ID,
		UserID:        user.ID,
		Amount:        amount,
		Currency:      plan.Currency,
		PaymentMethod: wf.PaymentMethod,
		Status:        enums.TransactionStatusPending,
	}
	if active {
		txn.Status = enums.TransactionStatusCompleted
	}

	return Records{
		Subscription: sub,
		Invoice:      invoice,
		Transaction:  txn,
	}
}

func periodEnd(start time.Time, period enums.BillingPeriod) time.Time {
	if period == enums.BillingPeriodYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

func invoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%d-%s", now.Year(), suffix)
}
