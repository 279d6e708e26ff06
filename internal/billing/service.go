package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/pagination"
)

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Repo Repository
}

// Service orchestrates invoice and transaction operations.
type Service struct {
	repo Repository
}

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

// CreateRecords persists the invoice and its transaction inside the caller's
// transaction so they commit with the subscription.
func (s *Service) CreateRecords(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, txn *models.Transaction) error {
	repo := s.repo.WithTx(tx)
	if err := repo.CreateInvoice(ctx, invoice); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating invoice")
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating transaction")
	}
	return nil
}

// GetInvoice loads an invoice by ID.
func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindInvoiceByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading invoice")
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return invoice, nil
}

// LatestInvoiceForSubscription returns the newest invoice tied to a subscription.
func (s *Service) LatestInvoiceForSubscription(ctx context.Context, subscriptionID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindInvoiceBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading invoice")
	}
	return invoice, nil
}

// ListInvoicesParams carries invoice listing filters.
type ListInvoicesParams struct {
	UserID *uuid.UUID
	Status *enums.InvoiceStatus
	Limit  int
	Cursor string
}

// ListInvoicesResult is one page of invoices.
type ListInvoicesResult struct {
	Invoices   []models.Invoice
	NextCursor string
}

// ListInvoices returns a page of invoices ordered newest first.
func (s *Service) ListInvoices(ctx context.Context, params ListInvoicesParams) (*ListInvoicesResult, error) {
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.ListInvoices(ctx, ListInvoicesQuery{
		UserID: params.UserID,
		Status: params.Status,
		Limit:  params.Limit,
		After:  after,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing invoices")
	}

	result := &ListInvoicesResult{Invoices: rows}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// ListTransactions returns the payment attempts recorded against an invoice.
func (s *Service) ListTransactions(ctx context.Context, invoiceID uuid.UUID) ([]models.Transaction, error) {
	rows, err := s.repo.ListTransactionsByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing transactions")
	}
	return rows, nil
}

// MarkInvoicePaid settles an invoice and completes its pending transactions.
// It runs inside the caller's transaction when one is supplied.
func (s *Service) MarkInvoicePaid(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, at time.Time) (*models.Invoice, error) {
	repo := s.repo.WithTx(tx)

	invoice, err := repo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading invoice")
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	if invoice.Status == enums.InvoiceStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invoice already paid")
	}
	if invoice.Status == enums.InvoiceStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is cancelled")
	}

	paidAt := at.UTC()
	invoice.Status = enums.InvoiceStatusPaid
	invoice.PaidDate = &paidAt
	if err := repo.UpdateInvoice(ctx, invoice); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating invoice")
	}
	if err := repo.CompletePendingTransactions(ctx, invoice.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "completing transactions")
	}
	return invoice, nil
}

// SweepOverdue flips unpaid invoices past their due date to overdue and
// returns how many rows changed. Zero-amount trial invoices are skipped.
func (s *Service) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	count, err := s.repo.MarkInvoicesOverdue(ctx, now.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sweeping overdue invoices")
	}
	return count, nil
}
