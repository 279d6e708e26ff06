package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	"github.com/subtrackhq/subtrack-backend/pkg/pagination"
)

// Repository handles invoice and transaction persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindInvoiceBySubscription(ctx context.Context, subscriptionID uuid.UUID) (*models.Invoice, error)
	ListInvoices(ctx context.Context, query ListInvoicesQuery) ([]models.Invoice, *pagination.Cursor, error)
	ListTransactionsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Transaction, error)
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) error
	CompletePendingTransactions(ctx context.Context, invoiceID uuid.UUID) error
	MarkInvoicesOverdue(ctx context.Context, before time.Time) (int64, error)
}

// ListInvoicesQuery configures invoice list queries.
type ListInvoicesQuery struct {
	UserID *uuid.UUID
	Status *enums.InvoiceStatus
	Limit  int
	After  *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindInvoiceBySubscription(ctx context.Context, subscriptionID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		First(&invoice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListInvoices(ctx context.Context, query ListInvoicesQuery) ([]models.Invoice, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(query.Limit)

	q := r.db.WithContext(ctx).Model(&models.Invoice{})
	if query.UserID != nil {
		q = q.Where("user_id = ?", *query.UserID)
	}
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}
	if query.After != nil {
		q = q.Where("(created_at, id) < (?, ?)", query.After.CreatedAt, query.After.ID)
	}

	var rows []models.Invoice
	if err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return rows, next, nil
}

func (r *repository) ListTransactionsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

func (r *repository) CompletePendingTransactions(ctx context.Context, invoiceID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("invoice_id = ?", invoiceID).
		Where("status = ?", enums.TransactionStatusPending).
		Update("status", enums.TransactionStatusCompleted).Error
}

func (r *repository) MarkInvoicesOverdue(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("status = ?", enums.InvoiceStatusUnpaid).
		Where("due_date < ?", before).
		Where("amount > 0").
		Update("status", enums.InvoiceStatusOverdue)
	return result.RowsAffected, result.Error
}
