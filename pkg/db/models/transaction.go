package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subtrackhq/subtrack-backend/pkg/enums"
)

// Transaction records a payment attempt against an invoice.
type Transaction struct {
	ID            uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID     uuid.UUID               `gorm:"column:invoice_id;type:uuid;not null;index"`
	UserID        uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	Amount        decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      string                  `gorm:"column:currency;not null;default:'USD'"`
	PaymentMethod enums.PaymentMethod     `gorm:"column:payment_method;type:payment_method;not null"`
	Status        enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending'"`
	Reference     *string                 `gorm:"column:reference"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
