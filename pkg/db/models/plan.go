package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subtrackhq/subtrack-backend/pkg/enums"
)

// Plan captures a purchasable subscription plan.
type Plan struct {
	ID            uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string              `gorm:"column:name;not null;uniqueIndex"`
	Description   string              `gorm:"column:description;not null;default:''"`
	Price         decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	Currency      string              `gorm:"column:currency;not null;default:'USD'"`
	BillingPeriod enums.BillingPeriod `gorm:"column:billing_period;type:billing_period;not null"`
	Features      json.RawMessage     `gorm:"column:features;type:jsonb"`
	TrialDays     int                 `gorm:"column:trial_days;not null;default:0"`
	IsActive      bool                `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
