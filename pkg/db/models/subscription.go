package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/subtrackhq/subtrack-backend/pkg/enums"
)

// Subscription binds a user to a plan for one billing period.
type Subscription struct {
	ID            uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	PlanID        uuid.UUID                `gorm:"column:plan_id;type:uuid;not null;index"`
	Status        enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null"`
	PaymentMethod enums.PaymentMethod      `gorm:"column:payment_method;type:payment_method;not null"`
	StartDate     time.Time                `gorm:"column:start_date;not null"`
	EndDate       time.Time                `gorm:"column:end_date;not null"`
	TrialEndDate  *time.Time               `gorm:"column:trial_end_date"`
	AutoRenewal   bool                     `gorm:"column:auto_renewal;not null;default:true"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
