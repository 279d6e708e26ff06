package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/subtrackhq/subtrack-backend/pkg/enums"
)

// SubscriptionEvent is an append-only audit row for a status transition.
type SubscriptionEvent struct {
	ID             uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID uuid.UUID                `gorm:"column:subscription_id;type:uuid;not null;index"`
	FromStatus     enums.SubscriptionStatus `gorm:"column:from_status;type:subscription_status;not null"`
	ToStatus       enums.SubscriptionStatus `gorm:"column:to_status;type:subscription_status;not null"`
	Reason         string                   `gorm:"column:reason;not null;default:''"`
	ActorID        *uuid.UUID               `gorm:"column:actor_id;type:uuid"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
}
