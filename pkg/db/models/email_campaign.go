package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/subtrackhq/subtrack-backend/pkg/enums"
)

// EmailCampaign fans an EmailTemplate out to a recipient segment.
type EmailCampaign struct {
	ID             uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string               `gorm:"column:name;not null"`
	TemplateID     uuid.UUID            `gorm:"column:template_id;type:uuid;not null;index"`
	Status         enums.CampaignStatus `gorm:"column:status;type:campaign_status;not null;default:'draft'"`
	ScheduledAt    *time.Time           `gorm:"column:scheduled_at"`
	SentAt         *time.Time           `gorm:"column:sent_at"`
	RecipientCount int                  `gorm:"column:recipient_count;not null;default:0"`
	SentCount      int                  `gorm:"column:sent_count;not null;default:0"`
	FailedCount    int                  `gorm:"column:failed_count;not null;default:0"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
