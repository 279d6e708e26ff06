package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/subtrackhq/subtrack-backend/pkg/enums"
)

// EmailTemplate stores a reusable message body with {{placeholder}} variables.
type EmailTemplate struct {
	ID        uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string                 `gorm:"column:name;not null;uniqueIndex"`
	Subject   string                 `gorm:"column:subject;not null"`
	Body      string                 `gorm:"column:body;type:text;not null"`
	Category  enums.TemplateCategory `gorm:"column:category;type:template_category;not null"`
	Variables pq.StringArray         `gorm:"column:variables;type:text[];default:ARRAY[]::text[]"`
	IsActive  bool                   `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
