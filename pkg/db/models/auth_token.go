package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/subtrackhq/subtrack-backend/pkg/enums"
)

// AuthToken is a single-use login or verification token. Only the Argon2id
// digest of the secret half is stored.
type AuthToken struct {
	ID        uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	Purpose   enums.TokenPurpose `gorm:"column:purpose;type:token_purpose;not null"`
	Digest    string             `gorm:"column:digest;not null"`
	ExpiresAt time.Time          `gorm:"column:expires_at;not null"`
	UsedAt    *time.Time         `gorm:"column:used_at"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
}
