package mailer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	"github.com/subtrackhq/subtrack-backend/pkg/outbox"
)

// EmailEmitter queues email events transactionally with domain writes.
type EmailEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.EmailEvent) error
}

// Enqueuer writes typed email requests to the outbox.
type Enqueuer struct {
	outbox EmailEmitter
}

// NewEnqueuer builds an outbox-backed enqueuer.
func NewEnqueuer(emitter EmailEmitter) (*Enqueuer, error) {
	if emitter == nil {
		return nil, errors.New("email emitter is required")
	}
	return &Enqueuer{outbox: emitter}, nil
}

// MagicLinkEmail carries everything needed to mail a login or verification link.
type MagicLinkEmail struct {
	UserID    uuid.UUID
	Email     string
	Name      string
	Link      string
	Purpose   enums.TokenPurpose
	ExpiresAt time.Time
}

type magicLinkPayload struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Link      string    `json:"link"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MagicLink queues a login or verification link email inside the caller's
// transaction.
func (e *Enqueuer) MagicLink(ctx context.Context, tx *gorm.DB, email MagicLinkEmail) error {
	eventType := enums.EmailEventMagicLink
	if email.Purpose == enums.TokenPurposeVerification {
		eventType = enums.EmailEventVerification
	}
	return e.outbox.Emit(ctx, tx, outbox.EmailEvent{
		EventType:   eventType,
		AggregateID: email.UserID,
		Data: magicLinkPayload{
			UserID:    email.UserID.String(),
			Email:     email.Email,
			Name:      email.Name,
			Link:      email.Link,
			Purpose:   email.Purpose.String(),
			ExpiresAt: email.ExpiresAt,
		},
	})
}
