// Package mailer is the delivery seam for outbound email. Producers queue
// events through the Enqueuer; the email worker turns them into Messages and
// hands them to a Sender.
package mailer

import (
	"context"

	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

// Message is one rendered email ready for delivery.
type Message struct {
	To       string
	ToName   string
	From     string
	FromName string
	Subject  string
	Body     string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender records deliveries through the structured logger instead of
// talking to a provider. Used in dev and in tests.
type LogSender struct {
	logg *logger.Logger
}

// NewLogSender builds a sender that only logs.
func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if s.logg != nil {
		fields := map[string]any{
			"to":      msg.To,
			"subject": msg.Subject,
		}
		logCtx := s.logg.WithFields(ctx, fields)
		s.logg.Info(logCtx, "email delivered (log sender)")
	}
	return nil
}
