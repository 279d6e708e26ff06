package emailworker

import (
	"context"
	"errors"

	pubsublib "cloud.google.com/go/pubsub/v2"

	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

// eventTypeAttribute is the Pub/Sub message attribute carrying the event type.
// The outbox publisher sets it so consumers can route without decoding.
const eventTypeAttribute = "event_type"

// Worker pulls email events from the Pub/Sub subscription and hands them to
// the handler. Handler errors nack the message for redelivery.
type Worker struct {
	sub     *pubsublib.Subscriber
	handler *Handler
	logg    *logger.Logger
}

// NewWorker builds an email worker.
func NewWorker(sub *pubsublib.Subscriber, handler *Handler, logg *logger.Logger) (*Worker, error) {
	if sub == nil {
		return nil, errors.New("subscriber is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	return &Worker{sub: sub, handler: handler, logg: logg}, nil
}

// Run blocks receiving messages until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.logg != nil {
		w.logg.Info(ctx, "email worker listening")
	}
	return w.sub.Receive(ctx, func(ctx context.Context, msg *pubsublib.Message) {
		eventType := enums.EmailEventType(msg.Attributes[eventTypeAttribute])

		if err := w.handler.Handle(ctx, eventType, msg.Data); err != nil {
			if w.logg != nil {
				fields := map[string]any{
					"event_type": string(eventType),
					"error":      err.Error(),
				}
				w.logg.Warn(w.logg.WithFields(ctx, fields), "email event failed, nacking")
			}
			msg.Nack()
			return
		}
		msg.Ack()
	})
}
