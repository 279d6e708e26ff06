package emailworker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/subtrackhq/subtrack-backend/internal/campaigns"
	"github.com/subtrackhq/subtrack-backend/internal/emailtemplates"
	"github.com/subtrackhq/subtrack-backend/internal/mailer"
	"github.com/subtrackhq/subtrack-backend/internal/workflow"
	"github.com/subtrackhq/subtrack-backend/pkg/config"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	"github.com/subtrackhq/subtrack-backend/pkg/logger"
	"github.com/subtrackhq/subtrack-backend/pkg/outbox"
)

// Template names the handler looks up before falling back to built-in copy.
const (
	templateMagicLink           = "auth_magic_link"
	templateVerification        = "auth_verification"
	templateSubscriptionCreated = "subscription_created"
	templatePaymentInstructions = "payment_instructions"
)

// TemplateCatalog resolves stored templates by name or ID.
type TemplateCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error)
	GetByName(ctx context.Context, name string) (*models.EmailTemplate, error)
}

// CampaignRecorder folds delivery results back into campaign counters.
type CampaignRecorder interface {
	RecordBatchResult(ctx context.Context, id uuid.UUID, sent, failed int) (*models.EmailCampaign, error)
}

// HandlerParams groups dependencies for the email event handler.
type HandlerParams struct {
	Templates TemplateCatalog
	Campaigns CampaignRecorder
	Sender    mailer.Sender
	From      config.MailerConfig
	Logger    *logger.Logger
}

// Handler turns queued email events into deliveries.
type Handler struct {
	templates TemplateCatalog
	campaigns CampaignRecorder
	sender    mailer.Sender
	from      config.MailerConfig
	logg      *logger.Logger
}

// NewHandler builds an email event handler.
func NewHandler(params HandlerParams) (*Handler, error) {
	if params.Templates == nil {
		return nil, errors.New("template catalog is required")
	}
	if params.Campaigns == nil {
		return nil, errors.New("campaign recorder is required")
	}
	if params.Sender == nil {
		return nil, errors.New("sender is required")
	}
	return &Handler{
		templates: params.Templates,
		campaigns: params.Campaigns,
		sender:    params.Sender,
		from:      params.From,
		logg:      params.Logger,
	}, nil
}

// Handle processes one email event. A non-nil error nacks the message for
// redelivery, so permanently broken payloads are dropped with a log line
// instead.
func (h *Handler) Handle(ctx context.Context, eventType enums.EmailEventType, payload []byte) error {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		h.warn(ctx, eventType, "dropping undecodable email event", err)
		return nil
	}

	switch eventType {
	case enums.EmailEventMagicLink, enums.EmailEventVerification:
		return h.handleMagicLink(ctx, eventType, envelope.Data)
	case enums.EmailEventSubscriptionCreated:
		return h.handleSubscriptionCreated(ctx, envelope.Data)
	case enums.EmailEventPaymentInstructions:
		return h.handlePaymentInstructions(ctx, envelope.Data)
	case enums.EmailEventCampaignBatch:
		return h.handleCampaignBatch(ctx, envelope.Data)
	default:
		h.warn(ctx, eventType, "dropping email event with unknown type", nil)
		return nil
	}
}

type magicLinkPayload struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Link      string    `json:"link"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) handleMagicLink(ctx context.Context, eventType enums.EmailEventType, data json.RawMessage) error {
	var payload magicLinkPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.warn(ctx, eventType, "dropping undecodable magic link payload", err)
		return nil
	}

	name := templateMagicLink
	subject := "Your login link"
	body := "Hi {{name}},\n\nUse this link to sign in: {{link}}\n\nThe link expires in 30 minutes and can only be used once."
	if eventType == enums.EmailEventVerification {
		name = templateVerification
		subject = "Verify your email"
		body = "Hi {{name}},\n\nConfirm your email and sign in with this link: {{link}}\n\nThe link expires in 30 minutes and can only be used once."
	}

	rendered, err := h.render(ctx, name, subject, body, map[string]string{
		"name": payload.Name,
		"link": payload.Link,
	})
	if err != nil {
		return err
	}
	return h.send(ctx, payload.Email, payload.Name, rendered)
}

type subscriptionCreatedPayload struct {
	Email         string                `json:"email"`
	Name          string                `json:"name"`
	PlanName      string                `json:"planName"`
	Status        string                `json:"status"`
	InvoiceNumber string                `json:"invoiceNumber"`
	Amount        string                `json:"amount"`
	Currency      string                `json:"currency"`
	Confirmation  workflow.Confirmation `json:"confirmation"`
}

func (h *Handler) handleSubscriptionCreated(ctx context.Context, data json.RawMessage) error {
	var payload subscriptionCreatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.warn(ctx, enums.EmailEventSubscriptionCreated, "dropping undecodable subscription payload", err)
		return nil
	}

	subject := payload.Confirmation.Title
	if subject == "" {
		subject = "Subscription Created"
	}
	rendered, err := h.render(ctx, templateSubscriptionCreated,
		subject,
		"Hi {{name}},\n\n{{description}}\n\nInvoice {{invoiceNumber}}: {{amount}} {{currency}}.",
		map[string]string{
			"name":          payload.Name,
			"planName":      payload.PlanName,
			"description":   payload.Confirmation.Description,
			"invoiceNumber": payload.InvoiceNumber,
			"amount":        payload.Amount,
			"currency":      payload.Currency,
		})
	if err != nil {
		return err
	}
	return h.send(ctx, payload.Email, payload.Name, rendered)
}

type paymentInstructionsPayload struct {
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	InvoiceNumber string    `json:"invoiceNumber"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	DueDate       time.Time `json:"dueDate"`
}

func (h *Handler) handlePaymentInstructions(ctx context.Context, data json.RawMessage) error {
	var payload paymentInstructionsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.warn(ctx, enums.EmailEventPaymentInstructions, "dropping undecodable payment payload", err)
		return nil
	}

	rendered, err := h.render(ctx, templatePaymentInstructions,
		"Payment instructions for invoice {{invoiceNumber}}",
		"Hi {{name}},\n\nComplete your bank transfer of {{amount}} {{currency}} for invoice {{invoiceNumber}} by {{dueDate}}.\nInclude the invoice number in the transfer reference.",
		map[string]string{
			"name":          payload.Name,
			"invoiceNumber": payload.InvoiceNumber,
			"amount":        payload.Amount,
			"currency":      payload.Currency,
			"dueDate":       payload.DueDate.Format("January 2, 2006"),
		})
	if err != nil {
		return err
	}
	return h.send(ctx, payload.Email, payload.Name, rendered)
}

func (h *Handler) handleCampaignBatch(ctx context.Context, data json.RawMessage) error {
	var batch campaigns.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		h.warn(ctx, enums.EmailEventCampaignBatch, "dropping undecodable campaign batch", err)
		return nil
	}
	campaignID, err := uuid.Parse(batch.CampaignID)
	if err != nil {
		h.warn(ctx, enums.EmailEventCampaignBatch, "dropping campaign batch with bad id", err)
		return nil
	}
	templateID, err := uuid.Parse(batch.TemplateID)
	if err != nil {
		h.warn(ctx, enums.EmailEventCampaignBatch, "dropping campaign batch with bad template id", err)
		return nil
	}

	template, err := h.templates.Get(ctx, templateID)
	if err != nil {
		return err
	}

	var sent, failed int
	for _, recipient := range batch.Recipients {
		rendered := emailtemplates.Render(template, map[string]string{
			"name":  recipient.Name,
			"email": recipient.Email,
		})
		msg := mailer.Message{
			To:       recipient.Email,
			ToName:   recipient.Name,
			From:     h.from.FromAddress,
			FromName: h.from.FromName,
			Subject:  rendered.Subject,
			Body:     rendered.Body,
		}
		if err := h.sender.Send(ctx, msg); err != nil {
			h.warn(ctx, enums.EmailEventCampaignBatch, "campaign delivery failed", err)
			failed++
			continue
		}
		sent++
	}

	if _, err := h.campaigns.RecordBatchResult(ctx, campaignID, sent, failed); err != nil {
		return err
	}
	return nil
}

// render prefers a stored template by name and falls back to the built-in
// subject and body.
func (h *Handler) render(ctx context.Context, name, subject, body string, vars map[string]string) (emailtemplates.RenderedEmail, error) {
	template, err := h.templates.GetByName(ctx, name)
	if err != nil {
		return emailtemplates.RenderedEmail{}, err
	}
	if template == nil || !template.IsActive {
		template = &models.EmailTemplate{Subject: subject, Body: body}
	}
	return emailtemplates.Render(template, vars), nil
}

func (h *Handler) send(ctx context.Context, to, toName string, rendered emailtemplates.RenderedEmail) error {
	if to == "" {
		h.warn(ctx, "", "dropping email with empty recipient", nil)
		return nil
	}
	return h.sender.Send(ctx, mailer.Message{
		To:       to,
		ToName:   toName,
		From:     h.from.FromAddress,
		FromName: h.from.FromName,
		Subject:  rendered.Subject,
		Body:     rendered.Body,
	})
}

func (h *Handler) warn(ctx context.Context, eventType enums.EmailEventType, msg string, err error) {
	if h.logg == nil {
		return
	}
	fields := map[string]any{"event_type": string(eventType)}
	if err != nil {
		fields["error"] = err.Error()
	}
	logCtx := h.logg.WithFields(ctx, fields)
	h.logg.Warn(logCtx, msg)
}
