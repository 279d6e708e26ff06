package campaigns

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/outbox"
)

// batchSize caps how many recipients ride in one outbox event.
const batchSize = 100

// TemplateCatalog resolves the template a campaign sends.
type TemplateCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error)
}

// RecipientSource lists the subscribers a campaign targets.
type RecipientSource interface {
	ListActiveSubscribers(ctx context.Context) ([]models.User, error)
}

// EmailEmitter queues email events transactionally with domain writes.
type EmailEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.EmailEvent) error
}

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Recipient identifies one campaign target.
type Recipient struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Batch is the payload carried by one campaign outbox event.
type Batch struct {
	CampaignID string      `json:"campaignId"`
	TemplateID string      `json:"templateId"`
	Recipients []Recipient `json:"recipients"`
}

// ServiceParams groups dependencies for the campaign service.
type ServiceParams struct {
	Repo       Repository
	Templates  TemplateCatalog
	Recipients RecipientSource
	Outbox     EmailEmitter
	DB         TxRunner
	Now        func() time.Time
}

// Service manages email campaigns: scheduling, fan-out, and progress counters.
type Service struct {
	repo       Repository
	templates  TemplateCatalog
	recipients RecipientSource
	outbox     EmailEmitter
	db         TxRunner
	now        func() time.Time
}

// NewService builds a campaign service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Templates == nil {
		return nil, errors.New("template catalog is required")
	}
	if params.Recipients == nil {
		return nil, errors.New("recipient source is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("email emitter is required")
	}
	if params.DB == nil {
		return nil, errors.New("tx runner is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:       params.Repo,
		templates:  params.Templates,
		recipients: params.Recipients,
		outbox:     params.Outbox,
		db:         params.DB,
		now:        now,
	}, nil
}

// CreateParams carries a campaign create request.
type CreateParams struct {
	Name        string
	TemplateID  uuid.UUID
	ScheduledAt *time.Time
}

// Create stores a new campaign. Campaigns with a schedule start out scheduled,
// the rest stay drafts until Schedule is called.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.EmailCampaign, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign name is required")
	}

	template, err := s.templates.Get(ctx, params.TemplateID)
	if err != nil {
		return nil, err
	}
	if !template.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "template is not active")
	}

	campaign := &models.EmailCampaign{
		Name:       strings.TrimSpace(params.Name),
		TemplateID: template.ID,
		Status:     enums.CampaignStatusDraft,
	}
	if params.ScheduledAt != nil {
		at := params.ScheduledAt.UTC()
		campaign.ScheduledAt = &at
		campaign.Status = enums.CampaignStatusScheduled
	}

	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating campaign")
	}
	return campaign, nil
}

// Get loads a campaign by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.EmailCampaign, error) {
	campaign, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading campaign")
	}
	if campaign == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Campaign not found")
	}
	return campaign, nil
}

// ListParams carries campaign listing filters.
type ListParams struct {
	Status *enums.CampaignStatus
}

// List returns campaigns matching the filters, newest first.
func (s *Service) List(ctx context.Context, params ListParams) ([]models.EmailCampaign, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid campaign status")
	}
	rows, err := s.repo.List(ctx, ListQuery{Status: params.Status})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing campaigns")
	}
	return rows, nil
}

// Schedule sets or moves a campaign's send time. Only drafts and not-yet-sent
// scheduled campaigns can be rescheduled.
func (s *Service) Schedule(ctx context.Context, id uuid.UUID, at time.Time) (*models.EmailCampaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != enums.CampaignStatusDraft && campaign.Status != enums.CampaignStatusScheduled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "campaign has already been dispatched")
	}

	scheduled := at.UTC()
	campaign.ScheduledAt = &scheduled
	campaign.Status = enums.CampaignStatusScheduled
	if err := s.repo.Update(ctx, campaign); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "scheduling campaign")
	}
	return campaign, nil
}

// DispatchDue fans out every scheduled campaign whose send time has passed.
// Each campaign moves to sending and its recipients are queued through the
// outbox in batches. Returns how many campaigns were dispatched and keeps
// going after per-campaign failures.
func (s *Service) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDue(ctx, now.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing due campaigns")
	}

	var dispatched int
	var errs error
	for i := range due {
		if err := s.dispatch(ctx, &due[i]); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		dispatched++
	}
	return dispatched, errs
}

func (s *Service) dispatch(ctx context.Context, campaign *models.EmailCampaign) error {
	recipients, err := s.recipients.ListActiveSubscribers(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing recipients")
	}

	if len(recipients) == 0 {
		// Nothing to send. Close the campaign out rather than leaving it
		// scheduled forever.
		sentAt := s.now().UTC()
		campaign.Status = enums.CampaignStatusSent
		campaign.SentAt = &sentAt
		return s.repo.Update(ctx, campaign)
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		campaign.Status = enums.CampaignStatusSending
		campaign.RecipientCount = len(recipients)
		if err := repo.Update(ctx, campaign); err != nil {
			return err
		}

		for start := 0; start < len(recipients); start += batchSize {
			end := start + batchSize
			if end > len(recipients) {
				end = len(recipients)
			}

			batch := Batch{
				CampaignID: campaign.ID.String(),
				TemplateID: campaign.TemplateID.String(),
				Recipients: make([]Recipient, 0, end-start),
			}
			for _, user := range recipients[start:end] {
				batch.Recipients = append(batch.Recipients, Recipient{
					UserID: user.ID.String(),
					Email:  user.Email,
					Name:   user.Name,
				})
			}

			if err := s.outbox.Emit(ctx, tx, outbox.EmailEvent{
				EventType:   enums.EmailEventCampaignBatch,
				AggregateID: campaign.ID,
				Data:        batch,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordBatchResult folds one delivery batch into the campaign's counters and
// closes the campaign once every recipient is accounted for.
func (s *Service) RecordBatchResult(ctx context.Context, id uuid.UUID, sent, failed int) (*models.EmailCampaign, error) {
	if sent < 0 || failed < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counts cannot be negative")
	}

	campaign, err := s.repo.IncrementCounters(ctx, id, sent, failed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording batch result")
	}
	if campaign == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Campaign not found")
	}

	if campaign.Status == enums.CampaignStatusSending &&
		campaign.SentCount+campaign.FailedCount >= campaign.RecipientCount {
		sentAt := s.now().UTC()
		campaign.SentAt = &sentAt
		campaign.Status = enums.CampaignStatusSent
		if campaign.SentCount == 0 {
			campaign.Status = enums.CampaignStatusFailed
		}
		if err := s.repo.Update(ctx, campaign); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "closing campaign")
		}
	}
	return campaign, nil
}
