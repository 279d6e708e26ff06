package campaigns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
)

// Repository handles campaign persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, campaign *models.EmailCampaign) error
	Update(ctx context.Context, campaign *models.EmailCampaign) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.EmailCampaign, error)
	List(ctx context.Context, query ListQuery) ([]models.EmailCampaign, error)
	ListDue(ctx context.Context, now time.Time) ([]models.EmailCampaign, error)
	IncrementCounters(ctx context.Context, id uuid.UUID, sent, failed int) (*models.EmailCampaign, error)
}

// ListQuery configures campaign list queries.
type ListQuery struct {
	Status *enums.CampaignStatus
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a campaign repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, campaign *models.EmailCampaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

func (r *repository) Update(ctx context.Context, campaign *models.EmailCampaign) error {
	return r.db.WithContext(ctx).Save(campaign).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.EmailCampaign, error) {
	var campaign models.EmailCampaign
	if err := r.db.WithContext(ctx).First(&campaign, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.EmailCampaign, error) {
	q := r.db.WithContext(ctx).Model(&models.EmailCampaign{})
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}

	var rows []models.EmailCampaign
	err := q.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListDue(ctx context.Context, now time.Time) ([]models.EmailCampaign, error) {
	var rows []models.EmailCampaign
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.CampaignStatusScheduled).
		Where("scheduled_at IS NOT NULL").
		Where("scheduled_at <= ?", now).
		Order("scheduled_at ASC").
		Find(&rows).Error
	return rows, err
}

// IncrementCounters bumps the sent and failed counts atomically and returns
// the fresh row so callers can decide whether the campaign is finished.
func (r *repository) IncrementCounters(ctx context.Context, id uuid.UUID, sent, failed int) (*models.EmailCampaign, error) {
	if err := r.db.WithContext(ctx).
		Model(&models.EmailCampaign{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"sent_count":   gorm.Expr("sent_count + ?", sent),
			"failed_count": gorm.Expr("failed_count + ?", failed),
		}).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}
