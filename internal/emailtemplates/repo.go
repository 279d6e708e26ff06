package emailtemplates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
)

// Repository handles email template persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, template *models.EmailTemplate) error
	Update(ctx context.Context, template *models.EmailTemplate) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error)
	FindByName(ctx context.Context, name string) (*models.EmailTemplate, error)
	List(ctx context.Context, query ListQuery) ([]models.EmailTemplate, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ListQuery configures template list queries.
type ListQuery struct {
	Category *enums.TemplateCategory
	Active   *bool
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a template repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, template *models.EmailTemplate) error {
	return r.db.WithContext(ctx).Create(template).Error
}

func (r *repository) Update(ctx context.Context, template *models.EmailTemplate) error {
	return r.db.WithContext(ctx).Save(template).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error) {
	var template models.EmailTemplate
	if err := r.db.WithContext(ctx).First(&template, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &template, nil
}

func (r *repository) FindByName(ctx context.Context, name string) (*models.EmailTemplate, error) {
	var template models.EmailTemplate
	if err := r.db.WithContext(ctx).First(&template, "name = ?", name).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &template, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.EmailTemplate, error) {
	q := r.db.WithContext(ctx).Model(&models.EmailTemplate{})
	if query.Category != nil {
		q = q.Where("category = ?", *query.Category)
	}
	if query.Active != nil {
		q = q.Where("is_active = ?", *query.Active)
	}

	var rows []models.EmailTemplate
	err := q.Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.EmailTemplate{}, "id = ?", id).Error
}
