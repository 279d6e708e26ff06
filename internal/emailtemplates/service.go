package emailtemplates

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/subtrackhq/subtrack-backend/pkg/db"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
)

// placeholderPattern matches {{variable}} markers in subjects and bodies.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// ServiceParams groups dependencies for the template service.
type ServiceParams struct {
	Repo Repository
}

// Service manages reusable email templates and renders them with variables.
type Service struct {
	repo Repository
}

// NewService builds a template service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

// UpsertParams carries template create and update fields.
type UpsertParams struct {
	Name     string
	Subject  string
	Body     string
	Category enums.TemplateCategory
	IsActive *bool
}

func (p UpsertParams) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "template name is required")
	}
	if strings.TrimSpace(p.Subject) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "template subject is required")
	}
	if strings.TrimSpace(p.Body) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "template body is required")
	}
	if !p.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid template category")
	}
	return nil
}

// ExtractVariables returns the sorted, deduplicated placeholder names used by
// a subject and body.
func ExtractVariables(subject, body string) []string {
	seen := map[string]struct{}{}
	for _, text := range []string{subject, body} {
		for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			seen[match[1]] = struct{}{}
		}
	}
	vars := make([]string, 0, len(seen))
	for name := range seen {
		vars = append(vars, name)
	}
	sort.Strings(vars)
	return vars
}

// Create stores a new template. The variables column is derived from the
// placeholders found in the subject and body.
func (s *Service) Create(ctx context.Context, params UpsertParams) (*models.EmailTemplate, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	template := &models.EmailTemplate{
		Name:      strings.TrimSpace(params.Name),
		Subject:   params.Subject,
		Body:      params.Body,
		Category:  params.Category,
		Variables: ExtractVariables(params.Subject, params.Body),
		IsActive:  true,
	}
	if params.IsActive != nil {
		template.IsActive = *params.IsActive
	}

	if err := s.repo.Create(ctx, template); err != nil {
		if db.IsUniqueViolation(err, "idx_email_templates_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "template name already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating template")
	}
	return template, nil
}

// Update replaces a template's fields and re-derives its variables.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpsertParams) (*models.EmailTemplate, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	template, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	template.Name = strings.TrimSpace(params.Name)
	template.Subject = params.Subject
	template.Body = params.Body
	template.Category = params.Category
	template.Variables = ExtractVariables(params.Subject, params.Body)
	if params.IsActive != nil {
		template.IsActive = *params.IsActive
	}

	if err := s.repo.Update(ctx, template); err != nil {
		if db.IsUniqueViolation(err, "idx_email_templates_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "template name already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating template")
	}
	return template, nil
}

// Get loads a template by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error) {
	template, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading template")
	}
	if template == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Template not found")
	}
	return template, nil
}

// GetByName loads a template by its unique name. Missing templates return nil.
func (s *Service) GetByName(ctx context.Context, name string) (*models.EmailTemplate, error) {
	template, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading template")
	}
	return template, nil
}

// ListParams carries template listing filters.
type ListParams struct {
	Category *enums.TemplateCategory
	Active   *bool
}

// List returns templates matching the filters, ordered by name.
func (s *Service) List(ctx context.Context, params ListParams) ([]models.EmailTemplate, error) {
	if params.Category != nil && !params.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid template category")
	}
	rows, err := s.repo.List(ctx, ListQuery{Category: params.Category, Active: params.Active})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing templates")
	}
	return rows, nil
}

// Delete removes a template.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting template")
	}
	return nil
}

// SetActive toggles a template's availability.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.EmailTemplate, error) {
	template, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	template.IsActive = active
	if err := s.repo.Update(ctx, template); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating template")
	}
	return template, nil
}

// RenderedEmail is a template with its placeholders substituted.
type RenderedEmail struct {
	Subject string
	Body    string
	// Missing lists placeholders the data map did not cover.
	Missing []string
}

// Render substitutes {{placeholder}} markers with the provided data. Markers
// without a value are left in place and reported in Missing.
func Render(template *models.EmailTemplate, data map[string]string) RenderedEmail {
	missing := map[string]struct{}{}
	substitute := func(text string) string {
		return placeholderPattern.ReplaceAllStringFunc(text, func(marker string) string {
			name := placeholderPattern.FindStringSubmatch(marker)[1]
			if value, ok := data[name]; ok {
				return value
			}
			missing[name] = struct{}{}
			return marker
		})
	}

	rendered := RenderedEmail{
		Subject: substitute(template.Subject),
		Body:    substitute(template.Body),
	}
	for name := range missing {
		rendered.Missing = append(rendered.Missing, name)
	}
	sort.Strings(rendered.Missing)
	return rendered
}
