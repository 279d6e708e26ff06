package emailtemplates

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
)

type stubRepo struct {
	createFn func(ctx context.Context, template *models.EmailTemplate) error
	findFn   func(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error)
	listFn   func(ctx context.Context, query ListQuery) ([]models.EmailTemplate, error)
	updated  *models.EmailTemplate
	deleted  []uuid.UUID
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }
func (s *stubRepo) Create(ctx context.Context, template *models.EmailTemplate) error {
	if s.createFn != nil {
		return s.createFn(ctx, template)
	}
	return nil
}
func (s *stubRepo) Update(ctx context.Context, template *models.EmailTemplate) error {
	s.updated = template
	return nil
}
func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return nil, nil
}
func (s *stubRepo) FindByName(ctx context.Context, name string) (*models.EmailTemplate, error) {
	return nil, nil
}
func (s *stubRepo) List(ctx context.Context, query ListQuery) ([]models.EmailTemplate, error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return nil, nil
}
func (s *stubRepo) Delete(ctx context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func TestExtractVariables(t *testing.T) {
	vars := ExtractVariables(
		"Welcome {{name}}!",
		"Hi {{ name }}, your {{planName}} plan starts {{startDate}}.",
	)
	want := []string{"name", "planName", "startDate"}
	if !reflect.DeepEqual(vars, want) {
		t.Fatalf("got %v, want %v", vars, want)
	}
}

func TestCreateDerivesVariables(t *testing.T) {
	var created *models.EmailTemplate
	repo := &stubRepo{createFn: func(ctx context.Context, template *models.EmailTemplate) error {
		created = template
		return nil
	}}
	svc, _ := NewService(ServiceParams{Repo: repo})

	_, err := svc.Create(context.Background(), UpsertParams{
		Name:     "welcome",
		Subject:  "Welcome {{name}}",
		Body:     "Your {{planName}} subscription is ready, {{name}}.",
		Category: enums.TemplateCategoryOnboarding,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"name", "planName"}
	if !reflect.DeepEqual([]string(created.Variables), want) {
		t.Fatalf("variables %v, want %v", created.Variables, want)
	}
	if !created.IsActive {
		t.Fatal("templates should default to active")
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := NewService(ServiceParams{Repo: &stubRepo{}})

	cases := []UpsertParams{
		{Subject: "s", Body: "b", Category: enums.TemplateCategoryAlert},      // no name
		{Name: "x", Body: "b", Category: enums.TemplateCategoryAlert},         // no subject
		{Name: "x", Subject: "s", Category: enums.TemplateCategoryAlert},      // no body
		{Name: "x", Subject: "s", Body: "b", Category: "newsletter"},          // bad category
	}
	for i, params := range cases {
		if _, err := svc.Create(context.Background(), params); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		} else if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
			t.Fatalf("case %d: expected validation code, got %v", i, err)
		}
	}
}

func TestGetMissingTemplate(t *testing.T) {
	svc, _ := NewService(ServiceParams{Repo: &stubRepo{}})

	_, err := svc.Get(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected not found")
	}
	e := pkgerrors.As(err)
	if e.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if e.Message() != "Template not found" {
		t.Fatalf("unexpected message %q", e.Message())
	}
}

func TestUpdateRederivesVariables(t *testing.T) {
	template := &models.EmailTemplate{
		ID:        uuid.New(),
		Name:      "welcome",
		Subject:   "Welcome {{name}}",
		Body:      "Hello {{name}}",
		Category:  enums.TemplateCategoryOnboarding,
		Variables: []string{"name"},
		IsActive:  true,
	}
	repo := &stubRepo{findFn: func(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error) {
		return template, nil
	}}
	svc, _ := NewService(ServiceParams{Repo: repo})

	updated, err := svc.Update(context.Background(), template.ID, UpsertParams{
		Name:     "welcome",
		Subject:  "Welcome aboard",
		Body:     "Your {{planName}} plan is live.",
		Category: enums.TemplateCategoryOnboarding,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual([]string(updated.Variables), []string{"planName"}) {
		t.Fatalf("variables not re-derived: %v", updated.Variables)
	}
}

func TestRenderSubstitutesAndReportsMissing(t *testing.T) {
	template := &models.EmailTemplate{
		Subject: "Hi {{name}}",
		Body:    "Your {{planName}} plan renews on {{renewalDate}}.",
	}

	rendered := Render(template, map[string]string{
		"name":     "Jane",
		"planName": "Pro",
	})

	if rendered.Subject != "Hi Jane" {
		t.Fatalf("unexpected subject %q", rendered.Subject)
	}
	if rendered.Body != "Your Pro plan renews on {{renewalDate}}." {
		t.Fatalf("unexpected body %q", rendered.Body)
	}
	if !reflect.DeepEqual(rendered.Missing, []string{"renewalDate"}) {
		t.Fatalf("missing %v", rendered.Missing)
	}
}

func TestDeleteRequiresExistingTemplate(t *testing.T) {
	repo := &stubRepo{}
	svc, _ := NewService(ServiceParams{Repo: repo})

	if err := svc.Delete(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected not found")
	}
	if len(repo.deleted) != 0 {
		t.Fatal("delete should not run for missing templates")
	}
}
