package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/pagination"
)

type stubRepo struct {
	createFn    func(ctx context.Context, user *models.User) error
	findByIDFn  func(ctx context.Context, id uuid.UUID) (*models.User, error)
	findEmailFn func(ctx context.Context, email string) (*models.User, error)
	listFn      func(ctx context.Context, query ListQuery) ([]models.User, *pagination.Cursor, error)
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }
func (s *stubRepo) Create(ctx context.Context, user *models.User) error {
	if s.createFn != nil {
		return s.createFn(ctx, user)
	}
	return nil
}
func (s *stubRepo) Update(ctx context.Context, user *models.User) error { return nil }
func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.findEmailFn != nil {
		return s.findEmailFn(ctx, email)
	}
	return nil, nil
}
func (s *stubRepo) List(ctx context.Context, query ListQuery) ([]models.User, *pagination.Cursor, error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return nil, nil, nil
}
func (s *stubRepo) ListActiveSubscribers(ctx context.Context) ([]models.User, error) {
	return nil, nil
}
func (s *stubRepo) MarkLogin(ctx context.Context, id uuid.UUID, at time.Time) error { return nil }

func TestCreateNormalizesEmailAndDefaultsRole(t *testing.T) {
	var created *models.User
	repo := &stubRepo{
		createFn: func(ctx context.Context, user *models.User) error {
			created = user
			return nil
		},
	}
	svc, _ := NewService(ServiceParams{Repo: repo})

	user, err := svc.Create(context.Background(), CreateParams{
		Email: "  Casey@Example.COM ",
		Name:  " Casey ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("repo create not called")
	}
	if user.Email != "casey@example.com" {
		t.Fatalf("email not normalized, got %q", user.Email)
	}
	if user.Name != "Casey" {
		t.Fatalf("name not trimmed, got %q", user.Name)
	}
	if user.Role != enums.UserRoleUser {
		t.Fatalf("expected default role user, got %s", user.Role)
	}
	if !user.IsActive {
		t.Fatal("new accounts should be active")
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	svc, _ := NewService(ServiceParams{Repo: &stubRepo{}})

	if _, err := svc.Create(context.Background(), CreateParams{Name: "No Email"}); err == nil {
		t.Fatal("expected error for missing email")
	} else if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := svc.Create(context.Background(), CreateParams{Email: "a@b.c", Role: "owner"}); err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestGetMissingUserIsNotFound(t *testing.T) {
	svc, _ := NewService(ServiceParams{Repo: &stubRepo{}})

	_, err := svc.Get(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected not found error")
	}
	e := pkgerrors.As(err)
	if e.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %s", e.Code())
	}
	if e.Message() != "User not found" {
		t.Fatalf("unexpected message %q", e.Message())
	}
}

func TestListRejectsInvalidCursor(t *testing.T) {
	svc, _ := NewService(ServiceParams{Repo: &stubRepo{}})

	_, err := svc.List(context.Background(), ListParams{Cursor: "bogus!"})
	if err == nil {
		t.Fatal("expected cursor error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListEncodesNextCursor(t *testing.T) {
	now := time.Now().UTC()
	last := models.User{ID: uuid.New(), CreatedAt: now.Add(-time.Hour)}
	repo := &stubRepo{
		listFn: func(ctx context.Context, query ListQuery) ([]models.User, *pagination.Cursor, error) {
			return []models.User{last}, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
		},
	}
	svc, _ := NewService(ServiceParams{Repo: repo})

	result, err := svc.List(context.Background(), ListParams{Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NextCursor == "" {
		t.Fatal("expected next cursor")
	}
	cursor, err := pagination.ParseCursor(result.NextCursor)
	if err != nil {
		t.Fatalf("cursor should round-trip: %v", err)
	}
	if cursor.ID != last.ID {
		t.Fatal("cursor id mismatch")
	}
}
