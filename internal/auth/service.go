package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/subtrackhq/subtrack-backend/internal/mailer"
	pkgauth "github.com/subtrackhq/subtrack-backend/pkg/auth"
	"github.com/subtrackhq/subtrack-backend/pkg/auth/session"
	"github.com/subtrackhq/subtrack-backend/pkg/config"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/security"
)

// Redirect targets returned after a successful login, by role.
const (
	redirectAdmin      = "/admin"
	redirectSubscriber = "/dashboard"
)

// UserDirectory is the slice of the user service the auth flow needs.
type UserDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// LinkMailer queues the login link email.
type LinkMailer interface {
	MagicLink(ctx context.Context, tx *gorm.DB, email mailer.MagicLinkEmail) error
}

// RateLimiter is satisfied by the Redis client's fixed-window counter.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// SessionManager issues and rotates refresh sessions.
type SessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the auth service.
type ServiceParams struct {
	Repo      Repository
	Users     UserDirectory
	Mailer    LinkMailer
	Limiter   RateLimiter
	Sessions  SessionManager
	DB        TxRunner
	JWT       config.JWTConfig
	MagicLink config.MagicLinkConfig
	RateLimit config.AuthRateLimitConfig
	BaseURL   string
	Now       func() time.Time
}

// Service implements passwordless login: single-use emailed tokens exchanged
// for a JWT access token plus a Redis-backed refresh session.
type Service struct {
	repo      Repository
	users     UserDirectory
	mailer    LinkMailer
	limiter   RateLimiter
	sessions  SessionManager
	db        TxRunner
	jwt       config.JWTConfig
	magicLink config.MagicLinkConfig
	rateLimit config.AuthRateLimitConfig
	baseURL   string
	now       func() time.Time
}

// NewService builds an auth service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Users == nil {
		return nil, errors.New("user directory is required")
	}
	if params.Mailer == nil {
		return nil, errors.New("link mailer is required")
	}
	if params.Limiter == nil {
		return nil, errors.New("rate limiter is required")
	}
	if params.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if params.DB == nil {
		return nil, errors.New("tx runner is required")
	}
	if params.MagicLink.TokenTTL <= 0 {
		return nil, errors.New("magic link token ttl must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      params.Repo,
		users:     params.Users,
		mailer:    params.Mailer,
		limiter:   params.Limiter,
		sessions:  params.Sessions,
		db:        params.DB,
		jwt:       params.JWT,
		magicLink: params.MagicLink,
		rateLimit: params.RateLimit,
		baseURL:   strings.TrimRight(params.BaseURL, "/"),
		now:       now,
	}, nil
}

// RequestLinkParams carries a magic-link request.
type RequestLinkParams struct {
	Email string
	IP    string
}

// RequestLinkResult reports what kind of link went out. The token itself never
// leaves the mail path.
type RequestLinkResult struct {
	Purpose   enums.TokenPurpose
	ExpiresAt time.Time
}

// RequestLink issues a single-use login token and mails it. Unverified users
// get a verification link; everyone else gets a plain login link.
func (s *Service) RequestLink(ctx context.Context, params RequestLinkParams) (*RequestLinkResult, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	if err := s.allow(ctx, "magic_link:email:"+email, s.rateLimit.MagicLinkEmailLimit); err != nil {
		return nil, err
	}
	if ip := strings.TrimSpace(params.IP); ip != "" {
		if err := s.allow(ctx, "magic_link:ip:"+ip, s.rateLimit.MagicLinkIPLimit); err != nil {
			return nil, err
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is disabled")
	}

	purpose := enums.TokenPurposeMagicLink
	if !user.IsVerified {
		purpose = enums.TokenPurposeVerification
	}

	token, err := security.NewLoginToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating login token")
	}
	digest, err := security.DigestSecret(token.Secret)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "digesting login token")
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.magicLink.TokenTTL)
	row := &models.AuthToken{
		ID:        token.ID,
		UserID:    user.ID,
		Purpose:   purpose,
		Digest:    digest,
		ExpiresAt: expiresAt,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
			return err
		}
		return s.mailer.MagicLink(ctx, tx, mailer.MagicLinkEmail{
			UserID:    user.ID,
			Email:     user.Email,
			Name:      user.Name,
			Link:      s.verifyURL(token),
			Purpose:   purpose,
			ExpiresAt: expiresAt,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issuing login link")
	}

	return &RequestLinkResult{Purpose: purpose, ExpiresAt: expiresAt}, nil
}

func (s *Service) allow(ctx context.Context, scope string, limit int) error {
	allowed, _, err := s.limiter.FixedWindowAllow(ctx, scope, int64(limit), s.rateLimit.MagicLinkWindow)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit check failed")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many login requests")
	}
	return nil
}

func (s *Service) verifyURL(token security.LoginToken) string {
	return fmt.Sprintf("%s/auth/verify?token=%s", s.baseURL, url.QueryEscape(token.String()))
}

// VerifyResult is a completed login.
type VerifyResult struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
	RedirectPath string
}

var errInvalidToken = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired login link")

// Verify consumes a login token, marks the user verified on first use, and
// mints an access token plus refresh session. The redirect path depends on the
// user's role.
func (s *Service) Verify(ctx context.Context, rawToken string) (*VerifyResult, error) {
	token, err := security.ParseLoginToken(rawToken)
	if err != nil {
		return nil, errInvalidToken
	}

	row, err := s.repo.FindByID(ctx, token.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading login token")
	}
	now := s.now().UTC()
	if row == nil || row.UsedAt != nil || now.After(row.ExpiresAt) {
		return nil, errInvalidToken
	}

	match, err := security.VerifySecret(token.Secret, row.Digest)
	if err != nil || !match {
		return nil, errInvalidToken
	}

	user, err := s.users.Get(ctx, row.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is disabled")
	}

	if err := s.repo.MarkUsed(ctx, row.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consuming login token")
	}
	// RecordLogin stamps last_login_at and flips is_verified on first login.
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording login")
	}

	jti := session.NewAccessID()
	access, err := pkgauth.MintAccessToken(s.jwt, now, pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    jti,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}
	refresh, err := s.sessions.Generate(ctx, jti)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating session")
	}

	redirect := redirectSubscriber
	if user.Role == enums.UserRoleAdmin {
		redirect = redirectAdmin
	}

	return &VerifyResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		RedirectPath: redirect,
	}, nil
}

// TokenPair is a rotated access/refresh credential set.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Refresh rotates the refresh session named by the (possibly expired) access
// token and mints a fresh pair.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwt, accessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	newJTI, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotating session")
	}

	access, err := pkgauth.MintAccessToken(s.jwt, s.now().UTC(), pkgauth.AccessTokenPayload{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
		JTI:    newJTI,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}
	return &TokenPair{AccessToken: access, RefreshToken: newRefresh}, nil
}

// Logout revokes the refresh session tied to the access token's jti.
func (s *Service) Logout(ctx context.Context, accessID string) error {
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoking session")
	}
	return nil
}

// CleanupExpiredTokens deletes login tokens past their expiry and returns how
// many rows went away.
func (s *Service) CleanupExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx, now.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting expired tokens")
	}
	return count, nil
}
