package controllers

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/subtrackhq/subtrack-backend/api/middleware"
	"github.com/subtrackhq/subtrack-backend/api/responses"
	"github.com/subtrackhq/subtrack-backend/api/validators"
	authsvc "github.com/subtrackhq/subtrack-backend/internal/auth"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

// AuthService describes the login surface used by the HTTP controllers.
type AuthService interface {
	RequestLink(ctx context.Context, params authsvc.RequestLinkParams) (*authsvc.RequestLinkResult, error)
	Verify(ctx context.Context, rawToken string) (*authsvc.VerifyResult, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*authsvc.TokenPair, error)
	Logout(ctx context.Context, accessID string) error
}

type magicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type magicLinkResponse struct {
	Message   string `json:"message"`
	Purpose   string `json:"purpose"`
	ExpiresAt string `json:"expires_at"`
}

type verifyRequest struct {
	Token string `json:"token" validate:"required"`
}

type verifyResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	RedirectPath string       `json:"redirect_path"`
}

type refreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	IsActive    bool    `json:"is_active"`
	IsVerified  bool    `json:"is_verified"`
	LastLoginAt *string `json:"last_login_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func userToResponse(user *models.User) userResponse {
	resp := userResponse{
		ID:         user.ID.String(),
		Email:      user.Email,
		Name:       user.Name,
		Role:       string(user.Role),
		IsActive:   user.IsActive,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt.UTC().Format(time.RFC3339),
	}
	if user.LastLoginAt != nil {
		formatted := user.LastLoginAt.UTC().Format(time.RFC3339)
		resp.LastLoginAt = &formatted
	}
	return resp
}

// AuthMagicLink mails a single-use login link. The response never reveals the
// token; the expiry lets clients display a countdown.
func AuthMagicLink(svc AuthService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload magicLinkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.RequestLink(ctx, authsvc.RequestLinkParams{
			Email: payload.Email,
			IP:    clientIP(r),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, magicLinkResponse{
			Message:   "Check your email for a login link.",
			Purpose:   string(result.Purpose),
			ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
}

// AuthVerify exchanges a magic-link token for a session.
func AuthVerify(svc AuthService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload verifyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Verify(ctx, payload.Token)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, verifyResponse{
			User:         userToResponse(result.User),
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			RedirectPath: result.RedirectPath,
		})
	}
}

// AuthRefresh rotates a refresh session into a new token pair.
func AuthRefresh(svc AuthService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload refreshRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		pair, err := svc.Refresh(ctx, payload.AccessToken, payload.RefreshToken)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, tokenPairResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		})
	}
}

// AuthLogout revokes the caller's refresh session.
func AuthLogout(svc AuthService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		accessID := middleware.AccessIDFromContext(ctx)
		if accessID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
			return
		}

		if err := svc.Logout(ctx, accessID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"message": "logged out"})
	}
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
