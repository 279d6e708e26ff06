package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

type tokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// TokenCleanupJobParams configures the expired login token sweep.
type TokenCleanupJobParams struct {
	Logger *logger.Logger
	Auth   tokenCleaner
}

// NewTokenCleanupJob constructs the job that purges expired magic link
// tokens from storage.
func NewTokenCleanupJob(params TokenCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Auth == nil {
		return nil, fmt.Errorf("auth service required")
	}
	return &tokenCleanupJob{
		logg: params.Logger,
		auth: params.Auth,
		now:  time.Now,
	}, nil
}

type tokenCleanupJob struct {
	logg *logger.Logger
	auth tokenCleaner
	now  func() time.Time
}

func (j *tokenCleanupJob) Name() string { return "auth-token-cleanup" }

func (j *tokenCleanupJob) Run(ctx context.Context) error {
	removed, err := j.auth.CleanupExpiredTokens(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("cleanup expired tokens: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": removed})
	j.logg.Info(logCtx, "expired token cleanup complete")
	return nil
}
