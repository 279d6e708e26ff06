package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

type trialExpirer interface {
	ExpireTrials(ctx context.Context, now time.Time) (int, error)
}

// TrialExpiryJobParams configures the scheduled trial sweep.
type TrialExpiryJobParams struct {
	Logger        *logger.Logger
	Subscriptions trialExpirer
}

// NewTrialExpiryJob constructs the job that moves ended trials forward.
func NewTrialExpiryJob(params TrialExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	return &trialExpiryJob{
		logg: params.Logger,
		subs: params.Subscriptions,
		now:  time.Now,
	}, nil
}

type trialExpiryJob struct {
	logg *logger.Logger
	subs trialExpirer
	now  func() time.Time
}

func (j *trialExpiryJob) Name() string { return "trial-expiry" }

func (j *trialExpiryJob) Run(ctx context.Context) error {
	moved, err := j.subs.ExpireTrials(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("expire trials: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": moved})
	j.logg.Info(logCtx, "trial expiry sweep complete")
	return nil
}
