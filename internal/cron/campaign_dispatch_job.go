package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

type campaignDispatcher interface {
	DispatchDue(ctx context.Context, now time.Time) (int, error)
}

// CampaignDispatchJobParams configures the scheduled campaign dispatcher.
type CampaignDispatchJobParams struct {
	Logger    *logger.Logger
	Campaigns campaignDispatcher
}

// NewCampaignDispatchJob constructs the job that fans out scheduled
// campaigns whose send time has arrived.
func NewCampaignDispatchJob(params CampaignDispatchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Campaigns == nil {
		return nil, fmt.Errorf("campaign service required")
	}
	return &campaignDispatchJob{
		logg:      params.Logger,
		campaigns: params.Campaigns,
		now:       time.Now,
	}, nil
}

type campaignDispatchJob struct {
	logg      *logger.Logger
	campaigns campaignDispatcher
	now       func() time.Time
}

func (j *campaignDispatchJob) Name() string { return "campaign-dispatch" }

func (j *campaignDispatchJob) Run(ctx context.Context) error {
	dispatched, err := j.campaigns.DispatchDue(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("dispatch due campaigns: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": dispatched})
	j.logg.Info(logCtx, "campaign dispatch sweep complete")
	return nil
}
