package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

type overdueSweeper interface {
	SweepOverdue(ctx context.Context, now time.Time) (int64, error)
}

// InvoiceOverdueJobParams configures the scheduled invoice sweep.
type InvoiceOverdueJobParams struct {
	Logger  *logger.Logger
	Billing overdueSweeper
}

// NewInvoiceOverdueJob constructs the job that flags unpaid invoices past
// their due date.
func NewInvoiceOverdueJob(params InvoiceOverdueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Billing == nil {
		return nil, fmt.Errorf("billing service required")
	}
	return &invoiceOverdueJob{
		logg:    params.Logger,
		billing: params.Billing,
		now:     time.Now,
	}, nil
}

type invoiceOverdueJob struct {
	logg    *logger.Logger
	billing overdueSweeper
	now     func() time.Time
}

func (j *invoiceOverdueJob) Name() string { return "invoice-overdue" }

func (j *invoiceOverdueJob) Run(ctx context.Context) error {
	flagged, err := j.billing.SweepOverdue(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("sweep overdue invoices: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": flagged})
	j.logg.Info(logCtx, "overdue invoice sweep complete")
	return nil
}
