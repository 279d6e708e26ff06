package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

type fakeTrialExpirer struct {
	moved int
	err   error
	at    time.Time
}

func (f *fakeTrialExpirer) ExpireTrials(ctx context.Context, now time.Time) (int, error) {
	f.at = now
	return f.moved, f.err
}

type fakeOverdueSweeper struct {
	flagged int64
	err     error
}

func (f *fakeOverdueSweeper) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	return f.flagged, f.err
}

type fakeCampaignDispatcher struct {
	dispatched int
	err        error
}

func (f *fakeCampaignDispatcher) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	return f.dispatched, f.err
}

type fakeTokenCleaner struct {
	removed int64
	err     error
}

func (f *fakeTokenCleaner) CleanupExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	return f.removed, f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test"})
}

func TestTrialExpiryJobPassesUTCNow(t *testing.T) {
	expirer := &fakeTrialExpirer{moved: 3}
	jobIface, err := NewTrialExpiryJob(TrialExpiryJobParams{Logger: testLogger(), Subscriptions: expirer})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	job := jobIface.(*trialExpiryJob)
	fixed := time.Date(2026, 4, 15, 10, 30, 0, 0, time.FixedZone("PST", -8*3600))
	job.now = func() time.Time { return fixed }
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.at.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", expirer.at.Location())
	}
	if !expirer.at.Equal(fixed) {
		t.Fatalf("unexpected sweep time %v", expirer.at)
	}
	if job.Name() != "trial-expiry" {
		t.Fatalf("unexpected name %q", job.Name())
	}
}

func TestTrialExpiryJobWrapsError(t *testing.T) {
	expirer := &fakeTrialExpirer{err: errors.New("db down")}
	job, err := NewTrialExpiryJob(TrialExpiryJobParams{Logger: testLogger(), Subscriptions: expirer})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error to surface")
	}
}

func TestInvoiceOverdueJob(t *testing.T) {
	job, err := NewInvoiceOverdueJob(InvoiceOverdueJobParams{Logger: testLogger(), Billing: &fakeOverdueSweeper{flagged: 2}})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "invoice-overdue" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestCampaignDispatchJob(t *testing.T) {
	job, err := NewCampaignDispatchJob(CampaignDispatchJobParams{Logger: testLogger(), Campaigns: &fakeCampaignDispatcher{dispatched: 1}})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "campaign-dispatch" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestTokenCleanupJob(t *testing.T) {
	job, err := NewTokenCleanupJob(TokenCleanupJobParams{Logger: testLogger(), Auth: &fakeTokenCleaner{removed: 7}})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "auth-token-cleanup" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestJobConstructorsRequireDependencies(t *testing.T) {
	if _, err := NewTrialExpiryJob(TrialExpiryJobParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected missing subscription service error")
	}
	if _, err := NewInvoiceOverdueJob(InvoiceOverdueJobParams{Billing: &fakeOverdueSweeper{}}); err == nil {
		t.Fatal("expected missing logger error")
	}
	if _, err := NewCampaignDispatchJob(CampaignDispatchJobParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected missing campaign service error")
	}
	if _, err := NewTokenCleanupJob(TokenCleanupJobParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected missing auth service error")
	}
}
