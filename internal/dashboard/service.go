package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
)

// Stats is the aggregate snapshot shown on the admin dashboard.
type Stats struct {
	TotalUsers           int64           `json:"totalUsers"`
	ActiveSubscriptions  int64           `json:"activeSubscriptions"`
	TrialSubscriptions   int64           `json:"trialSubscriptions"`
	PendingApprovals     int64           `json:"pendingApprovals"`
	ExpiredSubscriptions int64           `json:"expiredSubscriptions"`
	TotalRevenue         decimal.Decimal `json:"totalRevenue"`
	PendingTransactions  int64           `json:"pendingTransactions"`
	NewThisMonth         int64           `json:"newThisMonth"`
	NewLastMonth         int64           `json:"newLastMonth"`
	// MonthlyGrowth is the percentage change in new subscriptions versus the
	// previous calendar month.
	MonthlyGrowth float64 `json:"monthlyGrowth"`
}

// ServiceParams groups dependencies for the dashboard service.
type ServiceParams struct {
	Repo Repository
	Now  func() time.Time
}

// Service aggregates admin dashboard statistics from the primary store.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a dashboard service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repo, now: now}, nil
}

// Stats assembles the dashboard snapshot.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	users, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting users")
	}

	byStatus, err := s.repo.CountSubscriptionsByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting subscriptions")
	}

	revenue, err := s.repo.CompletedRevenue(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing revenue")
	}

	pendingTxns, err := s.repo.CountPendingTransactions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting pending transactions")
	}

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prevMonthStart := monthStart.AddDate(0, -1, 0)

	newThisMonth, err := s.repo.CountSubscriptionsCreatedBetween(ctx, monthStart, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting new subscriptions")
	}
	newLastMonth, err := s.repo.CountSubscriptionsCreatedBetween(ctx, prevMonthStart, monthStart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting new subscriptions")
	}

	return &Stats{
		TotalUsers:           users,
		ActiveSubscriptions:  byStatus[enums.SubscriptionStatusActive],
		TrialSubscriptions:   byStatus[enums.SubscriptionStatusTrialing],
		PendingApprovals:     byStatus[enums.SubscriptionStatusPendingApproval],
		ExpiredSubscriptions: byStatus[enums.SubscriptionStatusExpired],
		TotalRevenue:         revenue,
		PendingTransactions:  pendingTxns,
		NewThisMonth:         newThisMonth,
		NewLastMonth:         newLastMonth,
		MonthlyGrowth:        growthPercent(newThisMonth, newLastMonth),
	}, nil
}

func growthPercent(current, previous int64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}
