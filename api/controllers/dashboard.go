package controllers

import (
	"context"
	"net/http"

	"github.com/subtrackhq/subtrack-backend/api/responses"
	dashboardsvc "github.com/subtrackhq/subtrack-backend/internal/dashboard"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

// DashboardService describes the stats surface used by the HTTP controllers.
type DashboardService interface {
	Stats(ctx context.Context) (*dashboardsvc.Stats, error)
}

// AdminDashboardStats returns the aggregate numbers for the admin landing
// page. Stats are computed live from the primary store.
func AdminDashboardStats(svc DashboardService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}

		stats, err := svc.Stats(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
