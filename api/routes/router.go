package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/subtrackhq/subtrack-backend/api/controllers"
	"github.com/subtrackhq/subtrack-backend/api/middleware"
	"github.com/subtrackhq/subtrack-backend/pkg/auth/session"
	"github.com/subtrackhq/subtrack-backend/pkg/config"
	"github.com/subtrackhq/subtrack-backend/pkg/db"
	"github.com/subtrackhq/subtrack-backend/pkg/logger"
	pkgredis "github.com/subtrackhq/subtrack-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs. Pingers may be nil; the
// readiness endpoint reports them as skipped.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      db.Pinger
	Redis   *pkgredis.Client
	PubSub  controllers.Pinger
	Session session.AccessSessionChecker

	Gatherer prometheus.Gatherer

	Auth          controllers.AuthService
	Users         controllers.UserService
	Plans         controllers.PlanService
	Subscriptions controllers.SubscriptionService
	Billing       controllers.BillingService
	Templates     controllers.TemplateService
	Campaigns     controllers.CampaignService
	Dashboard     controllers.DashboardService
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.BaseURL),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":     deps.DB,
			"redis":  readinessPinger(deps.Redis),
			"pubsub": deps.PubSub,
		}))
	})

	r.Method(http.MethodGet, "/metrics", metricsHandler(deps.Gatherer))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/magic-link", controllers.AuthMagicLink(deps.Auth, logg))
		r.Post("/verify", controllers.AuthVerify(deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, deps.Session, logg)).
			Post("/logout", controllers.AuthLogout(deps.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Session, logg))

		r.Get("/plans", controllers.PublicPlansList(deps.Plans, logg))
		r.Get("/users/me", controllers.Me(deps.Users, logg))

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", controllers.SubscriptionCreate(deps.Subscriptions, logg))
			r.Get("/me", controllers.SubscriptionsListMine(deps.Subscriptions, logg))
		})

		r.Route("/billing", func(r chi.Router) {
			r.Get("/invoices/me", controllers.InvoicesListMine(deps.Billing, logg))
			r.Get("/invoices/{invoiceId}/transactions", controllers.InvoiceTransactionsMine(deps.Billing, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Session, logg))
		r.Use(middleware.RequireRole("admin", logg))
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, logg))
		}

		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.AdminUsersList(deps.Users, logg))
			r.Post("/", controllers.AdminUserCreate(deps.Users, logg))
			r.Get("/{userId}", controllers.AdminUserGet(deps.Users, logg))
			r.Post("/{userId}/active", controllers.AdminUserSetActive(deps.Users, logg))
		})

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", controllers.AdminPlansList(deps.Plans, logg))
			r.Post("/", controllers.AdminPlanCreate(deps.Plans, logg))
			r.Get("/{planId}", controllers.AdminPlanGet(deps.Plans, logg))
			r.Put("/{planId}", controllers.AdminPlanUpdate(deps.Plans, logg))
			r.Post("/{planId}/active", controllers.AdminPlanSetActive(deps.Plans, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", controllers.AdminSubscriptionsList(deps.Subscriptions, logg))
			r.Get("/{subscriptionId}", controllers.AdminSubscriptionGet(deps.Subscriptions, logg))
			r.Get("/{subscriptionId}/events", controllers.AdminSubscriptionEvents(deps.Subscriptions, logg))
			r.Post("/{subscriptionId}/transition", controllers.AdminSubscriptionTransition(deps.Subscriptions, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", controllers.AdminInvoicesList(deps.Billing, logg))
			r.Get("/{invoiceId}/transactions", controllers.AdminInvoiceTransactions(deps.Billing, logg))
			r.Post("/{invoiceId}/mark-paid", controllers.AdminInvoiceMarkPaid(deps.Billing, logg))
		})

		r.Route("/email-templates", func(r chi.Router) {
			r.Get("/", controllers.AdminTemplatesList(deps.Templates, logg))
			r.Post("/", controllers.AdminTemplateCreate(deps.Templates, logg))
			r.Get("/{templateId}", controllers.AdminTemplateGet(deps.Templates, logg))
			r.Put("/{templateId}", controllers.AdminTemplateUpdate(deps.Templates, logg))
			r.Delete("/{templateId}", controllers.AdminTemplateDelete(deps.Templates, logg))
			r.Post("/{templateId}/active", controllers.AdminTemplateSetActive(deps.Templates, logg))
			r.Post("/{templateId}/preview", controllers.AdminTemplatePreview(deps.Templates, logg))
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", controllers.AdminCampaignsList(deps.Campaigns, logg))
			r.Post("/", controllers.AdminCampaignCreate(deps.Campaigns, logg))
			r.Get("/{campaignId}", controllers.AdminCampaignGet(deps.Campaigns, logg))
			r.Post("/{campaignId}/schedule", controllers.AdminCampaignSchedule(deps.Campaigns, logg))
		})

		r.Get("/dashboard/stats", controllers.AdminDashboardStats(deps.Dashboard, logg))
	})

	return r
}

// readinessPinger keeps a nil *redis.Client out of the checks map so the
// readiness endpoint reports it as skipped instead of panicking.
func readinessPinger(client *pkgredis.Client) controllers.Pinger {
	if client == nil {
		return nil
	}
	return client
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
