package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/subtrackhq/subtrack-backend/api/routes"
	authsvc "github.com/subtrackhq/subtrack-backend/internal/auth"
	"github.com/subtrackhq/subtrack-backend/internal/billing"
	"github.com/subtrackhq/subtrack-backend/internal/campaigns"
	"github.com/subtrackhq/subtrack-backend/internal/dashboard"
	"github.com/subtrackhq/subtrack-backend/internal/emailtemplates"
	"github.com/subtrackhq/subtrack-backend/internal/mailer"
	"github.com/subtrackhq/subtrack-backend/internal/plans"
	"github.com/subtrackhq/subtrack-backend/internal/subscriptions"
	"github.com/subtrackhq/subtrack-backend/internal/users"
	"github.com/subtrackhq/subtrack-backend/internal/workflow"
	"github.com/subtrackhq/subtrack-backend/pkg/auth/session"
	"github.com/subtrackhq/subtrack-backend/pkg/config"
	"github.com/subtrackhq/subtrack-backend/pkg/db"
	"github.com/subtrackhq/subtrack-backend/pkg/logger"
	"github.com/subtrackhq/subtrack-backend/pkg/migrate"
	"github.com/subtrackhq/subtrack-backend/pkg/outbox"
	"github.com/subtrackhq/subtrack-backend/pkg/pubsub"
	"github.com/subtrackhq/subtrack-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	gdb := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gdb), logg)

	enqueuer, err := mailer.NewEnqueuer(outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create mail enqueuer", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(users.ServiceParams{Repo: users.NewRepository(gdb)})
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	plansService, err := plans.NewService(plans.ServiceParams{Repo: plans.NewRepository(gdb)})
	if err != nil {
		logg.Error(context.Background(), "failed to create plan service", err)
		os.Exit(1)
	}

	billingService, err := billing.NewService(billing.ServiceParams{Repo: billing.NewRepository(gdb)})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	subscriptionsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:    subscriptions.NewRepository(gdb),
		Plans:   plansService,
		Users:   usersService,
		Billing: billingService,
		Outbox:  outboxService,
		DB:      dbClient,
		Builder: workflow.NewBuilder(nil),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	templatesService, err := emailtemplates.NewService(emailtemplates.ServiceParams{Repo: emailtemplates.NewRepository(gdb)})
	if err != nil {
		logg.Error(context.Background(), "failed to create template service", err)
		os.Exit(1)
	}

	campaignsService, err := campaigns.NewService(campaigns.ServiceParams{
		Repo:       campaigns.NewRepository(gdb),
		Templates:  templatesService,
		Recipients: usersService,
		Outbox:     outboxService,
		DB:         dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create campaign service", err)
		os.Exit(1)
	}

	dashboardService, err := dashboard.NewService(dashboard.ServiceParams{Repo: dashboard.NewRepository(gdb)})
	if err != nil {
		logg.Error(context.Background(), "failed to create dashboard service", err)
		os.Exit(1)
	}

	authService, err := authsvc.NewService(authsvc.ServiceParams{
		Repo:      authsvc.NewRepository(gdb),
		Users:     usersService,
		Mailer:    enqueuer,
		Limiter:   redisClient,
		Sessions:  sessionManager,
		DB:        dbClient,
		JWT:       cfg.JWT,
		MagicLink: cfg.MagicLink,
		RateLimit: cfg.AuthRateLimit,
		BaseURL:   cfg.App.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		PubSub:        pubsubClient,
		Session:       sessionManager,
		Gatherer:      prometheus.DefaultGatherer,
		Auth:          authService,
		Users:         usersService,
		Plans:         plansService,
		Subscriptions: subscriptionsService,
		Billing:       billingService,
		Templates:     templatesService,
		Campaigns:     campaignsService,
		Dashboard:     dashboardService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error shutting down api server", err)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
