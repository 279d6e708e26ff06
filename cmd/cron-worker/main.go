package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	authsvc "github.com/subtrackhq/subtrack-backend/internal/auth"
	"github.com/subtrackhq/subtrack-backend/internal/billing"
	"github.com/subtrackhq/subtrack-backend/internal/campaigns"
	"github.com/subtrackhq/subtrack-backend/internal/cron"
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
	"github.com/subtrackhq/subtrack-backend/pkg/metrics"
	"github.com/subtrackhq/subtrack-backend/pkg/migrate"
	"github.com/subtrackhq/subtrack-backend/pkg/outbox"
	"github.com/subtrackhq/subtrack-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	gdb := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gdb), logg)

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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}
	enqueuer, err := mailer.NewEnqueuer(outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create mail enqueuer", err)
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

	trialJob, err := cron.NewTrialExpiryJob(cron.TrialExpiryJobParams{Logger: logg, Subscriptions: subscriptionsService})
	if err != nil {
		logg.Error(context.Background(), "failed to create trial expiry job", err)
		os.Exit(1)
	}
	overdueJob, err := cron.NewInvoiceOverdueJob(cron.InvoiceOverdueJobParams{Logger: logg, Billing: billingService})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice overdue job", err)
		os.Exit(1)
	}
	dispatchJob, err := cron.NewCampaignDispatchJob(cron.CampaignDispatchJobParams{Logger: logg, Campaigns: campaignsService})
	if err != nil {
		logg.Error(context.Background(), "failed to create campaign dispatch job", err)
		os.Exit(1)
	}
	cleanupJob, err := cron.NewTokenCleanupJob(cron.TokenCleanupJobParams{Logger: logg, Auth: authService})
	if err != nil {
		logg.Error(context.Background(), "failed to create token cleanup job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(trialJob, overdueJob, dispatchJob, cleanupJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
