package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/subtrackhq/subtrack-backend/internal/campaigns"
	"github.com/subtrackhq/subtrack-backend/internal/emailtemplates"
	"github.com/subtrackhq/subtrack-backend/internal/emailworker"
	"github.com/subtrackhq/subtrack-backend/internal/mailer"
	"github.com/subtrackhq/subtrack-backend/internal/users"
	"github.com/subtrackhq/subtrack-backend/pkg/config"
	"github.com/subtrackhq/subtrack-backend/pkg/db"
	"github.com/subtrackhq/subtrack-backend/pkg/logger"
	"github.com/subtrackhq/subtrack-backend/pkg/migrate"
	"github.com/subtrackhq/subtrack-backend/pkg/outbox"
	"github.com/subtrackhq/subtrack-backend/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "email-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "email-worker"

	logg = logger.New(logger.Options{
		ServiceName: "email-worker",
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

	gdb := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gdb), logg)

	usersService, err := users.NewService(users.ServiceParams{Repo: users.NewRepository(gdb)})
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
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

	handler, err := emailworker.NewHandler(emailworker.HandlerParams{
		Templates: templatesService,
		Campaigns: campaignsService,
		Sender:    mailer.NewLogSender(logg),
		From:      cfg.Mailer,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create email handler", err)
		os.Exit(1)
	}

	worker, err := emailworker.NewWorker(pubsubClient.EmailSubscription(), handler, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create email worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  cfg.Service.Kind,
		"subscription": cfg.PubSub.EmailSubscription,
	})
	logg.Info(ctx, "starting email worker")

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "email worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "email worker shutting down gracefully")
}
