package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/estatedesk/lead-router/api"
	"github.com/estatedesk/lead-router/api/routes"
	"github.com/estatedesk/lead-router/internal/assignments"
	"github.com/estatedesk/lead-router/internal/audit"
	"github.com/estatedesk/lead-router/internal/brokers"
	"github.com/estatedesk/lead-router/internal/cron"
	"github.com/estatedesk/lead-router/internal/leads"
	"github.com/estatedesk/lead-router/internal/notifications"
	"github.com/estatedesk/lead-router/internal/routing"
	"github.com/estatedesk/lead-router/internal/settings"
	"github.com/estatedesk/lead-router/pkg/config"
	"github.com/estatedesk/lead-router/pkg/db"
	"github.com/estatedesk/lead-router/pkg/logger"
	"github.com/estatedesk/lead-router/pkg/metrics"
	"github.com/estatedesk/lead-router/pkg/migrate"
	"github.com/estatedesk/lead-router/pkg/redis"
)

const serviceName = "router-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	transport, err := newTransport(ctx, cfg, logg)
	requireResource(ctx, logg, "notification transport", err)
	defer func() {
		if err := transport.Close(); err != nil {
			logg.Error(context.Background(), "error closing notification transport", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	routingMetrics := metrics.NewRoutingMetrics(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

	conn := dbClient.DB()
	notificationLogs := notifications.NewLogRepository(conn)
	notifier, err := notifications.NewService(notifications.ServiceParams{
		Logger:         logg,
		Transport:      transport,
		Cooldown:       redisClient,
		Logs:           notificationLogs,
		Metrics:        routingMetrics,
		CooldownTTL:    cfg.Notifier.FailureCooldown,
		PublishTimeout: cfg.Notifier.PublishTimeout,
		Producer:       cfg.Notifier.ProducerName,
	})
	requireResource(ctx, logg, "notifier", err)

	settingsProvider, err := settings.NewProvider(settings.ProviderParams{
		Logger:     logg,
		Repository: settings.NewRepository(conn),
		Defaults:   cfg.Routing,
	})
	requireResource(ctx, logg, "settings", err)

	recorder, err := audit.NewRecorder(audit.RecorderParams{Logger: logg, Repository: audit.NewRepository(conn)})
	requireResource(ctx, logg, "audit", err)

	engine, err := routing.NewEngine(routing.EngineParams{
		Logger:      logg,
		DB:          dbClient,
		Settings:    settingsProvider,
		Assignments: assignments.NewRepository(conn),
		Brokers:     brokers.NewSelector(conn),
		Leads:       leads.NewRepository(conn),
		Audit:       recorder,
		Notifier:    notifier,
		Metrics:     routingMetrics,
		BatchSize:   cfg.Scheduler.BatchSize,
		Lookback:    cfg.Scheduler.BackfillLookback,
		Templates: routing.Templates{
			Assigned: cfg.Notifier.AssignedTemplate,
			LostLead: cfg.Notifier.LostLeadTemplate,
		},
	})
	requireResource(ctx, logg, "routing engine", err)

	scheduler, err := newScheduler(cfg, logg, engine, notificationLogs, redisClient, cronMetrics)
	requireResource(ctx, logg, "scheduler", err)

	checks := []routes.Check{
		{Name: "database", Pinger: dbClient},
		{Name: "redis", Pinger: redisClient},
	}
	if transport.Pinger != nil {
		checks = append(checks, routes.Check{Name: "transport", Pinger: transport.Pinger})
	}
	handler := routes.NewRouter(routes.RouterParams{
		Config:   cfg,
		Logger:   logg,
		Checks:   checks,
		Gatherer: registry,
	})

	logg.Info(logg.WithField(ctx, "transport", transport.Name()), "starting router worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return scheduler.Run(groupCtx)
	})
	group.Go(func() error {
		return api.Serve(groupCtx, logg, cfg.Ops.ListenAddr, handler)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "router worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "router worker shutting down gracefully")
}

func newScheduler(
	cfg *config.Config,
	logg *logger.Logger,
	engine *routing.Engine,
	logs notifications.LogRepository,
	redisClient *redis.Client,
	cronMetrics *metrics.CronJobMetrics,
) (*cron.Service, error) {
	backfill, err := cron.NewBackfillJob(logg, engine)
	if err != nil {
		return nil, err
	}
	escalation, err := cron.NewEscalationJob(logg, engine)
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewNotificationRetentionJob(cron.NotificationRetentionJobParams{
		Logger:        logg,
		Repository:    logs,
		Markers:       redisClient,
		RetentionDays: cfg.Notifier.LogRetentionDays,
	})
	if err != nil {
		return nil, err
	}

	var lock cron.Lock
	if cfg.Scheduler.SingleFlight {
		lock, err = cron.NewRedisLock(redisClient, redisClient.LockKey(fmt.Sprintf("scheduler:%s", envOrLocal(cfg.App.Env))), 0)
		if err != nil {
			return nil, err
		}
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(backfill, escalation, retention),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Scheduler.Interval,
	})
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
