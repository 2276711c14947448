package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"donorlink/internal/admission"
	"donorlink/internal/audit"
	donationHandler "donorlink/internal/donation/handler"
	donationMetrics "donorlink/internal/donation/metrics"
	donationService "donorlink/internal/donation/service"
	"donorlink/internal/donor/cache"
	donorHandler "donorlink/internal/donor/handler"
	donorMetrics "donorlink/internal/donor/metrics"
	donorService "donorlink/internal/donor/service"
	"donorlink/internal/eligibility"
	jwttoken "donorlink/internal/jwt_token"
	"donorlink/internal/notification/fanout"
	notificationHandler "donorlink/internal/notification/handler"
	notificationMetrics "donorlink/internal/notification/metrics"
	"donorlink/internal/notification/push"
	notificationService "donorlink/internal/notification/service"
	"donorlink/internal/platform/config"
	"donorlink/internal/platform/database"
	"donorlink/internal/platform/httpserver"
	"donorlink/internal/platform/logger"
	"donorlink/internal/platform/metrics"
	redisclient "donorlink/internal/platform/redis"
	requestHandler "donorlink/internal/request/handler"
	requestMetrics "donorlink/internal/request/metrics"
	requestService "donorlink/internal/request/service"
	"donorlink/internal/storage"
	"donorlink/internal/storage/memory"
	"donorlink/internal/storage/postgres"
	httptransport "donorlink/internal/transport/http"
)

const auditQueueSize = 1024

// main wires high-level dependencies and runs the HTTP server alongside the
// push dispatcher and the audit worker. Business logic lives in the internal
// service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var checks []httptransport.HealthCheck

	uow, auditBacking, sqlDB, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if sqlDB != nil {
		defer sqlDB.Close()
		checks = append(checks, httptransport.HealthCheck{Name: "database", Check: sqlDB.PingContext})
	}

	searchCache, closeCache, err := openCache(ctx, cfg, log, &checks)
	if err != nil {
		return err
	}
	defer closeCache()

	channel, closeChannel, err := openPushChannel(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeChannel()

	auditQueue := audit.NewQueue(auditBacking, auditQueueSize)
	publisher := audit.NewPublisher(auditQueue, audit.WithLogger(log))
	evaluator := eligibility.New(cfg.Cooldown())
	notifyMetrics := notificationMetrics.New()

	dispatcher := push.NewDispatcher(uow.Stores().Subscriptions, channel,
		push.WithQueueSize(cfg.QueueSize),
		push.WithFallback(push.NewLogChannel(log)),
		push.WithLogger(log),
		push.WithMetrics(notifyMetrics),
	)

	donations, err := donationService.New(uow,
		donationService.WithLogger(log),
		donationService.WithMetrics(donationMetrics.New()),
		donationService.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}
	donors, err := donorService.New(uow, evaluator,
		donorService.WithLogger(log),
		donorService.WithMetrics(donorMetrics.New()),
		donorService.WithAuditPublisher(publisher),
		donorService.WithCache(searchCache),
		donorService.WithPageSizes(cfg.SearchDefaultPage, cfg.SearchMaxPageSize),
	)
	if err != nil {
		return err
	}
	requests, err := requestService.New(uow, fanout.New(evaluator, fanout.WithCeiling(cfg.FanOutCap)),
		requestService.WithLogger(log),
		requestService.WithMetrics(requestMetrics.New()),
		requestService.WithAuditPublisher(publisher),
		requestService.WithPolicy(admission.NewPolicy(cfg.Limit, cfg.Window)),
		requestService.WithDonationRecorder(donations),
		requestService.WithPusher(dispatcher),
		requestService.WithActiveListing(cfg.ActiveWindow, requestService.DefaultActiveLimit),
	)
	if err != nil {
		return err
	}
	notifications, err := notificationService.New(uow,
		notificationService.WithLogger(log),
		notificationService.WithMetrics(notifyMetrics),
		notificationService.WithAuditPublisher(publisher),
		notificationService.WithPusher(dispatcher),
	)
	if err != nil {
		return err
	}

	tokens, err := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:        log,
		Verifier:      jwttoken.NewVerifier(tokens),
		Metrics:       metrics.New(),
		Donors:        donorHandler.New(donors, log),
		Requests:      requestHandler.New(requests, log),
		Notifications: notificationHandler.New(notifications, log),
		Donations:     donationHandler.New(donations, log),
		HealthChecks:  checks,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting donorlink", "addr", cfg.Addr, "env", cfg.Env, "push_channel", channel.Name())
		return httpserver.Run(gctx, srv)
	})
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return audit.NewQueueWorker(auditQueue, log).Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openStore picks Postgres when DATABASE_URL is set and the in-memory store
// otherwise. The schema must already be migrated with cmd/migrate.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.UnitOfWork, audit.Store, *sql.DB, error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return memory.New(), audit.NewInMemoryStore(), nil, nil
	}
	db, err := database.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, err
	}
	return postgres.New(db), audit.NewPostgresStore(db), db, nil
}

func openCache(ctx context.Context, cfg *config.Config, log *slog.Logger, checks *[]httptransport.HealthCheck) (cache.Cache, func(), error) {
	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return cache.NewMemory(cfg.SearchCacheTTL, cfg.SearchCacheCapacity), func() {}, nil
	}
	*checks = append(*checks, httptransport.HealthCheck{Name: "redis", Check: client.Health})
	return cache.NewRedis(client.Client, cfg.SearchCacheTTL, cache.WithLogger(log)), func() { _ = client.Close() }, nil
}

func openPushChannel(ctx context.Context, cfg *config.Config, log *slog.Logger) (push.Channel, func(), error) {
	brokers := cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		return push.NewLogChannel(log), func() {}, nil
	}
	ch, err := push.NewKafkaChannel(ctx, brokers, cfg.Topic)
	if err != nil {
		return nil, nil, err
	}
	return ch, ch.Close, nil
}
