package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/beacon/internal/config"
	"github.com/MrSnakeDoc/beacon/internal/connect"
	"github.com/MrSnakeDoc/beacon/internal/domain"
	"github.com/MrSnakeDoc/beacon/internal/httpserver"
	"github.com/MrSnakeDoc/beacon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/beacon/internal/logger"
	"github.com/MrSnakeDoc/beacon/internal/metrics"
	"github.com/MrSnakeDoc/beacon/internal/mongo"
	"github.com/MrSnakeDoc/beacon/internal/probe"
	"github.com/MrSnakeDoc/beacon/internal/reconcile"
	"github.com/MrSnakeDoc/beacon/internal/redis"
	"github.com/MrSnakeDoc/beacon/internal/registry"
	"github.com/MrSnakeDoc/beacon/internal/scheduler"
	"github.com/MrSnakeDoc/beacon/internal/seed"
	"github.com/MrSnakeDoc/beacon/internal/store"
	"github.com/MrSnakeDoc/beacon/internal/store/memory"
	mongostore "github.com/MrSnakeDoc/beacon/internal/store/mongo"
	redisstore "github.com/MrSnakeDoc/beacon/internal/store/redis"
	"github.com/MrSnakeDoc/beacon/internal/utils"
	"github.com/MrSnakeDoc/beacon/internal/version"
)

type App struct {
	cfg        *config.Config
	logger     logger.Logger
	server     *httpserver.Server
	registry   *registry.Registry
	poller     *scheduler.Poller
	closeStore func(ctx context.Context)
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize the store early - fail fast if unavailable
	st, closeStore, err := openStore(context.Background(), cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open %s store: %v", cfg.Store, err)
		os.Exit(1)
	}
	loggerClient.Info("store initialized successfully", logger.String("store", cfg.Store))

	m := metrics.New()

	reg := registry.New(st, loggerClient.With(logger.String("component", "registry")),
		registry.WithObserver(m))

	prober := probe.New(cfg.ProbeTimeout, loggerClient.With(logger.String("component", "prober")),
		probe.WithObserver(m))

	reconciler := reconcile.New(prober, reg, loggerClient.With(logger.String("component", "reconciler")),
		reconcile.WithConcurrency(cfg.ProbeConcurrency),
		reconcile.WithObserver(m))

	poller := scheduler.NewPoller(reconciler, reg, loggerClient, cfg.PollInterval)
	poller.OnPass(func(services []domain.Service) {
		m.SetServices(domain.Tally(services))
	})

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		AllowedHosts:    cfg.AllowedHosts,
		AdminCIDRS:      cfg.AdminCIDRS,
		OpsCIDRS:        cfg.OpsCIDRS,
		TrustProxy:      cfg.TrustProxy,
		AdminRateBurst:  cfg.AdminRateBurst,
		AdminRatePerMin: cfg.AdminRatePerMin,
		Registry:        reg,
		Reconciler:      reconciler,
		Refresher:       poller,
		Metrics:         m,
		StoreKind:       cfg.Store,
		PollInterval:    cfg.PollInterval,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:        cfg,
		logger:     loggerClient,
		server:     server,
		registry:   reg,
		poller:     poller,
		closeStore: closeStore,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Beacon v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Beacon %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Seed an empty registry (optional)
	if a.cfg.SeedFile != "" {
		seeder := seed.NewSeeder(a.cfg.SeedFile, a.registry, a.logger.With(logger.String("component", "seed")))
		if _, err := seeder.Seed(ctx); err != nil {
			a.logger.Warn("seeding failed, starting with the current registry",
				logger.String("file", a.cfg.SeedFile),
				logger.Error(err))
		}
	}

	// Start the background poller (serves manual refreshes even when the ticker is disabled)
	a.poller.Start(ctx)
	a.logger.Info("poller started",
		logger.Duration("interval", a.cfg.PollInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.poller.Stop()
		a.closeStore(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// Stop poller after the server so no refresh is queued against a closed store
	a.poller.Stop()

	a.closeStore(shutdownCtx)

	a.logger.Info("✅ Beacon stopped cleanly")
	return nil
}

// openStore connects the configured backend and returns it with its closer.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Store, func(context.Context), error) {
	retry := connect.Policy{
		ConnectTimeout: cfg.ConnectTimeout,
		RetryInterval:  cfg.RetryInterval,
		MaxWait:        cfg.MaxWait,
		PingTimeout:    cfg.PingTimeout,
		WarnThreshold:  cfg.WarnThreshold,
	}

	switch cfg.Store {
	case config.StoreMongo:
		log.Infof("Connecting to Mongo at %s", mongo.RedactURI(cfg.MongoURI))
		client, err := mongo.New(ctx, mongo.ConnectOptions{
			URI:            cfg.MongoURI,
			AppName:        "beacon",
			ConnectTimeout: cfg.MongoConnectTimeout,
			MaxPoolSize:    uint64(cfg.MongoPoolSize),
			Retry:          retry,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		s := mongostore.NewStore(client, cfg.MongoDatabase, cfg.MongoCollection)
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		return s, func(ctx context.Context) {
			if err := client.Disconnect(ctx); err != nil {
				log.Warnf("failed to close mongo: %v", err)
				return
			}
			log.Info("✅ Mongo closed cleanly")
		}, nil

	case config.StoreRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(ctx, redis.ConnectOptions{
			Addr:         cfg.RedisAddr,
			User:         cfg.RedisUser,
			Password:     cfg.RedisPassword,
			RedisDB:      cfg.RedisDB,
			DialTimeout:  cfg.RedisDT,
			ReadTimeout:  cfg.RedisRT,
			WriteTimeout: cfg.RedisWT,
			PoolSize:     cfg.RedisPoolSize,
			Retry:        retry,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewStore(client, cfg.RedisPrefix), func(context.Context) {
			utils.CloseLogged(client, "redis", log)
		}, nil

	case config.StoreMemory:
		log.Warn("using in-memory store, services are lost on restart")
		return memory.New(), func(context.Context) {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
