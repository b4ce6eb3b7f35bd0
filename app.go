package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirphl/Omikuji/app/handlers"
	"github.com/amirphl/Omikuji/app/router"
	businessflow "github.com/amirphl/Omikuji/business_flow"
	"github.com/amirphl/Omikuji/config"
	"github.com/amirphl/Omikuji/repository"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	config       *config.ProductionConfig
	logger       *slog.Logger
	router       *router.FiberRouter
	db           *gorm.DB
	redis        *redis.Client
	templateRepo repository.CardTemplateRepository
	catalog      businessflow.CardCatalog
	stopFuncs    []func()
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		// unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger: gormlogger.New(
			slog.NewLogLogger(log.Handler(), slog.LevelWarn),
			gormlogger.Config{
				SlowThreshold:             cfg.SlowQueryTime,
				LogLevel:                  gormLogLevel(cfg.SlowQueryLog),
				IgnoreRecordNotFoundError: true,
			},
		),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
	)
	return db, nil
}

func gormLogLevel(slowQueryLog bool) gormlogger.LogLevel {
	if slowQueryLog {
		return gormlogger.Warn
	}
	return gormlogger.Error
}

// initializeCache returns a redis client when the redis provider is configured, nil otherwise
func initializeCache(cfg config.CacheConfig, log *slog.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connection established", "addr", opt.Addr, "db", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis. The returned func stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, log *slog.Logger) func() {
	if client == nil {
		return func() {}
	}
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn("Redis healthcheck failed", "error", err)
				}
				c()
			}
		}
	}()
	return cancel
}

func initializeApplication(cfg *config.ProductionConfig, log *slog.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, log)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval, log))

	// Initialize repositories
	templateRepo := repository.NewCardTemplateRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	cardRepo := repository.NewSessionCardRepository(db)
	dailyRepo := repository.NewDailyOutcomeRepository(db)
	tx := repository.NewTransactor(db)

	// Initialize business flows
	clock := businessflow.NewSystemClock()
	rng := businessflow.NewRandomSource()
	catalog := businessflow.NewCardCatalog(templateRepo, rc, cfg.Cache.RedisPrefix, cfg.Cache.DefaultTTL, log)

	sessionFlow := businessflow.NewSessionFlow(sessionRepo, cardRepo, cfg.Game, clock, log)
	drawFlow := businessflow.NewDrawFlow(sessionRepo, cardRepo, catalog, tx, rng, clock, cfg.Game, log)
	finalizeFlow := businessflow.NewFinalizeFlow(sessionRepo, cardRepo, dailyRepo, tx, rng, clock, cfg.Game, log)
	dailyFlow := businessflow.NewDailyOutcomeFlow(sessionRepo, dailyRepo, clock, log)
	statsFlow := businessflow.NewStatsFlow(sessionRepo, dailyRepo, templateRepo, clock, cfg.Game, log)

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(sessionFlow, drawFlow, finalizeFlow, dailyFlow)
	statsHandler := handlers.NewStatsHandler(statsFlow, dailyFlow)

	checks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}

	appRouter := router.NewFiberRouter(cfg, log, sessionHandler, statsHandler, checks)

	return &Application{
		config:       cfg,
		logger:       log,
		router:       appRouter,
		db:           db,
		redis:        rc,
		templateRepo: templateRepo,
		catalog:      catalog,
		stopFuncs:    stopFuncs,
	}, nil
}

// run serves HTTP until a shutdown signal arrives
func (a *Application) run() error {
	a.router.SetupRoutes()

	errCh := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
		errCh <- a.router.Start(address)
	}()

	sigCh := make(chan struct{})
	go func() {
		sig := waitForSignal()
		a.logger.Info("Shutting down gracefully", "signal", sig.String())
		close(sigCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-sigCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", "error", err)
	}

	a.logger.Info("Server stopped")
	return nil
}

// close stops background workers and releases connections
func (a *Application) close() {
	for _, fn := range a.stopFuncs {
		fn()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
