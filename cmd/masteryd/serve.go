package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alem-hub/mastery-tracker/config"
	"github.com/alem-hub/mastery-tracker/internal/application/command"
	"github.com/alem-hub/mastery-tracker/internal/application/eventhandler"
	"github.com/alem-hub/mastery-tracker/internal/application/query"
	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/goal"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/infrastructure/messaging"
	"github.com/alem-hub/mastery-tracker/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/mastery-tracker/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/mastery-tracker/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/mastery-tracker/internal/infrastructure/telemetry"
	httpapi "github.com/alem-hub/mastery-tracker/internal/interface/http"
	"github.com/alem-hub/mastery-tracker/internal/interface/http/handlers"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
	"github.com/alem-hub/mastery-tracker/pkg/retry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

// runServe wires the application and blocks until ctx is cancelled or the
// server fails.
func runServe(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := setupLogger(cfg, os.Stdout)
	defer func() { _ = log.Sync() }()

	log.Info("starting mastery tracker",
		logger.String("version", cfg.App.Version),
		logger.String("storage", cfg.Storage.Driver),
		logger.Bool("redis", cfg.Redis.Enabled),
		logger.String("timezone", cfg.Analytics.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. TRACING
	// ─────────────────────────────────────────────────────────────────────────
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.Observability.TracingEnabled,
		ServiceName:  cfg.App.Name,
		Environment:  string(cfg.App.Environment),
		Version:      cfg.App.Version,
		SampleRatio:  cfg.Observability.TracingSampleRatio,
		OTLPEndpoint: cfg.Observability.TracingEndpoint,
		OTLPInsecure: cfg.Observability.TracingInsecure,
		Writer:       os.Stderr,
	}, log)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. APPLICATION
	// ─────────────────────────────────────────────────────────────────────────
	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SERVE UNTIL SIGNALLED
	// ─────────────────────────────────────────────────────────────────────────
	errCh := a.server.StartAsync()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error("http server stopped", logger.Err(serveErr))
		}
	}

	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", logger.Err(err))
	}
	a.close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", logger.Err(err))
	}

	log.Info("shutdown completed")
	return serveErr
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

// store is the persistence surface the handlers need, whichever driver
// backs it.
type store interface {
	mastery.UnitOfWork
	mastery.Repository
	activity.Repository
	goal.Repository
	handlers.Pinger
}

// postgresStore joins the two postgres repositories behind one value.
type postgresStore struct {
	*postgres.ProgressRepository
	*postgres.GoalRepository
	conn *postgres.Connection
}

func (s postgresStore) Ping(ctx context.Context) error { return s.conn.Ping(ctx) }

type app struct {
	server  *httpapi.Server
	bus     *messaging.InMemoryEventBus
	closers []func()
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp opens storage and the optional cache, then assembles the
// command, query and HTTP layers.
func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	checker := handlers.NewHealthChecker(cfg.App.Version)
	checker.AddCheck("storage", handlers.PingCheck(st))

	// The cache is optional: on failure the heatmap reads storage directly.
	var heatmapCache query.HeatmapCache
	var invalidator eventhandler.HeatmapInvalidator
	if cfg.Redis.Enabled {
		cache, err := redis.NewCache(ctx, redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		} else {
			a.closers = append(a.closers, func() { _ = cache.Close() })
			hc := redis.NewHeatmapCache(cache, cfg.Redis.HeatmapTTL, log)
			heatmapCache, invalidator = hc, hc
			checker.AddOptionalCheck("redis", handlers.PingCheck(cache))
			log.Info("Redis connection established")
		}
	}

	// ─── Event bus ───────────────────────────────────────────────────────────
	a.bus = messaging.NewInMemoryEventBus(log)
	a.bus.Use(messaging.TimeoutMiddleware(5 * time.Second))
	a.closers = append(a.closers, func() { _ = a.bus.Close() })

	if invalidator != nil {
		if err := eventhandler.NewOnProgressRecordedHandler(invalidator, log).Register(a.bus); err != nil {
			return nil, fmt.Errorf("register progress handler: %w", err)
		}
	}
	if err := eventhandler.NewOnLevelChangedHandler(st, log).Register(a.bus); err != nil {
		return nil, fmt.Errorf("register level handler: %w", err)
	}

	// ─── Commands and queries ────────────────────────────────────────────────
	rc := command.RecorderConfig{Policy: cfg.Mastery}
	gc := command.GoalHandlerConfig{}
	qc := query.Config{
		Policy:                 cfg.Mastery,
		Weights:                cfg.Ranking.Weights,
		DefaultRecommendations: cfg.Ranking.DefaultLimit,
		MaxLimit:               cfg.Ranking.MaxLimit,
		Location:               cfg.Analytics.Location,
	}

	heatmap := query.NewGetHeatmapHandler(st, heatmapCache, qc)
	recommendations := query.NewGetRecommendationsHandler(st, st, qc)
	streak := query.NewGetStreakHandler(st, qc)
	stats := query.NewGetWindowStatsHandler(st, qc)

	// ─── HTTP ────────────────────────────────────────────────────────────────
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.UserIDHeader = cfg.HTTP.UserIDHeader
	serverCfg.Version = cfg.App.Version
	serverCfg.DefaultRecommendations = cfg.Ranking.DefaultLimit
	serverCfg.DefaultWindowDays = cfg.Analytics.DefaultWindowDays

	a.server = httpapi.NewServer(serverCfg, httpapi.Dependencies{
		RecordAssessment:   command.NewRecordAssessmentHandler(st, a.bus, log, rc),
		RecordStudySession: command.NewRecordStudySessionHandler(st, a.bus, log, rc),
		CreateGoal:         command.NewCreateGoalHandler(st, a.bus, log, gc),
		DeactivateGoal:     command.NewDeactivateGoalHandler(st, a.bus, log, gc),
		GetHeatmap:         heatmap,
		GetRecommendations: recommendations,
		GetStreak:          streak,
		GetWindowStats:     stats,
		GetTopicMastery:    query.NewGetTopicMasteryHandler(st, st, qc),
		ListStudyEvents:    query.NewListStudyEventsHandler(st, qc),
		ListGoals:          query.NewListGoalsHandler(st, st, qc),
		GetDashboard:       query.NewGetDashboardHandler(heatmap, recommendations, streak, stats, qc),
		HealthChecker:      checker,
		Logger:             log,
	})
	return a, nil
}

// openStore opens the configured backend. Postgres is dialed with retries
// and migrated; SQLite migrates on open.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		conn, err := connectPostgres(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", logger.Int("applied", applied))

		st := postgresStore{
			ProgressRepository: postgres.NewProgressRepository(conn),
			GoalRepository:     postgres.NewGoalRepository(conn),
			conn:               conn,
		}
		return st, conn.Close, nil

	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		log.Info("sqlite store opened", logger.String("path", cfg.Storage.SQLitePath))
		return st, func() { _ = st.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// connectPostgres dials the pool, retrying while the database comes up.
func connectPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	opts := postgres.DefaultPoolOptions()
	if cfg.Storage.MaxConns > 0 {
		opts.MaxConns = cfg.Storage.MaxConns
	}
	if cfg.Storage.MinConns > 0 {
		opts.MinConns = cfg.Storage.MinConns
	}
	if cfg.Storage.ConnMaxLifetime > 0 {
		opts.MaxConnLifetime = cfg.Storage.ConnMaxLifetime
	}
	if cfg.Storage.ConnMaxIdleTime > 0 {
		opts.MaxConnIdleTime = cfg.Storage.ConnMaxIdleTime
	}

	log.Info("connecting to database")
	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.Connect(ctx, cfg.Storage.DatabaseURL, opts)
	},
		retry.WithMaxAttempts(cfg.Storage.ConnectAttempts),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("database not ready, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")
	return conn, nil
}

func redisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = c.URL
	if c.Host != "" {
		rc.Host = c.Host
	}
	if c.Port > 0 {
		rc.Port = c.Port
	}
	rc.Password = c.Password
	rc.DB = c.DB
	if c.PoolSize > 0 {
		rc.PoolSize = c.PoolSize
	}
	if c.DialTimeout > 0 {
		rc.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		rc.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		rc.WriteTimeout = c.WriteTimeout
	}
	if c.KeyPrefix != "" {
		rc.KeyPrefix = c.KeyPrefix
	}
	return rc
}
