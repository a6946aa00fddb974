package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glowup/glowup-core/config"
	"github.com/glowup/glowup-core/internal/application/command"
	"github.com/glowup/glowup-core/internal/application/query"
	"github.com/glowup/glowup-core/internal/domain/notification"
	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
	"github.com/glowup/glowup-core/internal/infrastructure/messaging"
	"github.com/glowup/glowup-core/internal/infrastructure/metrics"
	"github.com/glowup/glowup-core/internal/infrastructure/persistence/memory"
	"github.com/glowup/glowup-core/internal/infrastructure/persistence/postgres"
	"github.com/glowup/glowup-core/internal/infrastructure/persistence/redis"
	"github.com/glowup/glowup-core/internal/infrastructure/persistence/sqlite"
	"github.com/glowup/glowup-core/internal/infrastructure/scheduler"
	"github.com/glowup/glowup-core/internal/infrastructure/scheduler/jobs"
	"github.com/glowup/glowup-core/internal/infrastructure/service"
	httpserver "github.com/glowup/glowup-core/internal/interface/http"
	"github.com/glowup/glowup-core/internal/interface/http/handlers"
	"github.com/glowup/glowup-core/pkg/logger"
)

// defaultRebuildLimit bounds the leaderboard warm-up when unconfigured.
const defaultRebuildLimit = 1000

// progressStore is what every storage driver provides.
type progressStore interface {
	scoring.ProgressRepository
	service.LeaderboardSource
}

// bus is the event bus plus its shutdown.
type bus interface {
	shared.EventBus
	Close() error
}

// App holds the wired service.
type App struct {
	Config *config.Config
	Logger *logger.Logger
	Tables *scoring.Tables

	Store         progressStore
	Notifications notification.Repository
	Cache         *redis.Cache
	Bus           bus
	Metrics       *metrics.Metrics
	Leaderboard   *service.LeaderboardService
	Health        *handlers.CompositeHealthChecker
	Scheduler     *scheduler.Scheduler
	Server        *httpserver.Server

	closers []func()
}

// newLogger builds the process logger; flagLevel wins over the config.
func newLogger(cfg *config.Config, flagLevel string) *logger.Logger {
	level := cfg.Observability.LogLevel
	if flagLevel != "" {
		level = flagLevel
	}
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(level),
		AddCaller: cfg.App.Debug,
	}).With(logger.String("service", cfg.App.Name))
}

// loadTables returns the active scoring tables. In strict mode an invariant
// violation panics; otherwise it is logged and the lookup falls back.
func loadTables(path string, strict bool, log *logger.Logger) (*scoring.Tables, error) {
	handler := func(err error) {
		log.Error("scoring table invariant violated", logger.Err(err))
	}
	if strict {
		handler = scoring.PanicOnInvariant
	}
	opt := scoring.WithInvariantHandler(handler)

	if path == "" {
		return scoring.DefaultTables().WithOptions(opt), nil
	}
	return scoring.LoadTablesTOML(path, opt)
}

// Build wires storage, cache, bus, metrics, handlers and the HTTP server.
// Call Close to release everything.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, tablesFile string) (_ *App, err error) {
	app := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if tablesFile == "" {
		tablesFile = cfg.Scoring.TablesFile
	}
	if app.Tables, err = loadTables(tablesFile, cfg.Scoring.StrictInvariants, log); err != nil {
		return nil, fmt.Errorf("load scoring tables: %w", err)
	}

	app.Health = handlers.NewCompositeHealthChecker(cfg.App.Version)

	if err = app.openStore(ctx); err != nil {
		return nil, err
	}
	app.connectCache(ctx)

	reg := metrics.NewRegistry()
	app.Metrics = metrics.New(reg)

	if err = app.startBus(); err != nil {
		return nil, err
	}

	// A nil *LeaderboardCache must not become a non-nil interface.
	var cache scoring.Leaderboard
	if app.Cache != nil {
		cache = redis.NewLeaderboardCache(app.Cache)
	}
	app.Leaderboard = service.NewLeaderboardService(app.Store, cache, log.Slog())
	if err = app.scheduleJobs(ctx); err != nil {
		return nil, err
	}

	// Handlers see the breaker-guarded service, or nothing without a cache.
	var ranking scoring.Leaderboard
	if app.Leaderboard.HasCache() {
		ranking = app.Leaderboard
	}
	app.Server = app.newServer(reg, ranking)
	return app, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	a.Logger.Info("opening progress store", logger.String("driver", string(cfg.Storage.Driver)))

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		conn, err := postgres.Connect(ctx, cfg.Database.URL, postgres.PoolOptionsFrom(cfg.Database))
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, conn.Close)

		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		a.Logger.Info("migrations applied", logger.Int("count", applied))

		a.Store = postgres.NewProgressRepository(conn)
		a.Notifications = postgres.NewNotificationRepository(conn)
		a.Health.AddCheck("postgres", handlers.PingCheck(conn))

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })

		a.Store = sqlite.NewProgressRepository(db)
		a.Notifications = sqlite.NewNotificationRepository(db)
		a.Health.AddCheck("sqlite", handlers.PingCheck(db))

	case config.DriverMemory:
		a.Store = memory.NewProgressRepository()
		a.Notifications = memory.NewNotificationRepository()

	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return nil
}

// connectCache opens Redis when configured. Redis is optional: failures are
// logged and the service runs without the leaderboard cache.
func (a *App) connectCache(ctx context.Context) {
	rc := a.Config.Redis
	if rc.Disabled || (rc.URL == "" && rc.Host == "") {
		return
	}

	cache, err := redis.NewCache(ctx, rc)
	if err != nil {
		a.Logger.Warn("redis unavailable, leaderboard cache disabled", logger.Err(err))
		return
	}
	a.Cache = cache
	a.closers = append(a.closers, func() { _ = cache.Close() })
	a.Health.AddCheck("redis", handlers.PingCheck(cache))
}

func (a *App) startBus() error {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.Logger = a.Logger.Slog()
	local.Observer = a.Metrics

	if a.Cache != nil && a.Config.Redis.EventsEnabled {
		rb, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(a.Cache.Client()),
			ChannelName:    a.Config.Redis.EventsChannel,
			LocalBusConfig: local,
			Logger:         a.Logger.Slog(),
		})
		if err != nil {
			return fmt.Errorf("start redis event bus: %w", err)
		}
		a.Bus = rb
	} else {
		a.Bus = messaging.NewInMemoryEventBus(local)
	}
	// Runs before the cache closes: closers run in reverse.
	a.closers = append(a.closers, func() { _ = a.Bus.Close() })

	audit := a.Logger.With(logger.Component("events"))
	return a.Bus.SubscribeAll(func(e shared.Event) error {
		audit.Debug("domain event",
			logger.String("type", string(e.EventType())),
			logger.String("aggregate_id", e.AggregateID()),
		)
		return nil
	})
}

func (a *App) newServer(reg *prometheus.Registry, ranking scoring.Leaderboard) *httpserver.Server {
	cfg := a.Config
	notifier := service.NewNotificationService(a.Notifications, a.Bus, a.Logger.Slog())

	var features command.FeatureGate
	if cfg.Features != nil {
		features = cfg.Features
	}
	celebrations := a.Logger.With(logger.Component("celebration"))

	addPoints := command.NewAddPointsHandler(command.AddPointsDeps{
		Tables:         a.Tables,
		ProgressRepo:   a.Store,
		Notifier:       notifier,
		Leaderboard:    ranking,
		EventPublisher: a.Bus,
		Features:       features,
		Metrics:        a.Metrics,
		Celebrate: func(_ context.Context, c command.Celebration) {
			celebrations.Info("level up",
				logger.UserID(c.UserID),
				logger.LevelField(c.Level.Level),
				logger.String("title", c.Level.Title),
			)
		},
		Logger: a.Logger,
	}, command.AddPointsHandlerConfig{
		MaxAttempts: cfg.Scoring.MaxWriteAttempts,
	})

	deps := httpserver.Dependencies{
		Tables:         a.Tables,
		CreateProgress: command.NewCreateProgressHandler(a.Store, a.Bus, a.Logger),
		AddPoints:      addPoints,
		RecordActivity: command.NewRecordActivityHandler(a.Tables, a.Store, a.Bus, features, a.Metrics, a.Logger, cfg.Scoring.MaxWriteAttempts),
		GetProgress:    query.NewGetProgressHandler(a.Tables, a.Store, ranking),
		GetLeaderboard: query.NewGetLeaderboardHandler(a.Tables, a.Leaderboard),
		Notifications:  notifier,
		HealthChecker:  a.Health,
		Logger:         a.Logger,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}
	return httpserver.NewServer(httpserver.ConfigFrom(cfg.HTTP), deps)
}

// scheduleJobs warms the leaderboard cache and registers its periodic
// rebuild. Jobs run once StartJobs is called.
func (a *App) scheduleJobs(ctx context.Context) error {
	a.Scheduler = scheduler.New(scheduler.Config{
		Logger:   a.Logger.Slog(),
		Observer: a.Metrics,
	})
	if !a.Leaderboard.HasCache() {
		return nil
	}

	limit := a.Config.Jobs.LeaderboardRebuildLimit
	if limit <= 0 {
		limit = defaultRebuildLimit
	}
	if n, err := a.Leaderboard.Rebuild(ctx, limit); err != nil {
		a.Logger.Warn("leaderboard warm-up failed", logger.Err(err))
	} else {
		a.Logger.Info("leaderboard cache warmed", logger.Int("entries", n))
	}

	interval := a.Config.Jobs.LeaderboardRebuildInterval
	if interval <= 0 {
		return nil
	}
	job := jobs.NewRebuildLeaderboardJob(a.Leaderboard, jobs.RebuildLeaderboardConfig{Limit: limit}, a.Logger.Slog())
	return a.Scheduler.Register(job, scheduler.Every(interval))
}

// StartJobs starts the background scheduler; Close stops it.
func (a *App) StartJobs(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = a.Scheduler.Stop() })
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
