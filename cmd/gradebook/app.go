package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/school-hub/gradebook/config"
	"github.com/school-hub/gradebook/internal/application/command"
	"github.com/school-hub/gradebook/internal/application/eventhandler"
	"github.com/school-hub/gradebook/internal/application/query"
	"github.com/school-hub/gradebook/internal/domain/assessment"
	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/internal/infrastructure/messaging"
	"github.com/school-hub/gradebook/internal/infrastructure/persistence/postgres"
	"github.com/school-hub/gradebook/internal/infrastructure/persistence/redis"
	"github.com/school-hub/gradebook/pkg/circuitbreaker"
	"github.com/school-hub/gradebook/pkg/logger"
	"github.com/school-hub/gradebook/pkg/retry"
	"github.com/school-hub/gradebook/pkg/timeutil"
)

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg *config.Config
	log *slog.Logger
	db  *postgres.Connection

	// cache is nil when Redis is disabled or unreachable.
	cache *redis.Cache
	bus   interface {
		shared.EventBus
		Close() error
	}

	periodAverage      *command.CalculatePeriodAverageHandler
	classPeriodAverage *command.CalculateClassPeriodAveragesHandler
	closings           *command.PeriodClosingHandler
	finalResults       *command.FinalResultHandler
	reportCard         *query.GetReportCardHandler
	closingQueries     *query.PeriodClosingHandler

	closers []func()
}

func bootstrap(ctx context.Context) (*app, error) {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	a := &app{cfg: cfg, log: log}
	log.Info("starting gradebook",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	policy := retry.ConnectPolicy(cfg.Database.ConnectAttempts)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("database connection failed, retrying", "attempt", attempt, "delay", delay, logger.Err(err))
	}
	db, err := retry.DoValue(ctx, policy, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	if health, err := db.Health(ctx); err == nil {
		log.Info("database connection established",
			"ping_latency", health.PingLatency,
			"total_conns", health.TotalConns,
			"max_conns", health.MaxConns,
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Redis.Disabled {
		a.cache = connectRedis(ctx, cfg, log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS AND SUBSCRIBERS
	// ─────────────────────────────────────────────────────────────────────────
	local := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		Logger:        log,
		EnableMetrics: cfg.App.Debug,
	})
	a.bus = local
	if a.cache != nil {
		fanout, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Local:  local,
			Client: a.cache.Client(),
			Logger: log,
		})
		if err != nil {
			return nil, a.fail(fmt.Errorf("failed to create event bus: %w", err))
		}
		a.bus = fanout
	}
	a.closers = append(a.closers, func() { _ = a.bus.Close() })

	dispatcherCfg := messaging.DefaultDispatcherConfig(a.bus)
	dispatcherCfg.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherCfg)
	dispatcher.Use(messaging.RecoveryMiddleware(log), messaging.LoggingMiddleware(log))

	var reportCards query.ReportCardCache
	if a.cache != nil {
		reportCards = redis.NewReportCardCache(a.cache, cfg.Grading.ReportCardCacheTTL)
		if err := eventhandler.NewOnResultsChangedHandler(reportCards, log, eventhandler.DefaultResultsChangedConfig()).Subscribe(dispatcher); err != nil {
			return nil, a.fail(err)
		}
	}
	if err := eventhandler.NewOnClosingTransitionedHandler(log).Subscribe(dispatcher); err != nil {
		return nil, a.fail(err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES AND HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	directory := postgres.NewDirectory(db)
	enrollments := postgres.NewEnrollmentReader(db)
	frequency := postgres.NewFrequencyCalculator(db)
	averages := postgres.NewPeriodAverageRepository(db)
	finals := postgres.NewFinalResultRepository(db)
	closings := postgres.NewClosingRepository(db)

	var configs assessment.ConfigRepository = postgres.NewConfigRepository(db)
	if a.cache != nil {
		configs = redis.NewConfigRepository(configs, a.cache, cfg.Grading.ConfigCacheTTL, log)
	}

	clock := timeutil.SystemClock{}
	a.periodAverage = command.NewCalculatePeriodAverageHandler(
		directory, configs, postgres.NewGradeRepository(db), averages, frequency, a.bus, clock, log)
	a.classPeriodAverage = command.NewCalculateClassPeriodAveragesHandler(a.periodAverage, enrollments, log)
	a.closings = command.NewPeriodClosingHandler(
		closings, directory, postgres.NewCompletenessReader(db), cfg.Features, a.bus, clock, log)
	a.finalResults = command.NewFinalResultHandler(
		directory, configs, averages, finals, frequency, enrollments, a.bus, clock, log,
		command.FinalResultHandlerConfig{FrequencyFloor: cfg.Grading.FrequencyFloor})
	a.reportCard = query.NewGetReportCardHandler(directory, averages, finals, reportCards, cfg.Features, log)
	a.closingQueries = query.NewPeriodClosingHandler(closings, postgres.NewRectificationRepository(db))

	return a, nil
}

func connectRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) *redis.Cache {
	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		redisCfg.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.MinIdleConns > 0 {
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	}
	if cfg.Redis.DialTimeout > 0 {
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
	}
	if cfg.Redis.ReadTimeout > 0 {
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	}
	if cfg.Redis.WriteTimeout > 0 {
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout
	}

	cache, err := retry.DoValue(ctx, retry.ConnectPolicy(2), func(context.Context) (*redis.Cache, error) {
		return redis.NewCache(redisCfg)
	})
	if err != nil {
		log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		return nil
	}

	breaker := circuitbreaker.DefaultConfig("redis")
	breaker.IsFailure = redis.IsCacheFailure
	breaker.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	}
	log.Info("Redis connection established", "host", redisCfg.Host, "port", redisCfg.Port)
	return cache.WithBreaker(circuitbreaker.New(breaker))
}

// Close releases everything bootstrap opened, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
}

func (a *app) fail(err error) error {
	a.Close()
	return err
}

// commandContext bounds one operation by the configured query timeout.
func (a *app) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Database.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.cfg.Database.QueryTimeout)
}

// setupLogger configures structured logging on stderr; stdout carries results.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = slog.LevelDebug
	}
	log := logger.New(logger.Options{
		Output:    os.Stderr,
		Level:     level,
		Format:    logger.Format(cfg.LogFormat()),
		AddSource: cfg.Observability.AddSource,
	})
	slog.SetDefault(log)
	return log
}
