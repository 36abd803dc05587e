// Package main is the entry point for the Constable search server.
// Constable serves an authenticated multi-attribute search API over a
// catalogue of offence records.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kesrow/constable/internal/cache/memory"
	"github.com/kesrow/constable/internal/cache/redis"
	"github.com/kesrow/constable/internal/config"
	"github.com/kesrow/constable/internal/handler"
	"github.com/kesrow/constable/internal/lock"
	"github.com/kesrow/constable/internal/metrics"
	"github.com/kesrow/constable/internal/repository"
	"github.com/kesrow/constable/internal/repository/postgres"
	"github.com/kesrow/constable/internal/repository/sqlite"
	"github.com/kesrow/constable/internal/service"
	"github.com/kesrow/constable/internal/vocab"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Starting Constable server")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	repos, health, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer health.Close()

	// Vocabulary registry
	registry, err := vocab.New(cfg.Vocabulary.Values())
	if err != nil {
		return fmt.Errorf("invalid vocabulary configuration: %w", err)
	}

	// Cache: Redis when enabled, otherwise local. The locker guards the
	// periodic token purge so only one instance runs it.
	var cache repository.Cache
	var locker lock.Locker
	if cfg.Redis.Enabled {
		redisCache, err := redis.NewCache(ctx, redis.Config{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisCache.Close()
		cache = redisCache

		hostname, _ := os.Hostname()
		locker = lock.NewRedisLocker(redisCache.Client(), fmt.Sprintf("%s-%d", hostname, os.Getpid()))
	} else {
		memCache := memory.NewCache()
		defer memCache.Stop()
		cache = memCache
		locker = lock.NewMemoryLocker()
	}

	// Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Services
	userService := service.NewUserService(repos.users, cfg.Auth.BcryptCost, logger)
	sessionService := service.NewSessionService(repos.tokens, repos.users, cache, cfg.Auth.SessionTTL, logger)
	searchService := service.NewSearchService(repos.records, registry, cfg.Search.DefaultLimit, cfg.Search.MaxLimit, logger)

	// HTTP server
	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:   handler.NewAuthHandler(userService, sessionService, m, logger),
		SearchHandler: handler.NewSearchHandler(searchService, m, logger),
		VocabHandler:  handler.NewVocabHandler(registry),
		Sessions:      sessionService,
		Metrics:       m,
		Health:        health,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Msg("Metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	// Periodic expired-token purge. Validation is lazy so this is table
	// hygiene, not a correctness requirement.
	go purgeLoop(ctx, sessionService, locker, logger)

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return nil
}

// repositories bundles the per-driver repository implementations.
type repositories struct {
	users   repository.UserRepository
	tokens  repository.TokenRepository
	records repository.RecordRepository
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repositories, repository.DatabaseHealth, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Path,
			BusyTimeout:     cfg.BusyTimeout,
			JournalMode:     cfg.JournalMode,
			SynchronousMode: cfg.SynchronousMode,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return &repositories{
			users:   sqlite.NewUserRepository(db),
			tokens:  sqlite.NewTokenRepository(db),
			records: sqlite.NewRecordRepository(db),
		}, db, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, postgres.Config{
			Host:            cfg.Host,
			Port:            cfg.Port,
			User:            cfg.User,
			Password:        cfg.Password,
			Database:        cfg.Database,
			SSLMode:         cfg.SSLMode,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return &repositories{
			users:   postgres.NewUserRepository(db),
			tokens:  postgres.NewTokenRepository(db),
			records: postgres.NewRecordRepository(db),
		}, db, nil
	}
	return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func purgeLoop(ctx context.Context, sessions *service.SessionService, locker lock.Locker, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			acquired, err := locker.Acquire(ctx, lock.Keys.TokenPurge(), 5*time.Minute)
			if err != nil {
				logger.Warn().Err(err).Msg("Token purge lock unavailable")
				continue
			}
			if !acquired {
				continue
			}
			if _, err := sessions.PurgeExpired(ctx); err != nil {
				logger.Warn().Err(err).Msg("Token purge failed")
			}
			if _, err := locker.Release(ctx, lock.Keys.TokenPurge()); err != nil {
				logger.Warn().Err(err).Msg("Token purge lock release failed")
			}
		}
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	logger = logger.Level(level)
	log.Logger = logger
	return logger
}
