// Package main is the entry point of the flashcard study API.
//
// Layering:
// - Domain: study sessions, progress records and streak rules
// - Application: session orchestration, progress merging, commands and queries
// - Infrastructure: Postgres catalog and progress, session stores, token verification
// - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/studyassist/flashcard-hub/config"

	// Application layer
	"github.com/studyassist/flashcard-hub/internal/application/aggregator"
	"github.com/studyassist/flashcard-hub/internal/application/command"
	"github.com/studyassist/flashcard-hub/internal/application/orchestrator"
	"github.com/studyassist/flashcard-hub/internal/application/query"
	"github.com/studyassist/flashcard-hub/internal/domain/study"

	// Infrastructure layer
	"github.com/studyassist/flashcard-hub/internal/infrastructure/auth"
	"github.com/studyassist/flashcard-hub/internal/infrastructure/persistence/memory"
	"github.com/studyassist/flashcard-hub/internal/infrastructure/persistence/postgres"
	"github.com/studyassist/flashcard-hub/internal/infrastructure/persistence/redis"

	// Interface layer
	httpserver "github.com/studyassist/flashcard-hub/internal/interface/http"
	"github.com/studyassist/flashcard-hub/internal/interface/http/handlers"

	// Packages
	"github.com/studyassist/flashcard-hub/pkg/circuitbreaker"
	"github.com/studyassist/flashcard-hub/pkg/logger"
	"github.com/studyassist/flashcard-hub/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	defer func() { _ = log.Sync() }()

	log.Info("starting flashcard study API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Location.String()),
		logger.String("session_backend", cfg.Study.SessionBackend),
	)

	timeutil.SetReference(cfg.App.Location)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnection(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if status, err := migrator.Status(ctx); err != nil {
		log.Warn("failed to get migration status", logger.Err(err))
	} else {
		applied := 0
		for _, m := range status {
			if m.IsApplied {
				applied++
			}
		}
		log.Info("migrations completed", logger.Int("applied", applied), logger.Int("total", len(status)))
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("postgres", handlers.PingCheck(dbConn))

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SESSION STORE
	// ─────────────────────────────────────────────────────────────────────────
	var sessions study.SessionStore
	if cfg.UsesRedis() {
		log.Info("connecting to Redis...")
		redisClient, err := redis.NewClient(ctx, redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   redis.DefaultConfig().MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolTimeout:  redis.DefaultConfig().PoolTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() {
			log.Info("closing Redis connection...")
			_ = redisClient.Close()
		}()

		breaker := redis.NewBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
		sessions = redis.NewSessionStore(redisClient, cfg.Study.SessionTTL, redis.WithBreaker(breaker))
		health.AddCheck("redis", handlers.PingCheck(redisClient))
		log.Info("Redis session store ready")
	} else {
		store := memory.NewSessionStore(
			memory.WithMaxSessions(cfg.Study.MaxSessions),
			memory.WithIdleTTL(cfg.Study.SessionTTL),
			memory.WithLogger(log),
		)
		store.StartJanitor(ctx, cfg.Study.JanitorInterval)
		sessions = store
		log.Info("in-memory session store ready", logger.Int("max_sessions", cfg.Study.MaxSessions))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	catalog := postgres.NewCatalogRepository(dbConn)
	progressRepo := postgres.NewProgressRepository(dbConn)

	merger := aggregator.New(progressRepo, aggregator.Config{
		MaxAttempts: cfg.Study.MergeMaxAttempts,
		Location:    cfg.App.Location,
	}, log)

	studyEngine := orchestrator.New(sessions, catalog, merger, orchestrator.WithLogger(log))
	recordHandler := command.NewRecordStudySessionHandler(catalog, merger, log)
	progressHandler := query.NewGetProgressHandler(progressRepo, catalog)

	verifier, err := auth.NewJWTVerifier(auth.Config{
		Secret: cfg.Auth.JWTSecret,
		Leeway: cfg.Auth.Leeway,
	})
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins

	httpServer := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		Study:              studyEngine,
		RecordStudySession: recordHandler,
		GetProgress:        progressHandler,
		Tokens:             verifier,
		HealthChecker:      health,
		Logger:             log,
	})
	errCh := httpServer.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("flashcard study API is running", logger.String("http_address", httpCfg.Address()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("http server error", logger.Err(err))
			return err
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupLogger builds the process logger from the observability settings.
func setupLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug && level > logger.LevelDebug {
		level = logger.LevelDebug
	}

	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		Format:    cfg.Observability.LogFormat,
		AddCaller: !cfg.IsProduction(),
	}).With(logger.String("service", cfg.App.Name))
}
