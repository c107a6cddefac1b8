package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"command-center/internal/config"
	"command-center/internal/database"
	"command-center/internal/event"
	"command-center/internal/guard"
	"command-center/internal/handler"
	"command-center/internal/metrics"
	"command-center/internal/repository"
	"command-center/internal/router"
	"command-center/internal/session"
	"command-center/internal/storage"
	"command-center/internal/websocket"
)

const durableCleanupInterval = time.Hour

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	a := &App{}
	ctx, cancel := context.WithCancel(context.Background())
	a.cleanupFuncs = append(a.cleanupFuncs, cancel)

	checks := map[string]handler.HealthCheck{}

	ephemeral, err := a.ephemeralStorage(ctx, cfg, checks)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	durable, err := a.durableStorage(ctx, cfg, checks)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	m := metrics.New()
	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	go hub.Run(ctx)

	manager, err := session.NewManager(session.ManagerOptions{
		BackendURL: cfg.BackendURL,
		APITimeout: cfg.APITimeout,
		Durable:    durable,
		Ephemeral:  ephemeral,
		CacheTTL:   cfg.SessionCacheTTL,
		Bus:        bus,
		Metrics:    m,
		Logger:     slog.Default(),
	})
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}
	// Runs before ctx is cancelled so controllers close while storage is up.
	a.cleanupFuncs = append([]func(){manager.Close}, a.cleanupFuncs...)

	guardMiddleware := guard.NewMiddleware(manager, guard.Options{
		WaitTimeout: cfg.GuardWaitTimeout,
		IdleTimeout: cfg.SessionIdleTimeout,
		Bus:         bus,
		Metrics:     m,
		Logger:      slog.Default(),
	})

	proxyHandler, err := handler.NewProxyHandler(manager, bus, cfg.BackendURL)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize backend proxy: %w", err)
	}

	appRouter := router.New(cfg, guardMiddleware, router.Handlers{
		Auth:    handler.NewAuthHandler(manager, bus, cfg.GuardWaitTimeout),
		Session: handler.NewSessionHandler(manager, hub, cfg.GuardWaitTimeout, cfg.CORSOrigins),
		Page:    handler.NewPageHandler(manager),
		Proxy:   proxyHandler,
		Health:  handler.NewHealthHandler(checks),
	}, m)

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	slog.Info("gateway configured",
		"backend", cfg.BackendURL,
		"idle_timeout", cfg.SessionIdleTimeout,
		"durable", durableKind(cfg),
		"ephemeral", ephemeralKind(cfg),
	)
	return a, nil
}

// ephemeralStorage connects Redis when REDIS_URL is set and falls back to
// process memory otherwise.
func (a *App) ephemeralStorage(ctx context.Context, cfg *config.Config, checks map[string]handler.HealthCheck) (storage.Backend, error) {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL not set; ephemeral storage is in memory")
		return storage.NewMemory(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	backend, client, err := storage.NewRedisFromURL(connectCtx, cfg.RedisURL, cfg.RedisPrefix, cfg.EphemeralTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, func() {
		if err := client.Close(); err != nil {
			slog.Warn("redis close failed", "error", err)
		}
	})
	checks["ephemeral"] = func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}

	return backend, nil
}

// durableStorage connects Postgres when DATABASE_URL is set and falls back
// to process memory otherwise.
func (a *App) durableStorage(ctx context.Context, cfg *config.Config, checks map[string]handler.HealthCheck) (storage.Backend, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set; durable storage is in memory")
		return storage.NewMemory(), nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	checks["durable"] = db.Health

	repo := repository.NewBrowserStorageRepository(db.Pool)
	go repo.StartCleanupTicker(ctx, durableCleanupInterval, cfg.DurableRetention, func(err error) {
		slog.Warn("durable storage cleanup failed", "error", err)
	})

	slog.Info("database ready")
	return repo, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
	a.cleanupFuncs = nil
}

func durableKind(cfg *config.Config) string {
	if cfg.DatabaseURL != "" {
		return "postgres"
	}
	return "memory"
}

func ephemeralKind(cfg *config.Config) string {
	if cfg.RedisURL != "" {
		return "redis"
	}
	return "memory"
}
