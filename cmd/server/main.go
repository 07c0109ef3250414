// Package main is the entrypoint for the workspace adapter API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"syscall"
	"time"

	"github.com/andrejcermak/ood-core-extension/internal/adapter"
	"github.com/andrejcermak/ood-core-extension/internal/api"
	"github.com/andrejcermak/ood-core-extension/internal/api/handler"
	mw "github.com/andrejcermak/ood-core-extension/internal/api/middleware"
	"github.com/andrejcermak/ood-core-extension/internal/api/response"
	"github.com/andrejcermak/ood-core-extension/internal/cache"
	"github.com/andrejcermak/ood-core-extension/internal/coder"
	"github.com/andrejcermak/ood-core-extension/internal/config"
	"github.com/andrejcermak/ood-core-extension/internal/credentials"
	"github.com/andrejcermak/ood-core-extension/internal/store"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — a local .env is optional, real env always wins
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "coder_host", cfg.Coder.Host, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and credential provider
	pgStore := store.NewPostgresStore(pool)
	issuer := credentials.NewKeystoneIssuer(
		cfg.Keystone.BaseURL, cfg.Keystone.Token, cfg.Keystone.UserID, cfg.Keystone.Timeout)
	provider := credentials.NewStoreProvider(issuer, pgStore)

	// 6. Create the remote gateway client and lifecycle adapter
	coderClient := coder.NewHTTPClient(
		cfg.Coder.Host, cfg.Coder.Token, cfg.Coder.ServiceUser, cfg.Coder.Timeout)

	lifecycle := adapter.New(coderClient, provider, adapter.Options{
		Username:            resolveUsername(cfg.Coder.Username),
		DeletionMaxAttempts: cfg.Deletion.MaxAttempts,
		DeletionInterval:    cfg.Deletion.Interval,
	})

	// 7. Build router with dependencies
	auth := mw.NewAuth(cfg.Server.APITokenHash)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:   healthHandler(pgStore, redisCache),
		SubmitWorkspace: handler.NewSubmitHandler(lifecycle),
		ListWorkspaces:  handler.NewListHandler(lifecycle),
		GetWorkspace:    handler.NewInfoHandler(lifecycle),
		WorkspaceStatus: handler.NewStatusHandler(lifecycle),
		DeleteWorkspace: handler.NewDeleteHandler(lifecycle),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // delete requests block while polling the remote
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// resolveUsername prefers the configured value and falls back to the process
// user. Resolved once at startup; workspace names depend on it.
func resolveUsername(configured string) string {
	if configured != "" {
		return configured
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
