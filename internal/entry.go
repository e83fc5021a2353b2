package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/casevault/internal/api"
	"github.com/starford/casevault/internal/caseservice"
	"github.com/starford/casevault/internal/mcpserver"
	"github.com/starford/casevault/internal/snapshot"
	"github.com/starford/casevault/internal/sse"
	"github.com/starford/casevault/internal/storage"
	"github.com/starford/casevault/internal/store"
	"github.com/starford/casevault/internal/transform"
	"github.com/starford/casevault/internal/transform/claude"
)

type runtime struct {
	cfg    *Config
	logger *slog.Logger
	area   *storage.FS
	db     *store.DB
	engine *snapshot.Engine
	svc    *caseservice.Service
}

// buildRuntime assembles the shared service stack: archive area, SQLite
// store, snapshot engine, transformation client, and case service.
func buildRuntime(app *application) (*runtime, error) {
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("archive_path", cfg.Archive.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure archive directory exists.
	if err := os.MkdirAll(cfg.Archive.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	area, err := storage.NewFS(cfg.Archive.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	engine := snapshot.NewEngine(area, logger)

	transformer := app.transformer
	if transformer == nil {
		transformer = transform.NewRetrying(
			claude.New(cfg.Transform.APIKey, cfg.Transform.Model, cfg.Transform.Timeout()),
			cfg.Transform.RetryPolicy(),
		)
	}

	svc := caseservice.NewService(db, area, engine, transformer, logger)

	return &runtime{cfg: cfg, logger: logger, area: area, db: db, engine: engine, svc: svc}, nil
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	rt, err := buildRuntime(app)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	cfg := rt.cfg
	logger := rt.logger

	// SSE broker delivers lifecycle events to connected clients.
	broker := sse.NewBroker()
	defer broker.Close()
	rt.svc.SetNotifier(broker.PublishLifecycleEvent)

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the archive for out-of-band descriptor edits. The engine's
	// own writes are filtered out, so these events only reflect external
	// changes to the snapshot area.
	g.Go(func() error {
		err := rt.engine.Watch(gCtx, cfg.Archive.Path, func(kind, path string) {
			broker.PublishLifecycleEvent("snapshot."+kind, map[string]any{"path": path})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("snapshot watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server over the same service stack
// instead of the HTTP API.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	rt, err := buildRuntime(app)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	rt.logger.Info("Starting MCP server on stdio")

	if err := mcpserver.New(rt.svc).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}
