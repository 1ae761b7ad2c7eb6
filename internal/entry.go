// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/vanesdocs/vanesdocs/internal/api"
	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/attachment"
	"github.com/vanesdocs/vanesdocs/internal/auth"
	"github.com/vanesdocs/vanesdocs/internal/docservice"
	"github.com/vanesdocs/vanesdocs/internal/docstore"
	"github.com/vanesdocs/vanesdocs/internal/inbox"
	"github.com/vanesdocs/vanesdocs/internal/lockgate"
	"github.com/vanesdocs/vanesdocs/internal/mcpserver"
	"github.com/vanesdocs/vanesdocs/internal/metrics"
	"github.com/vanesdocs/vanesdocs/internal/objectstore"
	"github.com/vanesdocs/vanesdocs/internal/session"
	"github.com/vanesdocs/vanesdocs/internal/sse"
)

// App holds the wired application components.
type App struct {
	Config   *Config
	Logger   *slog.Logger
	Repo     docstore.Repository
	Sessions *session.Memory
	Store    *objectstore.FS
	Events   *sse.Broker
	Metrics  *metrics.Metrics
	Auth     *auth.Authenticator
	Docs     *docservice.Service

	version string
}

// NewLogger returns the JSON logger used by every command.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// New wires the application from the given options. Close releases it.
func New(opts ...Option) (*App, error) {
	a := &application{version: "dev"}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	logger := NewLogger(a.logOut, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("storage_root", cfg.Storage.Root),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	repo := a.repo
	if repo == nil {
		var err error
		if repo, err = docstore.Open(cfg.Store.Driver, cfg.Store.DSN); err != nil {
			return nil, fmt.Errorf("init document store: %w", err)
		}
	}

	app := &App{Config: cfg, Logger: logger, Repo: repo, version: a.version}
	if err := app.wire(); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) wire() error {
	cfg := app.Config
	var err error

	if app.Sessions, err = session.NewMemory(cfg.Session.TTL); err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}
	if err := os.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}
	if app.Store, err = objectstore.NewFS(cfg.Storage.Root, cfg.Storage.BaseURL, attachment.BucketImages, attachment.BucketFiles); err != nil {
		return fmt.Errorf("init object store: %w", err)
	}
	if app.Auth, err = auth.New(cfg.Auth.Mode, cfg.Auth.Token, cfg.Auth.JWTSecret); err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	app.Events = sse.NewBroker(cfg.Events.Throttle)
	app.Events.AllowOrigins(cfg.Events.AllowedOrigins...)
	if app.Metrics, err = metrics.New(app.Events.ClientCount); err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	app.Docs = docservice.New(app.Repo,
		lockgate.NewGate(app.Sessions),
		attachment.New(app.Store, cfg.Uploads.MaxBytes),
		docservice.WithPublisher(app.Events),
		docservice.WithRecorder(app.Metrics),
	)
	return nil
}

// Close stops the event broker and closes the document store.
func (app *App) Close() error {
	app.Events.Close()
	return app.Repo.Close()
}

// Handler builds the root HTTP handler.
func (app *App) Handler() http.Handler {
	cfg := app.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(app.Metrics.Middleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := app.Repo.Get(r.Context(), "__ready__"); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			app.Logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", app.Metrics.Handler())
	r.Get("/files/{bucket}/*", api.NewFileHandler(app.Store).ServeFile)

	r.Mount("/api", api.NewRouter(app.Docs, api.Options{
		Auth:           app.Auth,
		SessionCookie:  cfg.Session.Cookie,
		Events:         app.Events,
		MaxUploadBytes: cfg.Uploads.MaxBytes,
	}))
	return r
}

// MCP returns the MCP server over the document service.
func (app *App) MCP() *mcpserver.Server {
	return mcpserver.New(app.Docs, app.version)
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := New(opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger.Error("close failed", slog.String("error", err.Error()))
		}
	}()
	return app.Serve(ctx)
}

// Serve runs the HTTP server, the session sweeper and the inbox watcher
// until ctx is cancelled or a shutdown signal arrives.
func (app *App) Serve(ctx context.Context) error {
	cfg := app.Config
	logger := app.Logger

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	var in *inbox.Inbox
	if cfg.Inbox.Enabled() {
		var err error
		if in, err = inbox.New(cfg.Inbox.Path, app.Docs, inbox.WithLogger(logger)); err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Expire idle unlock sessions.
	g.Go(func() error {
		return app.Sessions.RunSweeper(gCtx, cfg.Session.SweepInterval)
	})

	if in != nil {
		g.Go(func() error {
			return in.Watch(gCtx, nil)
		})
	}

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Release the sweeper and the inbox watcher.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")
