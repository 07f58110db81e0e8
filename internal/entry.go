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

	"github.com/starford/sojourner/internal/api"
	"github.com/starford/sojourner/internal/checksum"
	"github.com/starford/sojourner/internal/index"
	"github.com/starford/sojourner/internal/metrics"
	"github.com/starford/sojourner/internal/models"
	"github.com/starford/sojourner/internal/schedule"
	"github.com/starford/sojourner/internal/sse"
)

// NewLogger returns the structured JSON logger writing to w.
func NewLogger(level slog.Level, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// OpenSchedule loads the schedule configured in cfg. extra options are
// applied after the ones derived from cfg.
func OpenSchedule(cfg *Config, logger *slog.Logger, extra ...schedule.Option) (*schedule.Schedule, error) {
	opts := []schedule.Option{
		schedule.WithLogger(logger),
		schedule.WithPolicy(cfg.Favourites.UnknownIDs),
	}
	if !cfg.Schedule.Cache {
		opts = append(opts, schedule.WithoutCache())
	}

	switch {
	case cfg.Favourites.Path != "":
		opts = append(opts, schedule.WithFavouritesPath(cfg.Favourites.Path))
	case cfg.Favourites.PerUser:
		p, err := schedule.UserFavouritesPath()
		if err != nil {
			return nil, err
		}
		opts = append(opts, schedule.WithFavouritesPath(p))
	}

	return schedule.Open(cfg.Schedule.Path, append(opts, extra...)...)
}

// OpenIndex opens the SQLite search index and brings it in line with the
// loaded schedule. A failed sync is logged and the index is still returned.
func OpenIndex(cfg *Config, sched *schedule.Schedule, logger *slog.Logger) (*index.DB, error) {
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	sum, err := checksum.File(sched.SourcePath())
	if err != nil {
		logger.Warn("index checksum failed", slog.String("error", err.Error()))
		return db, nil
	}
	if _, err := index.Sync(db, sched.Snapshot(), sum, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return db, nil
}

// NewHTTPHandler builds the root router: health checks, metrics and the API
// under /api. search may be nil.
func NewHTTPHandler(cfg *Config, sched *schedule.Schedule, search index.Searcher, broker *sse.Broker, m *metrics.Metrics) (http.Handler, error) {
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, err
	}

	var sseHandler http.Handler
	if broker != nil {
		sseHandler = broker
	}
	apiRouter := api.NewRouter(sched, search, loc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, sseHandler)

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
		if len(sched.Events()) == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"empty schedule"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	return r, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := NewLogger(cfg.App.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("schedule_path", cfg.Schedule.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	m := app.metrics
	if m == nil {
		m = metrics.New()
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	sched, err := OpenSchedule(cfg, logger,
		schedule.WithMetrics(m),
		schedule.WithChangeFunc(func(kind string, e *models.Event) {
			broker.PublishFavourite(kind, e.ID, e.Title)
		}),
	)
	if err != nil {
		return fmt.Errorf("open schedule: %w", err)
	}

	db, err := OpenIndex(cfg, sched, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	handler, err := NewHTTPHandler(cfg, sched, db, broker, m)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: handler,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// The loaded schedule is never reloaded; clients are told it is stale.
	g.Go(func() error {
		if err := index.WatchSource(gCtx, sched.SourcePath(), logger, broker.PublishStale); err != nil {
			logger.Warn("schedule watcher unavailable", slog.String("error", err.Error()))
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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		stop()

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
