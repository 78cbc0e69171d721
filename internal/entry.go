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

	"github.com/h1w0xxx/chiralgrid/internal/api"
	"github.com/h1w0xxx/chiralgrid/internal/challenge"
	"github.com/h1w0xxx/chiralgrid/internal/chiral"
	"github.com/h1w0xxx/chiralgrid/internal/library"
)

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

	logger := NewLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sdf_path", cfg.Library.SDFPath),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("log_level", cfg.App.LogLevel.String()))

	lib, err := library.Open(cfg.Library.SDFPath, cfg.Library.IndexPath)
	if err != nil {
		return fmt.Errorf("init library: %w", err)
	}
	logger.Info("Library loaded", slog.Int("records", lib.Len()))

	store, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	analyzer := chiral.NewAnalyzer(chiral.WithTracer(chiral.SlogTracer(logger)))
	svc := challenge.NewService(lib, store, analyzer, challenge.Config{
		MinStereocenters: cfg.Challenge.MinStereocenters,
		MaxAttempts:      cfg.Challenge.MaxAttempts,
		ImageSize:        cfg.Challenge.ImageSize,
		Workers:          cfg.Challenge.Workers,
	}, logger)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: NewHTTPHandler(svc, logger, cfg.App.HTTP.StaticDir),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Library.Watch {
		g.Go(func() error {
			if err := lib.Watch(gCtx, logger); err != nil {
				logger.Warn("library watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		expireLoop(gCtx, svc, cfg.Challenge.TTL, logger)
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the watcher and the expiry loop too.
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

// NewLogger returns the JSON logger used by every command.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewHTTPHandler builds the root router: the liveness check, the API under /api
// and, when staticDir is set, the front end at /.
func NewHTTPHandler(svc api.ChallengeService, logger *slog.Logger, staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(svc, logger))

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
	return r
}

func openStore(cfg StoreConfig) (challenge.Store, error) {
	if cfg.Driver == StoreDriverMemory {
		return challenge.NewMemoryStore(), nil
	}
	return challenge.OpenSQLite(cfg.Path)
}

// expireLoop purges stale challenges every half TTL until ctx is done.
func expireLoop(ctx context.Context, svc *challenge.Service, ttl time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.Expire(ctx, ttl)
			if err != nil {
				logger.Warn("expire challenges failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				logger.Debug("expired challenges", slog.Int("count", n))
			}
		}
	}
}
