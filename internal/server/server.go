// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects the sync engine (App),
// the cron scheduler, handlers, middleware and routes, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go loads config.Config
//	NewApp(): sqlstore.DB → clockify.Client → notifier → queue → syncer.Syncer
//	New():    syncer.Syncer → SyncHandler + Scheduler → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (NewApp/setupRoutes), rather than scattered across the codebase.
package server

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
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/playtracker/internal/auth"
	"github.com/sakif/playtracker/internal/config"
	"github.com/sakif/playtracker/internal/handler"
	"github.com/sakif/playtracker/internal/middleware"
	"github.com/sakif/playtracker/internal/scheduler"
)

// shutdownTimeout bounds each shutdown step: draining HTTP requests,
// background webhook syncs and running cron jobs.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the App (database, redis client) and the scheduler.
// Start() stops them in reverse order of creation on shutdown.
type Server struct {
	router    *chi.Mux
	config    config.Config
	logger    *slog.Logger
	app       *App
	scheduler *scheduler.Scheduler
	sync      *handler.SyncHandler
}

// New assembles the App, the scheduler and the router.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	app, err := NewApp(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	sched, err := scheduler.New(app.Syncer, scheduler.Config{
		SyncSchedule:    cfg.SyncSchedule,
		RankingSchedule: cfg.RankingSchedule,
		Location:        cfg.Location,
	}, logger.With("component", "scheduler"))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	syncHandler := handler.NewSyncHandler(app.Syncer, app.Queue, cfg.ClockifyWebhookToken,
		cfg.Location, logger.With("component", "handler"))

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		app:       app,
		scheduler: sched,
		sync:      syncHandler,
	}

	if err := s.setupRoutes(); err != nil {
		app.Close() // clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz               → liveness
// POST   /api/sync              → run a sync (admin token)
// POST   /api/rankings          → run both ranking passes (admin token)
// POST   /webhooks/clockify     → Clockify time-entry webhook (shared secret)
//
// The /api group is only mounted when JWT_SECRET is set, and the webhook
// only when CLOCKIFY_WEBHOOK_TOKEN is set.
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info and the request ID
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", handler.HandleHealth)

	if s.config.JWTSecret == "" {
		s.logger.Warn("JWT_SECRET not set, /api routes are disabled")
	} else {
		tokens, err := auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return err
		}
		s.router.Route("/api", func(r chi.Router) {
			r.Use(auth.RequireAdmin(tokens))
			r.Post("/sync", s.sync.HandleSync)
			r.Post("/rankings", s.sync.HandleRankings)
		})
	}

	if s.config.ClockifyWebhookToken == "" {
		s.logger.Warn("CLOCKIFY_WEBHOOK_TOKEN not set, webhook is disabled")
	} else {
		s.router.Post("/webhooks/clockify", s.sync.HandleClockifyWebhook)
	}

	return nil
}

// Start starts the scheduler and the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections, wait for in-flight requests
// 2. Wait for background webhook syncs
// 3. Stop the scheduler (cancels the job context, waits for running jobs)
// 4. Close the database and redis client
func (s *Server) Start() error {
	defer s.app.Close()

	// A manual sync answers when it is done, so writes get a long timeout.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	s.scheduler.Start()
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("db_driver", s.config.DBDriver),
			slog.Int("season", s.config.Season),
			slog.Int("jobs", s.scheduler.Jobs()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			runErr = fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.sync.Wait(ctx); err != nil {
		s.logger.Warn("webhook syncs still running at shutdown", "error", err)
	}
	if err := s.scheduler.Stop(ctx); err != nil {
		s.logger.Warn("scheduled jobs still running at shutdown", "error", err)
	}
	s.logger.Info("server stopped")

	return runErr
}
