package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/playtracker/internal/achievement"
	"github.com/sakif/playtracker/internal/clockify"
	"github.com/sakif/playtracker/internal/config"
	"github.com/sakif/playtracker/internal/ingest"
	"github.com/sakif/playtracker/internal/notify"
	"github.com/sakif/playtracker/internal/progression"
	"github.com/sakif/playtracker/internal/queue"
	"github.com/sakif/playtracker/internal/ranking"
	"github.com/sakif/playtracker/internal/reconcile"
	"github.com/sakif/playtracker/internal/repository/sqlstore"
	"github.com/sakif/playtracker/internal/syncer"
)

// App is the assembled sync engine, shared by the HTTP server and the
// one-shot CLI.
type App struct {
	DB       *sqlstore.DB
	Clockify *clockify.Client
	Notifier notify.Notifier
	Queue    queue.Queue
	Syncer   *syncer.Syncer

	redis *redis.Client
}

// NewApp opens the store, seeds the achievement catalog and wires every
// component of a sync run. The caller owns the result and must Close it.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if cfg.DBDriver == sqlstore.DriverSQLite && cfg.DBDSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqlstore.New(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	app := &App{DB: db}

	app.Clockify = clockify.New(clockify.Config{
		BaseURL:     cfg.ClockifyBaseURL,
		WorkspaceID: cfg.ClockifyWorkspace,
		APIKey:      cfg.ClockifyAPIKey,
	}, logger.With("component", "clockify"))

	logSink := notify.LogNotifier{Logger: logger.With("component", "notify")}
	if cfg.TelegramToken != "" {
		app.Notifier = notify.Multi{notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, ""), logSink}
	} else {
		logger.Warn("TELEGRAM_TOKEN not set, notifications go to the log")
		app.Notifier = logSink
	}

	if cfg.RedisAddr != "" {
		rdb, err := queue.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		app.redis = rdb
		app.Queue = queue.NewRedisQueue(rdb, queue.DefaultTTL)
	} else {
		app.Queue = queue.NewStoreQueue(db)
	}

	clock := quartz.NewReal()
	loc := cfg.Location

	claimer := achievement.NewClaimer(db, app.Notifier, logger.With("component", "achievement"))
	if err := claimer.Seed(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("seeding achievements: %w", err)
	}

	app.Syncer = syncer.New(syncer.Deps{
		Store:      db,
		Tags:       app.Clockify,
		Ingestor:   ingest.New(app.Clockify, clock, loc, logger.With("component", "ingest")),
		Reconciler: reconcile.New(db, app.Clockify, app.Notifier, logger.With("component", "reconcile")),
		Engine:     progression.NewEngine(db, clock, loc, logger.With("component", "progression")),
		Claimer:    claimer,
		Differ:     ranking.NewDiffer(db, app.Notifier, cfg.Season, cfg.RankingTopN, logger.With("component", "ranking")),
		Notifier:   app.Notifier,
		Clock:      clock,
		Location:   loc,
	}, syncer.Config{
		Season:       cfg.Season,
		InitialDate:  cfg.InitialDate,
		PlatformTags: cfg.PlatformTags,
		CompletedTag: cfg.CompletedTag,
	}, logger.With("component", "syncer"))

	return app, nil
}

// Close releases the redis client (if any) and the database.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
