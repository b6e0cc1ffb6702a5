// Package syncer runs the sync pipeline: tag catalog, then per user fetch,
// reconcile, progression and achievements. Ranking passes run separately.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/sakif/playtracker/internal/achievement"
	"github.com/sakif/playtracker/internal/apperror"
	"github.com/sakif/playtracker/internal/clockify"
	"github.com/sakif/playtracker/internal/ingest"
	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/notify"
	"github.com/sakif/playtracker/internal/progression"
	"github.com/sakif/playtracker/internal/ranking"
	"github.com/sakif/playtracker/internal/reconcile"
	"github.com/sakif/playtracker/internal/repository"
)

// ErrRunning is returned when a run is requested while another is active.
var ErrRunning = errors.New("syncer: a run is already in progress")

// TagSource lists the workspace tags.
type TagSource interface {
	Tags(ctx context.Context) ([]clockify.Tag, error)
}

var _ TagSource = (*clockify.Client)(nil)

// Config carries the season and tag settings of the tracker.
type Config struct {
	// Season is the current calendar year; 0 disables season scoping.
	Season int
	// InitialDate is where a full sync starts.
	InitialDate time.Time
	// PlatformTags are the tag names that denote a platform.
	PlatformTags []string
	// CompletedTag is the name of the tag that marks a game as completed.
	CompletedTag string
}

// Options selects what a run covers.
type Options struct {
	// StartDate overrides the incremental window start.
	StartDate time.Time
	// SyncAll fetches everything since Config.InitialDate.
	SyncAll bool
	// SyncSeason fetches everything since January 1st of the season.
	SyncSeason bool
	// UserScope limits the run to one user, by local or Clockify id.
	UserScope string
	// Silent suppresses every notification.
	Silent bool
}

// Report summarises a run.
type Report struct {
	RunID        string
	Since        time.Time
	Users        int
	Entries      int
	Skipped      int
	Failed       int
	FailedUsers  int
	Completed    int
	Achievements int
}

type Syncer struct {
	store      repository.Store
	tags       TagSource
	ingestor   *ingest.Ingestor
	reconciler *reconcile.Reconciler
	engine     *progression.Engine
	claimer    *achievement.Claimer
	differ     *ranking.Differ
	notifier   notify.Notifier
	clock      quartz.Clock
	loc        *time.Location
	cfg        Config
	logger     *slog.Logger

	running atomic.Bool
	ranking atomic.Bool
}

// Deps are the collaborators a Syncer drives.
type Deps struct {
	Store      repository.Store
	Tags       TagSource
	Ingestor   *ingest.Ingestor
	Reconciler *reconcile.Reconciler
	Engine     *progression.Engine
	Claimer    *achievement.Claimer
	Differ     *ranking.Differ
	Notifier   notify.Notifier
	Clock      quartz.Clock
	Location   *time.Location
}

func New(deps Deps, cfg Config, logger *slog.Logger) *Syncer {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := deps.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Syncer{
		store:      deps.Store,
		tags:       deps.Tags,
		ingestor:   deps.Ingestor,
		reconciler: deps.Reconciler,
		engine:     deps.Engine,
		claimer:    deps.Claimer,
		differ:     deps.Differ,
		notifier:   deps.Notifier,
		clock:      clock,
		loc:        loc,
		cfg:        cfg,
		logger:     logger,
	}
}

// Since resolves where a run with opts starts fetching. The zero time means
// the ingestor's incremental default.
func (s *Syncer) Since(opts Options) time.Time {
	switch {
	case opts.SyncAll:
		return s.cfg.InitialDate
	case opts.SyncSeason && s.cfg.Season > 0:
		return time.Date(s.cfg.Season, time.January, 1, 0, 0, 0, 0, s.loc)
	case !opts.StartDate.IsZero():
		return opts.StartDate
	}
	return time.Time{}
}

// Run performs one sync. Only one run is active at a time; a concurrent
// call gets ErrRunning. Entry and user failures are logged and counted;
// the returned error is reserved for failures that stop the run as a whole.
func (s *Syncer) Run(ctx context.Context, opts Options) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Report{}, ErrRunning
	}
	defer s.running.Store(false)

	report := Report{RunID: uuid.NewString(), Since: s.Since(opts)}
	logger := s.logger.With("run_id", report.RunID)
	start := s.clock.Now()

	if n, err := s.SyncTags(ctx); err != nil {
		logger.Warn("tag sync failed, using stored catalog", "error", err)
	} else {
		logger.Info("tags synced", "tags", n)
	}

	users, err := s.users(ctx, opts.UserScope)
	if err != nil {
		return report, err
	}

	for i := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		user := &users[i]
		report.Users++
		if err := s.syncUser(ctx, logger, user, opts, &report); err != nil {
			report.FailedUsers++
			logger.Error("user sync failed", "user_id", user.ID, "error", err)
		}
	}

	logger.Info("sync finished",
		"users", report.Users,
		"entries", report.Entries,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"failed_users", report.FailedUsers,
		"duration", s.clock.Since(start),
	)
	return report, nil
}

func (s *Syncer) users(ctx context.Context, scope string) ([]model.User, error) {
	if scope == "" {
		users, err := s.store.ListActiveUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("syncer: listing users: %w", err)
		}
		return users, nil
	}

	user, err := s.store.GetUserByClockifyID(ctx, scope)
	if errors.Is(err, apperror.ErrNotFound) {
		user, err = s.store.GetUserByID(ctx, scope)
	}
	if err != nil {
		return nil, err
	}
	return []model.User{*user}, nil
}

func (s *Syncer) syncUser(ctx context.Context, logger *slog.Logger, user *model.User, opts Options, report *Report) error {
	logger = logger.With("user_id", user.ID)

	entries, err := s.ingestor.Fetch(ctx, user.ClockifyID, report.Since)
	if err != nil {
		return err
	}
	logger.Info("entries fetched", "count", len(entries))

	for _, e := range entries {
		out, err := s.reconciler.Reconcile(ctx, user, e, opts.Silent)
		switch {
		case errors.Is(err, apperror.ErrValidation):
			report.Skipped++
			logger.Warn("skipping time entry", "entry_id", e.ID, "error", err)
			continue
		case err != nil:
			report.Failed++
			logger.Error("reconciling time entry", "entry_id", e.ID, "project_id", e.ProjectID, "error", err)
			continue
		}
		report.Entries++
		if out.Completed {
			report.Completed++
		}
	}

	progress, err := s.engine.Recompute(ctx, user.ID, s.cfg.Season, time.Time{})
	if err != nil {
		return err
	}
	if progress.LostStreak() && !opts.Silent {
		notify.Deliver(ctx, s.notifier, logger, fmt.Sprintf(
			"💀 *%s* lost a streak of %d days. Best so far: %d",
			user.Name, progress.Previous.CurrentStreak, progress.Current.BestStreak,
		))
	}

	metrics, err := achievement.Collect(ctx, s.store, user.ID, progress.Current.CurrentStreak)
	if err != nil {
		return err
	}
	today := s.engine.Today().Format(model.DateLayout)
	won, err := s.claimer.Evaluate(ctx, user, metrics, today, opts.Silent)
	report.Achievements += len(won)
	if err != nil {
		// claims that did succeed stand
		logger.Warn("some achievements could not be claimed", "error", err)
	}
	return nil
}

// SyncTags mirrors the workspace tags into the local catalogs. Tags whose
// name mentions "tracker" are internal and skipped.
func (s *Syncer) SyncTags(ctx context.Context) (int, error) {
	if s.tags == nil {
		return 0, nil
	}
	tags, err := s.tags.Tags(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, t := range tags {
		tag, ok := s.classify(t)
		if !ok {
			continue
		}
		if err := s.store.UpsertTag(ctx, tag); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Syncer) classify(t clockify.Tag) (model.Tag, bool) {
	name := strings.TrimSpace(t.Name)
	if name == "" || strings.Contains(strings.ToLower(name), "tracker") {
		return model.Tag{}, false
	}
	tag := model.Tag{ID: t.ID, Name: name, Kind: model.TagOther}
	for _, p := range s.cfg.PlatformTags {
		if strings.EqualFold(p, name) {
			tag.Kind = model.TagPlatform
			return tag, true
		}
	}
	tag.Completion = s.cfg.CompletedTag != "" && strings.EqualFold(s.cfg.CompletedTag, name)
	return tag, true
}

// RunRankings runs the users and games ranking passes. A failing kind does
// not stop the other.
func (s *Syncer) RunRankings(ctx context.Context, silent bool) ([]ranking.Result, error) {
	if !s.ranking.CompareAndSwap(false, true) {
		return nil, ErrRunning
	}
	defer s.ranking.Store(false)

	var (
		results []ranking.Result
		errs    []error
	)
	for _, kind := range []model.RankingKind{model.RankingUsers, model.RankingGames} {
		res, err := s.differ.DiffAndNotify(ctx, kind, silent)
		if err != nil {
			s.logger.Error("ranking pass failed", "kind", kind, "error", err)
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}
