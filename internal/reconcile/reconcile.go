// Package reconcile folds normalized time entries into the local store.
//
// Each entry is applied in its own transaction and every write is
// idempotent, so the same entry may be reconciled any number of times
// (re-syncs, overlapping windows, webhook redeliveries) with the same
// end state. The completion notification is the one side effect, and it is
// emitted only by the call that actually flipped the game to completed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/sakif/playtracker/internal/apperror"
	"github.com/sakif/playtracker/internal/clockify"
	"github.com/sakif/playtracker/internal/ingest"
	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/notify"
	"github.com/sakif/playtracker/internal/repository"
)

// ProjectSource resolves project metadata for games seen for the first time.
type ProjectSource interface {
	Project(ctx context.Context, projectID string) (*clockify.Project, error)
}

var _ ProjectSource = (*clockify.Client)(nil)

type Reconciler struct {
	store    repository.Store
	projects ProjectSource
	notifier notify.Notifier
	logger   *slog.Logger
}

func New(store repository.Store, projects ProjectSource, notifier notify.Notifier, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		projects: projects,
		notifier: notifier,
		logger:   logger,
	}
}

// Outcome reports what a single Reconcile call changed.
type Outcome struct {
	Entry       repository.InsertResult
	GameID      string
	NewGame     bool
	NewUserGame bool
	// Completed is true only for the call that performed the transition.
	Completed bool
}

// Reconcile applies one entry for user.
//
// Entries without a project or start are rejected with ErrValidation and
// nothing is written. silent suppresses notifications (backfills).
func (r *Reconciler) Reconcile(ctx context.Context, user *model.User, e ingest.Entry, silent bool) (Outcome, error) {
	var out Outcome

	if e.ProjectID == "" {
		return out, apperror.ValidationFailed("project_id", fmt.Sprintf("time entry %s has no project", e.ID))
	}
	if e.ID == "" || e.Start == "" {
		return out, apperror.ValidationFailed("start", fmt.Sprintf("time entry %q has no id or start", e.ID))
	}

	platform, completed, err := r.classifyTags(ctx, e.TagIDs)
	if err != nil {
		return out, err
	}

	// Game creation talks to the upstream API, so it happens before (and
	// outside) the entry transaction.
	game, created, err := r.ensureGame(ctx, e.ProjectID)
	if err != nil {
		return out, err
	}
	out.GameID = game.ID
	out.NewGame = created

	var playedTime int64
	err = r.store.InTx(ctx, func(tx repository.Store) error {
		res, err := tx.UpsertTimeEntry(ctx, &model.TimeEntry{
			ID:             e.ID,
			UserID:         user.ID,
			UserClockifyID: user.ClockifyID,
			ProjectID:      e.ProjectID,
			Start:          e.Start,
			End:            e.End,
			Duration:       e.Duration,
		})
		if err != nil {
			return err
		}
		out.Entry = res

		ug, created, err := ensureUserGame(ctx, tx, &model.UserGame{
			UserID:      user.ID,
			GameID:      game.ID,
			ProjectID:   e.ProjectID,
			Platform:    platform,
			StartedDate: e.Date(),
		})
		if err != nil {
			return err
		}
		out.NewUserGame = created

		if platform != "" && ug.Platform != platform {
			if err := tx.UpdateUserGamePlatform(ctx, ug.ID, platform); err != nil {
				return err
			}
		}

		playedTime, err = tx.SumUserProjectDuration(ctx, user.ID, e.ProjectID)
		if err != nil {
			return err
		}

		if completed && !ug.Completed {
			done, err := tx.CompleteUserGame(ctx, ug.ID, e.Date(), playedTime)
			if err != nil {
				return err
			}
			out.Completed = done
			return nil
		}
		return tx.UpdateUserGamePlayedTime(ctx, ug.ID, playedTime)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("reconcile: entry %s: %w", e.ID, err)
	}

	if !silent {
		r.announce(ctx, user, game, out, playedTime)
	}
	return out, nil
}

// classifyTags derives the platform name and completion flag from an
// entry's tags. The first platform tag wins; unknown tags are ignored.
func (r *Reconciler) classifyTags(ctx context.Context, tagIDs []string) (platform string, completed bool, err error) {
	for _, id := range tagIDs {
		if platform == "" {
			tag, err := r.store.FindPlatformTag(ctx, id)
			switch {
			case err == nil:
				platform = tag.Name
				continue
			case !errors.Is(err, apperror.ErrNotFound):
				return "", false, err
			}
		}
		if !completed {
			tag, err := r.store.FindOtherTag(ctx, id)
			switch {
			case err == nil:
				completed = tag.Completion
			case !errors.Is(err, apperror.ErrNotFound):
				return "", false, err
			}
		}
	}
	return platform, completed, nil
}

// ensureGame returns the game for projectID, creating it from upstream
// metadata on first sight. created is false when another writer won the
// creation race.
func (r *Reconciler) ensureGame(ctx context.Context, projectID string) (*model.Game, bool, error) {
	game, err := r.store.GetGameByProjectID(ctx, projectID)
	if err == nil {
		return game, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, err
	}

	r.logger.Info("project not in store, fetching", "project_id", projectID)
	project, err := r.projects.Project(ctx, projectID)
	if err != nil {
		return nil, false, fmt.Errorf("reconcile: fetching project %s: %w", projectID, err)
	}

	game = &model.Game{
		ProjectID: projectID,
		Name:      project.Name,
		Slug:      Slugify(project.Name),
	}
	res, err := r.store.CreateGame(ctx, game)
	if err != nil {
		return nil, false, err
	}
	if res == repository.AlreadyExists {
		game, err = r.store.GetGameByProjectID(ctx, projectID)
		return game, false, err
	}
	r.logger.Info("game created", "project_id", projectID, "game_id", game.ID, "name", game.Name)
	return game, true, nil
}

// ensureUserGame returns the (user, game) association, creating it from
// proto when missing. This is the only place associations are created.
func ensureUserGame(ctx context.Context, tx repository.Store, proto *model.UserGame) (*model.UserGame, bool, error) {
	ug, err := tx.GetUserGame(ctx, proto.UserID, proto.GameID)
	if err == nil {
		return ug, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, err
	}

	res, err := tx.CreateUserGame(ctx, proto)
	if err != nil {
		return nil, false, err
	}
	if res == repository.AlreadyExists {
		ug, err = tx.GetUserGame(ctx, proto.UserID, proto.GameID)
		return ug, false, err
	}
	return proto, true, nil
}

func (r *Reconciler) announce(ctx context.Context, user *model.User, game *model.Game, out Outcome, playedTime int64) {
	if out.NewUserGame {
		notify.Deliver(ctx, r.notifier, r.logger,
			fmt.Sprintf("🎮 *%s* started playing *%s*", user.Name, game.Name))
	}
	if !out.Completed {
		return
	}

	_, completedGames, err := r.store.CountUserGames(ctx, user.ID)
	if err != nil {
		r.logger.Error("counting completed games", "user_id", user.ID, "error", err)
	}
	notify.Deliver(ctx, r.notifier, r.logger, fmt.Sprintf(
		"🏆 *%s* completed *%s* in %s. Games completed so far: %d",
		user.Name, game.Name, model.FormatPlayedTime(playedTime), completedGames,
	))
}

// Slugify lowercases name and joins its alphanumeric runs with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
