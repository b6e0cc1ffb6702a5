// Package progression derives played days and play streaks from a user's
// reconciled time entries.
//
// The logic lives in two pure functions, PlayedDaysFromEntries and
// ComputeStreak. Engine wires them to the store and the clock.
package progression

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/coder/quartz"

	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/repository"
)

// LostStreakThreshold is the streak length whose loss is worth announcing.
const LostStreakThreshold = 10

// StreakState is a user's streak as of some day.
type StreakState struct {
	Current  int
	Best     int
	BestDate string // "YYYY-MM-DD", empty if no best yet
}

// PlayedDaysFromEntries returns the sorted, distinct calendar days on which
// the entries were played. Both the start and the end date of an entry
// count, so a session across midnight plays two days. Entries with a zero
// duration never count. A season > 0 keeps only days in that year.
func PlayedDaysFromEntries(entries []model.TimeEntry, season int) []time.Time {
	seen := make(map[time.Time]struct{})
	add := func(d time.Time) {
		if season > 0 && d.Year() != season {
			return
		}
		seen[d] = struct{}{}
	}

	for i := range entries {
		e := &entries[i]
		if !e.Qualifies() {
			continue
		}
		if d, err := e.StartDate(); err == nil {
			add(d)
		}
		if d, ok, err := e.EndDate(); ok && err == nil {
			add(d)
		}
	}

	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	return days
}

// ComputeStreak walks every calendar day from the first played day up to
// today. A played day extends the running streak; an unplayed day before
// today resets it. Today itself never resets: the user may still play.
//
// prior seeds the best streak. Best only moves on a strictly longer
// streak, so a tie keeps the earlier BestDate.
func ComputeStreak(days []time.Time, today time.Time, prior StreakState) StreakState {
	st := StreakState{Best: prior.Best, BestDate: prior.BestDate}
	if len(days) == 0 {
		return st
	}
	today = model.Day(today)

	played := make(map[time.Time]struct{}, len(days))
	for _, d := range days {
		played[model.Day(d)] = struct{}{}
	}

	for d := model.Day(days[0]); !d.After(today); d = d.AddDate(0, 0, 1) {
		if _, ok := played[d]; ok {
			st.Current++
		} else if d.Before(today) {
			st.Current = 0
		}
		if st.Current > st.Best {
			st.Best = st.Current
			st.BestDate = d.Format(model.DateLayout)
		}
	}
	return st
}

// SeasonPlayedTime sums closed durations of entries started in season
// (all entries when season is 0).
func SeasonPlayedTime(entries []model.TimeEntry, season int) int64 {
	var total int64
	for i := range entries {
		e := &entries[i]
		if e.Duration == nil {
			continue
		}
		if season > 0 {
			d, err := e.StartDate()
			if err != nil || d.Year() != season {
				continue
			}
		}
		total += *e.Duration
	}
	return total
}

// Progress is the outcome of one recomputation.
type Progress struct {
	Previous model.UserStatistics
	Current  model.UserStatistics
}

// LostStreak reports whether a streak worth mentioning just ended.
func (p Progress) LostStreak() bool {
	return p.Previous.CurrentStreak >= LostStreakThreshold && p.Current.CurrentStreak == 0
}

type Engine struct {
	store  repository.Store
	clock  quartz.Clock
	loc    *time.Location
	logger *slog.Logger
}

func NewEngine(store repository.Store, clock quartz.Clock, loc *time.Location, logger *slog.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: store, clock: clock, loc: loc, logger: logger}
}

// Today is the current calendar day in the tracker's timezone.
func (e *Engine) Today() time.Time {
	return model.Day(e.clock.Now().In(e.loc))
}

func (e *Engine) PlayedDays(ctx context.Context, userID string, season int) ([]time.Time, error) {
	entries, err := e.store.ListTimeEntriesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return PlayedDaysFromEntries(entries, season), nil
}

// Streak computes the user's streak as of asOf (zero means today), seeded
// with the best streak already on record.
func (e *Engine) Streak(ctx context.Context, userID string, asOf time.Time) (StreakState, error) {
	stats, err := e.store.GetUserStatistics(ctx, userID)
	if err != nil {
		return StreakState{}, err
	}
	days, err := e.PlayedDays(ctx, userID, 0)
	if err != nil {
		return StreakState{}, err
	}
	if asOf.IsZero() {
		asOf = e.Today()
	}
	return ComputeStreak(days, asOf, StreakState{Best: stats.BestStreak, BestDate: stats.BestStreakDate}), nil
}

// Recompute derives played time, played days and streaks for one user and
// persists them. Played time and played days are scoped to season; the
// streak always spans every season so it survives New Year's Eve.
func (e *Engine) Recompute(ctx context.Context, userID string, season int, asOf time.Time) (Progress, error) {
	prev, err := e.store.GetUserStatistics(ctx, userID)
	if err != nil {
		return Progress{}, fmt.Errorf("progression: loading statistics for %s: %w", userID, err)
	}
	entries, err := e.store.ListTimeEntriesByUser(ctx, userID)
	if err != nil {
		return Progress{}, fmt.Errorf("progression: loading entries for %s: %w", userID, err)
	}
	if asOf.IsZero() {
		asOf = e.Today()
	}

	streak := ComputeStreak(
		PlayedDaysFromEntries(entries, 0),
		asOf,
		StreakState{Best: prev.BestStreak, BestDate: prev.BestStreakDate},
	)

	cur := *prev
	cur.PlayedTime = SeasonPlayedTime(entries, season)
	cur.PlayedDays = len(PlayedDaysFromEntries(entries, season))
	cur.CurrentStreak = streak.Current
	cur.BestStreak = streak.Best
	cur.BestStreakDate = streak.BestDate

	if err := e.store.UpdateUserProgress(ctx, cur); err != nil {
		return Progress{}, fmt.Errorf("progression: saving statistics for %s: %w", userID, err)
	}
	e.logger.Debug("progress recomputed",
		"user_id", userID,
		"played_days", cur.PlayedDays,
		"current_streak", cur.CurrentStreak,
		"best_streak", cur.BestStreak,
	)
	return Progress{Previous: *prev, Current: cur}, nil
}
