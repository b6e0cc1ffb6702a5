package achievement

import (
	"context"
	"fmt"

	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/repository"
)

// ShortSessionLimit is the upper bound (exclusive) of an "opened it by
// mistake" session, in seconds.
const ShortSessionLimit = 5 * 60

// GameStat pairs a game with an amount of seconds.
type GameStat struct {
	Game    string
	Seconds int64
}

// Metrics are the per-user figures achievement predicates look at.
// Day-based figures group entries by their start date.
type Metrics struct {
	TotalSeconds   int64
	MaxDaySeconds  int64
	MaxDayGames    int
	MaxGame        GameStat
	MaxGameDay     GameStat
	LongestSession GameStat
	// ShortSession is the first session shorter than ShortSessionLimit,
	// nil if there is none.
	ShortSession   *GameStat
	GamesStarted   int
	GamesCompleted int
	CurrentStreak  int
}

// BuildMetrics aggregates a user's entries and games. Open entries only
// count towards the games played on a day.
func BuildMetrics(entries []model.TimeEntry, games []model.UserGame, currentStreak int) Metrics {
	m := Metrics{CurrentStreak: currentStreak, GamesStarted: len(games)}

	names := make(map[string]string, len(games))
	for _, g := range games {
		names[g.ProjectID] = g.GameName
		if g.Completed {
			m.GamesCompleted++
		}
	}
	name := func(projectID string) string {
		if n, ok := names[projectID]; ok && n != "" {
			return n
		}
		return projectID
	}

	type dayGame struct{ day, project string }
	perDay := map[string]int64{}
	perDayGames := map[string]map[string]struct{}{}
	perDayGame := map[dayGame]int64{}
	perGame := map[string]int64{}

	for i := range entries {
		e := &entries[i]
		if len(e.Start) < len(model.DateLayout) {
			continue
		}
		day := e.Start[:len(model.DateLayout)]

		if perDayGames[day] == nil {
			perDayGames[day] = map[string]struct{}{}
		}
		perDayGames[day][e.ProjectID] = struct{}{}

		if e.Duration == nil {
			continue
		}
		d := *e.Duration
		m.TotalSeconds += d
		perDay[day] += d
		perDayGame[dayGame{day, e.ProjectID}] += d
		perGame[e.ProjectID] += d

		if d > m.LongestSession.Seconds {
			m.LongestSession = GameStat{Game: name(e.ProjectID), Seconds: d}
		}
		if m.ShortSession == nil && d > 0 && d < ShortSessionLimit {
			m.ShortSession = &GameStat{Game: name(e.ProjectID), Seconds: d}
		}
	}

	for _, s := range perDay {
		m.MaxDaySeconds = max(m.MaxDaySeconds, s)
	}
	for _, g := range perDayGames {
		m.MaxDayGames = max(m.MaxDayGames, len(g))
	}
	for k, s := range perDayGame {
		m.MaxGameDay = better(m.MaxGameDay, GameStat{Game: name(k.project), Seconds: s})
	}
	for p, s := range perGame {
		m.MaxGame = better(m.MaxGame, GameStat{Game: name(p), Seconds: s})
	}
	return m
}

// better picks the larger stat; ties go to the alphabetically first game
// so map iteration order never shows.
func better(cur, cand GameStat) GameStat {
	if cand.Seconds > cur.Seconds || (cand.Seconds == cur.Seconds && cand.Seconds > 0 && cand.Game < cur.Game) {
		return cand
	}
	return cur
}

// Collect loads what BuildMetrics needs for one user.
func Collect(ctx context.Context, store repository.Store, userID string, currentStreak int) (Metrics, error) {
	entries, err := store.ListTimeEntriesByUser(ctx, userID)
	if err != nil {
		return Metrics{}, fmt.Errorf("achievement: loading entries for %s: %w", userID, err)
	}
	games, err := store.ListUserGames(ctx, userID)
	if err != nil {
		return Metrics{}, fmt.Errorf("achievement: loading games for %s: %w", userID, err)
	}
	return BuildMetrics(entries, games, currentStreak), nil
}
