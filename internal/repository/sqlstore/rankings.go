package sqlstore

import (
	"context"
	"fmt"

	"github.com/sakif/playtracker/internal/apperror"
	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/repository"
)

var _ repository.RankingRepository = (*DB)(nil)

// seasonFilter restricts time_entries (aliased te) to one calendar year.
// start_time is "YYYY-MM-DD HH:MM:SS", so plain string comparison works.
func seasonFilter(season int) (string, []any) {
	if season <= 0 {
		return "", nil
	}
	return ` AND te.start_time >= ? AND te.start_time < ?`, []any{
		fmt.Sprintf("%04d-01-01", season),
		fmt.Sprintf("%04d-01-01", season+1),
	}
}

// RefreshPlayedTime recomputes played_time from closed time entries.
// For games the all-time historical table is refreshed as well.
func (db *DB) RefreshPlayedTime(ctx context.Context, kind model.RankingKind, season int) error {
	filter, args := seasonFilter(season)

	switch kind {
	case model.RankingUsers:
		_, err := db.exec(ctx,
			`UPDATE users_statistics SET played_time = (
				SELECT COALESCE(SUM(te.duration), 0) FROM time_entries te
				WHERE te.user_id = users_statistics.user_id AND te.duration IS NOT NULL`+filter+`)`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: refreshing user played time: %w", err)
		}
		return nil

	case model.RankingGames:
		return db.InTx(ctx, func(s repository.Store) error {
			tx := s.(*DB)
			if _, err := tx.exec(ctx,
				`UPDATE games_statistics SET played_time = (
					SELECT COALESCE(SUM(te.duration), 0) FROM time_entries te
					JOIN games g ON g.project_id = te.project_id
					WHERE g.id = games_statistics.game_id AND te.duration IS NOT NULL`+filter+`)`,
				args...,
			); err != nil {
				return fmt.Errorf("sqlstore: refreshing game played time: %w", err)
			}
			if _, err := tx.exec(ctx,
				`UPDATE games_statistics_historical SET played_time = (
					SELECT COALESCE(SUM(te.duration), 0) FROM time_entries te
					JOIN games g ON g.project_id = te.project_id
					WHERE g.id = games_statistics_historical.game_id AND te.duration IS NOT NULL)`,
			); err != nil {
				return fmt.Errorf("sqlstore: refreshing historical game played time: %w", err)
			}
			return nil
		})
	}
	return apperror.ValidationFailed("kind", fmt.Sprintf("unknown ranking kind %q", kind))
}

// Standings returns the ranked items, most played first. Ties are broken by
// name so repeated passes produce the same order.
func (db *DB) Standings(ctx context.Context, kind model.RankingKind) ([]model.Standing, error) {
	var query string
	switch kind {
	case model.RankingUsers:
		query = `SELECT u.id, u.name, s.played_time, s.last_ranking_hours
			FROM users u JOIN users_statistics s ON s.user_id = u.id
			WHERE u.is_active = 1
			ORDER BY s.played_time DESC, u.name`
	case model.RankingGames:
		query = `SELECT g.id, g.name, s.played_time, s.last_ranking
			FROM games g JOIN games_statistics s ON s.game_id = g.id
			ORDER BY s.played_time DESC, g.name`
	default:
		return nil, apperror.ValidationFailed("kind", fmt.Sprintf("unknown ranking kind %q", kind))
	}

	return db.standings(ctx, query)
}

func (db *DB) SetCurrentRanking(ctx context.Context, kind model.RankingKind, id string, rank int) error {
	var query string
	switch kind {
	case model.RankingUsers:
		query = `UPDATE users_statistics SET current_ranking_hours = ? WHERE user_id = ?`
	case model.RankingGames:
		query = `UPDATE games_statistics SET current_ranking = ? WHERE game_id = ?`
	default:
		return apperror.ValidationFailed("kind", fmt.Sprintf("unknown ranking kind %q", kind))
	}
	if _, err := db.exec(ctx, query, rank, id); err != nil {
		return fmt.Errorf("sqlstore: setting %s ranking for %s: %w", kind, id, err)
	}
	return nil
}

// PromoteRankings snapshots the current rankings as the last ones, so the
// next pass diffs against this one.
func (db *DB) PromoteRankings(ctx context.Context, kind model.RankingKind) error {
	var query string
	switch kind {
	case model.RankingUsers:
		query = `UPDATE users_statistics SET last_ranking_hours = current_ranking_hours`
	case model.RankingGames:
		query = `UPDATE games_statistics SET last_ranking = current_ranking`
	default:
		return apperror.ValidationFailed("kind", fmt.Sprintf("unknown ranking kind %q", kind))
	}
	if _, err := db.exec(ctx, query); err != nil {
		return fmt.Errorf("sqlstore: promoting %s rankings: %w", kind, err)
	}
	return nil
}

// leaderboardValues maps each metric to the SQL expression that produces
// it for user u joined with statistics s. Only these fixed strings are ever
// interpolated into a query.
var leaderboardValues = map[model.LeaderboardMetric]string{
	model.MetricPlayedTime:     `s.played_time`,
	model.MetricPlayedDays:     `s.played_days`,
	model.MetricBestStreak:     `s.best_streak`,
	model.MetricCurrentStreak:  `s.current_streak`,
	model.MetricPlayedGames:    `(SELECT COUNT(*) FROM users_games ug WHERE ug.user_id = u.id)`,
	model.MetricCompletedGames: `(SELECT COUNT(*) FROM users_games ug WHERE ug.user_id = u.id AND ug.completed = 1)`,
	model.MetricAchievements:   `(SELECT COUNT(*) FROM users_achievements ua WHERE ua.user_id = u.id)`,
}

// Leaderboard ranks active users by a single metric. LastRanking is not
// tracked for these boards and is always zero.
func (db *DB) Leaderboard(ctx context.Context, metric model.LeaderboardMetric, limit int) ([]model.Standing, error) {
	expr, ok := leaderboardValues[metric]
	if !ok {
		return nil, apperror.ValidationFailed("metric", fmt.Sprintf("unknown leaderboard metric %q", metric))
	}
	if limit <= 0 {
		limit = 10
	}

	return db.standings(ctx,
		`SELECT u.id, u.name, `+expr+` AS value, 0
		 FROM users u JOIN users_statistics s ON s.user_id = u.id
		 WHERE u.is_active = 1
		 ORDER BY value DESC, u.name
		 LIMIT ?`,
		limit,
	)
}

func (db *DB) standings(ctx context.Context, query string, args ...any) ([]model.Standing, error) {
	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: querying standings: %w", err)
	}
	defer rows.Close()

	var out []model.Standing
	for rows.Next() {
		var st model.Standing
		if err := rows.Scan(&st.ID, &st.Name, &st.Value, &st.LastRanking); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning standing: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
