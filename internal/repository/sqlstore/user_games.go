package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/playtracker/internal/apperror"
	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/repository"
)

var _ repository.UserGameRepository = (*DB)(nil)

const userGameColumns = `ug.id, ug.user_id, ug.game_id, ug.project_id, g.name, ug.platform, ug.completed,
	ug.started_date, ug.completed_date, ug.played_time, ug.completion_time`

func (db *DB) GetUserGame(ctx context.Context, userID, gameID string) (*model.UserGame, error) {
	ug, err := scanUserGame(db.queryRow(ctx,
		`SELECT `+userGameColumns+`
		 FROM users_games ug JOIN games g ON g.id = ug.game_id
		 WHERE ug.user_id = ? AND ug.game_id = ?`,
		userID, gameID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user game", userID+"/"+gameID)
		}
		return nil, fmt.Errorf("sqlstore: getting user game %s/%s: %w", userID, gameID, err)
	}
	return ug, nil
}

// CreateUserGame inserts the (user, game) association. A concurrent writer
// that got there first turns this into AlreadyExists.
func (db *DB) CreateUserGame(ctx context.Context, ug *model.UserGame) (repository.InsertResult, error) {
	if ug.ID == "" {
		ug.ID = xid.New().String()
	}
	res, err := db.exec(ctx,
		`INSERT INTO users_games (id, user_id, game_id, project_id, platform, completed,
		                          started_date, completed_date, played_time, completion_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		ug.ID,
		ug.UserID,
		ug.GameID,
		ug.ProjectID,
		ug.Platform,
		boolToInt(ug.Completed),
		ug.StartedDate,
		ug.CompletedDate,
		ug.PlayedTime,
		ug.CompletionTime,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: inserting user game %s/%s: %w", ug.UserID, ug.GameID, err)
	}
	result, err := insertResult(res)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	return result, nil
}

func (db *DB) UpdateUserGamePlatform(ctx context.Context, id, platform string) error {
	return db.updateUserGame(ctx, id,
		`UPDATE users_games SET platform = ? WHERE id = ?`, platform, id)
}

func (db *DB) UpdateUserGamePlayedTime(ctx context.Context, id string, seconds int64) error {
	return db.updateUserGame(ctx, id,
		`UPDATE users_games SET played_time = ? WHERE id = ?`, seconds, id)
}

// CompleteUserGame marks the association completed. The completed = 0
// guard makes the transition happen at most once; every later call,
// concurrent or not, sees zero affected rows and reports false.
func (db *DB) CompleteUserGame(ctx context.Context, id, completedDate string, playedTime int64) (bool, error) {
	res, err := db.exec(ctx,
		`UPDATE users_games
		 SET completed = 1, completed_date = ?, played_time = ?, completion_time = ?
		 WHERE id = ? AND completed = 0`,
		completedDate, playedTime, playedTime, id,
	)
	if err != nil {
		return false, fmt.Errorf("sqlstore: completing user game %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	return n == 1, nil
}

// ListUserGames returns a user's games, most recently started first.
func (db *DB) ListUserGames(ctx context.Context, userID string) ([]model.UserGame, error) {
	rows, err := db.query(ctx,
		`SELECT `+userGameColumns+`
		 FROM users_games ug JOIN games g ON g.id = ug.game_id
		 WHERE ug.user_id = ?
		 ORDER BY ug.started_date DESC, g.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing games for user %s: %w", userID, err)
	}
	defer rows.Close()

	var games []model.UserGame
	for rows.Next() {
		ug, err := scanUserGame(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning user game: %w", err)
		}
		games = append(games, *ug)
	}
	return games, rows.Err()
}

// CountUserGames returns how many games the user started and completed.
func (db *DB) CountUserGames(ctx context.Context, userID string) (started, completed int, err error) {
	err = db.queryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(completed), 0) FROM users_games WHERE user_id = ?`,
		userID,
	).Scan(&started, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlstore: counting games for user %s: %w", userID, err)
	}
	return started, completed, nil
}

func (db *DB) updateUserGame(ctx context.Context, id, query string, args ...any) error {
	res, err := db.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: updating user game %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user game", id)
	}
	return nil
}

func scanUserGame(row rowScanner) (*model.UserGame, error) {
	var (
		ug        model.UserGame
		completed int
	)
	if err := row.Scan(
		&ug.ID,
		&ug.UserID,
		&ug.GameID,
		&ug.ProjectID,
		&ug.GameName,
		&ug.Platform,
		&completed,
		&ug.StartedDate,
		&ug.CompletedDate,
		&ug.PlayedTime,
		&ug.CompletionTime,
	); err != nil {
		return nil, err
	}
	ug.Completed = completed == 1
	return &ug, nil
}
