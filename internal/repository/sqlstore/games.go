package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/playtracker/internal/apperror"
	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/repository"
)

var _ repository.GameRepository = (*DB)(nil)

const gameColumns = `id, project_id, name, dev, release_date, genres, avg_time, image_url, slug, created_at`

// CreateGame inserts a game and both of its statistics rows.
//
// Two syncs can discover the same project at once. The loser's insert is
// swallowed by ON CONFLICT and reported as AlreadyExists, and the caller
// re-reads the winner's row.
func (db *DB) CreateGame(ctx context.Context, game *model.Game) (repository.InsertResult, error) {
	if game.ID == "" {
		game.ID = xid.New().String()
	}
	if game.CreatedAt.IsZero() {
		game.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	result := repository.Inserted
	err := db.InTx(ctx, func(s repository.Store) error {
		tx := s.(*DB)
		res, err := tx.exec(ctx,
			`INSERT INTO games (`+gameColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT DO NOTHING`,
			game.ID,
			game.ProjectID,
			game.Name,
			game.Dev,
			game.ReleaseDate,
			game.Genres,
			game.AvgTime,
			game.ImageURL,
			game.Slug,
			game.CreatedAt.Format(model.DateTimeLayout),
		)
		if err != nil {
			return fmt.Errorf("sqlstore: inserting game for project %s: %w", game.ProjectID, err)
		}
		if result, err = insertResult(res); err != nil {
			return fmt.Errorf("sqlstore: checking rows affected: %w", err)
		}
		if result == repository.AlreadyExists {
			return nil
		}

		if _, err := tx.exec(ctx,
			`INSERT INTO games_statistics (game_id, played_time, current_ranking, last_ranking)
			 VALUES (?, 0, ?, ?)`,
			game.ID, model.UnrankedPosition, model.UnrankedPosition,
		); err != nil {
			return fmt.Errorf("sqlstore: inserting statistics for game %s: %w", game.ID, err)
		}
		if _, err := tx.exec(ctx,
			`INSERT INTO games_statistics_historical (game_id, played_time) VALUES (?, 0)`,
			game.ID,
		); err != nil {
			return fmt.Errorf("sqlstore: inserting historical statistics for game %s: %w", game.ID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if result == repository.AlreadyExists {
		game.ID = ""
	}
	return result, nil
}

func (db *DB) GetGameByID(ctx context.Context, id string) (*model.Game, error) {
	g, err := scanGame(db.queryRow(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("game", id)
		}
		return nil, fmt.Errorf("sqlstore: getting game %s: %w", id, err)
	}
	return g, nil
}

// GetGameByProjectID looks a game up by its external project id.
func (db *DB) GetGameByProjectID(ctx context.Context, projectID string) (*model.Game, error) {
	g, err := scanGame(db.queryRow(ctx,
		`SELECT `+gameColumns+` FROM games WHERE project_id = ?`, projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("game", projectID)
		}
		return nil, fmt.Errorf("sqlstore: getting game by project %s: %w", projectID, err)
	}
	return g, nil
}

func (db *DB) GetGameStatistics(ctx context.Context, gameID string) (*model.GameStatistics, error) {
	var st model.GameStatistics
	err := db.queryRow(ctx,
		`SELECT game_id, played_time, current_ranking, last_ranking
		 FROM games_statistics WHERE game_id = ?`,
		gameID,
	).Scan(&st.GameID, &st.PlayedTime, &st.CurrentRanking, &st.LastRanking)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("game statistics", gameID)
		}
		return nil, fmt.Errorf("sqlstore: getting statistics for game %s: %w", gameID, err)
	}
	return &st, nil
}

// ListGames returns games ordered by name.
// Limit defaults to 50 if zero or negative.
func (db *DB) ListGames(ctx context.Context, opts repository.ListOptions) ([]model.Game, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	rows, err := db.query(ctx,
		`SELECT `+gameColumns+` FROM games ORDER BY name LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing games: %w", err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning game: %w", err)
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

func scanGame(row rowScanner) (*model.Game, error) {
	var (
		g         model.Game
		createdAt string
	)
	if err := row.Scan(
		&g.ID,
		&g.ProjectID,
		&g.Name,
		&g.Dev,
		&g.ReleaseDate,
		&g.Genres,
		&g.AvgTime,
		&g.ImageURL,
		&g.Slug,
		&createdAt,
	); err != nil {
		return nil, err
	}
	if t, err := time.Parse(model.DateTimeLayout, createdAt); err == nil {
		g.CreatedAt = t
	}
	return &g, nil
}
