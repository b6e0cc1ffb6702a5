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

var _ repository.UserRepository = (*DB)(nil)

// errDuplicate aborts an InTx callback after a unique violation so the
// transaction rolls back cleanly.
var errDuplicate = errors.New("sqlstore: duplicate row")

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, name, clockify_id, telegram_id, is_admin, is_active, created_at`

// CreateUser inserts a user together with its statistics row.
//
// A user with the same clockify_id already present yields AlreadyExists;
// nothing is written in that case.
func (db *DB) CreateUser(ctx context.Context, user *model.User) (repository.InsertResult, error) {
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	err := db.InTx(ctx, func(s repository.Store) error {
		tx := s.(*DB)
		_, err := tx.exec(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			user.ID,
			user.Name,
			user.ClockifyID,
			user.TelegramID,
			boolToInt(user.IsAdmin),
			boolToInt(user.IsActive),
			user.CreatedAt.Format(model.DateTimeLayout),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return errDuplicate
			}
			return fmt.Errorf("sqlstore: inserting user %s: %w", user.Name, err)
		}

		_, err = tx.exec(ctx,
			`INSERT INTO users_statistics (user_id, current_ranking_hours, last_ranking_hours)
			 VALUES (?, ?, ?)`,
			user.ID, model.UnrankedPosition, model.UnrankedPosition,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: inserting statistics for user %s: %w", user.ID, err)
		}
		return nil
	})
	if errors.Is(err, errDuplicate) {
		return repository.AlreadyExists, nil
	}
	if err != nil {
		return 0, err
	}
	return repository.Inserted, nil
}

// GetUserByID retrieves a user by internal id.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlstore: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByClockifyID retrieves a user by their time-tracking account id.
func (db *DB) GetUserByClockifyID(ctx context.Context, clockifyID string) (*model.User, error) {
	u, err := scanUser(db.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE clockify_id = ?`, clockifyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", clockifyID)
		}
		return nil, fmt.Errorf("sqlstore: getting user by clockify id %s: %w", clockifyID, err)
	}
	return u, nil
}

// ListActiveUsers returns every active user ordered by name.
func (db *DB) ListActiveUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.query(ctx,
		`SELECT `+userColumns+` FROM users WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing active users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (db *DB) GetUserStatistics(ctx context.Context, userID string) (*model.UserStatistics, error) {
	var st model.UserStatistics
	err := db.queryRow(ctx,
		`SELECT user_id, played_time, played_days, current_streak, best_streak,
		        best_streak_date, current_ranking_hours, last_ranking_hours
		 FROM users_statistics WHERE user_id = ?`,
		userID,
	).Scan(
		&st.UserID,
		&st.PlayedTime,
		&st.PlayedDays,
		&st.CurrentStreak,
		&st.BestStreak,
		&st.BestStreakDate,
		&st.CurrentRankingHours,
		&st.LastRankingHours,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user statistics", userID)
		}
		return nil, fmt.Errorf("sqlstore: getting statistics for user %s: %w", userID, err)
	}
	return &st, nil
}

func (db *DB) UpdateUserProgress(ctx context.Context, st model.UserStatistics) error {
	res, err := db.exec(ctx,
		`UPDATE users_statistics
		 SET played_time = ?, played_days = ?, current_streak = ?, best_streak = ?, best_streak_date = ?
		 WHERE user_id = ?`,
		st.PlayedTime,
		st.PlayedDays,
		st.CurrentStreak,
		st.BestStreak,
		st.BestStreakDate,
		st.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating progress for user %s: %w", st.UserID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user statistics", st.UserID)
	}
	return nil
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u         model.User
		isAdmin   int
		isActive  int
		createdAt string
	)
	if err := row.Scan(
		&u.ID,
		&u.Name,
		&u.ClockifyID,
		&u.TelegramID,
		&isAdmin,
		&isActive,
		&createdAt,
	); err != nil {
		return nil, err
	}
	u.IsAdmin = isAdmin == 1
	u.IsActive = isActive == 1
	if t, err := time.Parse(model.DateTimeLayout, createdAt); err == nil {
		u.CreatedAt = t
	}
	return &u, nil
}
