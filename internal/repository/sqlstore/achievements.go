package sqlstore

import (
	"context"
	"fmt"

	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/repository"
)

var _ repository.AchievementRepository = (*DB)(nil)

// SeedAchievements writes the catalog, updating titles of known keys.
func (db *DB) SeedAchievements(ctx context.Context, catalog []model.Achievement) error {
	return db.InTx(ctx, func(s repository.Store) error {
		tx := s.(*DB)
		for _, a := range catalog {
			if _, err := tx.exec(ctx,
				`INSERT INTO achievements (key, title, category) VALUES (?, ?, ?)
				 ON CONFLICT (key) DO UPDATE SET title = excluded.title, category = excluded.category`,
				a.Key, a.Title, a.Category,
			); err != nil {
				return fmt.Errorf("sqlstore: seeding achievement %s: %w", a.Key, err)
			}
		}
		return nil
	})
}

// InsertUserAchievement records a claim. The insert is unconditional; the
// UNIQUE (user_id, achievement_key) constraint decides the race, and the
// losing call sees AlreadyExists.
func (db *DB) InsertUserAchievement(ctx context.Context, ua *model.UserAchievement) (repository.InsertResult, error) {
	_, err := db.exec(ctx,
		`INSERT INTO users_achievements (user_id, achievement_key, date) VALUES (?, ?, ?)`,
		ua.UserID, ua.AchievementKey, ua.Date,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.AlreadyExists, nil
		}
		return 0, fmt.Errorf("sqlstore: claiming %s for user %s: %w", ua.AchievementKey, ua.UserID, err)
	}
	return repository.Inserted, nil
}

func (db *DB) ListUserAchievements(ctx context.Context, userID string) ([]model.UserAchievement, error) {
	rows, err := db.query(ctx,
		`SELECT user_id, achievement_key, date FROM users_achievements
		 WHERE user_id = ? ORDER BY date, achievement_key`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing achievements for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []model.UserAchievement
	for rows.Next() {
		var ua model.UserAchievement
		if err := rows.Scan(&ua.UserID, &ua.AchievementKey, &ua.Date); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning user achievement: %w", err)
		}
		out = append(out, ua)
	}
	return out, rows.Err()
}
