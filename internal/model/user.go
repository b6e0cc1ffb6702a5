// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a friend whose play time is tracked.
//
// ClockifyID links the user to their account on the time-tracking service;
// it is the "external account id" every sync is keyed on. TelegramID is the
// messaging-platform id used by the bot (out of scope here, stored only).
type User struct {
	ID         string    `json:"id"         db:"id"`
	Name       string    `json:"name"       db:"name"`
	ClockifyID string    `json:"clockifyId" db:"clockify_id"`
	TelegramID int64     `json:"telegramId" db:"telegram_id"`
	IsAdmin    bool      `json:"isAdmin"    db:"is_admin"`
	IsActive   bool      `json:"isActive"   db:"is_active"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
}

// UserStatistics holds the derived metrics for a single user.
// Exactly one row exists per User; it is created in the same transaction.
type UserStatistics struct {
	UserID              string `json:"userId"              db:"user_id"`
	PlayedTime          int64  `json:"playedTime"          db:"played_time"` // seconds, current season
	PlayedDays          int    `json:"playedDays"          db:"played_days"`
	CurrentStreak       int    `json:"currentStreak"       db:"current_streak"`
	BestStreak          int    `json:"bestStreak"          db:"best_streak"`
	BestStreakDate      string `json:"bestStreakDate"      db:"best_streak_date"` // YYYY-MM-DD, empty if never
	CurrentRankingHours int    `json:"currentRankingHours" db:"current_ranking_hours"`
	LastRankingHours    int    `json:"lastRankingHours"    db:"last_ranking_hours"`
}
