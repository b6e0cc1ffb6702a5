// Package repository declares the persistence contracts the sync engine
// depends on. The sqlstore package implements them; tests may substitute
// their own fakes.
package repository

import (
	"context"

	"github.com/sakif/playtracker/internal/model"
)

// InsertResult is the typed outcome of an insert guarded by a uniqueness
// constraint. A failed insert is reported through the accompanying error,
// never through this value.
type InsertResult int

const (
	// Inserted means this call created the row.
	Inserted InsertResult = iota + 1
	// AlreadyExists means the row was already there (duplicate key). For
	// upserts it also means the existing row was updated in place.
	AlreadyExists
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	// CreateUser inserts the user and its statistics row together.
	CreateUser(ctx context.Context, user *model.User) (InsertResult, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByClockifyID(ctx context.Context, clockifyID string) (*model.User, error)
	ListActiveUsers(ctx context.Context) ([]model.User, error)
	GetUserStatistics(ctx context.Context, userID string) (*model.UserStatistics, error)
	// UpdateUserProgress persists played time, played days and streaks.
	// Ranking columns are left untouched.
	UpdateUserProgress(ctx context.Context, stats model.UserStatistics) error
}

type GameRepository interface {
	GetGameByID(ctx context.Context, id string) (*model.Game, error)
	GetGameByProjectID(ctx context.Context, projectID string) (*model.Game, error)
	// CreateGame inserts the game with its current and historical
	// statistics rows. AlreadyExists is returned when another writer
	// created the same project first; game.ID is then left empty.
	CreateGame(ctx context.Context, game *model.Game) (InsertResult, error)
	GetGameStatistics(ctx context.Context, gameID string) (*model.GameStatistics, error)
	ListGames(ctx context.Context, opts ListOptions) ([]model.Game, error)
}

type TimeEntryRepository interface {
	// UpsertTimeEntry inserts the entry or updates it in place. A closed
	// entry is never reopened by an update that carries no end.
	UpsertTimeEntry(ctx context.Context, entry *model.TimeEntry) (InsertResult, error)
	GetTimeEntry(ctx context.Context, id string) (*model.TimeEntry, error)
	ListTimeEntriesByUser(ctx context.Context, userID string) ([]model.TimeEntry, error)
	CountTimeEntries(ctx context.Context) (int, error)
	// SumUserProjectDuration totals closed durations for (user, project).
	SumUserProjectDuration(ctx context.Context, userID, projectID string) (int64, error)
}

type UserGameRepository interface {
	GetUserGame(ctx context.Context, userID, gameID string) (*model.UserGame, error)
	CreateUserGame(ctx context.Context, ug *model.UserGame) (InsertResult, error)
	UpdateUserGamePlatform(ctx context.Context, id, platform string) error
	UpdateUserGamePlayedTime(ctx context.Context, id string, seconds int64) error
	// CompleteUserGame flips completed 0 -> 1. It reports true only for the
	// call that performed the transition.
	CompleteUserGame(ctx context.Context, id, completedDate string, playedTime int64) (bool, error)
	ListUserGames(ctx context.Context, userID string) ([]model.UserGame, error)
	CountUserGames(ctx context.Context, userID string) (started, completed int, err error)
}

type TagRepository interface {
	UpsertTag(ctx context.Context, tag model.Tag) error
	// FindPlatformTag and FindOtherTag return apperror.ErrNotFound when the
	// id is not in the respective catalog.
	FindPlatformTag(ctx context.Context, id string) (*model.Tag, error)
	FindOtherTag(ctx context.Context, id string) (*model.Tag, error)
}

type AchievementRepository interface {
	SeedAchievements(ctx context.Context, catalog []model.Achievement) error
	// InsertUserAchievement is an unconditional insert; a duplicate
	// (user, key) yields AlreadyExists.
	InsertUserAchievement(ctx context.Context, ua *model.UserAchievement) (InsertResult, error)
	ListUserAchievements(ctx context.Context, userID string) ([]model.UserAchievement, error)
}

type RankingRepository interface {
	// RefreshPlayedTime recomputes played_time aggregates from time entries.
	// season scopes the current aggregates; 0 means all entries.
	RefreshPlayedTime(ctx context.Context, kind model.RankingKind, season int) error
	// Standings returns every ranked item ordered by value, highest first.
	Standings(ctx context.Context, kind model.RankingKind) ([]model.Standing, error)
	SetCurrentRanking(ctx context.Context, kind model.RankingKind, id string, rank int) error
	// PromoteRankings copies current rankings into the last-ranking snapshot.
	PromoteRankings(ctx context.Context, kind model.RankingKind) error
	Leaderboard(ctx context.Context, metric model.LeaderboardMetric, limit int) ([]model.Standing, error)
}

type SyncRequestRepository interface {
	EnqueueSyncRequest(ctx context.Context, requestID string) (InsertResult, error)
	DeleteSyncRequest(ctx context.Context, requestID string) error
}

// Store groups every repository behind one transactional handle.
type Store interface {
	UserRepository
	GameRepository
	TimeEntryRepository
	UserGameRepository
	TagRepository
	AchievementRepository
	RankingRepository
	SyncRequestRepository

	// InTx runs fn inside a transaction. fn receives a Store bound to the
	// transaction; returning an error rolls everything back.
	InTx(ctx context.Context, fn func(Store) error) error
}
